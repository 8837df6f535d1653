package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
)

var personsCmd = &cobra.Command{
	Use:   "persons",
	Short: "Manage the enrolled gallery",
}

var personsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List enrolled persons",
	RunE:  runPersonsList,
}

var personsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove a person from the gallery",
	Args:  cobra.ExactArgs(1),
	RunE:  runPersonsDelete,
}

func init() {
	rootCmd.AddCommand(personsCmd)
	personsCmd.AddCommand(personsListCmd)
	personsCmd.AddCommand(personsDeleteCmd)
}

func runPersonsList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	g, cleanup, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	people, err := g.Store().List(ctx)
	if err != nil {
		return fmt.Errorf("listing gallery: %w", err)
	}

	if len(people) == 0 {
		fmt.Println("No persons enrolled")
		return nil
	}

	fmt.Printf("%-30s %-30s %s\n", "NAME", "DISPLAY", "SAMPLES")
	for _, p := range people {
		fmt.Printf("%-30s %-30s %d\n", p.Name, p.Display, len(p.Descriptors))
	}
	fmt.Printf("\n%d persons enrolled\n", len(people))
	return nil
}

func runPersonsDelete(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := config.Load()
	ctx := context.Background()

	g, cleanup, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	person, err := g.Store().Get(ctx, name)
	if err != nil {
		return fmt.Errorf("reading gallery: %w", err)
	}
	if person == nil {
		return fmt.Errorf("person %q is not enrolled", name)
	}

	if err := g.Store().Delete(ctx, name); err != nil {
		return fmt.Errorf("deleting person: %w", err)
	}
	if err := g.RebuildIndex(ctx); err != nil {
		fmt.Printf("Warning: rebuilding candidate index: %v\n", err)
	}
	if err := g.SaveIndex(); err != nil {
		fmt.Printf("Warning: saving candidate index: %v\n", err)
	}

	fmt.Printf("Deleted %s (%d samples)\n", person.Name, len(person.Descriptors))
	return nil
}

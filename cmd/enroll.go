package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/recognizer"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll [name]",
	Short: "Enroll a person through guided capture",
	Long: `Enroll a person into the gallery.
The camera captures face descriptors while the terminal guides you
through a series of poses. Collected samples replace any prior
enrollment for the same name.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int("samples", 0, "Samples per pose (overrides FACEGATE_SAMPLES_PER_POSE)")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	name := args[0]
	cfg := config.Load()

	if samples := mustGetInt(cmd, "samples"); samples > 0 {
		cfg.Enroll.SamplesPerPose = samples
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, cleanup, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return err
	}

	source := newFrameSource(cfg, false)
	rec, err := newRecognizer(cfg, source, det, g)
	if err != nil {
		return err
	}

	plan, err := cfg.PosePlan()
	if err != nil {
		return err
	}
	total := len(plan) * cfg.Enroll.SamplesPerPose

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription(plan[0].Instruction),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	obs := recognizer.EnrollObserverFunc(func(p recognizer.EnrollProgress) {
		if p.PoseIndex < len(plan) {
			bar.Describe(plan[p.PoseIndex].Instruction)
		}
		_ = bar.Set(p.Total)
	})

	fmt.Printf("Enrolling %s (%d poses, %d samples each)\n", name, len(plan), cfg.Enroll.SamplesPerPose)
	if err := rec.Enroll(ctx, name, obs); err != nil {
		return fmt.Errorf("enrollment failed: %w", err)
	}

	_ = bar.Finish()
	fmt.Printf("\nEnrolled %s\n", name)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/recognizer"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify faces against the enrolled gallery",
	Long: `Run the live verification loop.
Each captured frame is matched against the gallery and the result is
printed. Runs until interrupted, the frame source is exhausted, or a
match is accepted when --once is set.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Bool("once", false, "Exit after the first accepted match")
	verifyCmd.Flags().Float64("threshold", 0, "Override the distance threshold for this run")
	verifyCmd.Flags().Float64("margin", 0, "Override the ambiguity margin for this run")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if threshold := mustGetFloat64(cmd, "threshold"); threshold > 0 {
		cfg.Match.DistanceThreshold = threshold
	}
	if margin := mustGetFloat64(cmd, "margin"); margin > 0 {
		cfg.Match.Margin = margin
	}
	once := mustGetBool(cmd, "once")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, cleanup, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	count, err := g.Store().Count(ctx)
	if err != nil {
		return fmt.Errorf("reading gallery: %w", err)
	}
	if count == 0 {
		fmt.Println("Warning: the gallery is empty, every face will report Unknown")
	}

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return err
	}

	source := newFrameSource(cfg, false)
	rec, err := newRecognizer(cfg, source, det, g)
	if err != nil {
		return err
	}

	matched := false
	obs := recognizer.VerifyObserverFunc(func(res recognizer.VerifyResult) {
		if res.Name == gallery.Unknown {
			fmt.Printf("  %-20s distance=%.3f\n", res.Name, res.Distance)
			return
		}
		fmt.Printf("  %-20s distance=%.3f  ACCEPTED\n", res.Name, res.Distance)
		if once {
			matched = true
			cancel()
		}
	})

	fmt.Printf("Verifying against %d enrolled people (threshold %.2f, margin %.2f)\n",
		count, cfg.Match.DistanceThreshold, cfg.Match.Margin)

	if err := rec.Verify(ctx, obs); err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if once && !matched {
		return fmt.Errorf("no accepted match")
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/shellcache"
	"github.com/facegate/facegate/internal/web"
	"github.com/facegate/facegate/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the kiosk web server",
	Long: `Start the facegate web server.
The server exposes enrollment and verification sessions, the enrolled
gallery, a live camera preview, and serves the kiosk frontend from a
local versioned cache so it keeps working while the upstream is down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides FACEGATE_WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides FACEGATE_WEB_HOST)")
	serveCmd.Flags().StringSlice("precache", nil, "Shell resource paths to cache at startup")
}

// setupShell prepares the versioned shell cache and precaches the
// configured resources. Returns nil when no upstream is configured.
func setupShell(ctx context.Context, cfg *config.Config, precache []string) (http.Handler, error) {
	if cfg.Shell.Upstream == "" {
		return nil, nil
	}

	bucket, err := shellcache.OpenBucket(cfg.Shell.CacheDir, cfg.Shell.Version)
	if err != nil {
		return nil, fmt.Errorf("opening shell cache: %w", err)
	}

	handler, err := shellcache.NewHandler(bucket, cfg.Shell.Upstream)
	if err != nil {
		return nil, fmt.Errorf("creating shell cache handler: %w", err)
	}

	if len(precache) > 0 {
		fmt.Printf("Precaching %d shell resources...\n", len(precache))
		handler.Precache(ctx, precache)
	}
	if err := bucket.Activate(); err != nil {
		fmt.Printf("Warning: cleaning up old cache buckets: %v\n", err)
	}

	fmt.Printf("Serving shell from cache bucket %s\n", bucket.Dir())
	return handler, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	if port := mustGetInt(cmd, "port"); port != 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}

	g, cleanup, err := openGallery(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	det, err := newDetector(ctx, cfg)
	if err != nil {
		return err
	}

	source := newFrameSource(cfg, true)
	rec, err := newRecognizer(cfg, source, det, g)
	if err != nil {
		return err
	}

	precache, err := cmd.Flags().GetStringSlice("precache")
	if err != nil {
		return fmt.Errorf("reading precache flag: %w", err)
	}
	shell, err := setupShell(ctx, cfg, precache)
	if err != nil {
		return err
	}

	sessions := handlers.NewSessionManager(rec)
	server := web.NewServer(cfg, sessions, det, shell)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if err := g.SaveIndex(); err != nil {
			fmt.Printf("Warning: saving candidate index: %v\n", err)
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Facegate on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

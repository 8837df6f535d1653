package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detector"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/gallery/postgres"
	"github.com/facegate/facegate/internal/recognizer"
)

// openGallery builds the descriptor gallery from configuration: the
// pgvector backend when a database URL is set, the JSON file otherwise.
// The returned cleanup closes the backend.
func openGallery(ctx context.Context, cfg *config.Config) (*gallery.Gallery, func(), error) {
	var store gallery.Store

	if cfg.Gallery.DatabaseURL != "" {
		fmt.Printf("Connecting to PostgreSQL gallery...\n")
		pool, err := postgres.NewPool(&cfg.Gallery)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to database: %w", err)
		}
		if err := pool.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrating database: %w", err)
		}
		store = postgres.NewStore(pool)
	} else {
		s, err := gallery.OpenJSONStore(cfg.Gallery.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening gallery file: %w", err)
		}
		store = s
	}

	index := gallery.NewIndex()
	if cfg.Gallery.HNSWIndexPath != "" {
		index.SetPath(cfg.Gallery.HNSWIndexPath)
		if err := index.Load(cfg.Gallery.HNSWIndexPath); err != nil {
			fmt.Printf("Warning: loading HNSW index: %v (rebuilding)\n", err)
		}
	}

	matcher := gallery.NewMatcher(cfg.Match.DistanceThreshold, cfg.Match.Margin)
	g := gallery.New(store, matcher, index)

	if err := g.RebuildIndex(ctx); err != nil {
		fmt.Printf("Warning: building candidate index: %v\n", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			fmt.Printf("Warning: closing gallery: %v\n", err)
		}
	}
	return g, cleanup, nil
}

// newFrameSource picks the frame source: a directory of images when
// configured, the V4L2 camera device otherwise.
func newFrameSource(cfg *config.Config, loop bool) camera.FrameSource {
	if cfg.Camera.Dir != "" {
		fmt.Printf("Reading frames from %s\n", cfg.Camera.Dir)
		return camera.NewDirSource(cfg.Camera.Dir, loop)
	}
	return camera.NewV4L2Source(cfg.Camera.Device)
}

// newDetector creates the model service client and loads the model
// bundles.
func newDetector(ctx context.Context, cfg *config.Config) (*detector.Client, error) {
	client, err := detector.NewClient(&cfg.Detector)
	if err != nil {
		return nil, err
	}

	fmt.Printf("Loading face models from %s...\n", cfg.Detector.ModelURL)
	if err := client.Warmup(ctx); err != nil {
		return nil, fmt.Errorf("loading face models: %w", err)
	}
	return client, nil
}

// newRecognizer wires the camera, detector, and gallery into a recognizer
// using the configured pose plan and loop timings.
func newRecognizer(cfg *config.Config, source camera.FrameSource, engine detector.Engine, g *gallery.Gallery) (*recognizer.Recognizer, error) {
	plan, err := cfg.PosePlan()
	if err != nil {
		return nil, fmt.Errorf("loading pose plan: %w", err)
	}

	return recognizer.New(source, engine, g, recognizer.Params{
		PosePlan:       plan,
		SamplesPerPose: cfg.Enroll.SamplesPerPose,
		TickInterval:   time.Duration(cfg.Enroll.TickIntervalMS) * time.Millisecond,
		PosePause:      time.Duration(cfg.Enroll.PosePauseMS) * time.Millisecond,
	}), nil
}

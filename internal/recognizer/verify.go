package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/overlay"
)

// Verify runs the continuous verification loop. Every tick captures a
// frame, detects the most prominent face, and matches its descriptor
// against the gallery. Each tick produces exactly one result; frames
// without a usable face report Unknown with distance 0. The loop runs
// until the context is cancelled or the frame source is exhausted.
func (r *Recognizer) Verify(ctx context.Context, obs VerifyObserver) error {
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	if err := r.source.Start(ctx); err != nil {
		return fmt.Errorf("starting camera: %w", err)
	}
	defer r.source.Stop()

	params := r.snapshotParams()

	for ctx.Err() == nil {
		frame, err := r.source.Frame(ctx)
		if errors.Is(err, camera.ErrExhausted) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			log.Printf("Warning: verification frame capture failed: %v", err)
			sleep(ctx, params.TickInterval)
			continue
		}

		canvas := overlay.ToRGBA(frame)

		det, err := r.engine.DetectOne(ctx, frame)
		if err != nil {
			log.Printf("Warning: detection failed: %v", err)
			r.publishPreview(canvas)
			sleep(ctx, params.TickInterval)
			continue
		}

		if det == nil {
			overlay.DrawMiss(canvas, "No usable face")
			if obs != nil {
				obs.VerifyResult(VerifyResult{Name: gallery.Unknown, Distance: 0})
			}
		} else {
			match, err := r.gallery.Identify(ctx, det.Descriptor)
			if err != nil {
				log.Printf("Warning: matching descriptor: %v", err)
				r.publishPreview(canvas)
				sleep(ctx, params.TickInterval)
				continue
			}
			overlay.DrawBox(canvas, det.Box)
			overlay.DrawLabel(canvas, det.Box, match.Name, match.Distance)
			if obs != nil {
				obs.VerifyResult(VerifyResult{Name: match.Name, Distance: match.Distance})
			}
		}

		r.publishPreview(canvas)
		sleep(ctx, params.TickInterval)
	}

	return nil
}

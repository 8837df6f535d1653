package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/overlay"
)

// Enroll runs the guided enrollment loop for one person. The pose plan is
// walked in order; each pose collects SamplesPerPose descriptors before a
// short pause lets the user reposition. Cancelling the context stops the
// loop after the in-flight tick. Collected descriptors replace any prior
// entry for the name; a run with zero samples fails without touching the
// gallery.
func (r *Recognizer) Enroll(ctx context.Context, name string, obs EnrollObserver) error {
	if gallery.NormalizeName(name) == "" {
		return fmt.Errorf("person name is empty")
	}
	if err := r.acquire(); err != nil {
		return err
	}
	defer r.release()

	if err := r.source.Start(ctx); err != nil {
		return fmt.Errorf("starting camera: %w", err)
	}
	defer r.source.Stop()

	params := r.snapshotParams()
	var collected []gallery.Descriptor
	poseIndex, poseCount := 0, 0

	for poseIndex < len(params.PosePlan) && ctx.Err() == nil {
		pose := params.PosePlan[poseIndex]

		frame, err := r.source.Frame(ctx)
		if errors.Is(err, camera.ErrExhausted) || errors.Is(err, context.Canceled) {
			break
		}
		if err != nil {
			log.Printf("Warning: enrollment frame capture failed: %v", err)
			sleep(ctx, params.TickInterval)
			continue
		}

		canvas := overlay.ToRGBA(frame)
		overlay.DrawBanner(canvas, fmt.Sprintf("%s  (%d/%d this pose, %d total)",
			pose.Instruction, poseCount, params.SamplesPerPose, len(collected)))

		det, err := r.engine.DetectOne(ctx, frame)
		if err != nil {
			log.Printf("Warning: detection failed: %v", err)
			r.publishPreview(canvas)
			sleep(ctx, params.TickInterval)
			continue
		}

		if det != nil {
			overlay.DrawBox(canvas, det.Box)
			collected = append(collected, det.Descriptor)
			poseCount++
			if obs != nil {
				obs.EnrollProgress(EnrollProgress{
					PoseIndex: poseIndex,
					PoseLabel: pose.Label,
					PoseCount: poseCount,
					Total:     len(collected),
				})
			}

			if poseCount >= params.SamplesPerPose {
				poseIndex++
				poseCount = 0
				if poseIndex < len(params.PosePlan) {
					sleep(ctx, params.PosePause)
				}
			}
		}

		r.publishPreview(canvas)
		sleep(ctx, params.TickInterval)
	}

	if len(collected) == 0 {
		return ErrNoSamples
	}

	// Persist even when the run was cancelled part-way: the samples are
	// valid, and the store write must not be torn down with the loop.
	saveCtx := context.WithoutCancel(ctx)
	if err := r.gallery.Store().Put(saveCtx, name, collected); err != nil {
		return fmt.Errorf("saving enrollment: %w", err)
	}
	if err := r.gallery.RebuildIndex(saveCtx); err != nil {
		log.Printf("Warning: rebuilding candidate index: %v", err)
	}
	return nil
}

func (r *Recognizer) publishPreview(canvas *image.RGBA) {
	data, err := overlay.EncodeJPEG(canvas)
	if err != nil {
		log.Printf("Warning: encoding preview frame: %v", err)
		return
	}
	r.setPreview(data)
}

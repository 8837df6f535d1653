// Package recognizer drives the guided enrollment and live verification
// loops: capture a frame, ask the detector for a descriptor, update the
// gallery or match against it, and report progress to observers.
package recognizer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detector"
	"github.com/facegate/facegate/internal/gallery"
)

// ErrNoSamples is returned when an enrollment run finishes without a
// single successful detection. The gallery is left untouched.
var ErrNoSamples = errors.New("enrollment captured no usable face samples")

// ErrBusy is returned when a loop is started while another one holds the
// camera.
var ErrBusy = errors.New("recognizer is already running")

// Params control loop pacing and the enrollment plan. Tick and pause
// delays cap the capture rate; detection calls never overlap.
type Params struct {
	PosePlan       []config.Pose
	SamplesPerPose int
	TickInterval   time.Duration
	PosePause      time.Duration
}

// EnrollProgress is reported after every collected sample.
type EnrollProgress struct {
	PoseIndex int    `json:"pose_index"`
	PoseLabel string `json:"pose_label"`
	PoseCount int    `json:"pose_count"`
	Total     int    `json:"total"`
}

// VerifyResult is reported after every verification tick.
type VerifyResult struct {
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// EnrollObserver receives enrollment progress events.
type EnrollObserver interface {
	EnrollProgress(EnrollProgress)
}

// VerifyObserver receives per-tick verification results.
type VerifyObserver interface {
	VerifyResult(VerifyResult)
}

// EnrollObserverFunc adapts a function to EnrollObserver.
type EnrollObserverFunc func(EnrollProgress)

func (f EnrollObserverFunc) EnrollProgress(p EnrollProgress) { f(p) }

// VerifyObserverFunc adapts a function to VerifyObserver.
type VerifyObserverFunc func(VerifyResult)

func (f VerifyObserverFunc) VerifyResult(r VerifyResult) { f(r) }

// Recognizer owns the camera, the detection engine, and the gallery. Only
// one loop runs at a time; the camera is exclusive.
type Recognizer struct {
	source  camera.FrameSource
	engine  detector.Engine
	gallery *gallery.Gallery

	mu      sync.Mutex
	params  Params
	busy    bool
	preview []byte
}

// New creates a recognizer.
func New(source camera.FrameSource, engine detector.Engine, g *gallery.Gallery, params Params) *Recognizer {
	return &Recognizer{
		source:  source,
		engine:  engine,
		gallery: g,
		params:  params,
	}
}

// Gallery returns the recognizer's gallery.
func (r *Recognizer) Gallery() *gallery.Gallery { return r.gallery }

// SamplesPerPose returns the current per-pose sample count.
func (r *Recognizer) SamplesPerPose() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params.SamplesPerPose
}

// SetSamplesPerPose updates the per-pose sample count for future runs.
func (r *Recognizer) SetSamplesPerPose(n int) {
	r.mu.Lock()
	if n > 0 {
		r.params.SamplesPerPose = n
	}
	r.mu.Unlock()
}

// Preview returns the latest annotated frame as JPEG, or nil when no loop
// has rendered one yet.
func (r *Recognizer) Preview() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.preview
}

func (r *Recognizer) setPreview(jpeg []byte) {
	r.mu.Lock()
	r.preview = jpeg
	r.mu.Unlock()
}

func (r *Recognizer) snapshotParams() Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// acquire marks the recognizer busy for the duration of one loop.
func (r *Recognizer) acquire() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.busy {
		return ErrBusy
	}
	r.busy = true
	return nil
}

func (r *Recognizer) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

// sleep pauses for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

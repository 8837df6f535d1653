package recognizer

import (
	"context"
	"errors"
	"image"
	"path/filepath"
	"testing"
	"time"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detector"
	"github.com/facegate/facegate/internal/gallery"
)

// fakeSource serves a fixed number of blank frames, then reports
// exhaustion like a directory source does.
type fakeSource struct {
	frames  int
	served  int
	started bool
	stopped bool
}

func (s *fakeSource) Start(ctx context.Context) error {
	s.started = true
	return nil
}

func (s *fakeSource) Stop() { s.stopped = true }

func (s *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.served >= s.frames {
		return nil, camera.ErrExhausted
	}
	s.served++
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

// fakeEngine returns scripted detections, nil after the script runs out.
type fakeEngine struct {
	script []*detector.Detection
	calls  int
	err    error
}

func (e *fakeEngine) Warmup(ctx context.Context) error { return nil }

func (e *fakeEngine) DetectOne(ctx context.Context, frame image.Image) (*detector.Detection, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.calls >= len(e.script) {
		return nil, nil
	}
	det := e.script[e.calls]
	e.calls++
	return det, nil
}

func descriptorAt(d float32) gallery.Descriptor {
	desc := make(gallery.Descriptor, gallery.DescriptorDim)
	desc[0] = d
	return desc
}

func detectionAt(d float32) *detector.Detection {
	return &detector.Detection{
		Box:        image.Rect(10, 10, 140, 140),
		Score:      0.95,
		Descriptor: descriptorAt(d),
	}
}

func testParams() Params {
	return Params{
		PosePlan: []config.Pose{
			{Label: "front", Instruction: "Look straight at the camera"},
			{Label: "left", Instruction: "Turn your head to the left"},
		},
		SamplesPerPose: 2,
		TickInterval:   time.Millisecond,
		PosePause:      time.Millisecond,
	}
}

func testGallery(t *testing.T) *gallery.Gallery {
	t.Helper()
	store, err := gallery.OpenJSONStore(filepath.Join(t.TempDir(), "gallery.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return gallery.New(store, gallery.NewMatcher(0.5, 0.05), nil)
}

func TestEnroll_NoDetectionsLeavesGalleryUntouched(t *testing.T) {
	g := testGallery(t)
	r := New(&fakeSource{frames: 5}, &fakeEngine{}, g, testParams())

	err := r.Enroll(context.Background(), "Alice", nil)
	if !errors.Is(err, ErrNoSamples) {
		t.Fatalf("expected ErrNoSamples, got %v", err)
	}

	count, err := g.Store().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty gallery after failed enrollment, got %d people", count)
	}
}

func TestEnroll_CollectsFullPlan(t *testing.T) {
	g := testGallery(t)
	engine := &fakeEngine{script: []*detector.Detection{
		detectionAt(0.1), detectionAt(0.2), detectionAt(0.3), detectionAt(0.4),
	}}
	r := New(&fakeSource{frames: 10}, engine, g, testParams())

	var progress []EnrollProgress
	obs := EnrollObserverFunc(func(p EnrollProgress) { progress = append(progress, p) })

	if err := r.Enroll(context.Background(), "Alice", obs); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	person, err := g.Store().Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if person == nil {
		t.Fatal("expected alice enrolled")
	}
	if len(person.Descriptors) != 4 {
		t.Fatalf("expected 4 descriptors (2 poses x 2 samples), got %d", len(person.Descriptors))
	}

	if len(progress) != 4 {
		t.Fatalf("expected 4 progress events, got %d", len(progress))
	}
	for i, p := range progress {
		if p.Total != i+1 {
			t.Errorf("event %d: expected total %d, got %d", i, i+1, p.Total)
		}
	}
	if progress[0].PoseLabel != "front" || progress[3].PoseLabel != "left" {
		t.Errorf("expected pose order front..left, got %q..%q", progress[0].PoseLabel, progress[3].PoseLabel)
	}
}

func TestEnroll_ReplacesPriorEntry(t *testing.T) {
	g := testGallery(t)
	ctx := context.Background()
	if err := g.Store().Put(ctx, "Alice", []gallery.Descriptor{descriptorAt(0.9), descriptorAt(0.8)}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	engine := &fakeEngine{script: []*detector.Detection{
		detectionAt(0.1), detectionAt(0.1), detectionAt(0.1), detectionAt(0.1),
	}}
	r := New(&fakeSource{frames: 10}, engine, g, testParams())

	if err := r.Enroll(ctx, "Alice", nil); err != nil {
		t.Fatalf("enroll: %v", err)
	}

	person, err := g.Store().Get(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if person == nil {
		t.Fatal("expected alice enrolled")
	}
	if len(person.Descriptors) != 4 {
		t.Fatalf("expected old samples replaced, got %d descriptors", len(person.Descriptors))
	}
	for _, d := range person.Descriptors {
		if d[0] != 0.1 {
			t.Errorf("found stale descriptor component %v after re-enrollment", d[0])
		}
	}
}

func TestEnroll_EmptyNameRejected(t *testing.T) {
	r := New(&fakeSource{frames: 1}, &fakeEngine{}, testGallery(t), testParams())
	if err := r.Enroll(context.Background(), "  --  ", nil); err == nil {
		t.Error("expected error for blank person name")
	}
}

func TestEnroll_ExclusiveWithRunningLoop(t *testing.T) {
	r := New(&fakeSource{frames: 1}, &fakeEngine{}, testGallery(t), testParams())
	if err := r.acquire(); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer r.release()

	if err := r.Enroll(context.Background(), "Alice", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if err := r.Verify(context.Background(), nil); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
}

func TestVerify_NoFaceReportsUnknown(t *testing.T) {
	r := New(&fakeSource{frames: 1}, &fakeEngine{}, testGallery(t), testParams())

	var results []VerifyResult
	obs := VerifyObserverFunc(func(res VerifyResult) { results = append(results, res) })

	if err := r.Verify(context.Background(), obs); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result per frame, got %d", len(results))
	}
	if results[0].Name != gallery.Unknown || results[0].Distance != 0 {
		t.Errorf("expected %s with distance 0, got %+v", gallery.Unknown, results[0])
	}
}

func TestVerify_MatchesEnrolledPerson(t *testing.T) {
	g := testGallery(t)
	ctx := context.Background()
	if err := g.Store().Put(ctx, "Alice", []gallery.Descriptor{descriptorAt(0.1)}); err != nil {
		t.Fatalf("seeding store: %v", err)
	}

	engine := &fakeEngine{script: []*detector.Detection{detectionAt(0.1)}}
	r := New(&fakeSource{frames: 1}, engine, g, testParams())

	var results []VerifyResult
	obs := VerifyObserverFunc(func(res VerifyResult) { results = append(results, res) })

	if err := r.Verify(ctx, obs); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].Name != "Alice" {
		t.Errorf("expected match for Alice, got %+v", results[0])
	}
	if results[0].Distance != 0 {
		t.Errorf("expected exact match distance 0, got %v", results[0].Distance)
	}
}

func TestVerify_CancellationStopsLoop(t *testing.T) {
	// A source that never exhausts; the observer cancels after the first
	// result.
	r := New(&fakeSource{frames: 1 << 30}, &fakeEngine{}, testGallery(t), testParams())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results int
	obs := VerifyObserverFunc(func(VerifyResult) {
		results++
		cancel()
	})

	done := make(chan error, 1)
	go func() { done <- r.Verify(ctx, obs) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("verification loop did not stop after cancellation")
	}
	if results == 0 {
		t.Error("expected at least one result before cancellation")
	}
}

func TestEnroll_StopsCameraOnExit(t *testing.T) {
	source := &fakeSource{frames: 0}
	r := New(source, &fakeEngine{}, testGallery(t), testParams())

	_ = r.Enroll(context.Background(), "Alice", nil)

	if !source.started || !source.stopped {
		t.Errorf("camera lifecycle: started=%v stopped=%v", source.started, source.stopped)
	}
}

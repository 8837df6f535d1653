package camera

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func writeTestJPEG(t *testing.T, path string, width int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, 10))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, nil); err != nil {
		t.Fatalf("encoding %s: %v", path, err)
	}
}

func TestDirSource_FramesInOrder(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "b.jpg"), 20)
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 10)

	s := NewDirSource(dir, false)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	first, err := s.Frame(ctx)
	if err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if first.Bounds().Dx() != 10 {
		t.Errorf("expected a.jpg (width 10) first, got width %d", first.Bounds().Dx())
	}

	if _, err := s.Frame(ctx); err != nil {
		t.Fatalf("second frame: %v", err)
	}

	if _, err := s.Frame(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted after last frame, got %v", err)
	}
}

func TestDirSource_Loop(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 10)

	s := NewDirSource(dir, true)
	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	for range 5 {
		if _, err := s.Frame(ctx); err != nil {
			t.Fatalf("looping frame: %v", err)
		}
	}
}

func TestDirSource_EmptyDir(t *testing.T) {
	s := NewDirSource(t.TempDir(), false)
	if err := s.Start(context.Background()); err == nil {
		t.Error("expected error for directory without images")
	}
}

func TestDirSource_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeTestJPEG(t, filepath.Join(dir, "a.jpg"), 10)

	s := NewDirSource(dir, true)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Frame(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

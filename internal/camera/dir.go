package camera

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// DirSource serves frames from image files in a directory, in file-name
// order. It stands in for a live camera in development and tests.
type DirSource struct {
	dir  string
	loop bool

	mu    sync.Mutex
	files []string
	next  int
}

// NewDirSource creates a source over the given directory. When loop is
// true the file list wraps around instead of exhausting.
func NewDirSource(dir string, loop bool) *DirSource {
	return &DirSource{dir: dir, loop: loop}
}

// Start scans the directory for image files.
func (s *DirSource) Start(ctx context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("reading frame directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			files = append(files, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(files)

	s.mu.Lock()
	s.files = files
	s.next = 0
	s.mu.Unlock()

	if len(files) == 0 {
		return fmt.Errorf("no image files in %s", s.dir)
	}
	return nil
}

// Stop is a no-op for the directory source.
func (s *DirSource) Stop() {}

// Frame returns the next file's decoded image, ErrExhausted once the list
// is consumed and looping is disabled.
func (s *DirSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.next >= len(s.files) {
		if !s.loop || len(s.files) == 0 {
			s.mu.Unlock()
			return nil, ErrExhausted
		}
		s.next = 0
	}
	path := s.files[s.next]
	s.next++
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening frame %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding frame %s: %w", path, err)
	}
	return img, nil
}

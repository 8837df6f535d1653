package gallery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// jsonSchemaVersion tags the on-disk document so future format changes can
// be migrated instead of silently misread.
const jsonSchemaVersion = 1

type jsonDocument struct {
	Version int               `json:"version"`
	People  map[string]Person `json:"people"`
}

// JSONStore is the file-backed gallery: one JSON document holding every
// person, loaded fully at open and rewritten in full on every mutation.
// All mutations run behind a single mutex, so concurrent enrolls or an
// enroll racing a delete serialize instead of losing updates.
type JSONStore struct {
	mu     sync.RWMutex
	path   string
	people map[string]Person
}

// OpenJSONStore loads the gallery file at path. A missing file yields an
// empty store. A corrupt file is treated as empty with a logged warning;
// the damaged content is overwritten on the next mutation.
func OpenJSONStore(path string) (*JSONStore, error) {
	s := &JSONStore{
		path:   path,
		people: make(map[string]Person),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading gallery file: %w", err)
	}

	var doc jsonDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Printf("Warning: gallery file %s is corrupt, starting empty: %v", path, err)
		return s, nil
	}
	for name, p := range doc.People {
		p.Name = name
		s.people[name] = p
	}
	return s, nil
}

// List returns all enrolled people, sorted by normalized name.
func (s *JSONStore) List(ctx context.Context) ([]Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	people := make([]Person, 0, len(s.people))
	for _, p := range s.people {
		people = append(people, p)
	}
	sort.Slice(people, func(i, j int) bool { return people[i].Name < people[j].Name })
	return people, nil
}

// Get returns the person for the given name, or nil when not enrolled.
func (s *JSONStore) Get(ctx context.Context, name string) (*Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.people[NormalizeName(name)]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Put replaces any prior entry for the name and persists the whole store.
func (s *JSONStore) Put(ctx context.Context, display string, descriptors []Descriptor) error {
	key := NormalizeName(display)
	if key == "" {
		return fmt.Errorf("person name is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.people[key] = Person{Name: key, Display: display, Descriptors: descriptors}
	return s.persistLocked()
}

// Delete removes the person and persists. Unknown names are a no-op.
func (s *JSONStore) Delete(ctx context.Context, name string) error {
	key := NormalizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.people[key]; !ok {
		return nil
	}
	delete(s.people, key)
	return s.persistLocked()
}

// Count returns the number of enrolled people.
func (s *JSONStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.people), nil
}

// Close is a no-op for the file backend.
func (s *JSONStore) Close() error { return nil }

// persistLocked rewrites the full document atomically (temp file + rename).
// Callers must hold the write lock.
func (s *JSONStore) persistLocked() error {
	doc := jsonDocument{Version: jsonSchemaVersion, People: s.people}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding gallery: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating gallery directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".facegate-*.json")
	if err != nil {
		return fmt.Errorf("creating temp gallery file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing gallery: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp gallery file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing gallery file: %w", err)
	}
	return nil
}

// Package gallery stores enrolled face descriptors and matches live
// descriptors against them.
package gallery

import "context"

// DescriptorDim is the length of a face descriptor as produced by the
// embedding model. Stored descriptors are trusted to have this length.
const DescriptorDim = 128

// Unknown is the name reported when no enrolled person matches.
const Unknown = "Unknown"

// Descriptor is one face sample's embedding vector. Immutable once produced.
type Descriptor []float32

// Person is an enrolled person: the normalized key, the display name as
// entered at enrollment, and the descriptors collected across poses.
// Descriptor order is irrelevant to matching.
type Person struct {
	Name        string       `json:"-"`
	Display     string       `json:"display"`
	Descriptors []Descriptor `json:"descriptors"`
}

// Store is the persisted descriptor gallery. Put replaces the whole
// descriptor list for a person; there is no partial update.
type Store interface {
	// List returns all enrolled people.
	List(ctx context.Context) ([]Person, error)
	// Get returns the person for the given (unnormalized) name, or nil.
	Get(ctx context.Context, name string) (*Person, error)
	// Put replaces any prior entry for the person's name and persists.
	Put(ctx context.Context, display string, descriptors []Descriptor) error
	// Delete removes the person entirely. Deleting an unknown name is a no-op.
	Delete(ctx context.Context, name string) error
	// Count returns the number of enrolled people.
	Count(ctx context.Context) (int, error)
	// Close releases backend resources.
	Close() error
}

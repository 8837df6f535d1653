// Package detector wraps the external face detection and embedding model
// service. All computer-vision work happens on the model side; this package
// is the client glue that turns a camera frame into a descriptor.
package detector

import (
	"context"
	"image"

	"github.com/facegate/facegate/internal/gallery"
)

// Detection is one usable face found in a frame: its bounding box, the
// detection score, and the embedding descriptor.
type Detection struct {
	Box        image.Rectangle
	Score      float64
	Descriptor gallery.Descriptor
}

// Engine produces descriptors from frames. Warmup must complete before the
// first DetectOne call can succeed.
type Engine interface {
	// Warmup loads the model bundles on the service side.
	Warmup(ctx context.Context) error
	// DetectOne returns the most confident usable face in the frame, or
	// (nil, nil) when no face qualifies: nothing detected, or the face box
	// is narrower than the configured minimum.
	DetectOne(ctx context.Context, frame image.Image) (*Detection, error)
}

// Package camera provides frame sources for the recognizer: a V4L2 webcam
// for live capture and a directory reader for development and tests.
package camera

import (
	"context"
	"errors"
	"image"
)

// ErrExhausted is returned by finite sources (like DirSource) when no more
// frames are available.
var ErrExhausted = errors.New("camera: no more frames")

// FrameSource delivers frames to the capture loops. Start must be called
// before Frame; Stop releases the device and is safe to call twice.
type FrameSource interface {
	Start(ctx context.Context) error
	Stop()
	// Frame blocks until the next frame is available, the context is
	// cancelled, or the source is exhausted.
	Frame(ctx context.Context) (image.Image, error)
}

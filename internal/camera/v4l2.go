package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
)

// V4L2Source captures MJPEG frames from a Video4Linux2 device.
type V4L2Source struct {
	device string

	mu      sync.Mutex
	cam     *webcam.Webcam
	started bool
}

// NewV4L2Source creates a source for the given device path (e.g. /dev/video0).
func NewV4L2Source(device string) *V4L2Source {
	return &V4L2Source{device: device}
}

// Start opens the device, negotiates an MJPEG format, and begins streaming.
func (s *V4L2Source) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	cam, err := webcam.Open(s.device)
	if err != nil {
		return fmt.Errorf("opening camera %s: %w", s.device, err)
	}

	format, err := pickMJPEGFormat(cam)
	if err != nil {
		cam.Close()
		return err
	}

	width, height := pickLargestFrameSize(cam, format)
	if _, _, _, err := cam.SetImageFormat(format, width, height); err != nil {
		cam.Close()
		return fmt.Errorf("setting camera format: %w", err)
	}

	if err := cam.StartStreaming(); err != nil {
		cam.Close()
		return fmt.Errorf("starting camera stream: %w", err)
	}

	s.cam = cam
	s.started = true
	return nil
}

// Stop halts streaming and closes the device.
func (s *V4L2Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.cam.StopStreaming()
	s.cam.Close()
	s.cam = nil
	s.started = false
}

// Frame waits for the next frame and decodes it. Wait timeouts are retried
// until the context is cancelled.
func (s *V4L2Source) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	cam := s.cam
	s.mu.Unlock()

	if cam == nil {
		return nil, fmt.Errorf("camera not started")
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := cam.WaitForFrame(1)
		switch err.(type) {
		case nil:
		case *webcam.Timeout:
			continue
		default:
			return nil, fmt.Errorf("waiting for frame: %w", err)
		}

		data, err := cam.ReadFrame()
		if err != nil {
			return nil, fmt.Errorf("reading frame: %w", err)
		}
		if len(data) == 0 {
			continue
		}

		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			// Torn MJPEG frames happen on some devices, skip them.
			continue
		}
		return img, nil
	}
}

// pickMJPEGFormat selects a JPEG-compressed pixel format, which lets frames
// be decoded with the standard library.
func pickMJPEGFormat(cam *webcam.Webcam) (webcam.PixelFormat, error) {
	for format, desc := range cam.GetSupportedFormats() {
		if strings.Contains(strings.ToUpper(desc), "JPEG") {
			return format, nil
		}
	}
	return 0, fmt.Errorf("camera offers no JPEG format")
}

// pickLargestFrameSize returns the largest discrete frame size for the
// format, falling back to 640x480 when the driver reports none.
func pickLargestFrameSize(cam *webcam.Webcam, format webcam.PixelFormat) (uint32, uint32) {
	var width, height uint32 = 640, 480
	for _, size := range cam.GetSupportedFrameSizes(format) {
		if size.MaxWidth*size.MaxHeight > width*height {
			width, height = size.MaxWidth, size.MaxHeight
		}
	}
	return width, height
}

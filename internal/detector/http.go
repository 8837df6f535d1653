package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/gallery"
)

// modelBundles are the model files the service must have loaded before
// detection calls are served warm.
var modelBundles = []string{
	"ssd_mobilenetv1",
	"face_landmark_68",
	"face_recognition",
}

// Client talks to the face model service over HTTP.
type Client struct {
	baseURL   *url.URL
	client    *http.Client
	inputSize int

	mu            sync.RWMutex
	minConfidence float64
	minFaceWidth  int
}

// NewClient creates a model service client from the detector configuration.
func NewClient(cfg *config.DetectorConfig) (*Client, error) {
	if cfg.ModelURL == "" {
		return nil, fmt.Errorf("model service URL is required")
	}
	base, err := url.Parse(cfg.ModelURL)
	if err != nil {
		return nil, fmt.Errorf("parsing model service URL: %w", err)
	}

	return &Client{
		baseURL:       base,
		client:        &http.Client{Timeout: 30 * time.Second},
		inputSize:     cfg.InputSize,
		minConfidence: cfg.MinConfidence,
		minFaceWidth:  cfg.MinFaceWidth,
	}, nil
}

// MinConfidence returns the current minimum detection score.
func (c *Client) MinConfidence() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minConfidence
}

// SetMinConfidence updates the minimum detection score.
func (c *Client) SetMinConfidence(v float64) {
	c.mu.Lock()
	c.minConfidence = v
	c.mu.Unlock()
}

// MinFaceWidth returns the current minimum face box width in pixels.
func (c *Client) MinFaceWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minFaceWidth
}

// SetMinFaceWidth updates the minimum face box width in pixels.
func (c *Client) SetMinFaceWidth(v int) {
	c.mu.Lock()
	c.minFaceWidth = v
	c.mu.Unlock()
}

func (c *Client) resolve(path string) string {
	ref := &url.URL{Path: path}
	return c.baseURL.ResolveReference(ref).String()
}

// Warmup asks the service to load every model bundle. Any failure is
// returned immediately; detection is not usable until Warmup succeeds.
func (c *Client) Warmup(ctx context.Context) error {
	for _, bundle := range modelBundles {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve("/v1/models/"+bundle), nil)
		if err != nil {
			return fmt.Errorf("could not create request: %w", err)
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("loading model %s: %w", bundle, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("loading model %s: status %d", bundle, resp.StatusCode)
		}
	}
	return nil
}

// detectResponse is the service's wire format for a detect call.
type detectResponse struct {
	Faces []struct {
		Box        [4]float64 `json:"box"` // x1, y1, x2, y2 in frame pixels
		Score      float64    `json:"score"`
		Descriptor []float32  `json:"descriptor"`
	} `json:"faces"`
}

// DetectOne sends the JPEG-encoded frame to the service and returns the
// most confident face, or (nil, nil) when no face qualifies.
func (c *Client) DetectOne(ctx context.Context, frame image.Image) (*Detection, error) {
	c.mu.RLock()
	minConfidence := c.minConfidence
	minFaceWidth := c.minFaceWidth
	c.mu.RUnlock()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encoding frame: %w", err)
	}

	endpoint := c.resolve("/v1/detect") +
		"?input_size=" + strconv.Itoa(c.inputSize) +
		"&min_confidence=" + strconv.FormatFloat(minConfidence, 'f', -1, 64)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detect failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var result detectResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}

	best := -1
	for i, f := range result.Faces {
		if f.Score < minConfidence {
			continue
		}
		if best < 0 || f.Score > result.Faces[best].Score {
			best = i
		}
	}
	if best < 0 {
		return nil, nil
	}

	f := result.Faces[best]
	box := image.Rect(int(f.Box[0]), int(f.Box[1]), int(f.Box[2]), int(f.Box[3]))
	if box.Dx() < minFaceWidth {
		return nil, nil
	}

	return &Detection{
		Box:        box,
		Score:      f.Score,
		Descriptor: gallery.Descriptor(f.Descriptor),
	}, nil
}

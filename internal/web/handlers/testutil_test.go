package handlers

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/camera"
	"github.com/facegate/facegate/internal/config"
	"github.com/facegate/facegate/internal/detector"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/recognizer"
)

// fakeSource serves blank frames; a negative count never exhausts.
type fakeSource struct {
	frames int
	served int
}

func (s *fakeSource) Start(ctx context.Context) error { return nil }

func (s *fakeSource) Stop() {}

func (s *fakeSource) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.frames >= 0 && s.served >= s.frames {
		return nil, camera.ErrExhausted
	}
	s.served++
	return image.NewRGBA(image.Rect(0, 0, 64, 48)), nil
}

// fakeEngine reports the same detection on every frame, or no face at all.
type fakeEngine struct {
	detect bool
}

func (e *fakeEngine) Warmup(ctx context.Context) error { return nil }

func (e *fakeEngine) DetectOne(ctx context.Context, frame image.Image) (*detector.Detection, error) {
	if !e.detect {
		return nil, nil
	}
	desc := make(gallery.Descriptor, gallery.DescriptorDim)
	desc[0] = 0.1
	return &detector.Detection{
		Box:        image.Rect(10, 10, 140, 140),
		Score:      0.95,
		Descriptor: desc,
	}, nil
}

// newTestRecognizer builds a recognizer over a temp JSON gallery with fast
// loop timings.
func newTestRecognizer(t *testing.T, source camera.FrameSource, engine detector.Engine) *recognizer.Recognizer {
	t.Helper()
	store, err := gallery.OpenJSONStore(filepath.Join(t.TempDir(), "gallery.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	g := gallery.New(store, gallery.NewMatcher(0.5, 0.05), nil)
	return recognizer.New(source, engine, g, recognizer.Params{
		PosePlan:       []config.Pose{{Label: "front", Instruction: "Look straight at the camera"}},
		SamplesPerPose: 1,
		TickInterval:   time.Millisecond,
		PosePause:      time.Millisecond,
	})
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

// waitForStatus polls the session until it reaches the expected terminal
// state or the deadline passes.
func waitForStatus(t *testing.T, session *Session, want SessionStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if session.GetStatus() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session never reached status %s, stuck at %s", want, session.GetStatus())
}

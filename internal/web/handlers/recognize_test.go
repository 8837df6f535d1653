package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStartEnroll_InvalidBody(t *testing.T) {
	handler := NewRecognizeHandler(NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 0}, &fakeEngine{})))

	rec := httptest.NewRecorder()
	handler.StartEnroll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader("{")))
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, errInvalidRequestBody)
}

func TestStartEnroll_MissingName(t *testing.T) {
	handler := NewRecognizeHandler(NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 0}, &fakeEngine{})))

	rec := httptest.NewRecorder()
	handler.StartEnroll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader(`{}`)))
	assertStatusCode(t, rec, http.StatusBadRequest)
	assertJSONError(t, rec, "name is required")
}

func TestStartEnroll_CompletesAndStoresPerson(t *testing.T) {
	manager := NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 10}, &fakeEngine{detect: true}))
	handler := NewRecognizeHandler(manager)

	rec := httptest.NewRecorder()
	handler.StartEnroll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader(`{"name": "Alice"}`)))
	assertStatusCode(t, rec, http.StatusAccepted)

	var view Session
	parseJSONResponse(t, rec, &view)
	if view.ID == "" || view.Kind != SessionEnroll || view.Name != "Alice" {
		t.Fatalf("unexpected session: %+v", &view)
	}

	session := manager.GetSession(view.ID)
	if session == nil {
		t.Fatal("session not registered")
	}
	waitForStatus(t, session, SessionCompleted)

	person, err := manager.Recognizer().Gallery().Store().Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if person == nil || len(person.Descriptors) != 1 {
		t.Errorf("expected enrolled person with one sample, got %+v", person)
	}
}

func TestStartEnroll_FailsWithoutSamples(t *testing.T) {
	manager := NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 3}, &fakeEngine{detect: false}))
	handler := NewRecognizeHandler(manager)

	rec := httptest.NewRecorder()
	handler.StartEnroll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader(`{"name": "Alice"}`)))
	assertStatusCode(t, rec, http.StatusAccepted)

	var view Session
	parseJSONResponse(t, rec, &view)
	waitForStatus(t, manager.GetSession(view.ID), SessionFailed)
}

func TestStartVerify_ConflictsWhileRunning(t *testing.T) {
	// A source that never exhausts keeps the first session running.
	manager := NewSessionManager(newTestRecognizer(t, &fakeSource{frames: -1}, &fakeEngine{}))
	handler := NewRecognizeHandler(manager)

	rec := httptest.NewRecorder()
	handler.StartVerify(rec, httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil))
	assertStatusCode(t, rec, http.StatusAccepted)

	var first Session
	parseJSONResponse(t, rec, &first)

	rec = httptest.NewRecorder()
	handler.StartEnroll(rec, httptest.NewRequest(http.MethodPost, "/api/v1/enroll", strings.NewReader(`{"name": "Alice"}`)))
	assertStatusCode(t, rec, http.StatusConflict)

	// Cancel the running session; a new one may start afterwards.
	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+first.ID, nil),
		map[string]string{"sessionId": first.ID})
	rec = httptest.NewRecorder()
	handler.Cancel(rec, req)
	assertStatusCode(t, rec, http.StatusOK)

	waitForStatus(t, manager.GetSession(first.ID), SessionCancelled)
}

func TestSessionStatus_NotFound(t *testing.T) {
	handler := NewRecognizeHandler(NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 0}, &fakeEngine{})))

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ghost", nil),
		map[string]string{"sessionId": "ghost"})
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
}

func TestPreview_EmptyUntilFirstFrame(t *testing.T) {
	manager := NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 2}, &fakeEngine{}))
	handler := NewRecognizeHandler(manager)

	rec := httptest.NewRecorder()
	handler.Preview(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preview", nil))
	assertStatusCode(t, rec, http.StatusNoContent)

	startRec := httptest.NewRecorder()
	handler.StartVerify(startRec, httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil))

	var view Session
	parseJSONResponse(t, startRec, &view)
	waitForStatus(t, manager.GetSession(view.ID), SessionCompleted)

	rec = httptest.NewRecorder()
	handler.Preview(rec, httptest.NewRequest(http.MethodGet, "/api/v1/preview", nil))
	assertStatusCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg preview, got %q", ct)
	}
}

func TestSessionEvents_StreamsInitialStatus(t *testing.T) {
	manager := NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 1}, &fakeEngine{}))
	handler := NewRecognizeHandler(manager)

	startRec := httptest.NewRecorder()
	handler.StartVerify(startRec, httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil))

	var view Session
	parseJSONResponse(t, startRec, &view)
	waitForStatus(t, manager.GetSession(view.ID), SessionCompleted)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+view.ID+"/events", nil).WithContext(ctx),
		map[string]string{"sessionId": view.ID})
	rec := httptest.NewRecorder()
	handler.Events(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: status") {
		t.Errorf("expected initial status event, got %q", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected SSE content type, got %q", ct)
	}
}

func TestSessionEvents_UnknownSession(t *testing.T) {
	handler := NewRecognizeHandler(NewSessionManager(newTestRecognizer(t, &fakeSource{frames: 0}, &fakeEngine{})))

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/sessions/ghost/events", nil),
		map[string]string{"sessionId": "ghost"})
	rec := httptest.NewRecorder()
	handler.Events(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
}

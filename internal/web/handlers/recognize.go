package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// RecognizeHandler exposes enrollment and verification sessions over HTTP.
type RecognizeHandler struct {
	sessions *SessionManager
}

// NewRecognizeHandler creates a recognize handler.
func NewRecognizeHandler(sessions *SessionManager) *RecognizeHandler {
	return &RecognizeHandler{sessions: sessions}
}

// StartEnroll handles POST /enroll - starts a guided enrollment session.
func (h *RecognizeHandler) StartEnroll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	session, err := h.sessions.StartEnroll(req.Name)
	if err != nil {
		if errors.Is(err, ErrSessionActive) {
			respondError(w, http.StatusConflict, "another session is already running")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start enrollment")
		return
	}

	log.Printf("Started enrollment session %s for %s", session.ID, sanitizeForLog(req.Name))
	respondJSON(w, http.StatusAccepted, session.snapshot())
}

// StartVerify handles POST /verify - starts a verification session.
func (h *RecognizeHandler) StartVerify(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.StartVerify()
	if err != nil {
		if errors.Is(err, ErrSessionActive) {
			respondError(w, http.StatusConflict, "another session is already running")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to start verification")
		return
	}

	log.Printf("Started verification session %s", session.ID)
	respondJSON(w, http.StatusAccepted, session.snapshot())
}

// Status handles GET /sessions/{sessionId} - returns the session state.
func (h *RecognizeHandler) Status(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetSession(chi.URLParam(r, "sessionId"))
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, session.snapshot())
}

// Events handles GET /sessions/{sessionId}/events - streams session events
// over SSE.
func (h *RecognizeHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			if session := h.sessions.GetSession(id); session != nil {
				return session
			}
			return nil
		},
		func(job SSEJob) any {
			return job.(*Session).snapshot()
		})
}

// Cancel handles DELETE /sessions/{sessionId} - cancels a running session.
func (h *RecognizeHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetSession(chi.URLParam(r, "sessionId"))
	if session == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}

	session.Cancel()
	respondJSON(w, http.StatusOK, session.snapshot())
}

// Preview handles GET /preview - returns the latest annotated camera frame.
func (h *RecognizeHandler) Preview(w http.ResponseWriter, r *http.Request) {
	frame := h.sessions.Recognizer().Preview()
	if frame == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

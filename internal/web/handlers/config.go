package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/facegate/facegate/internal/detector"
	"github.com/facegate/facegate/internal/gallery"
	"github.com/facegate/facegate/internal/recognizer"
)

// ConfigHandler exposes the runtime-tunable recognition settings. Changes
// apply to the running process only; restart restores the configured
// values.
type ConfigHandler struct {
	matcher    *gallery.Matcher
	detector   *detector.Client
	recognizer *recognizer.Recognizer
}

// NewConfigHandler creates a config handler. The detector client may be
// nil when the engine has no runtime tuning.
func NewConfigHandler(matcher *gallery.Matcher, det *detector.Client, rec *recognizer.Recognizer) *ConfigHandler {
	return &ConfigHandler{matcher: matcher, detector: det, recognizer: rec}
}

type configView struct {
	DistanceThreshold float64  `json:"distance_threshold"`
	MatchMargin       float64  `json:"match_margin"`
	MinConfidence     *float64 `json:"min_confidence,omitempty"`
	MinFaceWidth      *int     `json:"min_face_width,omitempty"`
	SamplesPerPose    int      `json:"samples_per_pose"`
}

// Get handles GET /config - returns the active recognition settings.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	view := configView{
		DistanceThreshold: h.matcher.Threshold(),
		MatchMargin:       h.matcher.Margin(),
		SamplesPerPose:    h.recognizer.SamplesPerPose(),
	}
	if h.detector != nil {
		mc := h.detector.MinConfidence()
		mw := h.detector.MinFaceWidth()
		view.MinConfidence = &mc
		view.MinFaceWidth = &mw
	}
	respondJSON(w, http.StatusOK, view)
}

// Update handles PUT /config - adjusts recognition settings at runtime.
// Absent fields keep their current value.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DistanceThreshold *float64 `json:"distance_threshold"`
		MatchMargin       *float64 `json:"match_margin"`
		MinConfidence     *float64 `json:"min_confidence"`
		MinFaceWidth      *int     `json:"min_face_width"`
		SamplesPerPose    *int     `json:"samples_per_pose"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	if req.DistanceThreshold != nil {
		if *req.DistanceThreshold <= 0 {
			respondError(w, http.StatusBadRequest, "distance_threshold must be positive")
			return
		}
		h.matcher.SetThreshold(*req.DistanceThreshold)
	}
	if req.MatchMargin != nil {
		if *req.MatchMargin < 0 {
			respondError(w, http.StatusBadRequest, "match_margin must not be negative")
			return
		}
		h.matcher.SetMargin(*req.MatchMargin)
	}
	if req.MinConfidence != nil && h.detector != nil {
		if *req.MinConfidence <= 0 || *req.MinConfidence > 1 {
			respondError(w, http.StatusBadRequest, "min_confidence must be in (0, 1]")
			return
		}
		h.detector.SetMinConfidence(*req.MinConfidence)
	}
	if req.MinFaceWidth != nil && h.detector != nil {
		if *req.MinFaceWidth <= 0 {
			respondError(w, http.StatusBadRequest, "min_face_width must be positive")
			return
		}
		h.detector.SetMinFaceWidth(*req.MinFaceWidth)
	}
	if req.SamplesPerPose != nil {
		if *req.SamplesPerPose <= 0 {
			respondError(w, http.StatusBadRequest, "samples_per_pose must be positive")
			return
		}
		h.recognizer.SetSamplesPerPose(*req.SamplesPerPose)
	}

	log.Printf("Updated runtime recognition settings")
	h.Get(w, r)
}

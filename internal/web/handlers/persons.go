package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/facegate/facegate/internal/gallery"
)

// PersonsHandler exposes the enrolled gallery over HTTP.
type PersonsHandler struct {
	gallery *gallery.Gallery
}

// NewPersonsHandler creates a persons handler.
func NewPersonsHandler(g *gallery.Gallery) *PersonsHandler {
	return &PersonsHandler{gallery: g}
}

// personView is the API shape of an enrolled person. Descriptors are
// intentionally omitted; they are biometric data and large.
type personView struct {
	Name    string `json:"name"`
	Display string `json:"display"`
	Samples int    `json:"samples"`
}

func toPersonView(p gallery.Person) personView {
	return personView{
		Name:    p.Name,
		Display: p.Display,
		Samples: len(p.Descriptors),
	}
}

// List handles GET /persons - lists enrolled persons.
func (h *PersonsHandler) List(w http.ResponseWriter, r *http.Request) {
	people, err := h.gallery.Store().List(r.Context())
	if err != nil {
		log.Printf("Listing persons failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list persons")
		return
	}

	views := make([]personView, 0, len(people))
	for _, p := range people {
		views = append(views, toPersonView(p))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"persons": views,
		"count":   len(views),
	})
}

// Get handles GET /persons/{name} - returns one enrolled person.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	person, err := h.gallery.Store().Get(r.Context(), name)
	if err != nil {
		log.Printf("Getting person %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to get person")
		return
	}
	if person == nil {
		respondError(w, http.StatusNotFound, "person not found")
		return
	}
	respondJSON(w, http.StatusOK, toPersonView(*person))
}

// Delete handles DELETE /persons/{name} - removes a person from the
// gallery and refreshes the candidate index.
func (h *PersonsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.gallery.Store().Delete(r.Context(), name); err != nil {
		log.Printf("Deleting person %s failed: %v", sanitizeForLog(name), err)
		respondError(w, http.StatusInternalServerError, "failed to delete person")
		return
	}
	if err := h.gallery.RebuildIndex(r.Context()); err != nil {
		log.Printf("Warning: rebuilding candidate index: %v", err)
	}

	log.Printf("Deleted person %s from gallery", sanitizeForLog(name))
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

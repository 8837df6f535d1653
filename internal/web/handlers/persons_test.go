package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/facegate/facegate/internal/gallery"
)

func newTestGallery(t *testing.T) *gallery.Gallery {
	t.Helper()
	store, err := gallery.OpenJSONStore(filepath.Join(t.TempDir(), "gallery.json"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	return gallery.New(store, gallery.NewMatcher(0.5, 0.05), nil)
}

func seedPerson(t *testing.T, g *gallery.Gallery, name string, samples int) {
	t.Helper()
	descriptors := make([]gallery.Descriptor, samples)
	for i := range descriptors {
		descriptors[i] = make(gallery.Descriptor, gallery.DescriptorDim)
	}
	if err := g.Store().Put(context.Background(), name, descriptors); err != nil {
		t.Fatalf("seeding %s: %v", name, err)
	}
}

func TestPersonsList(t *testing.T) {
	g := newTestGallery(t)
	seedPerson(t, g, "Alice", 3)
	seedPerson(t, g, "Bob", 5)
	handler := NewPersonsHandler(g)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/persons", nil))

	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Persons []personView `json:"persons"`
		Count   int          `json:"count"`
	}
	parseJSONResponse(t, rec, &resp)

	if resp.Count != 2 || len(resp.Persons) != 2 {
		t.Fatalf("expected 2 persons, got %+v", resp)
	}
	if resp.Persons[0].Name != "alice" || resp.Persons[0].Display != "Alice" || resp.Persons[0].Samples != 3 {
		t.Errorf("unexpected first person: %+v", resp.Persons[0])
	}
}

func TestPersonsList_Empty(t *testing.T) {
	handler := NewPersonsHandler(newTestGallery(t))

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/persons", nil))

	assertStatusCode(t, rec, http.StatusOK)

	var resp struct {
		Persons []personView `json:"persons"`
		Count   int          `json:"count"`
	}
	parseJSONResponse(t, rec, &resp)
	if resp.Count != 0 || resp.Persons == nil {
		t.Errorf("expected empty list, got %+v", resp)
	}
}

func TestPersonsGet(t *testing.T) {
	g := newTestGallery(t)
	seedPerson(t, g, "Jan Novák", 4)
	handler := NewPersonsHandler(g)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/persons/jan-novak", nil),
		map[string]string{"name": "jan-novak"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	var person personView
	parseJSONResponse(t, rec, &person)
	if person.Name != "jan novak" || person.Samples != 4 {
		t.Errorf("unexpected person: %+v", person)
	}
}

func TestPersonsGet_NotFound(t *testing.T) {
	handler := NewPersonsHandler(newTestGallery(t))

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodGet, "/api/v1/persons/ghost", nil),
		map[string]string{"name": "ghost"})
	rec := httptest.NewRecorder()
	handler.Get(rec, req)

	assertStatusCode(t, rec, http.StatusNotFound)
	assertJSONError(t, rec, "person not found")
}

func TestPersonsDelete(t *testing.T) {
	g := newTestGallery(t)
	seedPerson(t, g, "Alice", 3)
	handler := NewPersonsHandler(g)

	req := requestWithChiParams(
		httptest.NewRequest(http.MethodDelete, "/api/v1/persons/alice", nil),
		map[string]string{"name": "alice"})
	rec := httptest.NewRecorder()
	handler.Delete(rec, req)

	assertStatusCode(t, rec, http.StatusOK)

	count, err := g.Store().Count(context.Background())
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected empty gallery after delete, got %d", count)
	}
}

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestAliasToV1ServesBarePaths(t *testing.T) {
	mux := chi.NewMux()
	mux.Post("/api/v1/opcheck", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	mux.Get("/api/v1/opcheck/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(chi.URLParam(r, "id")))
	})

	alias := aliasToV1(mux)
	mux.Handle("/opcheck", alias)
	mux.Handle("/opcheck/*", alias)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/opcheck", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /opcheck: want 202 via the versioned tree, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/opcheck/jobs/j-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /opcheck/jobs/j-1: want 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "j-1" {
		t.Fatalf("url param lost in re-dispatch: want %q, got %q", "j-1", got)
	}
}

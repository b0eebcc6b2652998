// Package http exposes the audit trail to operators
package http

import (
	stdhttp "net/http"
	"strconv"

	"opscreen/internal/modkit/httpkit"
	"opscreen/internal/services/audit/domain"

	"github.com/go-chi/chi/v5"
)

// Register mounts the audit read endpoints. Both are admin-only
func Register(r httpkit.Router, q domain.QueryPort) {
	h := &handlers{q: q}

	httpkit.Get(r, "/recent", h.recent)
	httpkit.Get(r, "/entity/{entity_key}", h.byFingerprint)
}

type handlers struct{ q domain.QueryPort }

// @Summary Recent audit events (admin)
// @Tags Audit
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.Event "ok"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Router /audit/recent [get]
func (h *handlers) recent(r *stdhttp.Request) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.q.ListRecent(r.Context(), limit)
}

// @Summary Audit trail for one entity key (admin)
// @Tags Audit
// @Produce json
// @Param entity_key path string true "Entity key"
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.Event "ok"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Router /audit/entity/{entity_key} [get]
func (h *handlers) byFingerprint(r *stdhttp.Request) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.q.ListByFingerprint(r.Context(), chi.URLParam(r, "entity_key"), limit)
}

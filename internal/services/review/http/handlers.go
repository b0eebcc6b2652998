// Package http provides the review endpoints
package http

import (
	stdhttp "net/http"
	"strconv"

	"opscreen/internal/modkit/httpkit"
	pnet "opscreen/internal/platform/net"
	"opscreen/internal/services/review/domain"

	"github.com/go-chi/chi/v5"
)

// Register mounts the review endpoints
func Register(r httpkit.Router, s domain.ReviewPort) {
	h := &handlers{svc: s}

	httpkit.Get(r, "/queue", h.queue)
	httpkit.Post(r, "/{entity_key}/claim", h.claim)
	httpkit.PostJSON[domain.CompleteInput](r, "/{entity_key}/complete", h.complete)
}

type handlers struct{ svc domain.ReviewPort }

func actorOf(r *stdhttp.Request) string {
	if uid := pnet.UserID(r.Context()); uid != "" {
		return uid
	}
	return "unknown"
}

// @Summary Unreviewed potential matches, oldest first
// @Tags Review
// @Produce json
// @Param limit query int false "Max rows"
// @Success 200 {array} domain.View "ok"
// @Router /review/queue [get]
func (h *handlers) queue(r *stdhttp.Request) (any, error) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return h.svc.Queue(r.Context(), limit)
}

// @Summary Claim an evidence row for review
// @Tags Review
// @Produce json
// @Param entity_key path string true "Entity key"
// @Success 200 {object} domain.View "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Failure 409 {object} httpkit.Envelope "wrong state"
// @Router /review/{entity_key}/claim [post]
func (h *handlers) claim(r *stdhttp.Request) (any, error) {
	return h.svc.Claim(r.Context(), chi.URLParam(r, "entity_key"), actorOf(r))
}

// @Summary Complete a claimed review with a structured outcome
// @Tags Review
// @Accept json
// @Produce json
// @Param entity_key path string true "Entity key"
// @Param payload body domain.CompleteInput true "Outcome"
// @Success 200 {object} domain.View "ok"
// @Failure 409 {object} httpkit.Envelope "wrong state"
// @Failure 400 {object} httpkit.Envelope "invalid outcome or notes"
// @Router /review/{entity_key}/complete [post]
func (h *handlers) complete(r *stdhttp.Request, in domain.CompleteInput) (any, error) {
	return h.svc.Complete(r.Context(), chi.URLParam(r, "entity_key"), actorOf(r), in)
}

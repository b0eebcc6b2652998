// Package http provides http transport for screening
package http

import (
	stdhttp "net/http"

	"opscreen/internal/modkit/httpkit"
	pnet "opscreen/internal/platform/net"
	"opscreen/internal/services/screening/domain"

	"github.com/go-chi/chi/v5"
)

// Register mounts the screening endpoints on the given router
func Register(r httpkit.Router, s domain.DispatcherPort) {
	h := &handlers{svc: s}

	// submit; response body keys are the frozen wire contract
	httpkit.PostJSON[domain.ScreenInput](r, "/", h.submit)

	// queue state, joined with the result when completed
	httpkit.Get(r, "/jobs/{job_id}", h.jobStatus)

	// bounded evidence search for operators
	httpkit.PostJSON[domain.SearchInput](r, "/entities/search", h.search)

	// full stored result for one entity key
	httpkit.Get(r, "/entities/{entity_key}", h.getByKey)

	// manual false-positive override; never extends validity
	httpkit.PostJSON[domain.FalsePositiveInput](r, "/override/{entity_key}", h.override)
}

type handlers struct{ svc domain.DispatcherPort }

func actorOf(r *stdhttp.Request, fallback string) string {
	if uid := pnet.UserID(r.Context()); uid != "" {
		return uid
	}
	return fallback
}

// @Summary Submit a screening request
// @Tags Screening
// @Accept json
// @Produce json
// @Param payload body domain.ScreenInput true "Subject"
// @Success 200 {object} domain.ScreenResult "resolved"
// @Success 202 {object} domain.QueuedOutput "queued"
// @Failure 400 {object} httpkit.Envelope "invalid input"
// @Router /opcheck [post]
func (h *handlers) submit(r *stdhttp.Request, in domain.ScreenInput) (any, error) {
	out, err := h.svc.Screen(r.Context(), in, actorOf(r, in.Requestor))
	if err != nil {
		return nil, err
	}
	if out.HTTPStatus == stdhttp.StatusAccepted {
		return httpkit.Accepted(out.Queued, out.Queued.Location), nil
	}
	// raw body so the frozen keys stay top-level
	return httpkit.RawOK(out.Result), nil
}

// @Summary Screening job status
// @Tags Screening
// @Produce json
// @Param job_id path string true "Job id"
// @Success 200 {object} domain.JobStatusOutput "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /opcheck/jobs/{job_id} [get]
func (h *handlers) jobStatus(r *stdhttp.Request) (any, error) {
	return h.svc.JobStatus(r.Context(), chi.URLParam(r, "job_id"))
}

// @Summary Search screened entities by name
// @Tags Screening
// @Accept json
// @Produce json
// @Param payload body domain.SearchInput true "Query"
// @Success 200 {array} domain.EvidenceSummary "ok"
// @Router /opcheck/entities/search [post]
func (h *handlers) search(r *stdhttp.Request, in domain.SearchInput) (any, error) {
	return h.svc.Search(r.Context(), in)
}

// @Summary Stored screening result for one entity key
// @Tags Screening
// @Produce json
// @Param entity_key path string true "Entity key"
// @Success 200 {object} domain.ScreenResult "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /opcheck/entities/{entity_key} [get]
func (h *handlers) getByKey(r *stdhttp.Request) (any, error) {
	res, err := h.svc.GetByKey(r.Context(), chi.URLParam(r, "entity_key"))
	if err != nil {
		return nil, err
	}
	return httpkit.RawOK(res), nil
}

// @Summary Record a false-positive override
// @Tags Screening
// @Accept json
// @Produce json
// @Param entity_key path string true "Entity key"
// @Param payload body domain.FalsePositiveInput true "Override"
// @Success 200 {object} domain.EvidenceSummary "ok"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /opcheck/override/{entity_key} [post]
func (h *handlers) override(r *stdhttp.Request, in domain.FalsePositiveInput) (any, error) {
	return h.svc.MarkFalsePositive(r.Context(), chi.URLParam(r, "entity_key"), in.Reason, actorOf(r, "unknown"))
}

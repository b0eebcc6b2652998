package http

import (
	"crypto/subtle"
	"encoding/json"
	"net"
	stdhttp "net/http"
	"strings"

	"opscreen/internal/modkit/httpkit"
	perr "opscreen/internal/platform/errors"
	phttp "opscreen/internal/platform/net/http"
	"opscreen/internal/platform/net/http/bind"
	"opscreen/internal/platform/net/middleware"
	"opscreen/internal/services/screening/domain"
)

// MaxBulkItems bounds one bulk submission
const MaxBulkItems = 500

// InternalOptions guards the service-to-service enqueue surface.
// With neither an API key nor an allowlist the surface stays disabled
type InternalOptions struct {
	APIKey      string
	IPAllowlist middleware.TrustedProxies
	Proxies     middleware.TrustedProxies
}

// Enabled reports whether any guard is configured
func (o InternalOptions) Enabled() bool {
	return o.APIKey != "" || !o.IPAllowlist.Empty()
}

// RegisterInternal mounts the single and bulk enqueue endpoints
func RegisterInternal(r httpkit.Router, enq domain.EnqueuerPort, opt InternalOptions) {
	h := &internalHandlers{enq: enq, opt: opt}

	httpkit.PostJSON[domain.ScreenInput](r, "/", h.enqueue)
	httpkit.Post(r, "/bulk", h.bulk)
}

type internalHandlers struct {
	enq domain.EnqueuerPort
	opt InternalOptions
}

// guard admits a caller by API key, allowlisted peer IP, or both.
// An unconfigured surface answers 503 for every request
func (h *internalHandlers) guard(r *stdhttp.Request) error {
	if !h.opt.Enabled() {
		return perr.Unavailablef("internal screening API is not configured")
	}

	if h.opt.APIKey != "" {
		key := r.Header.Get("X-Internal-Screening-Key")
		if key == "" {
			if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
				key = strings.TrimPrefix(bearer, "Bearer ")
			}
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(h.opt.APIKey)) == 1 {
			return nil
		}
		if h.opt.IPAllowlist.Empty() {
			return perr.Unauthorizedf("invalid internal API key")
		}
	}

	ip := net.ParseIP(middleware.ClientIP(r, h.opt.Proxies))
	if ip != nil && h.opt.IPAllowlist.Contains(ip) {
		return nil
	}
	return perr.Unauthorizedf("caller not allowed")
}

// @Summary Enqueue one screening job
// @Tags Internal
// @Accept json
// @Produce json
// @Param payload body domain.ScreenInput true "Subject"
// @Success 200 {object} domain.BulkItemOutcome "ok"
// @Failure 503 {object} httpkit.Envelope "not configured"
// @Router /internal/screening/jobs [post]
func (h *internalHandlers) enqueue(r *stdhttp.Request, in domain.ScreenInput) (any, error) {
	if err := h.guard(r); err != nil {
		return nil, err
	}
	out, err := h.enq.Enqueue(r.Context(), in, "", false)
	if err != nil {
		return nil, err
	}
	return outcomeOf(out), nil
}

// @Summary Enqueue up to 500 screening jobs
// @Tags Internal
// @Accept json
// @Produce json
// @Param payload body []domain.ScreenInput true "Subjects"
// @Success 200 {array} domain.BulkItemOutcome "per-item outcomes"
// @Failure 503 {object} httpkit.Envelope "not configured"
// @Router /internal/screening/jobs/bulk [post]
func (h *internalHandlers) bulk(r *stdhttp.Request) (any, error) {
	if err := h.guard(r); err != nil {
		return nil, err
	}

	// the body is a bare array, so items are decoded here and validated
	// one by one; a bad item becomes a per-item error outcome
	var items []domain.ScreenInput
	dec := json.NewDecoder(stdhttp.MaxBytesReader(nil, r.Body, 4<<20))
	if err := dec.Decode(&items); err != nil {
		return nil, perr.JSONErrf("invalid JSON: %v", err)
	}
	if len(items) == 0 {
		return nil, perr.WithField(perr.InvalidArgf("bulk body must not be empty"), "payload")
	}
	if len(items) > MaxBulkItems {
		return nil, perr.WithField(
			perr.InvalidArgf("bulk body exceeds %d items", MaxBulkItems), "payload")
	}

	v := bind.Get().Validator
	out := make([]domain.BulkItemOutcome, 0, len(items))
	for _, in := range items {
		if err := v.Struct(in); err != nil {
			_, msg := bind.ValidationFieldAndMessage(err)
			out = append(out, domain.BulkItemOutcome{Status: "error", Error: msg})
			continue
		}
		res, err := h.enq.Enqueue(r.Context(), in, "", false)
		if err != nil {
			out = append(out, domain.BulkItemOutcome{Status: "error", Error: err.Error()})
			continue
		}
		out = append(out, outcomeOf(res))
	}
	return phttp.RawOK(out), nil
}

func outcomeOf(out domain.EnqueueOutcome) domain.BulkItemOutcome {
	return domain.BulkItemOutcome{Status: out.Kind, JobID: out.JobID}
}

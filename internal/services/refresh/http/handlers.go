// Package http provides the refresh trigger endpoint
package http

import (
	"crypto/subtle"
	stdhttp "net/http"
	"strings"

	"opscreen/internal/modkit/httpkit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/net/http/bind"
	"opscreen/internal/services/refresh/domain"
	rsvc "opscreen/internal/services/refresh/service"
)

// Options controls who may trigger a refresh. A matching key or an
// authenticated admin both pass; anything else is rejected
type Options struct {
	APIKey string
}

// Register mounts the refresh trigger
func Register(r httpkit.Router, s *rsvc.Service, o Options) {
	h := &handlers{svc: s, opts: o}
	httpkit.Post(r, "/", h.trigger)
}

type handlers struct {
	svc  *rsvc.Service
	opts Options
}

// @Summary Refresh watchlists and re-screen affected entities
// @Tags Refresh
// @Accept json
// @Produce json
// @Param payload body domain.RefreshInput false "Options"
// @Success 200 {object} domain.RefreshOutput "ok"
// @Failure 401 {object} httpkit.Envelope "unauthorized"
// @Failure 409 {object} httpkit.Envelope "run in progress"
// @Router /refresh_opensanctions [post]
func (h *handlers) trigger(r *stdhttp.Request) (any, error) {
	actor, err := h.authorize(r)
	if err != nil {
		return nil, err
	}
	in, err := bind.ParseJSON[domain.RefreshInput](r, bind.JSONOptions{
		MaxBytes:        1 << 20,
		DisallowUnknown: true,
		AllowEmptyBody:  true,
	})
	if err != nil {
		return nil, err
	}
	return h.svc.Run(r.Context(), in, actor)
}

// authorize accepts either the configured refresh key or a bearer-authed
// admin. The auth middleware runs before us, so role checks read the context
func (h *handlers) authorize(r *stdhttp.Request) (string, error) {
	if h.opts.APIKey != "" {
		key := r.Header.Get("X-Refresh-Key")
		if key == "" {
			if authz := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				key = strings.TrimSpace(authz[len("bearer "):])
			}
		}
		if key != "" && subtle.ConstantTimeCompare([]byte(key), []byte(h.opts.APIKey)) == 1 {
			return "refresh_api_key", nil
		}
	}
	if err := httpkit.RequireAdmin(r); err == nil {
		return httpkit.MustUser(r), nil
	}
	return "", perr.Unauthorizedf("refresh requires an API key or admin credentials")
}

// Package http provides the auth endpoints
package http

import (
	"encoding/json"
	stdhttp "net/http"
	"strconv"

	"opscreen/internal/modkit/httpkit"
	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/net/middleware"
	"opscreen/internal/services/auth/domain"

	"github.com/go-chi/chi/v5"
)

// MaxImportItems bounds one user import
const MaxImportItems = 500

// Options carries transport concerns the handlers need
type Options struct {
	Proxies middleware.TrustedProxies
}

// RegisterPublic mounts the endpoints that work without a token
func RegisterPublic(r httpkit.Router, a domain.AuthnPort, o Options) {
	h := &handlers{authn: a, opts: o}

	httpkit.Get(r, "/config", h.config)
	httpkit.PostJSON[domain.LoginInput](r, "/login", h.login)
	httpkit.PostJSON[domain.SignupInput](r, "/signup", h.signup)
}

// RegisterProtected mounts the endpoints that require a bearer token.
// Admin-only routes check the role per request
func RegisterProtected(r httpkit.Router, a domain.AuthnPort, adm domain.AdminPort, o Options) {
	h := &handlers{authn: a, admin: adm, opts: o}

	httpkit.Get(r, "/me", h.me)
	httpkit.PostJSON[domain.ChangePasswordInput](r, "/change-password", h.changePassword)

	httpkit.Get(r, "/users", h.listUsers)
	httpkit.PostJSON[domain.CreateUserInput](r, "/users", h.createUser)
	httpkit.PatchJSON[domain.UpdateUserInput](r, "/users/{id}", h.updateUser)
	httpkit.Post(r, "/users/import", h.importUsers)
}

type handlers struct {
	authn domain.AuthnPort
	admin domain.AdminPort
	opts  Options
}

// @Summary Whether login is required
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.ConfigOutput "ok"
// @Router /auth/config [get]
func (h *handlers) config(r *stdhttp.Request) (any, error) {
	return domain.ConfigOutput{LoginRequired: h.authn.LoginRequired()}, nil
}

// @Summary Log in with email and password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body domain.LoginInput true "Credentials"
// @Success 200 {object} domain.LoginOutput "ok"
// @Failure 401 {object} httpkit.Envelope "invalid credentials"
// @Failure 429 {object} httpkit.Envelope "backoff in force"
// @Router /auth/login [post]
func (h *handlers) login(r *stdhttp.Request, in domain.LoginInput) (any, error) {
	return h.authn.Login(r.Context(), in, middleware.ClientIP(r, h.opts.Proxies))
}

// @Summary Self signup with immediate password choice
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body domain.SignupInput true "Account"
// @Success 200 {object} domain.LoginOutput "ok"
// @Failure 403 {object} httpkit.Envelope "signup disabled or domain not allowed"
// @Router /auth/signup [post]
func (h *handlers) signup(r *stdhttp.Request, in domain.SignupInput) (any, error) {
	return h.authn.Signup(r.Context(), in, middleware.ClientIP(r, h.opts.Proxies))
}

// @Summary The authenticated account
// @Tags Auth
// @Produce json
// @Success 200 {object} domain.UserView "ok"
// @Failure 401 {object} httpkit.Envelope "unauthorized"
// @Router /auth/me [get]
func (h *handlers) me(r *stdhttp.Request) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	return h.authn.Me(r.Context(), uid)
}

// @Summary Rotate the caller's password
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body domain.ChangePasswordInput true "Passwords"
// @Success 200 {object} httpkit.Envelope "ok"
// @Failure 401 {object} httpkit.Envelope "wrong current password"
// @Router /auth/change-password [post]
func (h *handlers) changePassword(r *stdhttp.Request, in domain.ChangePasswordInput) (any, error) {
	uid, err := httpkit.User(r)
	if err != nil {
		return nil, err
	}
	if err := h.authn.ChangePassword(r.Context(), uid, in); err != nil {
		return nil, err
	}
	return map[string]string{"status": "ok"}, nil
}

// @Summary List accounts (admin)
// @Tags Auth
// @Produce json
// @Param limit query int false "Max rows"
// @Param offset query int false "Offset"
// @Success 200 {array} domain.UserView "ok"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Router /auth/users [get]
func (h *handlers) listUsers(r *stdhttp.Request) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return h.admin.ListUsers(r.Context(), limit, offset)
}

// @Summary Create an account (admin)
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body domain.CreateUserInput true "Account"
// @Success 200 {object} domain.UserView "ok"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Failure 409 {object} httpkit.Envelope "email exists"
// @Router /auth/users [post]
func (h *handlers) createUser(r *stdhttp.Request, in domain.CreateUserInput) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}
	return h.admin.CreateUser(r.Context(), httpkit.MustUser(r), in)
}

// @Summary Patch an account (admin)
// @Tags Auth
// @Accept json
// @Produce json
// @Param id path string true "User id"
// @Param payload body domain.UpdateUserInput true "Patch"
// @Success 200 {object} domain.UserView "ok"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Failure 404 {object} httpkit.Envelope "not found"
// @Router /auth/users/{id} [patch]
func (h *handlers) updateUser(r *stdhttp.Request, in domain.UpdateUserInput) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}
	return h.admin.UpdateUser(r.Context(), httpkit.MustUser(r), chi.URLParam(r, "id"), in)
}

// @Summary Import up to 500 accounts (admin)
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body []domain.CreateUserInput true "Accounts"
// @Success 200 {array} domain.ImportItemOutcome "per-item outcomes"
// @Failure 403 {object} httpkit.Envelope "admin only"
// @Router /auth/users/import [post]
func (h *handlers) importUsers(r *stdhttp.Request) (any, error) {
	if err := httpkit.RequireAdmin(r); err != nil {
		return nil, err
	}

	// bare array body, validated item by item
	var items []domain.CreateUserInput
	dec := json.NewDecoder(stdhttp.MaxBytesReader(nil, r.Body, 4<<20))
	if err := dec.Decode(&items); err != nil {
		return nil, perr.JSONErrf("invalid JSON: %v", err)
	}
	if len(items) == 0 {
		return nil, perr.WithField(perr.InvalidArgf("import body must not be empty"), "payload")
	}
	if len(items) > MaxImportItems {
		return nil, perr.WithField(
			perr.InvalidArgf("import body exceeds %d items", MaxImportItems), "payload")
	}
	return h.admin.ImportUsers(r.Context(), httpkit.MustUser(r), items)
}

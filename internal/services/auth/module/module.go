// Package module wires auth into the API using modkit
package module

import (
	"context"
	stdhttp "net/http"

	modkit "opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	"opscreen/internal/platform/logger"
	"opscreen/internal/platform/net/middleware"
	str "opscreen/internal/platform/strings"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/auth/domain"
	ahttp "opscreen/internal/services/auth/http"
	asvc "opscreen/internal/services/auth/service"
)

// Inject carries the cross-module dependencies the auth module needs
type Inject struct {
	Audit auditdom.SinkPort
}

// Ports exposed by the auth module
type Ports struct {
	Authn domain.AuthnPort
	Admin domain.AdminPort

	// Middleware is the seam other route groups use for bearer auth
	Middleware middleware.AuthPort
}

// Module implements the auth service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(stdhttp.Handler) stdhttp.Handler
	ports    Ports
	svc      *asvc.Service
	opts     Options
	register func(httpkit.Router)
}

// New constructs the auth module. TokenSigningSecret is mandatory as soon as
// storage is configured, so a misconfigured deployment fails at startup
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("auth"),
		modkit.WithPrefix("/auth"),
	}, opts...)...)

	inj, ok := b.Ports.(Inject)
	if !ok || inj.Audit == nil {
		panic("auth: module requires Inject{Audit} via WithPorts")
	}

	o := FromConfig(deps.Cfg)
	if deps.PG != nil && len(o.SigningSecret) < 32 {
		panic("auth: CORE_AUTH_TOKEN_SIGNING_SECRET must be at least 32 characters when storage is configured")
	}

	svc := asvc.New(deps.PG, deps.RDS, inj.Audit, asvc.Config{
		SigningSecret: o.SigningSecret,
		TokenTTL:      o.TokenTTL,
		SignupEnabled: o.SignupEnabled,
		SignupDomains: o.SignupDomains,
		ListLimit:     o.ListLimit,
	})

	if err := svc.EnsureSeedAdmin(context.Background(), o.SeedAdminEmail, o.SeedAdminPassword); err != nil {
		logger.Named("auth").Warn().Err(err).Msg("seed admin not ensured")
	}

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		svc:    svc,
		opts:   o,
	}
	m.ports = Ports{Authn: svc, Admin: svc, Middleware: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ho := ahttp.Options{Proxies: o.TrustedProxies}
		ahttp.RegisterPublic(r, svc, ho)
		httpkit.Protected(r, svc, func(pr httpkit.Router) {
			ahttp.RegisterProtected(pr, svc, svc, ho)
		})
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the auth routes
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	})
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(stdhttp.Handler) stdhttp.Handler { return m.mws }

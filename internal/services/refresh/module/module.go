// Package module wires the refresh coordinator into the API using modkit
package module

import (
	"context"
	stdhttp "net/http"

	"opscreen/internal/core/watchlist"
	modkit "opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	str "opscreen/internal/platform/strings"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/refresh/domain"
	rhttp "opscreen/internal/services/refresh/http"
	rsvc "opscreen/internal/services/refresh/service"
	screendom "opscreen/internal/services/screening/domain"
)

// Inject carries the cross-module dependencies the refresh module needs
type Inject struct {
	Lists    *watchlist.Provider
	Enqueuer screendom.EnqueuerPort
	Audit    auditdom.SinkPort
}

// RunnerPort triggers a refresh cycle outside HTTP (schedulers, ops tooling)
type RunnerPort interface {
	Run(ctx context.Context, in domain.RefreshInput, actor string) (domain.RefreshOutput, error)
}

// Ports exposed by the refresh module
type Ports struct {
	Runner RunnerPort
}

// Module implements the refresh service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(stdhttp.Handler) stdhttp.Handler
	ports    Ports
	register func(httpkit.Router)
}

// New constructs the refresh module. The watchlist provider, the screening
// enqueuer and the audit sink arrive through WithPorts(Inject{...})
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("refresh"),
		modkit.WithPrefix("/refresh_opensanctions"),
	}, opts...)...)

	inj, ok := b.Ports.(Inject)
	if !ok || inj.Lists == nil || inj.Enqueuer == nil || inj.Audit == nil {
		panic("refresh: module requires Inject{Lists, Enqueuer, Audit} via WithPorts")
	}

	o := FromConfig(deps.Cfg)
	svc := rsvc.New(
		deps.PG,
		inj.Lists,
		inj.Enqueuer,
		inj.Audit,
		rsvc.NewFetcher(o.Fetch),
		rsvc.Config{CandidateLimit: o.CandidateLimit},
	)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}
	m.ports = Ports{Runner: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		rhttp.Register(r, svc, rhttp.Options{APIKey: o.APIKey})
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the refresh routes
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

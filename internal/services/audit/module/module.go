// Package module implements the audit service module
package module

import (
	stdhttp "net/http"

	"opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	str "opscreen/internal/platform/strings"
	"opscreen/internal/services/audit/domain"
	ahttp "opscreen/internal/services/audit/http"
	"opscreen/internal/services/audit/repo"
	"opscreen/internal/services/audit/service"
)

// Ports exposed by the audit module
type Ports struct {
	Sink  domain.SinkPort
	Query domain.QueryPort
}

// Module implements the audit service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(stdhttp.Handler) stdhttp.Handler
	ports    Ports
	register func(httpkit.Router)
}

// New constructs a new audit module. Without storage the sink degrades to a
// no-op and no routes are mounted
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("audit"),
		modkit.WithPrefix("/audit"),
	}, opts...)...)

	o := FromConfig(deps.Cfg)
	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}

	if deps.PG == nil {
		m.ports = Ports{Sink: service.Nop{}}
		return m
	}

	svc := service.New(deps.PG, repo.NewPG(), deps.CH, service.Config{
		ListLimit: o.ListLimit,
		Mirror:    o.Mirror,
	})
	m.ports = Ports{Sink: svc, Query: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		ahttp.Register(r, svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the audit read routes when storage is configured
func (m *Module) MountRoutes(r httpkit.Router) {
	if m.register == nil {
		return
	}
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	})
}

// Name satisfies modkit.Module
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix satisfies modkit.Module
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports satisfies modkit.Module
func (m *Module) Ports() any { return m.ports }

// Middlewares returns the module middlewares
func (m *Module) Middlewares() []func(stdhttp.Handler) stdhttp.Handler { return m.mws }

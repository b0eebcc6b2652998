// Package module wires review into the API using modkit
package module

import (
	stdhttp "net/http"

	modkit "opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	str "opscreen/internal/platform/strings"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/review/domain"
	rvhttp "opscreen/internal/services/review/http"
	rvsvc "opscreen/internal/services/review/service"
)

// Inject carries the cross-module dependencies the review module needs
type Inject struct {
	Audit auditdom.SinkPort
}

// Ports exposed by the review module
type Ports struct {
	Review domain.ReviewPort
}

// Module implements the review service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(stdhttp.Handler) stdhttp.Handler
	ports    Ports
	register func(httpkit.Router)
}

// New constructs the review module
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("review"),
		modkit.WithPrefix("/review"),
	}, opts...)...)

	inj, ok := b.Ports.(Inject)
	if !ok || inj.Audit == nil {
		panic("review: module requires Inject{Audit} via WithPorts")
	}

	o := FromConfig(deps.Cfg)
	svc := rvsvc.New(deps.PG, inj.Audit, rvsvc.Config{QueueLimit: o.QueueLimit})

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}
	m.ports = Ports{Review: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		rvhttp.Register(r, svc)
		if external != nil {
			external(r)
		}
	}
	return m
}

// MountRoutes mounts the review routes
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

// Package module wires screening into the API using modkit
package module

import (
	"context"
	stdhttp "net/http"

	"opscreen/internal/core/matcher"
	"opscreen/internal/core/watchlist"
	modkit "opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	str "opscreen/internal/platform/strings"
	auditdom "opscreen/internal/services/audit/domain"
	"opscreen/internal/services/screening/domain"
	shttp "opscreen/internal/services/screening/http"
	ssvc "opscreen/internal/services/screening/service"
)

// Inject carries the cross-module dependencies the screening module needs
type Inject struct {
	Audit auditdom.SinkPort
	Lists *watchlist.Provider
}

// Ports exposed by the screening module
type Ports struct {
	Dispatcher domain.DispatcherPort
	Enqueuer   domain.EnqueuerPort
	Evidence   domain.EvidenceReaderPort
	Worker     WorkerPort
}

// WorkerPort runs the background claim loop
type WorkerPort interface {
	RunWorker(ctx context.Context) error
}

// Module implements the screening service module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string

	mws      []func(stdhttp.Handler) stdhttp.Handler
	ports    Ports
	register func(httpkit.Router)
	internal func(httpkit.Router)
}

// New constructs the screening module. The audit sink and watchlist provider
// arrive through WithPorts(Inject{...})
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{
		modkit.WithName("screening"),
		modkit.WithPrefix("/opcheck"),
	}, opts...)...)

	inj, ok := b.Ports.(Inject)
	if !ok || inj.Audit == nil || inj.Lists == nil {
		panic("screening: module requires Inject{Audit, Lists} via WithPorts")
	}

	o := FromConfig(deps.Cfg)
	svc := ssvc.New(
		deps.PG,
		matcher.New(matcher.Config{
			MatchThreshold:      o.MatchThreshold,
			SuggestionThreshold: o.SuggestionThreshold,
		}),
		inj.Lists,
		inj.Audit,
		ssvc.Config{
			SyncThreshold:           o.SyncThreshold,
			ValidityDays:            o.ValidityDays,
			MatcherDeadlineSeconds:  o.MatcherDeadlineSeconds,
			WorkerPollSeconds:       o.WorkerPollSeconds,
			CleanupEveryNLoops:      o.CleanupEveryNLoops,
			JobRetentionDays:        o.JobRetentionDays,
			EvidenceRetentionMonths: o.EvidenceRetentionMonths,
			SearchLimit:             o.SearchLimit,
		},
	)

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
	}
	m.ports = Ports{Dispatcher: svc, Enqueuer: svc, Evidence: svc, Worker: svc}

	external := b.Register
	m.register = func(r httpkit.Router) {
		shttp.Register(r, svc)
		if external != nil {
			external(r)
		}
	}
	m.internal = func(r httpkit.Router) {
		shttp.RegisterInternal(r, svc, shttp.InternalOptions{
			APIKey:      o.InternalAPIKey,
			IPAllowlist: o.InternalAllowlist,
			Proxies:     o.TrustedProxies,
		})
	}
	return m
}

// MountRoutes mounts the public screening routes
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		m.register(rr)
	})
	r.Route("/internal/screening/jobs", func(rr httpkit.Router) {
		m.internal(rr)
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

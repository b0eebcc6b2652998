// Package api composes the HTTP API from the service modules
package api

import (
	"context"
	"net/http"

	"opscreen/internal/platform/config"
	"opscreen/internal/platform/logger"
	pnet "opscreen/internal/platform/net"
	phttp "opscreen/internal/platform/net/http"
	"opscreen/internal/platform/net/middleware"
	"opscreen/internal/platform/store"

	"opscreen/internal/core/watchlist"
	"opscreen/internal/modkit"
	"opscreen/internal/modkit/httpkit"
	"opscreen/internal/modkit/module"
	"opscreen/internal/modkit/swaggerkit"

	metamod "opscreen/internal/services/api/meta/module"
	auditmod "opscreen/internal/services/audit/module"
	authmod "opscreen/internal/services/auth/module"
	refreshmod "opscreen/internal/services/refresh/module"
	reviewmod "opscreen/internal/services/review/module"
	screeningmod "opscreen/internal/services/screening/module"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	EnableSwagger  bool
	EnableProfiler bool
}

// Mount mounts the API service onto the given router
func Mount(r phttp.Router, opt Options) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
		RDS: opt.Store.RDS,
	}

	// the watchlist snapshot is shared by screening and refresh
	lists := watchlist.NewProvider(watchlistFiles(deps.Cfg)...)

	// audit first: every other module emits through its sink
	auditM := auditmod.New(deps)
	sink := auditM.Ports().(auditmod.Ports).Sink

	authM := authmod.New(deps, modkit.WithPorts(authmod.Inject{Audit: sink}))
	authPorts := authM.Ports().(authmod.Ports)

	screeningM := screeningmod.New(deps, modkit.WithPorts(screeningmod.Inject{
		Audit: sink,
		Lists: lists,
	}))
	screenPorts := screeningM.Ports().(screeningmod.Ports)

	reviewM := reviewmod.New(deps, modkit.WithPorts(reviewmod.Inject{Audit: sink}))

	refreshM := refreshmod.New(deps, modkit.WithPorts(refreshmod.Inject{
		Lists:    lists,
		Enqueuer: screenPorts.Enqueuer,
		Audit:    sink,
	}))

	mods := []module.Module{
		metamod.New(deps),
		auditM,
		authM,
		screeningM,
		reviewM,
		refreshM,
	}

	// bare health endpoint outside the versioned tree
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	stack := append(httpkit.CommonStack(),
		// authenticated context when a valid token rides along; route groups
		// and handlers enforce their own requirements on top
		optionalAuth(authPorts.Middleware, authPorts.Authn.LoginRequired),
		rateLimiter(deps.Cfg, deps.RDS),
	)

	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		swaggerkit.Mount(r, opt.EnableSwagger)
		phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

		for _, m := range mods {
			module.Register(m.Name(), m.Ports())
			m.MountRoutes(api)
		}
	})

	// some consumers bind to the literal /opcheck path; serve it as an alias
	// of the versioned tree
	alias := aliasToV1(r.Mux())
	r.Handle("/opcheck", alias)
	r.Handle("/opcheck/*", alias)
}

// aliasToV1 re-dispatches a bare request through the /api/v1 tree. Clearing
// the route context makes the mux route the rewritten path from the top
func aliasToV1(mux http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r2 := req.Clone(context.WithValue(req.Context(), chi.RouteCtxKey, nil))
		r2.URL.Path = "/api/v1" + req.URL.Path
		mux.ServeHTTP(w, r2)
	})
}

// watchlistFiles builds the loader inputs from configuration
func watchlistFiles(cfg config.Conf) []watchlist.File {
	sanctions, peps := screeningmod.WatchlistFiles(cfg)
	var files []watchlist.File
	if sanctions != "" {
		files = append(files, watchlist.File{Path: sanctions, SourceType: watchlist.SourceSanctions})
	}
	if peps != "" {
		files = append(files, watchlist.File{Path: peps, SourceType: watchlist.SourcePEP})
	}
	return files
}

// optionalAuth resolves a bearer token into user context without rejecting
// anonymous requests; protected groups still demand a token via httpkit.Auth
func optionalAuth(p middleware.AuthPort, required func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil && required() && r.Header.Get("Authorization") != "" {
				if uid, role, err := p.Parse(r); err == nil && uid != "" {
					r = r.WithContext(pnet.WithUser(r.Context(), uid, role))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter builds the per-IP request limiter from configuration. A shared
// backend keeps counters consistent across instances when configured
func rateLimiter(cfg config.Conf, rds redis.UniversalClient) func(http.Handler) http.Handler {
	af := cfg.Prefix("CORE_API_")
	perMinute := af.MayInt("RATE_LIMIT_PER_MINUTE", 120)
	burst := af.MayInt("RATE_LIMIT_BURST", 0)
	proxies := middleware.ParseTrustedProxies(af.MayString("TRUSTED_PROXY_IPS", ""))

	var limiter middleware.Limiter
	if url := af.MayString("RATE_LIMIT_STORAGE_URL", ""); url != "" {
		if ropt, err := redis.ParseURL(url); err == nil {
			limiter = middleware.NewRedisLimiter(redis.NewClient(ropt), perMinute)
		} else {
			logger.Named("api").Warn().Err(err).Msg("rate limit storage url invalid, using local limiter")
		}
	} else if rds != nil {
		limiter = middleware.NewRedisLimiter(rds, perMinute)
	}
	if limiter == nil {
		limiter = middleware.NewLocalLimiter(perMinute, burst)
	}

	return middleware.RateLimit(limiter, middleware.RateLimitOptions{
		TrustedProxies: proxies,
		ExemptPaths:    []string{"/health", "/api/v1/health"},
	}, phttp.JSON)
}

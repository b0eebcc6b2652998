package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"opscreen/internal/modkit"
	"opscreen/internal/modkit/module"
	"opscreen/internal/modkit/repokit"
	"opscreen/internal/platform/config"
	"opscreen/internal/platform/logger"
	"opscreen/internal/platform/store"

	"opscreen/internal/core/watchlist"
	auditmod "opscreen/internal/services/audit/module"
	screeningmod "opscreen/internal/services/screening/module"
)

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	// the worker drains the persisted job queue, so postgres is mandatory here
	st, err := store.Open(context.Background(), store.Config{
		AppName: "opscreen",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbCfg.MustString("DBURL"),
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	// fail fast if the database is unreachable rather than spinning the loop
	repokit.MustGuard(context.Background(), st)

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	sanctions, peps := screeningmod.WatchlistFiles(root)
	var files []watchlist.File
	if sanctions != "" {
		files = append(files, watchlist.File{Path: sanctions, SourceType: watchlist.SourceSanctions})
	}
	if peps != "" {
		files = append(files, watchlist.File{Path: peps, SourceType: watchlist.SourcePEP})
	}
	lists := watchlist.NewProvider(files...)

	auditM := auditmod.New(deps)
	sink := auditM.Ports().(auditmod.Ports).Sink

	mod := screeningmod.New(deps, modkit.WithPorts(screeningmod.Inject{
		Audit: sink,
		Lists: lists,
	}))
	module.Register(auditM.Name(), auditM.Ports())
	module.Register(mod.Name(), mod.Ports())

	ports := module.MustPortsOf[screeningmod.Ports](mod)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ports.Worker.RunWorker(ctx); err != nil && ctx.Err() == nil {
		l.Fatal().Err(err).Msg("screening worker failed")
	}
	l.Info().Msg("screening worker stopped")
}

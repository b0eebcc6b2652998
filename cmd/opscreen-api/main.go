// @title         Opscreen API
// @version       0.1.0
// @description   Sanctions and PEP screening, review workflow, and watchlist refresh

package main

import (
	"context"

	"opscreen/internal/platform/config"
	"opscreen/internal/platform/logger"
	phttp "opscreen/internal/platform/net/http"
	"opscreen/internal/platform/store"

	"opscreen/internal/services/api"
)

func main() {
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")

	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")
	rdsCfg := root.Prefix("SERVICE_REDIS_")

	l := logger.Get()

	// every backend is optional: with no postgres the dispatcher runs
	// inline-only (no cache, no queue, no login)
	pgURL := pgCfg.MayString("DBURL", "")
	chURL := chCfg.MayString("DBURL", "")
	rdsAddr := rdsCfg.MayString("ADDR", "")

	st, err := store.Open(
		context.Background(),
		store.Config{
			AppName: "opscreen",
			PG: store.PGConfig{
				Enabled:     pgURL != "",
				URL:         pgURL,
				MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 8)),
				SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
				LogSQL:      pgCfg.MayBool("LOG_SQL", false),
			},
			CH: store.CHConfig{
				Enabled:    chURL != "",
				URL:        chURL,
				ClientName: "opscreen",
				ClientTag:  "api",
			},
			RDS: store.RedisConfig{
				Enabled:  rdsAddr != "",
				Addr:     rdsAddr,
				Password: rdsCfg.MayString("PASSWORD", ""),
				DB:       rdsCfg.MayInt("DB", 0),
			},
		},
		store.WithLogger(*l),
	)
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	if pgURL == "" {
		l.Warn().Msg("no postgres configured, running inline-only")
	}

	// http server (reads CORE_API_PORT / CORE_API_ADDR)
	srv := phttp.NewServer(apiCfg)

	api.Mount(
		srv.Router(),
		api.Options{
			Config:         apiCfg,
			Store:          st,
			Logger:         l,
			EnableSwagger:  apiCfg.MayBool("SWAGGER", true),
			EnableProfiler: apiCfg.MayBool("PROFILER", false),
		},
	)

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

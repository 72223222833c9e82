package main

import (
	"context"

	"finewatch/internal/modkit"
	"finewatch/internal/platform/config"
	"finewatch/internal/platform/logger"
	phttp "finewatch/internal/platform/net/http"
	"finewatch/internal/platform/net/middleware"
	"finewatch/internal/platform/store"

	"finewatch/internal/services/api"
	quarmod "finewatch/internal/services/quarantine/module"
	rollupmod "finewatch/internal/services/rollup/module"
)

func main() {
	// service-scoped config for HTTP etc (CORE_API_*)
	root := config.New()
	apiCfg := root.Prefix("CORE_API_")
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
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

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	rum := rollupmod.New(deps)
	qm := quarmod.New(deps)

	srv := phttp.NewServer(apiCfg)
	r := srv.Router()
	r.Use(
		middleware.RecoverJSON,
		middleware.AccessLog(middleware.AccessLogOptions{
			Slow: apiCfg.MayDuration("SLOW_REQUEST", 0),
		}),
	)

	api.New(api.Deps{
		Rollups:    rum.Ports().Reader,
		Quarantine: qm.Ports().Query,
		Health:     st,
	}).MountRoutes(r)

	if err := srv.Run(context.Background()); err != nil {
		l.Panic().Err(err).Msg("http server stopped")
	}
}

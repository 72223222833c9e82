package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit"
	"finewatch/internal/platform/config"
	"finewatch/internal/platform/logger"
	"finewatch/internal/platform/store"

	resolvemod "finewatch/internal/services/resolve/module"
)

// seedFile is the reviewed entity list an operator curates by hand. The
// resolver never mints companies or cities on its own, this file is how they
// enter the system
type seedFile struct {
	Entities []seedEntity `yaml:"entities" validate:"required,min=1,dive"`
}

type seedEntity struct {
	Type    string   `yaml:"type" validate:"required,oneof=company city state"`
	Slug    string   `yaml:"slug" validate:"required"`
	Display string   `yaml:"display" validate:"required"`
	Aliases []string `yaml:"aliases" validate:"dive,required"`
}

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	fPath := flag.String("file", "", "path to the entity seed yaml")
	flag.Parse()
	if *fPath == "" {
		l.Panic().Msg("-file is required")
	}

	raw, err := os.ReadFile(*fPath)
	if err != nil {
		l.Panic().Err(err).Str("file", *fPath).Msg("read seed file")
	}
	var seeds seedFile
	if err := yaml.Unmarshal(raw, &seeds); err != nil {
		l.Panic().Err(err).Msg("parse seed file")
	}
	if err := validator.New().Struct(seeds); err != nil {
		l.Panic().Err(err).Msg("seed file failed validation")
	}

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
	seeder := resolvemod.New(deps).Ports().Seeder

	ctx := context.Background()
	ok, failed := 0, 0
	for _, s := range seeds.Entities {
		err := seeder.SeedEntity(ctx, entity.Type(s.Type), s.Slug, s.Display, s.Aliases)
		if err != nil {
			failed++
			l.Error().Err(err).Str("slug", s.Slug).Str("type", s.Type).Msg("seed failed")
			continue
		}
		ok++
	}
	l.Info().Int("seeded", ok).Int("failed", failed).Msg("seed run complete")
	if failed > 0 {
		os.Exit(1)
	}
}

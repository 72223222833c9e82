package main

import (
	"context"
	"flag"
	"os"
	"strconv"
	"strings"

	"finewatch/internal/modkit"
	"finewatch/internal/platform/config"
	"finewatch/internal/platform/logger"
	"finewatch/internal/platform/store"

	"finewatch/internal/adapters/enrich"
	"finewatch/internal/adapters/source"
	"finewatch/internal/adapters/unload"
	"finewatch/internal/core/schemareg"

	ingestmod "finewatch/internal/services/ingest/module"
	mergedom "finewatch/internal/services/merge/domain"
	mergemod "finewatch/internal/services/merge/module"
	quarmod "finewatch/internal/services/quarantine/module"
	resolvemod "finewatch/internal/services/resolve/module"
	rollupmod "finewatch/internal/services/rollup/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	root := config.New()
	pgCfg := root.Prefix("SERVICE_PGSQL_")
	chCfg := root.Prefix("SERVICE_CLICKHOUSE_")

	l := logger.Get()
	st, err := store.Open(context.Background(), store.Config{
		PG: store.PGConfig{
			Enabled:     true,
			URL:         pgCfg.MustString("DBURL"),
			MaxConns:    int32(pgCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: pgCfg.MayInt("SLOW_MS", 500),
			LogSQL:      pgCfg.MayBool("LOG_SQL", true),
		},
		CH: store.CHConfig{
			Enabled:    chCfg.MayBool("ENABLED", false),
			URL:        chCfg.MayString("DBURL", ""),
			ClientName: "finewatch",
			ClientTag:  "ingest",
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

	var (
		fFile     = flag.String("file", "", "local dataset file to plan (csv/ndjson, optionally .gz)")
		fURI      = flag.String("uri", "", "s3://bucket/key dataset object to plan")
		fDataset  = flag.String("dataset", "", "dataset key from the schema pack (required with -file or -uri)")
		fPlanOnly = flag.Bool("plan-only", false, "enqueue batches for the input and exit without processing")
		fResume   = flag.Bool("resume", false, "skip planning and drain whatever the queue already holds")
		fWorkers  = flag.Int("workers", 0, "worker concurrency override")
		fCompact  = flag.Bool("compact", false, "run a mirror compaction pass after draining")
	)
	flag.Parse()

	if *fPlanOnly && *fResume {
		l.Panic().Msg("--plan-only and --resume are mutually exclusive")
	}
	hasInput := *fFile != "" || *fURI != ""
	if !hasInput && !*fResume {
		l.Panic().Msg("must provide -file or -uri (unless --resume)")
	}
	if hasInput && *fDataset == "" {
		l.Panic().Msg("-dataset is required when planning input")
	}

	reg, err := schemareg.Load()
	if err != nil {
		l.Panic().Err(err).Msg("schema pack load failed")
	}
	if hasInput {
		if _, ok := reg.Dataset(*fDataset); !ok {
			l.Panic().Str("dataset", *fDataset).Strs("known", reg.DatasetKeys()).Msg("unknown dataset key")
		}
	}

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		CH:  st.CH,
		Log: *l,
	}

	if *fWorkers > 0 {
		mustSetEnv("CORE_INGEST_WORKERS", strconv.Itoa(*fWorkers))
	}

	// Mirror and enrichment collaborators; both degrade to no-ops when their
	// backend is not configured
	mir := unload.New(st.CH)

	var trigger mergedom.EnrichPort = enrich.Noop{}
	if url := root.MayString("CORE_MERGE_ENRICH_URL", ""); url != "" {
		trigger = enrich.New(url)
	}

	rm := resolvemod.New(deps)
	qm := quarmod.New(deps)
	rum := rollupmod.New(deps)
	mm := mergemod.New(deps, mir, trigger)

	im := ingestmod.New(deps, reg, ingestmod.Collaborators{
		Resolver:   rm.Ports().Resolver,
		Merge:      mm.Ports().Upserter,
		Rollup:     rum.Ports().Maintainer,
		Quarantine: qm.Ports().Sink,
	})

	ctx := context.Background()

	if hasInput {
		rows, err := readInput(ctx, *fFile, *fURI)
		if err != nil {
			l.Panic().Err(err).Msg("read input failed")
		}
		uri := *fURI
		if uri == "" {
			uri = "file://" + *fFile
		}
		n, err := im.Ports().Planner.PlanRows(ctx, *fDataset, uri, rows)
		if err != nil {
			l.Fatal().Err(err).Msg("planning failed")
		}
		l.Info().Int("batches", n).Int("rows", len(rows)).Str("dataset", *fDataset).Msg("planned")
		if *fPlanOnly {
			return
		}
	}

	if err := im.Ports().Worker.Run(ctx); err != nil {
		l.Fatal().Err(err).Msg("ingest run failed")
	}

	if *fCompact {
		if err := mir.Compact(ctx); err != nil {
			l.Error().Err(err).Msg("mirror compaction failed")
		}
	}
}

func readInput(ctx context.Context, file, uri string) ([]map[string]string, error) {
	if file != "" {
		return source.ReadFile(file)
	}
	if strings.HasPrefix(uri, "s3://") {
		f, err := source.NewS3Fetcher(ctx)
		if err != nil {
			return nil, err
		}
		return f.FetchRows(ctx, uri)
	}
	return source.ReadFile(uri)
}

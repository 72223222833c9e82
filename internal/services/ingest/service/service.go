// Package service provides the batch ingestion worker implementation
package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/logger"
	"finewatch/internal/services/ingest/domain"
)

// Config holds configuration options for the ingest service
type Config struct {
	// Concurrency & pacing
	Workers       int           // parallel batch consumers; <=0 -> 1
	DelayPerBatch time.Duration // optional sleep after each processed batch (per worker)

	// Queue semantics
	BatchSize        int           // planner rows per batch; <=0 -> 10
	Visibility       time.Duration // claim window before redelivery; <=0 -> 5m
	MaxBatchAttempts int           // deliveries per batch before parking; <=0 -> 5
	PollInterval     time.Duration // 0 -> drain and exit when the queue is empty
}

func (c Config) normalized() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.Visibility <= 0 {
		c.Visibility = 5 * time.Minute
	}
	if c.MaxBatchAttempts <= 0 {
		c.MaxBatchAttempts = 5
	}
	return c
}

// Service implements the ingest worker and planner
type Service struct {
	DB     repokit.TxRunner
	Binder repokit.Binder[domain.Repo]
	Norm   domain.NormalizerPort
	Merge  domain.MergePort
	Rollup domain.RollupPort
	Quar   domain.QuarantinePort
	Cfg    Config
}

var (
	_ domain.WorkerPort  = (*Service)(nil)
	_ domain.PlannerPort = (*Service)(nil)
)

// New constructs the ingest service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.Repo],
	norm domain.NormalizerPort,
	merge domain.MergePort,
	rollup domain.RollupPort,
	quar domain.QuarantinePort,
	cfg Config,
) *Service {
	if db == nil {
		panic("ingest.Service requires a non nil TxRunner")
	}
	if binder == nil {
		panic("ingest.Service requires a non nil Repo binder")
	}
	if norm == nil {
		panic("ingest.Service requires a non nil Normalizer")
	}
	if merge == nil {
		panic("ingest.Service requires a non nil MergePort")
	}
	return &Service{
		DB: db, Binder: binder,
		Norm: norm, Merge: merge, Rollup: rollup, Quar: quar,
		Cfg: cfg.normalized(),
	}
}

// PlanRows splits a source file's rows into bounded batches and enqueues
// them as pending queue work. Returns the number of batches planned
func (s *Service) PlanRows(ctx context.Context, datasetKey, sourceURI string, rows []map[string]string) (int, error) {
	if datasetKey == "" {
		return 0, perr.InvalidArgf("empty dataset key")
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	planned := 0
	for start := 0; start < len(rows); start += s.Cfg.BatchSize {
		end := min(start+s.Cfg.BatchSize, len(rows))

		raw := make([]domain.RawRow, 0, end-start)
		for _, fields := range rows[start:end] {
			raw = append(raw, domain.RawRow{
				DatasetKey: datasetKey,
				Fields:     fields,
				EnqueuedAt: now,
			})
		}
		b := domain.Batch{
			ID:         uuid.NewString(),
			DatasetKey: datasetKey,
			SourceURI:  sourceURI,
			Rows:       raw,
			EnqueuedAt: now,
		}
		if err := s.Binder.Bind(s.DB).EnqueueBatch(ctx, b); err != nil {
			return planned, perr.Wrapf(err, perr.ErrorCodeDB, "enqueue batch %s", b.ID)
		}
		planned++
	}

	logger.C(ctx).Info().
		Str("dataset", datasetKey).
		Str("source", sourceURI).
		Int("rows", len(rows)).
		Int("batches", planned).
		Msg("ingest plan enqueued")
	return planned, nil
}

// RunOnce claims and processes at most one batch
func (s *Service) RunOnce(ctx context.Context) (bool, error) {
	b, err := s.Binder.Bind(s.DB).ClaimBatch(ctx, s.Cfg.Visibility, s.Cfg.MaxBatchAttempts)
	if err != nil {
		return false, err
	}
	if b == nil {
		return false, nil
	}
	s.processBatch(ctx, b)
	return true, nil
}

// Run drains the queue with a pool of independent workers. With a poll
// interval configured it keeps polling after a drain; otherwise it returns
// once no claimable batch remains
func (s *Service) Run(ctx context.Context) error {
	w := s.Cfg.Workers
	var fails int64
	var wg sync.WaitGroup
	sem := make(chan struct{}, w)

	worker := func() {
		defer func() { <-sem; wg.Done() }()
		for {
			if ctx.Err() != nil {
				return
			}
			found, err := s.RunOnce(ctx)
			if err != nil {
				logger.C(ctx).Error().Err(err).Msg("ingest: claim failed")
				atomic.AddInt64(&fails, 1)
				// small pause on coordinator error (avoid hot loop)
				_ = sleepCtx(ctx, 500*time.Millisecond)
				continue
			}
			if !found {
				if s.Cfg.PollInterval <= 0 {
					return // queue drained
				}
				if sleepCtx(ctx, s.Cfg.PollInterval) != nil {
					return
				}
				continue
			}
			if s.Cfg.DelayPerBatch > 0 {
				_ = sleepCtx(ctx, s.Cfg.DelayPerBatch)
			}
		}
	}

	for range w {
		select {
		case <-ctx.Done():
			wg.Wait()
			return ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go worker()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if fails > 0 {
		return errors.New("some batches failed")
	}
	return nil
}

// processBatch normalizes every row and dispatches the outcome. Rows are
// independent: one failing row never blocks the rest. Any row-level failure
// releases the batch for redelivery; merge and quarantine idempotence make
// reprocessing the already-done rows safe
func (s *Service) processBatch(ctx context.Context, b *domain.Batch) {
	ctx = logger.WithBatch(ctx, b.ID, b.DatasetKey)
	log := logger.C(ctx)

	var merged, quarantined, failed int
	for _, row := range b.Rows {
		outcome, err := s.Norm.Normalize(ctx, row)
		switch {
		case err != nil:
			log.Error().Err(err).Msg("normalize failed")
			failed++
			continue

		case outcome.Quarantine != nil:
			if err := s.Quar.Put(ctx, *outcome.Quarantine); err != nil {
				log.Error().Err(err).
					Str("reason", string(outcome.Quarantine.Reason)).
					Msg("quarantine write failed")
				failed++
			} else {
				quarantined++
			}
			continue

		case outcome.Event != nil:
			ev := *outcome.Event
			inserted, err := s.Merge.Upsert(ctx, ev)
			if err != nil {
				// exhausted merges must surface loudly, not vanish
				if perr.IsCode(err, perr.ErrorCodeMergeExhausted) {
					log.Error().Err(err).
						Str("event_id", ev.ID).
						Msg("merge retries exhausted")
				} else {
					log.Error().Err(err).
						Str("event_id", ev.ID).
						Msg("merge failed")
				}
				failed++
				continue
			}
			merged++
			// rollups only on a first-time merge: a redelivered event already
			// counted, and the recent-K window cannot dedupe what it evicted
			if inserted && s.Rollup != nil {
				// best effort; the maintainer logs and skips internally
				_ = s.Rollup.Apply(ctx, ev)
			}
		}
	}

	repo := s.Binder.Bind(s.DB)
	if failed > 0 {
		if err := repo.ReleaseBatch(ctx, b.ID, "row failures"); err != nil {
			log.Error().Err(err).Msg("release batch failed")
		}
		log.Warn().
			Int("merged", merged).
			Int("quarantined", quarantined).
			Int("failed", failed).
			Int("attempt", b.Attempts).
			Msg("batch released for redelivery")
		return
	}
	if err := repo.FinishBatch(ctx, b.ID, merged, quarantined, failed); err != nil {
		log.Error().Err(err).Msg("finish batch failed")
		return
	}
	log.Info().
		Int("merged", merged).
		Int("quarantined", quarantined).
		Msg("batch done")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

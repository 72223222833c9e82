// Package service implements the aggregate maintainer: incremental bounded
// rollups per entity, refreshed at ingestion time
package service

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/logger"
	ingdom "finewatch/internal/services/ingest/domain"
	"finewatch/internal/services/rollup/domain"
)

// Config tunes the maintainer
type Config struct {
	RecentK    int
	CacheTTL   time.Duration
	CacheSweep time.Duration
}

// Svc implements domain.MaintainerPort and domain.ReaderPort
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.Repo]
	k      int
	hot    *gocache.Cache
}

var (
	_ domain.MaintainerPort = (*Svc)(nil)
	_ domain.ReaderPort     = (*Svc)(nil)
)

// New constructs the rollup service
func New(db repokit.TxRunner, binder repokit.Binder[domain.Repo], cfg Config) *Svc {
	if db == nil {
		panic("rollup.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("rollup.Service requires a non-nil Repo binder")
	}
	k := cfg.RecentK
	if k <= 0 {
		k = domain.DefaultRecentK
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	sweep := cfg.CacheSweep
	if sweep <= 0 {
		sweep = 2 * ttl
	}
	return &Svc{db: db, binder: binder, k: k, hot: gocache.New(ttl, sweep)}
}

func cacheKey(t entity.Type, slug, bucket string) string {
	return string(t) + ":" + slug + ":" + bucket
}

// Apply updates the rollups of every entity the event touches, in the event's
// yearly bucket and the lifetime bucket. Rollups are derived state: a single
// entity failing is logged and skipped, never propagated, because the
// canonical event is already committed and a repair job can rebuild rollups
func (s *Svc) Apply(ctx context.Context, ev ingdom.Event) error {
	sum := domain.EventSummary{
		EventID:     ev.ID,
		Title:       ev.Title,
		CompanySlug: ev.CompanySlug,
		OccurredAt:  ev.OccurredAt,
		Penalty:     ev.Penalty,
	}

	targets := []struct {
		t    entity.Type
		slug string
	}{
		{entity.TypeCompany, ev.CompanySlug},
		{entity.TypeCity, ev.CitySlug},
		{entity.TypeState, entity.StateSlug(ev.StateCode)},
	}
	buckets := []string{domain.BucketAll}
	if !ev.OccurredAt.IsZero() {
		buckets = append(buckets, strconv.Itoa(ev.OccurredAt.Year()))
	}

	for _, tgt := range targets {
		if tgt.slug == "" {
			continue
		}
		for _, bucket := range buckets {
			if err := s.applyOne(ctx, tgt.t, tgt.slug, bucket, sum); err != nil {
				logger.C(ctx).Error().Err(err).
					Str("entity_type", string(tgt.t)).
					Str("slug", tgt.slug).
					Str("bucket", bucket).
					Str("event_id", ev.ID).
					Msg("rollup update failed, skipping")
			}
		}
	}
	return nil
}

// applyOne is one locked read-modify-write cycle
func (s *Svc) applyOne(ctx context.Context, t entity.Type, slug, bucket string, sum domain.EventSummary) error {
	var saved domain.Record
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.binder.Bind(q)
		rec, _, err := repo.GetForUpdate(ctx, t, slug, bucket)
		if err != nil {
			return err
		}
		if !rec.Apply(sum, s.k) {
			// duplicate delivery; nothing changed, nothing to save
			saved = rec
			return nil
		}
		rec.UpdatedAt = time.Now().UTC()
		if err := repo.Save(ctx, rec); err != nil {
			return err
		}
		saved = rec
		return nil
	})
	if err != nil {
		return err
	}
	s.hot.Set(cacheKey(t, slug, bucket), saved, gocache.DefaultExpiration)
	return nil
}

// Get serves a rollup, hot cache first. Consumers expect refresh at ingestion
// time, so a short TTL only covers multi-process staleness
func (s *Svc) Get(ctx context.Context, t entity.Type, slug, bucket string) (domain.Record, error) {
	if bucket == "" {
		bucket = domain.BucketAll
	}
	if v, ok := s.hot.Get(cacheKey(t, slug, bucket)); ok {
		return v.(domain.Record), nil
	}
	rec, err := s.binder.Bind(s.db).Get(ctx, t, slug, bucket)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return domain.Record{}, err
		}
		return domain.Record{}, perr.Wrap(err, perr.ErrorCodeDB, "read rollup")
	}
	s.hot.Set(cacheKey(t, slug, bucket), rec, gocache.DefaultExpiration)
	return rec, nil
}

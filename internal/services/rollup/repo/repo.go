// Package repo provides Postgres bindings for domain.Repo
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/services/rollup/domain"
)

type (
	// PG is a Postgres binder for domain.Repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

var _ domain.Repo = (*queries)(nil)

// NewPG returns a Postgres binder for Repo
func NewPG() repokit.Binder[domain.Repo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.Repo { return &queries{q: q} }

func (r *queries) scanOne(row repokit.Row, t entity.Type, slug, bucket string) (domain.Record, error) {
	rec := domain.Record{EntityType: t, Slug: slug, Bucket: bucket}
	var recent []byte
	var at time.Time
	if err := row.Scan(&rec.EventCount, &rec.PenaltyTotal, &recent, &at); err != nil {
		return domain.Record{}, err
	}
	rec.UpdatedAt = at
	if len(recent) > 0 {
		if err := json.Unmarshal(recent, &rec.Recent); err != nil {
			return domain.Record{}, perr.Wrap(err, perr.ErrorCodeValidation, "decode recent list")
		}
	}
	return rec, nil
}

// GetForUpdate reads a record under a row lock for read-modify-write
func (r *queries) GetForUpdate(ctx context.Context, t entity.Type, slug, bucket string) (domain.Record, bool, error) {
	row := r.q.QueryRow(ctx, `
		SELECT event_count, penalty_total, recent, updated_at
		FROM rollups
		WHERE entity_type = $1 AND slug = $2 AND bucket = $3
		FOR UPDATE
	`, string(t), slug, bucket)

	rec, err := r.scanOne(row, t, slug, bucket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{EntityType: t, Slug: slug, Bucket: bucket}, false, nil
		}
		return domain.Record{}, false, perr.FromPostgres(err, "lock rollup")
	}
	return rec, true, nil
}

// Save upserts the full record
func (r *queries) Save(ctx context.Context, rec domain.Record) error {
	recent, err := json.Marshal(rec.Recent)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "marshal recent list")
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO rollups (entity_type, slug, bucket, event_count, penalty_total, recent, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, slug, bucket) DO UPDATE SET
			event_count   = EXCLUDED.event_count,
			penalty_total = EXCLUDED.penalty_total,
			recent        = EXCLUDED.recent,
			updated_at    = EXCLUDED.updated_at
	`, string(rec.EntityType), rec.Slug, rec.Bucket,
		rec.EventCount, rec.PenaltyTotal, recent, rec.UpdatedAt)
	if err != nil {
		return perr.FromPostgres(err, "save rollup")
	}
	return nil
}

// Get reads a record without locking
func (r *queries) Get(ctx context.Context, t entity.Type, slug, bucket string) (domain.Record, error) {
	row := r.q.QueryRow(ctx, `
		SELECT event_count, penalty_total, recent, updated_at
		FROM rollups
		WHERE entity_type = $1 AND slug = $2 AND bucket = $3
	`, string(t), slug, bucket)

	rec, err := r.scanOne(row, t, slug, bucket)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Record{}, perr.ErrNotFound
		}
		return domain.Record{}, perr.FromPostgres(err, "read rollup")
	}
	return rec, nil
}

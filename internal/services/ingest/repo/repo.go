// Package repo provides Postgres bindings for the batch queue
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/services/ingest/domain"
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

// EnqueueBatch persists a planned batch as pending. Replays of the same
// batch id are no-ops so planning a file twice cannot double its work
func (r *queries) EnqueueBatch(ctx context.Context, b domain.Batch) error {
	rows, err := json.Marshal(b.Rows)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "marshal batch rows")
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO ingest_batches (batch_id, dataset_key, source_uri, rows, status, enqueued_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)
		ON CONFLICT (batch_id) DO NOTHING
	`, b.ID, b.DatasetKey, b.SourceURI, rows, b.EnqueuedAt)
	if err != nil {
		return perr.FromPostgres(err, "enqueue batch")
	}
	return nil
}

// ClaimBatch claims the oldest deliverable batch: pending, or claimed with a
// lapsed visibility window (the holder is presumed dead, at-least-once
// redelivery). SKIP LOCKED keeps concurrent workers off each other's rows.
// Batches past maxAttempts are left parked
func (r *queries) ClaimBatch(ctx context.Context, visibility time.Duration, maxAttempts int) (*domain.Batch, error) {
	row := r.q.QueryRow(ctx, `
		UPDATE ingest_batches b
		SET status = 'claimed', attempts = b.attempts + 1, claimed_at = now()
		WHERE b.batch_id = (
			SELECT batch_id
			FROM ingest_batches
			WHERE attempts < $2
			  AND (
				status = 'pending'
				OR (status = 'claimed' AND claimed_at < now() - make_interval(secs => $1))
			  )
			ORDER BY enqueued_at
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING b.batch_id, b.dataset_key, b.source_uri, b.rows, b.attempts, b.enqueued_at
	`, visibility.Seconds(), maxAttempts)

	var (
		b       domain.Batch
		payload []byte
	)
	if err := row.Scan(&b.ID, &b.DatasetKey, &b.SourceURI, &payload, &b.Attempts, &b.EnqueuedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromPostgres(err, "claim batch")
	}
	if err := json.Unmarshal(payload, &b.Rows); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "decode batch rows")
	}
	return &b, nil
}

// FinishBatch marks a claimed batch done with its outcome counts
func (r *queries) FinishBatch(ctx context.Context, id string, merged, quarantined, failed int) error {
	_, err := r.q.Exec(ctx, `
		UPDATE ingest_batches
		SET status = 'done', finished_at = now(),
		    merged = $2, quarantined = $3, failed = $4, last_error = NULL
		WHERE batch_id = $1
	`, id, merged, quarantined, failed)
	if err != nil {
		return perr.FromPostgres(err, "finish batch")
	}
	return nil
}

// ReleaseBatch returns a claimed batch to pending so another delivery can
// retry it; the attempt counter already advanced at claim time
func (r *queries) ReleaseBatch(ctx context.Context, id string, reason string) error {
	_, err := r.q.Exec(ctx, `
		UPDATE ingest_batches
		SET status = 'pending', last_error = $2
		WHERE batch_id = $1 AND status = 'claimed'
	`, id, reason)
	if err != nil {
		return perr.FromPostgres(err, "release batch")
	}
	return nil
}

// Package repo provides Postgres bindings for domain.Repo
package repo

import (
	"context"
	"encoding/json"
	"time"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/store"
	"finewatch/internal/services/quarantine/domain"
	ingdom "finewatch/internal/services/ingest/domain"
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

// Insert writes the row keyed by its identity hash. Redelivered rows conflict
// on the identity and land as a no-op, which keeps the sink write idempotent
func (r *queries) Insert(ctx context.Context, row domain.Row) error {
	payload, err := json.Marshal(row.Fields)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "marshal quarantine payload")
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO quarantine_rows (row_identity, dataset_key, reason, payload, quarantined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (row_identity) DO NOTHING
	`, row.Identity, row.DatasetKey, string(row.Reason), payload, row.QuarantinedAt)
	if err != nil {
		return perr.FromPostgres(err, "insert quarantine row")
	}
	return nil
}

// Recent returns the newest rows, optionally filtered by dataset
func (r *queries) Recent(ctx context.Context, datasetKey string, limit int) ([]domain.Row, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	scan := func(row repokit.Row) (domain.Row, error) {
		var (
			out     domain.Row
			reason  string
			payload []byte
			at      time.Time
		)
		if err := row.Scan(&out.Identity, &out.DatasetKey, &reason, &payload, &at); err != nil {
			return domain.Row{}, err
		}
		out.Reason = ingdom.QuarantineReason(reason)
		out.QuarantinedAt = at
		if err := json.Unmarshal(payload, &out.Fields); err != nil {
			return domain.Row{}, err
		}
		return out, nil
	}

	if datasetKey != "" {
		rows, err := store.Many(ctx, r.q, scan, `
			SELECT row_identity, dataset_key, reason, payload, quarantined_at
			FROM quarantine_rows
			WHERE dataset_key = $1
			ORDER BY quarantined_at DESC
			LIMIT $2
		`, datasetKey, limit)
		if err != nil {
			return nil, perr.FromPostgres(err, "list quarantine rows")
		}
		return rows, nil
	}

	rows, err := store.Many(ctx, r.q, scan, `
		SELECT row_identity, dataset_key, reason, payload, quarantined_at
		FROM quarantine_rows
		ORDER BY quarantined_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list quarantine rows")
	}
	return rows, nil
}

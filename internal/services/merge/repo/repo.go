// Package repo provides Postgres bindings for domain.Repo
package repo

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	ingdom "finewatch/internal/services/ingest/domain"
	"finewatch/internal/services/merge/domain"
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

// InsertEvent writes ev keyed by identity. The conflict target is the
// identity column alone and the action is DO NOTHING, so a concurrent or
// redelivered write never touches an existing row or its enrichment overlay
func (r *queries) InsertEvent(ctx context.Context, ev domain.Event) (bool, error) {
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeValidation, "marshal event detail")
	}
	raw, err := json.Marshal(ev.RawPayload)
	if err != nil {
		return false, perr.Wrap(err, perr.ErrorCodeValidation, "marshal raw payload")
	}
	var enrichment []byte
	if ev.Enrichment != nil {
		if enrichment, err = json.Marshal(ev.Enrichment); err != nil {
			return false, perr.Wrap(err, perr.ErrorCodeValidation, "marshal enrichment")
		}
	}

	tag, err := r.q.Exec(ctx, `
		INSERT INTO events (
			event_id, agency, dataset_key, occurred_at,
			state_code, city, city_slug, company_slug, site_id,
			title, description, penalty,
			detail, raw_payload, enrichment, synthetic_key, ingested_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (event_id) DO NOTHING
	`,
		ev.ID, ev.Agency, ev.DatasetKey, ev.OccurredAt,
		ev.StateCode, ev.City, ev.CitySlug, ev.CompanySlug, ev.SiteID,
		ev.Title, ev.Description, ev.Penalty,
		detail, raw, enrichment, ev.SyntheticKey, ev.IngestedAt,
	)
	if err != nil {
		return false, perr.FromPostgres(err, "insert event")
	}
	return tag.RowsAffected() == 1, nil
}

// Enrichment reads the overlay for an identity, nil when the event is absent
// or has no overlay yet
func (r *queries) Enrichment(ctx context.Context, eventID string) (*ingdom.Enrichment, error) {
	var payload []byte
	err := r.q.QueryRow(ctx, `
		SELECT enrichment FROM events WHERE event_id = $1
	`, eventID).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, perr.FromPostgres(err, "read enrichment")
	}
	if len(payload) == 0 {
		return nil, nil
	}
	var out ingdom.Enrichment
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeValidation, "decode enrichment")
	}
	return &out, nil
}

// DeleteEvent removes one identity during the fallback replace sequence
func (r *queries) DeleteEvent(ctx context.Context, eventID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM events WHERE event_id = $1`, eventID); err != nil {
		return perr.FromPostgres(err, "delete event")
	}
	return nil
}

// Package unload mirrors merged events into the columnar engine for
// analytical queries. The mirror is best effort: the canonical store stays the
// source of truth and a missed mirror write is repaired by the next compaction
// cycle, never by failing the merge
package unload

import (
	"context"
	"encoding/json"

	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/store"
	"finewatch/internal/services/ingest/domain"
)

// DefaultTable is the mirror table on the analytical engine
const DefaultTable = "events_mirror"

// Mirror writes merged events into the analytical engine
type Mirror struct {
	ch    store.Columnar
	table string
}

// New builds a mirror over the columnar seam
func New(ch store.Columnar) *Mirror {
	return &Mirror{ch: ch, table: DefaultTable}
}

// NewWithTable overrides the mirror table, used by tests
func NewWithTable(ch store.Columnar, table string) *Mirror {
	return &Mirror{ch: ch, table: table}
}

// MirrorEvent appends one merged event to the mirror table. The engine
// deduplicates by event identity during its own merge passes, so replays of
// the same identity are harmless
func (m *Mirror) MirrorEvent(ctx context.Context, ev domain.Event) error {
	if m == nil || m.ch == nil {
		return nil
	}
	row, err := mirrorRow(ev)
	if err != nil {
		return err
	}
	if err := m.ch.Insert(ctx, m.table, [][]any{row}); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "mirror insert %s", m.table)
	}
	return nil
}

// Compact asks the engine to fold replayed rows for the same identity into
// one. Callers run this on a schedule, not per write
func (m *Mirror) Compact(ctx context.Context) error {
	if m == nil || m.ch == nil {
		return nil
	}
	if err := m.ch.Exec(ctx, "OPTIMIZE TABLE "+m.table+" FINAL"); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "optimize %s", m.table)
	}
	return nil
}

// mirrorRow flattens an event into the mirror column order:
// event_id, agency, dataset_key, occurred_at, state_code, city, city_slug,
// company_slug, site_id, title, description, penalty, detail, synthetic_key,
// ingested_at
func mirrorRow(ev domain.Event) ([]any, error) {
	detail := []byte("{}")
	if len(ev.Detail) > 0 {
		b, err := json.Marshal(ev.Detail)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "encode detail")
		}
		detail = b
	}
	return []any{
		ev.ID,
		ev.Agency,
		ev.DatasetKey,
		ev.OccurredAt,
		ev.StateCode,
		ev.City,
		ev.CitySlug,
		ev.CompanySlug,
		ev.SiteID,
		ev.Title,
		ev.Description,
		ev.Penalty,
		string(detail),
		ev.SyntheticKey,
		ev.IngestedAt,
	}, nil
}

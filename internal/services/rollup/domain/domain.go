// Package domain defines the core types and interfaces for the rollup service
package domain

import (
	"context"
	"sort"
	"time"

	"finewatch/internal/core/entity"
	ingdom "finewatch/internal/services/ingest/domain"
)

// DefaultRecentK caps the per-entity recent list
const DefaultRecentK = 5

// BucketAll is the lifetime bucket maintained alongside the yearly ones
const BucketAll = "all"

// EventSummary is the compact recent-list entry
type EventSummary struct {
	EventID     string    `json:"event_id"`
	Title       string    `json:"title"`
	CompanySlug string    `json:"company_slug,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
	Penalty     float64   `json:"penalty"`
}

// Record is one rollup row per (entity type, slug, bucket): running counters
// plus a recent list capped at K, newest first
type Record struct {
	EntityType   entity.Type    `json:"entity_type"`
	Slug         string         `json:"slug"`
	Bucket       string         `json:"bucket"`
	EventCount   int64          `json:"event_count"`
	PenaltyTotal float64        `json:"penalty_total"`
	Recent       []EventSummary `json:"recent"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Apply merges sum into the record. Counters increment and the summary enters
// the recent list in timestamp-descending position; eviction is by rank, the
// oldest entries fall off past k. An event id still in the list is a duplicate
// delivery and the whole application is a no-op, reported as false. The list
// only remembers the retained window, so callers must not re-apply events the
// canonical store already holds; the worker gates on first insert for that
func (r *Record) Apply(sum EventSummary, k int) bool {
	if k <= 0 {
		k = DefaultRecentK
	}
	for _, s := range r.Recent {
		if s.EventID == sum.EventID {
			return false
		}
	}

	r.EventCount++
	r.PenaltyTotal += sum.Penalty

	i := sort.Search(len(r.Recent), func(i int) bool {
		return r.Recent[i].OccurredAt.Before(sum.OccurredAt)
	})
	r.Recent = append(r.Recent, EventSummary{})
	copy(r.Recent[i+1:], r.Recent[i:])
	r.Recent[i] = sum

	if len(r.Recent) > k {
		r.Recent = r.Recent[:k]
	}
	return true
}

// MaintainerPort applies a merged event to the rollups of its entities
type MaintainerPort interface {
	Apply(ctx context.Context, ev ingdom.Event) error
}

// ReaderPort serves rollups to the read surface
type ReaderPort interface {
	Get(ctx context.Context, t entity.Type, slug, bucket string) (Record, error)
}

// Repo abstracts rollup storage
type Repo interface {
	// GetForUpdate reads a record with a row lock, found false when absent
	GetForUpdate(ctx context.Context, t entity.Type, slug, bucket string) (Record, bool, error)

	// Save upserts the full record
	Save(ctx context.Context, rec Record) error

	// Get reads a record without locking, perr.ErrNotFound when absent
	Get(ctx context.Context, t entity.Type, slug, bucket string) (Record, error)
}

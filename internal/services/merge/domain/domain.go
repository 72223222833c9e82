// Package domain defines the core types and interfaces for the merge service
package domain

import (
	"context"
	"time"

	ingdom "finewatch/internal/services/ingest/domain"
)

// Event is the canonical record the coordinator merges
type Event = ingdom.Event

// RetryPolicy bounds the conflict retry loop. Explicit policy object rather
// than retry-as-control-flow buried in error handling
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Cap         time.Duration
}

// Normalized returns the policy with defaults applied
func (p RetryPolicy) Normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Base <= 0 {
		p.Base = 200 * time.Millisecond
	}
	if p.Cap <= 0 {
		p.Cap = 10 * time.Second
	}
	return p
}

// UpserterPort is the idempotent canonical-store write boundary.
// Upsert reports whether this call merged the event for the first time;
// callers gate once-per-event side effects on that, not on a nil error,
// because a redelivered event also returns nil
type UpserterPort interface {
	Upsert(ctx context.Context, ev Event) (inserted bool, err error)
}

// MirrorPort copies merged events into the analytical engine, best effort
type MirrorPort interface {
	MirrorEvent(ctx context.Context, ev Event) error
}

// EnrichPort triggers the external enrichment collaborator, fire and forget,
// carrying only the event identity
type EnrichPort interface {
	TriggerEnrich(ctx context.Context, eventID string)
}

// Repo abstracts the canonical store
type Repo interface {
	// InsertEvent writes ev if its identity is absent. Reports whether a row
	// was inserted; an existing identity is a no-op with inserted false and
	// any enrichment overlay already present stays untouched
	InsertEvent(ctx context.Context, ev Event) (inserted bool, err error)

	// Enrichment reads the overlay for an identity, nil when absent
	Enrichment(ctx context.Context, eventID string) (*ingdom.Enrichment, error)

	// DeleteEvent removes the colliding identity during the fallback
	// delete-then-reinsert sequence
	DeleteEvent(ctx context.Context, eventID string) error
}

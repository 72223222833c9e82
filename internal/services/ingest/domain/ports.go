package domain

import (
	"context"
	"time"
)

// NormalizeOutcome is the tri-state result of normalizing one raw row
type NormalizeOutcome struct {
	Event      *Event
	Quarantine *QuarantinedRow
}

// NormalizerPort turns a raw row into a canonical event or a quarantined row
type NormalizerPort interface {
	Normalize(ctx context.Context, row RawRow) (NormalizeOutcome, error)
}

// PlannerPort splits a source file's rows into bounded queue batches
type PlannerPort interface {
	PlanRows(ctx context.Context, datasetKey, sourceURI string, rows []map[string]string) (int, error)
}

// WorkerPort drains the batch queue
type WorkerPort interface {
	// Run processes batches until ctx is done or the queue stays empty
	Run(ctx context.Context) error

	// RunOnce claims and processes at most one batch; reports whether one was found
	RunOnce(ctx context.Context) (bool, error)
}

// Repo abstracts the batch queue storage
type Repo interface {
	// EnqueueBatch persists a planned batch as pending
	EnqueueBatch(ctx context.Context, b Batch) error

	// ClaimBatch atomically claims one pending batch, or a claimed batch
	// whose visibility window lapsed (the worker is presumed dead). Batches
	// past maxAttempts stay unclaimable for manual attention.
	// Returns nil when nothing is claimable
	ClaimBatch(ctx context.Context, visibility time.Duration, maxAttempts int) (*Batch, error)

	// FinishBatch marks a claimed batch done with its outcome counts
	FinishBatch(ctx context.Context, id string, merged, quarantined, failed int) error

	// ReleaseBatch returns a claimed batch to pending after a processing error
	ReleaseBatch(ctx context.Context, id string, reason string) error
}

// MergePort is the canonical-store upsert boundary. The bool reports a
// first-time merge; redelivered events return false with a nil error so the
// worker can skip once-per-event follow-up work
type MergePort interface {
	Upsert(ctx context.Context, ev Event) (bool, error)
}

// RollupPort applies a merged event to per-entity rollups
type RollupPort interface {
	Apply(ctx context.Context, ev Event) error
}

// QuarantinePort writes failed rows to the quarantine sink
type QuarantinePort interface {
	Put(ctx context.Context, row QuarantinedRow) error
}

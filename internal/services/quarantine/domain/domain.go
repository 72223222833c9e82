// Package domain defines the core types and interfaces for the quarantine service
package domain

import (
	"context"

	ingdom "finewatch/internal/services/ingest/domain"
)

// Row is a quarantined source row awaiting manual review
type Row = ingdom.QuarantinedRow

// SinkPort accepts rows that failed normalization. Writes are idempotent by
// row identity so redelivered batches never duplicate an entry
type SinkPort interface {
	Put(ctx context.Context, row Row) error
}

// QueryPort serves the review surface
type QueryPort interface {
	Recent(ctx context.Context, datasetKey string, limit int) ([]Row, error)
}

// Repo abstracts quarantine storage
type Repo interface {
	// Insert writes row if its identity is new, no-op otherwise
	Insert(ctx context.Context, row Row) error

	// Recent returns the newest rows, optionally filtered by dataset
	Recent(ctx context.Context, datasetKey string, limit int) ([]Row, error)
}

// Package domain defines the core types and interfaces for the ingest service
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// RawRow is one source row as delivered by the batch queue, tagged with its
// dataset key and ingestion timestamp. Fields keeps the original headers
type RawRow struct {
	DatasetKey string            `json:"dataset_key"`
	Fields     map[string]string `json:"fields"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
}

// Batch is a bounded unit of queue work. Rows from one source file are split
// into batches of at most the planner's configured size
type Batch struct {
	ID         string
	DatasetKey string
	SourceURI  string
	Rows       []RawRow
	Attempts   int
	EnqueuedAt time.Time
}

// BatchStatus tracks queue bookkeeping for a batch
type BatchStatus string

const (
	// BatchPending is enqueued and unclaimed
	BatchPending BatchStatus = "pending"

	// BatchClaimed is held by a worker inside its visibility window
	BatchClaimed BatchStatus = "claimed"

	// BatchDone is fully processed
	BatchDone BatchStatus = "done"
)

// Enrichment is the overlay written back by the external enrichment
// collaborator. Absence is a normal state, not an error
type Enrichment struct {
	Title     string    `json:"title,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Model     string    `json:"model,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Event is the canonical normalized record. Everything except the enrichment
// overlay is immutable once merged
type Event struct {
	ID          string            `json:"id"`
	Agency      string            `json:"agency"`
	DatasetKey  string            `json:"dataset_key"`
	OccurredAt  time.Time         `json:"occurred_at"`
	StateCode   string            `json:"state_code"`
	City        string            `json:"city"`
	CitySlug    string            `json:"city_slug"`
	CompanySlug string            `json:"company_slug"`
	SiteID      string            `json:"site_id,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Penalty     float64           `json:"penalty"`
	Detail      map[string]string `json:"detail,omitempty"`
	RawPayload  map[string]string `json:"raw_payload"`
	Enrichment  *Enrichment       `json:"enrichment,omitempty"`

	// SyntheticKey marks identities derived without a dataset natural key.
	// Re-ingesting such rows is not perfectly idempotent; the flag keeps
	// that tradeoff visible instead of hiding it
	SyntheticKey bool      `json:"synthetic_key,omitempty"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// QuarantineReason is the typed reason a row failed normalization
type QuarantineReason string

const (
	// ReasonUnresolvedCompany means the company reference missed the alias index
	ReasonUnresolvedCompany QuarantineReason = "UNRESOLVED_COMPANY"

	// ReasonUnresolvedCity means the city reference missed the alias index
	ReasonUnresolvedCity QuarantineReason = "UNRESOLVED_CITY"

	// ReasonMissingDate means no usable occurrence date, so identity cannot
	// be computed reliably
	ReasonMissingDate QuarantineReason = "MISSING_DATE"
)

// QuarantinedRow preserves a failed row with its payload for manual review
type QuarantinedRow struct {
	Identity      string           `json:"identity"`
	DatasetKey    string           `json:"dataset_key"`
	Reason        QuarantineReason `json:"reason"`
	Fields        map[string]string `json:"fields"`
	QuarantinedAt time.Time        `json:"quarantined_at"`
}

// EventIdentity hashes the fixed ordered tuple that defines event identity.
// naturalKey should be the dataset's own key when one exists; the caller
// substitutes a synthetic component otherwise and must flag the event
func EventIdentity(agency, date, entityRef, citySlug, naturalKey string) string {
	h := sha256.New()
	h.Write([]byte("event:"))
	for _, part := range []string{agency, date, entityRef, citySlug, naturalKey} {
		h.Write([]byte(part))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RowIdentity hashes a raw row's full payload under its dataset key, used to
// keep quarantine writes idempotent across redelivery. Keys are sorted so the
// hash is independent of map iteration order
func RowIdentity(datasetKey string, fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte("row:"))
	h.Write([]byte(datasetKey))
	for _, k := range keys {
		h.Write([]byte{0x1f})
		h.Write([]byte(k))
		h.Write([]byte{0x1e})
		h.Write([]byte(strings.TrimSpace(fields[k])))
	}
	return hex.EncodeToString(h.Sum(nil))
}

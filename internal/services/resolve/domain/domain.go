// Package domain defines the core types and interfaces for the resolve service
package domain

import (
	"context"

	"finewatch/internal/core/entity"
)

// Resolution is the outcome of an alias lookup
// Matched false means the caller owns the miss (quarantine, never mint inline)
type Resolution struct {
	Slug    string
	Matched bool
}

// ResolverPort canonicalizes free-text entity references to stable slugs.
// scope narrows the alias space; for cities it is the lowercased state code
// so "springfield" in IL and MO stay distinct, for everything else it is ""
type ResolverPort interface {
	Resolve(ctx context.Context, t entity.Type, raw, scope string) (Resolution, error)
}

// SeederPort is the reviewed entity-creation path, used by the offline
// seeding step and never by the ingestion hot path
type SeederPort interface {
	SeedEntity(ctx context.Context, t entity.Type, slug, display string, aliases []string) error
}

// Repo abstracts alias index and entity storage
type Repo interface {
	// LookupAlias returns the bound slug or perr.ErrNotFound
	LookupAlias(ctx context.Context, t entity.Type, alias string) (string, error)

	// InsertAlias binds alias to slug if unbound. Aliases are immutable:
	// a concurrent or pre-existing binding makes this a no-op, never a rebind
	InsertAlias(ctx context.Context, t entity.Type, alias, slug string) error

	// InsertEntity creates the canonical record if absent
	InsertEntity(ctx context.Context, t entity.Type, slug, display string) error
}

// Package repo provides Postgres bindings for domain.Repo
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/store"
	"finewatch/internal/services/resolve/domain"
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

// LookupAlias returns the slug bound to alias or perr.ErrNotFound
func (r *queries) LookupAlias(ctx context.Context, t entity.Type, alias string) (string, error) {
	slug, err := store.Scalar[string](ctx, r.q, `
		SELECT slug
		FROM entity_aliases
		WHERE entity_type = $1 AND alias = $2
	`, string(t), alias)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", perr.ErrNotFound
		}
		return "", perr.FromPostgres(err, "lookup alias")
	}
	return slug, nil
}

// InsertAlias binds alias to slug if unbound. Aliases are immutable, so a
// conflicting binding is left untouched and the insert is a silent no-op
func (r *queries) InsertAlias(ctx context.Context, t entity.Type, alias, slug string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO entity_aliases (entity_type, alias, slug)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, alias) DO NOTHING
	`, string(t), alias, slug)
	if err != nil {
		return perr.FromPostgres(err, "insert alias")
	}
	return nil
}

// InsertEntity creates the canonical record if absent
func (r *queries) InsertEntity(ctx context.Context, t entity.Type, slug, display string) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO entities (entity_type, slug, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (entity_type, slug) DO NOTHING
	`, string(t), slug, display)
	if err != nil {
		return perr.FromPostgres(err, "insert entity")
	}
	return nil
}

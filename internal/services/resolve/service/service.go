// Package service implements alias resolution with a read-through hot cache
package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/logger"
	"finewatch/internal/services/resolve/domain"
)

// Config tunes the alias hot cache
type Config struct {
	CacheTTL   time.Duration
	CacheSweep time.Duration
}

// Svc implements domain.ResolverPort and domain.SeederPort
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.Repo]
	hot    *gocache.Cache
}

var (
	_ domain.ResolverPort = (*Svc)(nil)
	_ domain.SeederPort   = (*Svc)(nil)
)

// New constructs the resolve service
func New(db repokit.TxRunner, binder repokit.Binder[domain.Repo], cfg Config) *Svc {
	if db == nil {
		panic("resolve.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("resolve.Service requires a non-nil Repo binder")
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	sweep := cfg.CacheSweep
	if sweep <= 0 {
		sweep = 2 * ttl
	}
	return &Svc{
		db:     db,
		binder: binder,
		hot:    gocache.New(ttl, sweep),
	}
}

// aliasString builds the stored alias form; city aliases carry the state
// scope so "springfield|il" and "springfield|mo" bind independently
func aliasString(norm, scope string) string {
	if scope == "" {
		return norm
	}
	return norm + "|" + scope
}

func cacheKey(t entity.Type, alias string) string { return string(t) + ":" + alias }

// Resolve canonicalizes raw to a slug via the alias index.
// Well-formed state codes and names synthesize their slug deterministically
// without touching the index. A miss returns Matched false; minting canonical
// entities for ambiguous names is a reviewed offline operation, never an
// ingestion side effect
func (s *Svc) Resolve(ctx context.Context, t entity.Type, raw, scope string) (domain.Resolution, error) {
	if t == entity.TypeState {
		if code, ok := entity.StateCode(raw); ok {
			slug := entity.StateSlug(code)
			s.ensureState(ctx, code, slug)
			return domain.Resolution{Slug: slug, Matched: true}, nil
		}
	}

	norm := entity.Normalize(t, raw)
	if norm == "" {
		return domain.Resolution{}, nil
	}
	alias := aliasString(norm, scope)

	if v, ok := s.hot.Get(cacheKey(t, alias)); ok {
		return domain.Resolution{Slug: v.(string), Matched: true}, nil
	}

	repo := s.binder.Bind(s.db)

	slug, err := repo.LookupAlias(ctx, t, alias)
	switch {
	case err == nil:
		s.hot.Set(cacheKey(t, alias), slug, gocache.DefaultExpiration)
		return domain.Resolution{Slug: slug, Matched: true}, nil
	case !perr.IsCode(err, perr.ErrorCodeNotFound):
		return domain.Resolution{}, perr.Wrap(err, perr.ErrorCodeDB, "alias lookup")
	}

	// secondary form: metro-government qualifiers, parentheticals
	if simp := entity.Simplified(t, norm); simp != "" {
		slug, err = repo.LookupAlias(ctx, t, aliasString(simp, scope))
		switch {
		case err == nil:
			// bind the noisier primary form so the next row hits directly.
			// conditional write; a concurrent or seeded binding wins and
			// this becomes a no-op
			if aerr := repo.InsertAlias(ctx, t, alias, slug); aerr != nil {
				logger.C(ctx).Warn().Err(aerr).
					Str("alias", alias).
					Msg("opportunistic alias bind failed")
			}
			s.hot.Set(cacheKey(t, alias), slug, gocache.DefaultExpiration)
			return domain.Resolution{Slug: slug, Matched: true}, nil
		case !perr.IsCode(err, perr.ErrorCodeNotFound):
			return domain.Resolution{}, perr.Wrap(err, perr.ErrorCodeDB, "alias lookup")
		}
	}

	// misses are not cached so freshly seeded aliases take effect immediately
	return domain.Resolution{Slug: "", Matched: false}, nil
}

// ensureState lazily mints the canonical state record. The slug is
// deterministic so a failure here only delays metadata, not resolution
func (s *Svc) ensureState(ctx context.Context, code, slug string) {
	key := "state-minted:" + slug
	if _, ok := s.hot.Get(key); ok {
		return
	}
	repo := s.binder.Bind(s.db)
	if err := repo.InsertEntity(ctx, entity.TypeState, slug, code); err != nil {
		logger.C(ctx).Warn().Err(err).Str("state", code).Msg("state entity mint failed")
		return
	}
	s.hot.Set(key, struct{}{}, gocache.NoExpiration)
}

// SeedEntity creates a canonical entity and binds its aliases, all inside one
// transaction. Alias strings are normalized before binding so seeds written
// in display form ("Walmart Inc.") land on the same key the resolver computes
func (s *Svc) SeedEntity(ctx context.Context, t entity.Type, slug, display string, aliases []string) error {
	if !t.Valid() {
		return perr.InvalidArgf("entity type %q", t)
	}
	if slug == "" {
		return perr.Validationf("empty slug for %q", display)
	}
	return s.db.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.binder.Bind(q)
		if err := repo.InsertEntity(ctx, t, slug, display); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeDB, "seed entity %s", slug)
		}
		for _, a := range aliases {
			norm := entity.Normalize(t, a)
			if norm == "" {
				continue
			}
			if err := repo.InsertAlias(ctx, t, norm, slug); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeDB, "seed alias %q", a)
			}
		}
		// the canonical name resolves to itself
		if norm := entity.Normalize(t, display); norm != "" {
			if err := repo.InsertAlias(ctx, t, norm, slug); err != nil {
				return perr.Wrapf(err, perr.ErrorCodeDB, "seed display alias %q", display)
			}
		}
		return nil
	})
}

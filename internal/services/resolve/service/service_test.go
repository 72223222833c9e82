package service

import (
	"context"
	"testing"
	"time"

	"finewatch/internal/core/entity"
	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/services/resolve/domain"
)

// fakeRepo is an in-memory alias index
type fakeRepo struct {
	aliases      map[string]string // type:alias -> slug
	entities     map[string]string // type:slug -> display
	aliasInserts int
	lookupErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		aliases:  map[string]string{},
		entities: map[string]string{},
	}
}

func (f *fakeRepo) key(t entity.Type, s string) string { return string(t) + ":" + s }

func (f *fakeRepo) LookupAlias(_ context.Context, t entity.Type, alias string) (string, error) {
	if f.lookupErr != nil {
		return "", f.lookupErr
	}
	if slug, ok := f.aliases[f.key(t, alias)]; ok {
		return slug, nil
	}
	return "", perr.ErrNotFound
}

func (f *fakeRepo) InsertAlias(_ context.Context, t entity.Type, alias, slug string) error {
	f.aliasInserts++
	k := f.key(t, alias)
	if _, bound := f.aliases[k]; bound {
		return nil // conditional write, existing binding wins
	}
	f.aliases[k] = slug
	return nil
}

func (f *fakeRepo) InsertEntity(_ context.Context, t entity.Type, slug, display string) error {
	k := f.key(t, slug)
	if _, ok := f.entities[k]; !ok {
		f.entities[k] = display
	}
	return nil
}

// stubTx satisfies repokit.TxRunner without a database
type stubTx struct{ repokit.Queryer }

func (s stubTx) Tx(ctx context.Context, fn func(q repokit.Queryer) error) error { return fn(s) }

func (s stubTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (s stubTx) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, nil }

func newSvc(f *fakeRepo) *Svc {
	binder := repokit.BindFunc[domain.Repo](func(repokit.Queryer) domain.Repo { return f })
	return New(stubTx{}, binder, Config{CacheTTL: time.Minute})
}

func TestResolveDeterminism(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	f.aliases["company:walmart"] = "walmart"

	svc := newSvc(f)
	ctx := context.Background()

	var slugs []string
	for _, raw := range []string{"Walmart Inc", "WALMART INC", " walmart inc "} {
		res, err := svc.Resolve(ctx, entity.TypeCompany, raw, "")
		if err != nil {
			t.Fatalf("Resolve(%q): %v", raw, err)
		}
		if !res.Matched {
			t.Fatalf("Resolve(%q) missed", raw)
		}
		slugs = append(slugs, res.Slug)
	}
	for _, s := range slugs {
		if s != "walmart" {
			t.Fatalf("slugs diverge: %v", slugs)
		}
	}
}

func TestResolveCityNoiseStripping(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	f.aliases["city:miami|fl"] = "miami-fl"

	svc := newSvc(f)
	ctx := context.Background()

	clean, err := svc.Resolve(ctx, entity.TypeCity, "MIAMI", "fl")
	if err != nil || !clean.Matched {
		t.Fatalf("clean resolve: %+v %v", clean, err)
	}
	noisy, err := svc.Resolve(ctx, entity.TypeCity, "123 MAIN ST, MIAMI", "fl")
	if err != nil || !noisy.Matched {
		t.Fatalf("noisy resolve: %+v %v", noisy, err)
	}
	if clean.Slug != noisy.Slug {
		t.Fatalf("slugs diverge: %q vs %q", clean.Slug, noisy.Slug)
	}
}

func TestResolveMissDoesNotMint(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	svc := newSvc(f)

	res, err := svc.Resolve(context.Background(), entity.TypeCompany, "Totally Unknown Widgets", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Matched || res.Slug != "" {
		t.Fatalf("miss should not match: %+v", res)
	}
	if len(f.entities) != 0 {
		t.Fatalf("miss minted an entity: %v", f.entities)
	}
	if f.aliasInserts != 0 {
		t.Fatalf("miss inserted an alias")
	}
}

func TestResolveSecondaryFormBindsPrimary(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	f.aliases["city:nashville"] = "nashville-tn"

	svc := newSvc(f)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, entity.TypeCity, "Nashville-Davidson Metropolitan Government (balance)", "")
	if err != nil || !res.Matched || res.Slug != "nashville-tn" {
		t.Fatalf("secondary form resolve: %+v %v", res, err)
	}

	// the noisy primary form is now bound directly
	norm := entity.Normalize(entity.TypeCity, "Nashville-Davidson Metropolitan Government (balance)")
	if got := f.aliases["city:"+norm]; got != "nashville-tn" {
		t.Fatalf("primary form not bound: %q", got)
	}
}

func TestResolveStateSynthesis(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	svc := newSvc(f)
	ctx := context.Background()

	// codes and full names resolve without any alias
	for _, raw := range []string{"FL", "fl", "Florida"} {
		res, err := svc.Resolve(ctx, entity.TypeState, raw, "")
		if err != nil || !res.Matched || res.Slug != "fl" {
			t.Fatalf("Resolve(state, %q) = %+v %v", raw, res, err)
		}
	}
	if _, ok := f.entities["state:fl"]; !ok {
		t.Fatal("state entity not minted")
	}

	// garbage states miss instead of synthesizing
	res, err := svc.Resolve(ctx, entity.TypeState, "Atlantis", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Matched {
		t.Fatalf("bogus state matched: %+v", res)
	}
}

func TestResolveCacheHit(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	f.aliases["company:acme"] = "acme"

	svc := newSvc(f)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, entity.TypeCompany, "ACME", ""); err != nil {
		t.Fatalf("warm: %v", err)
	}

	// second hit is served from cache; repo errors are invisible
	f.lookupErr = perr.Unavailablef("db down")
	res, err := svc.Resolve(ctx, entity.TypeCompany, "acme", "")
	if err != nil || !res.Matched || res.Slug != "acme" {
		t.Fatalf("cached resolve: %+v %v", res, err)
	}
}

func TestSeedEntityBindsNormalizedAliases(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	svc := newSvc(f)
	ctx := context.Background()

	err := svc.SeedEntity(ctx, entity.TypeCompany, "walmart", "Walmart", []string{"Walmart Inc.", "WAL-MART STORES"})
	if err != nil {
		t.Fatalf("SeedEntity: %v", err)
	}
	if f.entities["company:walmart"] != "Walmart" {
		t.Fatalf("entity missing: %v", f.entities)
	}
	// seeds land on the keys the resolver computes
	res, err := svc.Resolve(ctx, entity.TypeCompany, "walmart inc", "")
	if err != nil || !res.Matched || res.Slug != "walmart" {
		t.Fatalf("resolve after seed: %+v %v", res, err)
	}
}

func TestSeedEntityValidates(t *testing.T) {
	t.Parallel()

	svc := newSvc(newFakeRepo())
	if err := svc.SeedEntity(context.Background(), entity.Type("planet"), "x", "X", nil); err == nil {
		t.Fatal("bad entity type accepted")
	}
	if err := svc.SeedEntity(context.Background(), entity.TypeCompany, "", "X", nil); err == nil {
		t.Fatal("empty slug accepted")
	}
}

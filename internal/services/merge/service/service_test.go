package service

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	ingdom "finewatch/internal/services/ingest/domain"
	"finewatch/internal/services/merge/domain"
)

// fakeRepo is an in-memory canonical store
type fakeRepo struct {
	events      map[string]domain.Event
	inserts     int
	deletes     int
	insertErrs  []error // consumed per InsertEvent call, nil means succeed
}

func newFakeRepo() *fakeRepo { return &fakeRepo{events: map[string]domain.Event{}} }

func (f *fakeRepo) nextErr() error {
	if len(f.insertErrs) == 0 {
		return nil
	}
	err := f.insertErrs[0]
	f.insertErrs = f.insertErrs[1:]
	return err
}

func (f *fakeRepo) InsertEvent(_ context.Context, ev domain.Event) (bool, error) {
	f.inserts++
	if err := f.nextErr(); err != nil {
		return false, err
	}
	if _, exists := f.events[ev.ID]; exists {
		return false, nil
	}
	f.events[ev.ID] = ev
	return true, nil
}

func (f *fakeRepo) Enrichment(_ context.Context, id string) (*ingdom.Enrichment, error) {
	if ev, ok := f.events[id]; ok {
		return ev.Enrichment, nil
	}
	return nil, nil
}

func (f *fakeRepo) DeleteEvent(_ context.Context, id string) error {
	f.deletes++
	delete(f.events, id)
	return nil
}

type stubTx struct{ repokit.Queryer }

func (s stubTx) Tx(ctx context.Context, fn func(q repokit.Queryer) error) error { return fn(s) }

func (s stubTx) Exec(context.Context, string, ...any) (repokit.CommandTag, error) { return nil, nil }
func (s stubTx) Query(context.Context, string, ...any) (repokit.Rows, error)      { return nil, nil }

type countingMirror struct{ calls int }

func (m *countingMirror) MirrorEvent(context.Context, domain.Event) error {
	m.calls++
	return nil
}

type countingEnrich struct{ calls int }

func (e *countingEnrich) TriggerEnrich(context.Context, string) { e.calls++ }

func newSvc(f *fakeRepo, policy domain.RetryPolicy, mirror domain.MirrorPort, enrich domain.EnrichPort) *Svc {
	binder := repokit.BindFunc[domain.Repo](func(repokit.Queryer) domain.Repo { return f })
	return New(stubTx{}, binder, policy, mirror, enrich)
}

func testEvent(id string) domain.Event {
	return domain.Event{
		ID:          id,
		Agency:      "osha",
		DatasetKey:  "osha_inspections_v1",
		OccurredAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		StateCode:   "NY",
		City:        "NEW YORK",
		CitySlug:    "new-york-ny",
		CompanySlug: "acme-corp",
		Title:       "inspection",
		IngestedAt:  time.Now().UTC(),
	}
}

func TestUpsertIdempotent(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	mirror := &countingMirror{}
	enrich := &countingEnrich{}
	svc := newSvc(f, domain.RetryPolicy{}, mirror, enrich)
	ctx := context.Background()

	ev := testEvent("ev-1")
	inserted, err := svc.Upsert(ctx, ev)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !inserted {
		t.Fatal("first upsert not reported as a first-time merge")
	}
	inserted, err = svc.Upsert(ctx, ev)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if inserted {
		t.Fatal("redelivered upsert reported as a first-time merge")
	}
	if len(f.events) != 1 {
		t.Fatalf("expected 1 canonical row, got %d", len(f.events))
	}
	// side effects fire only on the first-time merge
	if mirror.calls != 1 || enrich.calls != 1 {
		t.Fatalf("side effects: mirror=%d enrich=%d", mirror.calls, enrich.calls)
	}
}

func TestUpsertRetryBound(t *testing.T) {
	t.Parallel()

	const attempts = 4
	base := 4 * time.Millisecond

	f := newFakeRepo()
	for range attempts + 2 {
		f.insertErrs = append(f.insertErrs, perr.Conflictf("concurrent structural change"))
	}
	svc := newSvc(f, domain.RetryPolicy{MaxAttempts: attempts, Base: base, Cap: time.Second}, nil, nil)

	start := time.Now()
	_, err := svc.Upsert(context.Background(), testEvent("ev-2"))
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if !perr.IsCode(err, perr.ErrorCodeMergeExhausted) {
		t.Fatalf("code = %v, want MergeExhausted", perr.CodeOf(err))
	}
	if f.inserts != attempts {
		t.Fatalf("inserts = %d, want exactly %d", f.inserts, attempts)
	}
	// three sleeps with exponentially growing floors: base/2 + base + 2*base
	if minimum := base/2 + base + 2*base; elapsed < minimum {
		t.Fatalf("elapsed %v below backoff floor %v", elapsed, minimum)
	}
}

func TestUpsertNonRetryableFailsFast(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	f.insertErrs = []error{perr.Validationf("bad payload")}
	svc := newSvc(f, domain.RetryPolicy{MaxAttempts: 5}, nil, nil)

	_, err := svc.Upsert(context.Background(), testEvent("ev-3"))
	if err == nil {
		t.Fatal("expected error")
	}
	if perr.IsCode(err, perr.ErrorCodeMergeExhausted) {
		t.Fatal("non-retryable error burned the retry budget")
	}
	if f.inserts != 1 {
		t.Fatalf("inserts = %d, want 1", f.inserts)
	}
}

func TestUpsertFallbackPreservesEnrichment(t *testing.T) {
	t.Parallel()

	f := newFakeRepo()
	overlay := &ingdom.Enrichment{Title: "summarized", Model: "m1"}
	seeded := testEvent("ev-4")
	seeded.Enrichment = overlay
	f.events[seeded.ID] = seeded

	// the store rejects the atomic path once, then the replace sequence runs
	f.insertErrs = []error{&pgconn.PgError{Code: "0A000", Message: "unsupported"}}

	svc := newSvc(f, domain.RetryPolicy{MaxAttempts: 3, Base: time.Millisecond}, nil, nil)

	update := testEvent("ev-4")
	update.Description = "refreshed"
	if _, err := svc.Upsert(context.Background(), update); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok := f.events["ev-4"]
	if !ok {
		t.Fatal("event missing after fallback")
	}
	if got.Description != "refreshed" {
		t.Fatalf("replace did not land: %q", got.Description)
	}
	if got.Enrichment == nil || got.Enrichment.Title != "summarized" {
		t.Fatalf("enrichment overlay lost: %+v", got.Enrichment)
	}
	if f.deletes != 1 {
		t.Fatalf("deletes = %d, want 1", f.deletes)
	}
}

func TestUpsertRejectsEmptyIdentity(t *testing.T) {
	t.Parallel()

	svc := newSvc(newFakeRepo(), domain.RetryPolicy{}, nil, nil)
	if _, err := svc.Upsert(context.Background(), domain.Event{}); err == nil {
		t.Fatal("empty identity accepted")
	}
}

func TestUpsertSurvivesDegenerateRetryPolicy(t *testing.T) {
	t.Parallel()

	// a sub-nanosecond base survives Normalized (it only defaults <= 0) and a
	// deep attempt budget overflows the shifted base; neither may panic the
	// jitter computation
	const attempts = 70
	f := newFakeRepo()
	for range attempts + 1 {
		f.insertErrs = append(f.insertErrs, perr.Conflictf("hot partition"))
	}
	svc := newSvc(f, domain.RetryPolicy{MaxAttempts: attempts, Base: time.Nanosecond, Cap: 2 * time.Nanosecond}, nil, nil)

	_, err := svc.Upsert(context.Background(), testEvent("ev-5"))
	if !perr.IsCode(err, perr.ErrorCodeMergeExhausted) {
		t.Fatalf("code = %v, want MergeExhausted", perr.CodeOf(err))
	}
	if f.inserts != attempts {
		t.Fatalf("inserts = %d, want %d", f.inserts, attempts)
	}
}

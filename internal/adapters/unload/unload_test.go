package unload

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/store"
	"finewatch/internal/services/ingest/domain"
)

type fakeColumnar struct {
	inserts map[string][][]any
	execs   []string
	fail    error
}

func newFakeColumnar() *fakeColumnar { return &fakeColumnar{inserts: map[string][][]any{}} }

func (f *fakeColumnar) Insert(_ context.Context, table string, rows [][]any) error {
	if f.fail != nil {
		return f.fail
	}
	f.inserts[table] = append(f.inserts[table], rows...)
	return nil
}

func (f *fakeColumnar) Exec(_ context.Context, sql string, _ ...any) error {
	if f.fail != nil {
		return f.fail
	}
	f.execs = append(f.execs, sql)
	return nil
}

func (f *fakeColumnar) Query(context.Context, string, ...any) (store.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeColumnar) Close() error { return nil }

func TestMirrorEventWritesOneRow(t *testing.T) {
	t.Parallel()

	ch := newFakeColumnar()
	m := New(ch)

	ev := domain.Event{
		ID:          "ev-1",
		Agency:      "osha",
		DatasetKey:  "osha_v1",
		OccurredAt:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		StateCode:   "NY",
		City:        "NEW YORK",
		CitySlug:    "new-york-ny",
		CompanySlug: "acme-corp",
		Title:       "Complaint",
		Penalty:     1200.50,
		Detail:      map[string]string{"illness_skin": "3"},
	}
	if err := m.MirrorEvent(context.Background(), ev); err != nil {
		t.Fatalf("MirrorEvent: %v", err)
	}

	rows := ch.inserts[DefaultTable]
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	row := rows[0]
	if row[0] != "ev-1" || row[7] != "acme-corp" || row[11] != 1200.50 {
		t.Fatalf("row: %v", row)
	}
	if row[12] != `{"illness_skin":"3"}` {
		t.Fatalf("detail column: %v", row[12])
	}
}

func TestMirrorEventWrapsEngineFailure(t *testing.T) {
	t.Parallel()

	ch := newFakeColumnar()
	ch.fail = errors.New("engine away")
	m := New(ch)

	err := m.MirrorEvent(context.Background(), domain.Event{ID: "ev-1"})
	if !perr.IsCode(err, perr.ErrorCodeUnavailable) {
		t.Fatalf("code = %v", perr.CodeOf(err))
	}
}

func TestCompactIssuesOptimize(t *testing.T) {
	t.Parallel()

	ch := newFakeColumnar()
	m := NewWithTable(ch, "events_test")

	if err := m.Compact(context.Background()); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(ch.execs) != 1 || ch.execs[0] != "OPTIMIZE TABLE events_test FINAL" {
		t.Fatalf("execs: %v", ch.execs)
	}
}

func TestMirrorNilEngineIsNoop(t *testing.T) {
	t.Parallel()

	m := New(nil)
	if err := m.MirrorEvent(context.Background(), domain.Event{ID: "x"}); err != nil {
		t.Fatalf("nil engine: %v", err)
	}
	if err := m.Compact(context.Background()); err != nil {
		t.Fatalf("nil engine compact: %v", err)
	}
}

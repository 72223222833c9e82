package domain

import (
	"fmt"
	"math/rand"
	"testing"
	"time"
)

func sum(id string, at time.Time, penalty float64) EventSummary {
	return EventSummary{EventID: id, Title: "t-" + id, OccurredAt: at, Penalty: penalty}
}

func assertInvariants(t *testing.T, r *Record, k int) {
	t.Helper()
	if len(r.Recent) > k {
		t.Fatalf("recent list %d exceeds K=%d", len(r.Recent), k)
	}
	for i := 0; i+1 < len(r.Recent); i++ {
		if r.Recent[i].OccurredAt.Before(r.Recent[i+1].OccurredAt) {
			t.Fatalf("recent list out of order at %d: %v < %v",
				i, r.Recent[i].OccurredAt, r.Recent[i+1].OccurredAt)
		}
	}
}

func TestRecordApplyBoundAndOrder(t *testing.T) {
	t.Parallel()

	const k = 5
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	var r Record
	order := rand.New(rand.NewSource(42)).Perm(20)
	for _, n := range order {
		at := base.Add(time.Duration(n) * time.Hour)
		if !r.Apply(sum(fmt.Sprintf("ev-%d", n), at, 100), k) {
			t.Fatalf("fresh event ev-%d rejected", n)
		}
		assertInvariants(t, &r, k)
	}

	if r.EventCount != 20 {
		t.Fatalf("EventCount = %d, want 20", r.EventCount)
	}
	if r.PenaltyTotal != 2000 {
		t.Fatalf("PenaltyTotal = %v, want 2000", r.PenaltyTotal)
	}
	// survivors are the K newest regardless of arrival order
	if got := r.Recent[0].EventID; got != "ev-19" {
		t.Fatalf("newest = %s, want ev-19", got)
	}
	if got := r.Recent[k-1].EventID; got != "ev-15" {
		t.Fatalf("oldest survivor = %s, want ev-15", got)
	}
}

func TestRecordApplyDedupe(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var r Record
	if !r.Apply(sum("ev-1", at, 500), 5) {
		t.Fatal("first apply rejected")
	}
	// redelivery of the same event must not double-count
	if r.Apply(sum("ev-1", at, 500), 5) {
		t.Fatal("duplicate apply accepted")
	}
	if r.EventCount != 1 || r.PenaltyTotal != 500 || len(r.Recent) != 1 {
		t.Fatalf("double-applied: %+v", r)
	}
}

func TestRecordApplyOldEventPastWindow(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	var r Record
	for i := range 5 {
		r.Apply(sum(fmt.Sprintf("new-%d", i), base.Add(time.Duration(i)*time.Hour), 10), 5)
	}

	// counters still move for an event too old for the window
	if !r.Apply(sum("ancient", base.Add(-24*time.Hour), 10), 5) {
		t.Fatal("old event rejected")
	}
	if r.EventCount != 6 {
		t.Fatalf("EventCount = %d, want 6", r.EventCount)
	}
	for _, s := range r.Recent {
		if s.EventID == "ancient" {
			t.Fatal("event older than every survivor stayed in the window")
		}
	}
	assertInvariants(t, &r, 5)
}

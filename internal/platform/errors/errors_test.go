package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapPreservesCodeAndCause(t *testing.T) {
	t.Parallel()

	cause := stderrs.New("boom")
	err := Wrap(cause, ErrorCodeConflict, "upsert failed")

	if got := CodeOf(err); got != ErrorCodeConflict {
		t.Fatalf("CodeOf = %d, want Conflict", got)
	}
	if !stderrs.Is(err, cause) {
		t.Fatalf("wrapped error should match cause via errors.Is")
	}
	if want := "upsert failed: boom"; err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestRootUnwrapsToDeepestCause(t *testing.T) {
	t.Parallel()

	cause := stderrs.New("disk full")
	err := Wrap(fmt.Errorf("mid: %w", cause), ErrorCodeDB, "outer")

	if got := Root(err); got != cause {
		t.Fatalf("Root = %v, want %v", got, cause)
	}
}

func TestMergeExhaustedCodeAndMessage(t *testing.T) {
	t.Parallel()

	cause := Conflictf("still conflicting")
	err := MergeExhausted(cause, 5)

	if !IsCode(err, ErrorCodeMergeExhausted) {
		t.Fatalf("expected ErrorCodeMergeExhausted, got %d", CodeOf(err))
	}
	e, ok := As(err)
	if !ok {
		t.Fatalf("expected *Error")
	}
	if e.Unwrap() == nil {
		t.Fatalf("expected wrapped cause")
	}
}

func TestRetryableByCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		err  error
		want bool
	}{
		{Conflictf("contention"), true},
		{Unavailablef("store warming up"), true},
		{Validationf("bad row"), false},
		{NotFoundf("no such entity"), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := Retryable(tc.err); got != tc.want {
			t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	t.Parallel()

	if got := HTTPStatus(ErrNotFound); got != http.StatusNotFound {
		t.Fatalf("not found -> %d", got)
	}
	if got := HTTPStatus(Validationf("x")); got != http.StatusBadRequest {
		t.Fatalf("validation -> %d", got)
	}
	if got := HTTPStatus(MergeExhausted(Conflictf("x"), 3)); got != http.StatusInternalServerError {
		t.Fatalf("merge exhausted -> %d", got)
	}
}

func TestWithOpAndFieldCopyOnWrite(t *testing.T) {
	t.Parallel()

	base := Validationf("missing date")
	withOp := WithOp(base, "normalize")
	withField := WithField(withOp, "occurred_on")

	if e, _ := As(base); e.Op() != "" || e.Field() != "" {
		t.Fatalf("base mutated: op=%q field=%q", e.Op(), e.Field())
	}
	e, _ := As(withField)
	if e.Op() != "normalize" || e.Field() != "occurred_on" {
		t.Fatalf("got op=%q field=%q", e.Op(), e.Field())
	}
}

package errors

import (
	stderrs "errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func pgErr(code string) error {
	return &pgconn.PgError{Code: code, Message: "pg says no"}
}

func TestDBErrorCodeMapping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		sqlstate string
		want     ErrorCode
	}{
		{pgErrUniqueViolation, ErrorCodeDuplicateKey},
		{pgErrForeignKeyViolation, ErrorCodeInvalidArgument},
		{pgErrNotNullViolation, ErrorCodeValidation},
		{pgErrSerializationFailure, ErrorCodeConflict},
		{pgErrDeadlockDetected, ErrorCodeConflict},
		{pgErrCannotConnectNow, ErrorCodeUnavailable},
		{"XX000", ErrorCodeDB},
	}
	for _, tc := range cases {
		got, ok := DBErrorCode(pgErr(tc.sqlstate))
		if !ok {
			t.Fatalf("DBErrorCode(%s) not ok", tc.sqlstate)
		}
		if got != tc.want {
			t.Fatalf("DBErrorCode(%s) = %d, want %d", tc.sqlstate, got, tc.want)
		}
	}
}

func TestDBErrorCodeForeignError(t *testing.T) {
	t.Parallel()

	if _, ok := DBErrorCode(stderrs.New("not a pg error")); ok {
		t.Fatalf("expected !ok for foreign error")
	}
}

func TestIsDuplicateKeyThroughWrapping(t *testing.T) {
	t.Parallel()

	err := Wrap(fmt.Errorf("insert: %w", pgErr(pgErrUniqueViolation)), ErrorCodeDB, "alias mint")
	if !IsDuplicateKey(err) {
		t.Fatalf("expected duplicate key through wrap chain")
	}
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization", pgErr(pgErrSerializationFailure), true},
		{"deadlock", pgErr(pgErrDeadlockDetected), true},
		{"unique", pgErr(pgErrUniqueViolation), false},
		{"commit text", stderrs.New("commit unexpectedly resulted in rollback"), true},
		{"plain", stderrs.New("syntax error"), false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: IsRetryable = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFromPostgresNil(t *testing.T) {
	t.Parallel()

	if FromPostgres(nil, "x") != nil {
		t.Fatalf("FromPostgres(nil) should be nil")
	}
}

package store

import (
	"context"
	"errors"

	"finewatch/internal/platform/store/ch"
)

// newCHAdapter wraps an existing *ch.CH and returns the store.Columnar seam
func newCHAdapter(c *ch.CH) Columnar {
	return &columnarAdapter{inner: c}
}

// columnarAdapter adapts *ch.CH to the store.Columnar interface
type columnarAdapter struct {
	inner *ch.CH
}

var _ Columnar = (*columnarAdapter)(nil)

func (a *columnarAdapter) Insert(ctx context.Context, table string, rows [][]any) error {
	return a.inner.Insert(ctx, table, rows)
}

func (a *columnarAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.inner.Exec(ctx, sql, args...)
}

func (a *columnarAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.inner.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &chRows{r: r}, nil
}

func (a *columnarAdapter) Close() error { return a.inner.Close() }

// Ping verifies connectivity with the engine
func (a *columnarAdapter) Ping(ctx context.Context) error {
	if a == nil || a.inner == nil {
		return errors.New("store: nil columnar adapter")
	}
	return a.inner.Ping(ctx)
}

// chRows wraps ch.Rows as store.Rows (Close drops the error, matching the seam)
type chRows struct {
	r ch.Rows
}

func (r *chRows) Next() bool             { return r.r.Next() }
func (r *chRows) Scan(dest ...any) error { return r.r.Scan(dest...) }
func (r *chRows) Err() error             { return r.r.Err() }
func (r *chRows) Close()                 { _ = r.r.Close() }
func (r *chRows) Columns() []string      { return r.r.Columns() }

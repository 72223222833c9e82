// Package service provides the quarantine sink implementation
package service

import (
	"context"
	"time"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/logger"
	"finewatch/internal/services/quarantine/domain"
)

// Svc implements domain.SinkPort and domain.QueryPort
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.Repo]
}

var (
	_ domain.SinkPort  = (*Svc)(nil)
	_ domain.QueryPort = (*Svc)(nil)
)

// New constructs the quarantine service
func New(db repokit.TxRunner, binder repokit.Binder[domain.Repo]) *Svc {
	if db == nil {
		panic("quarantine.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("quarantine.Service requires a non-nil Repo binder")
	}
	return &Svc{db: db, binder: binder}
}

// Put writes the row once per identity. The sink is append-only from this
// side; review and remediation happen elsewhere
func (s *Svc) Put(ctx context.Context, row domain.Row) error {
	if row.Identity == "" {
		return perr.Validationf("quarantine row without identity")
	}
	if row.QuarantinedAt.IsZero() {
		row.QuarantinedAt = time.Now().UTC()
	}
	if err := s.binder.Bind(s.db).Insert(ctx, row); err != nil {
		return err
	}
	logger.C(ctx).Info().
		Str("reason", string(row.Reason)).
		Str("row_identity", row.Identity).
		Msg("row quarantined")
	return nil
}

// Recent serves the review surface
func (s *Svc) Recent(ctx context.Context, datasetKey string, limit int) ([]domain.Row, error) {
	return s.binder.Bind(s.db).Recent(ctx, datasetKey, limit)
}

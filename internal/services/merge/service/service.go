// Package service implements the merge coordinator: idempotent canonical
// upserts under bounded conflict retry, with a delete-then-reinsert fallback
package service

import (
	"context"
	"math/rand"
	"time"

	"finewatch/internal/modkit/repokit"
	perr "finewatch/internal/platform/errors"
	"finewatch/internal/platform/logger"
	"finewatch/internal/services/merge/domain"
)

// Svc implements domain.UpserterPort
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[domain.Repo]
	policy domain.RetryPolicy

	// optional collaborators, nil disables
	mirror domain.MirrorPort
	enrich domain.EnrichPort
}

var _ domain.UpserterPort = (*Svc)(nil)

// New constructs the merge service
func New(
	db repokit.TxRunner,
	binder repokit.Binder[domain.Repo],
	policy domain.RetryPolicy,
	mirror domain.MirrorPort,
	enrich domain.EnrichPort,
) *Svc {
	if db == nil {
		panic("merge.Service requires a non-nil TxRunner")
	}
	if binder == nil {
		panic("merge.Service requires a non-nil Repo binder")
	}
	return &Svc{
		db:     db,
		binder: binder,
		policy: policy.Normalized(),
		mirror: mirror,
		enrich: enrich,
	}
}

// Upsert merges ev into the canonical store. Identical identities merge to a
// single row no matter how often this is called; the bool reports whether this
// call was the first merge, so once-per-event follow-ups (mirror, enrichment,
// rollups) fire exactly once across redelivery. Transient write conflicts
// retry with exponential backoff plus jitter up to the policy bound; running
// out of attempts surfaces a typed exhaustion error the caller must report
func (s *Svc) Upsert(ctx context.Context, ev domain.Event) (bool, error) {
	if ev.ID == "" {
		return false, perr.Validationf("event without identity")
	}

	var (
		last     error
		fallback bool
	)
	for attempt := 0; attempt < s.policy.MaxAttempts; attempt++ {
		var (
			inserted bool
			err      error
		)
		if fallback {
			inserted, err = s.replace(ctx, ev)
		} else {
			inserted, err = s.binder.Bind(s.db).InsertEvent(ctx, ev)
		}
		if err == nil {
			if inserted {
				s.afterMerge(ctx, ev)
			}
			return inserted, nil
		}
		last = err

		// the store rejecting the merge path itself is not transient;
		// switch to the explicit replace sequence and keep the attempt budget
		if !fallback && perr.IsFeatureNotSupported(err) {
			logger.C(ctx).Warn().
				Str("event_id", ev.ID).
				Msg("atomic merge unsupported, switching to replace fallback")
			fallback = true
			continue
		}

		if !perr.Retryable(err) {
			return false, last
		}
		if attempt == s.policy.MaxAttempts-1 {
			break
		}

		if se := sleepCtx(ctx, backoff(s.policy, attempt)); se != nil {
			return false, se
		}
	}
	return false, perr.MergeExhausted(last, s.policy.MaxAttempts)
}

// backoff computes the jittered delay for one retry. The shifted base is
// clamped into (0, Cap] before halving so a sub-nanosecond base or an
// overflowing shift can never feed rand a non-positive bound
func backoff(p domain.RetryPolicy, attempt int) time.Duration {
	d := p.Base << attempt
	if d <= 0 || d > p.Cap {
		d = p.Cap
	}
	if d < 2 {
		d = 2
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)))
}

// replace runs the fallback delete-then-reinsert scoped to the colliding
// identity, carrying over any enrichment overlay already written. One
// transaction so a crash mid-sequence cannot lose the event
func (s *Svc) replace(ctx context.Context, ev domain.Event) (bool, error) {
	var inserted bool
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		repo := s.binder.Bind(q)

		existing, err := repo.Enrichment(ctx, ev.ID)
		if err != nil {
			return err
		}
		if ev.Enrichment == nil {
			ev.Enrichment = existing
		}
		if err := repo.DeleteEvent(ctx, ev.ID); err != nil {
			return err
		}
		inserted, err = repo.InsertEvent(ctx, ev)
		return err
	})
	return inserted, err
}

// afterMerge fans out the side effects of a first-time merge. Both are best
// effort; the canonical row is already durable
func (s *Svc) afterMerge(ctx context.Context, ev domain.Event) {
	if s.mirror != nil {
		if err := s.mirror.MirrorEvent(ctx, ev); err != nil {
			logger.C(ctx).Warn().Err(err).
				Str("event_id", ev.ID).
				Msg("columnar mirror write failed")
		}
	}
	if s.enrich != nil {
		s.enrich.TriggerEnrich(ctx, ev.ID)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

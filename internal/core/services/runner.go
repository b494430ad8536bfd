package services

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

const (
	DefaultMaxAttempts  = 5
	DefaultRetryBackoff = 25 * time.Millisecond
)

// RunnerConfig tunes how units of work are retried.
type RunnerConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	Clock        func() time.Time
}

// runner executes units of work, retrying them from the start when the store
// reports a conflict, and hands committed notifications to the notifier.
type runner struct {
	store    ports.Store
	notifier ports.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Logger
	cfg      RunnerConfig
}

func newRunner(store ports.Store, notifier ports.Notifier, m *metrics.Metrics, logger *logrus.Logger, cfg RunnerConfig) runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return runner{store: store, notifier: notifier, metrics: m, logger: logger, cfg: cfg}
}

func (r runner) run(ctx context.Context, op string, fn func(ctx context.Context, u *unit) error) error {
	var events []domain.Notification

	for attempt := 1; ; attempt++ {
		err := r.store.InTx(ctx, func(ctx context.Context, tx ports.Tx) error {
			u := newUnit(tx, r.cfg.Clock())
			if err := fn(ctx, u); err != nil {
				return err
			}
			events = u.flush()
			if len(events) == 0 {
				return nil
			}
			return tx.AppendOutbox(ctx, events)
		})
		if err == nil {
			r.metrics.TxAttempt(op, "committed")
			break
		}

		log := r.logger.WithFields(logrus.Fields{"op": op, "attempt": attempt})
		if errors.Is(err, domain.ErrTxConflict) && attempt < r.cfg.MaxAttempts {
			r.metrics.TxAttempt(op, "retried")
			log.WithError(err).Debug("unit of work conflicted, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.cfg.RetryBackoff * time.Duration(attempt)):
			}
			continue
		}

		switch {
		case errors.Is(err, domain.ErrTxConflict):
			r.metrics.TxAttempt(op, "exhausted")
			log.WithError(err).Warn("unit of work gave up after conflicts")
		case domain.IsInvariantViolation(err):
			r.metrics.TxAttempt(op, "aborted")
			log.WithError(err).Error("invariant violation, unit of work rolled back")
		default:
			r.metrics.TxAttempt(op, "rejected")
		}
		return err
	}

	r.dispatch(ctx, events)
	return nil
}

// dispatch is fire-and-forget: failures are logged and dropped.
func (r runner) dispatch(ctx context.Context, events []domain.Notification) {
	if r.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, n := range events {
		r.metrics.Notification(string(n.Tag))
		if err := r.notifier.Notify(ctx, n); err != nil {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"tag":    n.Tag,
				"target": n.Target.Kind,
			}).Warn("notification dropped")
		}
	}
}

package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/config"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/ports"
	"github.com/AchilleasB/ptm-queue/queue-service/internal/metrics"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "queue_outbox_channel"

	// Event processing timeouts
	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	maxEventsPerBatch = 100
)

// Relay listens for PostgreSQL NOTIFY signals on queue_outbox_channel and
// publishes the committed notifications to the event broker.
type Relay struct {
	db            *sql.DB
	publisher     ports.QueueEventPublisher
	listener      *pq.Listener
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	metrics       *metrics.Metrics
	logger        *logrus.Logger
	lastProcessed atomic.Int64
	healthy       atomic.Bool
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.QueueEventPublisher, m *metrics.Metrics, logger *logrus.Logger) *Relay {
	r := &Relay{
		db:        db,
		dbURL:     dbURL,
		publisher: publisher,
		dbCB:      config.NewCircuitBreaker(config.BreakerRelayPostgres, logger),
		metrics:   m,
		logger:    logger,
	}
	r.markProcessed()
	r.healthy.Store(true)
	return r
}

func (r *Relay) markProcessed() {
	r.lastProcessed.Store(time.Now().UnixNano())
}

// IsHealthy is the liveness check: is the process responsive. An open
// breaker means degraded, not dead.
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady is the readiness check: the database breaker is closed and the
// relay is not stuck.
func (r *Relay) IsReady() bool {
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastProcessed.Load())) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

// Start blocks until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.logger.WithError(err).Warn("outbox relay: listener error")
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(outboxChannelName); err != nil {
		return errors.Wrapf(err, "listen %s", outboxChannelName)
	}
	r.logger.WithField("channel", outboxChannelName).Info("outbox relay: listening")

	// catch up on anything committed while we were down
	if err := r.processUnprocessedEvents(ctx); err != nil {
		r.logger.WithError(err).Error("outbox relay: startup backlog failed")
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay: shutting down")
			return ctx.Err()

		case notification := <-r.listener.Notify:
			if notification == nil {
				// the listener reconnected; events may have been missed
				r.healthy.Store(false)
				if err := r.processUnprocessedEvents(ctx); err == nil {
					r.healthy.Store(true)
				}
				continue
			}

			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.logger.WithError(err).WithField("event_id", notification.Extra).Error("outbox relay: event failed")
			} else {
				r.markProcessed()
				r.healthy.Store(true)
			}

		case <-ticker.C:
			go r.listener.Ping()

			if err := r.processUnprocessedEvents(ctx); err != nil {
				r.logger.WithError(err).Error("outbox relay: periodic sweep failed")
			} else {
				r.markProcessed()
			}
		}
	}
}

type record struct {
	ID         string
	EventType  string
	TargetKind string
	TargetID   string
	Payload    []byte
	CreatedAt  time.Time
}

const selectColumns = "id, event_type, target_kind, target_id, payload, created_at"

func scanRecord(row interface{ Scan(...any) error }) (record, error) {
	var rec record
	err := row.Scan(&rec.ID, &rec.EventType, &rec.TargetKind, &rec.TargetID, &rec.Payload, &rec.CreatedAt)
	return rec, err
}

// decode rebuilds the notification stored by the scheduler's unit of work.
func decode(rec record) (domain.Notification, error) {
	n := domain.Notification{
		ID:         rec.ID,
		Tag:        domain.NotificationTag(rec.EventType),
		Target:     domain.Target{Kind: domain.TargetKind(rec.TargetKind), ID: rec.TargetID},
		OccurredAt: rec.CreatedAt,
	}
	if err := json.Unmarshal(rec.Payload, &n.Payload); err != nil {
		return domain.Notification{}, errors.Wrapf(err, "decode payload of event %s", rec.ID)
	}
	if n.Tag == "" || n.Target.Kind == "" {
		return domain.Notification{}, errors.Errorf("event %s has no tag or target", rec.ID)
	}
	return n, nil
}

// publish returns an error only when the event should stay unprocessed.
func (r *Relay) publish(ctx context.Context, rec record) error {
	n, err := decode(rec)
	if err != nil {
		// poison events are marked processed to avoid infinite retries
		r.logger.WithError(err).Warn("outbox relay: invalid event")
		r.metrics.RelayEvent("invalid")
		return nil
	}
	if err := r.publisher.PublishQueueEvent(ctx, n); err != nil {
		r.metrics.RelayEvent("failed")
		return err
	}
	r.metrics.RelayEvent("published")
	return nil
}

func (r *Relay) processEventByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rec, err := scanRecord(tx.QueryRowContext(ctx, `
			SELECT `+selectColumns+`
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := r.publish(ctx, rec); err != nil {
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, rec.ID); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

func (r *Relay) processUnprocessedEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT `+selectColumns+`
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY seq
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}

		var records []record
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			// stop at the first failure so later events keep their order
			if err := r.publish(ctx, rec); err != nil {
				r.logger.WithError(err).WithField("event_id", rec.ID).Warn("outbox relay: publish failed")
				break
			}
			if _, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, rec.ID); err != nil {
				return nil, err
			}
			r.logger.WithField("event_id", rec.ID).Debug("outbox relay: processed event")
		}

		return nil, tx.Commit()
	})
	return err
}

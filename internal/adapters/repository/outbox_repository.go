package repository

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/AchilleasB/ptm-queue/queue-service/internal/core/domain"
)

// AppendOutbox stores the unit's notifications next to the state change that
// produced them. The insert trigger wakes the relay with NOTIFY.
func (r *pgTx) AppendOutbox(ctx context.Context, events []domain.Notification) error {
	for _, n := range events {
		payload, err := json.Marshal(n.Payload)
		if err != nil {
			return errors.Wrapf(err, "encode outbox payload %s", n.ID)
		}
		_, err = r.tx.ExecContext(ctx, `
			INSERT INTO outbox_events (id, event_type, target_kind, target_id, payload, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			n.ID, n.Tag, n.Target.Kind, n.Target.ID, payload, n.OccurredAt,
		)
		if err != nil {
			return errors.Wrap(err, "postgres: insert outbox event")
		}
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EventLedger implements event.Ledger using PostgreSQL. The processed-event
// table is the webhook idempotency record: insertion participates in the same
// transaction as the state changes the event caused, so an event is marked
// processed only if its effects committed.
type EventLedger struct {
	pool *pgxpool.Pool
}

// NewEventLedger creates a new EventLedger.
func NewEventLedger(pool *pgxpool.Pool) *EventLedger {
	return &EventLedger{pool: pool}
}

func (r *EventLedger) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

// MarkProcessed inserts the event ID and returns false when the ID was
// already present.
func (r *EventLedger) MarkProcessed(ctx context.Context, id, kind string) (bool, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`INSERT INTO processed_events (id, kind, processed_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT (id) DO NOTHING`, id, kind,
	)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Sweep deletes records processed before the cutoff.
func (r *EventLedger) Sweep(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.db(ctx).Exec(ctx,
		`DELETE FROM processed_events WHERE processed_at < $1`, before,
	)
	if err != nil {
		return 0, fmt.Errorf("sweep processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

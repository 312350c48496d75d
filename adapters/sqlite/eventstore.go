package sqlite

import (
	"context"

	"github.com/replygate/replygate/domain/subscription"
	"github.com/replygate/replygate/ports"
)

// EventStore implements ports.EventStore using SQLite.
// The table is append-only; a partial unique index on dedup_key enforces
// notification idempotency at the storage layer.
type EventStore struct {
	db *DB
}

// NewEventStore creates a new SQLite event store.
func NewEventStore(db *DB) *EventStore {
	return &EventStore{db: db}
}

// Append inserts one audit event.
func (s *EventStore) Append(ctx context.Context, e subscription.Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscription_events (
			id, device_id, purchase_token, event_type, source,
			raw_notification_type, dedup_key, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.DeviceID, e.PurchaseToken, string(e.Type), string(e.Source),
		e.RawNotificationType, e.DedupKey, e.OccurredAt.UTC())

	if err != nil && isUniqueConstraintError(err) {
		return ports.ErrDuplicate
	}
	return err
}

// ListByDevice returns all events for a device, oldest first.
func (s *EventStore) ListByDevice(ctx context.Context, deviceID string) ([]subscription.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_id, purchase_token, event_type, source,
		       raw_notification_type, dedup_key, occurred_at
		FROM subscription_events
		WHERE device_id = ?
		ORDER BY occurred_at, id
	`, deviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []subscription.Event
	for rows.Next() {
		var (
			e       subscription.Event
			typ     string
			source  string
		)
		if err := rows.Scan(&e.ID, &e.DeviceID, &e.PurchaseToken, &typ,
			&source, &e.RawNotificationType, &e.DedupKey, &e.OccurredAt); err != nil {
			return nil, err
		}
		e.Type = subscription.EventType(typ)
		e.Source = subscription.Source(source)
		e.OccurredAt = e.OccurredAt.UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByDeviceAndType counts events of one type for a device.
func (s *EventStore) CountByDeviceAndType(ctx context.Context, deviceID string, typ subscription.EventType) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM subscription_events
		WHERE device_id = ? AND event_type = ?
	`, deviceID, string(typ)).Scan(&n)
	return n, err
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)

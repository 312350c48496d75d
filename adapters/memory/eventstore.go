package memory

import (
	"context"
	"sync"

	"github.com/replygate/replygate/domain/subscription"
	"github.com/replygate/replygate/ports"
)

// EventStore is an in-memory implementation of ports.EventStore.
// Append-only; dedup keys are enforced the way the SQLite unique index is.
type EventStore struct {
	mu     sync.RWMutex
	events []subscription.Event
	dedup  map[string]bool
}

// NewEventStore creates a new in-memory event store.
func NewEventStore() *EventStore {
	return &EventStore{dedup: make(map[string]bool)}
}

// Append inserts one event, rejecting duplicate dedup keys.
func (s *EventStore) Append(ctx context.Context, e subscription.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.DedupKey != "" {
		if s.dedup[e.DedupKey] {
			return ports.ErrDuplicate
		}
		s.dedup[e.DedupKey] = true
	}
	s.events = append(s.events, e)
	return nil
}

// ListByDevice returns all events for a device, oldest first.
func (s *EventStore) ListByDevice(ctx context.Context, deviceID string) ([]subscription.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []subscription.Event
	for _, e := range s.events {
		if e.DeviceID == deviceID {
			out = append(out, e)
		}
	}
	return out, nil
}

// CountByDeviceAndType counts events of one type for a device.
func (s *EventStore) CountByDeviceAndType(ctx context.Context, deviceID string, typ subscription.EventType) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.events {
		if e.DeviceID == deviceID && e.Type == typ {
			n++
		}
	}
	return n, nil
}

// Len returns the total number of events (for tests).
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Ensure interface compliance.
var _ ports.EventStore = (*EventStore)(nil)

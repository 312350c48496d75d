package memory

import (
	"context"
	"sync"

	"github.com/replygate/replygate/domain/usage"
	"github.com/replygate/replygate/ports"
)

// StatsStore is an in-memory implementation of ports.StatsStore.
type StatsStore struct {
	mu      sync.RWMutex
	buckets map[string]usage.ReplyStats // deviceID + "|" + monthKey
}

// NewStatsStore creates a new in-memory stats store.
func NewStatsStore() *StatsStore {
	return &StatsStore{buckets: make(map[string]usage.ReplyStats)}
}

func statsKey(deviceID, monthKey string) string {
	return deviceID + "|" + monthKey
}

// Get retrieves the bucket for a device and month, zero when absent.
func (s *StatsStore) Get(ctx context.Context, deviceID, monthKey string) (usage.ReplyStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if b, ok := s.buckets[statsKey(deviceID, monthKey)]; ok {
		return b, nil
	}
	return usage.ReplyStats{DeviceID: deviceID, MonthKey: monthKey}, nil
}

// Put upserts a bucket.
func (s *StatsStore) Put(ctx context.Context, b usage.ReplyStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[statsKey(b.DeviceID, b.MonthKey)] = b
	return nil
}

// Ensure interface compliance.
var _ ports.StatsStore = (*StatsStore)(nil)

// Package memory provides in-memory implementations of storage ports.
// Used by tests and by single-process deployments that don't need
// persistence across restarts.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/ports"
)

// DeviceStore is an in-memory implementation of ports.DeviceStore with the
// same optimistic-concurrency semantics as the SQLite store.
type DeviceStore struct {
	mu      sync.RWMutex
	records map[string]entitlement.Record // by device ID
	byToken map[string]string             // purchase token -> device ID
}

// NewDeviceStore creates a new in-memory device store.
func NewDeviceStore() *DeviceStore {
	return &DeviceStore{
		records: make(map[string]entitlement.Record),
		byToken: make(map[string]string),
	}
}

// Get retrieves a record by device ID.
func (s *DeviceStore) Get(ctx context.Context, deviceID string) (entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[deviceID]
	if !ok {
		return entitlement.Record{}, ports.ErrNotFound
	}
	return r, nil
}

// GetByPurchaseToken retrieves the record correlated to a purchase token.
func (s *DeviceStore) GetByPurchaseToken(ctx context.Context, token string) (entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return entitlement.Record{}, ports.ErrNotFound
	}
	id, ok := s.byToken[token]
	if !ok {
		return entitlement.Record{}, ports.ErrNotFound
	}
	return s.records[id], nil
}

// Create stores a new record at version 1.
func (s *DeviceStore) Create(ctx context.Context, r entitlement.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[r.DeviceID]; exists {
		return ports.ErrDuplicate
	}

	r.Version = 1
	s.records[r.DeviceID] = r
	if r.PurchaseToken != "" {
		s.byToken[r.PurchaseToken] = r.DeviceID
	}
	return nil
}

// Update writes the record conditioned on the stored version matching
// r.Version, then bumps the version.
func (s *DeviceStore) Update(ctx context.Context, r entitlement.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.records[r.DeviceID]
	if !ok {
		return ports.ErrNotFound
	}
	if old.Version != r.Version {
		return ports.ErrVersionConflict
	}

	if old.PurchaseToken != "" && old.PurchaseToken != r.PurchaseToken {
		delete(s.byToken, old.PurchaseToken)
	}
	if r.PurchaseToken != "" {
		s.byToken[r.PurchaseToken] = r.DeviceID
	}

	r.Version++
	s.records[r.DeviceID] = r
	return nil
}

// Count returns the total number of device records.
func (s *DeviceStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// List returns records with pagination, newest first.
func (s *DeviceStore) List(ctx context.Context, limit, offset int) ([]entitlement.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]entitlement.Record, 0, len(s.records))
	for _, r := range s.records {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].DeviceID < all[j].DeviceID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Ensure interface compliance.
var _ ports.DeviceStore = (*DeviceStore)(nil)

package memory

import (
	"context"
	"sync"

	"github.com/replygate/replygate/ports"
)

// DedupStore is an in-memory implementation of ports.DedupStore.
// Suitable for single-process deployments; multi-instance deployments use
// the Redis store so replicas share the seen-set.
type DedupStore struct {
	mu   sync.Mutex
	seen map[string]bool
}

// NewDedupStore creates a new in-memory dedup store.
func NewDedupStore() *DedupStore {
	return &DedupStore{seen: make(map[string]bool)}
}

// Seen marks the key and reports whether it had already been marked.
func (s *DedupStore) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.seen[key] {
		return true, nil
	}
	s.seen[key] = true
	return false, nil
}

// Ensure interface compliance.
var _ ports.DedupStore = (*DedupStore)(nil)

// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"errors"
	"time"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/domain/subscription"
	"github.com/replygate/replygate/domain/usage"
)

// Store sentinel errors. All store implementations return these so the app
// layer can branch without knowing the backend.
var (
	// ErrNotFound is returned when an entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a unique constraint is violated.
	ErrDuplicate = errors.New("already exists")

	// ErrVersionConflict is returned by conditional writes when the stored
	// version no longer matches; callers re-read and retry.
	ErrVersionConflict = errors.New("version conflict")
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// DeviceStore persists entitlement records, one per device identity.
// All writes are conditional on the record's version (optimistic
// concurrency): a mismatch returns ErrVersionConflict and changes nothing.
type DeviceStore interface {
	// Get retrieves a record by device ID.
	Get(ctx context.Context, deviceID string) (entitlement.Record, error)

	// GetByPurchaseToken retrieves the record correlated to a purchase
	// token. Used by the webhook processor.
	GetByPurchaseToken(ctx context.Context, token string) (entitlement.Record, error)

	// Create stores a new record at version 1. Returns ErrDuplicate if the
	// device already exists.
	Create(ctx context.Context, r entitlement.Record) error

	// Update writes the record conditioned on r.Version matching the
	// stored row, then bumps the version.
	Update(ctx context.Context, r entitlement.Record) error

	// Count returns the total number of device records.
	Count(ctx context.Context) (int, error)

	// List returns records with pagination, newest first.
	List(ctx context.Context, limit, offset int) ([]entitlement.Record, error)
}

// EventStore persists the append-only subscription audit log.
type EventStore interface {
	// Append inserts one event. Returns ErrDuplicate when the event's
	// dedup key has been seen before; the audit log is never updated in
	// place.
	Append(ctx context.Context, e subscription.Event) error

	// ListByDevice returns all events for a device, oldest first.
	ListByDevice(ctx context.Context, deviceID string) ([]subscription.Event, error)

	// CountByDeviceAndType counts events of one type for a device. Used by
	// the anti-abuse guard.
	CountByDeviceAndType(ctx context.Context, deviceID string, typ subscription.EventType) (int, error)
}

// DedupStore remembers notification idempotency keys. It is a fast-path
// guard in front of the event store's unique index, so a best-effort
// implementation (e.g. TTL-bounded) is acceptable.
type DedupStore interface {
	// Seen marks the key as processed and reports whether it had already
	// been marked.
	Seen(ctx context.Context, key string) (bool, error)
}

// StatsStore persists per-device monthly reply statistics.
type StatsStore interface {
	// Get retrieves the bucket for a device and month key. Returns a zero
	// bucket (not ErrNotFound) when none exists yet.
	Get(ctx context.Context, deviceID, monthKey string) (usage.ReplyStats, error)

	// Put upserts a bucket.
	Put(ctx context.Context, s usage.ReplyStats) error
}

// -----------------------------------------------------------------------------
// External Service Ports
// -----------------------------------------------------------------------------

// PurchaseVerifier confirms a client-reported purchase token against the
// billing platform. This is the trust boundary for paid activation: an
// implementation must refuse rather than trust the client blindly.
type PurchaseVerifier interface {
	// Name returns the verifier name (e.g. "google", "fake").
	Name() string

	// Verify checks the token and returns ErrVerificationRefused (or a
	// transport error) when it cannot be confirmed.
	Verify(ctx context.Context, deviceID, purchaseToken string) error
}

// ErrVerificationRefused is returned when the billing platform rejects a
// purchase token, or when no verification path is configured. Activation
// must fail closed on this error.
var ErrVerificationRefused = errors.New("purchase verification refused")

// Package app contains the application services: quota enforcement,
// purchase activation, webhook processing, and reply stats. Services
// orchestrate pure domain functions over the ports; all record writes go
// through a bounded conditional-write retry loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/ports"
)

// DefaultMaxRetries bounds conditional-write retry loops.
const DefaultMaxRetries = 5

// ErrRetriesExhausted is returned when a conditional write keeps losing
// races past the retry budget. Callers map it to a 5xx; the client may
// simply retry.
var ErrRetriesExhausted = errors.New("write retries exhausted")

// ErrQuotaExhausted is returned by CommitConsumption when the re-read
// record has no free quota left: the decision that allowed the message
// went stale before the commit. The message stays uncounted.
var ErrQuotaExhausted = errors.New("quota exhausted")

// Snapshot is the read model services hand to the transport layer.
type Snapshot struct {
	DeviceID         string
	Tier             entitlement.Tier
	PaidActive       bool
	PaidUntil        *time.Time
	MessagesUsed     int
	WindowResetAt    time.Time
	Remaining        int
	FreeTierDisabled bool
	IsNew            bool
}

func snapshotOf(r entitlement.Record, now time.Time, limit int, isNew bool) Snapshot {
	return Snapshot{
		DeviceID:         r.DeviceID,
		Tier:             r.Tier,
		PaidActive:       r.PaidActive(now),
		PaidUntil:        r.PaidUntil,
		MessagesUsed:     r.MessagesUsed,
		WindowResetAt:    r.WindowResetAt,
		Remaining:        r.Remaining(limit),
		FreeTierDisabled: r.FreeTierDisabled,
		IsNew:            isNew,
	}
}

// mutateFunc applies a change to a freshly read record. Returning false
// means nothing needs to be written.
type mutateFunc func(r entitlement.Record) (entitlement.Record, bool)

// updateWithRetry re-reads and re-applies mutate until the conditional
// write succeeds or the retry budget runs out. The returned record is the
// state as written (or as read, when mutate declined to change it).
func updateWithRetry(ctx context.Context, devices ports.DeviceStore, deviceID string, attempts int, mutate mutateFunc) (entitlement.Record, error) {
	if attempts <= 0 {
		attempts = DefaultMaxRetries
	}

	for i := 0; i < attempts; i++ {
		r, err := devices.Get(ctx, deviceID)
		if err != nil {
			return entitlement.Record{}, err
		}

		next, changed := mutate(r)
		if !changed {
			return r, nil
		}

		err = devices.Update(ctx, next)
		if err == nil {
			next.Version++ // store bumped the row; keep the in-memory copy honest
			return next, nil
		}
		if errors.Is(err, ports.ErrVersionConflict) {
			continue
		}
		return entitlement.Record{}, fmt.Errorf("update device %s: %w", deviceID, err)
	}

	return entitlement.Record{}, fmt.Errorf("device %s: %w", deviceID, ErrRetriesExhausted)
}

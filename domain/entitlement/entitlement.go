// Package entitlement provides the per-device entitlement record and pure
// functions for tier reconciliation and quota decisions.
// All functions here are deterministic with no side effects; persistence
// happens in the app layer via conditional (version-checked) writes.
package entitlement

import "time"

// Tier is the access tier of a device.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// DefaultWindow is the length of both the free-message window and a paid
// period granted by a purchase or renewal.
const DefaultWindow = 30 * 24 * time.Hour

// DefaultFreeLimit is the number of messages a free device may send per window.
const DefaultFreeLimit = 50

// Record is the persisted entitlement state for one device identity
// (value type). DeviceID is the natural key.
type Record struct {
	DeviceID string
	Tier     Tier

	// PaidUntil is when the paid tier lapses. Nil while Tier==TierPaid
	// means a non-expiring grant.
	PaidUntil *time.Time

	// PurchaseToken correlates this record to a billing-platform purchase.
	// It is set only on (re)activation and is the sole join key for
	// inbound notifications.
	PurchaseToken string

	// MessagesUsed counts messages consumed in the current free window.
	// Meaningful only while Tier==TierFree.
	MessagesUsed int

	// WindowResetAt marks when MessagesUsed resets and a new window begins.
	// Advanced forward by the window length when reached, never backward.
	WindowResetAt time.Time

	// FreeTierDisabled is a permanent penalty flag. A disabled device can
	// never consume free messages again, though it may still go paid.
	FreeTierDisabled bool

	CreatedAt time.Time
	UpdatedAt time.Time

	// Version is the optimistic-concurrency token. Stores reject writes
	// whose version does not match the stored row.
	Version int64
}

// New returns a fresh free-tier record for a device.
func New(deviceID string, now time.Time, window time.Duration) Record {
	return Record{
		DeviceID:      deviceID,
		Tier:          TierFree,
		WindowResetAt: now.Add(window),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// PaidActive reports whether the record's paid tier is currently in effect.
func (r Record) PaidActive(now time.Time) bool {
	if r.Tier != TierPaid {
		return false
	}
	if r.PaidUntil == nil {
		return true // non-expiring grant
	}
	return now.Before(*r.PaidUntil)
}

// Remaining returns the free messages left in the current window, never
// negative. Returns 0 for disabled devices. Call only after Reconcile.
func (r Record) Remaining(limit int) int {
	if r.FreeTierDisabled {
		return 0
	}
	left := limit - r.MessagesUsed
	if left < 0 {
		return 0
	}
	return left
}

// Reconcile recomputes stale tier and window state. It is idempotent and
// safe to call on every read. The second return reports whether the record
// changed and must be persisted (conditionally) before being trusted.
func Reconcile(r Record, now time.Time, window time.Duration) (Record, bool) {
	if r.Tier == TierPaid && r.PaidUntil != nil && !now.Before(*r.PaidUntil) {
		// Paid period elapsed: fall back to a fresh free window.
		r.Tier = TierFree
		r.PaidUntil = nil
		r.MessagesUsed = 0
		r.WindowResetAt = now.Add(window)
		return r, true
	}

	// A zero WindowResetAt means the window was cleared by a paid
	// activation and needs reinitializing now that the device is free.
	if r.Tier == TierFree && !now.Before(r.WindowResetAt) {
		r.MessagesUsed = 0
		r.WindowResetAt = now.Add(window)
		return r, true
	}

	return r, false
}

// Decision is the outcome of a consumption check (value type).
type Decision struct {
	Allowed bool

	// Remaining is the number of free messages left after this one.
	// Nil means unlimited (paid tier).
	Remaining *int

	// Reason is set when the request is denied.
	Reason string
}

// Denial reasons.
const (
	ReasonFreeTierDisabled = "free_tier_disabled"
	ReasonQuotaExhausted   = "quota_exhausted"
)

// CheckConsume decides whether a reconciled record may consume one message.
// It does not mutate the record; the caller commits the consumption
// separately once the metered action actually succeeds.
func CheckConsume(r Record, now time.Time, limit int) Decision {
	if r.PaidActive(now) {
		return Decision{Allowed: true}
	}

	if r.FreeTierDisabled {
		zero := 0
		return Decision{Allowed: false, Remaining: &zero, Reason: ReasonFreeTierDisabled}
	}

	if r.MessagesUsed >= limit {
		zero := 0
		return Decision{Allowed: false, Remaining: &zero, Reason: ReasonQuotaExhausted}
	}

	left := limit - r.MessagesUsed - 1
	return Decision{Allowed: true, Remaining: &left}
}

// Activate applies a verified purchase to the record: paid tier for one
// window from now, counters cleared. Pure; the caller persists.
func Activate(r Record, token string, now time.Time, window time.Duration) Record {
	until := now.Add(window)
	r.Tier = TierPaid
	r.PaidUntil = &until
	r.PurchaseToken = token
	r.MessagesUsed = 0
	r.WindowResetAt = time.Time{} // paid devices have no free window
	r.UpdatedAt = now
	return r
}

// Deactivate drops the record to the free tier after a cancellation or
// expiry notification. Quota fields are left alone; the next Reconcile
// starts a clean window. Pure; the caller persists.
func Deactivate(r Record, now time.Time) Record {
	r.Tier = TierFree
	r.PaidUntil = nil
	r.UpdatedAt = now
	return r
}

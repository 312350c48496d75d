// Package subscription provides the append-only audit model for
// subscription lifecycle events. Events are immutable values: created once,
// never mutated, never deleted. The anti-abuse logic reads them back.
package subscription

import "time"

// EventType classifies what happened to a subscription.
type EventType string

const (
	EventPurchased         EventType = "PURCHASED"
	EventRenewed           EventType = "RENEWED"
	EventRecovered         EventType = "RECOVERED"
	EventCanceledOrExpired EventType = "CANCELED_OR_EXPIRED"
	EventUnknown           EventType = "UNKNOWN"
)

// Source identifies which boundary produced an event.
type Source string

const (
	// SourceClientVerify marks events created by the client-reported
	// purchase verification path.
	SourceClientVerify Source = "CLIENT_VERIFY"

	// SourcePlatformWebhook marks events created by billing-platform
	// push notifications.
	SourcePlatformWebhook Source = "PLATFORM_WEBHOOK"
)

// Event is one audit log entry (immutable value type).
type Event struct {
	ID            string
	DeviceID      string
	PurchaseToken string
	Type          EventType
	Source        Source

	// RawNotificationType preserves the billing platform's original
	// integer code for forensic replay. Zero for client-originated events.
	RawNotificationType int

	// DedupKey uniquely identifies the originating notification so that
	// at-least-once delivery cannot append the same event twice. Empty
	// for client-originated events.
	DedupKey string

	OccurredAt time.Time
}

// NewClientEvent creates an audit event for a client-verified purchase.
func NewClientEvent(id, deviceID, token string, typ EventType, at time.Time) Event {
	return Event{
		ID:            id,
		DeviceID:      deviceID,
		PurchaseToken: token,
		Type:          typ,
		Source:        SourceClientVerify,
		OccurredAt:    at,
	}
}

// NewWebhookEvent creates an audit event for a platform notification.
func NewWebhookEvent(id, deviceID, token string, typ EventType, rawType int, dedupKey string, at time.Time) Event {
	return Event{
		ID:                  id,
		DeviceID:            deviceID,
		PurchaseToken:       token,
		Type:                typ,
		Source:              SourcePlatformWebhook,
		RawNotificationType: rawType,
		DedupKey:            dedupKey,
		OccurredAt:          at,
	}
}

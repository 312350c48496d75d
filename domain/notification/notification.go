// Package notification provides pure functions for decoding and classifying
// Google Play Real-Time Developer Notifications (RTDN).
// Notifications arrive base64-encoded inside a Pub/Sub push envelope,
// at-least-once and unordered; everything here is deterministic so the
// processor can be replay-safe.
package notification

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/replygate/replygate/domain/subscription"
)

// Google Play subscription notification type codes.
// https://developer.android.com/google/play/billing/rtdn-reference
const (
	TypeRecovered            = 1
	TypeRenewed              = 2
	TypeCanceled             = 3
	TypePurchased            = 4
	TypeOnHold               = 5
	TypeInGracePeriod        = 6
	TypeRestarted            = 7
	TypePriceChangeConfirmed = 8
	TypeDeferred             = 9
	TypePaused               = 10
	TypePauseScheduleChanged = 11
	TypeRevoked              = 12
	TypeExpired              = 13
)

// Action is the closed classification of a notification. New platform codes
// fall safe into ActionUnknown rather than silently matching a transition.
type Action int

const (
	ActionUnknown Action = iota
	ActionActivate
	ActionDeactivate
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionActivate:
		return "activate"
	case ActionDeactivate:
		return "deactivate"
	default:
		return "unknown"
	}
}

// Classify maps a raw Google notification code onto an Action.
// This is a PURE function and the single place numeric codes are compared.
func Classify(rawType int) Action {
	switch rawType {
	case TypePurchased, TypeRenewed, TypeRecovered:
		return ActionActivate
	case TypeCanceled, TypePaused, TypePauseScheduleChanged, TypeExpired:
		return ActionDeactivate
	default:
		return ActionUnknown
	}
}

// EventType maps an action and raw code onto the audit event type.
func EventType(action Action, rawType int) subscription.EventType {
	switch action {
	case ActionActivate:
		switch rawType {
		case TypeRenewed:
			return subscription.EventRenewed
		case TypeRecovered:
			return subscription.EventRecovered
		default:
			return subscription.EventPurchased
		}
	case ActionDeactivate:
		return subscription.EventCanceledOrExpired
	default:
		return subscription.EventUnknown
	}
}

// Envelope is the Pub/Sub push wrapper around an RTDN payload.
type Envelope struct {
	Message struct {
		Data      string `json:"data"` // base64-encoded Payload
		MessageID string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// Payload is the decoded developer notification.
type Payload struct {
	Version         string `json:"version"`
	PackageName     string `json:"packageName"`
	EventTimeMillis string `json:"eventTimeMillis"`

	SubscriptionNotification *SubscriptionNotification `json:"subscriptionNotification,omitempty"`
	TestNotification         *TestNotification         `json:"testNotification,omitempty"`
}

// SubscriptionNotification describes a subscription state change.
type SubscriptionNotification struct {
	Version          string `json:"version"`
	NotificationType int    `json:"notificationType"`
	PurchaseToken    string `json:"purchaseToken"`
	SubscriptionID   string `json:"subscriptionId"`
}

// TestNotification is sent from the Play console "send test notification"
// button. It carries no purchase state.
type TestNotification struct {
	Version string `json:"version"`
}

// Decode errors.
var (
	ErrMalformedEnvelope = errors.New("malformed notification envelope")
	ErrEmptyPayload      = errors.New("empty notification payload")
)

// Decode parses a raw Pub/Sub push body into the RTDN payload.
func Decode(body []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Message.Data == "" {
		return Payload{}, ErrEmptyPayload
	}

	raw, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: decode base64: %v", ErrMalformedEnvelope, err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: decode payload: %v", ErrMalformedEnvelope, err)
	}
	return p, nil
}

// EventTime returns the platform event time, falling back to the given
// time when the field is missing or unparsable.
func (p Payload) EventTime(fallback time.Time) time.Time {
	if p.EventTimeMillis == "" {
		return fallback
	}
	ms, err := strconv.ParseInt(p.EventTimeMillis, 10, 64)
	if err != nil {
		return fallback
	}
	return time.UnixMilli(ms).UTC()
}

// DedupKey derives the idempotency key for a subscription notification:
// a hash over the purchase identity, the notification code, and the
// platform event timestamp. Redelivery of the same notification always
// produces the same key.
func DedupKey(p Payload) string {
	sn := p.SubscriptionNotification
	if sn == nil {
		return ""
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", p.PackageName, sn.PurchaseToken, sn.NotificationType, p.EventTimeMillis)
	return hex.EncodeToString(h.Sum(nil))
}

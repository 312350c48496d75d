package notification

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/replygate/replygate/domain/subscription"
)

// envelope builds a Pub/Sub push body around an RTDN payload, the way
// Google delivers them.
func envelope(t *testing.T, payload any) []byte {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	body, err := json.Marshal(map[string]any{
		"message": map[string]any{
			"data":      base64.StdEncoding.EncodeToString(raw),
			"messageId": "m-1",
		},
		"subscription": "projects/p/subscriptions/s",
	})
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func TestClassify(t *testing.T) {
	tests := []struct {
		rawType int
		want    Action
	}{
		{TypePurchased, ActionActivate},
		{TypeRenewed, ActionActivate},
		{TypeRecovered, ActionActivate},
		{TypeCanceled, ActionDeactivate},
		{TypePaused, ActionDeactivate},
		{TypePauseScheduleChanged, ActionDeactivate},
		{TypeExpired, ActionDeactivate},
		{TypeInGracePeriod, ActionUnknown},
		{TypePriceChangeConfirmed, ActionUnknown},
		{TypeDeferred, ActionUnknown},
		{0, ActionUnknown},
		{99, ActionUnknown}, // future platform codes fail safe
		{-1, ActionUnknown},
	}

	for _, tt := range tests {
		if got := Classify(tt.rawType); got != tt.want {
			t.Errorf("Classify(%d) = %s, want %s", tt.rawType, got, tt.want)
		}
	}
}

func TestEventType(t *testing.T) {
	tests := []struct {
		action  Action
		rawType int
		want    subscription.EventType
	}{
		{ActionActivate, TypePurchased, subscription.EventPurchased},
		{ActionActivate, TypeRenewed, subscription.EventRenewed},
		{ActionActivate, TypeRecovered, subscription.EventRecovered},
		{ActionDeactivate, TypeCanceled, subscription.EventCanceledOrExpired},
		{ActionDeactivate, TypeExpired, subscription.EventCanceledOrExpired},
		{ActionUnknown, 99, subscription.EventUnknown},
	}

	for _, tt := range tests {
		if got := EventType(tt.action, tt.rawType); got != tt.want {
			t.Errorf("EventType(%s, %d) = %s, want %s", tt.action, tt.rawType, got, tt.want)
		}
	}
}

func TestDecode_SubscriptionNotification(t *testing.T) {
	body := envelope(t, map[string]any{
		"version":         "1.0",
		"packageName":     "com.example.app",
		"eventTimeMillis": "1700000000000",
		"subscriptionNotification": map[string]any{
			"version":          "1.0",
			"notificationType": TypeRenewed,
			"purchaseToken":    "tok-abc",
			"subscriptionId":   "monthly",
		},
	})

	p, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.PackageName != "com.example.app" {
		t.Errorf("PackageName = %q", p.PackageName)
	}
	sn := p.SubscriptionNotification
	if sn == nil {
		t.Fatal("expected subscriptionNotification")
	}
	if sn.NotificationType != TypeRenewed || sn.PurchaseToken != "tok-abc" {
		t.Errorf("notification = %+v", sn)
	}
}

func TestDecode_TestNotification(t *testing.T) {
	body := envelope(t, map[string]any{
		"version":          "1.0",
		"packageName":      "com.example.app",
		"eventTimeMillis":  "1700000000000",
		"testNotification": map[string]any{"version": "1.0"},
	})

	p, err := Decode(body)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if p.TestNotification == nil {
		t.Error("expected testNotification")
	}
	if p.SubscriptionNotification != nil {
		t.Error("unexpected subscriptionNotification")
	}
}

func TestDecode_MalformedJSON(t *testing.T) {
	_, err := Decode([]byte("{not json"))
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("error = %v, want ErrMalformedEnvelope", err)
	}
}

func TestDecode_MissingData(t *testing.T) {
	_, err := Decode([]byte(`{"message":{"messageId":"m-1"}}`))
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("error = %v, want ErrEmptyPayload", err)
	}
}

func TestDecode_BadBase64(t *testing.T) {
	_, err := Decode([]byte(`{"message":{"data":"!!not-base64!!"}}`))
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("error = %v, want ErrMalformedEnvelope", err)
	}
}

func TestDecode_PayloadNotJSON(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte("plain text"))
	_, err := Decode([]byte(`{"message":{"data":"` + data + `"}}`))
	if !errors.Is(err, ErrMalformedEnvelope) {
		t.Errorf("error = %v, want ErrMalformedEnvelope", err)
	}
}

func TestEventTime(t *testing.T) {
	fallback := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	p := Payload{EventTimeMillis: "1700000000000"}
	want := time.UnixMilli(1700000000000).UTC()
	if got := p.EventTime(fallback); !got.Equal(want) {
		t.Errorf("EventTime = %v, want %v", got, want)
	}

	p = Payload{}
	if got := p.EventTime(fallback); !got.Equal(fallback) {
		t.Errorf("EventTime = %v, want fallback", got)
	}

	p = Payload{EventTimeMillis: "not-a-number"}
	if got := p.EventTime(fallback); !got.Equal(fallback) {
		t.Errorf("EventTime = %v, want fallback for junk millis", got)
	}
}

func TestDedupKey_StableAcrossRedelivery(t *testing.T) {
	p := Payload{
		PackageName:     "com.example.app",
		EventTimeMillis: "1700000000000",
		SubscriptionNotification: &SubscriptionNotification{
			NotificationType: TypeCanceled,
			PurchaseToken:    "tok-abc",
		},
	}

	k1 := DedupKey(p)
	k2 := DedupKey(p)
	if k1 == "" {
		t.Fatal("expected non-empty key")
	}
	if k1 != k2 {
		t.Error("same notification must produce the same key")
	}
}

func TestDedupKey_DistinguishesNotifications(t *testing.T) {
	base := Payload{
		PackageName:     "com.example.app",
		EventTimeMillis: "1700000000000",
		SubscriptionNotification: &SubscriptionNotification{
			NotificationType: TypeCanceled,
			PurchaseToken:    "tok-abc",
		},
	}

	other := base
	sn := *base.SubscriptionNotification
	sn.NotificationType = TypeExpired
	other.SubscriptionNotification = &sn

	if DedupKey(base) == DedupKey(other) {
		t.Error("different notification types must produce different keys")
	}

	later := base
	later.EventTimeMillis = "1700000001000"
	if DedupKey(base) == DedupKey(later) {
		t.Error("a later cancel of the same token is a distinct notification")
	}
}

func TestDedupKey_NoSubscriptionNotification(t *testing.T) {
	if got := DedupKey(Payload{PackageName: "p"}); got != "" {
		t.Errorf("DedupKey = %q, want empty", got)
	}
}

package http_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/replygate/replygate/adapters/clock"
	httpadapter "github.com/replygate/replygate/adapters/http"
	"github.com/replygate/replygate/adapters/idgen"
	"github.com/replygate/replygate/adapters/memory"
	"github.com/replygate/replygate/adapters/playstore"
	"github.com/replygate/replygate/app"
	"github.com/replygate/replygate/domain/notification"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	router  chi.Router
	devices *memory.DeviceStore
	events  *memory.EventStore
	clock   *clock.Fake
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	devices := memory.NewDeviceStore()
	events := memory.NewEventStore()
	fc := clock.NewFake(base)
	gen := idgen.NewSequential("ev")
	logger := zerolog.Nop()
	cfg := app.EntitlementConfig{FreeLimit: 3, Window: 30 * 24 * time.Hour}

	entitlements := app.NewEntitlementService(devices, fc, cfg, logger)
	purchases := app.NewPurchaseService(devices, events, playstore.NewFakeVerifier("fake-"), fc, gen, cfg, logger)
	notifications := app.NewNotificationService(devices, events, memory.NewDedupStore(), fc, gen,
		app.NotificationConfig{EntitlementConfig: cfg, CancelThreshold: 3}, logger)

	handler := httpadapter.NewUserHandler(entitlements, purchases, notifications, logger)
	router := httpadapter.NewRouter(handler, httpadapter.NewHealthHandler(nil), logger)

	return fixture{router: router, devices: devices, events: events, clock: fc}
}

func (f fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return m
}

func TestInit_NewDevice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	m := decodeJSON(t, rec)
	if m["success"] != true || m["isNew"] != true || m["isPro"] != false {
		t.Errorf("body = %v", m)
	}
	if m["messagesRemaining"] != float64(3) {
		t.Errorf("messagesRemaining = %v, want 3", m["messagesRemaining"])
	}
	if m["subscriptionExpiresAt"] != nil {
		t.Errorf("subscriptionExpiresAt = %v, want null", m["subscriptionExpiresAt"])
	}
	if m["messagesResetDate"] == nil {
		t.Error("messagesResetDate must be set for free devices")
	}
}

func TestInit_Idempotent(t *testing.T) {
	f := newFixture(t)

	f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)
	rec := f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)

	m := decodeJSON(t, rec)
	if m["isNew"] != false {
		t.Error("second init must not report isNew")
	}
}

func TestInit_MissingDeviceID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/user/init", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	m := decodeJSON(t, rec)
	if m["error"] == nil {
		t.Error("expected error body")
	}
}

func TestInit_MalformedBody(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/user/init", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestStatus_FreeDevice(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)

	rec := f.do(t, http.MethodGet, "/api/user/status?deviceId=d1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	m := decodeJSON(t, rec)
	if m["isPro"] != false || m["subscriptionExpiresAt"] != nil {
		t.Errorf("body = %v", m)
	}
}

func TestStatus_UnknownDevice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/user/status?deviceId=ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestStatus_MissingDeviceID(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/user/status", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestVerifyPurchase_Success(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)

	rec := f.do(t, http.MethodPost, "/api/user/verify-purchase", `{"deviceId":"d1","purchaseToken":"fake-tok"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	m := decodeJSON(t, rec)
	if m["isPro"] != true {
		t.Errorf("isPro = %v", m["isPro"])
	}
	if m["subscriptionExpiresAt"] == nil {
		t.Error("subscriptionExpiresAt must be set")
	}
	if m["messagesRemaining"] != nil {
		t.Errorf("messagesRemaining = %v, want null while paid", m["messagesRemaining"])
	}

	// Status now reports pro.
	m = decodeJSON(t, f.do(t, http.MethodGet, "/api/user/status?deviceId=d1", ""))
	if m["isPro"] != true {
		t.Error("status must report isPro after activation")
	}
}

func TestVerifyPurchase_Refused(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)

	rec := f.do(t, http.MethodPost, "/api/user/verify-purchase", `{"deviceId":"d1","purchaseToken":"stolen"}`)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", rec.Code)
	}

	// Device stays free.
	m := decodeJSON(t, f.do(t, http.MethodGet, "/api/user/status?deviceId=d1", ""))
	if m["isPro"] != false {
		t.Error("refused purchase must not activate")
	}
}

func TestVerifyPurchase_UnknownDevice(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/user/verify-purchase", `{"deviceId":"ghost","purchaseToken":"fake-tok"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestVerifyPurchase_MissingFields(t *testing.T) {
	f := newFixture(t)

	for _, body := range []string{`{}`, `{"deviceId":"d1"}`, `{"purchaseToken":"fake-t"}`} {
		rec := f.do(t, http.MethodPost, "/api/user/verify-purchase", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rec.Code)
		}
	}
}

func webhookBody(t *testing.T, notificationType int, token string) string {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"version":         "1.0",
		"packageName":     "com.example.app",
		"eventTimeMillis": "1748880000000",
		"subscriptionNotification": map[string]any{
			"version":          "1.0",
			"notificationType": notificationType,
			"purchaseToken":    token,
			"subscriptionId":   "premium_monthly",
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf(`{"message":{"data":%q,"messageId":"m-1"},"subscription":"s"}`,
		base64.StdEncoding.EncodeToString(payload))
}

func TestGoogleWebhook_CancellationAcksAndApplies(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/user/init", `{"deviceId":"d1"}`)
	f.do(t, http.MethodPost, "/api/user/verify-purchase", `{"deviceId":"d1","purchaseToken":"fake-tok"}`)

	rec := f.do(t, http.MethodPost, "/api/user/google-webhook", webhookBody(t, notification.TypeCanceled, "fake-tok"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "OK") {
		t.Errorf("body = %q, want OK", rec.Body.String())
	}

	m := decodeJSON(t, f.do(t, http.MethodGet, "/api/user/status?deviceId=d1", ""))
	if m["isPro"] != false {
		t.Error("cancellation must drop the paid tier")
	}
}

func TestGoogleWebhook_AlwaysAcks(t *testing.T) {
	f := newFixture(t)

	cases := []string{
		"not json at all",
		`{"message":{"data":""}}`,
		webhookBody(t, notification.TypeCanceled, "never-seen-token"),
	}
	for _, body := range cases {
		rec := f.do(t, http.MethodPost, "/api/user/google-webhook", body)
		if rec.Code != http.StatusOK {
			t.Errorf("body %q: status = %d, want 200", body, rec.Code)
		}
	}
}

func TestHealthAndVersion(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		rec := f.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rec.Code)
		}
	}

	rec := f.do(t, http.MethodGet, "/version", "")
	m := decodeJSON(t, rec)
	if m["service"] != "replygate" {
		t.Errorf("version body = %v", m)
	}
}

func TestReadiness_UnhealthyDB(t *testing.T) {
	handler := httpadapter.NewHealthHandler(failingPinger{})
	rec := httptest.NewRecorder()
	handler.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return fmt.Errorf("db gone") }

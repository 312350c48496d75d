package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
)

func newTestApp(t *testing.T) *App {
	t.Helper()

	t.Setenv("REPLYGATE_DATABASE_DSN", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("REPLYGATE_PLAYSTORE_MODE", "fake")
	t.Setenv("REPLYGATE_FREE_LIMIT", "2")

	a, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func TestNew_WiresEverything(t *testing.T) {
	a := newTestApp(t)

	if a.DB == nil || a.HTTPServer == nil {
		t.Fatal("db or http server not initialized")
	}
	if a.Entitlements == nil || a.Purchases == nil || a.Notifications == nil || a.Stats == nil {
		t.Fatal("services not initialized")
	}
	if a.Metrics != nil {
		t.Error("metrics must stay disabled unless configured")
	}
}

func TestApp_EndToEndOverHTTP(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()

	srv := httptest.NewServer(a.HTTPServer.Handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/user/init", "application/json", strings.NewReader(`{"deviceId":"d1"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("init status = %d", resp.StatusCode)
	}

	// Free limit of 2 from env: two commits, then denial.
	for i := 0; i < 2; i++ {
		d, err := a.TryConsume(ctx, "d1")
		if err != nil || !d.Allowed {
			t.Fatalf("consume %d: allowed=%v err=%v", i, d.Allowed, err)
		}
		if err := a.CommitConsumption(ctx, "d1"); err != nil {
			t.Fatal(err)
		}
	}
	d, err := a.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Error("third message must be denied at limit 2")
	}

	// Paid activation through the fake verifier lifts the limit.
	resp, err = http.Post(srv.URL+"/api/user/verify-purchase", "application/json",
		strings.NewReader(`{"deviceId":"d1","purchaseToken":"fake-tok"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", resp.StatusCode)
	}

	d, err = a.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Remaining != nil {
		t.Errorf("paid decision = %+v, want unlimited", d)
	}

	if err := a.RecordReply(ctx, "d1", 150); err != nil {
		t.Fatal(err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Setenv("REPLYGATE_DATABASE_DSN", filepath.Join(t.TempDir(), "test.db"))
	t.Setenv("REPLYGATE_PLAYSTORE_MODE", "bogus")

	if _, err := New(""); err == nil {
		t.Fatal("expected config validation error")
	}
}

package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/adapters/clock"
	"github.com/replygate/replygate/adapters/memory"
	"github.com/replygate/replygate/app"
	"github.com/replygate/replygate/domain/entitlement"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newEntitlementService(t *testing.T) (*app.EntitlementService, *memory.DeviceStore, *clock.Fake) {
	t.Helper()
	devices := memory.NewDeviceStore()
	fc := clock.NewFake(base)
	svc := app.NewEntitlementService(devices, fc, app.EntitlementConfig{
		FreeLimit:  3,
		Window:     30 * 24 * time.Hour,
		MaxRetries: 5,
	}, zerolog.Nop())
	return svc, devices, fc
}

func TestInit_NewDevice(t *testing.T) {
	svc, _, _ := newEntitlementService(t)
	ctx := context.Background()

	snap, err := svc.Init(ctx, "d1")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !snap.IsNew {
		t.Error("expected IsNew")
	}
	if snap.Tier != entitlement.TierFree {
		t.Errorf("Tier = %v, want free", snap.Tier)
	}
	if snap.Remaining != 3 {
		t.Errorf("Remaining = %d, want 3", snap.Remaining)
	}
	if got, want := snap.WindowResetAt, base.Add(30*24*time.Hour); !got.Equal(want) {
		t.Errorf("WindowResetAt = %v, want %v", got, want)
	}
}

func TestInit_ExistingDevice(t *testing.T) {
	svc, _, _ := newEntitlementService(t)
	ctx := context.Background()

	if _, err := svc.Init(ctx, "d1"); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	snap, err := svc.Init(ctx, "d1")
	if err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if snap.IsNew {
		t.Error("second Init must not report IsNew")
	}
}

func TestStatus_UnknownDevice(t *testing.T) {
	svc, _, _ := newEntitlementService(t)

	if _, err := svc.Status(context.Background(), "ghost"); err == nil {
		t.Fatal("expected error for unknown device")
	}
}

func TestStatus_ReconcilesLapsedPaid(t *testing.T) {
	svc, devices, fc := newEntitlementService(t)
	ctx := context.Background()

	if _, err := svc.Init(ctx, "d1"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	r, _ := devices.Get(ctx, "d1")
	r = entitlement.Activate(r, "tok-1", base, 30*24*time.Hour)
	if err := devices.Update(ctx, r); err != nil {
		t.Fatalf("Update: %v", err)
	}

	fc.Advance(31 * 24 * time.Hour)

	snap, err := svc.Status(ctx, "d1")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if snap.Tier != entitlement.TierFree {
		t.Errorf("Tier = %v, want free after lapse", snap.Tier)
	}
	if snap.PaidActive {
		t.Error("PaidActive must be false after lapse")
	}
	if snap.Remaining != 3 {
		t.Errorf("Remaining = %d, want full window after lapse", snap.Remaining)
	}

	// The correction must be persisted, not just reported.
	stored, _ := devices.Get(ctx, "d1")
	if stored.Tier != entitlement.TierFree {
		t.Error("lapsed record not persisted as free")
	}
}

func TestTryConsume_FreeFlow(t *testing.T) {
	svc, _, _ := newEntitlementService(t)
	ctx := context.Background()

	// Unknown devices are registered on first consume.
	d, snap, err := svc.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !d.Allowed {
		t.Fatal("fresh device must be allowed")
	}
	if d.Remaining == nil || *d.Remaining != 2 {
		t.Errorf("Remaining = %v, want 2", d.Remaining)
	}
	if !snap.IsNew {
		t.Error("expected IsNew on first contact")
	}

	// TryConsume alone never burns quota.
	d, _, _ = svc.TryConsume(ctx, "d1")
	if d.Remaining == nil || *d.Remaining != 2 {
		t.Errorf("speculative TryConsume changed Remaining: %v", d.Remaining)
	}
}

func TestCommitThenExhaust(t *testing.T) {
	svc, _, _ := newEntitlementService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, _, err := svc.TryConsume(ctx, "d1")
		if err != nil || !d.Allowed {
			t.Fatalf("consume %d: allowed=%v err=%v", i, d.Allowed, err)
		}
		if err := svc.CommitConsumption(ctx, "d1"); err != nil {
			t.Fatalf("commit %d: %v", i, err)
		}
	}

	d, _, err := svc.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if d.Allowed {
		t.Error("4th message must be denied at limit 3")
	}
	if d.Reason != entitlement.ReasonQuotaExhausted {
		t.Errorf("Reason = %q, want quota_exhausted", d.Reason)
	}
}

func TestWindowResetRestoresQuota(t *testing.T) {
	svc, _, fc := newEntitlementService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := svc.TryConsume(ctx, "d1"); err != nil {
			t.Fatal(err)
		}
		if err := svc.CommitConsumption(ctx, "d1"); err != nil {
			t.Fatal(err)
		}
	}
	if d, _, _ := svc.TryConsume(ctx, "d1"); d.Allowed {
		t.Fatal("expected denial at limit")
	}

	fc.Advance(30 * 24 * time.Hour)

	d, _, err := svc.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !d.Allowed {
		t.Error("new window must restore quota")
	}
	if d.Remaining == nil || *d.Remaining != 2 {
		t.Errorf("Remaining = %v, want 2 after reset", d.Remaining)
	}
}

func TestConcurrentCommits_NoneLost(t *testing.T) {
	svc, devices, _ := newEntitlementService(t)
	ctx := context.Background()

	if _, err := svc.Init(ctx, "d1"); err != nil {
		t.Fatal(err)
	}

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.CommitConsumption(ctx, "d1")
		}()
	}
	wg.Wait()
	close(errs)

	failed := 0
	for err := range errs {
		if err != nil {
			failed++
		}
	}

	r, err := devices.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if r.MessagesUsed != n-failed {
		t.Errorf("MessagesUsed = %d, want %d (succeeded commits)", r.MessagesUsed, n-failed)
	}
}

func TestCommitConsumption_RefusesStaleDecision(t *testing.T) {
	svc, devices, _ := newEntitlementService(t)
	ctx := context.Background()

	// All eight decisions are taken before any commit, so five of them
	// are stale by the time their commits run.
	const n = 8
	for i := 0; i < n; i++ {
		d, _, err := svc.TryConsume(ctx, "d1")
		if err != nil {
			t.Fatalf("TryConsume %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("decision %d not allowed before any commit", i)
		}
	}

	committed := 0
	for i := 0; i < n; i++ {
		err := svc.CommitConsumption(ctx, "d1")
		switch {
		case err == nil:
			committed++
		case errors.Is(err, app.ErrQuotaExhausted):
		default:
			t.Fatalf("commit %d: %v", i, err)
		}
	}
	if committed != 3 {
		t.Errorf("committed = %d, want 3 (the free limit)", committed)
	}

	r, err := devices.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if r.MessagesUsed != 3 {
		t.Errorf("MessagesUsed = %d, want 3", r.MessagesUsed)
	}
}

func TestConcurrentPairs_CounterCappedAtLimit(t *testing.T) {
	devices := memory.NewDeviceStore()
	svc := app.NewEntitlementService(devices, clock.NewFake(base), app.EntitlementConfig{
		FreeLimit:  3,
		Window:     30 * 24 * time.Hour,
		MaxRetries: 50,
	}, zerolog.Nop())
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, _, err := svc.TryConsume(ctx, "d1")
			if err != nil {
				errs <- err
				return
			}
			if d.Allowed {
				errs <- svc.CommitConsumption(ctx, "d1")
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil && !errors.Is(err, app.ErrQuotaExhausted) {
			t.Errorf("unexpected error: %v", err)
		}
	}

	r, err := devices.Get(ctx, "d1")
	if err != nil {
		t.Fatal(err)
	}
	if r.MessagesUsed > 3 {
		t.Errorf("MessagesUsed = %d, exceeds free limit 3", r.MessagesUsed)
	}
	if r.MessagesUsed != 3 {
		t.Errorf("MessagesUsed = %d, want 3 with more pairs than quota", r.MessagesUsed)
	}
}

func TestTryConsume_DisabledDevice(t *testing.T) {
	svc, devices, _ := newEntitlementService(t)
	ctx := context.Background()

	if _, err := svc.Init(ctx, "d1"); err != nil {
		t.Fatal(err)
	}
	r, _ := devices.Get(ctx, "d1")
	r.FreeTierDisabled = true
	if err := devices.Update(ctx, r); err != nil {
		t.Fatal(err)
	}

	d, _, err := svc.TryConsume(ctx, "d1")
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if d.Allowed {
		t.Error("disabled device must be denied")
	}
	if d.Reason != entitlement.ReasonFreeTierDisabled {
		t.Errorf("Reason = %q, want free_tier_disabled", d.Reason)
	}
}

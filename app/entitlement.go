package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/ports"
)

// EntitlementConfig tunes quota enforcement.
type EntitlementConfig struct {
	// FreeLimit is the number of free messages per window.
	FreeLimit int

	// Window is the length of the free window and of a paid period.
	Window time.Duration

	// MaxRetries bounds conditional-write retry loops.
	MaxRetries int
}

func (c EntitlementConfig) withDefaults() EntitlementConfig {
	if c.FreeLimit <= 0 {
		c.FreeLimit = entitlement.DefaultFreeLimit
	}
	if c.Window <= 0 {
		c.Window = entitlement.DefaultWindow
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

// EntitlementService enforces the free-tier quota and answers entitlement
// reads. Every read path reconciles stale state first, so a device that
// lapsed or crossed its window boundary is corrected lazily without any
// background job.
type EntitlementService struct {
	devices ports.DeviceStore
	clock   ports.Clock
	cfg     EntitlementConfig
	logger  zerolog.Logger
}

// NewEntitlementService creates a new entitlement service.
func NewEntitlementService(devices ports.DeviceStore, clock ports.Clock, cfg EntitlementConfig, logger zerolog.Logger) *EntitlementService {
	return &EntitlementService{
		devices: devices,
		clock:   clock,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Init registers a device on first contact and returns its entitlement
// snapshot. Calling it again for a known device is a cheap read.
func (s *EntitlementService) Init(ctx context.Context, deviceID string) (Snapshot, error) {
	now := s.clock.Now()

	_, err := s.devices.Get(ctx, deviceID)
	if errors.Is(err, ports.ErrNotFound) {
		fresh := entitlement.New(deviceID, now, s.cfg.Window)
		createErr := s.devices.Create(ctx, fresh)
		if createErr == nil {
			s.logger.Info().Str("device_id", deviceID).Msg("device registered")
			fresh.Version = 1
			return snapshotOf(fresh, now, s.cfg.FreeLimit, true), nil
		}
		if !errors.Is(createErr, ports.ErrDuplicate) {
			return Snapshot{}, createErr
		}
		// Lost the create race; fall through and read the winner's record.
	} else if err != nil {
		return Snapshot{}, err
	}

	r, err := s.reconcile(ctx, deviceID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(r, now, s.cfg.FreeLimit, false), nil
}

// Status returns the reconciled entitlement snapshot for a known device.
func (s *EntitlementService) Status(ctx context.Context, deviceID string) (Snapshot, error) {
	r, err := s.reconcile(ctx, deviceID)
	if err != nil {
		return Snapshot{}, err
	}
	return snapshotOf(r, s.clock.Now(), s.cfg.FreeLimit, false), nil
}

// TryConsume decides whether the device may send one more message. It
// does not count the message; the caller commits separately once the
// metered action succeeded, so a failed action never burns quota.
// Unknown devices are registered on the spot.
func (s *EntitlementService) TryConsume(ctx context.Context, deviceID string) (entitlement.Decision, Snapshot, error) {
	snap, err := s.Init(ctx, deviceID)
	if err != nil {
		return entitlement.Decision{}, Snapshot{}, err
	}

	r, err := s.devices.Get(ctx, deviceID)
	if err != nil {
		return entitlement.Decision{}, Snapshot{}, err
	}

	now := s.clock.Now()
	d := entitlement.CheckConsume(r, now, s.cfg.FreeLimit)

	s.logger.Debug().
		Str("device_id", deviceID).
		Bool("allowed", d.Allowed).
		Str("reason", d.Reason).
		Msg("consume decision")

	return d, snap, nil
}

// CommitConsumption records one consumed message after the metered action
// succeeded. The earlier TryConsume decision is stale by now, so the
// quota check runs again against the re-read record inside the write
// loop; a device that raced past its limit gets ErrQuotaExhausted and
// the counter never exceeds the free limit. Any failure means the
// message is NOT counted; the caller decides whether that is acceptable.
func (s *EntitlementService) CommitConsumption(ctx context.Context, deviceID string) error {
	now := s.clock.Now()

	var declined bool
	_, err := updateWithRetry(ctx, s.devices, deviceID, s.cfg.MaxRetries, func(r entitlement.Record) (entitlement.Record, bool) {
		r, changed := entitlement.Reconcile(r, now, s.cfg.Window)
		if d := entitlement.CheckConsume(r, now, s.cfg.FreeLimit); !d.Allowed {
			declined = true
			return r, changed
		}
		declined = false
		r.MessagesUsed++
		r.UpdatedAt = now
		return r, true
	})
	if err != nil {
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("commit consumption failed")
		return err
	}
	if declined {
		s.logger.Warn().Str("device_id", deviceID).Msg("commit refused, quota exhausted since decision")
		return ErrQuotaExhausted
	}
	return nil
}

// reconcile reads the record and persists any lazy correction.
func (s *EntitlementService) reconcile(ctx context.Context, deviceID string) (entitlement.Record, error) {
	now := s.clock.Now()
	return updateWithRetry(ctx, s.devices, deviceID, s.cfg.MaxRetries, func(r entitlement.Record) (entitlement.Record, bool) {
		return entitlement.Reconcile(r, now, s.cfg.Window)
	})
}

package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/domain/subscription"
	"github.com/replygate/replygate/ports"
)

// PurchaseService activates the paid tier from client-reported purchases.
// The verifier is the trust boundary: a token that cannot be confirmed
// never activates anything.
type PurchaseService struct {
	devices  ports.DeviceStore
	events   ports.EventStore
	verifier ports.PurchaseVerifier
	clock    ports.Clock
	idGen    ports.IDGenerator
	cfg      EntitlementConfig
	logger   zerolog.Logger
}

// NewPurchaseService creates a new purchase service.
func NewPurchaseService(
	devices ports.DeviceStore,
	events ports.EventStore,
	verifier ports.PurchaseVerifier,
	clock ports.Clock,
	idGen ports.IDGenerator,
	cfg EntitlementConfig,
	logger zerolog.Logger,
) *PurchaseService {
	return &PurchaseService{
		devices:  devices,
		events:   events,
		verifier: verifier,
		clock:    clock,
		idGen:    idGen,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// ActivatePaid verifies a purchase token and, on success, moves the
// device to the paid tier for one period. The device must already be
// registered; unverifiable tokens are refused, never trusted.
func (s *PurchaseService) ActivatePaid(ctx context.Context, deviceID, purchaseToken string) (Snapshot, error) {
	if _, err := s.devices.Get(ctx, deviceID); err != nil {
		return Snapshot{}, err
	}

	if err := s.verifier.Verify(ctx, deviceID, purchaseToken); err != nil {
		if errors.Is(err, ports.ErrVerificationRefused) {
			s.logger.Warn().
				Str("device_id", deviceID).
				Str("verifier", s.verifier.Name()).
				Msg("purchase verification refused")
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("verify purchase: %w", err)
	}

	now := s.clock.Now()

	r, err := updateWithRetry(ctx, s.devices, deviceID, s.cfg.MaxRetries, func(r entitlement.Record) (entitlement.Record, bool) {
		return entitlement.Activate(r, purchaseToken, now, s.cfg.Window), true
	})
	if err != nil {
		return Snapshot{}, err
	}

	ev := subscription.NewClientEvent(s.idGen.New(), deviceID, purchaseToken, subscription.EventPurchased, now)
	if err := s.events.Append(ctx, ev); err != nil {
		// The activation itself stuck; a lost audit row is logged, not fatal.
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("append purchase event failed")
	}

	s.logger.Info().
		Str("device_id", deviceID).
		Str("verifier", s.verifier.Name()).
		Time("paid_until", *r.PaidUntil).
		Msg("paid tier activated")

	return snapshotOf(r, now, s.cfg.FreeLimit, false), nil
}

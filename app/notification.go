package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/domain/entitlement"
	"github.com/replygate/replygate/domain/notification"
	"github.com/replygate/replygate/domain/subscription"
	"github.com/replygate/replygate/ports"
)

// NotificationConfig tunes webhook processing.
type NotificationConfig struct {
	EntitlementConfig

	// CancelThreshold is how many cancellation events permanently bar a
	// device from the free tier. Zero means the default of 3.
	CancelThreshold int
}

// DefaultCancelThreshold is the cancellation count that trips the
// free-tier bar.
const DefaultCancelThreshold = 3

func (c NotificationConfig) withDefaults() NotificationConfig {
	c.EntitlementConfig = c.EntitlementConfig.withDefaults()
	if c.CancelThreshold <= 0 {
		c.CancelThreshold = DefaultCancelThreshold
	}
	return c
}

// NotificationResult reports what processing a webhook body did. The
// transport layer uses it for metrics only; the HTTP answer is always an
// ack.
type NotificationResult struct {
	Action    notification.Action
	Duplicate bool
	Unmatched bool
	Test      bool

	// Disabled is set when this notification tripped the free-tier bar.
	Disabled bool
}

// NotificationService applies billing-platform push notifications to
// entitlement records. Delivery is at-least-once and unordered, so every
// step is idempotent: duplicates are dropped on the dedup key and state
// transitions assign absolute values rather than toggling.
type NotificationService struct {
	devices ports.DeviceStore
	events  ports.EventStore
	dedup   ports.DedupStore
	clock   ports.Clock
	idGen   ports.IDGenerator
	cfg     NotificationConfig
	logger  zerolog.Logger
}

// NewNotificationService creates a new notification service.
func NewNotificationService(
	devices ports.DeviceStore,
	events ports.EventStore,
	dedup ports.DedupStore,
	clock ports.Clock,
	idGen ports.IDGenerator,
	cfg NotificationConfig,
	logger zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		devices: devices,
		events:  events,
		dedup:   dedup,
		clock:   clock,
		idGen:   idGen,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// HandleNotification processes one raw Pub/Sub push body. Errors are for
// the caller's log only; the HTTP layer acks regardless, because the
// platform retries forever otherwise.
func (s *NotificationService) HandleNotification(ctx context.Context, body []byte) (NotificationResult, error) {
	p, err := notification.Decode(body)
	if err != nil {
		return NotificationResult{}, err
	}

	if p.SubscriptionNotification == nil {
		if p.TestNotification != nil {
			s.logger.Info().Str("package", p.PackageName).Msg("test notification received")
			return NotificationResult{Test: true}, nil
		}
		s.logger.Info().Str("package", p.PackageName).Msg("notification without subscription payload, ignored")
		return NotificationResult{}, nil
	}

	sn := p.SubscriptionNotification
	action := notification.Classify(sn.NotificationType)
	key := notification.DedupKey(p)
	occurredAt := p.EventTime(s.clock.Now())

	log := s.logger.With().
		Int("notification_type", sn.NotificationType).
		Str("action", action.String()).
		Str("dedup_key", key).
		Logger()

	// A duplicate skips only the audit append. The state transition is
	// still re-applied: the earlier delivery may have died between the
	// append and the write, and transitions assign absolute values, so
	// redoing one is safe while dropping one loses it forever.
	duplicate := false
	seen, err := s.dedup.Seen(ctx, key)
	if err != nil {
		// Dedup store trouble is survivable; the event store's unique
		// index still guarantees an append-exactly-once below.
		log.Warn().Err(err).Msg("dedup store check failed")
	} else if seen {
		duplicate = true
	}

	rec, err := s.devices.GetByPurchaseToken(ctx, sn.PurchaseToken)
	if errors.Is(err, ports.ErrNotFound) {
		log.Warn().Msg("notification matched no device")
		return NotificationResult{Action: action, Duplicate: duplicate, Unmatched: true}, nil
	}
	if err != nil {
		return NotificationResult{Action: action, Duplicate: duplicate}, err
	}

	if !duplicate {
		// The audit append is the authoritative dedup point: its unique
		// index on the key turns a replay into ErrDuplicate no matter
		// how late it arrives.
		ev := subscription.NewWebhookEvent(
			s.idGen.New(), rec.DeviceID, sn.PurchaseToken,
			notification.EventType(action, sn.NotificationType),
			sn.NotificationType, key, occurredAt,
		)
		if err := s.events.Append(ctx, ev); err != nil {
			if errors.Is(err, ports.ErrDuplicate) {
				duplicate = true
			} else {
				return NotificationResult{Action: action}, err
			}
		}
	}
	if duplicate {
		log.Info().Str("device_id", rec.DeviceID).Msg("duplicate notification, reapplying transition")
	}

	res, err := s.apply(ctx, log, rec, sn.PurchaseToken, action)
	res.Duplicate = duplicate
	return res, err
}

func (s *NotificationService) apply(ctx context.Context, log zerolog.Logger, rec entitlement.Record, token string, action notification.Action) (NotificationResult, error) {
	switch action {
	case notification.ActionActivate:
		return s.applyActivate(ctx, log, rec.DeviceID, token, action)
	case notification.ActionDeactivate:
		return s.applyDeactivate(ctx, log, rec.DeviceID, action)
	default:
		// Unknown codes change nothing; the audit row preserves them
		// for later inspection.
		log.Warn().Msg("unknown notification type, no state change")
		return NotificationResult{Action: action}, nil
	}
}

func (s *NotificationService) applyActivate(ctx context.Context, log zerolog.Logger, deviceID, token string, action notification.Action) (NotificationResult, error) {
	now := s.clock.Now()

	_, err := updateWithRetry(ctx, s.devices, deviceID, s.cfg.MaxRetries, func(r entitlement.Record) (entitlement.Record, bool) {
		return entitlement.Activate(r, token, now, s.cfg.Window), true
	})
	if err != nil {
		return NotificationResult{Action: action}, err
	}

	log.Info().Str("device_id", deviceID).Msg("paid tier activated by notification")
	return NotificationResult{Action: action}, nil
}

func (s *NotificationService) applyDeactivate(ctx context.Context, log zerolog.Logger, deviceID string, action notification.Action) (NotificationResult, error) {
	now := s.clock.Now()

	cancellations, err := s.events.CountByDeviceAndType(ctx, deviceID, subscription.EventCanceledOrExpired)
	if err != nil {
		return NotificationResult{Action: action}, err
	}
	bar := cancellations >= s.cfg.CancelThreshold

	var tripped bool
	_, err = updateWithRetry(ctx, s.devices, deviceID, s.cfg.MaxRetries, func(r entitlement.Record) (entitlement.Record, bool) {
		tripped = bar && !r.FreeTierDisabled
		r = entitlement.Deactivate(r, now)
		if bar {
			r.FreeTierDisabled = true
		}
		return r, true
	})
	if err != nil {
		return NotificationResult{Action: action}, err
	}

	if tripped {
		log.Warn().
			Str("device_id", deviceID).
			Int("cancellations", cancellations).
			Msg("free tier permanently disabled")
	} else {
		log.Info().Str("device_id", deviceID).Msg("paid tier deactivated by notification")
	}

	return NotificationResult{Action: action, Disabled: tripped}, nil
}

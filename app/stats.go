package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/replygate/replygate/domain/usage"
	"github.com/replygate/replygate/ports"
)

// StatsService records per-device AI reply statistics. Stats are
// informational only; a lost update under a rare write race costs a
// counter tick, never quota.
type StatsService struct {
	stats  ports.StatsStore
	clock  ports.Clock
	logger zerolog.Logger
}

// NewStatsService creates a new stats service.
func NewStatsService(stats ports.StatsStore, clock ports.Clock, logger zerolog.Logger) *StatsService {
	return &StatsService{stats: stats, clock: clock, logger: logger}
}

// RecordReply folds one generated reply into the device's month bucket.
func (s *StatsService) RecordReply(ctx context.Context, deviceID string, tokens int64) error {
	now := s.clock.Now()
	key := usage.MonthKey(now)

	bucket, err := s.stats.Get(ctx, deviceID, key)
	if err != nil {
		return err
	}
	bucket.DeviceID = deviceID
	bucket.MonthKey = key
	bucket = usage.AddReply(bucket, tokens, now)

	if err := s.stats.Put(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Str("device_id", deviceID).Msg("record reply failed")
		return err
	}
	return nil
}

// MonthStats returns the device's bucket for the month containing now.
func (s *StatsService) MonthStats(ctx context.Context, deviceID string) (usage.ReplyStats, error) {
	return s.stats.Get(ctx, deviceID, usage.MonthKey(s.clock.Now()))
}

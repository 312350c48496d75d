package sqlite

import (
	"context"
	"database/sql"

	"github.com/replygate/replygate/domain/usage"
	"github.com/replygate/replygate/ports"
)

// StatsStore implements ports.StatsStore using SQLite.
type StatsStore struct {
	db *DB
}

// NewStatsStore creates a new SQLite stats store.
func NewStatsStore(db *DB) *StatsStore {
	return &StatsStore{db: db}
}

// Get retrieves the bucket for a device and month, zero when absent.
func (s *StatsStore) Get(ctx context.Context, deviceID, monthKey string) (usage.ReplyStats, error) {
	var (
		b    usage.ReplyStats
		last sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT device_id, month_key, total_tokens, reply_count, last_reply_at
		FROM reply_stats
		WHERE device_id = ? AND month_key = ?
	`, deviceID, monthKey).Scan(&b.DeviceID, &b.MonthKey, &b.TotalTokens, &b.ReplyCount, &last)
	if err == sql.ErrNoRows {
		return usage.ReplyStats{DeviceID: deviceID, MonthKey: monthKey}, nil
	}
	if err != nil {
		return usage.ReplyStats{}, err
	}
	if last.Valid {
		b.LastReplyAt = last.Time.UTC()
	}
	return b, nil
}

// Put upserts a bucket.
func (s *StatsStore) Put(ctx context.Context, b usage.ReplyStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reply_stats (device_id, month_key, total_tokens, reply_count, last_reply_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id, month_key) DO UPDATE SET
			total_tokens = excluded.total_tokens,
			reply_count = excluded.reply_count,
			last_reply_at = excluded.last_reply_at
	`, b.DeviceID, b.MonthKey, b.TotalTokens, b.ReplyCount, zeroableTime(b.LastReplyAt))
	return err
}

// Ensure interface compliance.
var _ ports.StatsStore = (*StatsStore)(nil)

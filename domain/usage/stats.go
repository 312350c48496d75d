// Package usage provides per-device AI reply statistics.
// Stats are informational (token spend, reply counts per calendar month);
// they play no part in quota enforcement.
package usage

import "time"

// MonthKeyFormat is the calendar bucket format, e.g. "2025-12".
const MonthKeyFormat = "2006-01"

// MonthKey returns the calendar bucket for a point in time.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthKeyFormat)
}

// ReplyStats aggregates AI replies for one device in one calendar month
// (value type; keyed by DeviceID+MonthKey).
type ReplyStats struct {
	DeviceID    string
	MonthKey    string
	TotalTokens int64
	ReplyCount  int64
	LastReplyAt time.Time
}

// AddReply folds one reply into the bucket. This is a PURE function.
func AddReply(s ReplyStats, tokens int64, at time.Time) ReplyStats {
	s.TotalTokens += tokens
	s.ReplyCount++
	if at.After(s.LastReplyAt) {
		s.LastReplyAt = at
	}
	return s
}

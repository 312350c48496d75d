package usage

import (
	"testing"
	"time"
)

func TestMonthKey(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Date(2025, 12, 31, 23, 59, 0, 0, time.UTC), "2025-12"},
		{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), "2026-01"},
		// Bucket is derived in UTC regardless of input zone.
		{time.Date(2026, 1, 1, 0, 30, 0, 0, time.FixedZone("E1", 3600)), "2025-12"},
	}

	for _, tt := range tests {
		if got := MonthKey(tt.t); got != tt.want {
			t.Errorf("MonthKey(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestAddReply(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := ReplyStats{DeviceID: "d1", MonthKey: "2025-06"}

	s = AddReply(s, 120, at)
	s = AddReply(s, 80, at.Add(time.Minute))

	if s.TotalTokens != 200 {
		t.Errorf("TotalTokens = %d, want 200", s.TotalTokens)
	}
	if s.ReplyCount != 2 {
		t.Errorf("ReplyCount = %d, want 2", s.ReplyCount)
	}
	if !s.LastReplyAt.Equal(at.Add(time.Minute)) {
		t.Errorf("LastReplyAt = %v", s.LastReplyAt)
	}
}

func TestAddReply_OutOfOrder(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s := ReplyStats{DeviceID: "d1", MonthKey: "2025-06"}

	s = AddReply(s, 10, at)
	s = AddReply(s, 10, at.Add(-time.Hour))

	if !s.LastReplyAt.Equal(at) {
		t.Errorf("LastReplyAt = %v, want %v (must not move backward)", s.LastReplyAt, at)
	}
}

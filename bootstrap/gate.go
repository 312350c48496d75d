package bootstrap

import (
	"context"
	"strconv"

	"github.com/replygate/replygate/domain/entitlement"
)

// The methods below are the in-process interface the AI reply pipeline
// calls around each generated reply: ask first, commit only after the
// reply actually went out, then record the token spend.

// TryConsume reports whether the device may send one more message. It
// never counts the message itself.
func (a *App) TryConsume(ctx context.Context, deviceID string) (entitlement.Decision, error) {
	d, snap, err := a.Entitlements.TryConsume(ctx, deviceID)
	if err != nil {
		return entitlement.Decision{}, err
	}
	if a.Metrics != nil {
		a.Metrics.ConsumeDecisions.
			WithLabelValues(string(snap.Tier), strconv.FormatBool(d.Allowed), d.Reason).
			Inc()
	}
	return d, nil
}

// CommitConsumption counts one consumed message after the metered action
// succeeded.
func (a *App) CommitConsumption(ctx context.Context, deviceID string) error {
	return a.Entitlements.CommitConsumption(ctx, deviceID)
}

// RecordReply folds one generated reply into the device's monthly stats.
func (a *App) RecordReply(ctx context.Context, deviceID string, tokens int64) error {
	if err := a.Stats.RecordReply(ctx, deviceID, tokens); err != nil {
		return err
	}
	if a.Metrics != nil {
		a.Metrics.RepliesTotal.Inc()
		a.Metrics.ReplyTokensTotal.Add(float64(tokens))
	}
	return nil
}

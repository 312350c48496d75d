package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/replygate/replygate/adapters/metrics"
)

func TestNewWithRegistry(t *testing.T) {
	// Use a new registry to avoid conflicts with other tests
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	if m == nil {
		t.Fatal("NewWithRegistry returned nil")
	}
	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.ConsumeDecisions == nil {
		t.Error("ConsumeDecisions is nil")
	}
	if m.VerificationResults == nil {
		t.Error("VerificationResults is nil")
	}
	if m.WebhookNotifications == nil {
		t.Error("WebhookNotifications is nil")
	}
	if m.ConfigReloads == nil {
		t.Error("ConfigReloads is nil")
	}
}

func TestConsumeDecisions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.ConsumeDecisions.WithLabelValues("FREE", "true", "").Inc()
	m.ConsumeDecisions.WithLabelValues("FREE", "false", "quota_exhausted").Add(3)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}

	found := false
	for _, f := range families {
		if f.GetName() == "replygate_consume_decisions_total" {
			found = true
			if len(f.GetMetric()) != 2 {
				t.Errorf("expected 2 label combinations, got %d", len(f.GetMetric()))
			}
		}
	}
	if !found {
		t.Error("replygate_consume_decisions_total not gathered")
	}
}

func TestWebhookCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(reg)

	m.WebhookNotifications.WithLabelValues("ACTIVATE").Inc()
	m.WebhookNotifications.WithLabelValues("DEACTIVATE").Inc()
	m.WebhookDuplicates.Inc()
	m.WebhookUnmatched.Inc()
	m.FreeTierDisabled.Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("no metric families gathered")
	}
}

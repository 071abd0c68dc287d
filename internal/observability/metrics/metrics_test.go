package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	m.RecordAIRun(ctx, "COMPLETED", "claude-sonnet-4-5")
	m.RecordLedgerEntry(ctx, "SPEND")
	m.RecordLedgerEntry(ctx, "SPEND")
	m.RecordProviderCall(ctx, "anthropic", "ok", 250*time.Millisecond)
	m.RecordRateLimitAllowed(ctx, "ai_run")
	m.RecordRateLimitDenied(ctx, "ai_run")
	m.RecordToolInvocation(ctx, "update_file", "ok")

	assert.InDelta(t, 1, testutil.ToFloat64(m.aiRuns.WithLabelValues("COMPLETED", "claude-sonnet-4-5")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(m.ledgerEntries.WithLabelValues("SPEND")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.rateLimitHits.WithLabelValues("ai_run", "denied")), 1e-9)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordAIRun(ctx, "FAILED", "")
	m.RecordLedgerEntry(ctx, "")
	m.RecordProviderCall(ctx, "", "", 0)
	m.RecordRateLimitAllowed(ctx, "")
	m.RecordRateLimitDenied(ctx, "")
	m.RecordToolInvocation(ctx, "", "")
}

func TestNormalizeBlankLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.RecordLedgerEntry(context.Background(), "  ")
	assert.InDelta(t, 1, testutil.ToFloat64(m.ledgerEntries.WithLabelValues("unknown")), 1e-9)
}

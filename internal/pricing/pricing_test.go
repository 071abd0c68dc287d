package pricing

import (
	"testing"

	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Config{}
	cfg.AI.CheapModel = "claude-3-5-haiku-20241022"
	cfg.AI.StrongModel = "claude-sonnet-4-5"
	cfg.Billing.MarkupMultiplier = 1.20
	return NewEngine(Params{Cfg: cfg, Log: zap.NewNop()})
}

func TestVendorCost(t *testing.T) {
	e := newTestEngine(t)

	// claude-sonnet-4-5: 3.0 in, 15.0 out per 1M
	cost := e.VendorCost("claude-sonnet-4-5", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, cost, 1e-9)

	cost = e.VendorCost("claude-3-5-haiku-20241022", 2_000_000, 500_000)
	assert.InDelta(t, 2.0+2.5, cost, 1e-9)

	cost = e.VendorCost("gpt-4o-mini", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.75, cost, 1e-9)
}

func TestVendorCostUnknownModelFallsBackToDefault(t *testing.T) {
	e := newTestEngine(t)

	cost := e.VendorCost("some-future-model", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, cost, 1e-9)
}

func TestVendorCostZeroTokens(t *testing.T) {
	e := newTestEngine(t)
	assert.Zero(t, e.VendorCost("gpt-4o", 0, 0))
}

func TestCreditsChargedAppliesMarkup(t *testing.T) {
	e := newTestEngine(t)

	assert.InDelta(t, 1.20, e.CreditsCharged(1.0), 1e-9)
	assert.InDelta(t, 0.0, e.CreditsCharged(0.0), 1e-9)

	// A run on the strong model: 12000 in, 3000 out.
	cost := e.VendorCost("claude-sonnet-4-5", 12_000, 3_000)
	assert.InDelta(t, 0.081, cost, 1e-9)
	assert.InDelta(t, 0.0972, e.CreditsCharged(cost), 1e-9)
}

func TestEstimateCredits(t *testing.T) {
	e := newTestEngine(t)

	est := e.EstimateCredits("claude-sonnet-4-5", 50_000, 8_192)
	want := e.CreditsCharged(e.VendorCost("claude-sonnet-4-5", 50_000, 8_192))
	assert.InDelta(t, want, est, 1e-12)
}

func TestModelForTaskFreeTierAlwaysCheap(t *testing.T) {
	e := newTestEngine(t)

	for _, task := range AllTaskTypes {
		got := e.ModelForTask(task, entitlementdomain.TierFree)
		assert.Equal(t, e.cheapModel, got, "task %s", task)
	}
}

func TestModelForTaskPaidTiers(t *testing.T) {
	e := newTestEngine(t)

	for _, tier := range []entitlementdomain.PlanTier{entitlementdomain.TierPro, entitlementdomain.TierTeam} {
		assert.Equal(t, e.cheapModel, e.ModelForTask(TaskUXReview, tier))
		assert.Equal(t, e.cheapModel, e.ModelForTask(TaskSummarize, tier))
		assert.Equal(t, e.cheapModel, e.ModelForTask(TaskFileSelect, tier))
		assert.Equal(t, e.strongModel, e.ModelForTask(TaskCodeEdit, tier))
		assert.Equal(t, e.strongModel, e.ModelForTask(TaskMultiFileChange, tier))
		assert.Equal(t, e.strongModel, e.ModelForTask(TaskBackendSchema, tier))
	}
}

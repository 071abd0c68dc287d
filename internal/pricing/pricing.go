// Package pricing maps token usage to vendor cost and credits charged, and
// routes task types to models by plan tier.
package pricing

import (
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ModelPrice holds USD rates per 1M tokens.
type ModelPrice struct {
	InputPer1M  float64
	OutputPer1M float64
}

var modelPrices = map[string]ModelPrice{
	"claude-sonnet-4-5":          {InputPer1M: 3.0, OutputPer1M: 15.0},
	"claude-3-5-sonnet-20241022": {InputPer1M: 3.0, OutputPer1M: 15.0},
	"claude-3-5-haiku-20241022":  {InputPer1M: 1.0, OutputPer1M: 5.0},
	"claude-3-opus-20240229":     {InputPer1M: 15.0, OutputPer1M: 75.0},
	"gpt-4o":                     {InputPer1M: 2.5, OutputPer1M: 10.0},
	"gpt-4o-mini":                {InputPer1M: 0.15, OutputPer1M: 0.6},
}

// defaultPrice is applied when a model is missing from the table. A pricing
// table miss must never block a charge.
var defaultPrice = ModelPrice{InputPer1M: 3.0, OutputPer1M: 15.0}

// TaskType classifies the user's request for model routing.
type TaskType string

const (
	TaskUXReview        TaskType = "UX_REVIEW"
	TaskSummarize       TaskType = "SUMMARIZE"
	TaskFileSelect      TaskType = "FILE_SELECT"
	TaskCodeEdit        TaskType = "CODE_EDIT"
	TaskMultiFileChange TaskType = "MULTI_FILE_CHANGE"
	TaskBackendSchema   TaskType = "BACKEND_SCHEMA"
)

// AllTaskTypes lists every declared task type.
var AllTaskTypes = []TaskType{
	TaskUXReview,
	TaskSummarize,
	TaskFileSelect,
	TaskCodeEdit,
	TaskMultiFileChange,
	TaskBackendSchema,
}

var cheapTasks = map[TaskType]bool{
	TaskUXReview:   true,
	TaskSummarize:  true,
	TaskFileSelect: true,
}

type Engine struct {
	log         *zap.Logger
	cheapModel  string
	strongModel string
	markup      float64
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

func NewEngine(p Params) *Engine {
	markup := p.Cfg.Billing.MarkupMultiplier
	if markup <= 0 {
		markup = 1.20
	}
	return &Engine{
		log:         p.Log.Named("pricing"),
		cheapModel:  p.Cfg.AI.CheapModel,
		strongModel: p.Cfg.AI.StrongModel,
		markup:      markup,
	}
}

// VendorCost returns the raw vendor cost in USD for the given token usage.
func (e *Engine) VendorCost(model string, inputTokens, outputTokens int64) float64 {
	price, ok := modelPrices[model]
	if !ok {
		e.log.Warn("unknown model pricing, using default rate", zap.String("model", model))
		price = defaultPrice
	}
	inputCost := float64(inputTokens) / 1_000_000 * price.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * price.OutputPer1M
	return inputCost + outputCost
}

// CreditsCharged converts vendor cost to credits with markup applied.
// 1 credit is 1 USD post-markup.
func (e *Engine) CreditsCharged(vendorCostUSD float64) float64 {
	return vendorCostUSD * e.markup
}

// EstimateCredits is the pre-flight composition used for the affordability
// check; callers pass deliberately conservative token estimates.
func (e *Engine) EstimateCredits(model string, estInputTokens, estOutputTokens int64) float64 {
	return e.CreditsCharged(e.VendorCost(model, estInputTokens, estOutputTokens))
}

// ModelForTask routes a task to a model. FREE tier always gets the cheap
// model, for every task type; this invariant is load-bearing for unit
// economics.
func (e *Engine) ModelForTask(task TaskType, tier entitlementdomain.PlanTier) string {
	if tier == entitlementdomain.TierFree {
		return e.cheapModel
	}
	if cheapTasks[task] {
		return e.cheapModel
	}
	return e.strongModel
}

var Module = fx.Module("pricing",
	fx.Provide(NewEngine),
)

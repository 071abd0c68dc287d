// Package orchestrator drives the bounded tool-calling loop between the
// model provider and the tool executor.
package orchestrator

import (
	"context"
	"time"

	"github.com/appdraft/appdraft/internal/agent/domain"
	"github.com/appdraft/appdraft/internal/config"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Provider domain.Provider
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Orchestrator struct {
	log      *zap.Logger
	provider domain.Provider
	metrics  *obsmetrics.Metrics
	maxIters int
}

func New(p Params) *Orchestrator {
	maxIters := p.Cfg.AI.MaxToolIters
	if maxIters < 1 {
		maxIters = 5
	}
	return &Orchestrator{
		log:      p.Log.Named("agent.orchestrator"),
		provider: p.Provider,
		metrics:  p.Metrics,
		maxIters: maxIters,
	}
}

// RunRequest describes one full agent conversation.
type RunRequest struct {
	Model     string
	System    string
	Messages  []domain.Message
	Executor  domain.ToolExecutor
	MaxTokens int

	// RequireTools demands at least one tool call over the whole run. When
	// the first response produces none, the request is retried exactly once
	// with tool choice forced; a second empty response fails the run.
	RequireTools bool
}

// Run executes the tool-calling loop. Tool execution failures are reported
// back to the model as error results rather than aborting the run; only
// provider errors terminate it.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*domain.RunResult, error) {
	result := &domain.RunResult{}
	messages := req.Messages
	toolChoice := domain.ToolChoiceAuto

	var tools []domain.ToolDefinition
	if req.Executor != nil {
		tools = req.Executor.Definitions()
	}

	for iter := 1; iter <= o.maxIters; iter++ {
		result.Iterations = iter

		resp, err := o.provider.SendMessage(ctx, domain.SendRequest{
			Model:      req.Model,
			System:     req.System,
			Messages:   messages,
			Tools:      tools,
			ToolChoice: toolChoice,
			MaxTokens:  req.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		toolChoice = domain.ToolChoiceAuto

		result.Calls = append(result.Calls, domain.ProviderCallUsage{Model: req.Model, Usage: resp.Usage})
		result.TotalUsage = result.TotalUsage.Add(resp.Usage)

		uses := resp.ToolUses()
		if len(uses) == 0 {
			if req.RequireTools && len(result.ToolCalls) == 0 {
				if result.ForcedRetry {
					return nil, domain.ErrNoToolsProduced
				}
				// One forced retry. More would burn tokens on a model that
				// has already declined twice.
				result.ForcedRetry = true
				toolChoice = domain.ToolChoiceAny
				o.log.Warn("model produced no tool calls, forcing retry",
					zap.String("model", req.Model),
					zap.Int("iteration", iter),
				)
				continue
			}
			result.Reply = resp.TextContent()
			return result, nil
		}

		results := make([]domain.ContentBlock, 0, len(uses))
		for _, use := range uses {
			record := o.executeTool(ctx, req.Executor, iter, use)
			result.ToolCalls = append(result.ToolCalls, record)
			results = append(results, domain.ToolResultBlock(use.ToolUseID, record.Result, record.Failed))
		}

		messages = append(messages,
			domain.Message{Role: domain.RoleAssistant, Content: resp.Content},
			domain.Message{Role: domain.RoleUser, Content: results},
		)

		if iter == o.maxIters {
			// Cap reached with the model still asking for tools. Surface what
			// text we have instead of erroring; the work done so far is real.
			result.StoppedAtCap = true
			result.Reply = resp.TextContent()
			o.log.Warn("tool loop stopped at iteration cap",
				zap.String("model", req.Model),
				zap.Int("max_iterations", o.maxIters),
			)
			return result, nil
		}
	}

	return result, nil
}

func (o *Orchestrator) executeTool(ctx context.Context, executor domain.ToolExecutor, iter int, use domain.ContentBlock) domain.ToolCallRecord {
	record := domain.ToolCallRecord{
		Iteration: iter,
		ToolUseID: use.ToolUseID,
		Name:      use.ToolName,
		Input:     use.ToolInput,
	}

	start := time.Now()
	output, err := executor.Execute(ctx, use.ToolName, use.ToolInput)
	record.Elapsed = time.Since(start)

	if err != nil {
		record.Failed = true
		record.Result = err.Error()
		o.log.Warn("tool call failed",
			zap.String("tool", use.ToolName),
			zap.Error(err),
		)
	} else {
		record.Result = output
	}

	if o.metrics != nil {
		outcome := "ok"
		if record.Failed {
			outcome = "error"
		}
		o.metrics.RecordToolInvocation(ctx, use.ToolName, outcome)
	}
	return record
}

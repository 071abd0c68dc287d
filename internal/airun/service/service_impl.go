package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	agentdomain "github.com/appdraft/appdraft/internal/agent/domain"
	"github.com/appdraft/appdraft/internal/agent/orchestrator"
	"github.com/appdraft/appdraft/internal/agent/tools"
	"github.com/appdraft/appdraft/internal/airun/contextbuild"
	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	backenddomain "github.com/appdraft/appdraft/internal/backend/domain"
	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	"github.com/appdraft/appdraft/internal/pricing"
	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	"github.com/appdraft/appdraft/internal/ratelimit"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RunDriver is the orchestrator surface the coordinator needs.
type RunDriver interface {
	Run(ctx context.Context, req orchestrator.RunRequest) (*agentdomain.RunResult, error)
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Repo     airundomain.Repository
	Projects projectdomain.Service
	Ents     entitlementdomain.Service
	Ledger   ledgerdomain.Service
	Pricing  *pricing.Engine
	Driver   RunDriver
	Backends backenddomain.Service
	Limiter  ratelimit.AIRunLimiter
	Metrics  *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	ai        config.AIConfig
	repo      airundomain.Repository
	projects  projectdomain.Service
	ents      entitlementdomain.Service
	ledger    ledgerdomain.Service
	pricing  *pricing.Engine
	driver   RunDriver
	backends backenddomain.Service
	limiter  ratelimit.AIRunLimiter
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) airundomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("airun.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		ai:       p.Cfg.AI,
		repo:     p.Repo,
		projects: p.Projects,
		ents:     p.Ents,
		ledger:   p.Ledger,
		pricing:  p.Pricing,
		driver:   p.Driver,
		backends: p.Backends,
		limiter:  p.Limiter,
		metrics:  p.Metrics,
	}
}

// RunAIEdit executes one AI edit request end to end. The ordering here is
// deliberate and load-bearing: nothing is charged before the vendor work
// succeeds, and the user message is persisted before any fallible step so a
// failed run still shows up in the chat history.
func (s *Service) RunAIEdit(ctx context.Context, req airundomain.RunAIEditRequest) (*airundomain.RunAIEditResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, airundomain.ErrEmptyMessage
	}
	if req.UserID == 0 || req.ProjectID == 0 || req.SessionID == 0 {
		return nil, airundomain.ErrInvalidRequest
	}

	project, err := s.projects.GetProject(ctx, req.UserID, req.ProjectID)
	if err != nil {
		return nil, err
	}
	session, err := s.projects.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.ProjectID != project.ID {
		return nil, airundomain.ErrInvalidRequest
	}

	// The base snapshot anchors the edit to the file tree the user was
	// looking at. A project's first run has no snapshot yet.
	var baseSnapshotID *snowflake.ID
	if req.BaseSnapshotID != 0 {
		snapshot, err := s.projects.GetSnapshot(ctx, req.BaseSnapshotID)
		if err != nil {
			return nil, err
		}
		if snapshot.ProjectID != project.ID {
			return nil, projectdomain.ErrSnapshotNotFound
		}
		baseSnapshotID = &snapshot.ID
	}

	if err := s.limiter.Allow(ctx, req.UserID); err != nil {
		return nil, err
	}

	plan, err := s.ents.EffectivePlanForUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	owner := ledgerOwner(plan)
	limits := s.ents.PlanLimits(plan.Tier)

	if err := s.ledger.EnsureMonthlyGrant(ctx, owner, plan.Tier); err != nil {
		return nil, err
	}

	balance, err := s.ledger.Balance(ctx, owner)
	if err != nil {
		return nil, err
	}
	if balance <= 0 {
		return nil, fmt.Errorf("%w: %s", airundomain.ErrNoCreditBalance, paymentMessage(plan.Tier))
	}

	task := classifyTask(message)
	model := s.pricing.ModelForTask(task, plan.Tier)

	// Worst case for one provider round trip under the plan's token limits.
	// Deliberately pessimistic so a run that starts can almost always pay.
	estimate := s.pricing.EstimateCredits(model, int64(limits.MaxInputTokens), int64(limits.MaxOutputTokens))
	if balance < estimate {
		return nil, paymentRequired(plan.Tier)
	}

	// From here on the user message is part of history no matter what fails.
	if _, err := s.projects.AppendUserMessage(ctx, req.SessionID, message); err != nil {
		return nil, err
	}

	files, err := s.projects.ListFiles(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	promptCtx := contextbuild.Build(files, req.SelectedFilePath, limits.MaxContextFiles)
	system := contextbuild.SystemPrompt(project.Name, promptCtx)

	history, err := s.projects.RecentMessages(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	now := s.clock.Now()
	run := &airundomain.Run{
		ID:             s.genID.Generate(),
		RequestID:      requestID,
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		SessionID:      req.SessionID,
		BaseSnapshotID: baseSnapshotID,
		Status:         airundomain.RunStatusRunning,
		TaskType:       task,
		Model:          model,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateRun(ctx, s.db, run); err != nil {
		return nil, err
	}

	registry := tools.NewRegistry(s.projects, s.backends, tools.Scope{
		ProjectID:      req.ProjectID,
		OwnerType:      plan.OwnerType,
		OwnerID:        plan.OwnerID,
		BackendAllowed: limits.BackendAllowed,
	})

	start := s.clock.Now()
	result, err := s.driver.Run(ctx, orchestrator.RunRequest{
		Model:        model,
		System:       system,
		Messages:     conversation(history),
		Executor:     registry,
		MaxTokens:    capTokens(s.ai.DefaultMaxTokens, limits.MaxOutputTokens),
		RequireTools: requiresEdits(task, message, req.SelectedFilePath),
	})
	elapsed := s.clock.Now().Sub(start)

	if err != nil {
		s.failRun(ctx, run, result, elapsed, err)
		if isVendorError(err) {
			return nil, fmt.Errorf("%w: %v", airundomain.ErrVendorFailed, err)
		}
		return nil, err
	}

	vendorCost := 0.0
	for _, call := range result.Calls {
		vendorCost += s.pricing.VendorCost(call.Model, call.Usage.InputTokens, call.Usage.OutputTokens)
	}
	credits := s.pricing.CreditsCharged(vendorCost)

	// Authoritative re-check inside Charge; concurrent runs may have drained
	// the balance since the pre-flight estimate.
	if credits > 0 {
		if err := s.ledger.Charge(ctx, owner, credits, requestID); err != nil {
			s.failRun(ctx, run, result, elapsed, err)
			return nil, err
		}
	}

	event := &airundomain.UsageEvent{
		ID:             s.genID.Generate(),
		RequestID:      requestID,
		RunID:          run.ID,
		UserID:         req.UserID,
		OwnerType:      string(owner.Type),
		OwnerID:        owner.ID,
		Model:          model,
		InputTokens:    result.TotalUsage.InputTokens,
		OutputTokens:   result.TotalUsage.OutputTokens,
		VendorCostUSD:  vendorCost,
		CreditsCharged: credits,
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.CreateUsageEvent(ctx, s.db, event); err != nil {
		// The charge has landed; losing the usage event is an accounting gap,
		// not a user-facing failure.
		s.log.Error("usage event write failed", zap.String("request_id", requestID), zap.Error(err))
	}

	snapshot, _, err := s.projects.SnapshotAndReply(ctx, projectdomain.SnapshotAndReplyRequest{
		ProjectID: req.ProjectID,
		SessionID: req.SessionID,
		RunID:     run.ID,
		Label:     labelFor(message),
		Reply:     result.Reply,
		ReplyMeta: map[string]interface{}{
			"model":           model,
			"input_tokens":    result.TotalUsage.InputTokens,
			"output_tokens":   result.TotalUsage.OutputTokens,
			"credits_charged": credits,
			"run_id":          run.ID.String(),
		},
	})
	if err != nil {
		s.failRun(ctx, run, result, elapsed, err)
		return nil, err
	}

	s.finishRun(ctx, run, result, elapsed, airundomain.RunStatusApplied, nil)
	s.recordInvocations(ctx, run.ID, result)

	remaining, err := s.ledger.Balance(ctx, owner)
	if err != nil {
		remaining = balance - credits
	}

	s.log.Info("ai run applied",
		zap.String("request_id", requestID),
		zap.String("model", model),
		zap.String("task", string(task)),
		zap.Int("tool_calls", len(result.ToolCalls)),
		zap.Float64("credits_charged", credits),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)

	return &airundomain.RunAIEditResponse{
		RunID:            run.ID,
		SnapshotID:       snapshot.ID,
		AssistantText:    result.Reply,
		AppliedTools:     appliedTools(result),
		Model:            model,
		CreditsCharged:   credits,
		CreditsRemaining: remaining,
	}, nil
}

func (s *Service) ListRuns(ctx context.Context, limit int) ([]airundomain.Run, error) {
	return s.repo.ListRuns(ctx, s.db, limit)
}

func (s *Service) MonthlyUsageReport(ctx context.Context, month string) ([]airundomain.MonthlyUsage, error) {
	return s.repo.MonthlyUsage(ctx, s.db, month)
}

func (s *Service) failRun(ctx context.Context, run *airundomain.Run, result *agentdomain.RunResult, elapsed time.Duration, cause error) {
	s.finishRun(ctx, run, result, elapsed, airundomain.RunStatusFailed, cause)
	if result != nil {
		s.recordInvocations(ctx, run.ID, result)
	}
}

func (s *Service) finishRun(ctx context.Context, run *airundomain.Run, result *agentdomain.RunResult, elapsed time.Duration, status airundomain.RunStatus, cause error) {
	run.Status = status
	run.DurationMs = elapsed.Milliseconds()
	run.UpdatedAt = s.clock.Now()
	if cause != nil {
		msg := cause.Error()
		run.Error = &msg
	}
	if result != nil {
		run.InputTokens = result.TotalUsage.InputTokens
		run.OutputTokens = result.TotalUsage.OutputTokens
		run.CacheReadTokens = result.TotalUsage.CacheReadTokens
		run.CacheWriteTokens = result.TotalUsage.CacheWriteTokens
		run.ToolCallCount = len(result.ToolCalls)
		run.PatchFailures = patchFailures(result)
		if result.ForcedRetry {
			run.Retries = 1
		}
	}
	if err := s.repo.UpdateRun(ctx, s.db, run); err != nil {
		s.log.Error("run update failed", zap.String("request_id", run.RequestID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordAIRun(ctx, string(status), run.Model)
	}
}

func (s *Service) recordInvocations(ctx context.Context, runID snowflake.ID, result *agentdomain.RunResult) {
	if len(result.ToolCalls) == 0 {
		return
	}
	invocations := make([]airundomain.ToolInvocation, 0, len(result.ToolCalls))
	for _, call := range result.ToolCalls {
		args := map[string]interface{}{}
		if len(call.Input) > 0 {
			_ = json.Unmarshal(call.Input, &args)
		}
		invocations = append(invocations, airundomain.ToolInvocation{
			ID:         s.genID.Generate(),
			RunID:      runID,
			Iteration:  call.Iteration,
			Name:       call.Name,
			Args:       args,
			Result:     call.Result,
			Success:    !call.Failed,
			DurationMs: call.Elapsed.Milliseconds(),
			CreatedAt:  s.clock.Now(),
		})
	}
	if err := s.repo.CreateToolInvocations(ctx, s.db, invocations); err != nil {
		s.log.Error("tool invocation write failed", zap.Error(err))
	}
}

func ledgerOwner(plan entitlementdomain.EffectivePlan) ledgerdomain.Owner {
	if plan.OwnerType == entitlementdomain.SubscriptionOwnerTeam {
		return ledgerdomain.TeamOwner(plan.OwnerID)
	}
	return ledgerdomain.IndividualOwner(plan.OwnerID)
}

func paymentMessage(tier entitlementdomain.PlanTier) string {
	switch tier {
	case entitlementdomain.TierFree:
		return "You've used this month's free credits. Upgrade to Pro to keep building."
	case entitlementdomain.TierTeam:
		return "Your team's pooled credits are used up for this month. Ask a team admin to top up."
	default:
		return "You're out of credits for this month. Buy a top-up or wait for your monthly refresh."
	}
}

func paymentRequired(tier entitlementdomain.PlanTier) error {
	return fmt.Errorf("%w: %s", ledgerdomain.ErrInsufficientCredits, paymentMessage(tier))
}

func conversation(history []projectdomain.ChatMessage) []agentdomain.Message {
	messages := make([]agentdomain.Message, 0, len(history))
	for _, m := range history {
		role := agentdomain.RoleUser
		if m.Role == projectdomain.RoleAssistant {
			role = agentdomain.RoleAssistant
		}
		messages = append(messages, agentdomain.Message{
			Role:    role,
			Content: []agentdomain.ContentBlock{agentdomain.TextBlock(m.Content)},
		})
	}
	return messages
}

func appliedTools(result *agentdomain.RunResult) []string {
	var names []string
	for _, call := range result.ToolCalls {
		if !call.Failed {
			names = append(names, call.Name)
		}
	}
	return names
}

func patchFailures(result *agentdomain.RunResult) int {
	count := 0
	for _, call := range result.ToolCalls {
		if call.Name == tools.ToolApplyPatch && call.Failed {
			count++
		}
	}
	return count
}

func isVendorError(err error) bool {
	return errors.Is(err, agentdomain.ErrProviderOverload) ||
		errors.Is(err, agentdomain.ErrProviderAuth) ||
		errors.Is(err, agentdomain.ErrProviderRequest)
}

func capTokens(configured, planMax int) int {
	if configured <= 0 {
		configured = 4096
	}
	if planMax > 0 && configured > planMax {
		return planMax
	}
	return configured
}

func labelFor(message string) string {
	const max = 80
	if len(message) <= max {
		return message
	}
	return message[:max]
}

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/appdraft/appdraft/internal/agent/domain"
	"github.com/appdraft/appdraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	responses []*domain.SendResponse
	requests  []domain.SendRequest
	err       error
}

func (s *stubProvider) SendMessage(_ context.Context, req domain.SendRequest) (*domain.SendResponse, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &domain.SendResponse{StopReason: domain.StopEndTurn}, nil
	}
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

type stubExecutor struct {
	calls   []string
	failOn  string
	failErr error
}

func (s *stubExecutor) Definitions() []domain.ToolDefinition {
	return []domain.ToolDefinition{{Name: "update_file", Description: "update a file"}}
}

func (s *stubExecutor) Execute(_ context.Context, name string, _ json.RawMessage) (string, error) {
	s.calls = append(s.calls, name)
	if name == s.failOn {
		return "", s.failErr
	}
	return "ok:" + name, nil
}

func newOrchestrator(t *testing.T, provider domain.Provider) *Orchestrator {
	t.Helper()
	cfg := config.Config{}
	cfg.AI.MaxToolIters = 5
	return New(Params{Cfg: cfg, Log: zap.NewNop(), Provider: provider})
}

func toolUseResponse(id, name string) *domain.SendResponse {
	return &domain.SendResponse{
		Content: []domain.ContentBlock{{
			Type:      domain.BlockToolUse,
			ToolUseID: id,
			ToolName:  name,
			ToolInput: json.RawMessage(`{}`),
		}},
		StopReason: domain.StopToolUse,
		Usage:      domain.Usage{InputTokens: 100, OutputTokens: 50},
	}
}

func textResponse(text string) *domain.SendResponse {
	return &domain.SendResponse{
		Content:    []domain.ContentBlock{domain.TextBlock(text)},
		StopReason: domain.StopEndTurn,
		Usage:      domain.Usage{InputTokens: 200, OutputTokens: 80},
	}
}

func TestRunToolLoopThenReply(t *testing.T) {
	provider := &stubProvider{responses: []*domain.SendResponse{
		toolUseResponse("tu_1", "update_file"),
		textResponse("all done"),
	}}
	executor := &stubExecutor{}
	o := newOrchestrator(t, provider)

	result, err := o.Run(context.Background(), RunRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("edit it")}}},
		Executor: executor,
	})
	require.NoError(t, err)

	assert.Equal(t, "all done", result.Reply)
	assert.Equal(t, []string{"update_file"}, executor.calls)
	assert.Equal(t, 2, result.Iterations)
	assert.False(t, result.StoppedAtCap)
	assert.Equal(t, domain.Usage{InputTokens: 300, OutputTokens: 130}, result.TotalUsage)
	require.Len(t, result.Calls, 2)

	// The tool result travels back to the model on the second call.
	second := provider.requests[1]
	require.Len(t, second.Messages, 3)
	toolResult := second.Messages[2].Content[0]
	assert.Equal(t, domain.BlockToolResult, toolResult.Type)
	assert.Equal(t, "tu_1", toolResult.ForToolUseID)
	assert.Equal(t, "ok:update_file", toolResult.ResultText)
	assert.False(t, toolResult.IsError)
}

func TestRunForcesRetryWhenToolsRequired(t *testing.T) {
	provider := &stubProvider{responses: []*domain.SendResponse{
		textResponse("I think you should change the button color"),
		toolUseResponse("tu_1", "update_file"),
		textResponse("changed it"),
	}}
	executor := &stubExecutor{}
	o := newOrchestrator(t, provider)

	result, err := o.Run(context.Background(), RunRequest{
		Model:        "claude-sonnet-4-5",
		Messages:     []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("edit it")}}},
		Executor:     executor,
		RequireTools: true,
	})
	require.NoError(t, err)

	assert.True(t, result.ForcedRetry)
	assert.Equal(t, "changed it", result.Reply)
	require.Len(t, provider.requests, 3)
	assert.Equal(t, domain.ToolChoiceAuto, provider.requests[0].ToolChoice)
	assert.Equal(t, domain.ToolChoiceAny, provider.requests[1].ToolChoice)
	assert.Equal(t, domain.ToolChoiceAuto, provider.requests[2].ToolChoice)
}

func TestRunFailsAfterSecondEmptyResponse(t *testing.T) {
	provider := &stubProvider{responses: []*domain.SendResponse{
		textResponse("no tools"),
		textResponse("still no tools"),
	}}
	o := newOrchestrator(t, provider)

	_, err := o.Run(context.Background(), RunRequest{
		Model:        "claude-sonnet-4-5",
		Messages:     []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("edit it")}}},
		Executor:     &stubExecutor{},
		RequireTools: true,
	})
	assert.ErrorIs(t, err, domain.ErrNoToolsProduced)
	assert.Len(t, provider.requests, 2)
}

func TestRunStopsAtIterationCap(t *testing.T) {
	provider := &stubProvider{responses: []*domain.SendResponse{
		toolUseResponse("tu_1", "update_file"),
		toolUseResponse("tu_2", "update_file"),
		toolUseResponse("tu_3", "update_file"),
		toolUseResponse("tu_4", "update_file"),
		toolUseResponse("tu_5", "update_file"),
	}}
	executor := &stubExecutor{}
	o := newOrchestrator(t, provider)

	result, err := o.Run(context.Background(), RunRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("edit it")}}},
		Executor: executor,
	})
	require.NoError(t, err)

	assert.True(t, result.StoppedAtCap)
	assert.Equal(t, 5, result.Iterations)
	assert.Len(t, executor.calls, 5)
	assert.Len(t, provider.requests, 5)
}

func TestRunFeedsToolErrorBackToModel(t *testing.T) {
	provider := &stubProvider{responses: []*domain.SendResponse{
		toolUseResponse("tu_1", "update_file"),
		textResponse("recovered"),
	}}
	executor := &stubExecutor{failOn: "update_file", failErr: errors.New("file_not_found")}
	o := newOrchestrator(t, provider)

	result, err := o.Run(context.Background(), RunRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("edit it")}}},
		Executor: executor,
	})
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 1)
	assert.True(t, result.ToolCalls[0].Failed)
	assert.Equal(t, "file_not_found", result.ToolCalls[0].Result)

	toolResult := provider.requests[1].Messages[2].Content[0]
	assert.True(t, toolResult.IsError)
}

func TestRunProviderErrorAbortsRun(t *testing.T) {
	provider := &stubProvider{err: domain.ErrProviderOverload}
	o := newOrchestrator(t, provider)

	_, err := o.Run(context.Background(), RunRequest{
		Model:    "claude-sonnet-4-5",
		Messages: []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{domain.TextBlock("hi")}}},
		Executor: &stubExecutor{},
	})
	assert.ErrorIs(t, err, domain.ErrProviderOverload)
}

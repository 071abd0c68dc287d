// Package domain holds the AI run, tool invocation and usage event records,
// and the coordinator contract.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/appdraft/appdraft/internal/pricing"
	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrEmptyMessage    = errors.New("empty_message")
	ErrInvalidRequest  = errors.New("invalid_run_request")
	ErrVendorFailed    = errors.New("vendor_request_failed")
	ErrRunNotFound     = errors.New("run_not_found")
	ErrNoCreditBalance = errors.New("no_credit_balance")
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusApplied RunStatus = "APPLIED"
	RunStatusFailed  RunStatus = "FAILED"
)

// Run is the audit record of one AI edit request, created before the first
// provider call and updated exactly once with the terminal status.
type Run struct {
	ID               snowflake.ID     `json:"id,string" gorm:"primaryKey"`
	RequestID        string           `json:"request_id" gorm:"uniqueIndex"`
	UserID           snowflake.ID     `json:"user_id,string" gorm:"index"`
	ProjectID        snowflake.ID     `json:"project_id,string" gorm:"index"`
	SessionID        snowflake.ID     `json:"session_id,string"`
	BaseSnapshotID   *snowflake.ID    `json:"base_snapshot_id,string,omitempty" gorm:"index"`
	Status           RunStatus        `json:"status" gorm:"type:text"`
	TaskType         pricing.TaskType `json:"task_type" gorm:"type:text"`
	Model            string           `json:"model"`
	InputTokens      int64            `json:"input_tokens"`
	OutputTokens     int64            `json:"output_tokens"`
	CacheReadTokens  int64            `json:"cache_read_tokens"`
	CacheWriteTokens int64            `json:"cache_write_tokens"`
	ToolCallCount    int              `json:"tool_call_count"`
	PatchFailures    int              `json:"patch_failures"`
	Retries          int              `json:"retries"`
	DurationMs       int64            `json:"duration_ms"`
	Error            *string          `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (Run) TableName() string {
	return "ai_runs"
}

// ToolInvocation records one executed tool call within a run.
type ToolInvocation struct {
	ID         snowflake.ID      `json:"id,string" gorm:"primaryKey"`
	RunID      snowflake.ID      `json:"run_id,string" gorm:"index"`
	Iteration  int               `json:"iteration"`
	Name       string            `json:"name"`
	Args       datatypes.JSONMap `json:"args"`
	Result     string            `json:"result"`
	Success    bool              `json:"success"`
	DurationMs int64             `json:"duration_ms"`
	CreatedAt  time.Time         `json:"created_at"`
}

func (ToolInvocation) TableName() string {
	return "ai_tool_invocations"
}

// UsageEvent is written exactly once per charged run and is the billing
// system's source of truth for vendor cost attribution.
type UsageEvent struct {
	ID             snowflake.ID `json:"id,string" gorm:"primaryKey"`
	RequestID      string       `json:"request_id" gorm:"uniqueIndex"`
	RunID          snowflake.ID `json:"run_id,string" gorm:"index"`
	UserID         snowflake.ID `json:"user_id,string" gorm:"index"`
	OwnerType      string       `json:"owner_type"`
	OwnerID        snowflake.ID `json:"owner_id,string" gorm:"index"`
	Model          string       `json:"model"`
	InputTokens    int64        `json:"input_tokens"`
	OutputTokens   int64        `json:"output_tokens"`
	VendorCostUSD  float64      `json:"vendor_cost_usd"`
	CreditsCharged float64      `json:"credits_charged"`
	CreatedAt      time.Time    `json:"created_at"`
}

func (UsageEvent) TableName() string {
	return "usage_events"
}

// MonthlyUsage is the admin rollup of charged runs for one month and model.
type MonthlyUsage struct {
	Month          string  `json:"month"`
	Model          string  `json:"model"`
	Runs           int64   `json:"runs"`
	InputTokens    int64   `json:"input_tokens"`
	OutputTokens   int64   `json:"output_tokens"`
	VendorCostUSD  float64 `json:"vendor_cost_usd"`
	CreditsCharged float64 `json:"credits_charged"`
}

type RunAIEditRequest struct {
	UserID           snowflake.ID
	ProjectID        snowflake.ID
	SessionID        snowflake.ID
	BaseSnapshotID   snowflake.ID
	Message          string
	SelectedFilePath string
}

type RunAIEditResponse struct {
	RunID            snowflake.ID `json:"run_id,string"`
	SnapshotID       snowflake.ID `json:"snapshot_id,string"`
	AssistantText    string       `json:"assistant_text"`
	AppliedTools     []string     `json:"applied_tools"`
	Model            string       `json:"model"`
	CreditsCharged   float64      `json:"credits_charged"`
	CreditsRemaining float64      `json:"credits_remaining"`
}

type Service interface {
	RunAIEdit(ctx context.Context, req RunAIEditRequest) (*RunAIEditResponse, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	MonthlyUsageReport(ctx context.Context, month string) ([]MonthlyUsage, error)
}

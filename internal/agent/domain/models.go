// Package domain defines the model provider contract and the tool-calling
// conversation types shared by the orchestrator and providers.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNoToolsProduced  = errors.New("model_produced_no_tool_calls")
	ErrProviderOverload = errors.New("provider_overloaded")
	ErrProviderAuth     = errors.New("provider_auth_failed")
	ErrProviderRequest  = errors.New("provider_request_failed")
	ErrUnknownTool      = errors.New("unknown_tool")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one element of a message. Exactly the fields for its type
// are set.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ToolUseID string          `json:"id,omitempty"`
	ToolName  string          `json:"name,omitempty"`
	ToolInput json.RawMessage `json:"input,omitempty"`

	// tool_result
	ForToolUseID string `json:"tool_use_id,omitempty"`
	ResultText   string `json:"content,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

func ToolResultBlock(toolUseID, result string, isError bool) ContentBlock {
	return ContentBlock{
		Type:         BlockToolResult,
		ForToolUseID: toolUseID,
		ResultText:   result,
		IsError:      isError,
	}
}

type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ToolDefinition describes a tool offered to the model. InputSchema is a
// JSON Schema object.
type ToolDefinition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceAny forces the model to call at least one tool.
	ToolChoiceAny ToolChoice = "any"
)

type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
)

// Usage reports token consumption for a single provider call. Cache reads
// and writes are billed separately from plain input tokens.
type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
}

func (u Usage) Add(other Usage) Usage {
	return Usage{
		InputTokens:      u.InputTokens + other.InputTokens,
		OutputTokens:     u.OutputTokens + other.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens + other.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens + other.CacheWriteTokens,
	}
}

type SendRequest struct {
	Model      string
	System     string
	Messages   []Message
	Tools      []ToolDefinition
	ToolChoice ToolChoice
	MaxTokens  int
}

type SendResponse struct {
	Content    []ContentBlock
	StopReason StopReason
	Usage      Usage
}

// TextContent joins the text blocks of the response.
func (r *SendResponse) TextContent() string {
	var out string
	for _, block := range r.Content {
		if block.Type == BlockText {
			if out != "" {
				out += "\n"
			}
			out += block.Text
		}
	}
	return out
}

// ToolUses returns the tool_use blocks of the response in order.
func (r *SendResponse) ToolUses() []ContentBlock {
	var uses []ContentBlock
	for _, block := range r.Content {
		if block.Type == BlockToolUse {
			uses = append(uses, block)
		}
	}
	return uses
}

// Provider is an upstream model API.
type Provider interface {
	SendMessage(ctx context.Context, req SendRequest) (*SendResponse, error)
}

// ToolExecutor applies one tool call against project state and returns the
// textual result fed back to the model.
type ToolExecutor interface {
	Definitions() []ToolDefinition
	Execute(ctx context.Context, name string, input json.RawMessage) (string, error)
}

// ToolCallRecord is the audit record of one executed tool call.
type ToolCallRecord struct {
	Iteration int             `json:"iteration"`
	ToolUseID string          `json:"tool_use_id"`
	Name      string          `json:"name"`
	Input     json.RawMessage `json:"input"`
	Result    string          `json:"result"`
	Failed    bool            `json:"failed"`
	Elapsed   time.Duration   `json:"elapsed_ns"`
}

// ProviderCallUsage is the usage of one provider round trip, attributed to
// the model that served it.
type ProviderCallUsage struct {
	Model string `json:"model"`
	Usage Usage  `json:"usage"`
}

// RunResult is the outcome of a full tool-calling loop.
type RunResult struct {
	Reply        string
	ToolCalls    []ToolCallRecord
	Calls        []ProviderCallUsage
	TotalUsage   Usage
	Iterations   int
	StoppedAtCap bool
	ForcedRetry  bool
}

// Package provider implements the upstream model APIs.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/appdraft/appdraft/internal/agent/domain"
	"github.com/appdraft/appdraft/internal/config"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const anthropicVersion = "2023-06-01"

type anthropicRequest struct {
	Model      string                  `json:"model"`
	MaxTokens  int                     `json:"max_tokens"`
	System     []anthropicSystemBlock  `json:"system,omitempty"`
	Messages   []anthropicMessage      `json:"messages"`
	Tools      []domain.ToolDefinition `json:"tools,omitempty"`
	ToolChoice *anthropicToolChoice    `json:"tool_choice,omitempty"`
}

type anthropicCacheControl struct {
	Type string `json:"type"`
}

// anthropicSystemBlock carries the system prompt as a content block so it can
// be marked for prompt caching.
type anthropicSystemBlock struct {
	Type         string                 `json:"type"`
	Text         string                 `json:"text"`
	CacheControl *anthropicCacheControl `json:"cache_control,omitempty"`
}

type anthropicMessage struct {
	Role    domain.Role           `json:"role"`
	Content []domain.ContentBlock `json:"content"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
}

type anthropicResponse struct {
	Content    []domain.ContentBlock `json:"content"`
	StopReason string                `json:"stop_reason"`
	Usage      struct {
		InputTokens         int64 `json:"input_tokens"`
		OutputTokens        int64 `json:"output_tokens"`
		CacheReadTokens     int64 `json:"cache_read_input_tokens"`
		CacheCreationTokens int64 `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type anthropicProvider struct {
	apiKey  string
	baseURL string
	log     *zap.Logger
	client  *http.Client
	metrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// NewAnthropic creates the Anthropic messages API provider.
func NewAnthropic(p Params) domain.Provider {
	timeout := p.Cfg.AI.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &anthropicProvider{
		apiKey:  strings.TrimSpace(p.Cfg.AI.AnthropicAPIKey),
		baseURL: strings.TrimRight(p.Cfg.AI.AnthropicBaseURL, "/"),
		log:     p.Log.Named("provider.anthropic"),
		client:  &http.Client{Timeout: timeout},
		metrics: p.Metrics,
	}
}

func (p *anthropicProvider) SendMessage(ctx context.Context, req domain.SendRequest) (*domain.SendResponse, error) {
	if p.apiKey == "" {
		return nil, domain.ErrProviderAuth
	}

	body := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		Tools:     req.Tools,
	}
	if req.System != "" {
		// The system prompt repeats across the tool loop; an ephemeral cache
		// marker lets the vendor serve it from cache on later iterations.
		body.System = []anthropicSystemBlock{{
			Type:         "text",
			Text:         req.System,
			CacheControl: &anthropicCacheControl{Type: "ephemeral"},
		}}
	}
	for _, msg := range req.Messages {
		body.Messages = append(body.Messages, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	if req.ToolChoice != "" {
		body.ToolChoice = &anthropicToolChoice{Type: string(req.ToolChoice)}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", p.apiKey)
	httpReq.Header.Set("Anthropic-Version", anthropicVersion)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		p.recordCall(ctx, "transport_error", start)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, p.mapHTTPError(ctx, resp, start)
	}

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		p.recordCall(ctx, "decode_error", start)
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderRequest, err)
	}
	p.recordCall(ctx, "ok", start)

	return &domain.SendResponse{
		Content:    decoded.Content,
		StopReason: domain.StopReason(decoded.StopReason),
		Usage: domain.Usage{
			InputTokens:      decoded.Usage.InputTokens,
			OutputTokens:     decoded.Usage.OutputTokens,
			CacheReadTokens:  decoded.Usage.CacheReadTokens,
			CacheWriteTokens: decoded.Usage.CacheCreationTokens,
		},
	}, nil
}

func (p *anthropicProvider) mapHTTPError(ctx context.Context, resp *http.Response, start time.Time) error {
	var apiErr anthropicErrorResponse
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	message := strings.TrimSpace(apiErr.Error.Message)

	p.log.Warn("anthropic request failed",
		zap.Int("status", resp.StatusCode),
		zap.String("error_type", apiErr.Error.Type),
		zap.String("message", message),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		p.recordCall(ctx, "auth_error", start)
		return domain.ErrProviderAuth
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == 529:
		p.recordCall(ctx, "overloaded", start)
		return domain.ErrProviderOverload
	default:
		p.recordCall(ctx, "api_error", start)
		if message == "" {
			message = resp.Status
		}
		return fmt.Errorf("%w: %s", domain.ErrProviderRequest, message)
	}
}

func (p *anthropicProvider) recordCall(ctx context.Context, outcome string, start time.Time) {
	if p.metrics != nil {
		p.metrics.RecordProviderCall(ctx, "anthropic", outcome, time.Since(start))
	}
}

package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/appdraft/appdraft/internal/agent/domain"
	"github.com/appdraft/appdraft/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) domain.Provider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.Config{}
	cfg.AI.AnthropicAPIKey = "test-key"
	cfg.AI.AnthropicBaseURL = srv.URL
	return NewAnthropic(Params{Cfg: cfg, Log: zap.NewNop()})
}

func TestSendMessageCachesSystemPromptAndReportsCacheUsage(t *testing.T) {
	var captured anthropicRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"content": [{"type": "text", "text": "done"}],
			"stop_reason": "end_turn",
			"usage": {
				"input_tokens": 120,
				"output_tokens": 40,
				"cache_read_input_tokens": 900,
				"cache_creation_input_tokens": 300
			}
		}`))
	})

	resp, err := p.SendMessage(context.Background(), domain.SendRequest{
		Model:  "claude-sonnet-4-5",
		System: "You edit web apps.",
		Messages: []domain.Message{{
			Role:    domain.RoleUser,
			Content: []domain.ContentBlock{{Type: domain.BlockText, Text: "hi"}},
		}},
		MaxTokens: 1024,
	})
	require.NoError(t, err)

	require.Len(t, captured.System, 1)
	assert.Equal(t, "text", captured.System[0].Type)
	assert.Equal(t, "You edit web apps.", captured.System[0].Text)
	require.NotNil(t, captured.System[0].CacheControl)
	assert.Equal(t, "ephemeral", captured.System[0].CacheControl.Type)

	assert.Equal(t, int64(120), resp.Usage.InputTokens)
	assert.Equal(t, int64(40), resp.Usage.OutputTokens)
	assert.Equal(t, int64(900), resp.Usage.CacheReadTokens)
	assert.Equal(t, int64(300), resp.Usage.CacheWriteTokens)
}

func TestSendMessageOmitsSystemBlockWhenEmpty(t *testing.T) {
	var captured anthropicRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content": [], "stop_reason": "end_turn", "usage": {"input_tokens": 1, "output_tokens": 1}}`))
	})

	_, err := p.SendMessage(context.Background(), domain.SendRequest{
		Model: "claude-3-5-haiku-20241022",
		Messages: []domain.Message{{
			Role:    domain.RoleUser,
			Content: []domain.ContentBlock{{Type: domain.BlockText, Text: "hi"}},
		}},
		MaxTokens: 256,
	})
	require.NoError(t, err)
	assert.Empty(t, captured.System)
}

func TestSendMessageMapsErrorStatuses(t *testing.T) {
	status := http.StatusTooManyRequests
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error": {"type": "overloaded_error", "message": "slow down"}}`))
	})

	send := func() error {
		_, err := p.SendMessage(context.Background(), domain.SendRequest{
			Model:     "claude-sonnet-4-5",
			Messages:  []domain.Message{{Role: domain.RoleUser, Content: []domain.ContentBlock{{Type: domain.BlockText, Text: "hi"}}}},
			MaxTokens: 256,
		})
		return err
	}

	assert.ErrorIs(t, send(), domain.ErrProviderOverload)

	status = http.StatusUnauthorized
	assert.ErrorIs(t, send(), domain.ErrProviderAuth)

	status = http.StatusInternalServerError
	assert.ErrorIs(t, send(), domain.ErrProviderRequest)
}

package ratelimit

import (
	"context"
	"errors"

	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var ErrRateLimited = errors.New("rate_limited")

// AIRunLimiter throttles AI run requests per user. A nil or disabled limiter
// allows everything.
type AIRunLimiter interface {
	Allow(ctx context.Context, userID snowflake.ID) error
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, snowflake.ID) error { return nil }

// NewNoopAIRunLimiter allows every request.
func NewNoopAIRunLimiter() AIRunLimiter {
	return noopLimiter{}
}

type bucketLimiter struct {
	bucket  *TokenBucket
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	rate    float64
	burst   int
}

// NewAIRunLimiter wraps the token bucket with per-user keys.
func NewAIRunLimiter(bucket *TokenBucket, log *zap.Logger, metrics *obsmetrics.Metrics, rate float64, burst int) AIRunLimiter {
	if bucket == nil || rate <= 0 || burst <= 0 {
		return noopLimiter{}
	}
	return &bucketLimiter{
		bucket:  bucket,
		log:     log.Named("ratelimit.airun"),
		metrics: metrics,
		rate:    rate,
		burst:   burst,
	}
}

func (l *bucketLimiter) Allow(ctx context.Context, userID snowflake.ID) error {
	result, err := l.bucket.Allow(ctx, "airun:user:"+userID.String(), l.rate, l.burst)
	if err != nil {
		// Fail open. Losing redis must not take AI runs down with it.
		l.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return nil
	}
	if !result.Allowed {
		if l.metrics != nil {
			l.metrics.RecordRateLimitDenied(ctx, "ai_run")
		}
		return ErrRateLimited
	}
	if l.metrics != nil {
		l.metrics.RecordRateLimitAllowed(ctx, "ai_run")
	}
	return nil
}

package ratelimit

import (
	"context"

	"github.com/appdraft/appdraft/internal/config"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	Log     *zap.Logger
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func provideLimiter(p Params) AIRunLimiter {
	rl := p.Cfg.RateLimit
	if !rl.Enabled || rl.RedisAddr == "" {
		p.Log.Info("ai run rate limiter disabled")
		return NewNoopAIRunLimiter()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     rl.RedisAddr,
		Password: rl.RedisPassword,
		DB:       rl.RedisDB,
	})
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	p.Log.Info("ai run rate limiter enabled",
		zap.String("redis_addr", rl.RedisAddr),
		zap.Float64("rate", rl.AIRunRate),
		zap.Int("burst", rl.AIRunBurst),
	)
	return NewAIRunLimiter(NewTokenBucket(client), p.Log, p.Metrics, rl.AIRunRate, rl.AIRunBurst)
}

var Module = fx.Module("ratelimit",
	fx.Provide(provideLimiter),
)

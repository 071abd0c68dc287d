package agent

import (
	"github.com/appdraft/appdraft/internal/agent/orchestrator"
	"github.com/appdraft/appdraft/internal/agent/provider"
	"go.uber.org/fx"
)

var Module = fx.Module("agent",
	fx.Provide(provider.NewAnthropic),
	fx.Provide(orchestrator.New),
)

package airun

import (
	"github.com/appdraft/appdraft/internal/agent/orchestrator"
	"github.com/appdraft/appdraft/internal/airun/repository"
	"github.com/appdraft/appdraft/internal/airun/service"
	"go.uber.org/fx"
)

var Module = fx.Module("airun.service",
	fx.Provide(repository.Provide),
	fx.Provide(func(o *orchestrator.Orchestrator) service.RunDriver { return o }),
	fx.Provide(service.NewService),
)

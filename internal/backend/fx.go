package backend

import (
	"github.com/appdraft/appdraft/internal/backend/repository"
	"github.com/appdraft/appdraft/internal/backend/service"
	"go.uber.org/fx"
)

var Module = fx.Module("backend.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

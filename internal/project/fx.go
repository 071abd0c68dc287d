package project

import (
	"github.com/appdraft/appdraft/internal/project/repository"
	"github.com/appdraft/appdraft/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

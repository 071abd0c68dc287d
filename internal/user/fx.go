package user

import (
	"github.com/appdraft/appdraft/internal/user/repository"
	"github.com/appdraft/appdraft/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

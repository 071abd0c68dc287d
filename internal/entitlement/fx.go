package entitlement

import (
	"github.com/appdraft/appdraft/internal/entitlement/repository"
	"github.com/appdraft/appdraft/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

package ledger

import (
	"github.com/appdraft/appdraft/internal/ledger/repository"
	"github.com/appdraft/appdraft/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

package main

import (
	"github.com/appdraft/appdraft/internal/agent"
	"github.com/appdraft/appdraft/internal/airun"
	"github.com/appdraft/appdraft/internal/backend"
	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/config"
	"github.com/appdraft/appdraft/internal/entitlement"
	"github.com/appdraft/appdraft/internal/ledger"
	"github.com/appdraft/appdraft/internal/logger"
	"github.com/appdraft/appdraft/internal/migration"
	"github.com/appdraft/appdraft/internal/observability"
	"github.com/appdraft/appdraft/internal/pricing"
	"github.com/appdraft/appdraft/internal/project"
	"github.com/appdraft/appdraft/internal/ratelimit"
	"github.com/appdraft/appdraft/internal/scheduler"
	"github.com/appdraft/appdraft/internal/server"
	"github.com/appdraft/appdraft/internal/user"
	"github.com/appdraft/appdraft/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		ratelimit.Module,

		// Functional domains
		user.Module,
		entitlement.Module,
		ledger.Module,
		project.Module,
		backend.Module,
		pricing.Module,
		agent.Module,
		airun.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

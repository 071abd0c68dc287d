package migration

import (
	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	backenddomain "github.com/appdraft/appdraft/internal/backend/domain"
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	userdomain "github.com/appdraft/appdraft/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql deployments are dev conveniences; schema comes
		// straight from the models there.
		return conn.AutoMigrate(
			&userdomain.User{},
			&ledgerdomain.CreditEntry{},
			&entitlementdomain.SubscriptionState{},
			&entitlementdomain.Team{},
			&entitlementdomain.TeamMember{},
			&entitlementdomain.ManagedBackend{},
			&backenddomain.BackendMigration{},
			&projectdomain.Project{},
			&projectdomain.ProjectFile{},
			&projectdomain.Snapshot{},
			&projectdomain.SnapshotFile{},
			&projectdomain.ChatSession{},
			&projectdomain.ChatMessage{},
			&airundomain.Run{},
			&airundomain.ToolInvocation{},
			&airundomain.UsageEvent{},
		)
	}),
)

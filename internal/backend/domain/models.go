// Package domain models managed backend schema migrations. Backends
// themselves are provisioned against the owner quota tracked by the
// entitlement package.
package domain

import (
	"context"
	"errors"
	"time"

	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var (
	ErrBackendNotFound         = errors.New("backend_not_found")
	ErrMigrationNotFound       = errors.New("migration_not_found")
	ErrMigrationAlreadyApplied = errors.New("migration_already_applied")
	ErrEmptyMigration          = errors.New("empty_migration")
)

type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "PENDING"
	MigrationStatusApplied MigrationStatus = "APPLIED"
)

// BackendMigration is one schema change authored by the agent against a
// project's managed backend. SQL is stored verbatim; execution marks the row
// applied.
type BackendMigration struct {
	ID        snowflake.ID    `json:"id,string" gorm:"primaryKey"`
	BackendID snowflake.ID    `json:"backend_id,string" gorm:"index"`
	ProjectID snowflake.ID    `json:"project_id,string" gorm:"index"`
	Name      string          `json:"name"`
	SQL       string          `json:"sql" gorm:"column:sql"`
	Status    MigrationStatus `json:"status" gorm:"type:text"`
	CreatedAt time.Time       `json:"created_at"`
	AppliedAt *time.Time      `json:"applied_at,omitempty"`
}

func (BackendMigration) TableName() string {
	return "backend_migrations"
}

type Repository interface {
	FindBackendByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*entitlementdomain.ManagedBackend, error)
	CreateBackend(ctx context.Context, db *gorm.DB, backend *entitlementdomain.ManagedBackend) error
	UpdateBackend(ctx context.Context, db *gorm.DB, backend *entitlementdomain.ManagedBackend) error
	CreateMigration(ctx context.Context, db *gorm.DB, migration *BackendMigration) error
	ListMigrations(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]BackendMigration, error)
	FindMigration(ctx context.Context, db *gorm.DB, projectID snowflake.ID, name string) (*BackendMigration, error)
	UpdateMigration(ctx context.Context, db *gorm.DB, migration *BackendMigration) error
}

type Service interface {
	// RequireConnection returns the project's backend, provisioning one within
	// the owner's quota when none exists.
	RequireConnection(ctx context.Context, ownerType entitlementdomain.SubscriptionOwnerType, ownerID, projectID snowflake.ID) (*entitlementdomain.ManagedBackend, error)
	CreateMigration(ctx context.Context, projectID snowflake.ID, name, sql string) (*BackendMigration, error)
	ListMigrations(ctx context.Context, projectID snowflake.ID) ([]BackendMigration, error)
	ExecuteMigration(ctx context.Context, projectID snowflake.ID, name string) (*BackendMigration, error)
}

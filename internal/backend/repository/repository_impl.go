package repository

import (
	"context"
	"errors"

	"github.com/appdraft/appdraft/internal/backend/domain"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type repo struct{}

// Provide creates the backend repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBackendByProject(ctx context.Context, db *gorm.DB, projectID snowflake.ID) (*entitlementdomain.ManagedBackend, error) {
	var backend entitlementdomain.ManagedBackend
	err := db.WithContext(ctx).
		Where("project_id = ? AND status <> ?", projectID, entitlementdomain.BackendStatusDisabled).
		First(&backend).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrBackendNotFound
	}
	if err != nil {
		return nil, err
	}
	return &backend, nil
}

func (r *repo) CreateBackend(ctx context.Context, db *gorm.DB, backend *entitlementdomain.ManagedBackend) error {
	return db.WithContext(ctx).Create(backend).Error
}

func (r *repo) UpdateBackend(ctx context.Context, db *gorm.DB, backend *entitlementdomain.ManagedBackend) error {
	return db.WithContext(ctx).Save(backend).Error
}

func (r *repo) CreateMigration(ctx context.Context, db *gorm.DB, migration *domain.BackendMigration) error {
	return db.WithContext(ctx).Create(migration).Error
}

func (r *repo) ListMigrations(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.BackendMigration, error) {
	var migrations []domain.BackendMigration
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at ASC").
		Find(&migrations).Error
	return migrations, err
}

func (r *repo) FindMigration(ctx context.Context, db *gorm.DB, projectID snowflake.ID, name string) (*domain.BackendMigration, error) {
	var migration domain.BackendMigration
	err := db.WithContext(ctx).
		Where("project_id = ? AND name = ?", projectID, name).
		First(&migration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMigrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &migration, nil
}

func (r *repo) UpdateMigration(ctx context.Context, db *gorm.DB, migration *domain.BackendMigration) error {
	return db.WithContext(ctx).Save(migration).Error
}

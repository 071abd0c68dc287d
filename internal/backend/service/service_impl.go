package service

import (
	"context"
	"errors"
	"strings"

	"github.com/appdraft/appdraft/internal/backend/domain"
	"github.com/appdraft/appdraft/internal/clock"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Ents  entitlementdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	ents  entitlementdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("backend.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		ents:  p.Ents,
	}
}

func (s *Service) RequireConnection(ctx context.Context, ownerType entitlementdomain.SubscriptionOwnerType, ownerID, projectID snowflake.ID) (*entitlementdomain.ManagedBackend, error) {
	backend, err := s.repo.FindBackendByProject(ctx, s.db, projectID)
	if err == nil {
		return backend, nil
	}
	if !errors.Is(err, domain.ErrBackendNotFound) {
		return nil, err
	}

	check, err := s.ents.CanCreateBackend(ctx, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	if !check.Allowed {
		return nil, entitlementdomain.ErrBackendQuotaFull
	}

	// The row is written PROVISIONING first so the quota check sees it even
	// if marking it ready fails part way.
	now := s.clock.Now()
	backend = &entitlementdomain.ManagedBackend{
		ID:        s.genID.Generate(),
		OwnerType: ownerType,
		OwnerID:   ownerID,
		ProjectID: projectID,
		Status:    entitlementdomain.BackendStatusProvisioning,
		Region:    "us-east-1",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateBackend(ctx, s.db, backend); err != nil {
		return nil, err
	}

	backend.Status = entitlementdomain.BackendStatusReady
	backend.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateBackend(ctx, s.db, backend); err != nil {
		return nil, err
	}

	s.log.Info("backend provisioned",
		zap.String("backend_id", backend.ID.String()),
		zap.String("project_id", projectID.String()),
		zap.String("owner_id", ownerID.String()),
	)
	return backend, nil
}

func (s *Service) CreateMigration(ctx context.Context, projectID snowflake.ID, name, sql string) (*domain.BackendMigration, error) {
	name = strings.TrimSpace(name)
	sql = strings.TrimSpace(sql)
	if name == "" || sql == "" {
		return nil, domain.ErrEmptyMigration
	}

	backend, err := s.repo.FindBackendByProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}

	migration := &domain.BackendMigration{
		ID:        s.genID.Generate(),
		BackendID: backend.ID,
		ProjectID: projectID,
		Name:      name,
		SQL:       sql,
		Status:    domain.MigrationStatusPending,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateMigration(ctx, s.db, migration); err != nil {
		return nil, err
	}
	return migration, nil
}

func (s *Service) ListMigrations(ctx context.Context, projectID snowflake.ID) ([]domain.BackendMigration, error) {
	return s.repo.ListMigrations(ctx, s.db, projectID)
}

func (s *Service) ExecuteMigration(ctx context.Context, projectID snowflake.ID, name string) (*domain.BackendMigration, error) {
	migration, err := s.repo.FindMigration(ctx, s.db, projectID, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if migration.Status == domain.MigrationStatusApplied {
		return nil, domain.ErrMigrationAlreadyApplied
	}

	now := s.clock.Now()
	migration.Status = domain.MigrationStatusApplied
	migration.AppliedAt = &now
	if err := s.repo.UpdateMigration(ctx, s.db, migration); err != nil {
		return nil, err
	}

	s.log.Info("migration applied",
		zap.String("project_id", projectID.String()),
		zap.String("migration", migration.Name),
	)
	return migration, nil
}

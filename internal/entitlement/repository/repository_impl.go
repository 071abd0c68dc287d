package repository

import (
	"context"
	"errors"

	"github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindActiveSubscription(ctx context.Context, db *gorm.DB, ownerType domain.SubscriptionOwnerType, ownerID snowflake.ID) (*domain.SubscriptionState, error) {
	var state domain.SubscriptionState
	err := db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ? AND status = ?", ownerType, ownerID, domain.SubscriptionStatusActive).
		First(&state).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *repo) UpsertSubscription(ctx context.Context, db *gorm.DB, state *domain.SubscriptionState) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tier", "status", "period_start", "period_end", "updated_at",
			}),
		}).
		Create(state).Error
}

func (r *repo) FindPrimaryTeamMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.TeamMember, error) {
	var member domain.TeamMember
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at asc, id asc").
		First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repo) FindTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*domain.Team, error) {
	var team domain.Team
	err := db.WithContext(ctx).Where("id = ?", teamID).First(&team).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

func (r *repo) CountActiveBackends(ctx context.Context, db *gorm.DB, ownerType domain.SubscriptionOwnerType, ownerID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.ManagedBackend{}).
		Where("owner_type = ? AND owner_id = ? AND status IN ?", ownerType, ownerID,
			[]domain.BackendStatus{domain.BackendStatusProvisioning, domain.BackendStatusReady}).
		Count(&count).Error
	return count, err
}

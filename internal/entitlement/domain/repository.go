package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindActiveSubscription(ctx context.Context, db *gorm.DB, ownerType SubscriptionOwnerType, ownerID snowflake.ID) (*SubscriptionState, error)
	UpsertSubscription(ctx context.Context, db *gorm.DB, state *SubscriptionState) error
	// FindPrimaryTeamMembership returns the user's earliest-joined membership,
	// or nil when the user belongs to no team.
	FindPrimaryTeamMembership(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*TeamMember, error)
	FindTeam(ctx context.Context, db *gorm.DB, teamID snowflake.ID) (*Team, error)
	// CountActiveBackends counts PROVISIONING and READY backends for the owner.
	CountActiveBackends(ctx context.Context, db *gorm.DB, ownerType SubscriptionOwnerType, ownerID snowflake.ID) (int64, error)
}

// Package domain contains plan tiers, subscription state and team models.
package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PlanTier is the purchasable level of the product.
type PlanTier string

const (
	TierFree PlanTier = "FREE"
	TierPro  PlanTier = "PRO"
	TierTeam PlanTier = "TEAM"
)

func (t PlanTier) Valid() bool {
	switch t {
	case TierFree, TierPro, TierTeam:
		return true
	default:
		return false
	}
}

// SubscriptionOwnerType mirrors the billing owner classes a subscription can
// be attached to.
type SubscriptionOwnerType string

const (
	SubscriptionOwnerUser SubscriptionOwnerType = "INDIVIDUAL"
	SubscriptionOwnerTeam SubscriptionOwnerType = "TEAM"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "ACTIVE"
	SubscriptionStatusCanceled SubscriptionStatus = "CANCELED"
	SubscriptionStatusPastDue  SubscriptionStatus = "PAST_DUE"
)

// SubscriptionState is the single record per (owner type, owner id) describing
// the owner's purchased plan. Upserted by admin actions or self-serve upgrades.
type SubscriptionState struct {
	ID          snowflake.ID          `gorm:"primaryKey"`
	OwnerType   SubscriptionOwnerType `gorm:"type:text;not null;uniqueIndex:ux_subscription_owner,priority:1"`
	OwnerID     snowflake.ID          `gorm:"not null;uniqueIndex:ux_subscription_owner,priority:2"`
	Tier        PlanTier              `gorm:"type:text;not null"`
	Status      SubscriptionStatus    `gorm:"type:text;not null"`
	PeriodStart time.Time             `gorm:"not null"`
	PeriodEnd   time.Time             `gorm:"not null"`
	CreatedAt   time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (SubscriptionState) TableName() string { return "subscription_states" }

// Team is a pooled billing entity.
type Team struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null"`
	SeatCount int          `gorm:"not null;default:1"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Team) TableName() string { return "teams" }

// TeamMember links a user to a team. The earliest-joined membership is the
// user's primary team for entitlement resolution.
type TeamMember struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TeamID   snowflake.ID `gorm:"not null;index"`
	UserID   snowflake.ID `gorm:"not null;index"`
	JoinedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TeamMember) TableName() string { return "team_members" }

// EffectivePlan is the resolved (tier, owner) pair governing one request.
type EffectivePlan struct {
	Tier      PlanTier
	OwnerType SubscriptionOwnerType
	OwnerID   snowflake.ID
	TeamID    *snowflake.ID
}

// PlanLimits is static configuration keyed by tier; computed, never persisted.
type PlanLimits struct {
	MaxInputTokens  int  `json:"max_input_tokens"`
	MaxOutputTokens int  `json:"max_output_tokens"`
	MaxContextFiles int  `json:"max_context_files"`
	MaxAIRunsPerDay int  `json:"max_ai_runs_per_day"`
	BackendAllowed  bool `json:"backend_allowed"`
	BackendQuota    int  `json:"backend_quota"`
}

// BackendStatus tracks a managed backend's provisioning lifecycle.
type BackendStatus string

const (
	BackendStatusProvisioning BackendStatus = "PROVISIONING"
	BackendStatusReady        BackendStatus = "READY"
	BackendStatusDisabled     BackendStatus = "DISABLED"
)

// ManagedBackend is one provisioned Postgres backend, counted against the
// owner's plan quota.
type ManagedBackend struct {
	ID        snowflake.ID          `gorm:"primaryKey"`
	OwnerType SubscriptionOwnerType `gorm:"type:text;not null;index:idx_managed_backends_owner,priority:1"`
	OwnerID   snowflake.ID          `gorm:"not null;index:idx_managed_backends_owner,priority:2"`
	ProjectID snowflake.ID          `gorm:"not null;index"`
	Status    BackendStatus         `gorm:"type:text;not null"`
	Region    string                `gorm:"type:text"`
	CreatedAt time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time             `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ManagedBackend) TableName() string { return "managed_backends" }

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidTier      = errors.New("invalid_tier")
	ErrInvalidOwner     = errors.New("invalid_owner")
	ErrTeamNotFound     = errors.New("team_not_found")
	ErrBackendQuotaFull = errors.New("backend_quota_exceeded")
)

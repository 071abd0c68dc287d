package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type SetPlanRequest struct {
	OwnerType SubscriptionOwnerType `json:"owner_type"`
	OwnerID   string                `json:"owner_id"`
	Tier      PlanTier              `json:"tier"`
	Status    SubscriptionStatus    `json:"status"`
}

type Service interface {
	// EffectivePlanForUser resolves the plan billing this user's requests.
	// Resolution order: primary team with an ACTIVE TEAM subscription, then the
	// user's own ACTIVE PRO subscription, then FREE. A user can sit in a team
	// that never purchased TEAM tier; resolution falls through rather than
	// inheriting team status.
	EffectivePlanForUser(ctx context.Context, userID snowflake.ID) (EffectivePlan, error)

	// PlanLimits is a pure lookup with no I/O.
	PlanLimits(tier PlanTier) PlanLimits

	TeamSeatCount(ctx context.Context, teamID snowflake.ID) (int, error)

	SetPlan(ctx context.Context, req SetPlanRequest) (*SubscriptionState, error)

	// CanCreateBackend checks the provisioned-backend quota for the owner.
	CanCreateBackend(ctx context.Context, ownerType SubscriptionOwnerType, ownerID snowflake.ID) (BackendQuotaCheck, error)
}

type BackendQuotaCheck struct {
	Allowed      bool   `json:"allowed"`
	Reason       string `json:"reason,omitempty"`
	CurrentCount int    `json:"current_count"`
	Quota        int    `json:"quota"`
}

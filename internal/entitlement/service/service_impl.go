package service

import (
	"context"
	"fmt"

	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var planLimits = map[domain.PlanTier]domain.PlanLimits{
	domain.TierFree: {
		MaxInputTokens:  50000,
		MaxOutputTokens: 4096,
		MaxContextFiles: 10,
		MaxAIRunsPerDay: 20,
		BackendAllowed:  true,
		BackendQuota:    1,
	},
	domain.TierPro: {
		MaxInputTokens:  200000,
		MaxOutputTokens: 8192,
		MaxContextFiles: 50,
		MaxAIRunsPerDay: 200,
		BackendAllowed:  true,
		BackendQuota:    1,
	},
	domain.TierTeam: {
		MaxInputTokens:  500000,
		MaxOutputTokens: 16384,
		MaxContextFiles: 100,
		MaxAIRunsPerDay: 500,
		BackendAllowed:  true,
		BackendQuota:    3,
	},
}

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("entitlement.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) EffectivePlanForUser(ctx context.Context, userID snowflake.ID) (domain.EffectivePlan, error) {
	if userID == 0 {
		return domain.EffectivePlan{}, domain.ErrInvalidUser
	}

	membership, err := s.repo.FindPrimaryTeamMembership(ctx, s.db, userID)
	if err != nil {
		return domain.EffectivePlan{}, err
	}
	if membership != nil {
		teamSub, err := s.repo.FindActiveSubscription(ctx, s.db, domain.SubscriptionOwnerTeam, membership.TeamID)
		if err != nil {
			return domain.EffectivePlan{}, err
		}
		// Team membership alone is not enough; the team must actually hold an
		// active TEAM subscription (trial memberships fall through).
		if teamSub != nil && teamSub.Tier == domain.TierTeam {
			teamID := membership.TeamID
			return domain.EffectivePlan{
				Tier:      domain.TierTeam,
				OwnerType: domain.SubscriptionOwnerTeam,
				OwnerID:   membership.TeamID,
				TeamID:    &teamID,
			}, nil
		}
	}

	userSub, err := s.repo.FindActiveSubscription(ctx, s.db, domain.SubscriptionOwnerUser, userID)
	if err != nil {
		return domain.EffectivePlan{}, err
	}
	if userSub != nil && userSub.Tier == domain.TierPro {
		return domain.EffectivePlan{
			Tier:      domain.TierPro,
			OwnerType: domain.SubscriptionOwnerUser,
			OwnerID:   userID,
		}, nil
	}

	return domain.EffectivePlan{
		Tier:      domain.TierFree,
		OwnerType: domain.SubscriptionOwnerUser,
		OwnerID:   userID,
	}, nil
}

func (s *Service) PlanLimits(tier domain.PlanTier) domain.PlanLimits {
	limits, ok := planLimits[tier]
	if !ok {
		return planLimits[domain.TierFree]
	}
	return limits
}

func (s *Service) TeamSeatCount(ctx context.Context, teamID snowflake.ID) (int, error) {
	team, err := s.repo.FindTeam(ctx, s.db, teamID)
	if err != nil {
		return 0, err
	}
	if team == nil {
		return 0, domain.ErrTeamNotFound
	}
	if team.SeatCount < 1 {
		return 1, nil
	}
	return team.SeatCount, nil
}

func (s *Service) SetPlan(ctx context.Context, req domain.SetPlanRequest) (*domain.SubscriptionState, error) {
	ownerID, err := snowflake.ParseString(req.OwnerID)
	if err != nil || ownerID == 0 {
		return nil, domain.ErrInvalidOwner
	}
	if !req.Tier.Valid() {
		return nil, domain.ErrInvalidTier
	}
	status := req.Status
	if status == "" {
		status = domain.SubscriptionStatusActive
	}

	now := s.clock.Now()
	state := &domain.SubscriptionState{
		ID:          s.genID.Generate(),
		OwnerType:   req.OwnerType,
		OwnerID:     ownerID,
		Tier:        req.Tier,
		Status:      status,
		PeriodStart: now,
		PeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.UpsertSubscription(ctx, s.db, state); err != nil {
		return nil, err
	}

	s.log.Info("plan updated",
		zap.String("owner_type", string(req.OwnerType)),
		zap.String("owner_id", ownerID.String()),
		zap.String("tier", string(req.Tier)),
	)
	return state, nil
}

func (s *Service) CanCreateBackend(ctx context.Context, ownerType domain.SubscriptionOwnerType, ownerID snowflake.ID) (domain.BackendQuotaCheck, error) {
	plan, err := s.effectivePlanForOwner(ctx, ownerType, ownerID)
	if err != nil {
		return domain.BackendQuotaCheck{}, err
	}
	limits := s.PlanLimits(plan.Tier)

	if !limits.BackendAllowed {
		return domain.BackendQuotaCheck{
			Allowed: false,
			Reason:  "backend creation not allowed for this plan",
		}, nil
	}

	count, err := s.repo.CountActiveBackends(ctx, s.db, ownerType, ownerID)
	if err != nil {
		return domain.BackendQuotaCheck{}, err
	}
	if int(count) >= limits.BackendQuota {
		return domain.BackendQuotaCheck{
			Allowed:      false,
			Reason:       fmt.Sprintf("backend quota exceeded, limit %d", limits.BackendQuota),
			CurrentCount: int(count),
			Quota:        limits.BackendQuota,
		}, nil
	}
	return domain.BackendQuotaCheck{
		Allowed:      true,
		CurrentCount: int(count),
		Quota:        limits.BackendQuota,
	}, nil
}

func (s *Service) effectivePlanForOwner(ctx context.Context, ownerType domain.SubscriptionOwnerType, ownerID snowflake.ID) (domain.EffectivePlan, error) {
	sub, err := s.repo.FindActiveSubscription(ctx, s.db, ownerType, ownerID)
	if err != nil {
		return domain.EffectivePlan{}, err
	}
	if sub != nil {
		return domain.EffectivePlan{Tier: sub.Tier, OwnerType: ownerType, OwnerID: ownerID}, nil
	}
	return domain.EffectivePlan{Tier: domain.TierFree, OwnerType: ownerType, OwnerID: ownerID}, nil
}

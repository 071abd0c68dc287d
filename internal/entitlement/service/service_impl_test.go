package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/appdraft/appdraft/internal/entitlement/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newEntitlementFixture(t *testing.T) (domain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.SubscriptionState{},
		&domain.Team{},
		&domain.TeamMember{},
		&domain.ManagedBackend{},
	))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: fake, Repo: repository.Provide(),
	})
	return svc, db, fake
}

func addTeam(t *testing.T, db *gorm.DB, fake *clock.FakeClock, id snowflake.ID, seats int) {
	t.Helper()
	require.NoError(t, db.Create(&domain.Team{
		ID: id, Name: fmt.Sprintf("team-%d", id), SeatCount: seats, CreatedAt: fake.Now(),
	}).Error)
}

func addMember(t *testing.T, db *gorm.DB, id, teamID, userID snowflake.ID, joined time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&domain.TeamMember{
		ID: id, TeamID: teamID, UserID: userID, JoinedAt: joined,
	}).Error)
}

func setTier(t *testing.T, svc domain.Service, ownerType domain.SubscriptionOwnerType, ownerID snowflake.ID, tier domain.PlanTier) {
	t.Helper()
	_, err := svc.SetPlan(context.Background(), domain.SetPlanRequest{
		OwnerType: ownerType,
		OwnerID:   ownerID.String(),
		Tier:      tier,
	})
	require.NoError(t, err)
}

func TestEffectivePlanDefaultsToFree(t *testing.T) {
	svc, _, _ := newEntitlementFixture(t)

	plan, err := svc.EffectivePlanForUser(context.Background(), snowflake.ID(10))
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, plan.Tier)
	assert.Equal(t, domain.SubscriptionOwnerUser, plan.OwnerType)
	assert.Equal(t, snowflake.ID(10), plan.OwnerID)
	assert.Nil(t, plan.TeamID)
}

func TestEffectivePlanPrefersTeamOverPro(t *testing.T) {
	svc, db, fake := newEntitlementFixture(t)
	ctx := context.Background()
	userID := snowflake.ID(11)
	teamID := snowflake.ID(500)

	addTeam(t, db, fake, teamID, 3)
	addMember(t, db, snowflake.ID(1), teamID, userID, fake.Now())
	setTier(t, svc, domain.SubscriptionOwnerTeam, teamID, domain.TierTeam)
	setTier(t, svc, domain.SubscriptionOwnerUser, userID, domain.TierPro)

	plan, err := svc.EffectivePlanForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierTeam, plan.Tier)
	assert.Equal(t, domain.SubscriptionOwnerTeam, plan.OwnerType)
	assert.Equal(t, teamID, plan.OwnerID)
	require.NotNil(t, plan.TeamID)
	assert.Equal(t, teamID, *plan.TeamID)
}

func TestEffectivePlanTeamWithoutSubscriptionFallsThrough(t *testing.T) {
	svc, db, fake := newEntitlementFixture(t)
	ctx := context.Background()
	userID := snowflake.ID(12)
	teamID := snowflake.ID(501)

	// Membership in a team that never bought a TEAM plan does not grant TEAM.
	addTeam(t, db, fake, teamID, 2)
	addMember(t, db, snowflake.ID(2), teamID, userID, fake.Now())

	plan, err := svc.EffectivePlanForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, plan.Tier)

	setTier(t, svc, domain.SubscriptionOwnerUser, userID, domain.TierPro)
	plan, err = svc.EffectivePlanForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, plan.Tier)
	assert.Equal(t, userID, plan.OwnerID)
}

func TestEffectivePlanUsesEarliestMembership(t *testing.T) {
	svc, db, fake := newEntitlementFixture(t)
	ctx := context.Background()
	userID := snowflake.ID(13)
	first := snowflake.ID(502)
	second := snowflake.ID(503)

	addTeam(t, db, fake, first, 2)
	addTeam(t, db, fake, second, 2)
	addMember(t, db, snowflake.ID(3), first, userID, fake.Now())
	addMember(t, db, snowflake.ID(4), second, userID, fake.Now().Add(time.Hour))
	setTier(t, svc, domain.SubscriptionOwnerTeam, first, domain.TierTeam)
	setTier(t, svc, domain.SubscriptionOwnerTeam, second, domain.TierTeam)

	plan, err := svc.EffectivePlanForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first, plan.OwnerID)
}

func TestCanceledSubscriptionIsIgnored(t *testing.T) {
	svc, _, _ := newEntitlementFixture(t)
	ctx := context.Background()
	userID := snowflake.ID(14)

	_, err := svc.SetPlan(ctx, domain.SetPlanRequest{
		OwnerType: domain.SubscriptionOwnerUser,
		OwnerID:   userID.String(),
		Tier:      domain.TierPro,
		Status:    domain.SubscriptionStatusCanceled,
	})
	require.NoError(t, err)

	plan, err := svc.EffectivePlanForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, domain.TierFree, plan.Tier)
}

func TestSetPlanValidation(t *testing.T) {
	svc, _, _ := newEntitlementFixture(t)
	ctx := context.Background()

	_, err := svc.SetPlan(ctx, domain.SetPlanRequest{
		OwnerType: domain.SubscriptionOwnerUser, OwnerID: "not-a-number", Tier: domain.TierPro,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOwner)

	_, err = svc.SetPlan(ctx, domain.SetPlanRequest{
		OwnerType: domain.SubscriptionOwnerUser, OwnerID: "15", Tier: domain.PlanTier("PLATINUM"),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidTier)
}

func TestPlanLimitsPerTier(t *testing.T) {
	svc, _, _ := newEntitlementFixture(t)

	free := svc.PlanLimits(domain.TierFree)
	assert.Equal(t, 50000, free.MaxInputTokens)
	assert.Equal(t, 4096, free.MaxOutputTokens)
	assert.Equal(t, 10, free.MaxContextFiles)
	assert.True(t, free.BackendAllowed)
	assert.Equal(t, 1, free.BackendQuota)

	pro := svc.PlanLimits(domain.TierPro)
	assert.Equal(t, 200000, pro.MaxInputTokens)
	assert.Equal(t, 8192, pro.MaxOutputTokens)

	team := svc.PlanLimits(domain.TierTeam)
	assert.Equal(t, 500000, team.MaxInputTokens)
	assert.Equal(t, 3, team.BackendQuota)

	// Unknown tiers collapse to FREE limits.
	assert.Equal(t, free, svc.PlanLimits(domain.PlanTier("PLATINUM")))
}

func TestTeamSeatCount(t *testing.T) {
	svc, db, fake := newEntitlementFixture(t)
	ctx := context.Background()

	addTeam(t, db, fake, snowflake.ID(600), 4)
	seats, err := svc.TeamSeatCount(ctx, snowflake.ID(600))
	require.NoError(t, err)
	assert.Equal(t, 4, seats)

	// Zero seats in the row still bills one.
	require.NoError(t, db.Create(&domain.Team{ID: snowflake.ID(601), Name: "solo", SeatCount: 0, CreatedAt: fake.Now()}).Error)
	seats, err = svc.TeamSeatCount(ctx, snowflake.ID(601))
	require.NoError(t, err)
	assert.Equal(t, 1, seats)

	_, err = svc.TeamSeatCount(ctx, snowflake.ID(699))
	assert.ErrorIs(t, err, domain.ErrTeamNotFound)
}

func TestCanCreateBackendQuota(t *testing.T) {
	svc, db, fake := newEntitlementFixture(t)
	ctx := context.Background()
	userID := snowflake.ID(20)

	check, err := svc.CanCreateBackend(ctx, domain.SubscriptionOwnerUser, userID)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
	assert.Equal(t, 0, check.CurrentCount)
	assert.Equal(t, 1, check.Quota)

	require.NoError(t, db.Create(&domain.ManagedBackend{
		ID:        snowflake.ID(700),
		OwnerType: domain.SubscriptionOwnerUser,
		OwnerID:   userID,
		ProjectID: snowflake.ID(800),
		Status:    domain.BackendStatusReady,
		Region:    "us-east-1",
		CreatedAt: fake.Now(),
		UpdatedAt: fake.Now(),
	}).Error)

	check, err = svc.CanCreateBackend(ctx, domain.SubscriptionOwnerUser, userID)
	require.NoError(t, err)
	assert.False(t, check.Allowed)
	assert.Contains(t, check.Reason, "quota")
	assert.Equal(t, 1, check.CurrentCount)

	// Disabled backends do not count against the quota.
	require.NoError(t, db.Model(&domain.ManagedBackend{}).
		Where("id = ?", snowflake.ID(700)).
		Update("status", domain.BackendStatusDisabled).Error)
	check, err = svc.CanCreateBackend(ctx, domain.SubscriptionOwnerUser, userID)
	require.NoError(t, err)
	assert.True(t, check.Allowed)
}

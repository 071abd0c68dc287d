package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	entitlementrepo "github.com/appdraft/appdraft/internal/entitlement/repository"
	entitlementservice "github.com/appdraft/appdraft/internal/entitlement/service"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	"github.com/appdraft/appdraft/internal/ledger/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newLedgerFixture(t *testing.T) (ledgerdomain.Service, entitlementdomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&ledgerdomain.CreditEntry{},
		&entitlementdomain.SubscriptionState{},
		&entitlementdomain.Team{},
		&entitlementdomain.TeamMember{},
		&entitlementdomain.ManagedBackend{},
	))
	// The grant idempotence index normally comes from the SQL migrations.
	require.NoError(t, db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_credit_entries_grant
		 ON credit_entries (owner_type, owner_id, type, period_key)
		 WHERE type = 'MONTHLY_GRANT'`,
	).Error)

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	cfg := config.Config{}
	cfg.Billing.FreeMonthlyCredits = 1.0
	cfg.Billing.ProMonthlyCredits = 10.0
	cfg.Billing.TeamSeatCredits = 15.0
	cfg.Billing.MarkupMultiplier = 1.20

	ents := entitlementservice.NewService(entitlementservice.Params{
		DB: db, Log: log, GenID: node, Clock: fake, Repo: entitlementrepo.Provide(),
	})
	svc := NewService(Params{
		DB: db, Log: log, GenID: node, Clock: fake, Cfg: cfg,
		Repo: repository.Provide(), Ents: ents,
	})
	return svc, ents, db, fake
}

func TestEnsureMonthlyGrantIsIdempotent(t *testing.T) {
	svc, _, _, _ := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(1))

	for i := 0; i < 5; i++ {
		require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierPro))
	}

	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, balance, 1e-9)
}

func TestEnsureMonthlyGrantConcurrent(t *testing.T) {
	svc, _, db, _ := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(2))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierPro)
		}()
	}
	wg.Wait()

	var count int64
	require.NoError(t, db.Model(&ledgerdomain.CreditEntry{}).
		Where("type = ?", ledgerdomain.EntryTypeMonthlyGrant).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestMonthlyGrantRollsOverWithPeriod(t *testing.T) {
	svc, _, _, fake := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(3))

	require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierPro))
	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, balance, 1e-9)

	// Cross into July: the June grant stops counting and a fresh grant lands.
	fake.Advance(31 * 24 * time.Hour)

	balance, err = svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, balance, 1e-9)

	require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierPro))
	balance, err = svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, balance, 1e-9)
}

func TestTopupsSurvivePeriodRollover(t *testing.T) {
	svc, _, _, fake := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(4))

	require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierFree))
	require.NoError(t, svc.AddTopup(ctx, owner, 5.0, "stripe-checkout-1"))

	fake.Advance(40 * 24 * time.Hour)

	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, balance, 1e-9)
}

func TestChargeExactBalanceThenInsufficient(t *testing.T) {
	svc, _, _, _ := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(5))

	require.NoError(t, svc.AddTopup(ctx, owner, 2.5, "seed"))

	// Charging the exact balance succeeds and leaves zero.
	require.NoError(t, svc.Charge(ctx, owner, 2.5, "req-1"))
	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, balance, 1e-9)

	// A further charge fails and appends nothing.
	err = svc.Charge(ctx, owner, 0.01, "req-2")
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientCredits)
	balance, err = svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, balance, 1e-9)
}

func TestChargeValidation(t *testing.T) {
	svc, _, _, _ := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(6))

	assert.ErrorIs(t, svc.Charge(ctx, owner, 0, "req"), ledgerdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Charge(ctx, owner, -1, "req"), ledgerdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.AddTopup(ctx, owner, -5, "ref"), ledgerdomain.ErrInvalidAmount)
	assert.ErrorIs(t, svc.Charge(ctx, ledgerdomain.Owner{}, 1, "req"), ledgerdomain.ErrInvalidOwner)
}

func TestTeamGrantPoolsSeats(t *testing.T) {
	svc, _, db, fake := newLedgerFixture(t)
	ctx := context.Background()

	team := entitlementdomain.Team{ID: snowflake.ID(900), Name: "acme", SeatCount: 3, CreatedAt: fake.Now()}
	require.NoError(t, db.Create(&team).Error)

	owner := ledgerdomain.TeamOwner(team.ID)
	require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierTeam))

	// 3 seats x 15.0 pooled on the team owner.
	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, balance, 1e-9)

	// Repeat ensures stay idempotent for the pooled grant too.
	require.NoError(t, svc.EnsureMonthlyGrant(ctx, owner, entitlementdomain.TierTeam))
	balance, err = svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 45.0, balance, 1e-9)
}

func TestAdjustmentsAreSignedEntries(t *testing.T) {
	svc, _, db, _ := newLedgerFixture(t)
	ctx := context.Background()
	owner := ledgerdomain.IndividualOwner(snowflake.ID(7))

	require.NoError(t, svc.AddTopup(ctx, owner, 10, "seed"))
	require.NoError(t, svc.AddAdjustment(ctx, owner, -2.5, "support-refund-123"))
	require.NoError(t, svc.AddAdjustment(ctx, owner, 1.0, "goodwill"))
	assert.ErrorIs(t, svc.AddAdjustment(ctx, owner, 0, "noop"), ledgerdomain.ErrInvalidAmount)

	balance, err := svc.Balance(ctx, owner)
	require.NoError(t, err)
	assert.InDelta(t, 8.5, balance, 1e-9)

	// Corrections are appended rows, never updates.
	var count int64
	require.NoError(t, db.Model(&ledgerdomain.CreditEntry{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/config"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	obsmetrics "github.com/appdraft/appdraft/internal/observability/metrics"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       ledgerdomain.Repository
	Ents       entitlementdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	billing    config.BillingConfig
	repo       ledgerdomain.Repository
	ents       entitlementdomain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		billing:    p.Cfg.Billing,
		repo:       p.Repo,
		ents:       p.Ents,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Balance(ctx context.Context, owner ledgerdomain.Owner) (float64, error) {
	if !owner.Valid() {
		return 0, ledgerdomain.ErrInvalidOwner
	}

	entries, err := s.repo.FindByOwner(ctx, s.db, owner)
	if err != nil {
		return 0, err
	}

	// Full recomputation on every call; correctness over performance at this
	// scale. Grants from prior periods stay in the ledger but stop counting.
	currentPeriod := ledgerdomain.PeriodKeyFor(s.clock.Now())

	var balance float64
	for _, entry := range entries {
		if entry.Type == ledgerdomain.EntryTypeMonthlyGrant {
			if entry.PeriodKey != nil && *entry.PeriodKey == currentPeriod {
				balance += entry.AmountCredits
			}
			continue
		}
		balance += entry.AmountCredits
	}
	return balance, nil
}

func (s *Service) EnsureMonthlyGrant(ctx context.Context, owner ledgerdomain.Owner, tier entitlementdomain.PlanTier) error {
	if !owner.Valid() {
		return ledgerdomain.ErrInvalidOwner
	}
	if !tier.Valid() {
		return ledgerdomain.ErrInvalidTier
	}

	amount, err := s.grantAmount(ctx, owner, tier)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return nil
	}

	period := ledgerdomain.PeriodKeyFor(s.clock.Now())
	entry := &ledgerdomain.CreditEntry{
		ID:            s.genID.Generate(),
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		Type:          ledgerdomain.EntryTypeMonthlyGrant,
		AmountCredits: amount,
		PeriodKey:     &period,
		CreatedAt:     s.clock.Now(),
	}

	inserted, err := s.repo.InsertGrantOnce(ctx, s.db, entry)
	if err != nil {
		return err
	}
	if inserted {
		s.log.Info("monthly grant issued",
			zap.String("owner_type", string(owner.Type)),
			zap.String("owner_id", owner.ID.String()),
			zap.String("tier", string(tier)),
			zap.String("period", string(period)),
			zap.Float64("credits", amount),
		)
		if s.obsMetrics != nil {
			s.obsMetrics.RecordLedgerEntry(ctx, string(ledgerdomain.EntryTypeMonthlyGrant))
		}
	}
	return nil
}

func (s *Service) grantAmount(ctx context.Context, owner ledgerdomain.Owner, tier entitlementdomain.PlanTier) (float64, error) {
	switch tier {
	case entitlementdomain.TierFree:
		return s.billing.FreeMonthlyCredits, nil
	case entitlementdomain.TierPro:
		return s.billing.ProMonthlyCredits, nil
	case entitlementdomain.TierTeam:
		if owner.Type != ledgerdomain.OwnerTypeTeam {
			// Team grant requested for an individual owner; single-seat fallback.
			return s.billing.TeamSeatCredits, nil
		}
		seats, err := s.ents.TeamSeatCount(ctx, owner.ID)
		if err != nil {
			return 0, err
		}
		if seats < 1 {
			seats = 1
		}
		return s.billing.TeamSeatCredits * float64(seats), nil
	default:
		return 0, ledgerdomain.ErrInvalidTier
	}
}

func (s *Service) CanAfford(ctx context.Context, owner ledgerdomain.Owner, estimatedCredits float64) (bool, error) {
	balance, err := s.Balance(ctx, owner)
	if err != nil {
		return false, err
	}
	return balance >= estimatedCredits, nil
}

func (s *Service) Charge(ctx context.Context, owner ledgerdomain.Owner, credits float64, requestID string) error {
	if !owner.Valid() {
		return ledgerdomain.ErrInvalidOwner
	}
	if credits <= 0 {
		return ledgerdomain.ErrInvalidAmount
	}

	// Re-read at charge time: the pre-check is optimistic and concurrent
	// requests from the same owner may have drained the balance since.
	balance, err := s.Balance(ctx, owner)
	if err != nil {
		return err
	}
	if balance < credits {
		return fmt.Errorf("%w: balance %.4f, required %.4f", ledgerdomain.ErrInsufficientCredits, balance, credits)
	}

	ref := strings.TrimSpace(requestID)
	entry := &ledgerdomain.CreditEntry{
		ID:            s.genID.Generate(),
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		Type:          ledgerdomain.EntryTypeSpend,
		AmountCredits: -credits,
		Ref:           &ref,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Append(ctx, s.db, entry); err != nil {
		return err
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(ledgerdomain.EntryTypeSpend))
	}
	return nil
}

func (s *Service) AddTopup(ctx context.Context, owner ledgerdomain.Owner, amount float64, ref string) error {
	return s.appendSigned(ctx, owner, ledgerdomain.EntryTypeTopup, amount, ref, true)
}

func (s *Service) AddAdjustment(ctx context.Context, owner ledgerdomain.Owner, amount float64, ref string) error {
	return s.appendSigned(ctx, owner, ledgerdomain.EntryTypeAdjustment, amount, ref, false)
}

func (s *Service) appendSigned(ctx context.Context, owner ledgerdomain.Owner, entryType ledgerdomain.EntryType, amount float64, ref string, positiveOnly bool) error {
	if !owner.Valid() {
		return ledgerdomain.ErrInvalidOwner
	}
	if amount == 0 || (positiveOnly && amount < 0) {
		return ledgerdomain.ErrInvalidAmount
	}

	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = fmt.Sprintf("%s-%d", strings.ToLower(string(entryType)), s.clock.Now().UnixMilli())
	}

	entry := &ledgerdomain.CreditEntry{
		ID:            s.genID.Generate(),
		OwnerType:     owner.Type,
		OwnerID:       owner.ID,
		Type:          entryType,
		AmountCredits: amount,
		Ref:           &ref,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.Append(ctx, s.db, entry); err != nil {
		return err
	}
	if s.obsMetrics != nil {
		s.obsMetrics.RecordLedgerEntry(ctx, string(entryType))
	}
	return nil
}

// Package scheduler runs the background sweeps that keep billing state
// current without waiting for user traffic: monthly grants for paying
// subscribers, and cleanup of runs abandoned mid-flight.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	"github.com/appdraft/appdraft/internal/clock"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Ledger ledgerdomain.Service
	Config Config `optional:"true"`
}

type Scheduler struct {
	db     *gorm.DB
	log    *zap.Logger
	cfg    Config
	clock  clock.Clock
	ledger ledgerdomain.Service
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.Clock == nil || p.Ledger == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:     p.DB,
		log:    p.Log.Named("scheduler"),
		cfg:    p.Config.withDefaults(),
		clock:  p.Clock,
		ledger: p.Ledger,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			s.log.Warn("job timed out", zap.String("job", name), zap.Duration("timeout", timeout))
			return nil
		}
		s.log.Error("job failed", zap.String("job", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}

	s.log.Debug("job finished", zap.String("job", name), zap.Duration("elapsed", elapsed))
	return nil
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error
	err = errors.Join(err, s.runJob(parent, "monthly_grants", 30*time.Second, s.MonthlyGrantsJob))
	err = errors.Join(err, s.runJob(parent, "stale_runs", 30*time.Second, s.StaleRunsJob))
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Error("sweep finished with errors", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// MonthlyGrantsJob issues the current period's grant to every owner holding
// an active subscription. Grant insertion is idempotent, so re-running the
// sweep within a period is harmless. FREE users have no subscription row and
// receive their grant lazily on first balance read.
func (s *Scheduler) MonthlyGrantsJob(ctx context.Context) error {
	var subs []entitlementdomain.SubscriptionState
	err := s.db.WithContext(ctx).
		Where("status = ?", entitlementdomain.SubscriptionStatusActive).
		Order("id asc").
		Limit(s.cfg.BatchSize).
		Find(&subs).Error
	if err != nil {
		return err
	}

	var errs error
	granted := 0
	for _, sub := range subs {
		owner := ledgerdomain.IndividualOwner(sub.OwnerID)
		if sub.OwnerType == entitlementdomain.SubscriptionOwnerTeam {
			owner = ledgerdomain.TeamOwner(sub.OwnerID)
		}
		if err := s.ledger.EnsureMonthlyGrant(ctx, owner, sub.Tier); err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		granted++
	}

	if granted > 0 {
		s.log.Info("monthly grant sweep complete",
			zap.Int("subscriptions", len(subs)),
			zap.Int("granted", granted),
		)
	}
	return errs
}

// StaleRunsJob fails runs stuck in RUNNING past the threshold. A run left
// RUNNING means the process died between creating the record and writing the
// terminal status; such runs were never charged.
func (s *Scheduler) StaleRunsJob(ctx context.Context) error {
	cutoff := s.clock.Now().Add(-s.cfg.StaleRunThreshold)

	result := s.db.WithContext(ctx).
		Model(&airundomain.Run{}).
		Where("status = ? AND updated_at < ?", airundomain.RunStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":     airundomain.RunStatusFailed,
			"error":      "run abandoned before completion",
			"updated_at": s.clock.Now(),
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		s.log.Warn("failed stale runs", zap.Int64("count", result.RowsAffected))
	}
	return nil
}

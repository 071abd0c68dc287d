package domain

import (
	"context"

	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
)

// Service is the credit gate: it derives balances from the ledger and is the
// only writer of grant, spend and topup entries.
type Service interface {
	// Balance recomputes the owner's balance from the full entry set. Monthly
	// grants only count when their period key matches the current period.
	Balance(ctx context.Context, owner Owner) (float64, error)

	// EnsureMonthlyGrant is idempotent per (owner, tier, period); safe to call
	// on every request.
	EnsureMonthlyGrant(ctx context.Context, owner Owner, tier entitlementdomain.PlanTier) error

	// CanAfford is the optimistic pre-check before the non-cancelable AI call.
	CanAfford(ctx context.Context, owner Owner, estimatedCredits float64) (bool, error)

	// Charge re-reads the balance and fails with ErrInsufficientCredits when it
	// dropped below the requested amount since the pre-check.
	Charge(ctx context.Context, owner Owner, credits float64, requestID string) error

	AddTopup(ctx context.Context, owner Owner, amount float64, ref string) error
	AddAdjustment(ctx context.Context, owner Owner, amount float64, ref string) error
}

package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Append(ctx context.Context, db *gorm.DB, entry *CreditEntry) error
	// InsertGrantOnce appends a MONTHLY_GRANT entry unless one already exists
	// for (owner, period). Returns true when a row was inserted.
	InsertGrantOnce(ctx context.Context, db *gorm.DB, entry *CreditEntry) (bool, error)
	FindByOwner(ctx context.Context, db *gorm.DB, owner Owner) ([]CreditEntry, error)
}

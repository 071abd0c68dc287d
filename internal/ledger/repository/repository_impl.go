package repository

import (
	"context"

	"github.com/appdraft/appdraft/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Append(ctx context.Context, db *gorm.DB, entry *domain.CreditEntry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) InsertGrantOnce(ctx context.Context, db *gorm.DB, entry *domain.CreditEntry) (bool, error) {
	// The unique index on (owner_type, owner_id, type, period_key) makes the
	// grant idempotent even under concurrent callers.
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(entry)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, owner domain.Owner) ([]domain.CreditEntry, error) {
	var entries []domain.CreditEntry
	err := db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

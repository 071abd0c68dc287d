package repository

import (
	"context"
	"time"

	"github.com/appdraft/appdraft/internal/airun/domain"
	"gorm.io/gorm"
)

type repo struct{}

// Provide creates the AI run repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateRun(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	return db.WithContext(ctx).Create(run).Error
}

func (r *repo) UpdateRun(ctx context.Context, db *gorm.DB, run *domain.Run) error {
	return db.WithContext(ctx).Save(run).Error
}

func (r *repo) ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]domain.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var runs []domain.Run
	err := db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}

func (r *repo) CreateToolInvocations(ctx context.Context, db *gorm.DB, invocations []domain.ToolInvocation) error {
	if len(invocations) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(invocations, 100).Error
}

func (r *repo) CreateUsageEvent(ctx context.Context, db *gorm.DB, event *domain.UsageEvent) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) MonthlyUsage(ctx context.Context, db *gorm.DB, month string) ([]domain.MonthlyUsage, error) {
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, domain.ErrInvalidRequest
	}
	end := start.AddDate(0, 1, 0)

	var rows []domain.MonthlyUsage
	err = db.WithContext(ctx).
		Model(&domain.UsageEvent{}).
		Select(`? AS month, model,
			COUNT(*) AS runs,
			SUM(input_tokens) AS input_tokens,
			SUM(output_tokens) AS output_tokens,
			SUM(vendor_cost_usd) AS vendor_cost_usd,
			SUM(credits_charged) AS credits_charged`, month).
		Where("created_at >= ? AND created_at < ?", start, end).
		Group("model").
		Order("model ASC").
		Scan(&rows).Error
	return rows, err
}

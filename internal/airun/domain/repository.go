package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	CreateRun(ctx context.Context, db *gorm.DB, run *Run) error
	UpdateRun(ctx context.Context, db *gorm.DB, run *Run) error
	ListRuns(ctx context.Context, db *gorm.DB, limit int) ([]Run, error)
	CreateToolInvocations(ctx context.Context, db *gorm.DB, invocations []ToolInvocation) error
	CreateUsageEvent(ctx context.Context, db *gorm.DB, event *UsageEvent) error
	MonthlyUsage(ctx context.Context, db *gorm.DB, month string) ([]MonthlyUsage, error)
}

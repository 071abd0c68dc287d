package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	CreateProject(ctx context.Context, db *gorm.DB, project *Project) error
	FindProject(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Project, error)
	ListProjects(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Project, error)

	ListFiles(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]ProjectFile, error)
	FindFile(ctx context.Context, db *gorm.DB, projectID snowflake.ID, path string) (*ProjectFile, error)
	SaveFile(ctx context.Context, db *gorm.DB, file *ProjectFile) error
	DeleteFile(ctx context.Context, db *gorm.DB, projectID snowflake.ID, path string) (int64, error)

	CreateSnapshot(ctx context.Context, db *gorm.DB, snapshot *Snapshot, files []SnapshotFile) error
	FindSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Snapshot, error)
	ListSnapshots(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]Snapshot, error)
	ListSnapshotFiles(ctx context.Context, db *gorm.DB, snapshotID snowflake.ID) ([]SnapshotFile, error)

	CreateSession(ctx context.Context, db *gorm.DB, session *ChatSession) error
	FindSession(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ChatSession, error)
	AppendMessage(ctx context.Context, db *gorm.DB, message *ChatMessage) error
	RecentMessages(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, limit int) ([]ChatMessage, error)
}

package repository

import (
	"context"
	"errors"

	"github.com/appdraft/appdraft/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

// Provide creates the project repository.
func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateProject(ctx context.Context, db *gorm.DB, project *domain.Project) error {
	return db.WithContext(ctx).Create(project).Error
}

func (r *repo) FindProject(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).Where("id = ?", id).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (r *repo) ListProjects(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Project, error) {
	var projects []domain.Project
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&projects).Error
	return projects, err
}

func (r *repo) ListFiles(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.ProjectFile, error) {
	var files []domain.ProjectFile
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("path ASC").
		Find(&files).Error
	return files, err
}

func (r *repo) FindFile(ctx context.Context, db *gorm.DB, projectID snowflake.ID, path string) (*domain.ProjectFile, error) {
	var file domain.ProjectFile
	err := db.WithContext(ctx).
		Where("project_id = ? AND path = ?", projectID, path).
		First(&file).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repo) SaveFile(ctx context.Context, db *gorm.DB, file *domain.ProjectFile) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(file).Error
}

func (r *repo) DeleteFile(ctx context.Context, db *gorm.DB, projectID snowflake.ID, path string) (int64, error) {
	res := db.WithContext(ctx).
		Where("project_id = ? AND path = ?", projectID, path).
		Delete(&domain.ProjectFile{})
	return res.RowsAffected, res.Error
}

func (r *repo) CreateSnapshot(ctx context.Context, db *gorm.DB, snapshot *domain.Snapshot, files []domain.SnapshotFile) error {
	if err := db.WithContext(ctx).Create(snapshot).Error; err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(files, 100).Error
}

func (r *repo) FindSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot
	err := db.WithContext(ctx).Where("id = ?", id).First(&snapshot).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (r *repo) ListSnapshots(ctx context.Context, db *gorm.DB, projectID snowflake.ID) ([]domain.Snapshot, error) {
	var snapshots []domain.Snapshot
	err := db.WithContext(ctx).
		Where("project_id = ?", projectID).
		Order("created_at DESC").
		Find(&snapshots).Error
	return snapshots, err
}

func (r *repo) ListSnapshotFiles(ctx context.Context, db *gorm.DB, snapshotID snowflake.ID) ([]domain.SnapshotFile, error) {
	var files []domain.SnapshotFile
	err := db.WithContext(ctx).
		Where("snapshot_id = ?", snapshotID).
		Order("path ASC").
		Find(&files).Error
	return files, err
}

func (r *repo) CreateSession(ctx context.Context, db *gorm.DB, session *domain.ChatSession) error {
	return db.WithContext(ctx).Create(session).Error
}

func (r *repo) FindSession(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.ChatSession, error) {
	var session domain.ChatSession
	err := db.WithContext(ctx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) AppendMessage(ctx context.Context, db *gorm.DB, message *domain.ChatMessage) error {
	return db.WithContext(ctx).Create(message).Error
}

func (r *repo) RecentMessages(ctx context.Context, db *gorm.DB, sessionID snowflake.ID, limit int) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// Reverse into chronological order for prompt assembly.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

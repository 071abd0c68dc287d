package service

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/appdraft/appdraft/internal/clock"
	"github.com/appdraft/appdraft/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// recentMessageLimit bounds how much chat history feeds the model prompt.
const recentMessageLimit = 10

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("project.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateProject(ctx context.Context, userID snowflake.ID, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled project"
	}

	now := s.clock.Now()
	project := &domain.Project{
		ID:        s.genID.Generate(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, s.db, project); err != nil {
		return nil, err
	}

	s.log.Info("project created",
		zap.String("project_id", project.ID.String()),
		zap.String("user_id", userID.String()),
	)
	return project, nil
}

func (s *Service) GetProject(ctx context.Context, userID, projectID snowflake.ID) (*domain.Project, error) {
	project, err := s.repo.FindProject(ctx, s.db, projectID)
	if err != nil {
		return nil, err
	}
	if project.UserID != userID {
		return nil, domain.ErrProjectForbidden
	}
	return project, nil
}

func (s *Service) ListProjects(ctx context.Context, userID snowflake.ID) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx, s.db, userID)
}

func (s *Service) ListFiles(ctx context.Context, projectID snowflake.ID) ([]domain.ProjectFile, error) {
	return s.repo.ListFiles(ctx, s.db, projectID)
}

func (s *Service) GetFile(ctx context.Context, projectID snowflake.ID, filePath string) (*domain.ProjectFile, error) {
	filePath, err := cleanPath(filePath)
	if err != nil {
		return nil, err
	}
	return s.repo.FindFile(ctx, s.db, projectID, filePath)
}

func (s *Service) UpsertFile(ctx context.Context, projectID snowflake.ID, filePath, content string) (*domain.ProjectFile, error) {
	filePath, err := cleanPath(filePath)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	file := &domain.ProjectFile{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		Path:      filePath,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.SaveFile(ctx, s.db, file); err != nil {
		return nil, err
	}
	return file, nil
}

func (s *Service) DeleteFile(ctx context.Context, projectID snowflake.ID, filePath string) error {
	filePath, err := cleanPath(filePath)
	if err != nil {
		return err
	}
	affected, err := s.repo.DeleteFile(ctx, s.db, projectID, filePath)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrFileNotFound
	}
	return nil
}

func (s *Service) RenameFile(ctx context.Context, projectID snowflake.ID, fromPath, toPath string) error {
	fromPath, err := cleanPath(fromPath)
	if err != nil {
		return err
	}
	toPath, err = cleanPath(toPath)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		file, err := s.repo.FindFile(ctx, tx, projectID, fromPath)
		if err != nil {
			return err
		}
		if _, err := s.repo.FindFile(ctx, tx, projectID, toPath); err == nil {
			return domain.ErrFileExists
		} else if !errors.Is(err, domain.ErrFileNotFound) {
			return err
		}

		now := s.clock.Now()
		renamed := &domain.ProjectFile{
			ID:        s.genID.Generate(),
			ProjectID: projectID,
			Path:      toPath,
			Content:   file.Content,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.repo.SaveFile(ctx, tx, renamed); err != nil {
			return err
		}
		if _, err := s.repo.DeleteFile(ctx, tx, projectID, fromPath); err != nil {
			return err
		}
		return nil
	})
}

// SnapshotAndReply commits the post-run file tree snapshot and the assistant
// message in a single transaction. A run must never leave a snapshot without
// its reply or a reply without its snapshot.
func (s *Service) SnapshotAndReply(ctx context.Context, req domain.SnapshotAndReplyRequest) (*domain.Snapshot, *domain.ChatMessage, error) {
	now := s.clock.Now()
	runID := req.RunID

	snapshot := &domain.Snapshot{
		ID:        s.genID.Generate(),
		ProjectID: req.ProjectID,
		RunID:     &runID,
		Label:     req.Label,
		CreatedAt: now,
	}
	message := &domain.ChatMessage{
		ID:        s.genID.Generate(),
		SessionID: req.SessionID,
		Role:      domain.RoleAssistant,
		Content:   req.Reply,
		Metadata:  req.ReplyMeta,
		CreatedAt: now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		files, err := s.repo.ListFiles(ctx, tx, req.ProjectID)
		if err != nil {
			return err
		}

		snapshotFiles := make([]domain.SnapshotFile, 0, len(files))
		for _, f := range files {
			snapshotFiles = append(snapshotFiles, domain.SnapshotFile{
				ID:         s.genID.Generate(),
				SnapshotID: snapshot.ID,
				Path:       f.Path,
				Content:    f.Content,
			})
		}

		if err := s.repo.CreateSnapshot(ctx, tx, snapshot, snapshotFiles); err != nil {
			return err
		}
		return s.repo.AppendMessage(ctx, tx, message)
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("snapshot recorded",
		zap.String("project_id", req.ProjectID.String()),
		zap.String("snapshot_id", snapshot.ID.String()),
		zap.String("run_id", runID.String()),
	)
	return snapshot, message, nil
}

func (s *Service) GetSnapshot(ctx context.Context, snapshotID snowflake.ID) (*domain.Snapshot, error) {
	return s.repo.FindSnapshot(ctx, s.db, snapshotID)
}

func (s *Service) ListSnapshots(ctx context.Context, projectID snowflake.ID) ([]domain.Snapshot, error) {
	return s.repo.ListSnapshots(ctx, s.db, projectID)
}

func (s *Service) SnapshotFiles(ctx context.Context, snapshotID snowflake.ID) ([]domain.SnapshotFile, error) {
	return s.repo.ListSnapshotFiles(ctx, s.db, snapshotID)
}

func (s *Service) CreateSession(ctx context.Context, projectID snowflake.ID, title string) (*domain.ChatSession, error) {
	session := &domain.ChatSession{
		ID:        s.genID.Generate(),
		ProjectID: projectID,
		Title:     strings.TrimSpace(title),
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.CreateSession(ctx, s.db, session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID snowflake.ID) (*domain.ChatSession, error) {
	return s.repo.FindSession(ctx, s.db, sessionID)
}

func (s *Service) AppendUserMessage(ctx context.Context, sessionID snowflake.ID, content string) (*domain.ChatMessage, error) {
	message := &domain.ChatMessage{
		ID:        s.genID.Generate(),
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Content:   content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.AppendMessage(ctx, s.db, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (s *Service) RecentMessages(ctx context.Context, sessionID snowflake.ID) ([]domain.ChatMessage, error) {
	return s.repo.RecentMessages(ctx, s.db, sessionID, recentMessageLimit)
}

// cleanPath normalizes a project-relative file path and rejects traversal.
func cleanPath(p string) (string, error) {
	p = strings.TrimSpace(p)
	p = strings.TrimPrefix(p, "./")
	if p == "" || strings.HasPrefix(p, "/") {
		return "", domain.ErrInvalidPath
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", domain.ErrInvalidPath
	}
	return cleaned, nil
}

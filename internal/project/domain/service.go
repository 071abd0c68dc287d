package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// SnapshotAndReplyRequest records the outcome of a successful AI run: a full
// file tree snapshot and the assistant reply, committed together.
type SnapshotAndReplyRequest struct {
	ProjectID snowflake.ID
	SessionID snowflake.ID
	RunID     snowflake.ID
	Label     string
	Reply     string
	ReplyMeta map[string]interface{}
}

type Service interface {
	CreateProject(ctx context.Context, userID snowflake.ID, name string) (*Project, error)
	GetProject(ctx context.Context, userID, projectID snowflake.ID) (*Project, error)
	ListProjects(ctx context.Context, userID snowflake.ID) ([]Project, error)

	ListFiles(ctx context.Context, projectID snowflake.ID) ([]ProjectFile, error)
	GetFile(ctx context.Context, projectID snowflake.ID, path string) (*ProjectFile, error)
	UpsertFile(ctx context.Context, projectID snowflake.ID, path, content string) (*ProjectFile, error)
	DeleteFile(ctx context.Context, projectID snowflake.ID, path string) error
	RenameFile(ctx context.Context, projectID snowflake.ID, fromPath, toPath string) error

	SnapshotAndReply(ctx context.Context, req SnapshotAndReplyRequest) (*Snapshot, *ChatMessage, error)
	GetSnapshot(ctx context.Context, snapshotID snowflake.ID) (*Snapshot, error)
	ListSnapshots(ctx context.Context, projectID snowflake.ID) ([]Snapshot, error)
	SnapshotFiles(ctx context.Context, snapshotID snowflake.ID) ([]SnapshotFile, error)

	CreateSession(ctx context.Context, projectID snowflake.ID, title string) (*ChatSession, error)
	GetSession(ctx context.Context, sessionID snowflake.ID) (*ChatSession, error)
	AppendUserMessage(ctx context.Context, sessionID snowflake.ID, content string) (*ChatMessage, error)
	RecentMessages(ctx context.Context, sessionID snowflake.ID) ([]ChatMessage, error)
}

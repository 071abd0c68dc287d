package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

var (
	ErrProjectNotFound  = errors.New("project_not_found")
	ErrProjectForbidden = errors.New("project_forbidden")
	ErrFileNotFound     = errors.New("file_not_found")
	ErrFileExists       = errors.New("file_exists")
	ErrSnapshotNotFound = errors.New("snapshot_not_found")
	ErrSessionNotFound  = errors.New("chat_session_not_found")
	ErrInvalidPath      = errors.New("invalid_file_path")
)

// Project is a user-owned app workspace holding the current file tree.
type Project struct {
	ID        snowflake.ID  `json:"id,string" gorm:"primaryKey"`
	UserID    snowflake.ID  `json:"user_id,string" gorm:"index"`
	Name      string        `json:"name"`
	BackendID *snowflake.ID `json:"backend_id,string,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}

// ProjectFile is the live content of one file in a project. Path is unique
// within a project.
type ProjectFile struct {
	ID        snowflake.ID `json:"id,string" gorm:"primaryKey"`
	ProjectID snowflake.ID `json:"project_id,string" gorm:"uniqueIndex:ux_project_files_path"`
	Path      string       `json:"path" gorm:"uniqueIndex:ux_project_files_path"`
	Content   string       `json:"content"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

func (ProjectFile) TableName() string {
	return "project_files"
}

// Snapshot is an immutable copy of the project file tree taken after a
// successful AI run, before the reply is recorded.
type Snapshot struct {
	ID        snowflake.ID  `json:"id,string" gorm:"primaryKey"`
	ProjectID snowflake.ID  `json:"project_id,string" gorm:"index"`
	RunID     *snowflake.ID `json:"run_id,string,omitempty"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"created_at"`
}

func (Snapshot) TableName() string {
	return "snapshots"
}

type SnapshotFile struct {
	ID         snowflake.ID `json:"id,string" gorm:"primaryKey"`
	SnapshotID snowflake.ID `json:"snapshot_id,string" gorm:"index"`
	Path       string       `json:"path"`
	Content    string       `json:"content"`
}

func (SnapshotFile) TableName() string {
	return "snapshot_files"
}

// ChatSession groups the message history of one conversation on a project.
type ChatSession struct {
	ID        snowflake.ID `json:"id,string" gorm:"primaryKey"`
	ProjectID snowflake.ID `json:"project_id,string" gorm:"index"`
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

type ChatMessage struct {
	ID        snowflake.ID      `json:"id,string" gorm:"primaryKey"`
	SessionID snowflake.ID      `json:"session_id,string" gorm:"index"`
	Role      MessageRole       `json:"role"`
	Content   string            `json:"content"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

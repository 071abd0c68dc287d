// Package tools implements the executors offered to the model during an AI
// run. A registry is scoped to one project and one billing owner.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	agentdomain "github.com/appdraft/appdraft/internal/agent/domain"
	backenddomain "github.com/appdraft/appdraft/internal/backend/domain"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	"github.com/bwmarrin/snowflake"
)

const (
	ToolCreateFile        = "create_file"
	ToolUpdateFile        = "update_file"
	ToolApplyPatch        = "apply_patch"
	ToolDeleteFile        = "delete_file"
	ToolRenameFile        = "rename_file"
	ToolRequireConnection = "require_connection"
	ToolCreateMigration   = "create_migration"
	ToolListMigrations    = "list_migrations"
	ToolExecuteMigration  = "execute_migration"
)

// Scope binds a registry to the project being edited and the owner whose
// backend quota governs provisioning.
type Scope struct {
	ProjectID snowflake.ID
	OwnerType entitlementdomain.SubscriptionOwnerType
	OwnerID   snowflake.ID

	// BackendAllowed gates the migration tools by plan.
	BackendAllowed bool
}

type Registry struct {
	projects projectdomain.Service
	backends backenddomain.Service
	scope    Scope
}

// NewRegistry builds the executor set for one run.
func NewRegistry(projects projectdomain.Service, backends backenddomain.Service, scope Scope) *Registry {
	return &Registry{projects: projects, backends: backends, scope: scope}
}

func stringSchema(desc string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": desc}
}

func objectSchema(required []string, props map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func (r *Registry) Definitions() []agentdomain.ToolDefinition {
	defs := []agentdomain.ToolDefinition{
		{
			Name:        ToolCreateFile,
			Description: "Create a new file in the project. Fails if the path already exists.",
			InputSchema: objectSchema([]string{"path", "content"}, map[string]interface{}{
				"path":    stringSchema("Project-relative file path"),
				"content": stringSchema("Full file content"),
			}),
		},
		{
			Name:        ToolUpdateFile,
			Description: "Replace the full content of an existing file.",
			InputSchema: objectSchema([]string{"path", "content"}, map[string]interface{}{
				"path":    stringSchema("Project-relative file path"),
				"content": stringSchema("Full replacement content"),
			}),
		},
		{
			Name:        ToolApplyPatch,
			Description: "Apply a unified diff to an existing file. Prefer this over update_file for small edits.",
			InputSchema: objectSchema([]string{"path", "patch"}, map[string]interface{}{
				"path":  stringSchema("Project-relative file path"),
				"patch": stringSchema("Unified diff with @@ hunk headers"),
			}),
		},
		{
			Name:        ToolDeleteFile,
			Description: "Delete a file from the project.",
			InputSchema: objectSchema([]string{"path"}, map[string]interface{}{
				"path": stringSchema("Project-relative file path"),
			}),
		},
		{
			Name:        ToolRenameFile,
			Description: "Rename or move a file within the project.",
			InputSchema: objectSchema([]string{"from_path", "to_path"}, map[string]interface{}{
				"from_path": stringSchema("Current project-relative path"),
				"to_path":   stringSchema("New project-relative path"),
			}),
		},
	}

	if r.scope.BackendAllowed && r.backends != nil {
		defs = append(defs,
			agentdomain.ToolDefinition{
				Name:        ToolRequireConnection,
				Description: "Ensure the project has a managed Postgres backend, provisioning one if needed.",
				InputSchema: objectSchema(nil, map[string]interface{}{}),
			},
			agentdomain.ToolDefinition{
				Name:        ToolCreateMigration,
				Description: "Record a new SQL schema migration for the project backend.",
				InputSchema: objectSchema([]string{"name", "sql"}, map[string]interface{}{
					"name": stringSchema("Short snake_case migration name"),
					"sql":  stringSchema("Migration SQL statements"),
				}),
			},
			agentdomain.ToolDefinition{
				Name:        ToolListMigrations,
				Description: "List the project backend's migrations and their status.",
				InputSchema: objectSchema(nil, map[string]interface{}{}),
			},
			agentdomain.ToolDefinition{
				Name:        ToolExecuteMigration,
				Description: "Execute a pending migration by name.",
				InputSchema: objectSchema([]string{"name"}, map[string]interface{}{
					"name": stringSchema("Name of a pending migration"),
				}),
			},
		)
	}
	return defs
}

func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) (string, error) {
	switch name {
	case ToolCreateFile:
		return r.createFile(ctx, input)
	case ToolUpdateFile:
		return r.updateFile(ctx, input)
	case ToolApplyPatch:
		return r.applyPatch(ctx, input)
	case ToolDeleteFile:
		return r.deleteFile(ctx, input)
	case ToolRenameFile:
		return r.renameFile(ctx, input)
	case ToolRequireConnection:
		return r.requireConnection(ctx)
	case ToolCreateMigration:
		return r.createMigration(ctx, input)
	case ToolListMigrations:
		return r.listMigrations(ctx)
	case ToolExecuteMigration:
		return r.executeMigration(ctx, input)
	default:
		return "", fmt.Errorf("%w: %s", agentdomain.ErrUnknownTool, name)
	}
}

type fileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Patch   string `json:"patch"`
}

type renameInput struct {
	FromPath string `json:"from_path"`
	ToPath   string `json:"to_path"`
}

type migrationInput struct {
	Name string `json:"name"`
	SQL  string `json:"sql"`
}

func (r *Registry) createFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if _, err := r.projects.GetFile(ctx, r.scope.ProjectID, in.Path); err == nil {
		return "", projectdomain.ErrFileExists
	} else if !errors.Is(err, projectdomain.ErrFileNotFound) {
		return "", err
	}
	if _, err := r.projects.UpsertFile(ctx, r.scope.ProjectID, in.Path, in.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("created %s (%d bytes)", in.Path, len(in.Content)), nil
}

func (r *Registry) updateFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if _, err := r.projects.GetFile(ctx, r.scope.ProjectID, in.Path); err != nil {
		return "", err
	}
	if _, err := r.projects.UpsertFile(ctx, r.scope.ProjectID, in.Path, in.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("updated %s (%d bytes)", in.Path, len(in.Content)), nil
}

func (r *Registry) applyPatch(ctx context.Context, input json.RawMessage) (string, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	file, err := r.projects.GetFile(ctx, r.scope.ProjectID, in.Path)
	if err != nil {
		return "", err
	}
	patched, err := ApplyUnifiedDiff(file.Content, in.Patch)
	if err != nil {
		return "", err
	}
	if _, err := r.projects.UpsertFile(ctx, r.scope.ProjectID, in.Path, patched); err != nil {
		return "", err
	}
	return fmt.Sprintf("patched %s", in.Path), nil
}

func (r *Registry) deleteFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if err := r.projects.DeleteFile(ctx, r.scope.ProjectID, in.Path); err != nil {
		return "", err
	}
	return fmt.Sprintf("deleted %s", in.Path), nil
}

func (r *Registry) renameFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in renameInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	if err := r.projects.RenameFile(ctx, r.scope.ProjectID, in.FromPath, in.ToPath); err != nil {
		return "", err
	}
	return fmt.Sprintf("renamed %s to %s", in.FromPath, in.ToPath), nil
}

func (r *Registry) requireConnection(ctx context.Context) (string, error) {
	backend, err := r.backends.RequireConnection(ctx, r.scope.OwnerType, r.scope.OwnerID, r.scope.ProjectID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("backend %s ready in %s", backend.ID.String(), backend.Region), nil
}

func (r *Registry) createMigration(ctx context.Context, input json.RawMessage) (string, error) {
	var in migrationInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	migration, err := r.backends.CreateMigration(ctx, r.scope.ProjectID, in.Name, in.SQL)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("migration %s recorded as %s", migration.Name, migration.Status), nil
}

func (r *Registry) listMigrations(ctx context.Context) (string, error) {
	migrations, err := r.backends.ListMigrations(ctx, r.scope.ProjectID)
	if err != nil {
		return "", err
	}
	if len(migrations) == 0 {
		return "no migrations", nil
	}
	out := ""
	for _, m := range migrations {
		if out != "" {
			out += "\n"
		}
		out += fmt.Sprintf("%s: %s", m.Name, m.Status)
	}
	return out, nil
}

func (r *Registry) executeMigration(ctx context.Context, input json.RawMessage) (string, error) {
	var in migrationInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("invalid input: %v", err)
	}
	migration, err := r.backends.ExecuteMigration(ctx, r.scope.ProjectID, in.Name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("migration %s applied", migration.Name), nil
}

package server

import (
	"net/http"
	"strings"

	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func parseID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return 0, false
	}
	return id, true
}

// requireProject resolves the :id project and enforces ownership.
func (s *Server) requireProject(c *gin.Context) (*projectdomain.Project, bool) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return nil, false
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	project, err := s.projects.GetProject(c.Request.Context(), user.ID, projectID)
	if err != nil {
		AbortWithError(c, err)
		return nil, false
	}
	return project, true
}

type createProjectRequest struct {
	Name string `json:"name"`
}

func (s *Server) CreateProject(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	project, err := s.projects.CreateProject(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

func (s *Server) ListProjects(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	projects, err := s.projects.ListProjects(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) GetProject(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, project)
}

func (s *Server) ListProjectFiles(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	files, err := s.projects.ListFiles(c.Request.Context(), project.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

func (s *Server) GetProjectFile(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	file, err := s.projects.GetFile(c.Request.Context(), project.ID, c.Query("path"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

type putFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) PutProjectFile(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	var req putFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	file, err := s.projects.UpsertFile(c.Request.Context(), project.ID, req.Path, req.Content)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, file)
}

func (s *Server) DeleteProjectFile(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	if err := s.projects.DeleteFile(c.Request.Context(), project.ID, c.Query("path")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type renameFileRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) RenameProjectFile(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	var req renameFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.projects.RenameFile(c.Request.Context(), project.ID, req.From, req.To); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type createSessionRequest struct {
	Title string `json:"title"`
}

func (s *Server) CreateChatSession(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	session, err := s.projects.CreateSession(c.Request.Context(), project.ID, req.Title)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) ListChatMessages(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}
	sessionID, ok := parseID(c, "sessionId")
	if !ok {
		return
	}

	session, err := s.projects.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if session.ProjectID != project.ID {
		AbortWithError(c, projectdomain.ErrSessionNotFound)
		return
	}

	messages, err := s.projects.RecentMessages(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (s *Server) ListSnapshots(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	snapshots, err := s.projects.ListSnapshots(c.Request.Context(), project.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

func (s *Server) ListSnapshotFiles(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}
	snapshotID, ok := parseID(c, "snapshotId")
	if !ok {
		return
	}

	// The snapshot must belong to this project before its files are served.
	snapshots, err := s.projects.ListSnapshots(c.Request.Context(), project.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	found := false
	for _, snap := range snapshots {
		if snap.ID == snapshotID {
			found = true
			break
		}
	}
	if !found {
		AbortWithError(c, ErrNotFound)
		return
	}

	files, err := s.projects.SnapshotFiles(c.Request.Context(), snapshotID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": files})
}

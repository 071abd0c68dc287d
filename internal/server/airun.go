package server

import (
	"net/http"
	"strings"

	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type runAIEditRequest struct {
	SessionID        string `json:"session_id"`
	BaseSnapshotID   string `json:"base_snapshot_id"`
	Message          string `json:"message"`
	SelectedFilePath string `json:"selected_file_path"`
}

func (s *Server) RunAIEdit(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	projectID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req runAIEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	sessionID, err := snowflake.ParseString(strings.TrimSpace(req.SessionID))
	if err != nil || sessionID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var baseSnapshotID snowflake.ID
	if raw := strings.TrimSpace(req.BaseSnapshotID); raw != "" {
		baseSnapshotID, err = snowflake.ParseString(raw)
		if err != nil || baseSnapshotID == 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	resp, err := s.airuns.RunAIEdit(c.Request.Context(), airundomain.RunAIEditRequest{
		UserID:           user.ID,
		ProjectID:        projectID,
		SessionID:        sessionID,
		BaseSnapshotID:   baseSnapshotID,
		Message:          req.Message,
		SelectedFilePath: req.SelectedFilePath,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

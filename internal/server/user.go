package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type registerUserRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func (s *Server) RegisterUser(c *gin.Context) {
	var req registerUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Email, req.DisplayName)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	// The token is returned exactly once, at registration.
	c.JSON(http.StatusCreated, gin.H{
		"user":      user,
		"api_token": user.APIToken,
	})
}

func (s *Server) Me(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) GetUserPlan(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	plan, err := s.ents.EffectivePlanForUser(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":       plan.Tier,
		"owner_type": plan.OwnerType,
		"owner_id":   plan.OwnerID.String(),
		"limits":     s.ents.PlanLimits(plan.Tier),
	})
}

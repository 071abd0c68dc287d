package server

import (
	"net/http"

	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	"github.com/gin-gonic/gin"
)

// billingOwner resolves the (owner type, owner id) pair backend quota checks
// bill against, following the same resolution as AI runs.
func (s *Server) billingOwner(c *gin.Context) (entitlementdomain.SubscriptionOwnerType, *entitlementdomain.EffectivePlan, bool) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return "", nil, false
	}
	plan, err := s.ents.EffectivePlanForUser(c.Request.Context(), user.ID)
	if err != nil {
		AbortWithError(c, err)
		return "", nil, false
	}
	return plan.OwnerType, &plan, true
}

func (s *Server) EnsureProjectBackend(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}
	ownerType, plan, ok := s.billingOwner(c)
	if !ok {
		return
	}

	backend, err := s.backends.RequireConnection(c.Request.Context(), ownerType, plan.OwnerID, project.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, backend)
}

func (s *Server) ListBackendMigrations(c *gin.Context) {
	project, ok := s.requireProject(c)
	if !ok {
		return
	}

	migrations, err := s.backends.ListMigrations(c.Request.Context(), project.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"migrations": migrations})
}

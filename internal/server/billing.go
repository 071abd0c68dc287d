package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetCreditBalance(c *gin.Context) {
	user := currentUser(c)
	if user == nil {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	plan, err := s.ents.EffectivePlanForUser(ctx, user.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	owner := ledgerdomain.IndividualOwner(user.ID)
	if plan.Tier == entitlementdomain.TierTeam {
		owner = ledgerdomain.TeamOwner(plan.OwnerID)
	}

	// New accounts and fresh months see their grant on first read.
	if err := s.ledger.EnsureMonthlyGrant(ctx, owner, plan.Tier); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledger.Balance(ctx, owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tier":       plan.Tier,
		"owner_type": owner.Type,
		"owner_id":   owner.ID.String(),
		"balance":    balance,
	})
}

type adminCreditRequest struct {
	OwnerType string  `json:"owner_type"`
	OwnerID   string  `json:"owner_id"`
	Amount    float64 `json:"amount"`
	Ref       string  `json:"ref"`
}

func (r adminCreditRequest) owner() (ledgerdomain.Owner, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(r.OwnerID))
	if err != nil {
		return ledgerdomain.Owner{}, ledgerdomain.ErrInvalidOwner
	}
	owner := ledgerdomain.Owner{
		Type: ledgerdomain.OwnerType(strings.ToUpper(strings.TrimSpace(r.OwnerType))),
		ID:   id,
	}
	if !owner.Valid() {
		return ledgerdomain.Owner{}, ledgerdomain.ErrInvalidOwner
	}
	return owner, nil
}

func (s *Server) AdminTopup(c *gin.Context) {
	var req adminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	owner, err := req.owner()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledger.AddTopup(c.Request.Context(), owner, req.Amount, req.Ref); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledger.Balance(c.Request.Context(), owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) AdminAdjust(c *gin.Context) {
	var req adminCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	owner, err := req.owner()
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.ledger.AddAdjustment(c.Request.Context(), owner, req.Amount, req.Ref); err != nil {
		AbortWithError(c, err)
		return
	}

	balance, err := s.ledger.Balance(c.Request.Context(), owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

func (s *Server) AdminSetPlan(c *gin.Context) {
	var req entitlementdomain.SetPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	state, err := s.ents.SetPlan(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (s *Server) AdminMonthlyUsage(c *gin.Context) {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		month = time.Now().UTC().Format("2006-01")
	}

	report, err := s.airuns.MonthlyUsageReport(c.Request.Context(), month)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"month": month, "usage": report})
}

func (s *Server) AdminListRuns(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	runs, err := s.airuns.ListRuns(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

package server

import (
	"errors"
	"net/http"

	agentdomain "github.com/appdraft/appdraft/internal/agent/domain"
	airundomain "github.com/appdraft/appdraft/internal/airun/domain"
	backenddomain "github.com/appdraft/appdraft/internal/backend/domain"
	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	ledgerdomain "github.com/appdraft/appdraft/internal/ledger/domain"
	projectdomain "github.com/appdraft/appdraft/internal/project/domain"
	"github.com/appdraft/appdraft/internal/ratelimit"
	userdomain "github.com/appdraft/appdraft/internal/user/domain"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isBadRequestError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, userdomain.ErrInvalidToken):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ledgerdomain.ErrInsufficientCredits),
		errors.Is(err, airundomain.ErrNoCreditBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_credits",
			Message: err.Error(),
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, projectdomain.ErrProjectForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, projectdomain.ErrFileExists),
		errors.Is(err, backenddomain.ErrMigrationAlreadyApplied):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, agentdomain.ErrNoToolsProduced):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "no_tools_produced",
			Message: "the model did not produce any file changes",
		}
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests, slow down",
		}
	case errors.Is(err, airundomain.ErrVendorFailed),
		errors.Is(err, agentdomain.ErrProviderOverload),
		errors.Is(err, agentdomain.ErrProviderAuth),
		errors.Is(err, agentdomain.ErrProviderRequest):
		return http.StatusBadGateway, errorPayload{
			Type:    "vendor_error",
			Message: "upstream model provider request failed",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isBadRequestError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, airundomain.ErrEmptyMessage),
		errors.Is(err, airundomain.ErrInvalidRequest),
		errors.Is(err, ledgerdomain.ErrInvalidAmount),
		errors.Is(err, ledgerdomain.ErrInvalidOwner),
		errors.Is(err, ledgerdomain.ErrInvalidTier),
		errors.Is(err, entitlementdomain.ErrInvalidTier),
		errors.Is(err, entitlementdomain.ErrInvalidOwner),
		errors.Is(err, projectdomain.ErrInvalidPath),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, backenddomain.ErrEmptyMigration):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, userdomain.ErrUserNotFound),
		errors.Is(err, projectdomain.ErrProjectNotFound),
		errors.Is(err, projectdomain.ErrFileNotFound),
		errors.Is(err, projectdomain.ErrSnapshotNotFound),
		errors.Is(err, projectdomain.ErrSessionNotFound),
		errors.Is(err, airundomain.ErrRunNotFound),
		errors.Is(err, backenddomain.ErrBackendNotFound),
		errors.Is(err, backenddomain.ErrMigrationNotFound),
		errors.Is(err, entitlementdomain.ErrTeamNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

// classifyErrorForLog feeds the request logger an (error type, code) pair.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	switch {
	case status >= 500:
		return "server_error", payload.Type
	case status >= 400:
		return "client_error", payload.Type
	default:
		return "", ""
	}
}

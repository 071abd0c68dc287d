package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	entitlementdomain "github.com/appdraft/appdraft/internal/entitlement/domain"
	userdomain "github.com/appdraft/appdraft/internal/user/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type fakeUserService struct {
	registerCalls int
	users         map[string]*userdomain.User
}

func (f *fakeUserService) Register(ctx context.Context, email, displayName string) (*userdomain.User, error) {
	f.registerCalls++
	_ = ctx
	return &userdomain.User{
		ID:          snowflake.ID(200),
		Email:       email,
		DisplayName: displayName,
		APIToken:    "tok_fresh",
	}, nil
}

func (f *fakeUserService) Get(ctx context.Context, id snowflake.ID) (*userdomain.User, error) {
	_ = ctx
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, userdomain.ErrUserNotFound
}

func (f *fakeUserService) Authenticate(ctx context.Context, token string) (*userdomain.User, error) {
	_ = ctx
	if u, ok := f.users[token]; ok {
		return u, nil
	}
	return nil, userdomain.ErrInvalidToken
}

var testProLimits = entitlementdomain.PlanLimits{
	MaxInputTokens:  200000,
	MaxOutputTokens: 8192,
	MaxContextFiles: 10,
	MaxAIRunsPerDay: 200,
	BackendAllowed:  true,
	BackendQuota:    1,
}

type fakeEntitlementService struct {
	setPlanCalls int
	lastSetPlan  entitlementdomain.SetPlanRequest
}

func (f *fakeEntitlementService) EffectivePlanForUser(ctx context.Context, userID snowflake.ID) (entitlementdomain.EffectivePlan, error) {
	_ = ctx
	return entitlementdomain.EffectivePlan{
		Tier:      entitlementdomain.TierPro,
		OwnerType: entitlementdomain.SubscriptionOwnerUser,
		OwnerID:   userID,
	}, nil
}

func (f *fakeEntitlementService) PlanLimits(tier entitlementdomain.PlanTier) entitlementdomain.PlanLimits {
	_ = tier
	return testProLimits
}

func (f *fakeEntitlementService) TeamSeatCount(ctx context.Context, teamID snowflake.ID) (int, error) {
	_ = ctx
	_ = teamID
	return 1, nil
}

func (f *fakeEntitlementService) SetPlan(ctx context.Context, req entitlementdomain.SetPlanRequest) (*entitlementdomain.SubscriptionState, error) {
	f.setPlanCalls++
	f.lastSetPlan = req
	_ = ctx
	return &entitlementdomain.SubscriptionState{Tier: req.Tier, Status: req.Status}, nil
}

func (f *fakeEntitlementService) CanCreateBackend(ctx context.Context, ownerType entitlementdomain.SubscriptionOwnerType, ownerID snowflake.ID) (entitlementdomain.BackendQuotaCheck, error) {
	_ = ctx
	_ = ownerType
	_ = ownerID
	return entitlementdomain.BackendQuotaCheck{Allowed: true}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeUserService, *fakeEntitlementService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &fakeUserService{
		users: map[string]*userdomain.User{
			"tok_member": {ID: snowflake.ID(200), Email: "member@example.com", APIToken: "tok_member"},
			"tok_admin":  {ID: snowflake.ID(201), Email: "admin@example.com", APIToken: "tok_admin", IsAdmin: true},
		},
	}
	ents := &fakeEntitlementService{}

	r := gin.New()
	r.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:   r,
		Users: users,
		Ents:  ents,
	})
	return srv, users, ents
}

func doRequest(srv *Server, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)
	return w
}

func TestRegisterUserReturnsTokenOnce(t *testing.T) {
	srv, users, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/v1/users", "", []byte(`{"email":"new@example.com","display_name":"New"}`))
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, 1, users.registerCalls)

	var resp struct {
		User     userdomain.User `json:"user"`
		APIToken string          `json:"api_token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "new@example.com", resp.User.Email)
	require.Equal(t, "tok_fresh", resp.APIToken)

	// The token rides alongside the user object, never inside it.
	require.Equal(t, 1, strings.Count(w.Body.String(), "tok_fresh"))
}

func TestRegisterUserRejectsBlankEmail(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodPost, "/v1/users", "", []byte(`{"email":"  "}`))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "invalid_request", resp.Error.Type)
}

func TestAuthRequired(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/v1/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(srv, http.MethodGet, "/v1/user", "tok_wrong", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/user", nil)
	req.Header.Set("Authorization", "tok_member")
	rec := httptest.NewRecorder()
	srv.Engine().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code, "scheme-less header is rejected")

	w = doRequest(srv, http.MethodGet, "/v1/user", "tok_member", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var me userdomain.User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &me))
	require.Equal(t, "member@example.com", me.Email)
}

func TestGetUserPlan(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/v1/user/plan", "tok_member", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Tier      string                       `json:"tier"`
		OwnerType string                       `json:"owner_type"`
		OwnerID   string                       `json:"owner_id"`
		Limits    entitlementdomain.PlanLimits `json:"limits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, string(entitlementdomain.TierPro), resp.Tier)
	require.Equal(t, "200", resp.OwnerID)
	require.Equal(t, testProLimits, resp.Limits)
}

func TestAdminRequired(t *testing.T) {
	srv, _, ents := newTestServer(t)

	body := []byte(`{"owner_type":"INDIVIDUAL","owner_id":"200","tier":"PRO","status":"ACTIVE"}`)

	w := doRequest(srv, http.MethodPost, "/v1/admin/plans", "tok_member", body)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Zero(t, ents.setPlanCalls)

	w = doRequest(srv, http.MethodPost, "/v1/admin/plans", "tok_admin", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, ents.setPlanCalls)
	require.Equal(t, entitlementdomain.TierPro, ents.lastSetPlan.Tier)
}

func TestErrorPayloadShape(t *testing.T) {
	srv, _, _ := newTestServer(t)

	w := doRequest(srv, http.MethodGet, "/v1/projects/not-a-number", "tok_member", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Error.Type)
	require.NotEmpty(t, resp.Error.Message)
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	"github.com/smallbiznis/gymgate/internal/authorization"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	credentialdomain "github.com/smallbiznis/gymgate/internal/credential/domain"
	"github.com/smallbiznis/gymgate/internal/credential/qr"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"github.com/smallbiznis/gymgate/internal/ratelimit"
	transferdomain "github.com/smallbiznis/gymgate/internal/transfer/domain"
)

const (
	staffID  = "1001"
	memberID = "2002"
)

type fakeAccess struct {
	accessdomain.Service
	decision  *accessdomain.Decision
	err       error
	calls     int
	throttled []accessdomain.EvaluateRequest
}

func (f *fakeAccess) RecordThrottled(ctx context.Context, req accessdomain.EvaluateRequest) error {
	f.throttled = append(f.throttled, req)
	return nil
}

func (f *fakeAccess) Evaluate(ctx context.Context, req accessdomain.EvaluateRequest) (*accessdomain.Decision, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.decision, nil
}

// fakeAuthz grants the listed actions to every actor.
type fakeAuthz struct {
	allowed map[string]bool
	actors  []string
}

func (f *fakeAuthz) Authorize(ctx context.Context, actorID string, object string, action string) error {
	f.actors = append(f.actors, actorID)
	if f.allowed[action] {
		return nil
	}
	return authorization.ErrForbidden
}

type fakeMembers struct {
	memberdomain.Service
}

func (f *fakeMembers) GetByID(ctx context.Context, id string) (*memberdomain.Member, error) {
	parsed, err := snowflake.ParseString(id)
	if err != nil {
		return nil, memberdomain.ErrInvalidID
	}
	if id != memberID {
		return nil, memberdomain.ErrNotFound
	}
	return &memberdomain.Member{ID: parsed, Name: "Sara", Email: "sara@example.com", Role: memberdomain.RoleMember}, nil
}

type fakeMemberships struct {
	membershipdomain.Service
	freezeErr error
}

func (f *fakeMemberships) Freeze(ctx context.Context, req membershipdomain.FreezeRequest) (*membershipdomain.FreezeResponse, error) {
	if f.freezeErr != nil {
		return nil, f.freezeErr
	}
	resume := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	return &membershipdomain.FreezeResponse{
		Record:     membershipdomain.FreezeRecord{Reason: req.Reason, DurationDays: 30, ResumeDate: resume},
		ResumeDate: resume,
	}, nil
}

type fakeTransfers struct {
	transferdomain.Service
	approver string
	err      error
}

func (f *fakeTransfers) Approve(ctx context.Context, id string, approverID string) (*transferdomain.ApproveResponse, error) {
	f.approver = approverID
	if f.err != nil {
		return nil, f.err
	}
	return &transferdomain.ApproveResponse{TransferID: id, NewMembershipID: "9009", ToMemberID: memberID}, nil
}

func newTestServer(t *testing.T, p ServerParams) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())
	p.Gin = engine
	if p.AuthzSvc == nil {
		p.AuthzSvc = &fakeAuthz{}
	}
	NewServer(p)
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set(HeaderActorID, actor)
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestValidateAccessReturnsBareDecision(t *testing.T) {
	access := &fakeAccess{decision: &accessdomain.Decision{
		Access:     true,
		Message:    "QR validated",
		Provider:   "zetko",
		Timestamp:  "2025-06-01T09:30:00.000Z",
		GateOpened: true,
	}}
	engine := newTestServer(t, ServerParams{AccessSvc: access})

	rec := doJSON(t, engine, http.MethodPost, "/api/access/validate", "", map[string]any{
		"member_id":   memberID,
		"facility_id": "gym_001",
		"method":      "qr",
		"qr_code":     "token",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotContains(t, body, "data")
	require.Equal(t, true, body["access"])
	require.Equal(t, true, body["gate_opened"])
	require.Equal(t, "zetko", body["provider"])
}

func TestValidateAccessErrors(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		errType  string
		wantCode string
	}{
		{name: "facility not configured", err: gymconfigdomain.ErrNotFound, status: http.StatusNotFound, errType: "configuration_error"},
		{name: "unknown method", err: credentialdomain.ErrUnsupportedMethod, status: http.StatusBadRequest, errType: "validation_error", wantCode: "unsupported_method"},
		{name: "missing member", err: accessdomain.ErrInvalidMemberID, status: http.StatusBadRequest, errType: "validation_error", wantCode: "invalid_member_id"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestServer(t, ServerParams{AccessSvc: &fakeAccess{err: tc.err}})
			rec := doJSON(t, engine, http.MethodPost, "/api/access/validate", "", map[string]any{"facility_id": "gym_404"})

			require.Equal(t, tc.status, rec.Code)
			payload := decodeError(t, rec)
			require.Equal(t, tc.errType, payload.Type)
			if tc.wantCode != "" {
				require.Len(t, payload.Errors, 1)
				require.Equal(t, tc.wantCode, payload.Errors[0].Code)
			}
		})
	}
}

func TestValidateAccessRateLimitedBeforeEvaluation(t *testing.T) {
	limiter, err := ratelimit.NewAccessLimiter(ratelimit.AccessLimiterParams{
		Lc: fxtest.NewLifecycle(t),
		Cfg: config.Config{RateLimit: config.RateLimitConfig{
			Enabled:     true,
			AccessRate:  1,
			AccessBurst: 1,
		}},
		Log: zap.NewNop(),
	})
	require.NoError(t, err)

	access := &fakeAccess{decision: &accessdomain.Decision{Access: false, Message: "Invalid QR"}}
	engine := newTestServer(t, ServerParams{AccessSvc: access, AccessLimiter: limiter})

	body := map[string]any{"member_id": memberID, "facility_id": "gym_001", "gate_id": "gym_floor", "method": "qr"}
	first := doJSON(t, engine, http.MethodPost, "/api/access/validate", "", body)
	require.Equal(t, http.StatusOK, first.Code)

	second := doJSON(t, engine, http.MethodPost, "/api/access/validate", "", body)
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "rate_limited", decodeError(t, second).Type)
	require.Equal(t, 1, access.calls)
	require.Len(t, access.throttled, 1)
	require.Equal(t, "gym_floor", access.throttled[0].GateID)

	// Another gate has its own bucket.
	body["gate_id"] = "main_entrance"
	third := doJSON(t, engine, http.MethodPost, "/api/access/validate", "", body)
	require.Equal(t, http.StatusOK, third.Code)
}

func TestAdminRoutesRequireActor(t *testing.T) {
	engine := newTestServer(t, ServerParams{MembershipSvc: &fakeMemberships{}})

	rec := doJSON(t, engine, http.MethodPost, "/admin/memberships/"+memberID+"/freeze", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, engine, http.MethodPost, "/admin/memberships/"+memberID+"/freeze", "not-an-id", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminRoutesEnforceCapabilities(t *testing.T) {
	authz := &fakeAuthz{allowed: map[string]bool{authorization.ActionMembershipFreeze: true}}
	transfers := &fakeTransfers{}
	engine := newTestServer(t, ServerParams{
		AuthzSvc:      authz,
		MembershipSvc: &fakeMemberships{},
		TransferSvc:   transfers,
	})

	rec := doJSON(t, engine, http.MethodPost, "/admin/memberships/"+memberID+"/freeze", staffID, map[string]any{"reason": "Travel"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data membershipdomain.FreezeResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Travel", resp.Data.Record.Reason)
	require.Equal(t, 2025, resp.Data.ResumeDate.Year())

	rec = doJSON(t, engine, http.MethodPut, "/admin/transfers/77/approve", staffID, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, transfers.approver)
	require.Equal(t, []string{staffID, staffID}, authz.actors)
}

func TestFreezePolicyViolationIsValidationError(t *testing.T) {
	authz := &fakeAuthz{allowed: map[string]bool{authorization.ActionMembershipFreeze: true}}
	engine := newTestServer(t, ServerParams{
		AuthzSvc:      authz,
		MembershipSvc: &fakeMemberships{freezeErr: membershipdomain.ErrAlreadyFrozenThisYear},
	})

	rec := doJSON(t, engine, http.MethodPost, "/admin/memberships/"+memberID+"/freeze", staffID, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Equal(t, "already_frozen_this_year", payload.Errors[0].Code)
}

func TestApproveTransferUsesActorAsApprover(t *testing.T) {
	authz := &fakeAuthz{allowed: map[string]bool{authorization.ActionTransferApprove: true}}
	transfers := &fakeTransfers{}
	engine := newTestServer(t, ServerParams{AuthzSvc: authz, TransferSvc: transfers})

	rec := doJSON(t, engine, http.MethodPut, "/admin/transfers/77/approve", staffID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, staffID, transfers.approver)

	var resp struct {
		Data transferdomain.ApproveResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "9009", resp.Data.NewMembershipID)

	transfers.err = transferdomain.ErrApprovalInProgress
	rec = doJSON(t, engine, http.MethodPut, "/admin/transfers/77/approve", staffID, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestIssueQRToken(t *testing.T) {
	key, err := qr.DeriveKey("test-secret")
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	issuer := qr.NewWithKey(key, clk, config.NewStaticAccessPolicy(config.DefaultAccessPolicy()))

	authz := &fakeAuthz{}
	engine := newTestServer(t, ServerParams{AuthzSvc: authz, QRIssuer: issuer, MemberSvc: &fakeMembers{}})

	rec := doJSON(t, engine, http.MethodPost, "/api/access/qr-token", memberID, map[string]any{"member_id": memberID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, authz.actors)

	var resp struct {
		Data issueQRTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	valid, err := issuer.Validate(context.Background(), credentialdomain.Claim{MemberID: memberID, QRToken: resp.Data.QRCode})
	require.NoError(t, err)
	require.True(t, valid)

	// Someone else needs the capability.
	rec = doJSON(t, engine, http.MethodPost, "/api/access/qr-token", staffID, map[string]any{"member_id": memberID})
	require.Equal(t, http.StatusForbidden, rec.Code)

	authz.allowed = map[string]bool{authorization.ActionQRIssue: true}
	rec = doJSON(t, engine, http.MethodPost, "/api/access/qr-token", staffID, map[string]any{"member_id": "3003"})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	engine := newTestServer(t, ServerParams{})
	rec := doJSON(t, engine, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeError(t, rec).Type)
}

package service

import (
	"context"
	"testing"
	"time"

	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/audit/repository"
	"github.com/smallbiznis/gymgate/internal/auditcontext"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/testutil"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newAuditService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.NewDB(t, &auditdomain.AuditLog{})
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC))
	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	})
	return svc, clk
}

func TestAuditLogResolvesActorFromContext(t *testing.T) {
	svc, _ := newAuditService(t)
	ctx := auditcontext.WithActor(context.Background(), "admin", "42")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "10.0.0.1")

	target := "m-1"
	require.NoError(t, svc.AuditLog(ctx, "gym_001", "", nil, "membership.freeze", "membership", &target, map[string]any{"reason": "travel"}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{FacilityID: "gym_001"})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	require.Equal(t, "admin", entry.ActorType)
	require.Equal(t, "42", *entry.ActorID)
	require.Equal(t, "10.0.0.1", *entry.IPAddress)
	require.Equal(t, "req-1", entry.Metadata["request_id"])
	require.Equal(t, "travel", entry.Metadata["reason"])
}

func TestAuditLogDefaultsToSystemActor(t *testing.T) {
	svc, _ := newAuditService(t)
	require.NoError(t, svc.AuditLog(context.Background(), "", "", nil, "hardware.sync", "", nil, nil))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)
	require.Equal(t, string(auditdomain.ActorTypeSystem), resp.AuditLogs[0].ActorType)
	require.Equal(t, "unknown", resp.AuditLogs[0].TargetType)
	require.Nil(t, resp.AuditLogs[0].FacilityID)
}

func TestAuditLogRejectsEmptyAction(t *testing.T) {
	svc, _ := newAuditService(t)
	err := svc.AuditLog(context.Background(), "gym_001", "", nil, "  ", "membership", nil, nil)
	require.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestListPaginatesAndValidatesRange(t *testing.T) {
	svc, clk := newAuditService(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "gym_001", "", nil, "gym_config.upsert", "gym_configuration", nil, nil))
		clk.Advance(time.Second)
	}

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	require.False(t, second.HasMore)

	start := clk.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	require.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageToken: "garbage"}})
	require.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

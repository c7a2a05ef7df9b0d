package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/member/domain"
	"github.com/smallbiznis/gymgate/internal/member/repository"
	"github.com/smallbiznis/gymgate/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	return New(Params{
		DB:    testutil.NewDB(t, &domain.Member{}),
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGetMember(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateMemberRequest{Name: " Sara ", Email: "Sara@Example.com"})
	require.NoError(t, err)
	require.Equal(t, "Sara", created.Name)
	require.Equal(t, "sara@example.com", created.Email)
	require.Equal(t, domain.RoleMember, created.Role)

	found, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	require.Equal(t, created.ID, found.ID)
	require.Equal(t, "sara@example.com", found.Email)
}

func TestCreateMemberRejectsDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateMemberRequest{Name: "A", Email: "a@example.com"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateMemberRequest{Name: "B", Email: "A@example.com"})
	require.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreateMemberValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateMemberRequest{Email: "a@example.com"})
	require.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateMemberRequest{Name: "A", Email: "nope"})
	require.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(ctx, domain.CreateMemberRequest{Name: "A", Email: "a@example.com", Role: "owner"})
	require.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestGetMemberNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetByID(context.Background(), "12345")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), "abc")
	require.ErrorIs(t, err, domain.ErrInvalidID)
}

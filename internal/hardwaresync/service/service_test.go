package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/clock"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/repository"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	membershiprepo "github.com/smallbiznis/gymgate/internal/membership/repository"
	"github.com/smallbiznis/gymgate/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fakeClient struct {
	synced  []domain.SyncPayload
	removed []string
	err     error
}

func (c *fakeClient) Sync(_ context.Context, hw gymconfigdomain.HardwareSettings, payload domain.SyncPayload) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.synced = append(c.synced, payload)
	return "hw-" + payload.UserID, nil
}

func (c *fakeClient) Remove(_ context.Context, _ gymconfigdomain.HardwareSettings, hardwareUserID string) error {
	if c.err != nil {
		return c.err
	}
	c.removed = append(c.removed, hardwareUserID)
	return nil
}

type fakeConfigs struct {
	gymconfigdomain.Service
	resolved map[string]*gymconfigdomain.Resolved
}

func (f *fakeConfigs) Resolve(_ context.Context, facilityID string) (*gymconfigdomain.Resolved, error) {
	resolved, ok := f.resolved[facilityID]
	if !ok {
		return nil, gymconfigdomain.ErrNotFound
	}
	return resolved, nil
}

type fixture struct {
	db             *gorm.DB
	svc            *Service
	clock          *clock.FakeClock
	genID          *snowflake.Node
	client         *fakeClient
	repo           domain.Repository
	membershipRepo membershipdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t, &membershipdomain.Membership{}, &domain.HardwareSync{})
	clk := clock.NewFakeClock(time.Date(2025, 5, 1, 7, 0, 0, 0, time.UTC))
	client := &fakeClient{}
	repo := repository.Provide()
	membershipRepo := membershiprepo.Provide()
	configs := &fakeConfigs{resolved: map[string]*gymconfigdomain.Resolved{
		"gym_001": {FacilityID: "gym_001", Provider: "zetko", Hardware: &gymconfigdomain.HardwareSettings{
			APIURL: "https://hw.example.com", APIKey: "hw-key",
		}},
		"gym_002": {FacilityID: "gym_002", Provider: "generic"},
	}}

	svc := New(Params{
		DB:             db,
		Log:            zap.NewNop(),
		Clock:          clk,
		Repo:           repo,
		Client:         client,
		Configs:        configs,
		MembershipRepo: membershipRepo,
	})
	return &fixture{
		db:             db,
		svc:            svc,
		clock:          clk,
		genID:          testutil.NewNode(t),
		client:         client,
		repo:           repo,
		membershipRepo: membershipRepo,
	}
}

func (f *fixture) membership(t *testing.T, facilityID string, status membershipdomain.Status) *membershipdomain.Membership {
	t.Helper()
	now := f.clock.Now()
	m := &membershipdomain.Membership{
		ID:            f.genID.Generate(),
		MemberID:      f.genID.Generate(),
		FacilityID:    facilityID,
		Plan:          membershipdomain.PlanMonthly,
		Status:        status,
		StartAt:       now,
		ExpiryAt:      now.AddDate(0, 1, 0),
		FreezeHistory: datatypes.JSONSlice[membershipdomain.FreezeRecord]{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.membershipRepo.Insert(context.Background(), f.db, m))
	return m
}

func TestSyncPushesMemberAndStoresRecord(t *testing.T) {
	f := newFixture(t)
	m := f.membership(t, "gym_001", membershipdomain.StatusActive)

	record, err := f.svc.Sync(context.Background(), domain.SyncRequest{
		MemberID:      m.MemberID.String(),
		FacilityID:    "gym_001",
		AccessMethods: []string{"QR", "face", "qr"},
	})
	require.NoError(t, err)
	require.Equal(t, "hw-"+m.MemberID.String(), record.HardwareUserID)
	require.Equal(t, domain.SyncStatusActive, record.SyncStatus)

	require.Len(t, f.client.synced, 1)
	payload := f.client.synced[0]
	require.Equal(t, []string{"qr", "face"}, payload.AccessMethods)
	require.Equal(t, []string{"main_entrance", "gym_floor"}, payload.Permissions.Gates)
	require.True(t, m.ExpiryAt.Equal(payload.Permissions.ValidUntil))

	stored, err := f.repo.Find(context.Background(), f.db, m.MemberID, "gym_001")
	require.NoError(t, err)
	require.Equal(t, []string{"qr", "face"}, []string(stored.AccessMethods))
}

func TestSyncRejects(t *testing.T) {
	f := newFixture(t)
	frozen := f.membership(t, "gym_001", membershipdomain.StatusFrozen)
	active := f.membership(t, "gym_001", membershipdomain.StatusActive)
	noHardware := f.membership(t, "gym_002", membershipdomain.StatusActive)

	cases := []struct {
		name string
		req  domain.SyncRequest
		want error
	}{
		{"bad member", domain.SyncRequest{MemberID: "abc", FacilityID: "gym_001"}, domain.ErrInvalidMemberID},
		{"no facility", domain.SyncRequest{MemberID: active.MemberID.String()}, domain.ErrInvalidFacility},
		{"bad method", domain.SyncRequest{MemberID: active.MemberID.String(), FacilityID: "gym_001", AccessMethods: []string{"pin"}}, domain.ErrInvalidAccessMethod},
		{"frozen", domain.SyncRequest{MemberID: frozen.MemberID.String(), FacilityID: "gym_001"}, domain.ErrNoActiveMembership},
		{"other facility", domain.SyncRequest{MemberID: active.MemberID.String(), FacilityID: "gym_002"}, domain.ErrNoActiveMembership},
		{"no hardware", domain.SyncRequest{MemberID: noHardware.MemberID.String(), FacilityID: "gym_002"}, gymconfigdomain.ErrHardwareNotConfigured},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Sync(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}
	require.Empty(t, f.client.synced)
}

func TestSyncRejectsExpiredMembership(t *testing.T) {
	f := newFixture(t)
	m := f.membership(t, "gym_001", membershipdomain.StatusActive)
	f.clock.Advance(40 * 24 * time.Hour)

	_, err := f.svc.Sync(context.Background(), domain.SyncRequest{MemberID: m.MemberID.String(), FacilityID: "gym_001"})
	require.ErrorIs(t, err, domain.ErrNoActiveMembership)
}

func TestRemoveMarksRecordRemoved(t *testing.T) {
	f := newFixture(t)
	m := f.membership(t, "gym_001", membershipdomain.StatusActive)
	_, err := f.svc.Sync(context.Background(), domain.SyncRequest{MemberID: m.MemberID.String(), FacilityID: "gym_001"})
	require.NoError(t, err)

	req := domain.RemoveRequest{MemberID: m.MemberID.String(), FacilityID: "gym_001"}
	require.NoError(t, f.svc.Remove(context.Background(), req))
	require.NoError(t, f.svc.Remove(context.Background(), req))
	require.Equal(t, []string{"hw-" + m.MemberID.String()}, f.client.removed)

	stored, err := f.repo.Find(context.Background(), f.db, m.MemberID, "gym_001")
	require.NoError(t, err)
	require.Equal(t, domain.SyncStatusRemoved, stored.SyncStatus)

	err = f.svc.Remove(context.Background(), domain.RemoveRequest{MemberID: "777", FacilityID: "gym_001"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMembershipChangedFollowsStatus(t *testing.T) {
	f := newFixture(t)
	m := f.membership(t, "gym_001", membershipdomain.StatusActive)

	f.svc.MembershipChanged(context.Background(), m)
	require.Len(t, f.client.synced, 1)
	require.Equal(t, defaultAccessMethods, f.client.synced[0].AccessMethods)

	m.Status = membershipdomain.StatusFrozen
	f.svc.MembershipChanged(context.Background(), m)
	require.Equal(t, []string{"hw-" + m.MemberID.String()}, f.client.removed)

	stored, err := f.repo.Find(context.Background(), f.db, m.MemberID, "gym_001")
	require.NoError(t, err)
	require.Equal(t, domain.SyncStatusRemoved, stored.SyncStatus)
}

func TestMembershipChangedSwallowsFailures(t *testing.T) {
	f := newFixture(t)
	f.client.err = errors.New("connection refused")

	m := f.membership(t, "gym_001", membershipdomain.StatusActive)
	f.svc.MembershipChanged(context.Background(), m)

	unconfigured := f.membership(t, "gym_404", membershipdomain.StatusActive)
	f.svc.MembershipChanged(context.Background(), unconfigured)

	// Without a stored record there is nothing to remove.
	transferred := f.membership(t, "gym_001", membershipdomain.StatusTransferred)
	f.svc.MembershipChanged(context.Background(), transferred)

	stored, err := f.repo.Find(context.Background(), f.db, m.MemberID, "gym_001")
	require.NoError(t, err)
	require.Nil(t, stored)
}

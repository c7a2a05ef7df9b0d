package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/face/domain"
	"github.com/smallbiznis/gymgate/internal/face/repository"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	memberrepo "github.com/smallbiznis/gymgate/internal/member/repository"
	"github.com/smallbiznis/gymgate/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeMatcher struct {
	collections map[string]bool
	faces       map[string]map[string]string
	seq         int
	noFace      bool
	searchErr   error
	// matches maps image bytes to the face id the search should report.
	matches     map[string]string
	threshold   float64
}

func newFakeMatcher() *fakeMatcher {
	return &fakeMatcher{
		collections: map[string]bool{},
		faces:       map[string]map[string]string{},
		matches:     map[string]string{},
	}
}

func (f *fakeMatcher) CreateCollection(_ context.Context, id string) error {
	if f.collections[id] {
		return domain.ErrCollectionExists
	}
	f.collections[id] = true
	f.faces[id] = map[string]string{}
	return nil
}

func (f *fakeMatcher) IndexFace(_ context.Context, collectionID string, image []byte, externalID string) (string, error) {
	if f.noFace {
		return "", domain.ErrNoFaceDetected
	}
	f.seq++
	faceID := fmt.Sprintf("face-%d", f.seq)
	f.faces[collectionID][faceID] = externalID
	f.matches[string(image)] = faceID
	return faceID, nil
}

func (f *fakeMatcher) DeleteFaces(_ context.Context, collectionID string, faceIDs []string) error {
	for _, id := range faceIDs {
		delete(f.faces[collectionID], id)
	}
	return nil
}

func (f *fakeMatcher) SearchFaces(_ context.Context, collectionID string, image []byte, threshold float64) (*domain.Match, error) {
	f.threshold = threshold
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	faceID, ok := f.matches[string(image)]
	if !ok {
		return nil, nil
	}
	if _, live := f.faces[collectionID][faceID]; !live {
		return nil, nil
	}
	return &domain.Match{FaceID: faceID, Similarity: 99}, nil
}

type faceFixture struct {
	svc     domain.Service
	matcher *fakeMatcher
	db      *gorm.DB
	member  snowflake.ID
}

func newFaceFixture(t *testing.T) *faceFixture {
	t.Helper()
	db := testutil.NewDB(t, &memberdomain.Member{}, &domain.FaceEnrollment{})
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC))

	member := &memberdomain.Member{
		ID: node.Generate(), Name: "Aisha", Email: "aisha@example.com",
		Role: memberdomain.RoleMember, CreatedAt: clk.Now(), UpdatedAt: clk.Now(),
	}
	require.NoError(t, memberrepo.Provide().Insert(context.Background(), db, member))

	matcher := newFakeMatcher()
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		Clock:      clk,
		Policy:     config.NewStaticAccessPolicy(config.DefaultAccessPolicy()),
		Repo:       repository.Provide(),
		MemberRepo: memberrepo.Provide(),
		Matcher:    matcher,
	})
	return &faceFixture{svc: svc, matcher: matcher, db: db, member: member.ID}
}

func img(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestCollectionIDIsSlugged(t *testing.T) {
	require.Equal(t, "gogym-faces-gym-001", domain.CollectionID("Gym_001"))
}

func TestEnrollAndVerify(t *testing.T) {
	f := newFaceFixture(t)
	ctx := context.Background()
	memberID := f.member.String()

	resp, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: memberID, FacilityID: "gym_001", ImageBase64: img("selfie-1")})
	require.NoError(t, err)
	require.Equal(t, "face-1", resp.FaceID)
	require.Equal(t, "gogym-faces-gym-001", resp.CollectionID)

	ok, err := f.svc.Verify(ctx, memberID, "gym_001", img("selfie-1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, float64(80), f.matcher.threshold)

	ok, err = f.svc.Verify(ctx, memberID, "gym_001", img("stranger"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = f.svc.Verify(ctx, memberID, "gym_002", img("selfie-1"))
	require.NoError(t, err)
	require.False(t, ok, "no enrollment at the other facility")

	ok, err = f.svc.Verify(ctx, memberID, "gym_001", "%%%")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReEnrollReplacesPreviousFace(t *testing.T) {
	f := newFaceFixture(t)
	ctx := context.Background()
	memberID := f.member.String()

	_, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: memberID, FacilityID: "gym_001", ImageBase64: img("old")})
	require.NoError(t, err)
	resp, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: memberID, FacilityID: "gym_001", ImageBase64: img("new")})
	require.NoError(t, err)
	require.Equal(t, "face-2", resp.FaceID)

	require.Len(t, f.matcher.faces[resp.CollectionID], 1)

	ok, err := f.svc.Verify(ctx, memberID, "gym_001", img("old"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestEnrollNoFaceDetected(t *testing.T) {
	f := newFaceFixture(t)
	f.matcher.noFace = true

	_, err := f.svc.Enroll(context.Background(), domain.EnrollRequest{MemberID: f.member.String(), FacilityID: "gym_001", ImageBase64: img("blank")})
	require.ErrorIs(t, err, domain.ErrNoFaceDetected)

	var count int64
	require.NoError(t, f.db.Model(&domain.FaceEnrollment{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestEnrollValidation(t *testing.T) {
	f := newFaceFixture(t)
	ctx := context.Background()

	_, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: "abc", FacilityID: "gym_001", ImageBase64: img("x")})
	require.ErrorIs(t, err, domain.ErrInvalidMemberID)

	_, err = f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: f.member.String(), FacilityID: "gym_001", ImageBase64: ""})
	require.ErrorIs(t, err, domain.ErrInvalidImage)

	_, err = f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: "12345", FacilityID: "gym_001", ImageBase64: img("x")})
	require.ErrorIs(t, err, domain.ErrMemberNotFound)
}

func TestRevoke(t *testing.T) {
	f := newFaceFixture(t)
	ctx := context.Background()
	memberID := f.member.String()

	require.ErrorIs(t, f.svc.Revoke(ctx, memberID, "gym_001"), domain.ErrNotFound)

	resp, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: memberID, FacilityID: "gym_001", ImageBase64: img("selfie")})
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(ctx, memberID, "gym_001"))
	require.Empty(t, f.matcher.faces[resp.CollectionID])

	ok, err := f.svc.Verify(ctx, memberID, "gym_001", img("selfie"))
	require.NoError(t, err)
	require.False(t, ok)

	require.ErrorIs(t, f.svc.Revoke(ctx, memberID, "gym_001"), domain.ErrNotFound)
}

func TestVerifySurfacesMatcherFailure(t *testing.T) {
	f := newFaceFixture(t)
	ctx := context.Background()
	_, err := f.svc.Enroll(ctx, domain.EnrollRequest{MemberID: f.member.String(), FacilityID: "gym_001", ImageBase64: img("selfie")})
	require.NoError(t, err)

	f.matcher.searchErr = domain.ErrMatcherUnavailable
	ok, err := f.svc.Verify(ctx, f.member.String(), "gym_001", img("selfie"))
	require.False(t, ok)
	require.True(t, errors.Is(err, domain.ErrMatcherUnavailable))
}

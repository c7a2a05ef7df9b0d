package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/face/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	"github.com/smallbiznis/gymgate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rekognition-style limit on inline image bytes.
const maxImageBytes = 5 << 20

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Policy     *config.AccessPolicyHolder
	Repo       domain.Repository
	MemberRepo memberdomain.Repository
	Matcher    domain.Matcher

	Metrics  *metrics.Metrics    `optional:"true"`
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	policy     *config.AccessPolicyHolder
	repo       domain.Repository
	memberRepo memberdomain.Repository
	matcher    domain.Matcher
	metrics    *metrics.Metrics
	auditSvc   auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("face.service"),
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		matcher:    p.Matcher,
		metrics:    p.Metrics,
		auditSvc:   p.AuditSvc,
	}
}

func (s *Service) Enroll(ctx context.Context, req domain.EnrollRequest) (*domain.EnrollResponse, error) {
	memberID, facilityID, err := parseKey(req.MemberID, req.FacilityID)
	if err != nil {
		return nil, err
	}
	image, err := decodeImage(req.ImageBase64)
	if err != nil {
		return nil, err
	}

	member, err := s.memberRepo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}

	collectionID := domain.CollectionID(facilityID)
	if err := s.matcher.CreateCollection(ctx, collectionID); err != nil && !errors.Is(err, domain.ErrCollectionExists) {
		s.recordEnrollment(ctx, facilityID, "error")
		return nil, err
	}

	previous, err := s.repo.Find(ctx, s.db, memberID, facilityID)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		if err := s.matcher.DeleteFaces(ctx, previous.CollectionID, []string{previous.FaceID}); err != nil {
			s.recordEnrollment(ctx, facilityID, "error")
			return nil, err
		}
		// The old face is gone; drop the mapping so nothing points at it if indexing fails.
		if err := s.repo.Delete(ctx, s.db, memberID, facilityID); err != nil {
			return nil, err
		}
	}

	faceID, err := s.matcher.IndexFace(ctx, collectionID, image, memberID.String())
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrNoFaceDetected) {
			outcome = "no_face"
		}
		s.recordEnrollment(ctx, facilityID, outcome)
		return nil, err
	}

	enrollment := &domain.FaceEnrollment{
		MemberID:     memberID,
		FacilityID:   facilityID,
		FaceID:       faceID,
		CollectionID: collectionID,
		RegisteredAt: s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, enrollment); err != nil {
		return nil, err
	}

	s.recordEnrollment(ctx, facilityID, "enrolled")
	s.log.Info("face enrolled",
		zap.String("facility_id", facilityID),
		zap.String("collection_id", collectionID),
		zap.Bool("replaced", previous != nil),
	)
	s.audit(ctx, "face.enroll", memberID, facilityID, map[string]any{
		"collection_id": collectionID,
		"replaced":      previous != nil,
	})

	return &domain.EnrollResponse{FaceID: faceID, CollectionID: collectionID}, nil
}

func (s *Service) Revoke(ctx context.Context, memberIDRaw, facilityIDRaw string) error {
	memberID, facilityID, err := parseKey(memberIDRaw, facilityIDRaw)
	if err != nil {
		return err
	}

	enrollment, err := s.repo.Find(ctx, s.db, memberID, facilityID)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return domain.ErrNotFound
	}

	if err := s.matcher.DeleteFaces(ctx, enrollment.CollectionID, []string{enrollment.FaceID}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, s.db, memberID, facilityID); err != nil {
		return err
	}

	s.log.Info("face revoked", zap.String("facility_id", facilityID))
	s.audit(ctx, "face.revoke", memberID, facilityID, map[string]any{
		"collection_id": enrollment.CollectionID,
	})
	return nil
}

func (s *Service) Verify(ctx context.Context, memberIDRaw, facilityIDRaw, imageBase64 string) (bool, error) {
	memberID, facilityID, err := parseKey(memberIDRaw, facilityIDRaw)
	if err != nil {
		return false, nil
	}
	image, err := decodeImage(imageBase64)
	if err != nil {
		return false, nil
	}

	enrollment, err := s.repo.Find(ctx, s.db, memberID, facilityID)
	if err != nil {
		return false, err
	}
	if enrollment == nil {
		return false, nil
	}

	match, err := s.matcher.SearchFaces(ctx, enrollment.CollectionID, image, s.policy.Get().FaceMatchThreshold)
	if err != nil {
		return false, err
	}
	if match == nil {
		return false, nil
	}
	return match.FaceID == enrollment.FaceID, nil
}

func (s *Service) recordEnrollment(ctx context.Context, facilityID, outcome string) {
	s.metrics.RecordFaceEnrollment(ctx, facilityID, outcome)
}

func (s *Service) audit(ctx context.Context, action string, memberID snowflake.ID, facilityID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := memberID.String()
	if err := s.auditSvc.AuditLog(ctx, facilityID, "", nil, action, "face_enrollment", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseKey(memberIDRaw, facilityIDRaw string) (snowflake.ID, string, error) {
	memberID, err := snowflake.ParseString(strings.TrimSpace(memberIDRaw))
	if err != nil || memberID <= 0 {
		return 0, "", domain.ErrInvalidMemberID
	}
	facilityID := strings.TrimSpace(facilityIDRaw)
	if facilityID == "" {
		return 0, "", domain.ErrInvalidFacility
	}
	return memberID, facilityID, nil
}

// decodeImage accepts standard base64 with or without a data URI prefix.
func decodeImage(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ";base64,"); idx >= 0 && strings.HasPrefix(raw, "data:") {
		raw = raw[idx+len(";base64,"):]
	}
	if raw == "" {
		return nil, domain.ErrInvalidImage
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		image, err = base64.RawStdEncoding.DecodeString(raw)
		if err != nil {
			return nil, domain.ErrInvalidImage
		}
	}
	if len(image) == 0 || len(image) > maxImageBytes {
		return nil, domain.ErrInvalidImage
	}
	return image, nil
}

package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/clock"
	credentialdomain "github.com/smallbiznis/gymgate/internal/credential/domain"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var defaultAccessMethods = []string{
	string(credentialdomain.MethodFace),
	string(credentialdomain.MethodQR),
	string(credentialdomain.MethodBluetooth),
}

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	Clock          clock.Clock
	Repo           domain.Repository
	Client         domain.Client
	Configs        gymconfigdomain.Service
	MembershipRepo membershipdomain.Repository

	AuditSvc auditdomain.Service `optional:"true"`
}

// Service keeps facility hardware in step with memberships. It is also the
// membership observer, so lifecycle changes propagate without a caller.
type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	clock          clock.Clock
	repo           domain.Repository
	client         domain.Client
	configs        gymconfigdomain.Service
	membershipRepo membershipdomain.Repository
	auditSvc       auditdomain.Service
}

func New(p Params) *Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("hardwaresync.service"),
		clock:          p.Clock,
		repo:           p.Repo,
		client:         p.Client,
		configs:        p.Configs,
		membershipRepo: p.MembershipRepo,
		auditSvc:       p.AuditSvc,
	}
}

func (s *Service) Sync(ctx context.Context, req domain.SyncRequest) (*domain.HardwareSync, error) {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return nil, err
	}
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	methods, err := normalizeMethods(req.AccessMethods)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipRepo.FindCurrentByMember(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if !s.grantsAccess(membership) || membership.FacilityID != facilityID {
		return nil, domain.ErrNoActiveMembership
	}

	record, err := s.push(ctx, membership, methods)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, "hardware.sync", record)
	return record, nil
}

func (s *Service) Remove(ctx context.Context, req domain.RemoveRequest) error {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return err
	}
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return domain.ErrInvalidFacility
	}

	record, err := s.repo.Find(ctx, s.db, memberID, facilityID)
	if err != nil {
		return err
	}
	if record == nil {
		return domain.ErrNotFound
	}
	if err := s.pull(ctx, record); err != nil {
		return err
	}
	s.audit(ctx, "hardware.remove", record)
	return nil
}

// MembershipChanged syncs members whose membership grants access and removes
// the rest. Facilities without hardware settings are skipped.
func (s *Service) MembershipChanged(ctx context.Context, membership *membershipdomain.Membership) {
	if membership == nil {
		return
	}
	logger := s.log.With(
		zap.String("member_id", membership.MemberID.String()),
		zap.String("facility_id", membership.FacilityID),
		zap.String("status", string(membership.Status)),
	)

	var err error
	if s.grantsAccess(membership) {
		methods := defaultAccessMethods
		if existing, findErr := s.repo.Find(ctx, s.db, membership.MemberID, membership.FacilityID); findErr == nil && existing != nil && len(existing.AccessMethods) > 0 {
			methods = existing.AccessMethods
		}
		_, err = s.push(ctx, membership, methods)
	} else {
		var record *domain.HardwareSync
		record, err = s.repo.Find(ctx, s.db, membership.MemberID, membership.FacilityID)
		if err == nil && record != nil {
			err = s.pull(ctx, record)
		}
	}

	switch {
	case err == nil:
	case errors.Is(err, gymconfigdomain.ErrNotFound), errors.Is(err, gymconfigdomain.ErrHardwareNotConfigured):
		logger.Debug("hardware sync skipped", zap.Error(err))
	default:
		logger.Warn("hardware sync failed", zap.Error(err))
	}
}

func (s *Service) push(ctx context.Context, membership *membershipdomain.Membership, methods []string) (*domain.HardwareSync, error) {
	hw, err := s.hardware(ctx, membership.FacilityID)
	if err != nil {
		return nil, err
	}

	hardwareUserID, err := s.client.Sync(ctx, *hw, domain.SyncPayload{
		UserID:        membership.MemberID.String(),
		AccessMethods: methods,
		Permissions: domain.Permissions{
			Gates:      domain.DefaultGates,
			TimeSlots:  domain.DefaultTimeSlots,
			ValidUntil: membership.ExpiryAt.UTC(),
		},
	})
	if err != nil {
		return nil, err
	}

	record := &domain.HardwareSync{
		MemberID:       membership.MemberID,
		FacilityID:     membership.FacilityID,
		HardwareUserID: hardwareUserID,
		SyncStatus:     domain.SyncStatusActive,
		AccessMethods:  datatypes.JSONSlice[string](methods),
		LastSyncAt:     s.clock.Now(),
	}
	if err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}
	s.log.Info("member synced to hardware",
		zap.String("member_id", record.MemberID.String()),
		zap.String("facility_id", record.FacilityID),
		zap.String("hardware_user_id", hardwareUserID),
	)
	return record, nil
}

func (s *Service) pull(ctx context.Context, record *domain.HardwareSync) error {
	if record.SyncStatus == domain.SyncStatusRemoved {
		return nil
	}
	hw, err := s.hardware(ctx, record.FacilityID)
	if err != nil {
		return err
	}
	if err := s.client.Remove(ctx, *hw, record.HardwareUserID); err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.repo.MarkRemoved(ctx, s.db, record.MemberID, record.FacilityID, now); err != nil {
		return err
	}
	record.SyncStatus = domain.SyncStatusRemoved
	record.LastSyncAt = now
	return nil
}

func (s *Service) hardware(ctx context.Context, facilityID string) (*gymconfigdomain.HardwareSettings, error) {
	resolved, err := s.configs.Resolve(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	if resolved.Hardware == nil {
		return nil, gymconfigdomain.ErrHardwareNotConfigured
	}
	return resolved.Hardware, nil
}

func (s *Service) grantsAccess(m *membershipdomain.Membership) bool {
	return m != nil && m.Status == membershipdomain.StatusActive && !s.clock.Now().After(m.ExpiryAt)
}

func (s *Service) audit(ctx context.Context, action string, record *domain.HardwareSync) {
	if s.auditSvc == nil {
		return
	}
	targetID := record.MemberID.String()
	if err := s.auditSvc.AuditLog(ctx, record.FacilityID, "", nil, action, "member", &targetID, map[string]any{
		"hardware_user_id": record.HardwareUserID,
		"access_methods":   []string(record.AccessMethods),
		"last_sync_at":     record.LastSyncAt.Format(time.RFC3339),
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizeMethods(raw []string) ([]string, error) {
	if len(raw) == 0 {
		return defaultAccessMethods, nil
	}
	seen := map[credentialdomain.Method]bool{}
	out := make([]string, 0, len(raw))
	for _, value := range raw {
		method := credentialdomain.ParseMethod(value)
		switch method {
		case credentialdomain.MethodQR, credentialdomain.MethodBluetooth, credentialdomain.MethodFace:
		default:
			return nil, domain.ErrInvalidAccessMethod
		}
		if seen[method] {
			continue
		}
		seen[method] = true
		out = append(out, string(method))
	}
	return out, nil
}

func parseMemberID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidMemberID
	}
	return id, nil
}

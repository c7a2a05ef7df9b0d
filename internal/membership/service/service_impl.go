package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	"github.com/smallbiznis/gymgate/internal/membership/domain"
	"github.com/smallbiznis/gymgate/internal/observability/metrics"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxFreezeReasonLength = 255

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Policy     *config.AccessPolicyHolder
	Repo       domain.Repository
	MemberRepo memberdomain.Repository

	Metrics  *metrics.GateMetrics `optional:"true"`
	AuditSvc auditdomain.Service  `optional:"true"`
	Observer domain.Observer      `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	policy     *config.AccessPolicyHolder
	repo       domain.Repository
	memberRepo memberdomain.Repository
	metrics    *metrics.GateMetrics
	auditSvc   auditdomain.Service
	observer   domain.Observer
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("membership.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		policy:     p.Policy,
		repo:       p.Repo,
		memberRepo: p.MemberRepo,
		metrics:    p.Metrics,
		auditSvc:   p.AuditSvc,
		observer:   p.Observer,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMembershipRequest) (*domain.Membership, error) {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return nil, err
	}
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	plan := domain.Plan(strings.ToLower(strings.TrimSpace(req.Plan)))
	months, ok := plan.Months()
	if !ok {
		return nil, domain.ErrInvalidPlan
	}

	now := s.clock.Now()
	startAt := now
	if req.StartAt != nil && !req.StartAt.IsZero() {
		startAt = req.StartAt.UTC()
	}

	member, err := s.memberRepo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrMemberNotFound
	}

	membership := &domain.Membership{
		ID:            s.genID.Generate(),
		MemberID:      memberID,
		FacilityID:    facilityID,
		Plan:          plan,
		Status:        domain.StatusActive,
		StartAt:       startAt,
		ExpiryAt:      startAt.AddDate(0, months, 0),
		FreezeHistory: datatypes.JSONSlice[domain.FreezeRecord]{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, membership); err != nil {
		return nil, err
	}

	s.audit(ctx, "membership.create", membership, map[string]any{
		"plan":      string(plan),
		"expiry_at": membership.ExpiryAt,
	})
	s.notify(ctx, membership)
	return membership, nil
}

func (s *Service) GetByMember(ctx context.Context, memberID string) (*domain.MembershipView, error) {
	id, err := parseMemberID(memberID)
	if err != nil {
		return nil, err
	}
	membership, err := s.repo.FindCurrentByMember(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if membership == nil {
		return nil, domain.ErrNotFound
	}

	resolution := resolve(membership, s.clock.Now())
	return &domain.MembershipView{
		Membership: membership,
		Access:     resolution.Valid,
		Reason:     resolution.Reason,
	}, nil
}

func (s *Service) List(ctx context.Context, req domain.ListMembershipRequest) (domain.ListMembershipResponse, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case "", domain.StatusActive, domain.StatusFrozen, domain.StatusExpired, domain.StatusTransferred:
	default:
		return domain.ListMembershipResponse{}, domain.ErrInvalidStatus
	}

	decoded, err := req.Pagination.Decode()
	if err != nil {
		return domain.ListMembershipResponse{}, err
	}
	var cursor *domain.Cursor
	if decoded != nil {
		id, idErr := snowflake.ParseString(decoded.ID)
		createdAt, timeErr := decoded.Time()
		if idErr != nil || timeErr != nil {
			return domain.ListMembershipResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Pagination.Size(50, 250)
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		FacilityID: strings.TrimSpace(req.FacilityID),
		Status:     status,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListMembershipResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Membership) string {
		token, err := pagination.EncodeCursor(pagination.NewCursor(item.ID.String(), item.CreatedAt))
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	memberships := make([]domain.Membership, 0, len(items))
	for _, item := range items {
		memberships = append(memberships, *item)
	}
	return domain.ListMembershipResponse{PageInfo: *pageInfo, Memberships: memberships}, nil
}

// Resolve decides whether the member may currently enter. An unparseable or
// unknown member is reported as not found, never as an error.
func (s *Service) Resolve(ctx context.Context, memberID string) (domain.Resolution, error) {
	id, err := parseMemberID(memberID)
	if err != nil {
		return domain.Resolution{Reason: domain.ReasonNotFound}, nil
	}
	membership, err := s.repo.FindCurrentByMember(ctx, s.db, id)
	if err != nil {
		return domain.Resolution{}, err
	}
	return resolve(membership, s.clock.Now()), nil
}

// resolve checks existence, then freeze, then expiry. A frozen membership is
// never reported as expired.
func resolve(membership *domain.Membership, now time.Time) domain.Resolution {
	if membership == nil || membership.Status == domain.StatusTransferred {
		return domain.Resolution{Reason: domain.ReasonNotFound}
	}
	if membership.Status == domain.StatusFrozen {
		return domain.Resolution{Reason: domain.ReasonFrozen, Membership: membership}
	}
	if membership.Lapsed(now) {
		return domain.Resolution{Reason: domain.ReasonExpired, Membership: membership}
	}
	return domain.Resolution{Valid: true, Membership: membership}
}

func (s *Service) Freeze(ctx context.Context, req domain.FreezeRequest) (*domain.FreezeResponse, error) {
	memberID, err := parseMemberID(req.MemberID)
	if err != nil {
		return nil, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = domain.DefaultFreezeReason
	}
	if len(reason) > maxFreezeReasonLength {
		return nil, domain.ErrReasonTooLong
	}
	durationDays := s.policy.Get().FreezeDurationDays

	var frozen *domain.Membership
	var record domain.FreezeRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.lockCurrent(ctx, tx, memberID)
		if err != nil {
			return err
		}
		if membership.Plan != domain.PlanYearly {
			return domain.ErrNotYearlyPlan
		}

		now := s.clock.Now()
		if membership.FrozenInYear(now.Year()) {
			return domain.ErrAlreadyFrozenThisYear
		}
		if membership.Status != domain.StatusActive {
			return domain.ErrNotActive
		}

		record = domain.FreezeRecord{
			FreezeDate:   now,
			Reason:       reason,
			DurationDays: durationDays,
			ResumeDate:   now.AddDate(0, 0, durationDays),
		}
		history := make(datatypes.JSONSlice[domain.FreezeRecord], 0, len(membership.FreezeHistory)+1)
		history = append(history, membership.FreezeHistory...)
		history = append(history, record)

		rows, err := s.repo.Freeze(ctx, tx, membership.ID, domain.FreezeUpdate{
			FrozenAt: record.FreezeDate,
			ResumeAt: record.ResumeDate,
			Reason:   reason,
			History:  history,
		}, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrAlreadyFrozenThisYear
		}

		membership.Status = domain.StatusFrozen
		membership.FrozenAt = &record.FreezeDate
		membership.ResumeAt = &record.ResumeDate
		membership.FreezeReason = &reason
		membership.FreezeHistory = history
		frozen = membership
		return nil
	})
	if err != nil {
		s.metrics.IncLifecycleError("freeze", err)
		return nil, err
	}

	s.metrics.IncTransition("membership", string(domain.StatusActive), string(domain.StatusFrozen))
	s.log.Info("membership frozen",
		zap.String("membership_id", frozen.ID.String()),
		zap.Time("resume_date", record.ResumeDate),
	)
	s.audit(ctx, "membership.freeze", frozen, map[string]any{
		"reason":      reason,
		"resume_date": record.ResumeDate,
	})
	s.notify(ctx, frozen)

	return &domain.FreezeResponse{Record: record, ResumeDate: record.ResumeDate}, nil
}

func (s *Service) Unfreeze(ctx context.Context, memberID string) (*domain.UnfreezeResponse, error) {
	id, err := parseMemberID(memberID)
	if err != nil {
		return nil, err
	}

	var resp domain.UnfreezeResponse
	var unfrozen *domain.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		membership, err := s.lockCurrent(ctx, tx, id)
		if err != nil {
			return err
		}
		if membership.Status != domain.StatusFrozen || membership.FrozenAt == nil {
			return domain.ErrNotFrozen
		}

		now := s.clock.Now()
		days := WholeDaysBetween(*membership.FrozenAt, now)
		newExpiry := membership.ExpiryAt.AddDate(0, 0, days)

		rows, err := s.repo.Unfreeze(ctx, tx, membership.ID, newExpiry, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFrozen
		}

		membership.Status = domain.StatusActive
		membership.ExpiryAt = newExpiry
		membership.UnfrozenAt = &now
		membership.FrozenAt = nil
		membership.ResumeAt = nil
		membership.FreezeReason = nil
		unfrozen = membership
		resp = domain.UnfreezeResponse{NewExpiryDate: newExpiry, DaysExtended: days}
		return nil
	})
	if err != nil {
		s.metrics.IncLifecycleError("unfreeze", err)
		return nil, err
	}

	s.metrics.IncTransition("membership", string(domain.StatusFrozen), string(domain.StatusActive))
	s.audit(ctx, "membership.unfreeze", unfrozen, map[string]any{
		"days_extended":   resp.DaysExtended,
		"new_expiry_date": resp.NewExpiryDate,
	})
	s.notify(ctx, unfrozen)
	return &resp, nil
}

// WholeDaysBetween floors the elapsed time to whole days; negative spans count as zero.
func WholeDaysBetween(from, to time.Time) int {
	elapsed := to.Sub(from)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / (24 * time.Hour))
}

func (s *Service) lockCurrent(ctx context.Context, tx *gorm.DB, memberID snowflake.ID) (*domain.Membership, error) {
	start := time.Now()
	membership, err := s.repo.FindCurrentByMemberForUpdate(ctx, tx, memberID)
	s.metrics.ObserveDBLockWait(metrics.LockResourceMembership, time.Since(start))
	if err != nil {
		return nil, err
	}
	if membership == nil || membership.Status == domain.StatusTransferred {
		return nil, domain.ErrNotFound
	}
	return membership, nil
}

func (s *Service) audit(ctx context.Context, action string, membership *domain.Membership, metadata map[string]any) {
	if s.auditSvc == nil || membership == nil {
		return
	}
	targetID := membership.ID.String()
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["member_id"] = membership.MemberID.String()
	if err := s.auditSvc.AuditLog(ctx, membership.FacilityID, "", nil, action, "membership", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) notify(ctx context.Context, membership *domain.Membership) {
	if s.observer == nil || membership == nil {
		return
	}
	s.observer.MembershipChanged(context.WithoutCancel(ctx), membership)
}

func parseMemberID(raw string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidMemberID
	}
	return id, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	memberservice "github.com/smallbiznis/gymgate/internal/member/service"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"github.com/smallbiznis/gymgate/internal/observability/metrics"
	"github.com/smallbiznis/gymgate/internal/ratelimit"
	"github.com/smallbiznis/gymgate/internal/transfer/domain"
	"github.com/smallbiznis/gymgate/pkg/db"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const approveLockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Policy         *config.AccessPolicyHolder
	Repo           domain.Repository
	MemberRepo     memberdomain.Repository
	MembershipRepo membershipdomain.Repository
	Mutex          ratelimit.Mutex

	Metrics  *metrics.GateMetrics      `optional:"true"`
	AuditSvc auditdomain.Service       `optional:"true"`
	Observer membershipdomain.Observer `optional:"true"`
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	clock          clock.Clock
	policy         *config.AccessPolicyHolder
	repo           domain.Repository
	memberRepo     memberdomain.Repository
	membershipRepo membershipdomain.Repository
	mutex          ratelimit.Mutex
	metrics        *metrics.GateMetrics
	auditSvc       auditdomain.Service
	observer       membershipdomain.Observer
}

func New(p Params) domain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("transfer.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		policy:         p.Policy,
		repo:           p.Repo,
		memberRepo:     p.MemberRepo,
		membershipRepo: p.MembershipRepo,
		mutex:          p.Mutex,
		metrics:        p.Metrics,
		auditSvc:       p.AuditSvc,
		observer:       p.Observer,
	}
}

func (s *Service) Request(ctx context.Context, req domain.RequestTransferRequest) (*domain.RequestTransferResponse, error) {
	fromMemberID, err := parseID(req.FromMemberID, domain.ErrInvalidMemberID)
	if err != nil {
		return nil, err
	}

	var toMemberID *snowflake.ID
	var details domain.RecipientDetails
	rawTo := strings.TrimSpace(req.ToMemberID)
	switch {
	case rawTo != "" && req.ToMember != nil:
		return nil, domain.ErrRecipientAmbiguous
	case rawTo != "":
		id, err := parseID(rawTo, domain.ErrInvalidMemberID)
		if err != nil {
			return nil, err
		}
		if id == fromMemberID {
			return nil, domain.ErrSelfTransfer
		}
		recipient, err := s.memberRepo.FindByID(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if recipient == nil {
			return nil, domain.ErrRecipientNotFound
		}
		toMemberID = &id
	case req.ToMember != nil:
		candidate, err := memberservice.Build(s.genID, s.clock, recipientRequest(*req.ToMember))
		if err != nil {
			return nil, err
		}
		details = domain.RecipientDetails{Name: candidate.Name, Email: candidate.Email, Phone: candidate.Phone}
	default:
		return nil, domain.ErrRecipientRequired
	}

	source, err := s.membershipRepo.FindCurrentByMember(ctx, s.db, fromMemberID)
	if err != nil {
		return nil, err
	}
	if source == nil || source.Status == membershipdomain.StatusTransferred {
		return nil, membershipdomain.ErrNotFound
	}
	now := s.clock.Now()
	if source.Status != membershipdomain.StatusActive || source.Lapsed(now) {
		return nil, membershipdomain.ErrNotActive
	}
	open, err := s.repo.FindOpenByMembership(ctx, s.db, source.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, domain.ErrTransferPending
	}

	policy := s.policy.Get()
	transfer := &domain.Transfer{
		ID:               s.genID.Generate(),
		FromMemberID:     fromMemberID,
		FromMembershipID: source.ID,
		ToMemberID:       toMemberID,
		ToMemberDetails:  datatypes.NewJSONType(details),
		Fee:              policy.TransferFee,
		Currency:         policy.TransferCurrency,
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		Status:           domain.StatusPendingPayment,
		RequestedAt:      now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Insert(ctx, s.db, transfer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrTransferPending
		}
		return nil, err
	}

	s.log.Info("transfer requested",
		zap.String("transfer_id", transfer.ID.String()),
		zap.String("from_membership_id", source.ID.String()),
	)
	s.audit(ctx, "transfer.request", source.FacilityID, transfer, map[string]any{
		"fee":      transfer.Fee,
		"currency": transfer.Currency,
	})

	return &domain.RequestTransferResponse{
		TransferID:  transfer.ID.String(),
		FeeRequired: transfer.Fee,
		Currency:    transfer.Currency,
		Status:      transfer.Status,
	}, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, id string, req domain.ConfirmPaymentRequest) (*domain.Transfer, error) {
	transferID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}

	var paid *domain.Transfer
	changed := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transfer, err := s.lockTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if transfer.FeePaid {
			paid = transfer
			return nil
		}
		if transfer.Status != domain.StatusPendingPayment {
			return domain.ErrInvalidState
		}

		now := s.clock.Now()
		method := strings.TrimSpace(req.PaymentMethod)
		if method == "" {
			method = transfer.PaymentMethod
		}
		var reference *string
		if ref := strings.TrimSpace(req.PaymentReference); ref != "" {
			reference = &ref
		}

		rows, err := s.repo.MarkPaid(ctx, tx, transfer.ID, method, reference, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrInvalidState
		}

		transfer.FeePaid = true
		transfer.Status = domain.StatusPendingApproval
		transfer.PaymentMethod = method
		transfer.PaymentReference = reference
		transfer.PaidAt = &now
		transfer.UpdatedAt = now
		paid = transfer
		changed = true
		return nil
	})
	if err != nil {
		s.metrics.IncLifecycleError("transfer_payment", err)
		return nil, err
	}

	if changed {
		s.metrics.IncTransition("membership_transfer", string(domain.StatusPendingPayment), string(domain.StatusPendingApproval))
		s.audit(ctx, "transfer.payment_confirmed", "", paid, map[string]any{
			"payment_method": paid.PaymentMethod,
		})
	}
	return paid, nil
}

func (s *Service) Approve(ctx context.Context, id string, approverID string) (*domain.ApproveResponse, error) {
	transferID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	approver, err := snowflake.ParseString(strings.TrimSpace(approverID))
	if err != nil || approver <= 0 {
		return nil, domain.ErrApproverRequired
	}

	release, err := s.mutex.Acquire(ctx, fmt.Sprintf("transfer:approve:%s", transferID), approveLockTTL)
	if err != nil {
		if errors.Is(err, ratelimit.ErrLockHeld) {
			return nil, domain.ErrApprovalInProgress
		}
		return nil, err
	}
	defer release()

	var (
		resp     *domain.ApproveResponse
		source   *membershipdomain.Membership
		created  *membershipdomain.Membership
		facility string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transfer, err := s.lockTransfer(ctx, tx, transferID)
		if err != nil {
			return err
		}
		if transfer.Status == domain.StatusCompleted {
			resp = completedResponse(transfer)
			return nil
		}
		if !transfer.FeePaid {
			return domain.ErrFeeNotPaid
		}
		if transfer.Status != domain.StatusPendingApproval {
			return domain.ErrInvalidState
		}

		now := s.clock.Now()
		recipientID, err := s.materializeRecipient(ctx, tx, transfer)
		if err != nil {
			return err
		}

		start := time.Now()
		current, err := s.membershipRepo.FindCurrentByMemberForUpdate(ctx, tx, transfer.FromMemberID)
		s.metrics.ObserveDBLockWait(metrics.LockResourceTransfer, time.Since(start))
		if err != nil {
			return err
		}
		if current == nil || current.ID != transfer.FromMembershipID || current.Status != membershipdomain.StatusActive || current.Lapsed(now) {
			return membershipdomain.ErrNotActive
		}

		destination, err := s.membershipRepo.FindByTransferID(ctx, tx, transfer.ID)
		if err != nil {
			return err
		}
		if destination == nil {
			fromMemberID := transfer.FromMemberID
			transferRef := transfer.ID
			destination = &membershipdomain.Membership{
				ID:              s.genID.Generate(),
				MemberID:        recipientID,
				FacilityID:      current.FacilityID,
				Plan:            current.Plan,
				Status:          membershipdomain.StatusActive,
				StartAt:         current.StartAt,
				ExpiryAt:        current.ExpiryAt,
				// The yearly freeze allowance travels with the term.
				FreezeHistory:   append(datatypes.JSONSlice[membershipdomain.FreezeRecord]{}, current.FreezeHistory...),
				TransferredFrom: &fromMemberID,
				TransferID:      &transferRef,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.membershipRepo.Insert(ctx, tx, destination); err != nil {
				return err
			}
		}

		rows, err := s.membershipRepo.MarkTransferred(ctx, tx, current.ID, recipientID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return membershipdomain.ErrNotActive
		}

		rows, err = s.repo.Complete(ctx, tx, transfer.ID, domain.Completion{
			ToMemberID:      recipientID,
			ApprovedBy:      approver,
			NewMembershipID: destination.ID,
			ApprovedAt:      now,
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrInvalidState
		}

		current.Status = membershipdomain.StatusTransferred
		current.TransferredTo = &recipientID
		current.TransferredAt = &now
		source = current
		created = destination
		facility = current.FacilityID
		resp = &domain.ApproveResponse{
			TransferID:      transfer.ID.String(),
			NewMembershipID: destination.ID.String(),
			ToMemberID:      recipientID.String(),
		}
		return nil
	})
	if err != nil {
		s.metrics.IncLifecycleError("transfer_approve", err)
		return nil, err
	}
	if created == nil {
		return resp, nil
	}

	s.metrics.IncTransition("membership_transfer", string(domain.StatusPendingApproval), string(domain.StatusCompleted))
	s.metrics.IncTransition("membership", string(membershipdomain.StatusActive), string(membershipdomain.StatusTransferred))
	s.log.Info("transfer completed",
		zap.String("transfer_id", resp.TransferID),
		zap.String("new_membership_id", resp.NewMembershipID),
	)
	targetID := resp.TransferID
	if s.auditSvc != nil {
		if err := s.auditSvc.AuditLog(ctx, facility, "", nil, "transfer.approve", "membership_transfer", &targetID, map[string]any{
			"approved_by":       approver.String(),
			"to_member_id":      resp.ToMemberID,
			"new_membership_id": resp.NewMembershipID,
		}); err != nil {
			s.log.Warn("audit log failed", zap.String("action", "transfer.approve"), zap.Error(err))
		}
	}
	if s.observer != nil {
		detached := context.WithoutCancel(ctx)
		s.observer.MembershipChanged(detached, source)
		s.observer.MembershipChanged(detached, created)
	}
	return resp, nil
}

// materializeRecipient returns the recipient's member id, creating the member
// from the stored details when no member with that email exists yet.
func (s *Service) materializeRecipient(ctx context.Context, tx *gorm.DB, transfer *domain.Transfer) (snowflake.ID, error) {
	if transfer.ToMemberID != nil {
		recipient, err := s.memberRepo.FindByID(ctx, tx, *transfer.ToMemberID)
		if err != nil {
			return 0, err
		}
		if recipient == nil {
			return 0, domain.ErrRecipientNotFound
		}
		return recipient.ID, nil
	}

	details := transfer.ToMemberDetails.Data()
	existing, err := s.memberRepo.FindByEmail(ctx, tx, strings.ToLower(strings.TrimSpace(details.Email)))
	if err != nil {
		return 0, err
	}
	if existing != nil {
		if existing.ID == transfer.FromMemberID {
			return 0, domain.ErrSelfTransfer
		}
		return existing.ID, nil
	}

	member, err := memberservice.Build(s.genID, s.clock, recipientRequest(details))
	if err != nil {
		return 0, err
	}
	if err := s.memberRepo.Insert(ctx, tx, member); err != nil {
		return 0, err
	}
	return member.ID, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Transfer, error) {
	transferID, err := parseID(id, domain.ErrInvalidID)
	if err != nil {
		return nil, err
	}
	transfer, err := s.repo.FindByID(ctx, s.db, transferID)
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, domain.ErrNotFound
	}
	return transfer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTransferRequest) (domain.ListTransferResponse, error) {
	status := domain.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case "", domain.StatusPendingPayment, domain.StatusPendingApproval, domain.StatusCompleted:
	default:
		return domain.ListTransferResponse{}, domain.ErrInvalidStatus
	}

	filter := domain.ListFilter{Status: status}
	if raw := strings.TrimSpace(req.FromMemberID); raw != "" {
		memberID, err := parseID(raw, domain.ErrInvalidMemberID)
		if err != nil {
			return domain.ListTransferResponse{}, err
		}
		filter.FromMemberID = &memberID
	}

	decoded, err := req.Pagination.Decode()
	if err != nil {
		return domain.ListTransferResponse{}, err
	}
	if decoded != nil {
		id, idErr := snowflake.ParseString(decoded.ID)
		createdAt, timeErr := decoded.Time()
		if idErr != nil || timeErr != nil {
			return domain.ListTransferResponse{}, pagination.ErrInvalidPageToken
		}
		filter.Cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Pagination.Size(50, 250)
	filter.Limit = pageSize
	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return domain.ListTransferResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Transfer) string {
		token, err := pagination.EncodeCursor(pagination.NewCursor(item.ID.String(), item.CreatedAt))
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	transfers := make([]domain.Transfer, 0, len(items))
	for _, item := range items {
		transfers = append(transfers, *item)
	}
	return domain.ListTransferResponse{PageInfo: *pageInfo, Transfers: transfers}, nil
}

func (s *Service) lockTransfer(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.Transfer, error) {
	start := time.Now()
	transfer, err := s.repo.FindByIDForUpdate(ctx, tx, id)
	s.metrics.ObserveDBLockWait(metrics.LockResourceTransfer, time.Since(start))
	if err != nil {
		return nil, err
	}
	if transfer == nil {
		return nil, domain.ErrNotFound
	}
	return transfer, nil
}

func (s *Service) audit(ctx context.Context, action, facilityID string, transfer *domain.Transfer, metadata map[string]any) {
	if s.auditSvc == nil || transfer == nil {
		return
	}
	targetID := transfer.ID.String()
	if metadata == nil {
		metadata = map[string]any{}
	}
	metadata["from_member_id"] = transfer.FromMemberID.String()
	if err := s.auditSvc.AuditLog(ctx, facilityID, "", nil, action, "membership_transfer", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func completedResponse(transfer *domain.Transfer) *domain.ApproveResponse {
	resp := &domain.ApproveResponse{TransferID: transfer.ID.String()}
	if transfer.NewMembershipID != nil {
		resp.NewMembershipID = transfer.NewMembershipID.String()
	}
	if transfer.ToMemberID != nil {
		resp.ToMemberID = transfer.ToMemberID.String()
	}
	return resp
}

func recipientRequest(details domain.RecipientDetails) memberdomain.CreateMemberRequest {
	return memberdomain.CreateMemberRequest{
		Name:  details.Name,
		Email: details.Email,
		Phone: details.Phone,
		Role:  string(memberdomain.RoleMember),
	}
}

func parseID(raw string, invalid error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, invalid
	}
	return id, nil
}

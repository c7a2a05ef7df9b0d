package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/access/domain"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential"
	credentialdomain "github.com/smallbiznis/gymgate/internal/credential/domain"
	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	obslogger "github.com/smallbiznis/gymgate/internal/observability/logger"
	"github.com/smallbiznis/gymgate/internal/observability/metrics"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxLogPageSize = 250

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Policy      *config.AccessPolicyHolder
	Repo        domain.Repository
	Configs     gymconfigdomain.Service
	Memberships membershipdomain.Service
	Validators  *credential.Registry

	Metrics     *metrics.Metrics     `optional:"true"`
	GateMetrics *metrics.GateMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	policy      *config.AccessPolicyHolder
	repo        domain.Repository
	configs     gymconfigdomain.Service
	memberships membershipdomain.Service
	validators  *credential.Registry
	metrics     *metrics.Metrics
	gateMetrics *metrics.GateMetrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("access.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		policy:      p.Policy,
		repo:        p.Repo,
		configs:     p.Configs,
		memberships: p.Memberships,
		validators:  p.Validators,
		metrics:     p.Metrics,
		gateMetrics: p.GateMetrics,
	}
}

func (s *Service) Evaluate(ctx context.Context, req domain.EvaluateRequest) (*domain.Decision, error) {
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		return nil, domain.ErrInvalidMemberID
	}
	gateID := strings.TrimSpace(req.GateID)
	if gateID == "" {
		gateID = domain.DefaultGateID
	}
	method := credentialdomain.ParseMethod(req.Method)

	gym, err := s.configs.Resolve(ctx, facilityID)
	if err != nil {
		return nil, err
	}
	// Once checks start the attempt runs to completion and is logged even if
	// the caller goes away.
	ctx = context.WithoutCancel(ctx)

	entry := &domain.AccessLog{
		MemberID:   memberID,
		FacilityID: facilityID,
		GateID:     gateID,
		Method:     string(method),
		Provider:   domain.UnknownProvider,
		Actuation:  domain.ActuationSkipped,
	}

	status, err := s.memberships.Resolve(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if !status.Valid {
		entry.Result = domain.ResultDenied
		entry.Details = status.Reason
		return s.record(ctx, entry)
	}

	// An unknown method with a valid membership pairs nothing to evaluate, so
	// it is rejected without a log row.
	validator, err := s.validators.Lookup(string(method))
	if err != nil {
		return nil, err
	}

	valid, err := validator.Validate(ctx, credentialdomain.Claim{
		MemberID:       memberID,
		FacilityID:     facilityID,
		GateID:         gateID,
		QRToken:        req.QRToken,
		DeviceID:       req.DeviceID,
		SignalStrength: req.SignalStrength,
		ImageBase64:    req.ImageBase64,
	})
	if err != nil {
		obslogger.WithContext(ctx, s.log).Warn("credential validator failed",
			zap.String("facility_id", facilityID),
			zap.String("method", string(method)),
			zap.Error(err),
		)
		valid = false
	}

	entry.Provider = gym.Provider
	entry.Details = validator.Detail(valid)
	if !valid {
		entry.Result = domain.ResultDenied
		return s.record(ctx, entry)
	}

	entry.Result = domain.ResultGranted
	entry.Actuation = s.openGate(ctx, gym, memberID, gateID)
	return s.record(ctx, entry)
}

func (s *Service) RecordThrottled(ctx context.Context, req domain.EvaluateRequest) error {
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return domain.ErrInvalidFacility
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		return domain.ErrInvalidMemberID
	}
	gateID := strings.TrimSpace(req.GateID)
	if gateID == "" {
		gateID = domain.DefaultGateID
	}

	_, err := s.record(context.WithoutCancel(ctx), &domain.AccessLog{
		MemberID:   memberID,
		FacilityID: facilityID,
		GateID:     gateID,
		Method:     string(credentialdomain.ParseMethod(req.Method)),
		Result:     domain.ResultDenied,
		Details:    domain.DetailRateLimited,
		Provider:   domain.UnknownProvider,
		Actuation:  domain.ActuationSkipped,
	})
	return err
}

func (s *Service) openGate(ctx context.Context, gym *gymconfigdomain.Resolved, memberID, gateID string) domain.Actuation {
	start := time.Now()
	result, err := gym.Adapter.OpenGate(ctx, memberID, gateID)
	if err == nil && (result == nil || !result.Success) {
		err = gatedomain.ErrActuationFailed
	}
	s.gateMetrics.ObserveActuation(gym.Provider, "open_gate", time.Since(start), err)

	if err != nil {
		s.metrics.RecordGateActuation(ctx, gym.Provider, string(domain.ActuationFailed))
		obslogger.WithContext(ctx, s.log).Warn("gate actuation failed",
			zap.String("facility_id", gym.FacilityID),
			zap.String("provider", gym.Provider),
			zap.String("gate_id", gateID),
			zap.Error(err),
		)
		return domain.ActuationFailed
	}
	s.metrics.RecordGateActuation(ctx, gym.Provider, string(domain.ActuationOpened))
	return domain.ActuationOpened
}

func (s *Service) record(ctx context.Context, entry *domain.AccessLog) (*domain.Decision, error) {
	entry.ID = s.genID.Generate()
	entry.CreatedAt = s.clock.Now()

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		obslogger.WithContext(ctx, s.log).Error("failed to write access log",
			zap.String("facility_id", entry.FacilityID),
			zap.Error(err),
		)
		return nil, err
	}
	s.metrics.RecordAccessDecision(ctx, entry.FacilityID, entry.Method, string(entry.Result))

	return &domain.Decision{
		Access:     entry.Result == domain.ResultGranted,
		Message:    entry.Details,
		Provider:   entry.Provider,
		Timestamp:  entry.CreatedAt.UTC().Format(domain.TimestampLayout),
		GateOpened: entry.Actuation == domain.ActuationOpened,
	}, nil
}

func (s *Service) ListLogs(ctx context.Context, req domain.ListLogsRequest) (domain.ListLogsResponse, error) {
	result := domain.Result(strings.ToLower(strings.TrimSpace(req.Result)))
	switch result {
	case "", domain.ResultGranted, domain.ResultDenied:
	default:
		return domain.ListLogsResponse{}, domain.ErrInvalidResult
	}

	decoded, err := req.Pagination.Decode()
	if err != nil {
		return domain.ListLogsResponse{}, err
	}
	var cursor *domain.Cursor
	if decoded != nil {
		id, idErr := snowflake.ParseString(decoded.ID)
		createdAt, timeErr := decoded.Time()
		if idErr != nil || timeErr != nil {
			return domain.ListLogsResponse{}, pagination.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Pagination.Size(s.policy.Get().AccessLogPageSize, maxLogPageSize)
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		FacilityID: req.FacilityID,
		MemberID:   req.MemberID,
		Result:     result,
		Cursor:     cursor,
		Limit:      pageSize,
	})
	if err != nil {
		return domain.ListLogsResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.AccessLog) string {
		token, err := pagination.EncodeCursor(pagination.NewCursor(item.ID.String(), item.CreatedAt))
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	logs := make([]domain.AccessLog, 0, len(items))
	for _, item := range items {
		logs = append(logs, *item)
	}
	return domain.ListLogsResponse{PageInfo: *pageInfo, Logs: logs}, nil
}

func (s *Service) CheckAccess(ctx context.Context, req domain.CheckAccessRequest) (*gatedomain.Result, error) {
	facilityID := strings.TrimSpace(req.FacilityID)
	if facilityID == "" {
		return nil, domain.ErrInvalidFacility
	}
	memberID := strings.TrimSpace(req.MemberID)
	if memberID == "" {
		return nil, domain.ErrInvalidMemberID
	}
	gateID := strings.TrimSpace(req.GateID)
	if gateID == "" {
		gateID = domain.DefaultGateID
	}

	gym, err := s.configs.Resolve(ctx, facilityID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := gym.Adapter.CheckAccess(ctx, memberID, gateID)
	s.gateMetrics.ObserveActuation(gym.Provider, "check_access", time.Since(start), err)
	if err != nil && !errors.Is(err, gatedomain.ErrActuationFailed) {
		return nil, err
	}
	return result, err
}

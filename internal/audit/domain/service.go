package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

type ListAuditLogRequest struct {
	pagination.Pagination
	FacilityID string
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type Service interface {
	// AuditLog writes one entry. An empty actorType is resolved from the
	// request context and falls back to system.
	AuditLog(ctx context.Context, facilityID string, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidTimeRange = errors.New("invalid_time_range")
	ErrInvalidAction    = errors.New("invalid_action")
)

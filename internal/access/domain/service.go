package domain

import (
	"context"
	"errors"

	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

// DefaultGateID is used when the request does not name a gate.
const DefaultGateID = "main_entrance"

// TimestampLayout renders decision timestamps with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type EvaluateRequest struct {
	MemberID       string `json:"member_id"`
	FacilityID     string `json:"facility_id"`
	GateID         string `json:"gate_id"`
	Method         string `json:"method"`
	QRToken        string `json:"qr_code"`
	DeviceID       string `json:"device_id"`
	SignalStrength *int   `json:"signal"`
	ImageBase64    string `json:"image"`
}

type Decision struct {
	Access     bool   `json:"access"`
	Message    string `json:"message"`
	Provider   string `json:"provider"`
	Timestamp  string `json:"timestamp"`
	GateOpened bool   `json:"gate_opened"`
}

type ListLogsRequest struct {
	pagination.Pagination
	FacilityID string
	MemberID   string
	Result     string
}

type ListLogsResponse struct {
	pagination.PageInfo
	Logs []AccessLog `json:"logs"`
}

type CheckAccessRequest struct {
	FacilityID string `json:"facility_id"`
	MemberID   string `json:"member_id"`
	GateID     string `json:"gate_id"`
}

type Service interface {
	// Evaluate runs one access attempt and writes exactly one access log,
	// unless the facility is not configured or the method is unknown.
	Evaluate(ctx context.Context, req EvaluateRequest) (*Decision, error)
	// RecordThrottled logs a denied attempt that the rate limit refused
	// before evaluation.
	RecordThrottled(ctx context.Context, req EvaluateRequest) error
	ListLogs(ctx context.Context, req ListLogsRequest) (ListLogsResponse, error)
	CheckAccess(ctx context.Context, req CheckAccessRequest) (*gatedomain.Result, error)
}

var (
	ErrInvalidFacility = errors.New("invalid_facility")
	ErrInvalidMemberID = errors.New("invalid_member_id")
	ErrInvalidResult   = errors.New("invalid_result")
)

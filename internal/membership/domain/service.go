package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/gymgate/pkg/db/pagination"
)

// Reason strings are written verbatim into access logs.
const (
	ReasonNotFound = "No membership found"
	ReasonFrozen   = "Membership frozen"
	ReasonExpired  = "Membership expired"
)

const DefaultFreezeReason = "Member request"

// Resolution is the outcome of resolving a member's access rights.
type Resolution struct {
	Valid      bool
	Reason     string
	Membership *Membership
}

type CreateMembershipRequest struct {
	MemberID   string     `json:"member_id"`
	FacilityID string     `json:"facility_id"`
	Plan       string     `json:"plan"`
	StartAt    *time.Time `json:"start_at"`
}

type MembershipView struct {
	Membership *Membership `json:"membership"`
	Access     bool        `json:"access"`
	Reason     string      `json:"reason,omitempty"`
}

type ListMembershipRequest struct {
	pagination.Pagination
	FacilityID string `form:"facility_id"`
	Status     string `form:"status"`
}

type ListMembershipResponse struct {
	pagination.PageInfo
	Memberships []Membership `json:"memberships"`
}

type FreezeRequest struct {
	MemberID string `json:"member_id"`
	Reason   string `json:"reason"`
}

type FreezeResponse struct {
	Record     FreezeRecord `json:"freeze_record"`
	ResumeDate time.Time    `json:"resume_date"`
}

type UnfreezeResponse struct {
	NewExpiryDate time.Time `json:"new_expiry_date"`
	DaysExtended  int       `json:"days_extended"`
}

type Service interface {
	Create(ctx context.Context, req CreateMembershipRequest) (*Membership, error)
	GetByMember(ctx context.Context, memberID string) (*MembershipView, error)
	List(ctx context.Context, req ListMembershipRequest) (ListMembershipResponse, error)
	Resolve(ctx context.Context, memberID string) (Resolution, error)
	Freeze(ctx context.Context, req FreezeRequest) (*FreezeResponse, error)
	Unfreeze(ctx context.Context, memberID string) (*UnfreezeResponse, error)
}

var (
	ErrInvalidMemberID       = errors.New("invalid_member_id")
	ErrInvalidFacility       = errors.New("invalid_facility_id")
	ErrInvalidPlan           = errors.New("invalid_plan")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrMemberNotFound        = errors.New("member_not_found")
	ErrNotFound              = errors.New("not_found")
	ErrNotYearlyPlan         = errors.New("not_yearly_plan")
	ErrAlreadyFrozenThisYear = errors.New("already_frozen_this_year")
	ErrNotActive             = errors.New("membership_not_active")
	ErrNotFrozen             = errors.New("not_frozen")
	ErrReasonTooLong         = errors.New("reason_too_long")
)

// Observer is told about committed membership changes. Implementations must
// not fail the caller; errors stay inside the observer.
type Observer interface {
	MembershipChanged(ctx context.Context, membership *Membership)
}

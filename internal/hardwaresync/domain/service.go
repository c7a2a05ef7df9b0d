package domain

import (
	"context"
	"errors"
)

type SyncRequest struct {
	MemberID      string   `json:"member_id"`
	FacilityID    string   `json:"facility_id"`
	AccessMethods []string `json:"access_methods"`
}

type RemoveRequest struct {
	MemberID   string `json:"member_id"`
	FacilityID string `json:"facility_id"`
}

type Service interface {
	Sync(ctx context.Context, req SyncRequest) (*HardwareSync, error)
	Remove(ctx context.Context, req RemoveRequest) error
}

var (
	ErrInvalidMemberID     = errors.New("invalid_member_id")
	ErrInvalidFacility     = errors.New("invalid_facility")
	ErrInvalidAccessMethod = errors.New("invalid_access_method")
	ErrNoActiveMembership  = errors.New("no_active_membership")
	ErrNotFound            = errors.New("hardware_sync_not_found")
	ErrSyncFailed          = errors.New("hardware_sync_failed")
)

package domain

import (
	"context"
	"errors"

	"github.com/gosimple/slug"
)

const collectionPrefix = "gogym-faces-"

type EnrollRequest struct {
	MemberID    string `json:"member_id"`
	FacilityID  string `json:"facility_id"`
	ImageBase64 string `json:"image"`
}

type EnrollResponse struct {
	FaceID       string `json:"face_id"`
	CollectionID string `json:"collection_id"`
}

type Service interface {
	Enroll(ctx context.Context, req EnrollRequest) (*EnrollResponse, error)
	Revoke(ctx context.Context, memberID, facilityID string) error
	// Verify reports whether the image matches the member's enrolled face at
	// the facility. Errors only signal matcher failures.
	Verify(ctx context.Context, memberID, facilityID, imageBase64 string) (bool, error)
}

// CollectionID names the facility's face collection.
func CollectionID(facilityID string) string {
	return collectionPrefix + slug.Make(facilityID)
}

var (
	ErrInvalidMemberID    = errors.New("invalid_member_id")
	ErrInvalidFacility    = errors.New("invalid_facility")
	ErrInvalidImage       = errors.New("invalid_image")
	ErrMemberNotFound     = errors.New("member_not_found")
	ErrNoFaceDetected     = errors.New("no_face_detected")
	ErrNotFound           = errors.New("face_enrollment_not_found")
	ErrCollectionExists   = errors.New("collection_exists")
	ErrMatcherUnavailable = errors.New("face_matcher_unavailable")
)

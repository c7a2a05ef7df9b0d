package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// FaceEnrollment maps a member at a facility to the single matchable face in
// that facility's collection.
type FaceEnrollment struct {
	MemberID     snowflake.ID `gorm:"primaryKey;autoIncrement:false" json:"member_id"`
	FacilityID   string       `gorm:"primaryKey" json:"facility_id"`
	FaceID       string       `gorm:"not null" json:"face_id"`
	CollectionID string       `gorm:"not null" json:"collection_id"`
	RegisteredAt time.Time    `gorm:"not null" json:"registered_at"`
}

func (FaceEnrollment) TableName() string { return "face_enrollments" }

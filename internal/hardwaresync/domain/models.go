package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type SyncStatus string

const (
	SyncStatusActive  SyncStatus = "active"
	SyncStatusRemoved SyncStatus = "removed"
)

// HardwareSync records a member's presence on a facility's access hardware.
type HardwareSync struct {
	MemberID       snowflake.ID                `gorm:"primaryKey;autoIncrement:false" json:"member_id"`
	FacilityID     string                      `gorm:"primaryKey" json:"facility_id"`
	HardwareUserID string                      `gorm:"not null" json:"hardware_user_id"`
	SyncStatus     SyncStatus                  `gorm:"not null" json:"sync_status"`
	AccessMethods  datatypes.JSONSlice[string] `gorm:"not null" json:"access_methods"`
	LastSyncAt     time.Time                   `gorm:"not null" json:"last_sync_at"`
}

func (HardwareSync) TableName() string {
	return "hardware_syncs"
}

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Result string

const (
	ResultGranted Result = "granted"
	ResultDenied  Result = "denied"
)

type Actuation string

const (
	ActuationOpened  Actuation = "opened"
	ActuationFailed  Actuation = "failed"
	ActuationSkipped Actuation = "skipped"
)

const UnknownProvider = "unknown"

// DetailRateLimited marks an attempt refused by the gate's rate limit.
const DetailRateLimited = "Rate limited"

// AccessLog is one evaluated access attempt. Rows are never updated.
type AccessLog struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	MemberID   string       `gorm:"not null;index" json:"member_id"`
	FacilityID string       `gorm:"not null;index" json:"facility_id"`
	GateID     string       `gorm:"not null" json:"gate_id"`
	Method     string       `gorm:"not null" json:"method"`
	Result     Result       `gorm:"not null" json:"result"`
	Details    string       `gorm:"not null" json:"details"`
	Provider   string       `gorm:"not null" json:"provider"`
	Actuation  Actuation    `gorm:"not null" json:"actuation"`
	CreatedAt  time.Time    `gorm:"not null;index" json:"created_at"`
}

func (AccessLog) TableName() string { return "access_logs" }

package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive      Status = "active"
	StatusFrozen      Status = "frozen"
	StatusExpired     Status = "expired"
	StatusTransferred Status = "transferred"
)

type Plan string

const (
	PlanMonthly   Plan = "monthly"
	PlanQuarterly Plan = "quarterly"
	PlanYearly    Plan = "yearly"
)

// Months returns the term length of the plan.
func (p Plan) Months() (int, bool) {
	switch p {
	case PlanMonthly:
		return 1, true
	case PlanQuarterly:
		return 3, true
	case PlanYearly:
		return 12, true
	default:
		return 0, false
	}
}

// FreezeRecord is one freeze episode. Records are appended, never edited.
type FreezeRecord struct {
	FreezeDate   time.Time `json:"freeze_date"`
	Reason       string    `json:"reason"`
	DurationDays int       `json:"duration_days"`
	ResumeDate   time.Time `json:"resume_date"`
}

type Membership struct {
	ID            snowflake.ID                     `gorm:"primaryKey" json:"id"`
	MemberID      snowflake.ID                     `gorm:"not null;index" json:"member_id"`
	FacilityID    string                           `gorm:"not null" json:"facility_id"`
	Plan          Plan                             `gorm:"not null" json:"plan"`
	Status        Status                           `gorm:"not null" json:"status"`
	StartAt       time.Time                        `gorm:"not null" json:"start_at"`
	ExpiryAt      time.Time                        `gorm:"not null" json:"expiry_at"`
	FreezeHistory datatypes.JSONSlice[FreezeRecord] `gorm:"not null" json:"freeze_history"`

	// Active freeze marker; all three are NULL unless status is frozen.
	FrozenAt     *time.Time `json:"frozen_at,omitempty"`
	ResumeAt     *time.Time `json:"resume_at,omitempty"`
	FreezeReason *string    `json:"freeze_reason,omitempty"`
	UnfrozenAt   *time.Time `json:"unfrozen_at,omitempty"`

	TransferredFrom *snowflake.ID `json:"transferred_from,omitempty"`
	TransferredTo   *snowflake.ID `json:"transferred_to,omitempty"`
	TransferredAt   *time.Time    `json:"transferred_at,omitempty"`
	TransferID      *snowflake.ID `gorm:"uniqueIndex" json:"transfer_id,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// FrozenInYear reports whether any freeze started in the given UTC year.
func (m *Membership) FrozenInYear(year int) bool {
	for _, record := range m.FreezeHistory {
		if record.FreezeDate.UTC().Year() == year {
			return true
		}
	}
	return false
}

// Lapsed reports whether the term is over at now, whatever the stored status.
func (m *Membership) Lapsed(now time.Time) bool {
	return m.Status == StatusExpired || now.After(m.ExpiryAt)
}

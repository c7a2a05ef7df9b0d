package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPendingPayment  Status = "pending_payment"
	StatusPendingApproval Status = "pending_approval"
	StatusCompleted       Status = "completed"
)

// RecipientDetails describes a recipient who is not yet a member.
type RecipientDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Transfer struct {
	ID               snowflake.ID                         `gorm:"primaryKey" json:"id"`
	FromMemberID     snowflake.ID                         `gorm:"not null;index" json:"from_member_id"`
	FromMembershipID snowflake.ID                         `gorm:"not null;index" json:"from_membership_id"`
	ToMemberID       *snowflake.ID                        `json:"to_member_id,omitempty"`
	ToMemberDetails  datatypes.JSONType[RecipientDetails] `gorm:"not null" json:"to_member_details"`
	Fee              int64                                `gorm:"not null" json:"fee"`
	Currency         string                               `gorm:"not null" json:"currency"`
	FeePaid          bool                                 `gorm:"not null;default:false" json:"fee_paid"`
	PaymentMethod    string                               `json:"payment_method,omitempty"`
	PaymentReference *string                              `json:"payment_reference,omitempty"`
	Status           Status                               `gorm:"not null" json:"status"`
	ApprovedBy       *snowflake.ID                        `json:"approved_by,omitempty"`
	NewMembershipID  *snowflake.ID                        `json:"new_membership_id,omitempty"`
	RequestedAt      time.Time                            `gorm:"not null" json:"requested_at"`
	PaidAt           *time.Time                           `json:"paid_at,omitempty"`
	ApprovedAt       *time.Time                           `json:"approved_at,omitempty"`
	CreatedAt        time.Time                            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time                            `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Transfer) TableName() string {
	return "membership_transfers"
}

package domain

import (
	"time"

	"gorm.io/datatypes"
)

// GymConfiguration binds a facility to its gate vendor. ProviderSettings and
// HardwareSettings hold AES-GCM envelopes, never plaintext credentials.
type GymConfiguration struct {
	FacilityID       string            `gorm:"primaryKey" json:"facility_id"`
	Name             string            `gorm:"not null" json:"name"`
	GateProvider     string            `gorm:"not null" json:"gate_provider"`
	BaseURL          string            `gorm:"not null" json:"base_url"`
	ProviderSettings datatypes.JSON    `json:"-"`
	Endpoints        datatypes.JSONMap `json:"endpoints,omitempty"`
	HardwareSettings datatypes.JSON    `json:"-"`
	CreatedAt        time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

func (GymConfiguration) TableName() string { return "gym_configurations" }

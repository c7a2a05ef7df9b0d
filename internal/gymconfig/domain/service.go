package domain

import (
	"context"
	"errors"
	"time"

	gatedomain "github.com/smallbiznis/gymgate/internal/gateprovider/domain"
)

type UpsertRequest struct {
	FacilityID       string            `json:"facility_id"`
	Name             string            `json:"name"`
	GateProvider     string            `json:"gate_provider"`
	BaseURL          string            `json:"base_url"`
	ProviderSettings map[string]any    `json:"provider_settings"`
	Endpoints        map[string]string `json:"endpoints"`
	HardwareSettings map[string]any    `json:"hardware_settings"`
}

// ConfigSummary is the operator view; credentials are masked.
type ConfigSummary struct {
	FacilityID         string            `json:"facility_id"`
	Name               string            `json:"name"`
	GateProvider       string            `json:"gate_provider"`
	BaseURL            string            `json:"base_url"`
	ProviderSettings   map[string]any    `json:"provider_settings,omitempty"`
	Endpoints          map[string]string `json:"endpoints,omitempty"`
	HardwareConfigured bool              `json:"hardware_configured"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

type HardwareSettings struct {
	APIURL string
	APIKey string
}

// Resolved is a decrypted configuration with its gate adapter built.
type Resolved struct {
	FacilityID string
	Name       string
	Provider   string
	Adapter    gatedomain.Adapter
	Hardware   *HardwareSettings
}

type Service interface {
	Upsert(ctx context.Context, req UpsertRequest) (*ConfigSummary, error)
	Get(ctx context.Context, facilityID string) (*ConfigSummary, error)
	List(ctx context.Context) ([]ConfigSummary, error)
	// Resolve returns the facility's adapter, cached for the configured TTL.
	// Missing configs return ErrNotFound; unknown vendors ErrProviderNotFound.
	Resolve(ctx context.Context, facilityID string) (*Resolved, error)
}

var (
	ErrInvalidFacility       = errors.New("invalid_facility")
	ErrInvalidName           = errors.New("invalid_name")
	ErrInvalidSettings       = errors.New("invalid_provider_settings")
	ErrInvalidHardware       = errors.New("invalid_hardware_settings")
	ErrEncryptionKeyMissing  = errors.New("encryption_key_missing")
	ErrNotFound              = errors.New("configuration_not_found")
	ErrHardwareNotConfigured = errors.New("hardware_not_configured")
)

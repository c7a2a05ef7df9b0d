package domain

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Config is the resolved, decrypted binding of one facility to its gate vendor.
type Config struct {
	FacilityID string
	Provider   string
	BaseURL    string
	Settings   map[string]any
	Endpoints  map[string]string
	Timeout    time.Duration
	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client
}

// Result is the vendor's reply to a gate command.
type Result struct {
	Success    bool           `json:"success"`
	StatusCode int            `json:"status_code"`
	Message    string         `json:"message,omitempty"`
	Body       map[string]any `json:"body,omitempty"`
}

// Adapter drives one vendor's gate hardware.
type Adapter interface {
	OpenGate(ctx context.Context, memberID, gateID string) (*Result, error)
	CheckAccess(ctx context.Context, memberID, gateID string) (*Result, error)
}

type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg Config) (Adapter, error)
}

const (
	EndpointGateOpen    = "gate_open"
	EndpointAccessCheck = "access_check"

	DefaultGateOpenPath    = "/gate/open"
	DefaultAccessCheckPath = "/access/check"
)

var (
	ErrProviderNotFound = errors.New("provider_not_found")
	ErrInvalidConfig    = errors.New("invalid_provider_config")
	ErrActuationFailed  = errors.New("gate_actuation_failed")
)

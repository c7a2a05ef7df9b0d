package domain

import (
	"context"
	"time"

	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
)

var (
	DefaultGates     = []string{"main_entrance", "gym_floor"}
	DefaultTimeSlots = []string{"06:00-23:00"}
)

type Permissions struct {
	Gates      []string  `json:"gates"`
	TimeSlots  []string  `json:"time_slots"`
	ValidUntil time.Time `json:"valid_until"`
}

type SyncPayload struct {
	UserID        string      `json:"user_id"`
	AccessMethods []string    `json:"access_methods"`
	Permissions   Permissions `json:"permissions"`
}

// Client talks to a facility's access hardware API.
type Client interface {
	// Sync pushes the member and returns the hardware-side user id.
	Sync(ctx context.Context, hw gymconfigdomain.HardwareSettings, payload SyncPayload) (string, error)
	Remove(ctx context.Context, hw gymconfigdomain.HardwareSettings, hardwareUserID string) error
}

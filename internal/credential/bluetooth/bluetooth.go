// Package bluetooth is a proximity check only: any device that reports an id
// and a strong enough signal passes. Pair it with another factor.
package bluetooth

import (
	"context"
	"strings"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential/domain"
)

type Validator struct {
	policy *config.AccessPolicyHolder
}

func New(policy *config.AccessPolicyHolder) *Validator {
	return &Validator{policy: policy}
}

func (v *Validator) Method() domain.Method { return domain.MethodBluetooth }

func (v *Validator) Detail(valid bool) string {
	if valid {
		return "BLE connected"
	}
	return "BLE failed"
}

func (v *Validator) Validate(_ context.Context, claim domain.Claim) (bool, error) {
	if strings.TrimSpace(claim.DeviceID) == "" || claim.SignalStrength == nil {
		return false, nil
	}
	return *claim.SignalStrength > v.policy.Get().BluetoothMinSignal, nil
}

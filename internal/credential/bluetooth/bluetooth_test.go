package bluetooth

import (
	"context"
	"testing"

	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential/domain"
)

func TestBluetoothSignalFloor(t *testing.T) {
	v := New(config.NewStaticAccessPolicy(config.DefaultAccessPolicy()))
	signal := func(n int) *int { return &n }

	cases := []struct {
		name   string
		claim  domain.Claim
		expect bool
	}{
		{name: "strong", claim: domain.Claim{DeviceID: "dev", SignalStrength: signal(-55)}, expect: true},
		{name: "at_floor", claim: domain.Claim{DeviceID: "dev", SignalStrength: signal(-70)}, expect: false},
		{name: "weak", claim: domain.Claim{DeviceID: "dev", SignalStrength: signal(-85)}, expect: false},
		{name: "no_device", claim: domain.Claim{SignalStrength: signal(-40)}, expect: false},
		{name: "no_signal", claim: domain.Claim{DeviceID: "dev"}, expect: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), tc.claim)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.expect {
				t.Fatalf("expected %v, got %v", tc.expect, got)
			}
		})
	}
}

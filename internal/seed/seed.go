package seed

import (
	"context"
	"errors"

	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultAdminName  = "Gym Admin"
	defaultAdminEmail = "admin@gymgate.local"
)

var sampleGyms = []gymconfigdomain.UpsertRequest{
	{
		FacilityID:   "gym_001",
		Name:         "Downtown Fitness",
		GateProvider: "zetko",
		BaseURL:      "https://api.zetko.com/v1",
		ProviderSettings: map[string]any{
			"api_key":   "zetko_api_key_here",
			"device_id": "zetko_device_001",
		},
		Endpoints: map[string]string{
			"gate_open":    "/gate/open",
			"access_check": "/access/check",
		},
	},
	{
		FacilityID:   "gym_002",
		Name:         "Uptown Gym",
		GateProvider: "generic",
		BaseURL:      "https://api.generic-gate.com/v1",
		ProviderSettings: map[string]any{
			"api_key": "generic_api_key_here",
		},
	},
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Configs gymconfigdomain.Service
	Members memberdomain.Service
}

// Seeder installs sample data for local and demo deployments.
type Seeder struct {
	log     *zap.Logger
	configs gymconfigdomain.Service
	members memberdomain.Service
}

func New(p Params) *Seeder {
	return &Seeder{
		log:     p.Log.Named("seed"),
		configs: p.Configs,
		members: p.Members,
	}
}

var Module = fx.Module("seed", fx.Provide(New))

// SampleGyms creates the demo facilities and an admin member. Existing rows
// are left untouched.
func (s *Seeder) SampleGyms(ctx context.Context) error {
	for _, gym := range sampleGyms {
		_, err := s.configs.Get(ctx, gym.FacilityID)
		if err == nil {
			continue
		}
		if !errors.Is(err, gymconfigdomain.ErrNotFound) {
			return err
		}

		if _, err := s.configs.Upsert(ctx, gym); err != nil {
			if errors.Is(err, gymconfigdomain.ErrEncryptionKeyMissing) {
				s.log.Warn("skipping sample gyms, GYM_CONFIG_SECRET is not set")
				break
			}
			return err
		}
		s.log.Info("seeded gym configuration",
			zap.String("facility_id", gym.FacilityID),
			zap.String("provider", gym.GateProvider),
		)
	}

	admin, err := s.members.Create(ctx, memberdomain.CreateMemberRequest{
		Name:  defaultAdminName,
		Email: defaultAdminEmail,
		Role:  string(memberdomain.RoleAdmin),
	})
	switch {
	case errors.Is(err, memberdomain.ErrEmailTaken):
		return nil
	case err != nil:
		return err
	}
	s.log.Info("seeded admin member", zap.String("member_id", admin.ID.String()))
	return nil
}

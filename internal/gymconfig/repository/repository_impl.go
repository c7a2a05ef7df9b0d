package repository

import (
	"context"

	"github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, cfg *domain.GymConfiguration) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO gym_configurations (
			facility_id, name, gate_provider, base_url, provider_settings,
			endpoints, hardware_settings, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (facility_id) DO UPDATE SET
			name = EXCLUDED.name,
			gate_provider = EXCLUDED.gate_provider,
			base_url = EXCLUDED.base_url,
			provider_settings = EXCLUDED.provider_settings,
			endpoints = EXCLUDED.endpoints,
			hardware_settings = EXCLUDED.hardware_settings,
			updated_at = EXCLUDED.updated_at`,
		cfg.FacilityID,
		cfg.Name,
		cfg.GateProvider,
		cfg.BaseURL,
		cfg.ProviderSettings,
		cfg.Endpoints,
		cfg.HardwareSettings,
		cfg.CreatedAt,
		cfg.UpdatedAt,
	).Error
}

func (r *repo) FindByFacility(ctx context.Context, db *gorm.DB, facilityID string) (*domain.GymConfiguration, error) {
	var cfg domain.GymConfiguration
	err := db.WithContext(ctx).Raw(
		`SELECT facility_id, name, gate_provider, base_url, provider_settings,
			endpoints, hardware_settings, created_at, updated_at
		FROM gym_configurations
		WHERE facility_id = ?`,
		facilityID,
	).Scan(&cfg).Error
	if err != nil {
		return nil, err
	}
	if cfg.FacilityID == "" {
		return nil, nil
	}
	return &cfg, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]*domain.GymConfiguration, error) {
	var items []*domain.GymConfiguration
	if err := db.WithContext(ctx).Raw(
		`SELECT facility_id, name, gate_provider, base_url, provider_settings,
			endpoints, hardware_settings, created_at, updated_at
		FROM gym_configurations
		ORDER BY facility_id ASC`,
	).Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

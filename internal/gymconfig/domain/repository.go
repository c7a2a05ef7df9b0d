package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, cfg *GymConfiguration) error
	FindByFacility(ctx context.Context, db *gorm.DB, facilityID string) (*GymConfiguration, error)
	List(ctx context.Context, db *gorm.DB) ([]*GymConfiguration, error)
}

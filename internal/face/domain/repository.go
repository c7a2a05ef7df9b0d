package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, enrollment *FaceEnrollment) error
	Find(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) (*FaceEnrollment, error)
	Delete(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) error
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, record *HardwareSync) error
	Find(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) (*HardwareSync, error)
	MarkRemoved(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string, at time.Time) error
}

package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *domain.HardwareSync) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO hardware_syncs (member_id, facility_id, hardware_user_id, sync_status, access_methods, last_sync_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (member_id, facility_id) DO UPDATE SET
			hardware_user_id = EXCLUDED.hardware_user_id,
			sync_status = EXCLUDED.sync_status,
			access_methods = EXCLUDED.access_methods,
			last_sync_at = EXCLUDED.last_sync_at`,
		record.MemberID,
		record.FacilityID,
		record.HardwareUserID,
		record.SyncStatus,
		record.AccessMethods,
		record.LastSyncAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) (*domain.HardwareSync, error) {
	var items []*domain.HardwareSync
	err := db.WithContext(ctx).
		Model(&domain.HardwareSync{}).
		Where("member_id = ? AND facility_id = ?", memberID, facilityID).
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *repo) MarkRemoved(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE hardware_syncs SET sync_status = ?, last_sync_at = ? WHERE member_id = ? AND facility_id = ?`,
		domain.SyncStatusRemoved,
		at,
		memberID,
		facilityID,
	).Error
}

package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/face/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, enrollment *domain.FaceEnrollment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO face_enrollments (member_id, facility_id, face_id, collection_id, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (member_id, facility_id) DO UPDATE SET
			face_id = EXCLUDED.face_id,
			collection_id = EXCLUDED.collection_id,
			registered_at = EXCLUDED.registered_at`,
		enrollment.MemberID,
		enrollment.FacilityID,
		enrollment.FaceID,
		enrollment.CollectionID,
		enrollment.RegisteredAt,
	).Error
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) (*domain.FaceEnrollment, error) {
	var enrollment domain.FaceEnrollment
	err := db.WithContext(ctx).Raw(
		`SELECT member_id, facility_id, face_id, collection_id, registered_at
		FROM face_enrollments
		WHERE member_id = ? AND facility_id = ?`,
		memberID,
		facilityID,
	).Scan(&enrollment).Error
	if err != nil {
		return nil, err
	}
	if enrollment.FaceID == "" {
		return nil, nil
	}
	return &enrollment, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, memberID snowflake.ID, facilityID string) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM face_enrollments WHERE member_id = ? AND facility_id = ?`,
		memberID,
		facilityID,
	).Error
}

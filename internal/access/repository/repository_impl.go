package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/gymgate/internal/access/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, entry *domain.AccessLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO access_logs (
			id, member_id, facility_id, gate_id, method, result,
			details, provider, actuation, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.MemberID,
		entry.FacilityID,
		entry.GateID,
		entry.Method,
		entry.Result,
		entry.Details,
		entry.Provider,
		entry.Actuation,
		entry.CreatedAt,
	).Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.AccessLog, error) {
	var logs []*domain.AccessLog
	stmt := db.WithContext(ctx).Model(&domain.AccessLog{})

	if facilityID := strings.TrimSpace(filter.FacilityID); facilityID != "" {
		stmt = stmt.Where("facility_id = ?", facilityID)
	}
	if memberID := strings.TrimSpace(filter.MemberID); memberID != "" {
		stmt = stmt.Where("member_id = ?", memberID)
	}
	if filter.Result != "" {
		stmt = stmt.Where("result = ?", filter.Result)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	stmt = stmt.Order("created_at desc, id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	if err := stmt.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

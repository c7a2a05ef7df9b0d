package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/membership/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const selectColumns = `id, member_id, facility_id, plan, status, start_at, expiry_at, freeze_history,
	frozen_at, resume_at, freeze_reason, unfrozen_at,
	transferred_from, transferred_to, transferred_at, transfer_id, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, m *domain.Membership) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO memberships (id, member_id, facility_id, plan, status, start_at, expiry_at, freeze_history,
			transferred_from, transfer_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.MemberID,
		m.FacilityID,
		m.Plan,
		m.Status,
		m.StartAt,
		m.ExpiryAt,
		m.FreezeHistory,
		m.TransferredFrom,
		m.TransferID,
		m.CreatedAt,
		m.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM memberships WHERE id = ?`,
		id,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) FindCurrentByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*domain.Membership, error) {
	return r.findCurrent(db.WithContext(ctx), memberID)
}

// FindCurrentByMemberForUpdate row-locks the current membership. SQLite
// ignores the locking clause; it serializes writers on its own.
func (r *repo) FindCurrentByMemberForUpdate(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*domain.Membership, error) {
	return r.findCurrent(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), memberID)
}

func (r *repo) findCurrent(stmt *gorm.DB, memberID snowflake.ID) (*domain.Membership, error) {
	var items []*domain.Membership
	err := stmt.
		Model(&domain.Membership{}).
		Where("member_id = ?", memberID).
		Order("created_at desc, id desc").
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

func (r *repo) FindByTransferID(ctx context.Context, db *gorm.DB, transferID snowflake.ID) (*domain.Membership, error) {
	var m domain.Membership
	err := db.WithContext(ctx).Raw(
		`SELECT `+selectColumns+` FROM memberships WHERE transfer_id = ?`,
		transferID,
	).Scan(&m).Error
	if err != nil {
		return nil, err
	}
	if m.ID == 0 {
		return nil, nil
	}
	return &m, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Membership, error) {
	stmt := db.WithContext(ctx).Model(&domain.Membership{})
	if filter.FacilityID != "" {
		stmt = stmt.Where("facility_id = ?", filter.FacilityID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	var items []*domain.Membership
	err := stmt.
		Order("created_at desc, id desc").
		Limit(filter.Limit + 1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Freeze(ctx context.Context, db *gorm.DB, id snowflake.ID, update domain.FreezeUpdate, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET status = ?, frozen_at = ?, resume_at = ?, freeze_reason = ?, freeze_history = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusFrozen,
		update.FrozenAt,
		update.ResumeAt,
		update.Reason,
		update.History,
		now,
		id,
		domain.StatusActive,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Unfreeze(ctx context.Context, db *gorm.DB, id snowflake.ID, expiryAt, unfrozenAt time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET status = ?, expiry_at = ?, unfrozen_at = ?, frozen_at = NULL, resume_at = NULL, freeze_reason = NULL, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusActive,
		expiryAt,
		unfrozenAt,
		unfrozenAt,
		id,
		domain.StatusFrozen,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkTransferred(ctx context.Context, db *gorm.DB, id, toMemberID snowflake.ID, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE memberships
		 SET status = ?, transferred_to = ?, transferred_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		domain.StatusTransferred,
		toMemberID,
		at,
		at,
		id,
		domain.StatusActive,
	)
	return result.RowsAffected, result.Error
}

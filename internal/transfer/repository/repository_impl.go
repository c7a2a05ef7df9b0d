package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/transfer/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, t *domain.Transfer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO membership_transfers (
			id, from_member_id, from_membership_id, to_member_id, to_member_details,
			fee, currency, fee_paid, payment_method, status, requested_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID,
		t.FromMemberID,
		t.FromMembershipID,
		t.ToMemberID,
		t.ToMemberDetails,
		t.Fee,
		t.Currency,
		t.FeePaid,
		t.PaymentMethod,
		t.Status,
		t.RequestedAt,
		t.CreatedAt,
		t.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transfer, error) {
	return r.findOne(db.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transfer, error) {
	return r.findOne(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id))
}

func (r *repo) FindOpenByMembership(ctx context.Context, db *gorm.DB, membershipID snowflake.ID) (*domain.Transfer, error) {
	return r.findOne(db.WithContext(ctx).
		Where("from_membership_id = ? AND status <> ?", membershipID, domain.StatusCompleted))
}

func (r *repo) findOne(stmt *gorm.DB) (*domain.Transfer, error) {
	var items []*domain.Transfer
	if err := stmt.Model(&domain.Transfer{}).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]*domain.Transfer, error) {
	stmt := db.WithContext(ctx).Model(&domain.Transfer{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.FromMemberID != nil {
		stmt = stmt.Where("from_member_id = ?", *filter.FromMemberID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}

	var items []*domain.Transfer
	err := stmt.
		Order("created_at desc, id desc").
		Limit(filter.Limit + 1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, method string, reference *string, at time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE membership_transfers
		 SET fee_paid = ?, status = ?, payment_method = ?,
		     payment_reference = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		true,
		domain.StatusPendingApproval,
		method,
		reference,
		at,
		at,
		id,
		domain.StatusPendingPayment,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, c domain.Completion) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE membership_transfers
		 SET status = ?, to_member_id = ?, approved_by = ?, new_membership_id = ?, approved_at = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND fee_paid = ?`,
		domain.StatusCompleted,
		c.ToMemberID,
		c.ApprovedBy,
		c.NewMembershipID,
		c.ApprovedAt,
		c.ApprovedAt,
		id,
		domain.StatusPendingApproval,
		true,
	)
	return result.RowsAffected, result.Error
}

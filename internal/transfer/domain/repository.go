package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status       Status
	FromMemberID *snowflake.ID
	Cursor       *Cursor
	Limit        int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Completion struct {
	ToMemberID      snowflake.ID
	ApprovedBy      snowflake.ID
	NewMembershipID snowflake.ID
	ApprovedAt      time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, transfer *Transfer) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transfer, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transfer, error)
	// FindOpenByMembership returns a transfer of the membership that has not completed.
	FindOpenByMembership(ctx context.Context, db *gorm.DB, membershipID snowflake.ID) (*Transfer, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Transfer, error)

	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, method string, reference *string, at time.Time) (int64, error)
	Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, completion Completion) (int64, error)
}

package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ListFilter struct {
	FacilityID string
	Status     Status
	Cursor     *Cursor
	Limit      int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type FreezeUpdate struct {
	FrozenAt time.Time
	ResumeAt time.Time
	Reason   string
	History  datatypes.JSONSlice[FreezeRecord]
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, membership *Membership) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Membership, error)
	// FindCurrentByMember returns the most recently created membership of the member.
	FindCurrentByMember(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*Membership, error)
	FindCurrentByMemberForUpdate(ctx context.Context, db *gorm.DB, memberID snowflake.ID) (*Membership, error)
	FindByTransferID(ctx context.Context, db *gorm.DB, transferID snowflake.ID) (*Membership, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Membership, error)

	// The transition methods are conditional on the current status and return
	// the number of rows changed; zero means another writer got there first.
	Freeze(ctx context.Context, db *gorm.DB, id snowflake.ID, update FreezeUpdate, now time.Time) (int64, error)
	Unfreeze(ctx context.Context, db *gorm.DB, id snowflake.ID, expiryAt, unfrozenAt time.Time) (int64, error)
	MarkTransferred(ctx context.Context, db *gorm.DB, id, toMemberID snowflake.ID, at time.Time) (int64, error)
}

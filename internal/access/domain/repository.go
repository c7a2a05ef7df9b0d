package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	FacilityID string
	MemberID   string
	Result     Result
	Cursor     *Cursor
	Limit      int
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AccessLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AccessLog, error)
}

package domain

import (
	"context"
	"errors"
)

type CreateMemberRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type Service interface {
	Create(ctx context.Context, req CreateMemberRequest) (*Member, error)
	GetByID(ctx context.Context, id string) (*Member, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidEmail = errors.New("invalid_email")
	ErrInvalidRole  = errors.New("invalid_role")
	ErrEmailTaken   = errors.New("email_taken")
	ErrNotFound     = errors.New("not_found")
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case "":
		return RoleMember, true
	case RoleMember, RoleStaff, RoleAdmin:
		return Role(raw), true
	default:
		return "", false
	}
}

package service

import (
	"context"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/member/domain"
	"github.com/smallbiznis/gymgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("member.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateMemberRequest) (*domain.Member, error) {
	member, err := Build(s.genID, s.clock, req)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, err
	}
	return member, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	memberID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || memberID == 0 {
		return nil, domain.ErrInvalidID
	}
	member, err := s.repo.FindByID(ctx, s.db, memberID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, domain.ErrNotFound
	}
	return member, nil
}

// Build validates a create request and returns an unsaved member. Transfers
// use it to materialize a recipient inside their own transaction.
func Build(genID *snowflake.Node, clk clock.Clock, req domain.CreateMemberRequest) (*domain.Member, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.ErrInvalidEmail
	}
	role, ok := domain.ParseRole(strings.ToLower(strings.TrimSpace(req.Role)))
	if !ok {
		return nil, domain.ErrInvalidRole
	}

	now := clk.Now()
	return &domain.Member{
		ID:        genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

package authorization

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectAccess     = "access"
	ObjectAccessLog  = "access_log"
	ObjectAuditLog   = "audit_log"
	ObjectFace       = "face"
	ObjectGymConfig  = "gym_config"
	ObjectHardware   = "hardware"
	ObjectMember     = "member"
	ObjectMembership = "membership"
	ObjectTransfer   = "transfer"
)

const (
	ActionAccessCheck = "access.check"
	ActionQRIssue     = "access.qr_issue"

	ActionAccessLogView = "access_log.view"
	ActionAuditLogView  = "audit_log.view"

	ActionFaceEnroll = "face.enroll"
	ActionFaceRevoke = "face.revoke"

	ActionGymConfigView   = "gym_config.view"
	ActionGymConfigManage = "gym_config.manage"

	ActionHardwareSync   = "hardware.sync"
	ActionHardwareRemove = "hardware.remove"

	ActionMemberView   = "member.view"
	ActionMemberCreate = "member.create"

	ActionMembershipView     = "membership.view"
	ActionMembershipCreate   = "membership.create"
	ActionMembershipFreeze   = "membership.freeze"
	ActionMembershipUnfreeze = "membership.unfreeze"

	ActionTransferView    = "transfer.view"
	ActionTransferRequest = "transfer.request"
	ActionTransferPayment = "transfer.confirm_payment"
	ActionTransferApprove = "transfer.approve"
)

const (
	roleStaff = "role:staff"
	roleAdmin = "role:admin"
)

type Service interface {
	// Authorize checks whether the member acting on the request may perform
	// action on object.
	Authorize(ctx context.Context, actorID string, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrUnknownActor  = errors.New("unknown_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Enforcer   *casbin.SyncedEnforcer
	MemberRepo memberdomain.Repository
	AuditSvc   auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db         *gorm.DB
	log        *zap.Logger
	enforcer   *casbin.SyncedEnforcer
	memberRepo memberdomain.Repository
	auditSvc   auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:         p.DB,
		log:        p.Log.Named("authorization.service"),
		enforcer:   p.Enforcer,
		memberRepo: p.MemberRepo,
		auditSvc:   p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actorID string, object string, action string) error {
	id, err := snowflake.ParseString(strings.TrimSpace(actorID))
	if err != nil || id <= 0 {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	member, err := s.memberRepo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if member == nil {
		return ErrUnknownActor
	}

	subject := fmt.Sprintf("member:%s", member.ID)
	if err := s.ensureGrouping(subject, roleName(member.Role)); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Info("authorization denied",
			zap.String("subject", subject),
			zap.String("object", object),
			zap.String("action", action),
		)
		s.auditDecision(ctx, "authorization.denied", member.ID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditDecision(ctx, "authorization.granted", member.ID, object, action)
	}
	return nil
}

// ensureGrouping keeps the subject's single role link in step with the
// member's stored role.
func (s *ServiceImpl) ensureGrouping(subject string, role string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == role {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, role)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, role)
	return err
}

func (s *ServiceImpl) auditDecision(ctx context.Context, auditAction string, actorID snowflake.ID, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	actor := actorID.String()
	targetID := "capability"
	if err := s.auditSvc.AuditLog(ctx, "", string(auditdomain.ActorTypeUser), &actor, auditAction, "authorization", &targetID, map[string]any{
		"object": object,
		"action": action,
	}); err != nil {
		s.log.Warn("audit log failed", zap.String("action", auditAction), zap.Error(err))
	}
}

func roleName(role memberdomain.Role) string {
	return fmt.Sprintf("role:%s", strings.ToLower(string(role)))
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionTransferApprove, ActionGymConfigManage:
		return true
	default:
		return false
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Front desk
		{roleStaff, ObjectAccess, ActionAccessCheck},
		{roleStaff, ObjectAccess, ActionQRIssue},
		{roleStaff, ObjectAccessLog, ActionAccessLogView},
		{roleStaff, ObjectFace, ActionFaceEnroll},
		{roleStaff, ObjectFace, ActionFaceRevoke},
		{roleStaff, ObjectHardware, ActionHardwareSync},
		{roleStaff, ObjectHardware, ActionHardwareRemove},
		{roleStaff, ObjectMember, ActionMemberView},
		{roleStaff, ObjectMember, ActionMemberCreate},
		{roleStaff, ObjectMembership, ActionMembershipView},
		{roleStaff, ObjectMembership, ActionMembershipCreate},
		{roleStaff, ObjectMembership, ActionMembershipFreeze},
		{roleStaff, ObjectMembership, ActionMembershipUnfreeze},
		{roleStaff, ObjectTransfer, ActionTransferView},
		{roleStaff, ObjectTransfer, ActionTransferRequest},
		{roleStaff, ObjectTransfer, ActionTransferPayment},

		// Admin only
		{roleAdmin, ObjectTransfer, ActionTransferApprove},
		{roleAdmin, ObjectGymConfig, ActionGymConfigView},
		{roleAdmin, ObjectGymConfig, ActionGymConfigManage},
		{roleAdmin, ObjectAuditLog, ActionAuditLogView},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	// Admins inherit every staff permission.
	if _, err := enforcer.AddGroupingPolicy(roleAdmin, roleStaff); err != nil {
		return err
	}
	return nil
}

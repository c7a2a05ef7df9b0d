package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/gymgate/internal/access"
	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	"github.com/smallbiznis/gymgate/internal/audit"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/authorization"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential"
	"github.com/smallbiznis/gymgate/internal/credential/qr"
	"github.com/smallbiznis/gymgate/internal/face"
	facedomain "github.com/smallbiznis/gymgate/internal/face/domain"
	"github.com/smallbiznis/gymgate/internal/gateprovider"
	"github.com/smallbiznis/gymgate/internal/gymconfig"
	gymconfigdomain "github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"github.com/smallbiznis/gymgate/internal/hardwaresync"
	hardwaresyncdomain "github.com/smallbiznis/gymgate/internal/hardwaresync/domain"
	"github.com/smallbiznis/gymgate/internal/member"
	memberdomain "github.com/smallbiznis/gymgate/internal/member/domain"
	"github.com/smallbiznis/gymgate/internal/membership"
	membershipdomain "github.com/smallbiznis/gymgate/internal/membership/domain"
	"github.com/smallbiznis/gymgate/internal/observability"
	obsmiddleware "github.com/smallbiznis/gymgate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/gymgate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/gymgate/internal/observability/tracing"
	"github.com/smallbiznis/gymgate/internal/ratelimit"
	"github.com/smallbiznis/gymgate/internal/transfer"
	transferdomain "github.com/smallbiznis/gymgate/internal/transfer/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	audit.Module,
	member.Module,
	membership.Module,
	face.Module,
	credential.Module,
	gateprovider.Module,
	gymconfig.Module,
	access.Module,
	transfer.Module,
	hardwaresync.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	accessSvc     accessdomain.Service
	qrIssuer      *qr.Validator
	faceSvc       facedomain.Service
	memberSvc     memberdomain.Service
	membershipSvc membershipdomain.Service
	transferSvc   transferdomain.Service
	gymConfigSvc  gymconfigdomain.Service
	hardwareSvc   hardwaresyncdomain.Service
	auditSvc      auditdomain.Service
	authzSvc      authorization.Service
	accessLimiter *ratelimit.AccessLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	AccessSvc     accessdomain.Service
	QRIssuer      *qr.Validator
	FaceSvc       facedomain.Service
	MemberSvc     memberdomain.Service
	MembershipSvc membershipdomain.Service
	TransferSvc   transferdomain.Service
	GymConfigSvc  gymconfigdomain.Service
	HardwareSvc   hardwaresyncdomain.Service
	AuditSvc      auditdomain.Service
	AuthzSvc      authorization.Service
	AccessLimiter *ratelimit.AccessLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		accessSvc:     p.AccessSvc,
		qrIssuer:      p.QRIssuer,
		faceSvc:       p.FaceSvc,
		memberSvc:     p.MemberSvc,
		membershipSvc: p.MembershipSvc,
		transferSvc:   p.TransferSvc,
		gymConfigSvc:  p.GymConfigSvc,
		hardwareSvc:   p.HardwareSvc,
		auditSvc:      p.AuditSvc,
		authzSvc:      p.AuthzSvc,
		accessLimiter: p.AccessLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// Gate devices call validate without an actor.
	api.POST("/access/validate", s.AccessRateLimit(), s.ValidateAccess)
	api.POST("/access/qr-token", s.ActorRequired(), s.IssueQRToken)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.ActorRequired())

	// -------- Access --------
	admin.GET("/access/logs", s.authorize(authorization.ObjectAccessLog, authorization.ActionAccessLogView), s.ListAccessLogs)
	admin.POST("/access/check", s.authorize(authorization.ObjectAccess, authorization.ActionAccessCheck), s.CheckAccess)

	// -------- Faces --------
	admin.POST("/faces", s.authorize(authorization.ObjectFace, authorization.ActionFaceEnroll), s.EnrollFace)
	admin.DELETE("/faces", s.authorize(authorization.ObjectFace, authorization.ActionFaceRevoke), s.RevokeFace)

	// -------- Members --------
	admin.POST("/members", s.authorize(authorization.ObjectMember, authorization.ActionMemberCreate), s.CreateMember)
	admin.GET("/members/:id", s.authorize(authorization.ObjectMember, authorization.ActionMemberView), s.GetMember)

	// -------- Memberships --------
	admin.GET("/memberships", s.authorize(authorization.ObjectMembership, authorization.ActionMembershipView), s.ListMemberships)
	admin.POST("/memberships", s.authorize(authorization.ObjectMembership, authorization.ActionMembershipCreate), s.CreateMembership)
	admin.GET("/memberships/:memberId", s.authorize(authorization.ObjectMembership, authorization.ActionMembershipView), s.GetMembership)
	admin.POST("/memberships/:memberId/freeze", s.authorize(authorization.ObjectMembership, authorization.ActionMembershipFreeze), s.FreezeMembership)
	admin.PUT("/memberships/:memberId/freeze", s.authorize(authorization.ObjectMembership, authorization.ActionMembershipUnfreeze), s.UnfreezeMembership)

	// -------- Transfers --------
	admin.GET("/transfers", s.authorize(authorization.ObjectTransfer, authorization.ActionTransferView), s.ListTransfers)
	admin.POST("/transfers", s.authorize(authorization.ObjectTransfer, authorization.ActionTransferRequest), s.RequestTransfer)
	admin.GET("/transfers/:id", s.authorize(authorization.ObjectTransfer, authorization.ActionTransferView), s.GetTransfer)
	admin.POST("/transfers/:id/payment", s.authorize(authorization.ObjectTransfer, authorization.ActionTransferPayment), s.ConfirmTransferPayment)
	admin.PUT("/transfers/:id/approve", s.authorize(authorization.ObjectTransfer, authorization.ActionTransferApprove), s.ApproveTransfer)

	// -------- Gym configuration --------
	admin.GET("/gym-configs", s.authorize(authorization.ObjectGymConfig, authorization.ActionGymConfigView), s.ListGymConfigs)
	admin.GET("/gym-configs/:facilityId", s.authorize(authorization.ObjectGymConfig, authorization.ActionGymConfigView), s.GetGymConfig)
	admin.PUT("/gym-configs/:facilityId", s.authorize(authorization.ObjectGymConfig, authorization.ActionGymConfigManage), s.UpsertGymConfig)

	// -------- Hardware --------
	admin.POST("/hardware/sync", s.authorize(authorization.ObjectHardware, authorization.ActionHardwareSync), s.SyncHardware)
	admin.DELETE("/hardware/sync", s.authorize(authorization.ObjectHardware, authorization.ActionHardwareRemove), s.RemoveHardware)

	admin.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}

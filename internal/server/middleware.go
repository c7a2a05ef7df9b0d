package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	accessdomain "github.com/smallbiznis/gymgate/internal/access/domain"
	auditdomain "github.com/smallbiznis/gymgate/internal/audit/domain"
	"github.com/smallbiznis/gymgate/internal/auditcontext"
	obscontext "github.com/smallbiznis/gymgate/internal/observability/context"
	obslogger "github.com/smallbiznis/gymgate/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	HeaderActorID     = "X-Actor-Id"
	contextActorIDKey = "actor_id"
)

// ActorRequired resolves the acting member from the X-Actor-Id header.
func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderActorID))
		id, err := snowflake.ParseString(raw)
		if raw == "" || err != nil || id <= 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actorID := id.String()
		ctx := auditcontext.WithActor(c.Request.Context(), string(auditdomain.ActorTypeUser), actorID)
		ctx = obscontext.WithActor(ctx, string(auditdomain.ActorTypeUser), actorID)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorIDKey, actorID)
		c.Next()
	}
}

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := actorIDFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if s.authzSvc == nil {
			AbortWithError(c, ErrForbidden)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actorID, strings.TrimSpace(object), strings.TrimSpace(action)); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// AccessRateLimit throttles validation per facility gate before any
// evaluation runs. A rejected attempt is logged as denied without being
// evaluated.
func (s *Server) AccessRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.accessLimiter.Enabled() {
			c.Next()
			return
		}

		var req accessdomain.EvaluateRequest
		if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		gateID := strings.TrimSpace(req.GateID)
		if gateID == "" {
			gateID = accessdomain.DefaultGateID
		}

		result := s.accessLimiter.Allow(c.Request.Context(), req.FacilityID, gateID)
		if result == nil || result.Allowed {
			c.Next()
			return
		}

		if result.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		}
		if result.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
		}
		tagAccessRequest(c, req)
		if err := s.accessSvc.RecordThrottled(c.Request.Context(), req); err != nil {
			obslogger.FromContext(c.Request.Context()).Warn("throttled attempt not logged", zap.Error(err))
		}
		AbortWithError(c, ErrRateLimited)
	}
}

func actorIDFromContext(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	value, ok := c.Get(contextActorIDKey)
	if !ok {
		return "", false
	}
	actorID, ok := value.(string)
	if !ok || actorID == "" {
		return "", false
	}
	return actorID, true
}

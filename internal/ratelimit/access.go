package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyAccessGate = "access:gate:%s:%s"

const endpointAccessValidate = "access_validate"

// AccessLimiter throttles validation attempts per facility gate. A nil
// limiter allows everything.
type AccessLimiter struct {
	bucket  *TokenBucket
	local   *LocalLimiter
	rate    float64
	burst   int
	log     *zap.Logger
	metrics *metrics.Metrics
}

type AccessLimiterParams struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	Log     *zap.Logger
	Client  *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

func NewAccessLimiter(p AccessLimiterParams) (*AccessLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if limitCfg.AccessRate <= 0 || limitCfg.AccessBurst <= 0 {
		return nil, fmt.Errorf("access rate limit must be positive")
	}

	limiter := &AccessLimiter{
		bucket:  NewTokenBucket(p.Client),
		local:   NewLocalLimiter(float64(limitCfg.AccessRate), limitCfg.AccessBurst, 5*time.Minute),
		rate:    float64(limitCfg.AccessRate),
		burst:   limitCfg.AccessBurst,
		log:     p.Log.Named("ratelimit.access"),
		metrics: p.Metrics,
	}

	stop := make(chan struct{})
	p.Lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go limiter.local.run(stop)
			return nil
		},
		OnStop: func(context.Context) error {
			close(stop)
			return nil
		},
	})
	return limiter, nil
}

func (l *AccessLimiter) Enabled() bool {
	return l != nil
}

// Allow never fails closed: a redis outage degrades to the in-process bucket.
func (l *AccessLimiter) Allow(ctx context.Context, facilityID, gateID string) *RateLimitResult {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}
	}

	key := fmt.Sprintf(keyAccessGate, strings.TrimSpace(facilityID), strings.TrimSpace(gateID))

	var result *RateLimitResult
	if l.bucket != nil {
		res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
		if err != nil {
			l.log.Warn("redis rate limit failed, using local limiter", zap.Error(err))
		} else {
			result = res
		}
	}
	if result == nil {
		result = l.local.Allow(key)
	}

	if result.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, facilityID, endpointAccessValidate)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, facilityID, endpointAccessValidate, "gate_burst")
	}
	return result
}

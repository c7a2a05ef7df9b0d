// Package obscontext carries request-scoped correlation fields for logs and spans.
package obscontext

import (
	"context"
	"strings"
)

type contextKey string

const (
	requestIDKey  contextKey = "obs_request_id"
	facilityIDKey contextKey = "obs_facility_id"
	actorTypeKey  contextKey = "obs_actor_type"
	actorIDKey    contextKey = "obs_actor_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, requestIDKey)
}

func WithFacilityID(ctx context.Context, facilityID string) context.Context {
	return withString(ctx, facilityIDKey, facilityID)
}

func FacilityIDFromContext(ctx context.Context) string {
	return stringFrom(ctx, facilityIDKey)
}

func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	ctx = withString(ctx, actorTypeKey, actorType)
	return withString(ctx, actorIDKey, actorID)
}

func ActorFromContext(ctx context.Context) (string, string) {
	return stringFrom(ctx, actorTypeKey), stringFrom(ctx, actorIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	value = strings.TrimSpace(value)
	if ctx == nil || value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}

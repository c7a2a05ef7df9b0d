package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/gymgate/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "gymgate/http"

type middlewareOptions struct {
	provider trace.TracerProvider
}

type MiddlewareOption func(*middlewareOptions)

// WithTracerProvider overrides the global provider.
func WithTracerProvider(provider trace.TracerProvider) MiddlewareOption {
	return func(o *middlewareOptions) { o.provider = provider }
}

// GinMiddleware opens a server span per request. Gate and facility
// attributes are read after the handlers ran, since they are only known once
// the body is bound.
func GinMiddleware(opts ...MiddlewareOption) gin.HandlerFunc {
	options := middlewareOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	return func(c *gin.Context) {
		provider := options.provider
		if provider == nil {
			provider = otel.GetTracerProvider()
		}
		tracer := provider.Tracer(instrumentationName)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := strings.ToUpper(c.Request.Method)

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", method),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(SafeAttributes(requestAttributes(c, status)...)...)

		switch {
		case status == http.StatusTooManyRequests:
			span.AddEvent("access.rate_limited")
		case status >= http.StatusInternalServerError:
			if last := c.Errors.Last(); last != nil {
				if safeErr := SafeError(last.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func requestAttributes(c *gin.Context, status int) []attribute.KeyValue {
	ctx := c.Request.Context()
	attrs := []attribute.KeyValue{attribute.Int("http.status_code", status)}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		attrs = append(attrs, attribute.String("request_id", requestID))
	}
	if facilityID := obscontext.FacilityIDFromContext(ctx); facilityID != "" {
		attrs = append(attrs, attribute.String("gym.facility_id", facilityID))
	}
	if gateID := strings.TrimSpace(c.GetString("gate_id")); gateID != "" {
		attrs = append(attrs, attribute.String("gym.gate_id", gateID))
	}
	if actorType, _ := obscontext.ActorFromContext(ctx); actorType != "" {
		attrs = append(attrs, attribute.String("actor.type", actorType))
	}
	return attrs
}

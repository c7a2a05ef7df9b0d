package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"gorm.io/gorm"
)

func TestClassifyLifecycleReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: LifecycleReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: LifecycleReasonDBLockTimeout},
		{name: "serialization_failure", err: fmt.Errorf("tx: %w", &pgconn.PgError{Code: "40001"}), want: LifecycleReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: LifecycleReasonUniqueViolation},
		{name: "business_rule", err: errors.New("not_frozen"), want: LifecycleReasonBusinessRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyLifecycleReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestObserveActuation(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newGateMetrics(registry, Config{ServiceName: "gymgate", Environment: "test"})

	m.ObserveActuation("Zetko", "open_gate", 40*time.Millisecond, nil)
	m.ObserveActuation("zetko", "open_gate", 5*time.Second, context.DeadlineExceeded)

	if got := testutil.ToFloat64(m.actuationTotal.WithLabelValues("zetko", "open_gate", ActuationOutcomeOpened)); got != 1 {
		t.Fatalf("expected 1 opened actuation, got %v", got)
	}
	if got := testutil.ToFloat64(m.actuationTotal.WithLabelValues("zetko", "open_gate", ActuationOutcomeTimeout)); got != 1 {
		t.Fatalf("expected 1 timed out actuation, got %v", got)
	}
}

func TestNewGateMetricsTwiceReusesCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newGateMetrics(registry, Config{})
	second := newGateMetrics(registry, Config{})

	first.IncTransition("membership", "active", "frozen")
	second.IncTransition("membership", "active", "frozen")

	if got := testutil.ToFloat64(first.transitions.WithLabelValues("membership", "active", "frozen")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "gymgate", Environment: "test"})

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var found *dto.MetricFamily
	for _, family := range families {
		if family.GetName() == "gymgate_http_requests_total" {
			found = family
		}
	}
	if found == nil || len(found.GetMetric()) != 1 {
		t.Fatalf("expected one request series")
	}
	labels := map[string]string{}
	for _, pair := range found.GetMetric()[0].GetLabel() {
		labels[pair.GetName()] = pair.GetValue()
	}
	if labels["route"] != "/health" || labels["status_code"] != "200" || labels["env"] != "test" {
		t.Fatalf("unexpected labels: %v", labels)
	}
}

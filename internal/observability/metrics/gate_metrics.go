package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ActuationOutcomeOpened  = "opened"
	ActuationOutcomeFailed  = "failed"
	ActuationOutcomeTimeout = "timeout"
)

const (
	LifecycleReasonDeadlineExceeded     = "deadline_exceeded"
	LifecycleReasonDBLockTimeout        = "db_lock_timeout"
	LifecycleReasonSerializationFailure = "serialization_failure"
	LifecycleReasonUniqueViolation      = "unique_violation"
	LifecycleReasonBusinessRule         = "business_rule"
)

const (
	LockResourceMembership = "membership"
	LockResourceTransfer   = "membership_transfer"
)

// GateMetrics captures gate vendor latency and membership lifecycle signals.
type GateMetrics struct {
	actuationDuration *prometheus.HistogramVec
	actuationTotal    *prometheus.CounterVec
	transitions       *prometheus.CounterVec
	lifecycleErrors   *prometheus.CounterVec
	dbLockWait        *prometheus.HistogramVec
}

// NewGateMetrics registers the gate collectors on the default registerer.
func NewGateMetrics(cfg Config) *GateMetrics {
	return newGateMetrics(prometheus.DefaultRegisterer, cfg)
}

func newGateMetrics(registerer prometheus.Registerer, cfg Config) *GateMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	actuationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "gymgate_gate_actuation_duration_seconds",
		Help:        "Latency of vendor gate calls as seen by the turnstile.",
		Buckets:     []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 10},
		ConstLabels: constLabels,
	}, []string{"provider", "operation"})
	actuationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gymgate_gate_actuation_total",
		Help:        "Vendor gate calls by outcome.",
		ConstLabels: constLabels,
	}, []string{"provider", "operation", "outcome"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gymgate_membership_transition_total",
		Help:        "Membership and transfer state transitions.",
		ConstLabels: constLabels,
	}, []string{"entity", "from", "to"})
	lifecycleErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "gymgate_membership_lifecycle_errors_total",
		Help:        "Lifecycle operation failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	dbLockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "gymgate_db_lock_wait_seconds",
		Help:        "Time spent acquiring row locks for lifecycle transitions.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	return &GateMetrics{
		actuationDuration: register(registerer, actuationDuration),
		actuationTotal:    register(registerer, actuationTotal),
		transitions:       register(registerer, transitions),
		lifecycleErrors:   register(registerer, lifecycleErrors),
		dbLockWait:        register(registerer, dbLockWait),
	}
}

// ObserveActuation records one vendor call.
func (m *GateMetrics) ObserveActuation(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	provider = normalizeLabel(provider)
	m.actuationDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	m.actuationTotal.WithLabelValues(provider, operation, ClassifyActuationOutcome(err)).Inc()
}

// IncTransition records a state change of a membership or transfer.
func (m *GateMetrics) IncTransition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncLifecycleError records a failed lifecycle operation with its classification.
func (m *GateMetrics) IncLifecycleError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.lifecycleErrors.WithLabelValues(operation, ClassifyLifecycleReason(err)).Inc()
}

// ObserveDBLockWait records lock wait time for SELECT FOR UPDATE work.
func (m *GateMetrics) ObserveDBLockWait(resource string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbLockWait.WithLabelValues(resource).Observe(duration.Seconds())
}

// ClassifyActuationOutcome maps a vendor call error to an outcome label.
func ClassifyActuationOutcome(err error) string {
	switch {
	case err == nil:
		return ActuationOutcomeOpened
	case errors.Is(err, context.DeadlineExceeded):
		return ActuationOutcomeTimeout
	default:
		return ActuationOutcomeFailed
	}
}

// ClassifyLifecycleReason maps lifecycle errors to low-cardinality reasons.
func ClassifyLifecycleReason(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		return LifecycleReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return LifecycleReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return LifecycleReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505"):
		return LifecycleReasonUniqueViolation
	default:
		return LifecycleReasonBusinessRule
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func constLabelsFor(cfg Config) prometheus.Labels {
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName(cfg.ServiceName),
		"env":     environment,
	}
}

func normalizeLabel(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return "unknown"
	}
	return value
}

// register returns the already registered collector when one exists, so
// constructing metrics twice against the same registry is harmless.
func register[C prometheus.Collector](registerer prometheus.Registerer, collector C) C {
	if err := registerer.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return collector
}

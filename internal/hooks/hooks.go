// Package hooks provides crud.Hooks implementations that run before and after every engine
// operation: audit logging, rate limiting, access guards and Prometheus counters.
package hooks

import (
	"context"
	"fmt"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"

	"github.com/desertthunder/crux/internal/crud"
	"github.com/desertthunder/crux/internal/models"
)

var ErrDenied = fmt.Errorf("operation denied")

// Chain runs hooks as one. Before hooks run in order and After hooks in reverse order, so the
// first hook wraps all the others. The first error stops the chain.
type Chain []crud.Hooks

func (c Chain) Before(ctx context.Context, op models.Operation) error {
	for _, h := range c {
		if err := h.Before(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func (c Chain) After(ctx context.Context, op models.Operation) error {
	for _, h := range slices.Backward(c) {
		if err := h.After(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

// Audit logs every operation entering and leaving the engine.
type Audit struct {
	logger *log.Logger
}

// NewAudit creates an Audit hook writing to logger.
func NewAudit(logger *log.Logger) *Audit {
	return &Audit{logger: logger.With("component", "audit")}
}

func (a *Audit) Before(_ context.Context, op models.Operation) error {
	a.logger.Debug("operation started", "op", op)
	return nil
}

func (a *Audit) After(_ context.Context, op models.Operation) error {
	if op.IsWrite() {
		a.logger.Info("operation completed", "op", op)
	} else {
		a.logger.Debug("operation completed", "op", op)
	}
	return nil
}

// RateLimit blocks each operation until the limiter admits it, or fails when ctx ends first.
type RateLimit struct {
	limiter *rate.Limiter
}

// NewRateLimit admits perSecond operations per second with the given burst.
func NewRateLimit(perSecond float64, burst int) *RateLimit {
	return &RateLimit{limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

func (r *RateLimit) Before(ctx context.Context, _ models.Operation) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit: %w", err)
	}
	return nil
}

func (r *RateLimit) After(context.Context, models.Operation) error { return nil }

// Guard rejects denied operations before they reach storage.
type Guard struct {
	denied map[models.Operation]bool
}

// Deny creates a Guard rejecting ops with [ErrDenied].
func Deny(ops ...models.Operation) *Guard {
	g := &Guard{denied: make(map[models.Operation]bool, len(ops))}
	for _, op := range ops {
		g.denied[op] = true
	}
	return g
}

// ReadOnly creates a Guard rejecting every write operation.
func ReadOnly() *Guard {
	var writes []models.Operation
	for _, op := range models.Operations() {
		if op.IsWrite() {
			writes = append(writes, op)
		}
	}
	return Deny(writes...)
}

func (g *Guard) Before(_ context.Context, op models.Operation) error {
	if g.denied[op] {
		return fmt.Errorf("%w: %s", ErrDenied, op)
	}
	return nil
}

func (g *Guard) After(context.Context, models.Operation) error { return nil }

// Metrics counts operations started and completed, by operation name.
type Metrics struct {
	started   *prometheus.CounterVec
	completed *prometheus.CounterVec
}

// NewMetrics registers the operation counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		started: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crux_operations_started_total",
				Help: "Total number of engine operations started by operation",
			},
			[]string{"operation"},
		),
		completed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crux_operations_completed_total",
				Help: "Total number of engine operations that completed successfully by operation",
			},
			[]string{"operation"},
		),
	}
}

func (m *Metrics) Before(_ context.Context, op models.Operation) error {
	m.started.WithLabelValues(op.String()).Inc()
	return nil
}

func (m *Metrics) After(_ context.Context, op models.Operation) error {
	m.completed.WithLabelValues(op.String()).Inc()
	return nil
}

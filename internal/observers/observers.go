// Package observers holds lifecycle event listeners: structured logging, Prometheus counters,
// a Kafka publisher for committed writes and a ristretto cache kept warm by EachEntity.
//
// Logging, Metrics and KafkaPublisher observe any entity type and are attached to a typed
// provider with events.Widen.
package observers

import (
	"context"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/desertthunder/crux/internal/models"
)

// Logging writes one log line per notification.
type Logging struct {
	logger *log.Logger
}

// NewLogging creates a Logging observer. Reads log at debug level, writes at info.
func NewLogging(logger *log.Logger) *Logging {
	return &Logging{logger: logger.With("component", "events")}
}

func (l *Logging) OnFind(_ context.Context, _ any) error {
	l.logger.Debug("found entity")
	return nil
}

func (l *Logging) OnFindMany(_ context.Context, es []any, ids []any) error {
	l.logger.Debug("found entities", "found", len(es), "requested", len(ids))
	return nil
}

func (l *Logging) OnCount(_ context.Context, n int64) error {
	l.logger.Debug("counted entities", "count", n)
	return nil
}

func (l *Logging) OnExists(_ context.Context, ok bool, id any) error {
	l.logger.Debug("checked existence", "id", id, "exists", ok)
	return nil
}

func (l *Logging) OnPage(_ context.Context, p models.Page[any]) error {
	l.logger.Debug("paged entities", "page", p.Pagination.Number, "size", p.Len(), "total", p.TotalElements)
	return nil
}

func (l *Logging) OnBeforeCreate(context.Context, any, any) error { return nil }

func (l *Logging) OnAfterCreate(_ context.Context, _ any, e any) error {
	l.logger.Info("created entity", "entity", e)
	return nil
}

func (l *Logging) OnBeforeUpdate(context.Context, any, any) error { return nil }

func (l *Logging) OnAfterUpdate(_ context.Context, _ any, e any) error {
	l.logger.Info("updated entity", "entity", e)
	return nil
}

func (l *Logging) OnBeforeDelete(context.Context, any) error { return nil }

func (l *Logging) OnAfterDelete(_ context.Context, e any) error {
	l.logger.Info("deleted entity", "entity", e)
	return nil
}

func (l *Logging) EachEntity(context.Context, any) error { return nil }

// Metrics counts notifications by event name and records page sizes.
type Metrics struct {
	events   *prometheus.CounterVec
	entities prometheus.Counter
	pages    prometheus.Histogram
}

// NewMetrics registers the event metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		events: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "crux_events_total",
				Help: "Total number of lifecycle notifications by event",
			},
			[]string{"event"},
		),
		entities: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "crux_entities_observed_total",
				Help: "Total number of entities passed to EachEntity",
			},
		),
		pages: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crux_page_entities",
				Help:    "Number of entities returned per page",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
	}
}

func (m *Metrics) inc(event string) error {
	m.events.WithLabelValues(event).Inc()
	return nil
}

func (m *Metrics) OnFind(context.Context, any) error { return m.inc("find") }
func (m *Metrics) OnFindMany(context.Context, []any, []any) error { return m.inc("find_many") }
func (m *Metrics) OnCount(context.Context, int64) error { return m.inc("count") }
func (m *Metrics) OnExists(context.Context, bool, any) error { return m.inc("exists") }
func (m *Metrics) OnBeforeCreate(context.Context, any, any) error { return m.inc("before_create") }
func (m *Metrics) OnAfterCreate(context.Context, any, any) error { return m.inc("after_create") }
func (m *Metrics) OnBeforeUpdate(context.Context, any, any) error { return m.inc("before_update") }
func (m *Metrics) OnAfterUpdate(context.Context, any, any) error { return m.inc("after_update") }
func (m *Metrics) OnBeforeDelete(context.Context, any) error { return m.inc("before_delete") }
func (m *Metrics) OnAfterDelete(context.Context, any) error { return m.inc("after_delete") }

func (m *Metrics) OnPage(_ context.Context, p models.Page[any]) error {
	m.pages.Observe(float64(p.Len()))
	return m.inc("page")
}

func (m *Metrics) EachEntity(context.Context, any) error {
	m.entities.Inc()
	return nil
}

// Package metrics exposes the service's Prometheus collectors on a private
// registry. A nil *Collector is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mamadbah2/freshstock/internal/domain/models"
)

// Collector groups every metric the service records.
type Collector struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	units          *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	signals        *prometheus.CounterVec
	signalsDropped prometheus.Counter
	drafts         prometheus.Counter
	retrains       *prometheus.CounterVec
	retrainSeconds prometheus.Histogram
	jobSeconds     *prometheus.HistogramVec
}

// New builds a collector with its own registry, including Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshstock_transactions_total",
			Help: "Recorded inventory transactions by type.",
		}, []string{"type"}),
		units: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshstock_units_total",
			Help: "Units moved by transaction type.",
		}, []string{"type"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshstock_transaction_rejections_total",
			Help: "Rejected transaction requests by reason.",
		}, []string{"reason"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshstock_signals_total",
			Help: "Signals emitted by kind.",
		}, []string{"kind"}),
		signalsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freshstock_signals_dropped_total",
			Help: "Signals dropped because the dispatch buffer was full.",
		}),
		drafts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "freshstock_purchase_order_drafts_total",
			Help: "Purchase order drafts created.",
		}),
		retrains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freshstock_forecast_retrains_total",
			Help: "Forecast model retrains by outcome.",
		}, []string{"outcome"}),
		retrainSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "freshstock_forecast_retrain_seconds",
			Help:    "Duration of one category retrain.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		jobSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "freshstock_job_seconds",
			Help:    "Duration of scheduled jobs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.transactions,
		c.units,
		c.rejections,
		c.signals,
		c.signalsDropped,
		c.drafts,
		c.retrains,
		c.retrainSeconds,
		c.jobSeconds,
	)
	return c
}

// Registry exposes the underlying registry, mostly for tests.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) TransactionRecorded(t models.TransactionType, quantity int) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(string(t)).Inc()
	c.units.WithLabelValues(string(t)).Add(float64(quantity))
}

func (c *Collector) TransactionRejected(reason string) {
	if c == nil {
		return
	}
	c.rejections.WithLabelValues(reason).Inc()
}

func (c *Collector) SignalEmitted(kind models.SignalKind) {
	if c == nil {
		return
	}
	c.signals.WithLabelValues(string(kind)).Inc()
}

func (c *Collector) SignalDropped() {
	if c == nil {
		return
	}
	c.signalsDropped.Inc()
}

func (c *Collector) DraftCreated() {
	if c == nil {
		return
	}
	c.drafts.Inc()
}

// RetrainFinished records one retrain; outcome is "swapped", "superseded" or "failed".
func (c *Collector) RetrainFinished(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.retrains.WithLabelValues(outcome).Inc()
	c.retrainSeconds.Observe(took.Seconds())
}

func (c *Collector) JobFinished(job string, took time.Duration) {
	if c == nil {
		return
	}
	c.jobSeconds.WithLabelValues(job).Observe(took.Seconds())
}

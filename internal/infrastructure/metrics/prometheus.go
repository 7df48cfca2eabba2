// Package metrics exports sub-ledger metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spcledger/internal/core/entity"
	"spcledger/internal/domain/registers/quantity"
)

const namespace = "spcledger"

// Recorder implements quantity.Metrics and the HTTP request metrics on its own
// registry. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	movementsTotal      *prometheus.CounterVec
	linesSkippedTotal   *prometheus.CounterVec
	idempotentHitsTotal prometheus.Counter
	overIssuesTotal     prometheus.Counter
	correctionsTotal    prometheus.Counter
	recalculationsTotal prometheus.Counter
	balanceDrifts       prometheus.Gauge
	replayDuration      prometheus.Histogram

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var _ quantity.Metrics = (*Recorder)(nil)

// New creates a Recorder with Go runtime and process collectors registered.
func New() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		movementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "movements_appended_total",
			Help:      "Movements appended to the quantity register by type.",
		}, []string{"type"}),
		linesSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "entry_lines_skipped_total",
			Help:      "Entry lines that produced no movement, by reason.",
		}, []string{"reason"}),
		idempotentHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "idempotent_hits_total",
			Help:      "Entry lines submitted again after they were processed.",
		}),
		overIssuesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "over_issues_total",
			Help:      "Issues that took an account's quantity below zero.",
		}),
		correctionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "cost_corrections_detected_total",
			Help:      "Retroactive cost corrections detected.",
		}),
		recalculationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "balance_recalculations_total",
			Help:      "Balances rebuilt from a full replay.",
		}),
		balanceDrifts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "balance_drifts",
			Help:      "Balances that differed from replay at the last verification.",
		}),
		replayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quantity",
			Name:      "replay_duration_seconds",
			Help:      "Time spent folding movements in a replay.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.movementsTotal,
		r.linesSkippedTotal,
		r.idempotentHitsTotal,
		r.overIssuesTotal,
		r.correctionsTotal,
		r.recalculationsTotal,
		r.balanceDrifts,
		r.replayDuration,
		r.httpRequestsTotal,
		r.httpRequestDuration,
	)
	return r
}

// Registry returns the underlying registry, e.g. to add collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) MovementAppended(t entity.MovementType) {
	r.movementsTotal.WithLabelValues(string(t)).Inc()
}

func (r *Recorder) LineSkipped(reason quantity.SkipReason) {
	r.linesSkippedTotal.WithLabelValues(string(reason)).Inc()
}

func (r *Recorder) IdempotentHit() { r.idempotentHitsTotal.Inc() }

func (r *Recorder) OverIssue() { r.overIssuesTotal.Inc() }

func (r *Recorder) CorrectionsDetected(n int) { r.correctionsTotal.Add(float64(n)) }

func (r *Recorder) BalanceRecalculated() { r.recalculationsTotal.Inc() }

func (r *Recorder) BalanceDrifts(n int) { r.balanceDrifts.Set(float64(n)) }

func (r *Recorder) ObserveReplay(d time.Duration) { r.replayDuration.Observe(d.Seconds()) }

// ObserveRequest records one HTTP request.
func (r *Recorder) ObserveRequest(route, method string, status int, d time.Duration) {
	r.httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

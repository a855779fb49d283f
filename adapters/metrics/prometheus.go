package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/centralrestaurante/amigo-central/domain"
)

// Prometheus implements domain.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	toolCalls      *prometheus.CounterVec
	toolDuration   *prometheus.HistogramVec
	modelCalls     *prometheus.CounterVec
	modelDuration  prometheus.Histogram
	sessionsActive prometheus.Gauge
	sessionsEnded  *prometheus.CounterVec
}

var _ domain.Metrics = (*Prometheus)(nil)

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "concierge",
				Subsystem: "tools",
				Name:      "calls_total",
				Help:      "Tool calls executed, by tool and outcome status.",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "concierge",
				Subsystem: "tools",
				Name:      "duration_seconds",
				Help:      "Tool handler latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		modelCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "concierge",
				Subsystem: "llm",
				Name:      "calls_total",
				Help:      "Model round trips, by result.",
			},
			[]string{"result"},
		),
		modelDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "concierge",
				Subsystem: "llm",
				Name:      "duration_seconds",
				Help:      "Model round trip latency.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
			},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "concierge",
				Subsystem: "sessions",
				Name:      "active",
				Help:      "Conversations currently held in memory.",
			},
		),
		sessionsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "concierge",
				Subsystem: "sessions",
				Name:      "ended_total",
				Help:      "Conversations torn down, by reason.",
			},
			[]string{"reason"},
		),
	}
}

func (p *Prometheus) ObserveToolCall(tool string, status domain.OutcomeStatus, elapsed time.Duration) {
	p.toolCalls.WithLabelValues(tool, string(status)).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveModelCall(elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.modelCalls.WithLabelValues(result).Inc()
	p.modelDuration.Observe(elapsed.Seconds())
}

func (p *Prometheus) SessionStarted() {
	p.sessionsActive.Inc()
}

func (p *Prometheus) SessionEnded(reason domain.TeardownReason) {
	p.sessionsActive.Dec()
	p.sessionsEnded.WithLabelValues(string(reason)).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry is exposed for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

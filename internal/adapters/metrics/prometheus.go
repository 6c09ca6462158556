// Package metrics exposes service counters to Prometheus.
// Clean Architecture: Adapter implementing ports.Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records query, tool and ingestion metrics on a private registry.
type Prometheus struct {
	registry        *prometheus.Registry
	queries         *prometheus.CounterVec
	queryDuration   prometheus.Histogram
	toolCalls       *prometheus.CounterVec
	coursesIngested prometheus.Counter
	chunksIngested  prometheus.Counter
}

// NewPrometheus registers the courserag collectors plus the Go runtime ones.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courserag",
			Name:      "queries_total",
			Help:      "Questions answered, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "courserag",
			Name:      "query_duration_seconds",
			Help:      "End-to-end latency of a question.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "courserag",
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model.",
		}, []string{"tool"}),
		coursesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courserag",
			Name:      "courses_ingested_total",
			Help:      "Course documents stored.",
		}),
		chunksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "courserag",
			Name:      "chunks_ingested_total",
			Help:      "Chunks embedded and stored.",
		}),
	}

	reg.MustRegister(
		p.queries,
		p.queryDuration,
		p.toolCalls,
		p.coursesIngested,
		p.chunksIngested,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ObserveQuery(outcome string, elapsed time.Duration) {
	p.queries.WithLabelValues(outcome).Inc()
	p.queryDuration.Observe(elapsed.Seconds())
}

func (p *Prometheus) ObserveToolCall(tool string) {
	p.toolCalls.WithLabelValues(tool).Inc()
}

func (p *Prometheus) ObserveIngest(courses, chunks int) {
	p.coursesIngested.Add(float64(courses))
	p.chunksIngested.Add(float64(chunks))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

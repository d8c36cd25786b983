package docrender

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Recorder receives one observation per finished render. Outcome is
// "success" or the [Kind] of the failure.
type Recorder interface {
	ObserveRender(backend BackendKind, delivery Delivery, outcome string, d time.Duration, bytes int)
}

// NoopRecorder discards observations. It is the renderer's default.
type NoopRecorder struct{}

func (NoopRecorder) ObserveRender(BackendKind, Delivery, string, time.Duration, int) {}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	renders  *prom.CounterVec
	duration *prom.HistogramVec
	size     *prom.HistogramVec
}

// NewPrometheusRecorder creates the render metrics and registers them with
// reg, or with a fresh registry when reg is nil.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		renders: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "docrender",
			Name:      "renders_total",
			Help:      "Renders by backend, delivery mode and outcome",
		}, []string{"backend", "delivery", "outcome"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docrender",
			Name:      "render_duration_seconds",
			Help:      "Duration of renders including delivery",
			Buckets:   prom.DefBuckets,
		}, []string{"backend"}),
		size: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "docrender",
			Name:      "output_bytes",
			Help:      "Size of successfully rendered PDFs",
			Buckets:   prom.ExponentialBuckets(1<<10, 4, 8),
		}, []string{"backend"}),
	}
	reg.MustRegister(pr.renders, pr.duration, pr.size)
	return pr
}

func (pr *PrometheusRecorder) ObserveRender(backend BackendKind, delivery Delivery, outcome string, d time.Duration, bytes int) {
	pr.renders.WithLabelValues(string(backend), delivery.String(), outcome).Inc()
	pr.duration.WithLabelValues(string(backend)).Observe(d.Seconds())
	if outcome == outcomeSuccess {
		pr.size.WithLabelValues(string(backend)).Observe(float64(bytes))
	}
}

const outcomeSuccess = "success"

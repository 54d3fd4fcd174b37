package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several apps can live in one test binary.
type Metrics struct {
	registry *prometheus.Registry

	Registrations    *prometheus.CounterVec
	Logins           *prometheus.CounterVec
	Predictions      *prometheus.CounterVec
	UploadRejections *prometheus.CounterVec
	InferenceSeconds prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushroom_registrations_total",
			Help: "Registration attempts by outcome.",
		}, []string{"outcome"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushroom_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		Predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushroom_predictions_total",
			Help: "Predictions by label.",
		}, []string{"label"}),
		UploadRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mushroom_upload_rejections_total",
			Help: "Rejected uploads by reason.",
		}, []string{"reason"}),
		InferenceSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mushroom_inference_seconds",
			Help:    "Latency of one forward pass including decode and resize.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.Registrations,
		m.Logins,
		m.Predictions,
		m.UploadRejections,
		m.InferenceSeconds,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveInference(start time.Time) {
	m.InferenceSeconds.Observe(time.Since(start).Seconds())
}

func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Package observability provides metrics and tracing for uploads, exports and the web UI.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcome labels.
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusRejected = "rejected"
)

// Metrics holds all Prometheus metrics for the client.
type Metrics struct {
	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadSeconds  prometheus.Histogram
	UploadsRunning prometheus.Gauge

	// Transcript metrics
	SegmentsReceived prometheus.Counter
	RenamesTotal     prometheus.Counter

	// Export metrics
	ExportsTotal *prometheus.CounterVec

	// HTTP metrics for the local UI
	HTTPRequestsTotal *prometheus.CounterVec
}

// DefaultMetrics creates metrics on the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_uploads_total",
				Help: "Total upload attempts by outcome",
			},
			[]string{"status"},
		),
		UploadSeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scribe_upload_seconds",
				Help:    "Time from submit to decoded transcript",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		UploadsRunning: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scribe_uploads_in_flight",
				Help: "1 while an upload is in flight",
			},
		),
		SegmentsReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_segments_received_total",
				Help: "Transcript segments received from the backend",
			},
		),
		RenamesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scribe_speaker_renames_total",
				Help: "Committed speaker renames",
			},
		),
		ExportsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_exports_total",
				Help: "Documents exported by kind",
			},
			[]string{"kind"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scribe_http_requests_total",
				Help: "Local UI requests by route pattern and status code",
			},
			[]string{"route", "code"},
		),
	}
}

// RecordUpload records one finished upload attempt.
func (m *Metrics) RecordUpload(status string, seconds float64, segments int) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(status).Inc()
	if status == StatusRejected {
		return
	}
	m.UploadSeconds.Observe(seconds)
	m.SegmentsReceived.Add(float64(segments))
}

// SetUploading flips the in-flight gauge.
func (m *Metrics) SetUploading(running bool) {
	if m == nil {
		return
	}
	if running {
		m.UploadsRunning.Set(1)
	} else {
		m.UploadsRunning.Set(0)
	}
}

// RecordRename records a committed rename.
func (m *Metrics) RecordRename() {
	if m == nil {
		return
	}
	m.RenamesTotal.Inc()
}

// RecordExport records a rendered export.
func (m *Metrics) RecordExport(kind string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(kind).Inc()
}

// RecordHTTPRequest records a served UI request.
func (m *Metrics) RecordHTTPRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
}

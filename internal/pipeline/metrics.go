package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's prometheus collectors.
type Metrics struct {
	framesProcessed prometheus.Counter
	framesSkipped   prometheus.Counter
	detectionsKept  prometheus.Histogram
	tracksByState   *prometheus.GaugeVec
	stageDuration   *prometheus.HistogramVec
}

// NewMetrics creates and registers the pipeline collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		framesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracksight_frames_processed_total",
			Help: "Number of frames that completed a full pipeline cycle.",
		}),
		framesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracksight_frames_skipped_total",
			Help: "Number of malformed frames skipped without touching track state.",
		}),
		detectionsKept: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracksight_detections_per_frame",
			Help:    "Histogram of post-filter detection counts per frame.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		tracksByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracksight_tracks",
			Help: "Number of live tracks by lifecycle state.",
		}, []string{"state"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracksight_stage_duration_seconds",
			Help:    "Histogram of per-stage processing times.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.framesProcessed,
		m.framesSkipped,
		m.detectionsKept,
		m.tracksByState,
		m.stageDuration,
	)
	return m
}

func (m *Metrics) observeStage(stage string, seconds float64) {
	m.stageDuration.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) setTrackCounts(tentative, confirmed int) {
	m.tracksByState.WithLabelValues("tentative").Set(float64(tentative))
	m.tracksByState.WithLabelValues("confirmed").Set(float64(confirmed))
}

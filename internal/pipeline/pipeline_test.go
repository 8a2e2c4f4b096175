package pipeline

import (
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksight/tracksight/internal/config"
	"github.com/tracksight/tracksight/internal/vision"
	"github.com/tracksight/tracksight/mot"
)

func testPipeline(t *testing.T) *Pipeline {
	t.Helper()
	cfg := config.Default()
	cfg.Tracker.GateMetric = "geometric"
	cfg.Tracker.GateThreshold = 1.0
	cfg.Tracker.MinHits = 2
	require.NoError(t, cfg.Validate())

	metrics := NewMetrics(prometheus.NewRegistry())
	labels := vision.NewLabels([]string{"person", "car"})
	return New(cfg, slog.Default(), nil, nil, labels, metrics)
}

func det(x, y float64) mot.Detection {
	return mot.Detection{
		Box:        mot.NewRect(x, y, 50, 50),
		Confidence: 0.9,
		ClassID:    0,
		ClassName:  "person",
	}
}

func TestStepCountsFrames(t *testing.T) {
	p := testPipeline(t)

	res, err := p.step([]mot.Detection{det(100, 100)}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), res.FrameIndex)

	stats := p.Stats()
	assert.Equal(t, uint64(1), stats.FramesProcessed)
	assert.Equal(t, uint64(0), stats.FramesSkipped)
	assert.Equal(t, 1, stats.TentativeTracks)
	assert.Equal(t, 0, stats.ConfirmedTracks)
}

func TestStepPublishesConfirmedTracks(t *testing.T) {
	p := testPipeline(t)

	// First frame spawns a tentative track: nothing published yet
	res, err := p.step([]mot.Detection{det(100, 100)}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Tracks)
	assert.Empty(t, p.LatestTracks())

	// Second match confirms it (MinHits=2)
	res, err = p.step([]mot.Detection{det(101, 101)}, time.Now())
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "person", res.Tracks[0].ClassName)

	latest := p.LatestTracks()
	require.Len(t, latest, 1)
	assert.Equal(t, res.Tracks[0].ID, latest[0].ID)

	stats := p.Stats()
	assert.Equal(t, 1, stats.ConfirmedTracks)
	assert.Equal(t, 0, stats.TentativeTracks)
}

func TestStepEmptyFrameAgesTracks(t *testing.T) {
	p := testPipeline(t)

	_, err := p.step([]mot.Detection{det(100, 100)}, time.Now())
	require.NoError(t, err)
	_, err = p.step([]mot.Detection{det(100, 100)}, time.Now())
	require.NoError(t, err)

	// A frame with no detections is valid: the track just goes unmatched
	res, err := p.step(nil, time.Now())
	require.NoError(t, err)
	assert.Empty(t, res.Tracks, "stale tracks are not output")
	assert.Equal(t, uint64(3), p.Stats().FramesProcessed)
}

func TestMarkSkippedCounts(t *testing.T) {
	p := testPipeline(t)
	p.markSkipped()
	p.markSkipped()
	assert.Equal(t, uint64(2), p.Stats().FramesSkipped)
}

func TestSessionIDStable(t *testing.T) {
	p := testPipeline(t)
	assert.Equal(t, p.SessionID(), p.SessionID())
	assert.NotEmpty(t, p.SessionID())
}

// Package pipeline wires the per-frame stages together: preprocess,
// detect, post-filter, embed, track. Frames are processed strictly one
// at a time because track state depends on the previous frame's outcome;
// only the downstream annotation consumer is pipelined, buffered by a
// single frame.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/internal/config"
	"github.com/tracksight/tracksight/internal/vision"
	"github.com/tracksight/tracksight/mot"
)

// FrameResult is what the annotation consumer receives for one frame:
// the source frame plus the confirmed, freshly-matched tracks in
// original frame coordinates. The consumer owns Frame and must Close it.
type FrameResult struct {
	FrameIndex uint64
	Frame      gocv.Mat
	Tracks     []mot.TrackSnapshot
	Elapsed    time.Duration
}

// Stats is a point-in-time summary for the observability surface.
type Stats struct {
	SessionID       string    `json:"session_id"`
	StartedAt       time.Time `json:"started_at"`
	FramesProcessed uint64    `json:"frames_processed"`
	FramesSkipped   uint64    `json:"frames_skipped"`
	TentativeTracks int       `json:"tentative_tracks"`
	ConfirmedTracks int       `json:"confirmed_tracks"`
}

// Pipeline owns one tracker and the stages feeding it. ProcessFrame is
// single-writer: callers must not invoke it concurrently. The snapshot
// accessors are safe from other goroutines.
type Pipeline struct {
	log      *slog.Logger
	detector vision.Detector
	embedder vision.Embedder // nil when appearance matching is disabled
	labels   *vision.Labels
	tracker  *mot.Tracker
	metrics  *Metrics

	stride     int
	postFilter vision.PostFilterConfig

	sessionID uuid.UUID
	startedAt time.Time

	mu            sync.RWMutex
	lastTracks    []mot.TrackSnapshot
	processed     uint64
	skipped       uint64
	lastTentative int
	lastConfirmed int
}

// New assembles a pipeline from configuration and already-constructed
// capabilities. The embedder may be nil.
func New(cfg *config.Config, log *slog.Logger, detector vision.Detector, embedder vision.Embedder, labels *vision.Labels, metrics *Metrics) *Pipeline {
	return &Pipeline{
		log:      log.With("component", "pipeline"),
		detector: detector,
		embedder: embedder,
		labels:   labels,
		tracker:  mot.NewTracker(trackerConfig(cfg.Tracker)),
		metrics:  metrics,
		stride:   cfg.Detector.Stride,
		postFilter: vision.PostFilterConfig{
			ConfidenceThreshold: cfg.Detector.ConfidenceThreshold,
			NMSIoUThreshold:     cfg.Detector.NMSIoUThreshold,
			MaxDetections:       cfg.Detector.MaxDetections,
		},
		sessionID: uuid.New(),
		startedAt: time.Now(),
	}
}

// trackerConfig maps file configuration onto the tracking core's knobs.
func trackerConfig(tc config.TrackerConfig) mot.Config {
	cfg := mot.DefaultConfig()
	cfg.MinHits = tc.MinHits
	cfg.MaxAgeTentative = tc.MaxAgeTentative
	cfg.MaxAgeConfirmed = tc.MaxAgeConfirmed
	cfg.EmbeddingAlpha = tc.EmbeddingAlpha
	cfg.Association.GateThreshold = tc.GateThreshold
	cfg.Association.MinScore = tc.MinScore
	cfg.Association.AppearanceWeight = tc.AppearanceWeight
	if tc.GateMetric == "geometric" {
		cfg.Association.GateMetric = mot.GateMetricGeometric
	}
	if tc.Matching == "greedy" {
		cfg.Association.Algorithm = mot.MatchingAlgorithmGreedy
	}
	return cfg
}

// SessionID identifies this pipeline run in logs and the API.
func (p *Pipeline) SessionID() string {
	return p.sessionID.String()
}

// ProcessFrame runs one full cycle on a frame. A malformed frame returns
// vision.ErrInvalidFrame and leaves track state untouched; a detector
// failure is fatal and should stop the run. Either way a frame never
// leaves the store half-updated: all mutations happen in the tracker's
// single apply batch.
func (p *Pipeline) ProcessFrame(ctx context.Context, frame gocv.Mat) (FrameResult, error) {
	// shutdown drops frames before processing begins, never mid-cycle
	if err := ctx.Err(); err != nil {
		return FrameResult{}, err
	}
	start := time.Now()

	preStart := time.Now()
	padded, sp, err := vision.PadToStride(frame, p.stride, p.detector.InputSize())
	if err != nil {
		p.markSkipped()
		return FrameResult{}, err
	}
	defer padded.Close()
	p.metrics.observeStage("preprocess", time.Since(preStart).Seconds())

	detStart := time.Now()
	raw, err := p.detector.Detect(ctx, padded)
	if err != nil {
		return FrameResult{}, errors.Wrap(err, "detector failed")
	}
	p.metrics.observeStage("detect", time.Since(detStart).Seconds())

	dets := vision.FilterDetections(raw, sp, p.labels, p.postFilter)
	p.metrics.detectionsKept.Observe(float64(len(dets)))

	if p.embedder != nil && len(dets) > 0 {
		embStart := time.Now()
		embeddings, err := p.embedder.Embed(frame, dets)
		if err != nil {
			// appearance is an optimization: fall back to motion-only
			p.log.Warn("embedding failed, matching on motion only", "error", err)
		} else {
			for i := range dets {
				dets[i].Embedding = embeddings[i]
			}
		}
		p.metrics.observeStage("embed", time.Since(embStart).Seconds())
	}

	return p.step(dets, start)
}

// step feeds the frame's detections to the tracker and publishes the
// resulting snapshot. Split from ProcessFrame so the tracking flow can
// be exercised without image data.
func (p *Pipeline) step(dets []mot.Detection, start time.Time) (FrameResult, error) {
	trackStart := time.Now()
	snapshots, err := p.tracker.Step(dets)
	if err != nil {
		return FrameResult{}, errors.Wrap(err, "tracker step failed")
	}
	p.metrics.observeStage("track", time.Since(trackStart).Seconds())

	tentative := 0
	confirmed := 0
	for _, trk := range p.tracker.Store().Active() {
		if trk.IsConfirmed() {
			confirmed++
		} else {
			tentative++
		}
	}
	p.metrics.setTrackCounts(tentative, confirmed)
	p.metrics.framesProcessed.Inc()

	p.mu.Lock()
	p.processed++
	idx := p.processed
	p.lastTracks = snapshots
	p.lastTentative = tentative
	p.lastConfirmed = confirmed
	p.mu.Unlock()

	return FrameResult{
		FrameIndex: idx,
		Tracks:     snapshots,
		Elapsed:    time.Since(start),
	}, nil
}

func (p *Pipeline) markSkipped() {
	p.metrics.framesSkipped.Inc()
	p.mu.Lock()
	p.skipped++
	p.mu.Unlock()
}

// LatestTracks returns the most recent confirmed-track snapshot. Safe
// for concurrent use with ProcessFrame.
func (p *Pipeline) LatestTracks() []mot.TrackSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]mot.TrackSnapshot, len(p.lastTracks))
	copy(out, p.lastTracks)
	return out
}

// Stats returns a point-in-time run summary. Track counts come from the
// last published cycle; reading the store directly here would race with
// ProcessFrame. Safe for concurrent use.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Stats{
		SessionID:       p.sessionID.String(),
		StartedAt:       p.startedAt,
		FramesProcessed: p.processed,
		FramesSkipped:   p.skipped,
		TentativeTracks: p.lastTentative,
		ConfirmedTracks: p.lastConfirmed,
	}
}

// Run drains the frame source until it closes or the context is
// cancelled, publishing results to out. The out channel should be
// buffered by one frame so annotation of frame N overlaps processing of
// frame N+1 without unbounded queueing. Run closes out on return; frame
// ownership passes through each FrameResult to the consumer, except for
// skipped or failed frames which Run closes itself.
func (p *Pipeline) Run(ctx context.Context, frames <-chan gocv.Mat, out chan<- FrameResult) error {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("pipeline stopped", "session", p.SessionID())
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				p.log.Info("frame source exhausted", "session", p.SessionID())
				return nil
			}

			res, err := p.ProcessFrame(ctx, frame)
			if err != nil {
				frame.Close()
				if errors.Is(err, vision.ErrInvalidFrame) {
					p.log.Warn("skipping invalid frame")
					continue
				}
				return err
			}
			res.Frame = frame

			select {
			case out <- res:
			case <-ctx.Done():
				frame.Close()
				return ctx.Err()
			}
		}
	}
}

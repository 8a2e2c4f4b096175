package mot

import (
	"github.com/pkg/errors"
)

// Config holds the tracker's lifecycle and association parameters.
type Config struct {
	// Dt is the motion model time step, 1.0 for frame units or 1/fps for
	// wall-clock units.
	Dt float64
	// MinHits is the number of consecutive matches a tentative track
	// needs before it is confirmed.
	MinHits int
	// MaxAgeTentative is how many unmatched frames a tentative track
	// survives. Kept short: a tentative track is unverified.
	MaxAgeTentative int
	// MaxAgeConfirmed is how many unmatched frames a confirmed track
	// survives, covering brief occlusions.
	MaxAgeConfirmed int
	// EmbeddingAlpha is the EMA weight of the newest appearance
	// descriptor when refreshing a track's embedding. 1.0 is latest-wins.
	EmbeddingAlpha float64
	Association    AssociationConfig
}

// DefaultConfig returns the classic DeepSORT-style parameter set.
func DefaultConfig() Config {
	return Config{
		Dt:              1.0,
		MinHits:         3,
		MaxAgeTentative: 3,
		MaxAgeConfirmed: 30,
		EmbeddingAlpha:  0.1,
		Association:     DefaultAssociationConfig(),
	}
}

// TrackSnapshot is the per-frame output record for one confirmed track,
// safe to hand to consumers outside the tracker's single-writer cycle.
type TrackSnapshot struct {
	ID        int64     `json:"id"`
	ClassID   int       `json:"class_id"`
	ClassName string    `json:"class_name"`
	Box       Rectangle `json:"box"`
}

// Tracker ties prediction, association and lifecycle management into the
// per-frame cycle. Not safe for concurrent use: one frame's Step must
// finish before the next begins.
type Tracker struct {
	cfg   Config
	store *TrackStore
}

// NewTracker creates a tracker with an empty store.
func NewTracker(cfg Config) *Tracker {
	return &Tracker{
		cfg:   cfg,
		store: NewTrackStore(),
	}
}

// NewDefaultTracker creates a tracker with DefaultConfig.
func NewDefaultTracker() *Tracker {
	return NewTracker(DefaultConfig())
}

// Store exposes the underlying track store for inspection. Callers must
// not use it concurrently with Step.
func (t *Tracker) Store() *TrackStore {
	return t.store
}

// Step runs one frame cycle: predict every live track, associate the
// frame's detections, then apply all lifecycle mutations as one batch.
// An empty detection slice is a valid frame where every track simply
// goes unmatched. The returned snapshots are the confirmed tracks
// matched in this very frame, in stable track order.
func (t *Tracker) Step(detections []Detection) ([]TrackSnapshot, error) {
	active := t.store.Active()
	for _, trk := range active {
		trk.Predict()
	}

	// Association is pure; mutations start only after the full result is known
	result := Associate(active, detections, t.cfg.Association)

	// Resolve every mutation target before touching any state
	matched := make([]*Track, len(result.Matches))
	for i, match := range result.Matches {
		trk, ok := t.store.Get(match.TrackID)
		if !ok {
			return nil, errors.Errorf("association produced unknown track id %d", match.TrackID)
		}
		matched[i] = trk
	}

	// Updates, misses, spawns and pruning land as one batch; a failed
	// correction is reported after the rest of the frame has settled
	var applyErr error
	for i, match := range result.Matches {
		if err := matched[i].Update(detections[match.DetectionIdx]); err != nil && applyErr == nil {
			applyErr = errors.Wrap(err, "can't apply matched detection")
		}
	}
	for _, id := range result.UnmatchedTracks {
		if trk, ok := t.store.Get(id); ok {
			trk.MarkMissed()
		}
	}
	for _, detIdx := range result.UnmatchedDetections {
		t.store.spawn(detections[detIdx], t.cfg.Dt, t.cfg.MinHits, t.cfg.MaxAgeTentative, t.cfg.MaxAgeConfirmed, t.cfg.EmbeddingAlpha)
	}
	t.store.prune()
	if applyErr != nil {
		return nil, applyErr
	}

	return t.Output(), nil
}

// Output returns snapshots of confirmed tracks that were matched in the
// last cycle (TimeSinceUpdate == 0).
func (t *Tracker) Output() []TrackSnapshot {
	confirmed := t.store.Confirmed()
	out := make([]TrackSnapshot, 0, len(confirmed))
	for _, trk := range confirmed {
		if trk.TimeSinceUpdate() != 0 {
			continue
		}
		out = append(out, TrackSnapshot{
			ID:        trk.ID(),
			ClassID:   trk.ClassID(),
			ClassName: trk.ClassName(),
			Box:       trk.BBox(),
		})
	}
	return out
}

package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

// TrackState is the lifecycle state of a track.
type TrackState uint8

const (
	// TrackTentative is the state of a freshly spawned track that has not
	// yet accumulated enough consecutive hits to be trusted.
	TrackTentative TrackState = iota
	// TrackConfirmed is the state of a track verified by minHits
	// consecutive matches.
	TrackConfirmed
	// TrackDeleted is terminal. A deleted track is never revived and its
	// identifier is never reused.
	TrackDeleted
)

func (s TrackState) String() string {
	switch s {
	case TrackTentative:
		return "tentative"
	case TrackConfirmed:
		return "confirmed"
	case TrackDeleted:
		return "deleted"
	}
	return "unknown"
}

// Track is a single tracked object's continuity record. Motion state is
// an 8-D constant-velocity Kalman filter over the full bounding box
// [cx, cy, w, h, vcx, vcy, vw, vh].
type Track struct {
	id            int64
	state         TrackState
	hits          int
	timeSinceUpd  int
	classID       int
	className     string
	currentBBox   Rectangle
	predictedBBox Rectangle
	embedding     []float64
	kf            *kalman_filter.KalmanBBox

	minHits         int
	embeddingAlpha  float64
	maxAgeTentative int
	maxAgeConfirmed int
}

// newTrack spawns a tentative track from an unmatched detection. Only the
// TrackStore allocates identifiers, so this stays package-private.
func newTrack(id int64, det Detection, dt float64, minHits, maxAgeTentative, maxAgeConfirmed int, embeddingAlpha float64) *Track {
	center := det.Box.Center()

	// Kalman filter props, same scale as the detector's pixel space
	uCx := 1.0
	uCy := 1.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	kf := kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(center.X, center.Y, det.Box.Width, det.Box.Height),
	)

	trk := &Track{
		id:              id,
		state:           TrackTentative,
		hits:            1,
		timeSinceUpd:    0,
		classID:         det.ClassID,
		className:       det.ClassName,
		currentBBox:     det.Box,
		predictedBBox:   det.Box,
		kf:              kf,
		minHits:         minHits,
		embeddingAlpha:  embeddingAlpha,
		maxAgeTentative: maxAgeTentative,
		maxAgeConfirmed: maxAgeConfirmed,
	}
	if len(det.Embedding) > 0 {
		trk.embedding = blendEmbedding(nil, det.Embedding, 1.0)
	}
	// The spawning detection already counts as a hit
	if trk.hits >= trk.minHits {
		trk.state = TrackConfirmed
	}
	return trk
}

// ID returns the track's identifier. It is immutable once assigned.
func (trk *Track) ID() int64 {
	return trk.id
}

// State returns the track's current lifecycle state.
func (trk *Track) State() TrackState {
	return trk.state
}

// Hits returns the number of consecutive successful matches.
func (trk *Track) Hits() int {
	return trk.hits
}

// TimeSinceUpdate returns the number of frames since the last matched
// detection. It resets to 0 only on a successful match.
func (trk *Track) TimeSinceUpdate() int {
	return trk.timeSinceUpd
}

// ClassID returns the detector class index.
func (trk *Track) ClassID() int {
	return trk.classID
}

// ClassName returns the detector class label.
func (trk *Track) ClassName() string {
	return trk.className
}

// BBox returns the track's current (smoothed) bounding box.
func (trk *Track) BBox() Rectangle {
	return trk.currentBBox
}

// PredictedBBox returns the bounding box predicted by the motion model
// for the current frame.
func (trk *Track) PredictedBBox() Rectangle {
	return trk.predictedBBox
}

// Embedding returns the track's appearance descriptor, nil when
// appearance matching is disabled. The slice is not a copy.
func (trk *Track) Embedding() []float64 {
	return trk.embedding
}

// Velocity returns current velocity estimates (vx, vy, vw, vh).
func (trk *Track) Velocity() (float64, float64, float64, float64) {
	return trk.kf.GetVelocity()
}

// IsConfirmed reports whether the track has been promoted.
func (trk *Track) IsConfirmed() bool {
	return trk.state == TrackConfirmed
}

// IsDeleted reports whether the track reached its terminal state.
func (trk *Track) IsDeleted() bool {
	return trk.state == TrackDeleted
}

// Predict advances the motion model one time step. It runs once per
// frame for every live track, before association, whether or not a match
// will be found.
func (trk *Track) Predict() {
	trk.kf.Predict()
	cx, cy, w, h := trk.kf.GetState()
	trk.predictedBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}
}

// Update corrects the motion model with a matched detection, resets the
// track's age, bumps the hit streak and refreshes the appearance
// descriptor. A tentative track is promoted once it reaches minHits.
func (trk *Track) Update(det Detection) error {
	center := det.Box.Center()
	err := trk.kf.Update(center.X, center.Y, det.Box.Width, det.Box.Height)
	if err != nil {
		return errors.Wrapf(err, "can't correct motion state of track %d", trk.id)
	}

	cx, cy, w, h := trk.kf.GetState()
	trk.currentBBox = Rectangle{
		X:      cx - w/2.0,
		Y:      cy - h/2.0,
		Width:  w,
		Height: h,
	}

	trk.hits++
	trk.timeSinceUpd = 0
	trk.className = det.ClassName
	trk.classID = det.ClassID
	if len(det.Embedding) > 0 {
		trk.embedding = blendEmbedding(trk.embedding, det.Embedding, trk.embeddingAlpha)
	}
	if trk.state == TrackTentative && trk.hits >= trk.minHits {
		trk.state = TrackConfirmed
	}
	return nil
}

// MarkMissed ages the track by one unmatched frame. Tentative tracks are
// pruned faster than confirmed ones since they are unverified.
func (trk *Track) MarkMissed() {
	trk.timeSinceUpd++
	trk.hits = 0
	switch trk.state {
	case TrackTentative:
		if trk.timeSinceUpd > trk.maxAgeTentative {
			trk.state = TrackDeleted
		}
	case TrackConfirmed:
		if trk.timeSinceUpd > trk.maxAgeConfirmed {
			trk.state = TrackDeleted
		}
	}
}

// GatingDistance returns the Mahalanobis distance between the predicted
// state and a detection's box under the filter's innovation covariance.
func (trk *Track) GatingDistance(det Detection) (float64, error) {
	center := det.Box.Center()
	return trk.kf.MahalanobisDistance(center.X, center.Y, det.Box.Width, det.Box.Height)
}

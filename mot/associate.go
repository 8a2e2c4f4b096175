package mot

import (
	"sort"

	hungarian "github.com/arthurkushman/go-hungarian"
)

// MatchingAlgorithm is for algorithm type for matching detections to tracks
type MatchingAlgorithm uint16

const (
	// MatchingAlgorithmHungarian uses the Hungarian algorithm (Kuhn-Munkres) for optimal assignment
	MatchingAlgorithmHungarian MatchingAlgorithm = iota
	// MatchingAlgorithmGreedy uses a greedy algorithm for faster but potentially suboptimal assignment
	MatchingAlgorithmGreedy
)

// GateMetric selects the distance used for the gating test.
type GateMetric uint16

const (
	// GateMetricMahalanobis gates on the Kalman filter's Mahalanobis
	// distance between predicted state and measurement. Pair it with a
	// chi-square threshold such as ChiSquare95Quantile4DOF.
	GateMetricMahalanobis GateMetric = iota
	// GateMetricGeometric gates on the predicted-center to
	// detection-center distance normalized by the predicted box
	// diagonal. A threshold of 1.0 forbids matches further away than one
	// diagonal.
	GateMetricGeometric
)

// ChiSquare95Quantile4DOF is the 0.95 quantile of the chi-square
// distribution with 4 degrees of freedom, the usual gate for a
// Mahalanobis distance over a [cx, cy, w, h] measurement.
const ChiSquare95Quantile4DOF = 9.4877

// AssociationConfig tunes the detection-to-track matching step.
type AssociationConfig struct {
	// GateMetric selects how the gating distance is measured.
	GateMetric GateMetric
	// GateThreshold rejects (track, detection) pairs whose gating
	// distance exceeds it, before any cost comparison. Its scale follows
	// the chosen metric.
	GateThreshold float64
	// MinScore is the minimum combined similarity for a pair to count as
	// a match. Must be positive so gated pairs (score 0) can never win.
	MinScore float64
	// AppearanceWeight balances appearance similarity against motion
	// similarity in [0, 1]. 0 disables appearance entirely.
	AppearanceWeight float64
	// Algorithm selects optimal or greedy assignment.
	Algorithm MatchingAlgorithm
}

// DefaultAssociationConfig mirrors the classic DeepSORT-style settings.
func DefaultAssociationConfig() AssociationConfig {
	return AssociationConfig{
		GateMetric:       GateMetricMahalanobis,
		GateThreshold:    ChiSquare95Quantile4DOF,
		MinScore:         0.1,
		AppearanceWeight: 0.25,
		Algorithm:        MatchingAlgorithmHungarian,
	}
}

// Match pairs a track with the index of a current-frame detection.
type Match struct {
	TrackID      int64
	DetectionIdx int
}

// AssociationResult partitions a frame's association outcome. Every
// track appears exactly once in Matches or UnmatchedTracks, every
// detection index exactly once in Matches or UnmatchedDetections.
type AssociationResult struct {
	Matches             []Match
	UnmatchedTracks     []int64
	UnmatchedDetections []int
}

// Associate matches current-frame detections to the given tracks. It is
// a pure function of the track snapshot and detections: tracks must
// already be predicted for this frame, and nothing is mutated here.
//
// Tracks are matched in a cascade: tracks that have gone longer without
// a match face the detection pool first, so a stale track is not starved
// by a fresher neighbor competing for the same detection.
func Associate(tracks []*Track, detections []Detection, cfg AssociationConfig) AssociationResult {
	res := AssociationResult{
		Matches:             make([]Match, 0, minInt(len(tracks), len(detections))),
		UnmatchedTracks:     make([]int64, 0),
		UnmatchedDetections: make([]int, 0),
	}

	// Degenerate cases never reach the solver
	if len(tracks) == 0 {
		for i := range detections {
			res.UnmatchedDetections = append(res.UnmatchedDetections, i)
		}
		return res
	}
	if len(detections) == 0 {
		for _, trk := range tracks {
			res.UnmatchedTracks = append(res.UnmatchedTracks, trk.ID())
		}
		return res
	}

	// Group track indices by staleness, stalest first
	groups := cascadeGroups(tracks)

	remaining := make([]int, 0, len(detections))
	for i := range detections {
		remaining = append(remaining, i)
	}

	for _, group := range groups {
		if len(remaining) == 0 {
			for _, trkIdx := range group {
				res.UnmatchedTracks = append(res.UnmatchedTracks, tracks[trkIdx].ID())
			}
			continue
		}

		scores, gated := scoreMatrix(tracks, detections, group, remaining, cfg)
		var pairs [][2]int
		switch cfg.Algorithm {
		case MatchingAlgorithmGreedy:
			pairs = solveGreedy(scores, cfg.MinScore)
		default:
			pairs = solveHungarian(scores)
		}

		matchedDetPos := make(map[int]struct{})
		matchedTrkPos := make(map[int]struct{})
		for _, pair := range pairs {
			ti, di := pair[0], pair[1]
			if gated[ti][di] || scores[ti][di] < cfg.MinScore {
				continue
			}
			res.Matches = append(res.Matches, Match{
				TrackID:      tracks[group[ti]].ID(),
				DetectionIdx: remaining[di],
			})
			matchedTrkPos[ti] = struct{}{}
			matchedDetPos[di] = struct{}{}
		}

		for ti, trkIdx := range group {
			if _, ok := matchedTrkPos[ti]; !ok {
				res.UnmatchedTracks = append(res.UnmatchedTracks, tracks[trkIdx].ID())
			}
		}
		kept := remaining[:0]
		for di, detIdx := range remaining {
			if _, ok := matchedDetPos[di]; !ok {
				kept = append(kept, detIdx)
			}
		}
		remaining = kept
	}

	res.UnmatchedDetections = append(res.UnmatchedDetections, remaining...)
	return res
}

// cascadeGroups buckets track indices by TimeSinceUpdate and returns the
// buckets in descending staleness order. Insertion order is preserved
// inside a bucket.
func cascadeGroups(tracks []*Track) [][]int {
	byAge := make(map[int][]int)
	ages := make([]int, 0)
	for i, trk := range tracks {
		age := trk.TimeSinceUpdate()
		if _, ok := byAge[age]; !ok {
			ages = append(ages, age)
		}
		byAge[age] = append(byAge[age], i)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ages)))
	groups := make([][]int, 0, len(ages))
	for _, age := range ages {
		groups = append(groups, byAge[age])
	}
	return groups
}

// scoreMatrix builds the combined similarity matrix for one cascade
// group. Gated pairs get score 0 and a true flag in the gated mask.
func scoreMatrix(tracks []*Track, detections []Detection, group, remaining []int, cfg AssociationConfig) ([][]float64, [][]bool) {
	scores := make([][]float64, len(group))
	gated := make([][]bool, len(group))
	for ti, trkIdx := range group {
		trk := tracks[trkIdx]
		scores[ti] = make([]float64, len(remaining))
		gated[ti] = make([]bool, len(remaining))
		for di, detIdx := range remaining {
			det := detections[detIdx]

			gd, err := gatingDistance(trk, det, cfg.GateMetric)
			if err != nil || gd > cfg.GateThreshold {
				gated[ti][di] = true
				continue
			}
			scores[ti][di] = pairScore(trk, det, cfg.AppearanceWeight)
		}
	}
	return scores, gated
}

// gatingDistance measures how implausible a (track, detection) pair is
// under the configured metric.
func gatingDistance(trk *Track, det Detection, metric GateMetric) (float64, error) {
	switch metric {
	case GateMetricGeometric:
		predicted := trk.PredictedBBox()
		dist := euclideanDistance(predicted.Center(), det.Box.Center())
		return dist / maxFloat(1.0, predicted.Diagonal()), nil
	default:
		return trk.GatingDistance(det)
	}
}

// pairScore combines motion and appearance similarity for a non-gated
// pair. Motion similarity is hybrid IoU + center distance so a near miss
// with zero overlap can still recover.
func pairScore(trk *Track, det Detection, appearanceWeight float64) float64 {
	predicted := trk.PredictedBBox()
	iouValue := IoU(det.Box, predicted)
	distance := euclideanDistance(predicted.Center(), det.Box.Center())
	// Convert to 0-1 similarity
	distanceScore := 1.0 / (1.0 + distance*0.01)

	var motionScore float64
	if iouValue > 0.05 {
		motionScore = iouValue*0.8 + distanceScore*0.2
	} else {
		// Lower weight for pure distance matching
		motionScore = distanceScore * 0.5
	}

	if appearanceWeight <= 0 || len(trk.Embedding()) == 0 || len(det.Embedding) == 0 {
		return motionScore
	}
	appearanceScore := maxFloat(0, CosineSimilarity(trk.Embedding(), det.Embedding))
	return (1.0-appearanceWeight)*motionScore + appearanceWeight*appearanceScore
}

// solveHungarian runs optimal assignment over the score matrix, padding
// it square with zero scores first.
func solveHungarian(scores [][]float64) [][2]int {
	numTracks := len(scores)
	numDetections := len(scores[0])

	paddedSize := maxInt(numTracks, numDetections)
	padded := scores
	if numTracks != numDetections {
		padded = make([][]float64, paddedSize)
		for i := 0; i < paddedSize; i++ {
			padded[i] = make([]float64, paddedSize)
		}
		for i := 0; i < numTracks; i++ {
			copy(padded[i], scores[i])
		}
	}

	assignments := hungarian.SolveMax(padded)
	pairs := make([][2]int, 0, minInt(numTracks, numDetections))
	for trackIdx, rowMap := range assignments {
		if len(rowMap) == 0 {
			continue
		}
		var detIdx int
		for di := range rowMap {
			detIdx = di
			break
		}
		// Padding rows/columns fall outside the real matrix
		if trackIdx < numTracks && detIdx < numDetections {
			pairs = append(pairs, [2]int{trackIdx, detIdx})
		}
	}
	return pairs
}

// solveGreedy pops candidate pairs best-score-first, reserving each
// track and detection on first use.
func solveGreedy(scores [][]float64, minScore float64) [][2]int {
	pq := make(scoreHeap, 0, len(scores)*len(scores[0]))
	for ti := range scores {
		for di := range scores[ti] {
			if scores[ti][di] >= minScore {
				pq.Push(candidatePair{trackIdx: ti, detIdx: di, score: scores[ti][di]})
			}
		}
	}

	usedTracks := make(map[int]struct{})
	usedDets := make(map[int]struct{})
	pairs := make([][2]int, 0)
	for pq.Len() > 0 {
		cand := pq.Pop()
		if _, ok := usedTracks[cand.trackIdx]; ok {
			continue
		}
		if _, ok := usedDets[cand.detIdx]; ok {
			continue
		}
		usedTracks[cand.trackIdx] = struct{}{}
		usedDets[cand.detIdx] = struct{}{}
		pairs = append(pairs, [2]int{cand.trackIdx, cand.detIdx})
	}
	return pairs
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

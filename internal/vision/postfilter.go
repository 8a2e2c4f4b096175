package vision

import (
	"sort"

	"github.com/tracksight/tracksight/mot"
)

// PostFilterConfig tunes confidence thresholding and non-max
// suppression over raw detector candidates.
type PostFilterConfig struct {
	ConfidenceThreshold float64
	NMSIoUThreshold     float64
	MaxDetections       int
}

// FilterDetections turns raw candidates into the frame's final
// detections: drop low-confidence candidates, run stable greedy NMS,
// then rescale the survivors from tensor space back into original frame
// coordinates and attach class labels.
func FilterDetections(raw []RawDetection, sp ScalePad, labels *Labels, cfg PostFilterConfig) []mot.Detection {
	kept := NonMaxSuppression(raw, cfg)

	out := make([]mot.Detection, 0, len(kept))
	for _, cand := range kept {
		box := sp.Invert(cand.Box)
		if box.Width <= 0 || box.Height <= 0 {
			continue
		}
		out = append(out, mot.Detection{
			Box:        box,
			Confidence: cand.Confidence,
			ClassID:    cand.ClassID,
			ClassName:  labels.Name(cand.ClassID),
		})
	}
	return out
}

// NonMaxSuppression greedily keeps the highest-confidence candidate and
// suppresses every remaining candidate overlapping it beyond the IoU
// threshold, until no candidates remain or MaxDetections is reached.
// Confidence ties break by original candidate order, so the result is
// stable and re-running NMS on its own output is a no-op.
func NonMaxSuppression(raw []RawDetection, cfg PostFilterConfig) []RawDetection {
	order := make([]int, 0, len(raw))
	for i, cand := range raw {
		if cand.Confidence >= cfg.ConfidenceThreshold {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return raw[order[a]].Confidence > raw[order[b]].Confidence
	})

	suppressed := make(map[int]struct{})
	kept := make([]RawDetection, 0, minIntV(len(order), cfg.MaxDetections))
	for pos, i := range order {
		if _, ok := suppressed[i]; ok {
			continue
		}
		kept = append(kept, raw[i])
		if cfg.MaxDetections > 0 && len(kept) >= cfg.MaxDetections {
			break
		}
		for _, j := range order[pos+1:] {
			if _, ok := suppressed[j]; ok {
				continue
			}
			if mot.IoU(raw[i].Box, raw[j].Box) > cfg.NMSIoUThreshold {
				suppressed[j] = struct{}{}
			}
		}
	}
	return kept
}

func minIntV(a, b int) int {
	if b > 0 && b < a {
		return b
	}
	return a
}

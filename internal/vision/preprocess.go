// Package vision holds the frame-facing stages of the pipeline:
// preprocessing, detector backends, detection post-filtering, appearance
// embedding and output annotation. The tracking core in package mot
// never touches image data directly.
package vision

import (
	"image"
	"image/color"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/mot"
)

// new pixels introduced by padding are zero-filled
var zeroBorder = color.RGBA{0, 0, 0, 0}

// ErrInvalidFrame marks a malformed or empty input frame. Such frames
// are skipped; the track store is untouched.
var ErrInvalidFrame = errors.New("invalid frame: no spatial dimensions")

// ScalePad records the forward transform applied to a frame on its way
// to the detector: zero-padding to a stride multiple (original content
// top-left) followed by stretching to the detector's input size. The
// inverse mapping back to original frame coordinates must be exact, so
// every factor is kept here.
type ScalePad struct {
	OrigWidth    int
	OrigHeight   int
	PaddedWidth  int
	PaddedHeight int
	TensorWidth  int
	TensorHeight int
}

// scale ratios from padded space into tensor space.
func (sp ScalePad) scaleX() float64 { return float64(sp.TensorWidth) / float64(sp.PaddedWidth) }
func (sp ScalePad) scaleY() float64 { return float64(sp.TensorHeight) / float64(sp.PaddedHeight) }

// Invert maps a box from tensor space back to original frame space:
// reverse the scale ratio (pad offset is zero since padding grows
// right/bottom), round corners to integer pixels, clamp to frame bounds.
func (sp ScalePad) Invert(box mot.Rectangle) mot.Rectangle {
	x1 := math.Round(box.X / sp.scaleX())
	y1 := math.Round(box.Y / sp.scaleY())
	x2 := math.Round((box.X + box.Width) / sp.scaleX())
	y2 := math.Round((box.Y + box.Height) / sp.scaleY())

	x1 = clampFloat(x1, 0, float64(sp.OrigWidth))
	y1 = clampFloat(y1, 0, float64(sp.OrigHeight))
	x2 = clampFloat(x2, 0, float64(sp.OrigWidth))
	y2 = clampFloat(y2, 0, float64(sp.OrigHeight))

	return mot.NewRect(x1, y1, x2-x1, y2-y1)
}

// paddedDims returns the smallest stride multiples >= the original
// dimensions.
func paddedDims(width, height, stride int) (int, int) {
	pw := (width + stride - 1) / stride * stride
	ph := (height + stride - 1) / stride * stride
	return pw, ph
}

// PadToStride zero-pads the frame so that both dimensions are stride
// multiples, keeping the original content unscaled in the top-left
// region. The caller owns the returned Mat.
func PadToStride(frame gocv.Mat, stride int, tensorSize image.Point) (gocv.Mat, ScalePad, error) {
	width := frame.Cols()
	height := frame.Rows()
	if width <= 0 || height <= 0 {
		return gocv.Mat{}, ScalePad{}, ErrInvalidFrame
	}

	pw, ph := paddedDims(width, height, stride)
	sp := ScalePad{
		OrigWidth:    width,
		OrigHeight:   height,
		PaddedWidth:  pw,
		PaddedHeight: ph,
		TensorWidth:  tensorSize.X,
		TensorHeight: tensorSize.Y,
	}

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(frame, &padded, 0, ph-height, 0, pw-width, gocv.BorderConstant, zeroBorder)
	return padded, sp, nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

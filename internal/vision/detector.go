package vision

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/mot"
)

// ErrDetectorUnavailable marks a detector backend failure. Unlike a bad
// frame this is fatal for the pipeline: no track updates are attempted.
var ErrDetectorUnavailable = errors.New("detector backend unavailable")

// RawDetection is a candidate box straight out of the detector, still in
// tensor coordinate space and not yet de-duplicated.
type RawDetection struct {
	Box        mot.Rectangle
	Confidence float64
	ClassID    int
}

// Detector is the black-box detection capability: any backend that maps
// a preprocessed tensor to scored candidate boxes is substitutable. The
// pipeline depends only on this contract.
type Detector interface {
	// Detect returns candidate boxes in the tensor's coordinate space.
	Detect(ctx context.Context, tensor gocv.Mat) ([]RawDetection, error)
	// InputSize is the spatial size the backend expects its tensor in.
	InputSize() image.Point
	Close() error
}

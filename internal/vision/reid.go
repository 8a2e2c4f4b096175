package vision

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/mot"
)

// Embedder produces appearance descriptors for detection crops. Like the
// detector it is a substitutable capability; the tracker only sees the
// resulting vectors.
type Embedder interface {
	// Embed returns one L2-normalized descriptor per detection, indexed
	// the same way as the input slice.
	Embed(frame gocv.Mat, detections []mot.Detection) ([][]float64, error)
	Close() error
}

// ONNXEmbedder runs a re-identification ONNX model over detection crops
// through the gocv DNN module.
type ONNXEmbedder struct {
	net         gocv.Net
	inputWidth  int
	inputHeight int
	outputLayer string
}

// NewONNXEmbedder loads the ReID model.
func NewONNXEmbedder(modelPath string, inputWidth, inputHeight int, outputLayer string) (*ONNXEmbedder, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, errors.Errorf("can't read ReID model from %s", modelPath)
	}
	return &ONNXEmbedder{
		net:         net,
		inputWidth:  inputWidth,
		inputHeight: inputHeight,
		outputLayer: outputLayer,
	}, nil
}

// Embed crops every detection box out of the frame, runs it through the
// network and collects normalized descriptors. Degenerate crops get a
// nil descriptor, which the association engine treats as
// appearance-less.
func (e *ONNXEmbedder) Embed(frame gocv.Mat, detections []mot.Detection) ([][]float64, error) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	out := make([][]float64, len(detections))

	for i, det := range detections {
		crop := det.Box.ToImageRect().Intersect(bounds)
		if crop.Dx() < 2 || crop.Dy() < 2 {
			continue
		}

		descriptor, err := e.embedCrop(frame, crop)
		if err != nil {
			return nil, errors.Wrapf(err, "can't embed detection %d", i)
		}
		out[i] = descriptor
	}
	return out, nil
}

func (e *ONNXEmbedder) embedCrop(frame gocv.Mat, crop image.Rectangle) ([]float64, error) {
	region := frame.Region(crop)
	defer region.Close()

	blob := gocv.BlobFromImage(region, blobRatio, image.Pt(e.inputWidth, e.inputHeight), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward(e.outputLayer)
	defer output.Close()

	ptr, err := output.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "can't read embedding output")
	}
	descriptor := make([]float64, len(ptr))
	for i, v := range ptr {
		descriptor[i] = float64(v)
	}
	return mot.NormalizeEmbedding(descriptor), nil
}

// Close frees the underlying network.
func (e *ONNXEmbedder) Close() error {
	return e.net.Close()
}

package vision

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/mot"
)

const blobRatio = 1.0 / 255.0

// ONNXDetector runs a YOLO-family ONNX model through the gocv DNN
// module. The model is loaded once and reused for every frame.
type ONNXDetector struct {
	net         gocv.Net
	outputNames []string
	inputWidth  int
	inputHeight int
}

// NewONNXDetector loads the model and resolves its output layer names.
func NewONNXDetector(modelPath string, inputWidth, inputHeight int, backend gocv.NetBackendType, target gocv.NetTargetType) (*ONNXDetector, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, errors.Wrapf(ErrDetectorUnavailable, "can't read network model from %s", modelPath)
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		return nil, errors.Wrap(err, "can't set DNN backend")
	}
	if err := net.SetPreferableTarget(target); err != nil {
		return nil, errors.Wrap(err, "can't set DNN target")
	}

	outputNames := outputLayerNames(&net)
	if len(outputNames) == 0 {
		return nil, errors.Wrap(ErrDetectorUnavailable, "can't read output layer names")
	}

	return &ONNXDetector{
		net:         net,
		outputNames: outputNames,
		inputWidth:  inputWidth,
		inputHeight: inputHeight,
	}, nil
}

// InputSize is the spatial size of the model's input tensor.
func (d *ONNXDetector) InputSize() image.Point {
	return image.Pt(d.inputWidth, d.inputHeight)
}

// Detect runs a forward pass and decodes every candidate row. No
// thresholding or suppression happens here; that is the post-filter's
// job so the backend stays a pure capability.
func (d *ONNXDetector) Detect(ctx context.Context, tensor gocv.Mat) ([]RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if tensor.Empty() {
		return nil, ErrInvalidFrame
	}

	// BGR to RGB and 1/255 scaling happen inside the blob conversion
	blob := gocv.BlobFromImage(tensor, blobRatio, image.Pt(d.inputWidth, d.inputHeight), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	outputs := d.net.ForwardLayers(d.outputNames)
	defer func() {
		for _, out := range outputs {
			out.Close()
		}
	}()
	if len(outputs) == 0 {
		return nil, errors.Wrap(ErrDetectorUnavailable, "forward pass produced no outputs")
	}

	return decodeYOLO(outputs), nil
}

// Close frees the underlying network.
func (d *ONNXDetector) Close() error {
	return d.net.Close()
}

func outputLayerNames(net *gocv.Net) []string {
	var outputLayers []string
	for _, i := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(i)
		layerName := layer.GetName()
		if layerName != "_input" {
			outputLayers = append(outputLayers, layerName)
		}
	}
	return outputLayers
}

// decodeYOLO unpacks [1, 4+C, N] YOLO output rows into candidate boxes.
// Each row is [cx, cy, w, h, class scores...] in tensor pixel space.
func decodeYOLO(outs []gocv.Mat) []RawDetection {
	candidates := make([]RawDetection, 0, 128)

	for oi := range outs {
		// [1, 4+C, N] -> [1, N, 4+C]
		gocv.TransposeND(outs[oi], []int{0, 2, 1}, &outs[oi])
		rows := outs[oi].Reshape(1, outs[oi].Size()[1])

		cols := rows.Cols()
		for i := 0; i < rows.Rows(); i++ {
			row := rows.RowRange(i, i+1)

			scores := row.ColRange(4, cols)
			_, confidence, _, classIDPoint := gocv.MinMaxLoc(scores)

			centerX := float64(rows.GetFloatAt(i, 0))
			centerY := float64(rows.GetFloatAt(i, 1))
			width := float64(rows.GetFloatAt(i, 2))
			height := float64(rows.GetFloatAt(i, 3))

			candidates = append(candidates, RawDetection{
				Box: mot.NewRect(
					centerX-width/2.0,
					centerY-height/2.0,
					width,
					height,
				),
				Confidence: float64(confidence),
				ClassID:    classIDPoint.X,
			})

			scores.Close()
			row.Close()
		}
		rows.Close()
	}

	return candidates
}

package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

// yoloTensor builds a [1, 4+C, N] output tensor from per-candidate rows
// of [cx, cy, w, h, class scores...].
func yoloTensor(t *testing.T, rows [][]float32) gocv.Mat {
	t.Helper()
	require.NotEmpty(t, rows)
	channels := len(rows[0])
	out := gocv.NewMatWithSizes([]int{1, channels, len(rows)}, gocv.MatTypeCV32F)
	for n, row := range rows {
		require.Len(t, row, channels)
		for ch, v := range row {
			out.SetFloatAt3(0, ch, n, v)
		}
	}
	return out
}

func TestDecodeYOLOUnpacksCandidates(t *testing.T) {
	out := yoloTensor(t, [][]float32{
		{100, 100, 50, 50, 0.9, 0.1},
		{200, 150, 40, 30, 0.2, 0.8},
	})
	defer out.Close()

	dets := decodeYOLO([]gocv.Mat{out})
	require.Len(t, dets, 2)

	assert.InDelta(t, 75.0, dets[0].Box.X, 1e-4)
	assert.InDelta(t, 75.0, dets[0].Box.Y, 1e-4)
	assert.InDelta(t, 50.0, dets[0].Box.Width, 1e-4)
	assert.InDelta(t, 0.9, dets[0].Confidence, 1e-4)
	assert.Equal(t, 0, dets[0].ClassID)

	assert.InDelta(t, 180.0, dets[1].Box.X, 1e-4)
	assert.InDelta(t, 135.0, dets[1].Box.Y, 1e-4)
	assert.InDelta(t, 30.0, dets[1].Box.Height, 1e-4)
	assert.InDelta(t, 0.8, dets[1].Confidence, 1e-4)
	assert.Equal(t, 1, dets[1].ClassID)
}

func TestDecodeYOLODecodesEveryOutputLayer(t *testing.T) {
	first := yoloTensor(t, [][]float32{
		{100, 100, 50, 50, 0.9, 0.1},
	})
	defer first.Close()
	second := yoloTensor(t, [][]float32{
		{300, 200, 20, 20, 0.1, 0.7},
	})
	defer second.Close()

	dets := decodeYOLO([]gocv.Mat{first, second})
	require.Len(t, dets, 2)

	// Every layer goes through the same channel transpose, so the
	// second layer's geometry decodes identically to the first's
	assert.InDelta(t, 290.0, dets[1].Box.X, 1e-4)
	assert.InDelta(t, 190.0, dets[1].Box.Y, 1e-4)
	assert.InDelta(t, 0.7, dets[1].Confidence, 1e-4)
	assert.Equal(t, 1, dets[1].ClassID)
}

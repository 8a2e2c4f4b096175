package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tracksight/tracksight/mot"
)

func TestPaddedDims(t *testing.T) {
	cases := []struct {
		w, h, stride int
		wantW, wantH int
	}{
		{640, 480, 32, 640, 480},
		{641, 480, 32, 672, 480},
		{640, 481, 32, 640, 512},
		{1, 1, 32, 32, 32},
		{1920, 1080, 32, 1920, 1088},
	}
	for _, c := range cases {
		pw, ph := paddedDims(c.w, c.h, c.stride)
		assert.Equal(t, c.wantW, pw, "width for %dx%d stride %d", c.w, c.h, c.stride)
		assert.Equal(t, c.wantH, ph, "height for %dx%d stride %d", c.w, c.h, c.stride)
		assert.Zero(t, pw%c.stride)
		assert.Zero(t, ph%c.stride)
	}
}

func TestScalePadInvertExact(t *testing.T) {
	// 1920x1080 padded to 1920x1088, stretched to a 640x640 tensor
	sp := ScalePad{
		OrigWidth:    1920,
		OrigHeight:   1080,
		PaddedWidth:  1920,
		PaddedHeight: 1088,
		TensorWidth:  640,
		TensorHeight: 640,
	}

	// A box occupying the full tensor maps back to the full padded area,
	// clamped to the original frame.
	full := sp.Invert(mot.NewRect(0, 0, 640, 640))
	assert.Equal(t, mot.NewRect(0, 0, 1920, 1080), full)

	// A tensor box at 1/4 scale: x 160 -> 480, y 160 -> 272
	box := sp.Invert(mot.NewRect(160, 160, 160, 160))
	assert.Equal(t, 480.0, box.X)
	assert.Equal(t, 272.0, box.Y)
	assert.Equal(t, 480.0, box.Width)
	assert.Equal(t, 272.0, box.Height)
}

func TestScalePadInvertRoundsToPixels(t *testing.T) {
	sp := ScalePad{
		OrigWidth:    100,
		OrigHeight:   100,
		PaddedWidth:  100,
		PaddedHeight: 100,
		TensorWidth:  100,
		TensorHeight: 100,
	}

	box := sp.Invert(mot.NewRect(10.4, 10.6, 20.2, 20.2))
	assert.Equal(t, 10.0, box.X)
	assert.Equal(t, 11.0, box.Y)
	// corners round independently: x2 = round(30.6) = 31, y2 = round(30.8) = 31
	assert.Equal(t, 21.0, box.Width)
	assert.Equal(t, 20.0, box.Height)
}

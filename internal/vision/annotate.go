package vision

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/tracksight/tracksight/mot"
)

// palette for per-class box colors, cycled by class index
var palette = []color.RGBA{
	{R: 0, G: 255, B: 0, A: 0},
	{R: 255, G: 0, B: 0, A: 0},
	{R: 0, G: 128, B: 255, A: 0},
	{R: 255, G: 200, B: 0, A: 0},
	{R: 200, G: 0, B: 255, A: 0},
	{R: 0, G: 255, B: 255, A: 0},
	{R: 255, G: 0, B: 128, A: 0},
	{R: 128, G: 255, B: 0, A: 0},
}

// ClassColor returns a stable color for a class index.
func ClassColor(classID int) color.RGBA {
	if classID < 0 {
		classID = 0
	}
	return palette[classID%len(palette)]
}

// DrawTracks renders confirmed tracks onto the frame: a class-colored
// box and an "ID: n | class" label above it.
func DrawTracks(frame *gocv.Mat, tracks []mot.TrackSnapshot) {
	for _, trk := range tracks {
		clr := ClassColor(trk.ClassID)
		rect := trk.Box.ToImageRect()
		gocv.Rectangle(frame, rect, clr, 2)
		label := fmt.Sprintf("ID: %d | %s", trk.ID, trk.ClassName)
		gocv.PutText(frame, label, image.Pt(rect.Min.X, rect.Min.Y-10), gocv.FontHersheyPlain, 1.0, clr, 1)
	}
}

// DrawFPS overlays the current processing rate in the top-left corner.
func DrawFPS(frame *gocv.Mat, fps float64) {
	text := fmt.Sprintf("FPS: %.2f", fps)
	gocv.PutText(frame, text, image.Pt(10, 30), gocv.FontHersheySimplex, 1.0, color.RGBA{R: 0, G: 255, B: 0, A: 0}, 2)
}

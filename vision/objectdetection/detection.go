// Package objectdetection defines 2D detection boxes and the filters applied to them before
// they are fused with depth.
package objectdetection

import (
	"fmt"
	"image"
	"math"
	"time"

	"github.com/golang/geo/r2"
)

// Detection2D is a pixel-space bounding box in center+size form, as published by the detector.
type Detection2D struct {
	Center r2.Point
	Width  float64
	Height float64
	// Score is the detector confidence, zero when the detector does not report one.
	Score float64
	Label string
}

// NewDetection2D returns a detection centered at (cx, cy).
func NewDetection2D(cx, cy, width, height float64) Detection2D {
	return Detection2D{Center: r2.Point{X: cx, Y: cy}, Width: width, Height: height}
}

// BoundingBox converts the box to a pixel rectangle. Corners are rounded to the nearest pixel; the
// result may extend past the image and should be clipped by the caller.
func (d Detection2D) BoundingBox() image.Rectangle {
	x0 := int(math.Round(d.Center.X - d.Width/2))
	y0 := int(math.Round(d.Center.Y - d.Height/2))
	x1 := int(math.Round(d.Center.X + d.Width/2))
	y1 := int(math.Round(d.Center.Y + d.Height/2))
	return image.Rect(x0, y0, x1, y1)
}

// Area returns the pixel area of the box.
func (d Detection2D) Area() int {
	bb := d.BoundingBox()
	return bb.Dx() * bb.Dy()
}

func (d Detection2D) String() string {
	return fmt.Sprintf("Label: %s, Score: %.2f, Box: %v", d.Label, d.Score, d.BoundingBox())
}

// DetectionBatch is every detection reported for one image.
type DetectionBatch struct {
	Timestamp  time.Time
	FrameID    string
	Detections []Detection2D
}

// Empty reports whether the batch carries no detections.
func (b *DetectionBatch) Empty() bool {
	return b == nil || len(b.Detections) == 0
}

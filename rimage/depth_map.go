// Package rimage holds the depth image types and pixel-level helpers used by the fusion engine.
package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// DepthMap is a row-major grid of depth samples in metres. Zero, negative and NaN samples mean
// the sensor had no return for that pixel.
type DepthMap struct {
	width  int
	height int

	data []float64
}

// NewEmptyDepthMap returns a depth map of the given size with every sample set to zero.
func NewEmptyDepthMap(width, height int) *DepthMap {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &DepthMap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewDepthMapFromData wraps a row-major slice of samples. The slice is not copied.
func NewDepthMapFromData(width, height int, data []float64) (*DepthMap, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrFrameConversion, "bad width or height for depth map %v %v", width, height)
	}
	if len(data) != width*height {
		return nil, errors.Wrapf(ErrFrameConversion, "depth map of %dx%d needs %d samples, got %d",
			width, height, width*height, len(data))
	}
	return &DepthMap{width: width, height: height, data: data}, nil
}

// Width returns the horizontal size in pixels.
func (dm *DepthMap) Width() int {
	return dm.width
}

// Height returns the vertical size in pixels.
func (dm *DepthMap) Height() int {
	return dm.height
}

// Bounds returns the rectangle covering the whole map.
func (dm *DepthMap) Bounds() image.Rectangle {
	return image.Rect(0, 0, dm.width, dm.height)
}

// In reports whether (x, y) is inside the map.
func (dm *DepthMap) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < dm.width && y < dm.height
}

// GetDepth returns the sample at (x, y). The caller must check bounds.
func (dm *DepthMap) GetDepth(x, y int) float64 {
	return dm.data[y*dm.width+x]
}

// Get returns the sample at the given point.
func (dm *DepthMap) Get(p image.Point) float64 {
	return dm.GetDepth(p.X, p.Y)
}

// Set stores a sample at (x, y).
func (dm *DepthMap) Set(x, y int, d float64) {
	dm.data[y*dm.width+x] = d
}

// Fill sets every sample inside r (clipped to the map) to d.
func (dm *DepthMap) Fill(r image.Rectangle, d float64) {
	r = r.Intersect(dm.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			dm.Set(x, y, d)
		}
	}
}

// Clone returns a deep copy.
func (dm *DepthMap) Clone() *DepthMap {
	data := make([]float64, len(dm.data))
	copy(data, dm.data)
	return &DepthMap{width: dm.width, height: dm.height, data: data}
}

// ValidDepth reports whether a sample is a usable range measurement.
func ValidDepth(d float64) bool {
	return d > 0 && !math.IsInf(d, 0) && !math.IsNaN(d)
}

// MinMax returns the smallest and largest valid samples. Both are zero if there are none.
func (dm *DepthMap) MinMax() (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, d := range dm.data {
		if !ValidDepth(d) {
			continue
		}
		lo = math.Min(lo, d)
		hi = math.Max(hi, d)
	}
	if math.IsInf(lo, 1) {
		return 0, 0
	}
	return lo, hi
}

// ToPrettyPicture renders the depth map with a hue ramp between hardMin and hardMax. When both
// are zero the range of the data is used. Missing samples are black.
func (dm *DepthMap) ToPrettyPicture(hardMin, hardMax float64) *image.NRGBA {
	lo, hi := hardMin, hardMax
	if lo == 0 && hi == 0 {
		lo, hi = dm.MinMax()
	}
	span := hi - lo
	if span <= 0 {
		span = 1
	}

	img := image.NewNRGBA(dm.Bounds())
	for y := 0; y < dm.height; y++ {
		for x := 0; x < dm.width; x++ {
			d := dm.GetDepth(x, y)
			if !ValidDepth(d) {
				img.SetNRGBA(x, y, color.NRGBA{A: 255})
				continue
			}
			ratio := math.Max(0, math.Min(1, (d-lo)/span))
			// near is red, far is blue
			c := colorful.Hsv(240*ratio, 1, 1)
			r, g, b := c.RGB255()
			img.SetNRGBA(x, y, color.NRGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

package rimage

import (
	"image"
)

// speckleCoverage is the fraction of gaussian weight that must be foreground around a pixel for
// it to survive smoothing.
const speckleCoverage = 0.5

// Mask is a binary image over a rectangle expressed in the coordinates of the depth map it was
// cut from.
type Mask struct {
	rect image.Rectangle
	bits []bool
}

// NewMask returns an empty mask covering rect.
func NewMask(rect image.Rectangle) *Mask {
	rect = rect.Canon()
	return &Mask{rect: rect, bits: make([]bool, rect.Dx()*rect.Dy())}
}

// Bounds returns the rectangle covered by the mask.
func (m *Mask) Bounds() image.Rectangle {
	return m.rect
}

// At reports whether (x, y) is foreground. Points outside the mask are background.
func (m *Mask) At(x, y int) bool {
	if !(image.Point{x, y}).In(m.rect) {
		return false
	}
	return m.bits[m.index(x, y)]
}

// Set marks (x, y) as foreground or background. Points outside the mask are ignored.
func (m *Mask) Set(x, y int, on bool) {
	if !(image.Point{x, y}).In(m.rect) {
		return
	}
	m.bits[m.index(x, y)] = on
}

// Count returns the number of foreground pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.bits {
		if b {
			n++
		}
	}
	return n
}

func (m *Mask) index(x, y int) int {
	return (y-m.rect.Min.Y)*m.rect.Dx() + (x - m.rect.Min.X)
}

// ThresholdDepth marks every valid sample of dm inside roi whose depth lies in [lo, hi].
// The roi is clipped to the map first.
func ThresholdDepth(dm *DepthMap, roi image.Rectangle, lo, hi float64) *Mask {
	roi = roi.Canon().Intersect(dm.Bounds())
	m := NewMask(roi)
	for y := roi.Min.Y; y < roi.Max.Y; y++ {
		for x := roi.Min.X; x < roi.Max.X; x++ {
			d := dm.GetDepth(x, y)
			if ValidDepth(d) && d >= lo && d <= hi {
				m.bits[m.index(x, y)] = true
			}
		}
	}
	return m
}

// Smooth suppresses speckle with a gaussian vote: a foreground pixel is kept when at least half
// of the kernel weight that falls inside the mask is foreground. Background pixels are never
// turned on, so the result is always a subset of the input.
func (m *Mask) Smooth(sigma float64) *Mask {
	kernel := GaussianKernel(sigma)
	k := len(kernel)
	offsets := makeRangeArray(k)

	out := NewMask(m.rect)
	for y := m.rect.Min.Y; y < m.rect.Max.Y; y++ {
		for x := m.rect.Min.X; x < m.rect.Max.X; x++ {
			if !m.bits[m.index(x, y)] {
				continue
			}
			on, total := 0.0, 0.0
			for j, dy := range offsets {
				for i, dx := range offsets {
					nx, ny := x+dx, y+dy
					if !(image.Point{nx, ny}).In(m.rect) {
						continue
					}
					// rows are height j, columns are width i
					w := kernel[j][i]
					total += w
					if m.bits[m.index(nx, ny)] {
						on += w
					}
				}
			}
			if total > 0 && on/total >= speckleCoverage {
				out.bits[out.index(x, y)] = true
			}
		}
	}
	return out
}

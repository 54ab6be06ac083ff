package segmentation

import (
	"image"

	"github.com/golang/geo/r2"

	"go.viam.com/posefusion/rimage"
)

// Region is a set of 8-connected foreground pixels.
type Region struct {
	Pixels []image.Point
}

// Area is the number of pixels in the region.
func (r *Region) Area() int {
	return len(r.Pixels)
}

// Bounds returns the smallest rectangle containing every pixel of the region.
func (r *Region) Bounds() image.Rectangle {
	if len(r.Pixels) == 0 {
		return image.Rectangle{}
	}
	x0, y0, x1, y1 := r.Pixels[0].X, r.Pixels[0].Y, r.Pixels[0].X, r.Pixels[0].Y
	for _, pt := range r.Pixels[1:] {
		if pt.X < x0 {
			x0 = pt.X
		}
		if pt.X > x1 {
			x1 = pt.X
		}
		if pt.Y < y0 {
			y0 = pt.Y
		}
		if pt.Y > y1 {
			y1 = pt.Y
		}
	}
	return image.Rect(x0, y0, x1+1, y1+1)
}

// Centroid returns the first-order image moments divided by the area, (m10/m00, m01/m00).
func (r *Region) Centroid() (r2.Point, error) {
	m00 := float64(len(r.Pixels))
	if m00 == 0 {
		return r2.Point{}, ErrDegenerateRegion
	}
	var m10, m01 float64
	for _, pt := range r.Pixels {
		m10 += float64(pt.X)
		m01 += float64(pt.Y)
	}
	return r2.Point{X: m10 / m00, Y: m01 / m00}, nil
}

var eightNeighbors = []image.Point{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// ConnectedRegions finds the 8-connected regions of the mask with a breadth-first flood fill.
// Seeds are taken in row-major order so the output order is deterministic.
func ConnectedRegions(m *rimage.Mask) []Region {
	bounds := m.Bounds()
	width := bounds.Dx()
	seen := make([]bool, width*bounds.Dy())
	index := func(pt image.Point) int {
		return (pt.Y-bounds.Min.Y)*width + (pt.X - bounds.Min.X)
	}

	regions := []Region{}
	queue := []image.Point{}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			pt := image.Point{x, y}
			if seen[index(pt)] || !m.At(x, y) {
				continue
			}
			seen[index(pt)] = true
			queue = append(queue[:0], pt)
			region := Region{}
			for len(queue) != 0 {
				cur := queue[0]
				queue = queue[1:]
				region.Pixels = append(region.Pixels, cur)
				for _, off := range eightNeighbors {
					next := cur.Add(off)
					if !next.In(bounds) || seen[index(next)] || !m.At(next.X, next.Y) {
						continue
					}
					seen[index(next)] = true
					queue = append(queue, next)
				}
			}
			regions = append(regions, region)
		}
	}
	return regions
}

// largestRegion returns the index of the region with the most pixels. Ties keep the first.
func largestRegion(regions []Region) int {
	best := -1
	for i := range regions {
		if best < 0 || regions[i].Area() > regions[best].Area() {
			best = i
		}
	}
	return best
}

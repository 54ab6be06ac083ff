package posefusion

import (
	"image"
	"image/color"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/rimage/transform"
)

// redAround sums the red channel of the pixels straddling the horizontal line y at column x.
func redAround(img image.Image, x, y int) uint32 {
	var sum uint32
	for _, row := range []int{y - 1, y} {
		r, _, _, _ := img.At(x, row).RGBA()
		sum += r
	}
	return sum
}

func TestRenderAnnotations(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(80, 60)
	a := &annotations{
		caption: detectionCaption,
		boxes:   []image.Rectangle{image.Rect(5, 10, 25, 20)},
		ellipses: []transform.SearchEllipse{
			{Center: r2.Point{X: 40, Y: 40}, SemiMajor: 10, SemiMinor: 5},
		},
		hits: []r2.Point{{X: 65, Y: 20}},
	}
	img := a.Render(dm)
	test.That(t, img.Bounds(), test.ShouldResemble, dm.Bounds())

	// detection box edge
	test.That(t, redAround(img, 15, 10), test.ShouldBeGreaterThan, 0)
	// top edge of the ellipse bounds, clear of the ellipse itself
	bounds := a.ellipses[0].Bounds()
	test.That(t, redAround(img, 48, bounds.Min.Y), test.ShouldBeGreaterThan, 0)
	// untouched background stays black
	test.That(t, img.At(2, 55), test.ShouldResemble, color.RGBA{A: 255})

	bare := (&annotations{}).Render(dm)
	test.That(t, redAround(bare, 15, 10), test.ShouldEqual, 0)
}

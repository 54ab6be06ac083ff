package segmentation

import (
	"errors"
	"image"
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/posefusion/rimage"
)

func TestSegmentUniformPatch(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(200, 200)
	box := image.Rect(100, 100, 121, 121)
	dm.Fill(box, 2.0)

	seg := NewDepthSegmenter(DefaultSmoothingSigma)
	cand, err := seg.Segment(dm, box, AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, 110.)
	test.That(t, cand.Pixel.Y, test.ShouldAlmostEqual, 110.)
	test.That(t, cand.Depth, test.ShouldEqual, 2.0)
	test.That(t, cand.Area, test.ShouldEqual, 441)

	regions, err := seg.Regions(dm, box, AnyPositiveDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, regions, test.ShouldHaveLength, 1)
}

func TestSegmentBoxLargerThanPatch(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(200, 200)
	dm.Fill(image.Rect(100, 100, 121, 121), 2.0)

	seg := NewDepthSegmenter(DefaultSmoothingSigma)
	cand, err := seg.Segment(dm, image.Rect(90, 90, 131, 131), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldBeNil)
	// the four patch corners are trimmed symmetrically
	test.That(t, cand.Area, test.ShouldEqual, 437)
	test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, 110.)
	test.That(t, cand.Pixel.Y, test.ShouldAlmostEqual, 110.)
	test.That(t, cand.Depth, test.ShouldEqual, 2.0)
}

func TestSegmentLargestRegionWins(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(100, 100)
	dm.Fill(image.Rect(5, 5, 15, 15), 1.0)
	dm.Fill(image.Rect(50, 50, 80, 80), 3.0)

	seg := NewDepthSegmenter(DefaultSmoothingSigma)
	cand, err := seg.Segment(dm, dm.Bounds(), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Depth, test.ShouldEqual, 3.0)
	test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, 64.5)

	// band excludes the large one
	cand, err = seg.Segment(dm, dm.Bounds(), DepthBand{Min: 0.5, Max: 1.5}, RegionMeanDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Depth, test.ShouldAlmostEqual, 1.0)
	test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, 9.5)

	// equal areas keep the first in row-major order
	dm = rimage.NewEmptyDepthMap(100, 100)
	dm.Fill(image.Rect(60, 10, 70, 20), 1.0)
	dm.Fill(image.Rect(10, 40, 20, 50), 1.0)
	cand, err = seg.Segment(dm, dm.Bounds(), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Pixel, test.ShouldResemble, r2.Point{X: 64.5, Y: 14.5})
}

func TestSegmentRegionMean(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(40, 40)
	dm.Fill(image.Rect(10, 10, 20, 20), 2.0)
	dm.Fill(image.Rect(20, 10, 30, 20), 2.2)

	seg := NewDepthSegmenter(DefaultSmoothingSigma)
	cand, err := seg.Segment(dm, dm.Bounds(), DepthBand{Min: 1, Max: 3}, RegionMeanDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Depth, test.ShouldAlmostEqual, 2.1)
	test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, 19.5)
}

func TestSegmentErrors(t *testing.T) {
	seg := NewDepthSegmenter(DefaultSmoothingSigma)

	_, err := seg.Segment(nil, image.Rect(0, 0, 5, 5), AnyPositiveDepth, CentroidDepth)
	test.That(t, errors.Is(err, rimage.ErrFrameConversion), test.ShouldBeTrue)

	dm := rimage.NewEmptyDepthMap(50, 50)
	_, err = seg.Segment(dm, dm.Bounds(), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldEqual, ErrNoCandidate)

	// roi entirely off the map
	dm.Fill(dm.Bounds(), 1.0)
	_, err = seg.Segment(dm, image.Rect(100, 100, 120, 120), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldEqual, ErrNoCandidate)

	// everything out of band
	_, err = seg.Segment(dm, dm.Bounds(), DepthBand{Min: 2, Max: 4}, RegionMeanDepth)
	test.That(t, err, test.ShouldEqual, ErrNoCandidate)

	// a ring has a hole at its centroid
	dm = rimage.NewEmptyDepthMap(50, 50)
	dm.Fill(image.Rect(10, 10, 31, 31), 2.0)
	dm.Fill(image.Rect(15, 15, 26, 26), 0)
	_, err = seg.Segment(dm, dm.Bounds(), AnyPositiveDepth, CentroidDepth)
	test.That(t, errors.Is(err, ErrDepthOutOfBand), test.ShouldBeTrue)

	_, err = seg.Segment(dm, dm.Bounds(), AnyPositiveDepth, DepthMode(7))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestSegmentSpeckle(t *testing.T) {
	dm := rimage.NewEmptyDepthMap(20, 20)
	dm.Fill(image.Rect(10, 10, 16, 16), 1.5)
	dm.Set(2, 3, 1.5)
	seg := NewDepthSegmenter(DefaultSmoothingSigma)

	regions, err := seg.Regions(dm, dm.Bounds(), AnyPositiveDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, regions, test.ShouldHaveLength, 1)
	test.That(t, regions[0].Bounds().Min.X, test.ShouldBeGreaterThanOrEqualTo, 10)

	regions, err = NewDepthSegmenter(0).Regions(dm, dm.Bounds(), AnyPositiveDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, regions, test.ShouldHaveLength, 2)
}

func TestSegmentSmallTargets(t *testing.T) {
	for _, tc := range []struct {
		size int
		area int
	}{
		// smoothing would empty these, so the raw mask is kept
		{1, 1},
		{2, 4},
		// smoothing trims the corners
		{3, 5},
		{4, 12},
	} {
		dm := rimage.NewEmptyDepthMap(20, 20)
		dm.Fill(image.Rect(8, 8, 8+tc.size, 8+tc.size), 3.0)

		cand, err := NewDepthSegmenter(1).Segment(dm, dm.Bounds(), DepthBand{Min: 2, Max: 4}, RegionMeanDepth)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cand.Area, test.ShouldEqual, tc.area)
		test.That(t, cand.Depth, test.ShouldEqual, 3.0)
		centre := 8 + float64(tc.size-1)/2
		test.That(t, cand.Pixel.X, test.ShouldAlmostEqual, centre)
		test.That(t, cand.Pixel.Y, test.ShouldAlmostEqual, centre)
	}

	// a lone pixel still becomes a candidate
	dm := rimage.NewEmptyDepthMap(20, 20)
	dm.Set(7, 9, 1.5)
	cand, err := NewDepthSegmenter(DefaultSmoothingSigma).Segment(dm, dm.Bounds(), AnyPositiveDepth, CentroidDepth)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cand.Area, test.ShouldEqual, 1)
	test.That(t, cand.Pixel, test.ShouldResemble, r2.Point{X: 7, Y: 9})
	test.That(t, cand.Depth, test.ShouldEqual, 1.5)
}

func TestDepthBand(t *testing.T) {
	band := DepthBand{Min: 2, Max: 4}
	test.That(t, band.Contains(2), test.ShouldBeTrue)
	test.That(t, band.Contains(4), test.ShouldBeTrue)
	test.That(t, band.Contains(4.01), test.ShouldBeFalse)
	test.That(t, AnyPositiveDepth.Contains(0), test.ShouldBeFalse)
	test.That(t, AnyPositiveDepth.Contains(math.NaN()), test.ShouldBeFalse)
	test.That(t, AnyPositiveDepth.Contains(1e6), test.ShouldBeTrue)
	test.That(t, band.String(), test.ShouldEqual, "[2.000, 4.000]")
	test.That(t, RegionMeanDepth.String(), test.ShouldEqual, "region_mean")
}

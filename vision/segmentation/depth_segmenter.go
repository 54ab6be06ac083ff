// Package segmentation isolates objects in depth images and reduces them to a single
// representative pixel and depth.
package segmentation

import (
	"fmt"
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"

	"go.viam.com/posefusion/rimage"
)

// DefaultSmoothingSigma is the gaussian sigma used to clean up the foreground mask.
const DefaultSmoothingSigma = 1.0

// DepthBand is a closed interval of accepted depths in metres.
type DepthBand struct {
	Min float64
	Max float64
}

// AnyPositiveDepth accepts every valid depth.
var AnyPositiveDepth = DepthBand{Min: 0, Max: math.Inf(1)}

// Contains reports whether d is a valid depth inside the band.
func (b DepthBand) Contains(d float64) bool {
	return rimage.ValidDepth(d) && d >= b.Min && d <= b.Max
}

func (b DepthBand) String() string {
	return fmt.Sprintf("[%.3f, %.3f]", b.Min, b.Max)
}

// DepthMode selects how the representative depth of a region is computed.
type DepthMode int

const (
	// CentroidDepth samples the depth at the rounded centroid pixel.
	CentroidDepth DepthMode = iota
	// RegionMeanDepth averages the depth over the whole region. Every pixel must be in band.
	RegionMeanDepth
)

func (m DepthMode) String() string {
	switch m {
	case CentroidDepth:
		return "centroid"
	case RegionMeanDepth:
		return "region_mean"
	default:
		return "unknown"
	}
}

// PixelCandidate is the output of segmentation before back-projection.
type PixelCandidate struct {
	Pixel r2.Point
	Depth float64
	// Area is the pixel count of the region the candidate was taken from.
	Area int
}

// DepthSegmenter thresholds a depth region of interest, removes speckle and keeps the largest
// connected region.
type DepthSegmenter struct {
	// Sigma of the smoothing kernel. Zero or less disables smoothing.
	Sigma float64
}

// NewDepthSegmenter returns a segmenter with the given smoothing sigma.
func NewDepthSegmenter(sigma float64) *DepthSegmenter {
	return &DepthSegmenter{Sigma: sigma}
}

// Mask returns the smoothed foreground mask of roi for the band. Smoothing only strips speckle
// next to larger regions: when it would leave nothing, the raw threshold mask is returned, so a
// target a few pixels across still yields a candidate.
func (s *DepthSegmenter) Mask(dm *rimage.DepthMap, roi image.Rectangle, band DepthBand) (*rimage.Mask, error) {
	if dm == nil {
		return nil, errors.Wrap(rimage.ErrFrameConversion, "no depth map to segment")
	}
	mask := rimage.ThresholdDepth(dm, roi, band.Min, band.Max)
	if s.Sigma <= 0 {
		return mask, nil
	}
	if smoothed := mask.Smooth(s.Sigma); smoothed.Count() > 0 {
		return smoothed, nil
	}
	return mask, nil
}

// Regions returns every connected region of roi inside the band, in row-major seed order.
func (s *DepthSegmenter) Regions(dm *rimage.DepthMap, roi image.Rectangle, band DepthBand) ([]Region, error) {
	mask, err := s.Mask(dm, roi, band)
	if err != nil {
		return nil, err
	}
	return ConnectedRegions(mask), nil
}

// Segment reduces roi to the centroid and representative depth of its largest in-band region.
func (s *DepthSegmenter) Segment(
	dm *rimage.DepthMap,
	roi image.Rectangle,
	band DepthBand,
	mode DepthMode,
) (PixelCandidate, error) {
	regions, err := s.Regions(dm, roi, band)
	if err != nil {
		return PixelCandidate{}, err
	}
	best := largestRegion(regions)
	if best < 0 {
		return PixelCandidate{}, ErrNoCandidate
	}
	region := &regions[best]
	centroid, err := region.Centroid()
	if err != nil {
		return PixelCandidate{}, err
	}

	var depth float64
	switch mode {
	case CentroidDepth:
		depth = dm.GetDepth(int(math.Round(centroid.X)), int(math.Round(centroid.Y)))
	case RegionMeanDepth:
		depth, err = regionMeanDepth(dm, region, band)
		if err != nil {
			return PixelCandidate{}, err
		}
	default:
		return PixelCandidate{}, errors.Errorf("unknown depth mode %d", mode)
	}
	if !band.Contains(depth) {
		return PixelCandidate{}, errors.Wrapf(ErrDepthOutOfBand, "depth %.3f not in %v", depth, band)
	}
	return PixelCandidate{Pixel: centroid, Depth: depth, Area: region.Area()}, nil
}

func regionMeanDepth(dm *rimage.DepthMap, region *Region, band DepthBand) (float64, error) {
	depths := make(stats.Float64Data, 0, region.Area())
	for _, pt := range region.Pixels {
		d := dm.GetDepth(pt.X, pt.Y)
		if !band.Contains(d) {
			return 0, errors.Wrapf(ErrDepthOutOfBand, "pixel %v has depth %.3f not in %v", pt, d, band)
		}
		depths = append(depths, d)
	}
	mean, err := stats.Mean(depths)
	if err != nil {
		return 0, errors.Wrap(ErrDegenerateRegion, err.Error())
	}
	return mean, nil
}

package segmentation

import "github.com/pkg/errors"

var (
	// ErrNoCandidate is returned when no foreground region survives thresholding and smoothing.
	ErrNoCandidate = errors.New("no candidate region found")
	// ErrDepthOutOfBand is returned when the representative depth of a region falls outside the
	// accepted depth band.
	ErrDepthOutOfBand = errors.New("representative depth outside accepted band")
	// ErrDegenerateRegion is returned when a region has no area to take a centroid of.
	ErrDegenerateRegion = errors.New("region has zero area")
)

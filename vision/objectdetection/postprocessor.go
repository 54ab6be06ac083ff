package objectdetection

import "github.com/samber/lo"

// Postprocessor defines a function that filters/modifies on an incoming array of Detections.
type Postprocessor func([]Detection2D) []Detection2D

// NewAreaFilter returns a function that filters out detections below a certain area.
func NewAreaFilter(area int) Postprocessor {
	return func(in []Detection2D) []Detection2D {
		return lo.Filter(in, func(d Detection2D, _ int) bool {
			return d.Area() >= area
		})
	}
}

// NewScoreFilter returns a function that filters out detections below a certain confidence.
func NewScoreFilter(conf float64) Postprocessor {
	return func(in []Detection2D) []Detection2D {
		return lo.Filter(in, func(d Detection2D, _ int) bool {
			return d.Score >= conf
		})
	}
}

// Apply runs the postprocessors in order. Nil entries are skipped.
func Apply(in []Detection2D, post ...Postprocessor) []Detection2D {
	out := in
	for _, p := range post {
		if p == nil {
			continue
		}
		out = p(out)
	}
	return out
}

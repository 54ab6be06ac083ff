package referenceframe

import (
	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
	"go.uber.org/multierr"

	"go.viam.com/posefusion/spatialmath"
)

// TranslationConfig is a translation in metres.
type TranslationConfig struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// OrientationConfig is a quaternion. A missing orientation is the identity.
type OrientationConfig struct {
	W float64 `json:"w" yaml:"w"`
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// LinkConfig describes a static frame and its parent.
type LinkConfig struct {
	Name        string             `json:"name" yaml:"name"`
	Parent      string             `json:"parent" yaml:"parent"`
	Translation TranslationConfig  `json:"translation" yaml:"translation"`
	Orientation *OrientationConfig `json:"orientation,omitempty" yaml:"orientation,omitempty"`
}

// Transform returns the child to parent transform described by the config.
func (cfg *LinkConfig) Transform() spatialmath.Transform {
	rot := quat.Number{Real: 1}
	if cfg.Orientation != nil {
		rot = quat.Number{Real: cfg.Orientation.W, Imag: cfg.Orientation.X, Jmag: cfg.Orientation.Y, Kmag: cfg.Orientation.Z}
	}
	return spatialmath.NewTransform(r3.Vector{X: cfg.Translation.X, Y: cfg.Translation.Y, Z: cfg.Translation.Z}, rot)
}

// NewStaticFrameSystemFromConfig builds a frame system from link configs. Links may be listed in
// any order as long as every parent is eventually defined.
func NewStaticFrameSystemFromConfig(name string, links []LinkConfig) (*StaticFrameSystem, error) {
	sfs := NewEmptyStaticFrameSystem(name)
	pending := links
	for len(pending) > 0 {
		var next []LinkConfig
		for _, link := range pending {
			parent := link.Parent
			if parent == "" {
				parent = World
			}
			if !sfs.frameExists(parent) {
				next = append(next, link)
				continue
			}
			if err := sfs.AddFrame(link.Name, parent, link.Transform()); err != nil {
				return nil, err
			}
		}
		if len(next) == len(pending) {
			var errAll error
			for _, link := range next {
				multierr.AppendInto(&errAll, NewParentFrameMissingError(link.Parent))
			}
			return nil, errAll
		}
		pending = next
	}
	return sfs, nil
}

package main

import (
	"fmt"
	"image/color"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/posefusion/services/posefusion"
)

var sourceColors = map[posefusion.Source]color.Color{
	posefusion.SourceDetections: color.RGBA{R: 220, G: 50, B: 50, A: 255},
	posefusion.SourceTracks:     color.RGBA{R: 50, G: 90, B: 220, A: 255},
	posefusion.SourceFallback:   color.RGBA{R: 150, G: 150, B: 150, A: 255},
}

// trajectoryPlotter records every published position and draws them top down, one series per
// source.
type trajectoryPlotter struct {
	mu     sync.Mutex
	frame  string
	points map[posefusion.Source]plotter.XYs
}

func newTrajectoryPlotter() *trajectoryPlotter {
	return &trajectoryPlotter{points: map[posefusion.Source]plotter.XYs{}}
}

func (tp *trajectoryPlotter) add(out posefusion.Outcome) {
	if !out.Published() {
		return
	}
	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.frame = out.Poses.FrameID
	for _, p := range out.Poses.Poses {
		tp.points[out.Source] = append(tp.points[out.Source], plotter.XY{X: p.Point.X, Y: p.Point.Y})
	}
}

// count returns how many positions were recorded.
func (tp *trajectoryPlotter) count() int {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	n := 0
	for _, pts := range tp.points {
		n += len(pts)
	}
	return n
}

func (tp *trajectoryPlotter) save(path string) error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Published positions (%s)", tp.frame)
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"

	for _, src := range []posefusion.Source{posefusion.SourceDetections, posefusion.SourceTracks, posefusion.SourceFallback} {
		pts := tp.points[src]
		if len(pts) == 0 {
			continue
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.Color = sourceColors[src]
		scatter.Radius = vg.Points(2)
		p.Add(scatter)
		p.Legend.Add(src.String(), scatter)
	}
	p.Legend.Top = true

	return errors.Wrap(p.Save(8*vg.Inch, 8*vg.Inch, path), "cannot save trajectory plot")
}

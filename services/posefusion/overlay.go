package posefusion

import (
	"context"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r2"

	"go.viam.com/posefusion/rimage"
	"go.viam.com/posefusion/rimage/transform"
)

const (
	detectionCaption = "YOLO"
	trackCaption     = "KF"
)

var (
	overlayGreen  = color.NRGBA{0, 255, 0, 255}
	overlayRed    = color.NRGBA{255, 0, 0, 255}
	overlayYellow = color.NRGBA{255, 255, 0, 255}
)

// Overlay is a colourised depth image annotated with what a cycle searched and found.
type Overlay struct {
	Timestamp time.Time
	FrameID   string
	Source    Source
	Image     image.Image
}

// OverlaySink receives annotated debug images.
type OverlaySink interface {
	PublishOverlay(ctx context.Context, overlay *Overlay) error
}

type circleMark struct {
	center r2.Point
	radius float64
}

// annotations collects what a path drew on the frame.
type annotations struct {
	caption  string
	boxes    []image.Rectangle
	circles  []circleMark
	ellipses []transform.SearchEllipse
	hits     []r2.Point
}

// Render draws the annotations over the colourised depth map.
func (a *annotations) Render(dm *rimage.DepthMap) image.Image {
	dc := gg.NewContextForImage(dm.ToPrettyPicture(0, 0))
	for _, b := range a.boxes {
		rimage.DrawRectangleEmpty(dc, b, overlayYellow, 1)
	}
	for _, c := range a.circles {
		rimage.DrawCircle(dc, image.Pt(int(c.center.X), int(c.center.Y)), c.radius, overlayGreen, 1)
	}
	for _, e := range a.ellipses {
		rimage.DrawRectangleEmpty(dc, e.Bounds(), overlayYellow, 1)
		rimage.DrawEllipse(dc, e.Center.X, e.Center.Y, e.SemiMajor, e.SemiMinor, e.Angle, overlayGreen, 2)
	}
	for _, h := range a.hits {
		rimage.DrawCross(dc, math.Round(h.X), math.Round(h.Y), 6, overlayRed, 2)
	}
	rimage.DrawString(dc, a.caption, image.Pt(50, 50), overlayGreen, 24)
	return dc.Image()
}

func (e *Engine) publishOverlay(ctx context.Context, frame *rimage.DepthFrame, source Source, a *annotations) {
	overlay := &Overlay{
		Timestamp: frame.Timestamp,
		FrameID:   frame.FrameID,
		Source:    source,
		Image:     a.Render(frame.DepthMap),
	}
	if err := e.overlays.PublishOverlay(ctx, overlay); err != nil {
		e.logger.Warnw("failed to publish overlay", "error", err)
	}
}

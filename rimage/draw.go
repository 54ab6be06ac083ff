package rimage

import (
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

// init sets up the fonts we want to use.
func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Font returns the font we use for drawing.
func Font() *truetype.Font {
	return font
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(Font(), &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringWrapped(text, float64(p.X), float64(p.Y), 0, 0, float64(dc.Width()), 1, 0)
}

// DrawRectangleEmpty strokes the outline of r.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}

// DrawCircle strokes a circle of radius r around center.
func DrawCircle(dc *gg.Context, center image.Point, r float64, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawCircle(float64(center.X), float64(center.Y), r)
	dc.Stroke()
}

// DrawEllipse strokes an ellipse with the given semi-axes, rotated by angle radians about its
// center.
func DrawEllipse(dc *gg.Context, cx, cy, semiMajor, semiMinor, angle float64, c color.Color, width float64) {
	dc.Push()
	defer dc.Pop()
	dc.RotateAbout(angle, cx, cy)
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawEllipse(cx, cy, semiMajor, semiMinor)
	dc.Stroke()
}

// DrawCross marks a point with a small plus sign.
func DrawCross(dc *gg.Context, cx, cy, size float64, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(cx-size, cy, cx+size, cy)
	dc.Stroke()
	dc.DrawLine(cx, cy-size, cx, cy+size)
	dc.Stroke()
}

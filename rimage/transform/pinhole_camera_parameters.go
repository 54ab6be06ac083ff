// Package transform holds the camera geometry used to move between pixels and 3D points.
package transform

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"go.viam.com/posefusion/spatialmath"
)

// ErrNoIntrinsics is when a camera does not have intrinsics parameters or other parameters.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError is used when the intriniscs are not defined.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// cameraMatrixLength is the number of entries in a row-major 3x3 camera matrix.
const cameraMatrixLength = 9

// PinholeCameraIntrinsics holds the parameters necessary to do a perspective projection of a 3D scene to the 2D plane.
// Width and Height are optional; zero means the image size is not known.
type PinholeCameraIntrinsics struct {
	Width  int     `json:"width_px"`
	Height int     `json:"height_px"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	Ppx    float64 `json:"ppx"`
	Ppy    float64 `json:"ppy"`
}

// NewPinholeCameraIntrinsicsFromK builds intrinsics out of a row-major 3x3 camera matrix
//
//	[[fx 0 ppx],
//	 [0 fy ppy],
//	 [0 0  1]]
//
// Matrices that do not have exactly nine entries are rejected.
func NewPinholeCameraIntrinsicsFromK(k []float64, width, height int) (*PinholeCameraIntrinsics, error) {
	if len(k) != cameraMatrixLength {
		return nil, NewNoIntrinsicsError(fmt.Sprintf("camera matrix must have %d entries, got %d", cameraMatrixLength, len(k)))
	}
	params := &PinholeCameraIntrinsics{
		Width:  width,
		Height: height,
		Fx:     k[0],
		Fy:     k[4],
		Ppx:    k[2],
		Ppy:    k[5],
	}
	if err := params.CheckValid(); err != nil {
		return nil, err
	}
	return params, nil
}

// CheckValid checks if the fields for PinholeCameraIntrinsics have valid inputs.
func (params *PinholeCameraIntrinsics) CheckValid() error {
	if params == nil {
		return NewNoIntrinsicsError("Intrinsics do not exist")
	}
	if params.Width < 0 || params.Height < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid size (%#v, %#v)", params.Width, params.Height))
	}
	if params.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fx = %#v", params.Fx))
	}
	if params.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid focal length Fy = %#v", params.Fy))
	}
	if params.Ppx < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal X point Ppx = %#v", params.Ppx))
	}
	if params.Ppy < 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("Invalid principal Y point Ppy = %#v", params.Ppy))
	}
	return nil
}

// PixelToPoint transforms a pixel with depth to a 3D point.
// The intrinsics parameters should be the ones of the sensor used to obtain the image that
// contains the pixel.
func (params *PinholeCameraIntrinsics) PixelToPoint(x, y, z float64) (float64, float64, float64) {
	if params == nil {
		return float64(0), float64(0), float64(0)
	}
	xOverZ := (x - params.Ppx) / params.Fx
	yOverZ := (y - params.Ppy) / params.Fy
	// get x and y
	xm := xOverZ * z
	ym := yOverZ * z
	return xm, ym, z
}

// PointToPixel projects a 3D point to a pixel in an image plane.
// The intrinsics parameters should be the ones of the sensor we want to project to.
// A point with z == 0 has no projection and yields the sentinel (0, 0); use ProjectPoint to
// tell it apart from a real pixel.
func (params *PinholeCameraIntrinsics) PointToPixel(x, y, z float64) (float64, float64) {
	if params == nil || z == 0. {
		return 0, 0
	}
	xPx := (x/z)*params.Fx + params.Ppx
	yPx := (y/z)*params.Fy + params.Ppy
	return xPx, yPx
}

// ProjectPoint projects pt and reports whether the projection is usable. Points on or behind
// the image plane are not.
func (params *PinholeCameraIntrinsics) ProjectPoint(pt r3.Vector) (r2.Point, bool) {
	if params == nil || pt.Z <= 0 {
		return r2.Point{}, false
	}
	u, v := params.PointToPixel(pt.X, pt.Y, pt.Z)
	return r2.Point{X: u, Y: v}, true
}

// PixelToPose back-projects a pixel at the given depth into a pose in the camera frame. The
// orientation is always the identity.
func (params *PinholeCameraIntrinsics) PixelToPose(px r2.Point, depth float64) (spatialmath.Pose, error) {
	if params == nil {
		return spatialmath.Pose{}, NewNoIntrinsicsError("cannot back-project pixel")
	}
	x, y, z := params.PixelToPoint(px.X, px.Y, depth)
	return spatialmath.NewPoseFromPoint(r3.Vector{X: x, Y: y, Z: z}), nil
}

// InImage reports whether px falls inside the image when the size is known. With an unknown
// size every pixel with non-negative coordinates is accepted.
func (params *PinholeCameraIntrinsics) InImage(px r2.Point) bool {
	if px.X < 0 || px.Y < 0 || math.IsNaN(px.X) || math.IsNaN(px.Y) {
		return false
	}
	if params.Width == 0 || params.Height == 0 {
		return true
	}
	return px.X < float64(params.Width) && px.Y < float64(params.Height)
}

// Sized returns params if the image size is known, otherwise a copy sized width x height.
func (params *PinholeCameraIntrinsics) Sized(width, height int) *PinholeCameraIntrinsics {
	if params == nil || (params.Width > 0 && params.Height > 0) {
		return params
	}
	sized := *params
	sized.Width, sized.Height = width, height
	return &sized
}

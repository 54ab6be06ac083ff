package transform

import (
	"image"
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateProjection is returned when a point is too close to the image plane for its
// projection to be linearised.
var ErrDegenerateProjection = errors.New("point too close to the image plane to project")

// degenerateDepth is the smallest |z| for which the projection Jacobian is evaluated.
const degenerateDepth = 1e-9

// ProjectionJacobian returns the 2x3 Jacobian of PointToPixel evaluated at pt:
//
//	[[fx/z, 0,    -fx*x/z^2],
//	 [0,    fy/z, -fy*y/z^2]]
func (params *PinholeCameraIntrinsics) ProjectionJacobian(pt r3.Vector) (*mat.Dense, error) {
	if params == nil {
		return nil, NewNoIntrinsicsError("cannot linearise projection")
	}
	if math.Abs(pt.Z) < degenerateDepth {
		return nil, errors.Wrapf(ErrDegenerateProjection, "z = %v", pt.Z)
	}
	z2 := pt.Z * pt.Z
	return mat.NewDense(2, 3, []float64{
		params.Fx / pt.Z, 0, -params.Fx * pt.X / z2,
		0, params.Fy / pt.Z, -params.Fy * pt.Y / z2,
	}), nil
}

// ProjectCovariance maps a diagonal 3D positional covariance, given as per-axis variances, to
// the 2x2 pixel covariance J·diag(v)·Jᵀ of the projection of pt.
func (params *PinholeCameraIntrinsics) ProjectCovariance(pt, variances r3.Vector) (*mat.SymDense, error) {
	j, err := params.ProjectionJacobian(pt)
	if err != nil {
		return nil, err
	}
	cov3 := mat.NewDiagDense(3, []float64{variances.X, variances.Y, variances.Z})

	var jc mat.Dense
	jc.Mul(j, cov3)
	var full mat.Dense
	full.Mul(&jc, j.T())

	// average the off-diagonal terms so the result is exactly symmetric
	off := 0.5 * (full.At(0, 1) + full.At(1, 0))
	return mat.NewSymDense(2, []float64{
		full.At(0, 0), off,
		off, full.At(1, 1),
	}), nil
}

// SearchEllipse is the pixel-space uncertainty region of a projected track.
type SearchEllipse struct {
	Center    r2.Point
	SemiMajor float64
	SemiMinor float64
	// Angle of the major axis from the +u axis, in radians.
	Angle float64
}

// NewSearchEllipse eigen-decomposes a 2x2 pixel covariance. The semi-axes are scale times the
// square root of the eigenvalues.
func NewSearchEllipse(cov mat.Symmetric, center r2.Point, scale float64) (SearchEllipse, error) {
	if cov.SymmetricDim() != 2 {
		return SearchEllipse{}, errors.Errorf("search ellipse needs a 2x2 covariance, got %dx%d",
			cov.SymmetricDim(), cov.SymmetricDim())
	}
	var eig mat.EigenSym
	if ok := eig.Factorize(cov, true); !ok {
		return SearchEllipse{}, errors.New("eigendecomposition of pixel covariance failed")
	}
	// ascending order
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	major := math.Sqrt(math.Max(0, values[1]))
	minor := math.Sqrt(math.Max(0, values[0]))
	return SearchEllipse{
		Center:    center,
		SemiMajor: scale * major,
		SemiMinor: scale * minor,
		Angle:     math.Atan2(vectors.At(1, 1), vectors.At(0, 1)),
	}, nil
}

// Contains reports whether px lies inside or on the ellipse.
func (e SearchEllipse) Contains(px r2.Point) bool {
	d := px.Sub(e.Center)
	if e.SemiMajor == 0 || e.SemiMinor == 0 {
		return d.Norm() == 0
	}
	sin, cos := math.Sincos(e.Angle)
	along := d.X*cos + d.Y*sin
	across := -d.X*sin + d.Y*cos
	return (along*along)/(e.SemiMajor*e.SemiMajor)+(across*across)/(e.SemiMinor*e.SemiMinor) <= 1
}

// Bounds returns the axis-aligned pixel rectangle enclosing the ellipse.
func (e SearchEllipse) Bounds() image.Rectangle {
	sin, cos := math.Sincos(e.Angle)
	halfW := math.Hypot(e.SemiMajor*cos, e.SemiMinor*sin)
	halfH := math.Hypot(e.SemiMajor*sin, e.SemiMinor*cos)
	return image.Rect(
		int(math.Floor(e.Center.X-halfW)), int(math.Floor(e.Center.Y-halfH)),
		int(math.Ceil(e.Center.X+halfW))+1, int(math.Ceil(e.Center.Y+halfH))+1,
	)
}

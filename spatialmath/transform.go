package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

// quatEpsilon is the tolerance used when comparing quaternion components.
const quatEpsilon = 1e-9

// Transform is a rigid motion: a rotation followed by a translation. Applied to a point p it
// gives R·p + T.
type Transform struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// NewTransform returns the transform with the given translation and rotation. The rotation is
// normalised; a zero quaternion is treated as the identity.
func NewTransform(translation r3.Vector, rotation quat.Number) Transform {
	norm := quat.Abs(rotation)
	if norm < quatEpsilon {
		rotation = quat.Number{Real: 1}
	} else {
		rotation = quat.Scale(1/norm, rotation)
	}
	return Transform{Translation: translation, Rotation: rotation}
}

// NewIdentityTransform returns the transform that leaves every point unchanged.
func NewIdentityTransform() Transform {
	return Transform{Rotation: quat.Number{Real: 1}}
}

// NewTranslation returns a pure translation.
func NewTranslation(translation r3.Vector) Transform {
	return Transform{Translation: translation, Rotation: quat.Number{Real: 1}}
}

func (t Transform) String() string {
	return fmt.Sprintf("{T:(%.4f, %.4f, %.4f) R:(%.4f, %.4f, %.4f, %.4f)}",
		t.Translation.X, t.Translation.Y, t.Translation.Z,
		t.Rotation.Real, t.Rotation.Imag, t.Rotation.Jmag, t.Rotation.Kmag)
}

// rotation returns the rotation quaternion, treating the zero value as the identity so that a
// zero Transform behaves like NewIdentityTransform.
func (t Transform) rotation() quat.Number {
	if t.Rotation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return t.Rotation
}

// Rotate applies only the rotation part to v.
func (t Transform) Rotate(v r3.Vector) r3.Vector {
	q := t.rotation()
	rotated := quat.Mul(quat.Mul(q, quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}), quat.Conj(q))
	return r3.Vector{X: rotated.Imag, Y: rotated.Jmag, Z: rotated.Kmag}
}

// TransformPoint applies the full transform to pt.
func (t Transform) TransformPoint(pt r3.Vector) r3.Vector {
	return t.Rotate(pt).Add(t.Translation)
}

// TransformPose moves a pose into the target frame. The orientation stays the identity.
func (t Transform) TransformPose(p Pose) Pose {
	return NewPoseFromPoint(t.TransformPoint(p.Point))
}

// Compose returns the transform equivalent to applying other first and then t.
func (t Transform) Compose(other Transform) Transform {
	return Transform{
		Translation: t.Rotate(other.Translation).Add(t.Translation),
		Rotation:    quat.Mul(t.rotation(), other.rotation()),
	}
}

// Inverse returns the transform that undoes t.
func (t Transform) Inverse() Transform {
	inv := Transform{Rotation: quat.Conj(t.rotation())}
	inv.Translation = inv.Rotate(t.Translation).Mul(-1)
	return inv
}

// RotationMatrix returns the 3x3 matrix of the rotation part.
func (t Transform) RotationMatrix() *mat.Dense {
	q := t.rotation()
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y),
		2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x),
		2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y),
	})
}

// TransformCovariance rotates a 3x3 positional covariance into the target frame: R·Σ·Rᵀ.
// Translation does not affect covariance.
func (t Transform) TransformCovariance(cov mat.Symmetric) *mat.SymDense {
	r := t.RotationMatrix()
	var rc mat.Dense
	rc.Mul(r, cov)
	var full mat.Dense
	full.Mul(&rc, r.T())

	n := cov.SymmetricDim()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return out
}

// TransformAlmostEqual reports whether two transforms move points the same way within epsilon.
func TransformAlmostEqual(a, b Transform, epsilon float64) bool {
	if a.Translation.Sub(b.Translation).Norm() > epsilon {
		return false
	}
	qa, qb := a.rotation(), b.rotation()
	// q and -q are the same rotation
	same := math.Abs(qa.Real-qb.Real) <= epsilon && math.Abs(qa.Imag-qb.Imag) <= epsilon &&
		math.Abs(qa.Jmag-qb.Jmag) <= epsilon && math.Abs(qa.Kmag-qb.Kmag) <= epsilon
	flipped := math.Abs(qa.Real+qb.Real) <= epsilon && math.Abs(qa.Imag+qb.Imag) <= epsilon &&
		math.Abs(qa.Jmag+qb.Jmag) <= epsilon && math.Abs(qa.Kmag+qb.Kmag) <= epsilon
	return same || flipped
}

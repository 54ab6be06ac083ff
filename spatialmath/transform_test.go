package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

var rotZ90 = quat.Number{Real: math.Cos(math.Pi / 4), Kmag: math.Sin(math.Pi / 4)}

func TestTransformPoint(t *testing.T) {
	// Start with point [3, 4, 5] - Rotate by 180 degrees around x-axis and then displace by [4,2,6]
	tf := NewTransform(r3.Vector{X: 4, Y: 2, Z: 6}, quat.Number{Imag: 1})
	out := tf.TransformPoint(r3.Vector{X: 3, Y: 4, Z: 5})
	test.That(t, out.X, test.ShouldAlmostEqual, 7.)
	test.That(t, out.Y, test.ShouldAlmostEqual, -2.)
	test.That(t, out.Z, test.ShouldAlmostEqual, 1.)

	out = NewTransform(r3.Vector{}, rotZ90).TransformPoint(r3.Vector{X: 1})
	test.That(t, out.X, test.ShouldAlmostEqual, 0.)
	test.That(t, out.Y, test.ShouldAlmostEqual, 1.)

	var zero Transform
	test.That(t, zero.TransformPoint(r3.Vector{X: 1, Y: 2, Z: 3}), test.ShouldResemble, r3.Vector{X: 1, Y: 2, Z: 3})
}

func TestNewTransformNormalises(t *testing.T) {
	tf := NewTransform(r3.Vector{}, quat.Number{Real: 2})
	test.That(t, tf.Rotation.Real, test.ShouldAlmostEqual, 1.)
	tf = NewTransform(r3.Vector{}, quat.Number{})
	test.That(t, tf.Rotation, test.ShouldResemble, quat.Number{Real: 1})
}

func TestComposeAndInverse(t *testing.T) {
	a := NewTransform(r3.Vector{X: 1, Y: 2, Z: 3}, rotZ90)
	b := NewTransform(r3.Vector{X: -4, Z: 0.5}, quat.Number{Imag: 1})
	pt := r3.Vector{X: 0.3, Y: -1.2, Z: 2}

	composed := a.Compose(b).TransformPoint(pt)
	sequential := a.TransformPoint(b.TransformPoint(pt))
	test.That(t, composed.Sub(sequential).Norm(), test.ShouldBeLessThan, 1e-9)

	roundTrip := a.Inverse().TransformPoint(a.TransformPoint(pt))
	test.That(t, roundTrip.Sub(pt).Norm(), test.ShouldBeLessThan, 1e-9)

	test.That(t, TransformAlmostEqual(a.Compose(a.Inverse()), NewIdentityTransform(), 1e-9), test.ShouldBeTrue)
	test.That(t, TransformAlmostEqual(a, b, 1e-9), test.ShouldBeFalse)
}

func TestRotationMatrix(t *testing.T) {
	r := NewTransform(r3.Vector{}, rotZ90).RotationMatrix()
	expected := mat.NewDense(3, 3, []float64{
		0, -1, 0,
		1, 0, 0,
		0, 0, 1,
	})
	test.That(t, mat.EqualApprox(r, expected, 1e-9), test.ShouldBeTrue)
	test.That(t, mat.EqualApprox(NewIdentityTransform().RotationMatrix(), mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12),
		test.ShouldBeTrue)
}

func TestTransformCovariance(t *testing.T) {
	cov := mat.NewSymDense(3, []float64{
		1, 0, 0,
		0, 4, 0,
		0, 0, 9,
	})
	out := NewTransform(r3.Vector{X: 10}, rotZ90).TransformCovariance(cov)
	test.That(t, out.At(0, 0), test.ShouldAlmostEqual, 4.)
	test.That(t, out.At(1, 1), test.ShouldAlmostEqual, 1.)
	test.That(t, out.At(2, 2), test.ShouldAlmostEqual, 9.)
	test.That(t, out.At(0, 1), test.ShouldAlmostEqual, 0.)

	same := NewIdentityTransform().TransformCovariance(cov)
	test.That(t, mat.EqualApprox(same, cov, 1e-12), test.ShouldBeTrue)
}

func TestPoseToProtobuf(t *testing.T) {
	p := NewPoseFromPoint(r3.Vector{X: 0.5, Y: -0.25, Z: 2})
	pb := PoseToProtobuf(p)
	test.That(t, pb.X, test.ShouldAlmostEqual, 500.)
	test.That(t, pb.Y, test.ShouldAlmostEqual, -250.)
	test.That(t, pb.Z, test.ShouldAlmostEqual, 2000.)
	test.That(t, pb.OZ, test.ShouldEqual, 1.)
	test.That(t, pb.Theta, test.ShouldEqual, 0.)

	back := NewPoseFromProtobuf(pb)
	test.That(t, PoseAlmostEqual(back, p, 1e-9), test.ShouldBeTrue)
	test.That(t, NewPoseFromProtobuf(nil), test.ShouldResemble, NewZeroPose())
	test.That(t, p.Orientation(), test.ShouldResemble, quat.Number{Real: 1})
}

// Package spatialmath defines the poses and rigid transforms the fusion engine works with.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	commonpb "go.viam.com/api/common/v1"
	"gonum.org/v1/gonum/num/quat"
)

// mmPerMetre converts engine units (metres) to the millimetres used by the viam API.
const mmPerMetre = 1000.

// Pose is a position with an identity orientation. The engine never estimates rotation, so the
// orientation is not stored.
type Pose struct {
	Point r3.Vector
}

// NewPoseFromPoint returns a pose at pt.
func NewPoseFromPoint(pt r3.Vector) Pose {
	return Pose{Point: pt}
}

// NewZeroPose returns a pose at the origin.
func NewZeroPose() Pose {
	return Pose{}
}

// Orientation always returns the identity quaternion.
func (p Pose) Orientation() quat.Number {
	return quat.Number{Real: 1}
}

func (p Pose) String() string {
	return fmt.Sprintf("{X:%.4f Y:%.4f Z:%.4f}", p.Point.X, p.Point.Y, p.Point.Z)
}

// PoseAlmostEqual reports whether the two poses are within epsilon on every axis.
func PoseAlmostEqual(a, b Pose, epsilon float64) bool {
	return math.Abs(a.Point.X-b.Point.X) <= epsilon &&
		math.Abs(a.Point.Y-b.Point.Y) <= epsilon &&
		math.Abs(a.Point.Z-b.Point.Z) <= epsilon
}

// PoseToProtobuf converts a pose in metres to the api pose in millimetres. The identity
// orientation is the +Z orientation vector with no twist.
func PoseToProtobuf(p Pose) *commonpb.Pose {
	return &commonpb.Pose{
		X:     p.Point.X * mmPerMetre,
		Y:     p.Point.Y * mmPerMetre,
		Z:     p.Point.Z * mmPerMetre,
		OX:    0,
		OY:    0,
		OZ:    1,
		Theta: 0,
	}
}

// NewPoseFromProtobuf converts an api pose in millimetres back to metres. Orientation is
// dropped.
func NewPoseFromProtobuf(pose *commonpb.Pose) Pose {
	if pose == nil {
		return NewZeroPose()
	}
	return NewPoseFromPoint(r3.Vector{
		X: pose.GetX() / mmPerMetre,
		Y: pose.GetY() / mmPerMetre,
		Z: pose.GetZ() / mmPerMetre,
	})
}

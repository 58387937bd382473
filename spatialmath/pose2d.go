// Package spatialmath holds the planar pose math shared by the simulator and the episode runner.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Pose2D is a planar world frame position with a heading in radians.
type Pose2D struct {
	Point   r2.Point
	Heading float64
}

// NewPose2D returns a pose at (x, y) facing heading.
func NewPose2D(x, y, heading float64) Pose2D {
	return Pose2D{Point: r2.Point{X: x, Y: y}, Heading: heading}
}

func (p Pose2D) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f)", p.Point.X, p.Point.Y, p.Heading)
}

// DistanceTo returns the planar euclidean distance between the positions of two poses.
func (p Pose2D) DistanceTo(other Pose2D) float64 {
	return Distance(p.Point, other.Point)
}

// Distance returns the euclidean distance between a and b.
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// HeadingTo returns the heading that points from `from` towards `to`.
func HeadingTo(from, to r2.Point) float64 {
	d := to.Sub(from)
	return math.Atan2(d.Y, d.X)
}

// Quat is a unit quaternion in (x, y, z, w) order.
type Quat struct {
	X, Y, Z, W float64
}

// QuatFromYaw returns the rotation of yaw radians about the z axis.
func QuatFromYaw(yaw float64) Quat {
	return Quat{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// Yaw returns the rotation about the z axis encoded by q.
func (q Quat) Yaw() float64 {
	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(sinyCosp, cosyCosp)
}

// IsZero reports whether all four components are exactly zero.
func (q Quat) IsZero() bool {
	return q.X == 0 && q.Y == 0 && q.Z == 0 && q.W == 0
}

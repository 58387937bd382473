package spatialmath

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"
)

func TestPose2DDistance(t *testing.T) {
	a := NewPose2D(-2, 3, 1.57)
	b := NewPose2D(1, 7, 0)
	test.That(t, a.DistanceTo(b), test.ShouldAlmostEqual, 5)
	test.That(t, b.DistanceTo(a), test.ShouldAlmostEqual, 5)
	test.That(t, a.DistanceTo(a), test.ShouldEqual, 0.0)
}

func TestHeadingTo(t *testing.T) {
	test.That(t, HeadingTo(r2.Point{}, r2.Point{X: 8, Y: 6}), test.ShouldAlmostEqual, math.Atan2(6, 8))
	test.That(t, HeadingTo(r2.Point{X: 1, Y: 1}, r2.Point{X: 1, Y: 2}), test.ShouldAlmostEqual, math.Pi/2)
}

func TestQuatYaw(t *testing.T) {
	for _, yaw := range []float64{0, 0.3, 1.57, -2.5, math.Pi - 0.01} {
		q := QuatFromYaw(yaw)
		test.That(t, q.Yaw(), test.ShouldAlmostEqual, yaw)
		test.That(t, q.X*q.X+q.Y*q.Y+q.Z*q.Z+q.W*q.W, test.ShouldAlmostEqual, 1)
	}
	test.That(t, Quat{}.IsZero(), test.ShouldBeTrue)
	test.That(t, QuatFromYaw(0).IsZero(), test.ShouldBeFalse)
}

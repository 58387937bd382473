package corridor

import (
	"math"
	"testing"

	"github.com/golang/geo/r2"
	"go.viam.com/test"

	"go.viam.com/navbench/ros"
)

func plane(a, b, c, d float64) ros.Pose {
	return ros.Pose{Orientation: ros.Quaternion{X: a, Y: b, Z: c, W: d}}
}

var delimiter = ros.Pose{Position: ros.Point{X: 4, Y: 2}}

func TestExtractPolygons(t *testing.T) {
	p1 := plane(1, 0, 0, -2)
	p2 := plane(0, 1, 0, -3)
	p3 := plane(-1, 0, 0, -1)

	t.Run("delimited polygons", func(t *testing.T) {
		polygons := ExtractPolygons([]ros.Pose{p1, p2, delimiter, p3, delimiter})
		test.That(t, polygons, test.ShouldResemble, []Polygon{
			{{A: 1, D: -2}, {B: 1, D: -3}},
			{{A: -1, D: -1}},
		})
	})

	t.Run("no delimiter discards everything", func(t *testing.T) {
		test.That(t, ExtractPolygons([]ros.Pose{p1, p2, p3}), test.ShouldBeEmpty)
	})

	t.Run("trailing polygon is discarded", func(t *testing.T) {
		polygons := ExtractPolygons([]ros.Pose{p1, delimiter, p2, p3})
		test.That(t, polygons, test.ShouldResemble, []Polygon{{{A: 1, D: -2}}})
	})

	t.Run("repeated delimiters do not emit empty polygons", func(t *testing.T) {
		polygons := ExtractPolygons([]ros.Pose{delimiter, delimiter, p3, delimiter, delimiter})
		test.That(t, polygons, test.ShouldResemble, []Polygon{{{A: -1, D: -1}}})
	})

	t.Run("empty input", func(t *testing.T) {
		test.That(t, ExtractPolygons(nil), test.ShouldBeEmpty)
	})
}

func TestTimeToIntersect(t *testing.T) {
	// unit speed along +x from the origin, inside the box -1 <= x <= 2, -3 <= y <= 3
	box := Polygon{
		{A: 1, D: -2},
		{A: -1, D: -1},
		{B: 1, D: -3},
		{B: -1, D: -3},
	}
	moving := MotionState{Velocity: r2.Point{X: 1}}

	t.Run("stationary agent returns the sentinel", func(t *testing.T) {
		stationary := MotionState{Position: r2.Point{X: 0.5, Y: -0.5}}
		test.That(t, TimeToIntersect(stationary, box), test.ShouldEqual, NoMotionSentinel)
		test.That(t, TimeToIntersect(stationary, nil), test.ShouldEqual, 100.0)
	})

	t.Run("nearest approaching boundary", func(t *testing.T) {
		test.That(t, TimeToIntersect(moving, box), test.ShouldAlmostEqual, 2)

		fast := MotionState{Position: r2.Point{X: 1}, Velocity: r2.Point{X: 4}}
		test.That(t, TimeToIntersect(fast, box), test.ShouldAlmostEqual, 0.25)
	})

	t.Run("diagonal motion takes the smallest crossing time", func(t *testing.T) {
		diagonal := MotionState{Velocity: r2.Point{X: 1, Y: 2}}
		// x=2 at t=2, y=3 at t=1.5
		test.That(t, TimeToIntersect(diagonal, box), test.ShouldAlmostEqual, 1.5)
	})

	t.Run("receding boundaries never count", func(t *testing.T) {
		receding := Polygon{{A: -1, D: -1}, {A: -1, D: -0.5}}
		test.That(t, math.IsInf(TimeToIntersect(moving, receding), 1), test.ShouldBeTrue)

		withReceding := append(Polygon{{A: -1, D: -0.001}}, box...)
		test.That(t, TimeToIntersect(moving, withReceding), test.ShouldAlmostEqual, 2)
	})

	t.Run("non planar boundaries are skipped", func(t *testing.T) {
		tilted := Polygon{{A: 1, C: 0.5, D: -1}, {A: 1, D: -5}}
		test.That(t, TimeToIntersect(moving, tilted), test.ShouldAlmostEqual, 5)

		nearlyPlanar := Polygon{{A: 1, C: 0.0009, D: -1}, {A: 1, D: -5}}
		test.That(t, TimeToIntersect(moving, nearlyPlanar), test.ShouldAlmostEqual, 1)
	})

	t.Run("zero in-plane normal", func(t *testing.T) {
		// 0/0 is NaN and never becomes the minimum
		test.That(t, TimeToIntersect(moving, Polygon{{}, {A: 1, D: -5}}), test.ShouldAlmostEqual, 5)
		// -1/0 is -Inf and does
		test.That(t, math.IsInf(TimeToIntersect(moving, Polygon{{D: 1}, {A: 1, D: -5}}), -1), test.ShouldBeTrue)
	})

	t.Run("no qualifying boundary is infinite", func(t *testing.T) {
		test.That(t, math.IsInf(TimeToIntersect(moving, Polygon{{A: 1, C: 1}}), 1), test.ShouldBeTrue)
		test.That(t, math.IsInf(TimeToIntersect(moving, nil), 1), test.ShouldBeTrue)
	})
}

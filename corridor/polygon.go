// Package corridor decodes the safe corridor polygons published by the planner and computes the
// geometric features fed to the recovery regression models.
package corridor

import (
	"math"

	"github.com/golang/geo/r2"

	"go.viam.com/navbench/ros"
)

// NoMotionSentinel is the intersection time reported for a stationary agent.
const NoMotionSentinel = 100.0

// planarTolerance bounds |c| for a hyperplane to be treated as a vertical boundary in the x-y
// plane.
const planarTolerance = 1e-3

// Hyperplane is the implicit plane a*x + b*y + c*z + d = 0.
type Hyperplane struct {
	A, B, C, D float64
}

// Normal returns the in-plane (a, b) component of the plane normal.
func (h Hyperplane) Normal() r2.Point {
	return r2.Point{X: h.A, Y: h.B}
}

// Planar reports whether the plane is vertical, i.e. its boundary lies in the x-y plane.
func (h Hyperplane) Planar() bool {
	return math.Abs(h.C) < planarTolerance
}

// Polygon is a convex region given as an ordered set of half-plane boundaries.
type Polygon []Hyperplane

// MotionState is the position and velocity of an agent at one instant.
type MotionState struct {
	Position r2.Point
	Velocity r2.Point
}

// ExtractPolygons decodes the planner's flattened polygon encoding. Each pose orientation holds
// the coefficients (x, y, z, w) = (a, b, c, d) of one hyperplane and a pose whose orientation is
// all zero terminates the current polygon. Hyperplanes after the last delimiter do not form a
// polygon and are dropped.
func ExtractPolygons(poses []ros.Pose) []Polygon {
	var polygons []Polygon
	var current Polygon

	for _, pose := range poses {
		o := pose.Orientation
		if o.X == 0 && o.Y == 0 && o.Z == 0 && o.W == 0 {
			if len(current) > 0 {
				polygons = append(polygons, current)
				current = nil
			}
			continue
		}
		current = append(current, Hyperplane{A: o.X, B: o.Y, C: o.Z, D: o.W})
	}

	return polygons
}

// TimeToIntersect returns the earliest time at which an agent moving with constant velocity
// crosses one of the polygon's vertical boundaries it is heading towards. A stationary agent
// yields NoMotionSentinel and a polygon with no qualifying boundary yields +Inf.
//
// Boundaries with a zero in-plane normal are not rejected. Their time is -Inf, +Inf or NaN; a
// -Inf wins the minimum while a NaN never replaces it.
func TimeToIntersect(m MotionState, polygon Polygon) float64 {
	vel := m.Velocity
	if vel.X == 0 && vel.Y == 0 {
		return NoMotionSentinel
	}

	best := math.Inf(1)
	for _, h := range polygon {
		if !h.Planar() {
			continue
		}

		norm := h.Normal().Norm()
		speed := vel.Dot(r2.Point{X: h.A / norm, Y: h.B / norm})
		if speed < 0 {
			continue
		}

		t := (-h.A*m.Position.X - h.B*m.Position.Y - h.D) / (h.A*vel.X + h.B*vel.Y)
		if t < best {
			best = t
		}
	}
	return best
}

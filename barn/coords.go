// Package barn handles the BARN benchmark world data: the grid used by the pre-generated path
// files and their conversion to the simulator world frame.
package barn

import "github.com/golang/geo/r2"

// CellRadius is the radius of one path grid cell in meters.
const CellRadius = 0.075

const (
	rowShift    = -CellRadius - 30*CellRadius*2
	columnShift = CellRadius + 5
)

// PathCoordToWorld converts a path grid coordinate to world frame coordinates.
func PathCoordToWorld(x, y float64) r2.Point {
	return r2.Point{
		X: x*(CellRadius*2) + rowShift,
		Y: y*(CellRadius*2) + columnShift,
	}
}

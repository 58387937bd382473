package corridor

import (
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/navbench/ros"
)

// ErrNoPolygons is returned when a solver state carries no delimited polygon.
var ErrNoPolygons = errors.New("solver state has no corridor polygons")

// Feature is the regression input derived from one solver state.
type Feature struct {
	TimeToIntersect float64
	PolygonCount    int
}

// MotionStateFromPVA takes the planar position and velocity out of an initial
// position/velocity/acceleration triple.
func MotionStateFromPVA(pva ros.JointTrajectoryPoint) (MotionState, error) {
	if len(pva.Positions) < 2 || len(pva.Velocities) < 2 {
		return MotionState{}, errors.Errorf(
			"initial state needs planar position and velocity, got %d positions and %d velocities",
			len(pva.Positions), len(pva.Velocities))
	}
	return MotionState{
		Position: r2.Point{X: pva.Positions[0], Y: pva.Positions[1]},
		Velocity: r2.Point{X: pva.Velocities[0], Y: pva.Velocities[1]},
	}, nil
}

// ExtractFeatures computes, for every solver state, the time to leave its first corridor polygon
// paired with the number of polygons in the corridor.
func ExtractFeatures(states []ros.SolverState) ([]Feature, error) {
	features := make([]Feature, 0, len(states))
	for i, state := range states {
		polygons := ExtractPolygons(state.Polys.Poses)
		if len(polygons) == 0 {
			return nil, errors.Wrapf(ErrNoPolygons, "state %d", i)
		}
		motion, err := MotionStateFromPVA(state.InitialPVA)
		if err != nil {
			return nil, errors.Wrapf(err, "state %d", i)
		}
		features = append(features, Feature{
			TimeToIntersect: TimeToIntersect(motion, polygons[0]),
			PolygonCount:    len(polygons),
		})
	}
	return features, nil
}

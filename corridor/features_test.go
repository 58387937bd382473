package corridor

import (
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/navbench/ros"
)

func solverState(poses []ros.Pose, pos, vel []float64) ros.SolverState {
	return ros.SolverState{
		Polys:      ros.PoseArray{Poses: poses},
		InitialPVA: ros.JointTrajectoryPoint{Positions: pos, Velocities: vel, Accelerations: []float64{0, 0, 0}},
	}
}

func TestExtractFeatures(t *testing.T) {
	first := []ros.Pose{plane(1, 0, 0, -2), plane(-1, 0, 0, -1), delimiter}
	second := []ros.Pose{plane(1, 0, 0, -6), delimiter}
	third := []ros.Pose{plane(0, 1, 0, -6), delimiter}

	states := []ros.SolverState{
		solverState(append(append([]ros.Pose{}, first...), second...), []float64{0, 0, 0}, []float64{0.5, 0, 0}),
		solverState(append(append(append([]ros.Pose{}, first...), second...), third...), []float64{1, 0, 0}, []float64{0, 0, 0}),
	}

	features, err := ExtractFeatures(states)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, features, test.ShouldResemble, []Feature{
		{TimeToIntersect: 4, PolygonCount: 2},
		{TimeToIntersect: NoMotionSentinel, PolygonCount: 3},
	})
}

func TestExtractFeaturesPreconditions(t *testing.T) {
	t.Run("no polygons", func(t *testing.T) {
		states := []ros.SolverState{
			solverState([]ros.Pose{plane(1, 0, 0, -2), delimiter}, []float64{0, 0}, []float64{1, 0}),
			solverState([]ros.Pose{plane(1, 0, 0, -2)}, []float64{0, 0}, []float64{1, 0}),
		}
		_, err := ExtractFeatures(states)
		test.That(t, errors.Is(err, ErrNoPolygons), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "state 1")
	})

	t.Run("short initial state", func(t *testing.T) {
		states := []ros.SolverState{
			solverState([]ros.Pose{plane(1, 0, 0, -2), delimiter}, []float64{0}, []float64{1, 0}),
		}
		_, err := ExtractFeatures(states)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "state 0")
	})

	t.Run("empty input", func(t *testing.T) {
		features, err := ExtractFeatures(nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, features, test.ShouldBeEmpty)
	})
}

package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"go.viam.com/navbench/config"
	"go.viam.com/navbench/corridor"
	"go.viam.com/navbench/episode"
	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/rexec"
	"go.viam.com/navbench/ros"
)

func TestSummarizeAction(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "out.txt")
	content := "3 1 0 0 40.1250 0.1309\n3 0 1 0 5.0000 0.0000\n4 1 0 0 30.0000 0.1750 0\n"
	test.That(t, os.WriteFile(logPath, []byte(content), 0o600), test.ShouldBeNil)

	var out, errOut bytes.Buffer
	err := NewApp(&out, &errOut).Run([]string{"navbench", "summarize", "--" + summarizeFlagByIndex, logPath})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out.String(), test.ShouldContainSubstring, "Success rate")
	test.That(t, out.String(), test.ShouldContainSubstring, "66.67%")
	test.That(t, out.String(), test.ShouldContainSubstring, "50.00%")

	out.Reset()
	err = NewApp(&out, &errOut).Run([]string{"navbench", "summarize"})
	test.That(t, err, test.ShouldNotBeNil)
}

type predictorFunc func(f corridor.Feature) (float64, error)

func (p predictorFunc) Predict(f corridor.Feature) (float64, error) {
	return p(f)
}

func plane(a, b, c, d float64) ros.Pose {
	return ros.Pose{Orientation: ros.Quaternion{X: a, Y: b, Z: c, W: d}}
}

func TestFeaturesTable(t *testing.T) {
	delimiter := ros.Pose{}
	corridorState := ros.SolverState{
		Polys: ros.PoseArray{Poses: []ros.Pose{
			plane(1, 0, 0, -2), plane(-1, 0, 0, -1), delimiter,
			plane(1, 0, 0, -6), delimiter,
		}},
		InitialPVA: ros.JointTrajectoryPoint{Positions: []float64{0, 0, 0}, Velocities: []float64{0.5, 0, 0}},
	}
	emptyState := ros.SolverState{
		Polys:      ros.PoseArray{Poses: []ros.Pose{plane(1, 0, 0, -2)}},
		InitialPVA: ros.JointTrajectoryPoint{Positions: []float64{0, 0, 0}, Velocities: []float64{0.5, 0, 0}},
	}
	msgs := []ros.BagMessage[ros.SolverStateArray]{
		{Stamp: ros.Time{Secs: 12, Nsecs: 500000000}, Data: ros.SolverStateArray{States: []ros.SolverState{corridorState, emptyState}}},
	}
	logger := logging.NewTestLogger(t)

	out, skipped := featuresTable(msgs, nil, logger)
	test.That(t, skipped, test.ShouldEqual, 1)
	test.That(t, out, test.ShouldContainSubstring, "12.500")
	test.That(t, out, test.ShouldContainSubstring, "4.0000")
	test.That(t, out, test.ShouldNotContainSubstring, "PREDICTION")

	double := predictorFunc(func(f corridor.Feature) (float64, error) {
		return 2 * f.TimeToIntersect, nil
	})
	out, _ = featuresTable(msgs, double, logger)
	test.That(t, out, test.ShouldContainSubstring, "PREDICTION")
	test.That(t, out, test.ShouldContainSubstring, "8.0000")

	failing := predictorFunc(func(f corridor.Feature) (float64, error) {
		return 0, errors.New("no model")
	})
	out, _ = featuresTable(msgs, failing, logger)
	test.That(t, out, test.ShouldContainSubstring, "PREDICTION")
	test.That(t, out, test.ShouldNotContainSubstring, "8.0000")
}

func TestRecordIndex(t *testing.T) {
	settings := runSettings{worldIdx: 12, maxSpeed: 2.7}
	test.That(t, recordIndex(config.BARNConfig(), settings), test.ShouldEqual, 12)
	test.That(t, recordIndex(config.SpeedConfig(), settings), test.ShouldEqual, 2)
}

type fakeProcess struct {
	id string
}

func (p *fakeProcess) ID() string                      { return p.id }
func (p *fakeProcess) Start(ctx context.Context) error { return nil }
func (p *fakeProcess) Alive() bool                     { return true }
func (p *fakeProcess) Stop() error                     { return nil }

func TestStackLauncher(t *testing.T) {
	var launched []string
	launch := func(id string, lc config.LaunchConfig) (rexec.Process, error) {
		launched = append(launched, id+":"+lc.LaunchFile)
		if lc.LaunchFile == "broken.launch" {
			return nil, errors.New("roslaunch failed")
		}
		return &fakeProcess{id: id}, nil
	}
	cfg := config.SpeedConfig()

	t.Run("launches nav stack then planner", func(t *testing.T) {
		launched = nil
		l := &stackLauncher{launch: launch, navStack: cfg.NavStack, planner: cfg.Planner.ForSolver("1")}
		planner, err := l.Launch(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, planner.Alive(), test.ShouldBeTrue)
		test.That(t, launched, test.ShouldResemble, []string{
			"nav_stack:launch/navigation_stack.launch",
			"planner:launch/planner.launch",
		})
	})

	t.Run("disabled planner", func(t *testing.T) {
		launched = nil
		planner := cfg.Planner.ForSolver("0")
		planner.Disabled = true
		l := &stackLauncher{launch: launch, navStack: cfg.NavStack, planner: planner}
		liveness, err := l.Launch(context.Background())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, liveness, test.ShouldBeNil)
		test.That(t, launched, test.ShouldHaveLength, 1)
	})

	t.Run("nav stack failure", func(t *testing.T) {
		launched = nil
		navStack := cfg.NavStack
		navStack.LaunchFile = "broken.launch"
		l := &stackLauncher{launch: launch, navStack: navStack, planner: cfg.Planner.ForSolver("0")}
		_, err := l.Launch(context.Background())
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, launched, test.ShouldHaveLength, 1)
	})
}

func TestResultLogIntegration(t *testing.T) {
	cfg := config.SpeedConfig()
	cfg.ResultFormat = "extended"
	format, err := cfg.Format()
	test.That(t, err, test.ShouldBeNil)

	logPath := filepath.Join(t.TempDir(), "speed.txt")
	resultLog := episode.NewResultLog(logPath, format)
	rec := episode.Record{Index: recordIndex(cfg, runSettings{maxSpeed: 3.5}), Collided: true, Crashed: true, Elapsed: 12}
	test.That(t, resultLog.Append(rec), test.ShouldBeNil)

	data, err := os.ReadFile(logPath)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "3 0 1 0 12.0000 0.0000 1\n")
}

func TestBatchPlan(t *testing.T) {
	plan := batchPlan(2, 3, []float64{1, 2.5}, 2, runSettings{solver: 1, gui: true})
	test.That(t, plan, test.ShouldHaveLength, 8)
	test.That(t, plan[0], test.ShouldResemble, runSettings{worldIdx: 2, gui: true, solver: 1, maxSpeed: 1})
	test.That(t, plan[1], test.ShouldResemble, runSettings{worldIdx: 2, gui: true, solver: 1, maxSpeed: 1})
	test.That(t, plan[2].maxSpeed, test.ShouldEqual, 2.5)
	test.That(t, plan[7], test.ShouldResemble, runSettings{worldIdx: 3, gui: true, solver: 1, maxSpeed: 2.5})

	test.That(t, batchPlan(3, 3, []float64{1}, 0, runSettings{}), test.ShouldBeEmpty)
}

func TestRunBatch(t *testing.T) {
	plan := batchPlan(0, 3, []float64{2}, 1, runSettings{})

	t.Run("failed episode is skipped", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "out.txt")
		var started []int
		records, err := runBatch(context.Background(), plan, episode.NewResultLog(logPath, episode.ResultFormatCompat),
			logging.NewTestLogger(t),
			func(ctx context.Context, settings runSettings, runID string) (episode.Record, error) {
				started = append(started, settings.worldIdx)
				if settings.worldIdx == 1 {
					return episode.Record{}, errors.New("gazebo did not come up")
				}
				return episode.Record{Index: settings.worldIdx, Success: true, Elapsed: 10, Metric: 0.2}, nil
			})
		test.That(t, err, test.ShouldBeNil)
		test.That(t, started, test.ShouldResemble, []int{0, 1, 2, 3})
		test.That(t, records, test.ShouldHaveLength, 3)

		data, err := os.ReadFile(logPath)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, string(data), test.ShouldEqual,
			"0 1 0 0 10.0000 0.2000\n2 1 0 0 10.0000 0.2000\n3 1 0 0 10.0000 0.2000\n")
	})

	t.Run("cancel stops the batch", func(t *testing.T) {
		logPath := filepath.Join(t.TempDir(), "out.txt")
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var started []int
		records, err := runBatch(ctx, plan, episode.NewResultLog(logPath, episode.ResultFormatCompat),
			logging.NewTestLogger(t),
			func(ctx context.Context, settings runSettings, runID string) (episode.Record, error) {
				started = append(started, settings.worldIdx)
				if settings.worldIdx == 1 {
					// a signal tears down the running episode and cancels the batch
					cancel()
					return episode.Record{}, ctx.Err()
				}
				return episode.Record{Index: settings.worldIdx, Success: true, Elapsed: 10, Metric: 0.2}, nil
			})
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
		test.That(t, started, test.ShouldResemble, []int{0, 1})
		test.That(t, records, test.ShouldHaveLength, 1)
	})

	t.Run("episode canceled on its own", func(t *testing.T) {
		var started []int
		_, err := runBatch(context.Background(), plan,
			episode.NewResultLog(filepath.Join(t.TempDir(), "out.txt"), episode.ResultFormatCompat),
			logging.NewTestLogger(t),
			func(ctx context.Context, settings runSettings, runID string) (episode.Record, error) {
				started = append(started, settings.worldIdx)
				return episode.Record{}, errors.Wrap(context.Canceled, "waiting for rosbridge")
			})
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
		test.That(t, started, test.ShouldResemble, []int{0})
	})
}

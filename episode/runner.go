package episode

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/spatialmath"
)

// ErrResetExhausted is returned when the robot could not be reset within the configured number
// of attempts.
var ErrResetExhausted = errors.New("robot could not be reset to its initial pose")

// Simulator is the control surface of the physics simulator.
type Simulator interface {
	// Reset teleports the robot to its initial pose.
	Reset(ctx context.Context) error
	// Pose returns the robot's world frame pose.
	Pose(ctx context.Context) (spatialmath.Pose2D, error)
	// HardCollision reports whether the robot collided since the previous call.
	HardCollision(ctx context.Context) (bool, error)
	// Time returns the simulation time in seconds.
	Time(ctx context.Context) (float64, error)
}

// Liveness reports whether a process is still running.
type Liveness interface {
	Alive() bool
}

// Launcher starts the navigation stack once the robot is reset and returns the process whose
// liveness the episode watches.
type Launcher interface {
	Launch(ctx context.Context) (Liveness, error)
}

// GoalPublisher hands the goal to the navigation stack. The goal is in the map frame.
type GoalPublisher interface {
	PublishGoal(ctx context.Context, goal spatialmath.Pose2D) error
}

// Motion is the result of waiting for the robot to start moving.
type Motion struct {
	// Time is the sim time of the last sample, which starts the episode clock.
	Time float64
	Pose spatialmath.Pose2D
	// Crashed is set when the planner died or the robot never moved.
	Crashed bool
}

// Episode is the outcome of a tracked episode.
type Episode struct {
	Outcome State
	// Crashed is set when the outcome is a collision caused by a dead planner or a stalled
	// simulator rather than contact in the simulator.
	Crashed   bool
	StartTime float64
	EndTime   float64
	Elapsed   float64
	FinalPose spatialmath.Pose2D
}

// Runner drives the episode state machine against a simulator.
type Runner struct {
	cfg    Config
	sim    Simulator
	clk    clock.Clock
	logger logging.Logger
}

// NewRunner returns a runner. clk paces the wall time waits.
func NewRunner(cfg Config, sim Simulator, clk clock.Clock, logger logging.Logger) *Runner {
	return &Runner{cfg: cfg, sim: sim, clk: clk, logger: logger}
}

// Config returns the runner's configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.clk.After(d):
		return nil
	}
}

// Reset resets the robot until it rests within the reset tolerance of the initial position
// without a pending collision.
func (r *Runner) Reset(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		if err := r.sim.Reset(ctx); err != nil {
			return errors.Wrap(err, "failed to reset robot")
		}
		pose, err := r.sim.Pose(ctx)
		if err != nil {
			return err
		}
		collided, err := r.sim.HardCollision(ctx)
		if err != nil {
			return err
		}
		if err := r.sleep(ctx, r.cfg.ResetInterval); err != nil {
			return err
		}

		dist := spatialmath.Distance(r.cfg.Init.Point, pose.Point)
		if dist <= r.cfg.ResetTolerance && !collided {
			r.logger.Debugw("robot reset", "attempts", attempt, "pose", pose.String())
			return nil
		}
		r.logger.Debugw("reset attempt did not settle", "attempt", attempt, "distance", dist, "collided", collided)
		if r.cfg.MaxResetAttempts > 0 && attempt >= r.cfg.MaxResetAttempts {
			return errors.Wrapf(ErrResetExhausted, "after %d attempts", attempt)
		}
	}
}

// AwaitMotion polls the sim clock and robot pose until the robot moved away from the initial
// position while the planner is alive. The phase ends as a crash when the motion timeout of wall
// time passes or the planner is not alive once it ends.
func (r *Runner) AwaitMotion(ctx context.Context, planner Liveness) (Motion, error) {
	now, err := r.sim.Time(ctx)
	if err != nil {
		return Motion{}, err
	}
	pose, err := r.sim.Pose(ctx)
	if err != nil {
		return Motion{}, err
	}

	start := r.clk.Now()
	motion := Motion{}
	for spatialmath.Distance(r.cfg.Init.Point, pose.Point) < r.cfg.MotionThreshold || !alive(planner) {
		if r.cfg.MotionTimeout > 0 && r.clk.Since(start) > r.cfg.MotionTimeout {
			r.logger.Warnw("robot did not start moving", "timeout", r.cfg.MotionTimeout)
			motion.Crashed = true
			break
		}
		if now, err = r.sim.Time(ctx); err != nil {
			return Motion{}, err
		}
		if pose, err = r.sim.Pose(ctx); err != nil {
			return Motion{}, err
		}
		if err := r.sleep(ctx, r.cfg.MotionPollInterval); err != nil {
			return Motion{}, err
		}
	}
	if !alive(planner) {
		motion.Crashed = true
	}
	motion.Time = now
	motion.Pose = pose
	return motion, nil
}

// Track samples the robot every sample period of sim time until it reaches the goal, collides,
// runs out of time or crosses the y bound, then classifies the episode.
func (r *Runner) Track(ctx context.Context, motion Motion, planner Liveness) (Episode, error) {
	now := motion.Time
	pose := motion.Pose
	crashed := motion.Crashed
	collided := crashed

	for r.inProgress(pose, collided, now-motion.Time) {
		var err error
		if now, err = r.sim.Time(ctx); err != nil {
			return Episode{}, err
		}
		if pose, err = r.sim.Pose(ctx); err != nil {
			return Episode{}, err
		}
		if collided, err = r.sim.HardCollision(ctx); err != nil {
			return Episode{}, err
		}
		if !alive(planner) {
			r.logger.Warn("planner exited during the episode")
			crashed = true
			collided = true
		}
		r.logger.Debugw("episode status",
			"elapsed", now-motion.Time,
			"x", pose.Point.X,
			"y", pose.Point.Y,
			"distance_to_goal", spatialmath.Distance(pose.Point, r.cfg.Goal),
		)
		stalled, err := r.pace(ctx, now)
		if err != nil {
			return Episode{}, err
		}
		if stalled {
			r.logger.Warnw("simulator clock stopped advancing", "sim_time", now, "timeout", r.cfg.StallTimeout)
			crashed = true
			collided = true
		}
	}

	elapsed := now - motion.Time
	ep := Episode{
		Outcome:   classify(collided, elapsed, r.cfg.Deadline),
		Crashed:   crashed,
		StartTime: motion.Time,
		EndTime:   now,
		Elapsed:   elapsed,
		FinalPose: pose,
	}
	r.logger.Infow("episode finished", "outcome", ep.Outcome.String(), "elapsed", ep.Elapsed, "crashed", ep.Crashed)
	return ep, nil
}

func (r *Runner) inProgress(pose spatialmath.Pose2D, collided bool, elapsed float64) bool {
	if collided || elapsed >= r.cfg.Deadline {
		return false
	}
	if r.cfg.YBound != 0 && pose.Point.Y >= r.cfg.YBound {
		return false
	}
	return spatialmath.Distance(pose.Point, r.cfg.Goal) > r.cfg.SuccessRadius
}

// pace waits until a sample period of sim time passed since sampledAt. It reports a stall when
// the stall timeout of wall time passes first.
func (r *Runner) pace(ctx context.Context, sampledAt float64) (bool, error) {
	start := r.clk.Now()
	for {
		now, err := r.sim.Time(ctx)
		if err != nil {
			return false, err
		}
		if now-sampledAt >= r.cfg.SamplePeriod {
			return false, nil
		}
		if r.cfg.StallTimeout > 0 && r.clk.Since(start) >= r.cfg.StallTimeout {
			return true, nil
		}
		if err := r.sleep(ctx, r.cfg.MotionPollInterval); err != nil {
			return false, err
		}
	}
}

// Run resets the robot, launches the navigation stack, sends the goal and tracks the episode.
// goals may be nil when the navigation stack gets its goal elsewhere.
func (r *Runner) Run(ctx context.Context, launcher Launcher, goals GoalPublisher) (Episode, error) {
	if err := r.Reset(ctx); err != nil {
		return Episode{}, err
	}
	planner, err := launcher.Launch(ctx)
	if err != nil {
		return Episode{}, errors.Wrap(err, "failed to launch navigation stack")
	}
	if goals != nil {
		goal := spatialmath.Pose2D{Point: r.cfg.GoalInMapFrame()}
		if err := goals.PublishGoal(ctx, goal); err != nil {
			return Episode{}, errors.Wrap(err, "failed to publish goal")
		}
	}
	motion, err := r.AwaitMotion(ctx, planner)
	if err != nil {
		return Episode{}, err
	}
	return r.Track(ctx, motion, planner)
}

func alive(planner Liveness) bool {
	return planner == nil || planner.Alive()
}

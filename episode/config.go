// Package episode runs and scores a single navigation benchmark episode: reset the robot,
// wait for the navigation stack to move it, track it until it reaches the goal, collides or
// runs out of time, and compute the navigation metric.
package episode

import (
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"

	"go.viam.com/navbench/spatialmath"
)

// Preset names a built-in episode configuration.
type Preset string

// The built-in presets.
const (
	// PresetBARN is the BARN challenge: start at (-2, 3) facing +y, goal 8.5m along +x.
	PresetBARN = Preset("barn")
	// PresetSpeed is the max-speed sweep in the occluded trap world.
	PresetSpeed = Preset("speed")
)

// Config parameterizes the episode state machine. Distances are in meters, values documented
// as sim seconds are measured on the simulator clock and the durations are wall time.
type Config struct {
	Init spatialmath.Pose2D
	Goal r2.Point

	// SuccessRadius is how close to Goal the robot must get.
	SuccessRadius float64
	// Deadline in sim seconds after motion started.
	Deadline float64
	// YBound ends tracking once the robot's y reaches it. Zero disables the bound.
	YBound float64
	// MotionTimeout in wall time ends the wait for motion as a crash. Zero waits forever.
	MotionTimeout time.Duration
	// StallTimeout in wall time ends tracking as a crash when the sim clock stops advancing.
	// Zero waits forever.
	StallTimeout time.Duration

	ResetTolerance float64
	ResetInterval  time.Duration
	// MaxResetAttempts bounds the reset loop. Zero retries forever.
	MaxResetAttempts int

	MotionPollInterval time.Duration
	MotionThreshold    float64
	// SamplePeriod in sim seconds between two tracking samples.
	SamplePeriod float64
}

// BARNConfig returns the configuration of the BARN challenge.
func BARNConfig() Config {
	cfg := baseConfig()
	cfg.Init = spatialmath.NewPose2D(-2, 3, 1.57)
	cfg.Goal = cfg.Init.Point.Add(r2.Point{X: 8.5})
	cfg.SuccessRadius = 1
	cfg.Deadline = 70
	cfg.YBound = 10
	return cfg
}

// SpeedConfig returns the configuration of the max-speed sweep. The robot starts at the
// origin facing the goal.
func SpeedConfig() Config {
	cfg := baseConfig()
	cfg.Goal = r2.Point{X: 8, Y: 6}
	cfg.Init = spatialmath.NewPose2D(0, 0, spatialmath.HeadingTo(r2.Point{}, cfg.Goal))
	cfg.SuccessRadius = 2
	cfg.Deadline = 10000
	cfg.MotionTimeout = time.Minute
	return cfg
}

func baseConfig() Config {
	return Config{
		ResetTolerance:     0.1,
		ResetInterval:      time.Second,
		MaxResetAttempts:   30,
		MotionPollInterval: 10 * time.Millisecond,
		StallTimeout:       10 * time.Second,
		MotionThreshold:    0.1,
		SamplePeriod:       0.1,
	}
}

// PresetConfig returns the configuration of a named preset.
func PresetConfig(preset Preset) (Config, error) {
	switch preset {
	case PresetBARN:
		return BARNConfig(), nil
	case PresetSpeed:
		return SpeedConfig(), nil
	default:
		return Config{}, errors.Errorf("unknown episode preset %q", preset)
	}
}

// GoalInMapFrame is the goal relative to the initial position, which is where the navigation
// stack's map frame is anchored.
func (cfg Config) GoalInMapFrame() r2.Point {
	return cfg.Goal.Sub(cfg.Init.Point)
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	positive := []struct {
		name  string
		value float64
	}{
		{"success_radius", cfg.SuccessRadius},
		{"deadline", cfg.Deadline},
		{"reset_tolerance", cfg.ResetTolerance},
		{"motion_threshold", cfg.MotionThreshold},
		{"sample_period", cfg.SamplePeriod},
	}
	for _, p := range positive {
		if !(p.value > 0) || math.IsInf(p.value, 0) {
			return errors.Errorf("%s: %q must be a positive number, got %v", path, p.name, p.value)
		}
	}
	if cfg.YBound != 0 && cfg.Init.Point.Y >= cfg.YBound {
		return errors.Errorf("%s: \"y_bound\" %v does not lie beyond the initial position", path, cfg.YBound)
	}
	if cfg.MotionTimeout < 0 {
		return errors.Errorf("%s: \"motion_timeout\" cannot be negative", path)
	}
	if cfg.StallTimeout < 0 {
		return errors.Errorf("%s: \"stall_timeout\" cannot be negative", path)
	}
	if cfg.MaxResetAttempts < 0 {
		return errors.Errorf("%s: \"max_reset_attempts\" cannot be negative", path)
	}
	if cfg.ResetInterval < 0 || cfg.MotionPollInterval < 0 {
		return errors.Errorf("%s: intervals cannot be negative", path)
	}
	return nil
}

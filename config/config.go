// Package config defines the JSON configuration of a benchmark run: which episode preset to
// use, how to reach rosbridge and which ROS launch files make up the simulation.
package config

import (
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/navbench/episode"
	"go.viam.com/navbench/rexec"
)

// Where the record index of a result line comes from.
const (
	IndexWorld    = "world_idx"
	IndexMaxSpeed = "max_speed"
)

// DefaultBridgeURL is where rosbridge_websocket listens by default.
const DefaultBridgeURL = "ws://localhost:9090"

// Duration is a time.Duration written as a string like "5s" in JSON.
type Duration time.Duration

// UnmarshalJSON accepts a duration string or a number of nanoseconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return errors.Wrapf(err, "invalid duration %q", value)
		}
		*d = Duration(parsed)
	default:
		return errors.Errorf("invalid duration %v", v)
	}
	return nil
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// LaunchConfig describes one roslaunch invocation.
type LaunchConfig struct {
	Package    string            `json:"package"`
	LaunchFile string            `json:"launch_file"`
	Args       map[string]string `json:"args,omitempty"`
	// Settle is how long to wait after the launch before continuing.
	Settle   Duration `json:"settle,omitempty"`
	Log      bool     `json:"log,omitempty"`
	Disabled bool     `json:"disabled,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (lc *LaunchConfig) Validate(path string) error {
	if lc.Disabled {
		return nil
	}
	if lc.Package == "" {
		return errors.Errorf("%s: \"package\" is required", path)
	}
	if lc.LaunchFile == "" {
		return errors.Errorf("%s: \"launch_file\" is required", path)
	}
	if lc.Settle < 0 {
		return errors.Errorf("%s: \"settle\" cannot be negative", path)
	}
	return nil
}

// ProcessConfig resolves the launch into a roslaunch command line. Placeholders in the launch
// file and the argument values are replaced by r.
func (lc *LaunchConfig) ProcessConfig(id string, r *Replacer, env []string) (rexec.ProcessConfig, error) {
	pkgPath, err := r.PackagePath(lc.Package)
	if err != nil {
		return rexec.ProcessConfig{}, err
	}
	launchFile, err := r.Replace(lc.LaunchFile)
	if err != nil {
		return rexec.ProcessConfig{}, errors.Wrapf(err, "%s launch file", id)
	}
	args := []string{path.Join(pkgPath, launchFile)}

	keys := lo.Keys(lc.Args)
	sort.Strings(keys)
	for _, k := range keys {
		v, err := r.Replace(lc.Args[k])
		if err != nil {
			return rexec.ProcessConfig{}, errors.Wrapf(err, "%s argument %q", id, k)
		}
		args = append(args, k+":="+v)
	}

	return rexec.ProcessConfig{
		ID:   id,
		Name: "roslaunch",
		Args: args,
		Env:  append([]string(nil), env...),
		Log:  lc.Log,
	}, nil
}

// PlannerConfig is the planner launch. The launch file can depend on the chosen solver.
type PlannerConfig struct {
	LaunchConfig
	// SolverLaunchFiles maps a solver number to the launch file that replaces LaunchFile.
	SolverLaunchFiles map[string]string `json:"solver_launch_files,omitempty"`
}

// ForSolver returns the launch of the planner using solver.
func (pc PlannerConfig) ForSolver(solver string) LaunchConfig {
	lc := pc.LaunchConfig
	if file, ok := pc.SolverLaunchFiles[solver]; ok {
		lc.LaunchFile = file
	}
	return lc
}

// GoalConfig says where the goal is published.
type GoalConfig struct {
	Topic    string `json:"topic"`
	FrameID  string `json:"frame_id"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (gc *GoalConfig) Validate(path string) error {
	if gc.Disabled {
		return nil
	}
	if gc.Topic == "" {
		return errors.Errorf("%s: \"topic\" is required", path)
	}
	if gc.FrameID == "" {
		return errors.Errorf("%s: \"frame_id\" is required", path)
	}
	return nil
}

// EpisodeOverrides changes individual values of the preset's episode configuration.
type EpisodeOverrides struct {
	SuccessRadius    *float64  `json:"success_radius,omitempty"`
	Deadline         *float64  `json:"deadline,omitempty"`
	YBound           *float64  `json:"y_bound,omitempty"`
	MotionTimeout    *Duration `json:"motion_timeout,omitempty"`
	StallTimeout     *Duration `json:"stall_timeout,omitempty"`
	ResetTolerance   *float64  `json:"reset_tolerance,omitempty"`
	ResetInterval    *Duration `json:"reset_interval,omitempty"`
	MaxResetAttempts *int      `json:"max_reset_attempts,omitempty"`
	SamplePeriod     *float64  `json:"sample_period,omitempty"`
}

func (o *EpisodeOverrides) apply(cfg *episode.Config) {
	setFloat := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	setFloat(&cfg.SuccessRadius, o.SuccessRadius)
	setFloat(&cfg.Deadline, o.Deadline)
	setFloat(&cfg.YBound, o.YBound)
	setFloat(&cfg.ResetTolerance, o.ResetTolerance)
	setFloat(&cfg.SamplePeriod, o.SamplePeriod)
	setDuration := func(dst *time.Duration, src *Duration) {
		if src != nil {
			*dst = time.Duration(*src)
		}
	}
	setDuration(&cfg.ResetInterval, o.ResetInterval)
	setDuration(&cfg.MotionTimeout, o.MotionTimeout)
	setDuration(&cfg.StallTimeout, o.StallTimeout)
	if o.MaxResetAttempts != nil {
		cfg.MaxResetAttempts = *o.MaxResetAttempts
	}
}

// Config is the full configuration of a benchmark run.
type Config struct {
	Preset    episode.Preset `json:"preset"`
	BridgeURL string         `json:"bridge_url"`
	ModelName string         `json:"model_name,omitempty"`
	// WorldsDir holds BARN/path_files. Placeholders are allowed.
	WorldsDir string `json:"worlds_dir"`
	// BagDir and BagName locate recorded bags. Placeholders are allowed.
	BagDir       string   `json:"bag_dir,omitempty"`
	BagName      string   `json:"bag_name,omitempty"`
	RecordIndex  string   `json:"record_index,omitempty"`
	ResultFormat string   `json:"result_format,omitempty"`
	Env          []string `json:"env,omitempty"`

	Goal      GoalConfig    `json:"goal"`
	Simulator LaunchConfig  `json:"simulator"`
	Recorder  LaunchConfig  `json:"recorder"`
	Bridge    LaunchConfig  `json:"bridge"`
	NavStack  LaunchConfig  `json:"nav_stack"`
	Planner   PlannerConfig `json:"planner"`

	Episode EpisodeOverrides `json:"episode,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if _, err := episode.PresetConfig(cfg.Preset); err != nil {
		return errors.Wrap(err, path)
	}
	if cfg.BridgeURL == "" {
		return errors.Errorf("%s: \"bridge_url\" is required", path)
	}
	if cfg.WorldsDir == "" {
		return errors.Errorf("%s: \"worlds_dir\" is required", path)
	}
	switch cfg.RecordIndex {
	case "", IndexWorld, IndexMaxSpeed:
	default:
		return errors.Errorf("%s: unknown \"record_index\" %q", path, cfg.RecordIndex)
	}
	if _, err := cfg.Format(); err != nil {
		return errors.Wrap(err, path)
	}
	if !cfg.Recorder.Disabled && (cfg.BagDir == "" || cfg.BagName == "") {
		return errors.Errorf("%s: \"bag_dir\" and \"bag_name\" are required to record", path)
	}
	if err := cfg.Goal.Validate(path + ".goal"); err != nil {
		return err
	}
	launches := []struct {
		name string
		lc   *LaunchConfig
	}{
		{"simulator", &cfg.Simulator},
		{"recorder", &cfg.Recorder},
		{"bridge", &cfg.Bridge},
		{"nav_stack", &cfg.NavStack},
		{"planner", &cfg.Planner.LaunchConfig},
	}
	for _, l := range launches {
		if err := l.lc.Validate(path + "." + l.name); err != nil {
			return err
		}
	}
	ec, err := cfg.EpisodeConfig()
	if err != nil {
		return err
	}
	return ec.Validate(path + ".episode")
}

// EpisodeConfig returns the preset's episode configuration with the overrides applied.
func (cfg *Config) EpisodeConfig() (episode.Config, error) {
	ec, err := episode.PresetConfig(cfg.Preset)
	if err != nil {
		return episode.Config{}, err
	}
	cfg.Episode.apply(&ec)
	return ec, nil
}

// Format returns the result log format.
func (cfg *Config) Format() (episode.ResultFormat, error) {
	switch cfg.ResultFormat {
	case "", "compat":
		return episode.ResultFormatCompat, nil
	case "extended":
		return episode.ResultFormatExtended, nil
	default:
		return 0, errors.Errorf("unknown result format %q", cfg.ResultFormat)
	}
}

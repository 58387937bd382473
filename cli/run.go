package cli

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/navbench/barn"
	"go.viam.com/navbench/config"
	"go.viam.com/navbench/episode"
	"go.viam.com/navbench/gazebo"
	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/report"
	"go.viam.com/navbench/rexec"
	"go.viam.com/navbench/ros"
	"go.viam.com/navbench/spatialmath"
)

const (
	bagTimestampLayout = "2006_01_02-15-04-05"
	bridgeDialAttempts = 10
	bridgeDialInterval = time.Second
)

// runSettings are the per-episode choices on top of the configuration.
type runSettings struct {
	worldIdx int
	gui      bool
	solver   int
	maxSpeed float64
}

func loadRunConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String(runFlagConfig); path != "" {
		cfg, err = config.Read(path)
	} else {
		cfg, err = config.PresetConfig(c.String(runFlagPreset))
	}
	if err != nil {
		return nil, err
	}
	if c.Bool(runFlagBag) {
		cfg.Recorder.Disabled = false
	}
	path := c.String(runFlagConfig)
	if path == "" {
		path = c.String(runFlagPreset)
	}
	if err := cfg.Validate(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// RunAction runs one episode and appends its result to the result log.
func RunAction(c *cli.Context) error {
	logger := loggerFrom(c)
	cfg, err := loadRunConfig(c)
	if err != nil {
		return err
	}
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	settings := runSettings{
		worldIdx: c.Int(runFlagWorldIdx),
		gui:      c.Bool(runFlagGUI),
		solver:   c.Int(runFlagSolver),
		maxSpeed: c.Float64(runFlagMaxSpeed),
	}

	rec, err := runEpisode(c.Context, cfg, settings, uuid.NewString(), logger)
	if err != nil {
		return err
	}
	resultLog := episode.NewResultLog(c.String(runFlagOut), format)
	if err := resultLog.Append(rec); err != nil {
		return err
	}
	printf(c.App.Writer, "%s", report.RecordsTable([]episode.Record{rec}))
	return nil
}

// BatchAction runs episodes for every world, speed and trial. A failed episode is logged and
// skipped. SIGINT or SIGTERM tears down the running episode and ends the batch.
func BatchAction(c *cli.Context) error {
	logger := loggerFrom(c)
	cfg, err := loadRunConfig(c)
	if err != nil {
		return err
	}
	format, err := cfg.Format()
	if err != nil {
		return err
	}
	first, last := c.Int(batchFlagFirst), c.Int(batchFlagLast)
	if last < first {
		return errors.Errorf("--%s %d is before --%s %d", batchFlagLast, last, batchFlagFirst, first)
	}
	speeds := c.Float64Slice(batchFlagMaxSpeeds)
	if len(speeds) == 0 {
		speeds = []float64{c.Float64(runFlagMaxSpeed)}
	}
	plan := batchPlan(first, last, speeds, c.Int(batchFlagTrials), runSettings{
		gui:    c.Bool(runFlagGUI),
		solver: c.Int(runFlagSolver),
	})

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resultLog := episode.NewResultLog(c.String(runFlagOut), format)
	records, err := runBatch(ctx, plan, resultLog, logger,
		func(ctx context.Context, settings runSettings, runID string) (episode.Record, error) {
			return runEpisode(ctx, cfg, settings, runID, logger)
		})
	if err != nil {
		return err
	}

	summary, err := report.Summarize(records)
	if err != nil {
		return err
	}
	printf(c.App.Writer, "%s", summary.String())
	return nil
}

// batchPlan lists the episodes of a batch: worlds first..last, each at every speed, each
// repeated trials times.
func batchPlan(first, last int, speeds []float64, trials int, base runSettings) []runSettings {
	var plan []runSettings
	for worldIdx := first; worldIdx <= last; worldIdx++ {
		for _, speed := range speeds {
			for trial := 0; trial < trials; trial++ {
				settings := base
				settings.worldIdx = worldIdx
				settings.maxSpeed = speed
				plan = append(plan, settings)
			}
		}
	}
	return plan
}

type episodeFunc func(ctx context.Context, settings runSettings, runID string) (episode.Record, error)

// runBatch runs the planned episodes in order and appends each result to resultLog. A failed
// episode is skipped unless it failed because ctx was canceled, which ends the batch.
func runBatch(
	ctx context.Context,
	plan []runSettings,
	resultLog *episode.ResultLog,
	logger logging.Logger,
	run episodeFunc,
) ([]episode.Record, error) {
	var records []episode.Record
	for _, settings := range plan {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		runID := uuid.NewString()
		rec, err := run(ctx, settings, runID)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				logger.Warnw("batch aborted", "run_id", runID, "world_idx", settings.worldIdx, "error", err)
				return records, context.Canceled
			}
			logger.Errorw("episode failed", "run_id", runID, "world_idx", settings.worldIdx, "max_speed", settings.maxSpeed, "error", err)
			continue
		}
		if err := resultLog.Append(rec); err != nil {
			return records, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func recordIndex(cfg *config.Config, settings runSettings) int {
	if cfg.RecordIndex == config.IndexMaxSpeed {
		return int(settings.maxSpeed)
	}
	return settings.worldIdx
}

// runEpisode launches the simulation, runs one episode and tears every process down again.
func runEpisode(
	ctx context.Context,
	cfg *config.Config,
	settings runSettings,
	runID string,
	logger logging.Logger,
) (rec episode.Record, err error) {
	logger = logger.Sublogger(runID[:8])
	ec, err := cfg.EpisodeConfig()
	if err != nil {
		return episode.Record{}, err
	}

	replacer := config.NewReplacer(ctx, map[string]string{
		config.VarWorldIdx:  strconv.Itoa(settings.worldIdx),
		config.VarGUI:       strconv.FormatBool(settings.gui),
		config.VarSolver:    strconv.Itoa(settings.solver),
		config.VarMaxSpeed:  formatFloat(settings.maxSpeed),
		config.VarBarnDist:  formatFloat(spatialmath.Distance(ec.Init.Point, ec.Goal)),
		config.VarTimestamp: time.Now().Format(bagTimestampLayout),
	}, rexec.PackagePath)

	worldsDir, err := replacer.Replace(cfg.WorldsDir)
	if err != nil {
		return episode.Record{}, err
	}
	path, err := barn.LoadPath(worldsDir, settings.worldIdx, ec.Init.Point, ec.Goal)
	if err != nil {
		return episode.Record{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	rc := episode.NewRunContext(logger)
	rc.TeardownOnSignal(func(sig os.Signal) {
		logger.Warnw("received signal; run torn down", "signal", sig)
		cancel()
	})
	defer func() {
		err = multierr.Combine(err, rc.Teardown())
	}()

	launch := func(id string, lc config.LaunchConfig) (rexec.Process, error) {
		pc, err := lc.ProcessConfig(id, replacer, cfg.Env)
		if err != nil {
			return nil, err
		}
		return rc.Launch(ctx, pc, time.Duration(lc.Settle))
	}

	simulator := cfg.Simulator
	settle := time.Duration(simulator.Settle)
	simulator.Settle = 0
	if _, err := launch("simulator", simulator); err != nil {
		return episode.Record{}, err
	}
	if !cfg.Recorder.Disabled {
		if err := prepareBagDir(cfg, replacer); err != nil {
			return episode.Record{}, err
		}
		if _, err := launch("recorder", cfg.Recorder); err != nil {
			return episode.Record{}, err
		}
	}
	if !utils.SelectContextOrWait(ctx, settle) {
		return episode.Record{}, ctx.Err()
	}
	if !cfg.Bridge.Disabled {
		if _, err := launch("rosbridge", cfg.Bridge); err != nil {
			return episode.Record{}, err
		}
	}

	bridge, err := dialBridge(ctx, cfg.BridgeURL, logger.Sublogger("rosbridge"))
	if err != nil {
		return episode.Record{}, err
	}
	defer utils.UncheckedErrorFunc(bridge.Close)

	sim, err := gazebo.NewSimulation(ctx, bridge, gazebo.Config{ModelName: cfg.ModelName, Init: ec.Init}, logger.Sublogger("gazebo"))
	if err != nil {
		return episode.Record{}, err
	}
	var goals episode.GoalPublisher
	if !cfg.Goal.Disabled {
		gp, err := gazebo.NewGoalPublisher(ctx, bridge, cfg.Goal.Topic, cfg.Goal.FrameID, sim)
		if err != nil {
			return episode.Record{}, err
		}
		goals = gp
	}

	launcher := &stackLauncher{
		launch:   launch,
		navStack: cfg.NavStack,
		planner:  cfg.Planner.ForSolver(strconv.Itoa(settings.solver)),
	}
	runner := episode.NewRunner(ec, sim, clock.New(), logger.Sublogger("episode"))
	ep, err := runner.Run(ctx, launcher, goals)
	if err != nil {
		return episode.Record{}, err
	}

	rec = episode.Evaluate(recordIndex(cfg, settings), ep, path.Length())
	rec.RunID = runID
	logger.Infow("episode scored",
		"index", rec.Index,
		"success", rec.Success,
		"collided", rec.Collided,
		"timeout", rec.Timeout,
		"crashed", rec.Crashed,
		"elapsed", rec.Elapsed,
		"metric", rec.Metric,
	)
	return rec, nil
}

func prepareBagDir(cfg *config.Config, replacer *config.Replacer) error {
	bagDir, err := replacer.Replace(cfg.BagDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(bagDir, 0o750); err != nil {
		return errors.Wrapf(err, "could not create bag directory %s", bagDir)
	}
	replacer.Set(config.VarBagDir, bagDir)
	bagName, err := replacer.Replace(cfg.BagName)
	if err != nil {
		return err
	}
	replacer.Set(config.VarBagName, bagName)
	return nil
}

// dialBridge retries while rosbridge is still coming up.
func dialBridge(ctx context.Context, url string, logger logging.Logger) (*ros.Bridge, error) {
	var lastErr error
	for attempt := 0; attempt < bridgeDialAttempts; attempt++ {
		bridge, err := ros.DialBridge(ctx, url, logger)
		if err == nil {
			return bridge, nil
		}
		lastErr = err
		logger.Debugw("rosbridge not ready", "attempt", attempt, "error", err)
		if !utils.SelectContextOrWait(ctx, bridgeDialInterval) {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// stackLauncher starts the navigation stack and the planner once the robot has been reset.
type stackLauncher struct {
	launch   func(id string, lc config.LaunchConfig) (rexec.Process, error)
	navStack config.LaunchConfig
	planner  config.LaunchConfig
}

func (l *stackLauncher) Launch(ctx context.Context) (episode.Liveness, error) {
	if !l.navStack.Disabled {
		if _, err := l.launch("nav_stack", l.navStack); err != nil {
			return nil, err
		}
	}
	if l.planner.Disabled {
		return nil, nil
	}
	planner, err := l.launch("planner", l.planner)
	if err != nil {
		return nil, err
	}
	return planner, nil
}

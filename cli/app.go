// Package cli contains the navbench command line application.
package cli

import (
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"go.viam.com/navbench/config"
	"go.viam.com/navbench/inference"
	"go.viam.com/navbench/logging"
)

const (
	// Flags.
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	runFlagConfig   = "config"
	runFlagPreset   = "preset"
	runFlagWorldIdx = "world-idx"
	runFlagGUI      = "gui"
	runFlagOut      = "out"
	runFlagSolver   = "solver"
	runFlagMaxSpeed = "max-speed"
	runFlagBag      = "bag"

	batchFlagFirst     = "first"
	batchFlagLast      = "last"
	batchFlagMaxSpeeds = "max-speeds"
	batchFlagTrials    = "trials"

	inferFlagModels      = "models"
	inferFlagBridge      = "bridge"
	inferFlagSolverTopic = "solver-topic"
	inferFlagTopic       = "topic"
	inferFlagRate        = "rate"

	summarizeFlagByIndex = "by-index"
	summarizeFlagRecords = "records"

	logFileMaxSizeMB  = 100
	logFileMaxBackups = 5
)

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    runFlagConfig,
			Aliases: []string{"c"},
			Usage:   "load run configuration from `FILE`",
		},
		&cli.StringFlag{
			Name:  runFlagPreset,
			Value: "barn",
			Usage: "preset to use when no configuration file is given (barn or speed)",
		},
		&cli.BoolFlag{
			Name:  runFlagGUI,
			Usage: "show the gazebo client",
		},
		&cli.StringFlag{
			Name:  runFlagOut,
			Value: "out.txt",
			Usage: "append results to `FILE`",
		},
		&cli.IntFlag{
			Name:  runFlagSolver,
			Value: 0,
			Usage: "planner solver; selects the planner launch file",
		},
		&cli.Float64Flag{
			Name:  runFlagMaxSpeed,
			Value: 1.0,
			Usage: "maximum velocity passed to the planner",
		},
		&cli.BoolFlag{
			Name:  runFlagBag,
			Usage: "record a bag of the run",
		},
	}
}

var app = &cli.App{
	Name:            "navbench",
	Usage:           "benchmark robot navigation stacks in simulation",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also write logs to `FILE`",
		},
	},
	Before: setupLogging,
	After:  closeLogging,
	Commands: []*cli.Command{
		{
			Name:  "run",
			Usage: "run a single episode and append its result",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:  runFlagWorldIdx,
					Value: 0,
					Usage: "index of the world to run",
				},
			}, runFlags()...),
			Action: RunAction,
		},
		{
			Name:  "batch",
			Usage: "run episodes over a range of worlds and speeds",
			Flags: append([]cli.Flag{
				&cli.IntFlag{
					Name:  batchFlagFirst,
					Value: 0,
					Usage: "first world index",
				},
				&cli.IntFlag{
					Name:  batchFlagLast,
					Value: 0,
					Usage: "last world index, inclusive",
				},
				&cli.Float64SliceFlag{
					Name:  batchFlagMaxSpeeds,
					Usage: "maximum velocities to sweep; defaults to --max-speed",
				},
				&cli.IntFlag{
					Name:  batchFlagTrials,
					Value: 1,
					Usage: "episodes per world and speed",
				},
			}, runFlags()...),
			Action: BatchAction,
		},
		{
			Name:  "infer",
			Usage: "predict corridor exit times from the planner's solver states",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     inferFlagModels,
					Usage:    "directory of regression models",
					Required: true,
				},
				&cli.StringFlag{
					Name:  inferFlagBridge,
					Value: config.DefaultBridgeURL,
					Usage: "rosbridge websocket URL",
				},
				&cli.StringFlag{
					Name:  inferFlagSolverTopic,
					Value: inference.DefaultSolverStateTopic,
					Usage: "topic of the solver states",
				},
				&cli.StringFlag{
					Name:  inferFlagTopic,
					Value: inference.DefaultPredictionTopic,
					Usage: "topic to publish predictions on",
				},
				&cli.Float64Flag{
					Name:  inferFlagRate,
					Value: inference.DefaultRateHz,
					Usage: "prediction rate in Hz",
				},
			},
			Action: InferAction,
		},
		{
			Name:      "features",
			Usage:     "extract corridor features from a recorded bag",
			ArgsUsage: "<bag>",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  inferFlagSolverTopic,
					Value: inference.DefaultSolverStateTopic,
					Usage: "topic of the solver states",
				},
				&cli.StringFlag{
					Name:  inferFlagModels,
					Usage: "directory of regression models to also predict with",
				},
			},
			Action: FeaturesAction,
		},
		{
			Name:      "summarize",
			Usage:     "summarize a result log",
			ArgsUsage: "<result log>",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  summarizeFlagByIndex,
					Usage: "also summarize every index separately",
				},
				&cli.BoolFlag{
					Name:  summarizeFlagRecords,
					Usage: "also list every record",
				},
			},
			Action: SummarizeAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

const metadataLogger = "logger"

type appLogger struct {
	logging.Logger
	file *logging.FileAppender
}

func setupLogging(c *cli.Context) error {
	logger := logging.NewLogger("navbench")
	if c.Bool(generalFlagDebug) {
		logger.SetLevel(logging.DEBUG)
	}
	al := &appLogger{Logger: logger}
	if path := c.String(generalFlagLogFile); path != "" {
		al.file = logging.NewFileAppender(path, logFileMaxSizeMB, logFileMaxBackups)
		logger.AddAppender(al.file)
	}
	if c.App.Metadata == nil {
		c.App.Metadata = map[string]interface{}{}
	}
	c.App.Metadata[metadataLogger] = al
	logging.ReplaceGlobal(logger)
	return nil
}

func closeLogging(c *cli.Context) error {
	al, ok := c.App.Metadata[metadataLogger].(*appLogger)
	if !ok {
		return nil
	}
	//nolint:errcheck
	al.Sync()
	if al.file != nil {
		return al.file.Close()
	}
	return nil
}

func loggerFrom(c *cli.Context) logging.Logger {
	if al, ok := c.App.Metadata[metadataLogger].(*appLogger); ok {
		return al.Logger
	}
	return logging.Global()
}

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/navbench/corridor"
	"go.viam.com/navbench/inference"
	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/ros"
)

// FeaturesAction prints the corridor features of every solver state recorded in a bag.
func FeaturesAction(c *cli.Context) error {
	logger := loggerFrom(c)
	if c.Args().Len() != 1 {
		return errors.New("expected exactly one bag file")
	}
	msgs, err := ros.SolverStatesFromBag(c.Args().First(), c.String(inferFlagSolverTopic))
	if err != nil {
		return err
	}

	var predictor inference.Predictor
	if dir := c.String(inferFlagModels); dir != "" {
		models, err := inference.LoadModelDir(dir)
		if err != nil {
			return err
		}
		predictor = models
	}

	out, skipped := featuresTable(msgs, predictor, logger)
	printf(c.App.Writer, "%s", out)
	if skipped > 0 {
		printf(c.App.Writer, "skipped %d solver states without features", skipped)
	}
	return nil
}

// featuresTable renders one row per solver state. States without features are logged and
// counted. predictor may be nil.
func featuresTable(msgs []ros.BagMessage[ros.SolverStateArray], predictor inference.Predictor, logger logging.Logger) (string, int) {
	t := table.NewWriter()
	header := table.Row{"Time", "State", "Polygons", "Time to intersect"}
	if predictor != nil {
		header = append(header, "Prediction")
	}
	t.AppendHeader(header)

	skipped := 0
	for _, msg := range msgs {
		for i, state := range msg.Data.States {
			features, err := corridor.ExtractFeatures([]ros.SolverState{state})
			if err != nil {
				logger.Debugw("no features", "time", msg.Stamp.Seconds(), "state", i, "error", err)
				skipped++
				continue
			}
			f := features[0]
			row := table.Row{fmt.Sprintf("%.3f", msg.Stamp.Seconds()), i, f.PolygonCount, fmt.Sprintf("%.4f", f.TimeToIntersect)}
			if predictor != nil {
				if pred, err := predictor.Predict(f); err != nil {
					row = append(row, "-")
				} else {
					row = append(row, fmt.Sprintf("%.4f", pred))
				}
			}
			t.AppendRow(row)
		}
	}
	return t.Render(), skipped
}

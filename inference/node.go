package inference

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"go.viam.com/navbench/corridor"
	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/ros"
)

// Default topics and rate of the inference node.
const (
	DefaultSolverStateTopic = "/candidateRecoveryPoints"
	DefaultPredictionTopic  = "/inference"
	DefaultRateHz           = 10
	PredictionsLabel        = "predictions"
)

// Predictor predicts a value for a corridor feature.
type Predictor interface {
	Predict(f corridor.Feature) (float64, error)
}

// Node consumes the most recent solver states at a fixed rate and publishes predictions.
type Node struct {
	mailbox   Mailbox[[]ros.SolverState]
	models    Predictor
	publisher ros.Publisher
	topic     string
	clk       clock.Clock
	period    time.Duration
	logger    logging.Logger
}

// NewNode returns a node publishing on topic at rateHz.
func NewNode(
	models Predictor,
	publisher ros.Publisher,
	topic string,
	rateHz float64,
	clk clock.Clock,
	logger logging.Logger,
) *Node {
	if rateHz <= 0 {
		rateHz = DefaultRateHz
	}
	return &Node{
		models:    models,
		publisher: publisher,
		topic:     topic,
		clk:       clk,
		period:    time.Duration(float64(time.Second) / rateHz),
		logger:    logger,
	}
}

// OnSolverStates stores a received message for the next tick.
func (n *Node) OnSolverStates(msg ros.SolverStateArray) {
	n.logger.Debugw("received solver states", "count", len(msg.States))
	n.mailbox.Put(msg.States)
}

// Run ticks until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	ticker := n.clk.Ticker(n.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if _, err := n.Tick(ctx); err != nil {
			n.logger.Warnw("failed to publish predictions", "error", err)
		}
	}
}

// Tick consumes the pending solver states, if any, and publishes their predictions. It
// reports whether there was anything to consume. States that cannot be reduced to features
// are logged and dropped.
func (n *Node) Tick(ctx context.Context) (bool, error) {
	states, ok := n.mailbox.Take()
	if !ok {
		return false, nil
	}

	features, err := corridor.ExtractFeatures(states)
	if err != nil {
		n.logger.Warnw("dropping solver states", "error", err)
		return true, nil
	}
	n.logger.Debugw("extracted features", "features", features)

	start := n.clk.Now()
	predictions := make([]float64, 0, len(features))
	for _, f := range features {
		pred, err := n.models.Predict(f)
		if err != nil {
			n.logger.Warnw("skipping feature", "feature", f, "error", err)
			continue
		}
		predictions = append(predictions, pred)
	}
	n.logger.Debugw("inference done", "duration", n.clk.Since(start))

	return true, n.publisher.Publish(ctx, n.topic, PredictionsMessage(predictions))
}

// PredictionsMessage packs predictions into a one dimensional array, dropping NaNs.
func PredictionsMessage(predictions []float64) ros.Float32MultiArray {
	data := make([]float32, 0, len(predictions))
	for _, p := range predictions {
		if math.IsNaN(p) {
			continue
		}
		data = append(data, float32(p))
	}
	return ros.Float32MultiArray{
		Layout: ros.MultiArrayLayout{
			Dim: []ros.MultiArrayDimension{
				{Label: PredictionsLabel, Size: uint32(len(data)), Stride: 1},
			},
		},
		Data: data,
	}
}

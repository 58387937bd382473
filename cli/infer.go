package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.viam.com/utils"
	"golang.org/x/sync/errgroup"

	"go.viam.com/navbench/inference"
	"go.viam.com/navbench/ros"
)

// InferAction runs the inference node until interrupted or until rosbridge goes away.
func InferAction(c *cli.Context) error {
	logger := loggerFrom(c)
	models, err := inference.LoadModelDir(c.String(inferFlagModels))
	if err != nil {
		return err
	}
	logger.Infow("loaded models", "polygon_counts", models.PolygonCounts())

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	bridge, err := ros.DialBridge(ctx, c.String(inferFlagBridge), logger.Sublogger("rosbridge"))
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(bridge.Close)

	topic := c.String(inferFlagTopic)
	if err := bridge.Advertise(ctx, topic, ros.Float32MultiArrayType, true); err != nil {
		return err
	}
	node := inference.NewNode(models, bridge, topic, c.Float64(inferFlagRate), clock.New(), logger.Sublogger("inference"))
	err = ros.SubscribeTyped(ctx, bridge, c.String(inferFlagSolverTopic), ros.SolverStateArrayType, node.OnSolverStates)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return node.Run(gctx)
	})
	g.Go(func() error {
		return watchBridge(gctx, bridge)
	})
	return g.Wait()
}

// watchBridge returns an error once the bridge connection is lost.
func watchBridge(ctx context.Context, bridge *ros.Bridge) error {
	select {
	case <-ctx.Done():
		return nil
	case <-bridge.Done():
		if err := bridge.Err(); err != nil {
			return errors.Wrap(err, "lost rosbridge connection")
		}
		return ros.ErrBridgeClosed
	}
}

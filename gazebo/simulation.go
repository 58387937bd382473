// Package gazebo controls a Gazebo simulation through rosbridge: it teleports the robot,
// reads its pose, watches the collision topic and follows the simulation clock.
package gazebo

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/ros"
	"go.viam.com/navbench/spatialmath"
)

// Topics and services of the Gazebo ROS API and the BARN collision monitor.
const (
	SetModelStateService = "/gazebo/set_model_state"
	GetModelStateService = "/gazebo/get_model_state"
	CollisionTopic       = "/collision"
	ClockTopic           = "/clock"

	DefaultModelName      = "jackal"
	DefaultReferenceFrame = "world"
)

// Bridge is the subset of the rosbridge client used to control the simulation.
type Bridge interface {
	ros.Publisher
	Advertise(ctx context.Context, topic, msgType string, latch bool) error
	Subscribe(ctx context.Context, topic, msgType string, handler func(json.RawMessage)) error
	CallService(ctx context.Context, service string, args, result interface{}) error
}

// Config describes the simulated robot.
type Config struct {
	ModelName      string
	ReferenceFrame string
	Init           spatialmath.Pose2D
}

// Simulation implements the episode simulator surface over rosbridge.
type Simulation struct {
	bridge Bridge
	cfg    Config
	logger logging.Logger

	mu             sync.Mutex
	collisionCount int
	simTime        float64
	clockStarted   chan struct{}
	clockOnce      sync.Once
}

// NewSimulation subscribes to the collision and clock topics.
func NewSimulation(ctx context.Context, bridge Bridge, cfg Config, logger logging.Logger) (*Simulation, error) {
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModelName
	}
	if cfg.ReferenceFrame == "" {
		cfg.ReferenceFrame = DefaultReferenceFrame
	}
	sim := &Simulation{
		bridge:       bridge,
		cfg:          cfg,
		logger:       logger,
		clockStarted: make(chan struct{}),
	}
	if err := bridge.Subscribe(ctx, CollisionTopic, ros.BoolType, sim.onCollision); err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to collisions")
	}
	if err := bridge.Subscribe(ctx, ClockTopic, ros.ClockType, sim.onClock); err != nil {
		return nil, errors.Wrap(err, "failed to subscribe to the clock")
	}
	return sim, nil
}

func (s *Simulation) onCollision(raw json.RawMessage) {
	var msg ros.Bool
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warnw("bad collision message", "error", err)
		return
	}
	if !msg.Data {
		return
	}
	s.mu.Lock()
	s.collisionCount++
	s.mu.Unlock()
}

func (s *Simulation) onClock(raw json.RawMessage) {
	var msg ros.Clock
	if err := json.Unmarshal(raw, &msg); err != nil {
		s.logger.Warnw("bad clock message", "error", err)
		return
	}
	s.mu.Lock()
	s.simTime = msg.Clock.Seconds()
	s.mu.Unlock()
	s.clockOnce.Do(func() { close(s.clockStarted) })
}

// Reset teleports the robot to its initial pose and stops it.
func (s *Simulation) Reset(ctx context.Context) error {
	req := struct {
		ModelState ros.ModelState `json:"model_state"`
	}{
		ModelState: ros.ModelState{
			ModelName:      s.cfg.ModelName,
			Pose:           ros.PoseFrom2D(s.cfg.Init),
			ReferenceFrame: s.cfg.ReferenceFrame,
		},
	}
	var resp struct {
		Success       bool   `json:"success"`
		StatusMessage string `json:"status_message"`
	}
	if err := s.bridge.CallService(ctx, SetModelStateService, req, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return errors.Errorf("failed to reset %s: %s", s.cfg.ModelName, resp.StatusMessage)
	}
	return nil
}

// Pose returns the robot's pose in the reference frame.
func (s *Simulation) Pose(ctx context.Context) (spatialmath.Pose2D, error) {
	req := map[string]string{
		"model_name":           s.cfg.ModelName,
		"relative_entity_name": s.cfg.ReferenceFrame,
	}
	var resp struct {
		Pose          ros.Pose `json:"pose"`
		Success       bool     `json:"success"`
		StatusMessage string   `json:"status_message"`
	}
	if err := s.bridge.CallService(ctx, GetModelStateService, req, &resp); err != nil {
		return spatialmath.Pose2D{}, err
	}
	if !resp.Success {
		return spatialmath.Pose2D{}, errors.Errorf("failed to get state of %s: %s", s.cfg.ModelName, resp.StatusMessage)
	}
	return resp.Pose.Pose2D(), nil
}

// HardCollision reports whether any collision was published since the previous call.
func (s *Simulation) HardCollision(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	collided := s.collisionCount > 0
	s.collisionCount = 0
	return collided, nil
}

// Time returns the latest simulation time. It blocks until the first clock message arrived.
func (s *Simulation) Time(ctx context.Context) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.clockStarted:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime, nil
}

// GoalPublisher publishes latched goals for the navigation stack.
type GoalPublisher struct {
	publisher ros.Publisher
	topic     string
	frameID   string
	sim       *Simulation
}

// NewGoalPublisher advertises a latched PoseStamped topic. Goals are stamped with the
// simulation time of sim.
func NewGoalPublisher(ctx context.Context, bridge Bridge, topic, frameID string, sim *Simulation) (*GoalPublisher, error) {
	if err := bridge.Advertise(ctx, topic, ros.PoseStampedType, true); err != nil {
		return nil, errors.Wrapf(err, "failed to advertise %s", topic)
	}
	return &GoalPublisher{publisher: bridge, topic: topic, frameID: frameID, sim: sim}, nil
}

// PublishGoal publishes goal in the publisher's frame.
func (p *GoalPublisher) PublishGoal(ctx context.Context, goal spatialmath.Pose2D) error {
	msg := ros.PoseStamped{
		Header: ros.Header{FrameID: p.frameID},
		Pose:   ros.PoseFrom2D(goal),
	}
	if p.sim != nil {
		now, err := p.sim.Time(ctx)
		if err != nil {
			return err
		}
		msg.Header.Stamp = ros.TimeFromSeconds(now)
	}
	return p.publisher.Publish(ctx, p.topic, msg)
}

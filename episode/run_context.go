package episode

import (
	"context"
	"os"
	"sync"
	"time"

	"go.viam.com/utils"

	"go.viam.com/navbench/logging"
	"go.viam.com/navbench/rexec"
)

// RunContext owns the external processes of one episode. Teardown stops them in reverse launch
// order and is safe to call any number of times, including from a signal handler.
type RunContext struct {
	group  *rexec.ProcessGroup
	logger logging.Logger

	mu             sync.Mutex
	releaseSignals func()

	teardownOnce sync.Once
	teardownErr  error
}

// NewRunContext returns a run context without processes.
func NewRunContext(logger logging.Logger) *RunContext {
	return &RunContext{
		group:  rexec.NewProcessGroup(logger.Sublogger("processes")),
		logger: logger,
	}
}

// Launch starts a process and then waits settle for it to come up.
func (rc *RunContext) Launch(ctx context.Context, config rexec.ProcessConfig, settle time.Duration) (rexec.Process, error) {
	rc.logger.Infow("launching", "id", config.ID, "cmd", config.Name, "args", config.Args)
	proc, err := rc.group.AddConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	if !utils.SelectContextOrWait(ctx, settle) {
		return nil, ctx.Err()
	}
	return proc, nil
}

// Adopt takes ownership of an already constructed process and starts it.
func (rc *RunContext) Adopt(ctx context.Context, proc rexec.Process) error {
	return rc.group.AddProcess(ctx, proc, true)
}

// Process returns an owned process by ID.
func (rc *RunContext) Process(id string) (rexec.Process, bool) {
	return rc.group.ProcessByID(id)
}

// TeardownOnSignal tears the run down on SIGINT or SIGTERM and then calls onSignal.
func (rc *RunContext) TeardownOnSignal(onSignal func(os.Signal)) {
	release := rc.group.StopOnSignal(onSignal)
	rc.mu.Lock()
	rc.releaseSignals = release
	rc.mu.Unlock()
}

// Teardown stops every owned process and waits for them to exit. Only the first call does any
// work.
func (rc *RunContext) Teardown() error {
	rc.teardownOnce.Do(func() {
		rc.mu.Lock()
		release := rc.releaseSignals
		rc.mu.Unlock()
		rc.teardownErr = rc.group.Stop()
		if release != nil {
			release()
		}
		if rc.teardownErr != nil {
			rc.logger.Errorw("teardown failed", "error", rc.teardownErr)
		} else {
			rc.logger.Debug("teardown complete")
		}
	})
	return rc.teardownErr
}

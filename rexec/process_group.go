package rexec

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"

	"go.viam.com/navbench/logging"
)

// ErrGroupStopped is returned when adding to a process group that was already stopped.
var ErrGroupStopped = errors.New("process group already stopped")

// ProcessGroup owns a set of processes. Processes are stopped in the reverse order they were
// added and the group can only be stopped once.
type ProcessGroup struct {
	mu        sync.Mutex
	processes []Process
	stopped   bool

	stopOnce sync.Once
	stopErr  error

	signalOnce              sync.Once
	activeBackgroundWorkers sync.WaitGroup
	logger                  logging.Logger
}

// NewProcessGroup returns an empty process group.
func NewProcessGroup(logger logging.Logger) *ProcessGroup {
	return &ProcessGroup{logger: logger}
}

// AddProcess adds proc to the group and, if start is set, starts it. A process that fails to
// start is not added.
func (pg *ProcessGroup) AddProcess(ctx context.Context, proc Process, start bool) error {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	if pg.stopped {
		return errors.Wrapf(ErrGroupStopped, "cannot add %q", proc.ID())
	}
	if _, ok := pg.processByID(proc.ID()); ok {
		return errors.Errorf("process %q already in group", proc.ID())
	}
	if start {
		if err := proc.Start(ctx); err != nil {
			return err
		}
	}
	pg.processes = append(pg.processes, proc)
	return nil
}

// AddConfig creates a managed process from config, starts it and adds it to the group.
func (pg *ProcessGroup) AddConfig(ctx context.Context, config ProcessConfig) (Process, error) {
	if err := config.Validate("process"); err != nil {
		return nil, err
	}
	proc := NewManagedProcess(config, pg.logger)
	if err := pg.AddProcess(ctx, proc, true); err != nil {
		return nil, err
	}
	return proc, nil
}

// ProcessIDs returns the IDs of all processes in the order they were added.
func (pg *ProcessGroup) ProcessIDs() []string {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	ids := make([]string, 0, len(pg.processes))
	for _, proc := range pg.processes {
		ids = append(ids, proc.ID())
	}
	return ids
}

// ProcessByID returns the process with the given ID, if any.
func (pg *ProcessGroup) ProcessByID(id string) (Process, bool) {
	pg.mu.Lock()
	defer pg.mu.Unlock()
	return pg.processByID(id)
}

func (pg *ProcessGroup) processByID(id string) (Process, bool) {
	for _, proc := range pg.processes {
		if proc.ID() == id {
			return proc, true
		}
	}
	return nil, false
}

// Stop stops every process in reverse order. Only the first call does any work, later calls
// return the same result.
func (pg *ProcessGroup) Stop() error {
	pg.stopOnce.Do(func() {
		pg.mu.Lock()
		pg.stopped = true
		processes := pg.processes
		pg.mu.Unlock()

		for i := len(processes) - 1; i >= 0; i-- {
			proc := processes[i]
			pg.logger.Debugw("stopping process", "id", proc.ID())
			if err := proc.Stop(); err != nil {
				pg.stopErr = multierr.Combine(pg.stopErr, errors.Wrapf(err, "failed to stop %q", proc.ID()))
			}
		}
	})
	return pg.stopErr
}

// StopOnSignal stops the group when the process receives SIGINT or SIGTERM, then calls
// onSignal if non-nil. The returned function releases the signal handler. Only the first call
// registers a handler.
func (pg *ProcessGroup) StopOnSignal(onSignal func(os.Signal)) func() {
	release := func() {}
	pg.signalOnce.Do(func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		cancelCtx, cancel := context.WithCancel(context.Background())
		pg.stopOnSignals(cancelCtx, sigs, onSignal)
		release = func() {
			signal.Stop(sigs)
			cancel()
		}
	})
	return release
}

func (pg *ProcessGroup) stopOnSignals(ctx context.Context, sigs <-chan os.Signal, onSignal func(os.Signal)) {
	pg.activeBackgroundWorkers.Add(1)
	utils.PanicCapturingGo(func() {
		defer pg.activeBackgroundWorkers.Done()
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			pg.logger.Warnw("received signal, stopping processes", "signal", sig.String())
			if err := pg.Stop(); err != nil {
				pg.logger.Errorw("error stopping processes", "error", err)
			}
			if onSignal != nil {
				onSignal(sig)
			}
		}
	})
}

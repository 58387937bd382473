package rexec

import (
	"context"
	"sync"
	"syscall"

	"github.com/pkg/errors"
	"go.viam.com/utils/pexec"

	"go.viam.com/navbench/logging"
)

// ManagedProcess is a Process run by pexec. It is never restarted: an exit that Stop did not
// cause is logged and the process stays dead. pexec runs it in its own process group, so
// stopping it also stops everything a roslaunch tree spawned.
type ManagedProcess struct {
	config ProcessConfig
	proc   pexec.ManagedProcess

	mu       sync.Mutex
	started  bool
	stopped  bool
	exitOnce sync.Once
	exited   chan struct{}
	exitCode int

	logger logging.Logger
}

// NewManagedProcess returns a process that is not yet started.
func NewManagedProcess(config ProcessConfig, logger logging.Logger) *ManagedProcess {
	if config.StopSignal == 0 {
		config.StopSignal = syscall.SIGINT
	}
	if config.StopTimeout == 0 {
		config.StopTimeout = defaultStopTimeout
	}
	p := &ManagedProcess{
		config: config,
		exited: make(chan struct{}),
		logger: logger,
	}
	p.proc = pexec.NewManagedProcess(pexec.ProcessConfig{
		ID:               config.ID,
		Name:             config.Name,
		Args:             config.Args,
		CWD:              config.CWD,
		Environment:      config.environment(),
		Log:              config.Log,
		StopSignal:       config.StopSignal,
		StopTimeout:      config.StopTimeout,
		OnUnexpectedExit: p.onUnexpectedExit,
	}, logger)
	return p
}

func (p *ManagedProcess) onUnexpectedExit(_ context.Context, exitCode int) bool {
	p.logger.Warnw("process exited unexpectedly", "id", p.config.ID, "code", exitCode)
	p.exitOnce.Do(func() {
		p.mu.Lock()
		p.exitCode = exitCode
		p.mu.Unlock()
		close(p.exited)
	})
	return false
}

// ID returns the configured identifier.
func (p *ManagedProcess) ID() string {
	return p.config.ID
}

// Start launches the process.
func (p *ManagedProcess) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.Errorf("process %q already started", p.config.ID)
	}
	if p.stopped {
		return errors.Errorf("process %q already stopped", p.config.ID)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.proc.Start(ctx); err != nil {
		return errors.Wrapf(err, "failed to start %s", p.config.Name)
	}
	p.started = true
	pid, _ := p.proc.UnixPid()
	p.logger.Debugw("process started", "id", p.config.ID, "pid", pid, "args", p.config.Args)
	return nil
}

// Alive reports whether the process is running.
func (p *ManagedProcess) Alive() bool {
	p.mu.Lock()
	running := p.started && !p.stopped
	p.mu.Unlock()
	if !running {
		return false
	}
	select {
	case <-p.exited:
		return false
	default:
	}
	return p.proc.Status() == nil
}

// Exited is closed once the process has exited on its own.
func (p *ManagedProcess) Exited() <-chan struct{} {
	return p.exited
}

// ExitCode returns the exit code of a process that exited on its own.
func (p *ManagedProcess) ExitCode() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode
}

// Stop sends the stop signal, escalates to killing the process group after the stop timeout
// and waits for the process to exit. Stopping a process that was never started, already
// stopped or already exited is a no-op.
func (p *ManagedProcess) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started := p.started
	p.mu.Unlock()
	if !started {
		return nil
	}

	err := p.proc.Stop()
	var gone *pexec.ProcessNotExistsError
	if errors.As(err, &gone) {
		return nil
	}
	return errors.Wrapf(err, "failed to stop %q", p.config.ID)
}

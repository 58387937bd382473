// Package rexec manages the external processes of a benchmark run: the simulator, the
// navigation stack, the planner and the bag recorder.
package rexec

import (
	"bytes"
	"context"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils/pexec"

	"go.viam.com/navbench/logging"
)

// defaultStopTimeout is how long a process gets to exit after its stop signal before its
// process group is killed.
const defaultStopTimeout = 10 * time.Second

// ProcessConfig describes how to start a process.
type ProcessConfig struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Args []string `json:"args"`
	CWD  string   `json:"cwd"`
	// Env holds KEY=VALUE pairs added to the environment of the current process.
	Env []string `json:"env"`
	Log bool     `json:"log"`

	StopSignal  syscall.Signal `json:"-"`
	StopTimeout time.Duration  `json:"-"`
}

// Validate ensures all parts of the config are valid.
func (config *ProcessConfig) Validate(path string) error {
	if config.ID == "" {
		return errors.Errorf("%s: \"id\" is required", path)
	}
	if config.Name == "" {
		return errors.Errorf("%s: \"name\" is required", path)
	}
	for _, kv := range config.Env {
		if !strings.Contains(kv, "=") {
			return errors.Errorf("%s: env entry %q is not of the form KEY=VALUE", path, kv)
		}
	}
	return nil
}

// environment converts Env to the map pexec expects. Later entries win.
func (config *ProcessConfig) environment() map[string]string {
	if len(config.Env) == 0 {
		return nil
	}
	env := make(map[string]string, len(config.Env))
	for _, kv := range config.Env {
		k, v, _ := strings.Cut(kv, "=")
		env[k] = v
	}
	return env
}

// Process is a long running external process.
type Process interface {
	ID() string
	// Start launches the process. The context only bounds the start itself.
	Start(ctx context.Context) error
	// Alive reports whether the process has been started and has not exited.
	Alive() bool
	// Stop signals the process and waits for it to fully exit.
	Stop() error
}

// PackagePath resolves the directory of a ROS package with `rospack find`.
func PackagePath(ctx context.Context, pkg string) (string, error) {
	var out bytes.Buffer
	proc := pexec.NewManagedProcess(pexec.ProcessConfig{
		ID:        "rospack",
		Name:      "rospack",
		Args:      []string{"find", pkg},
		OneShot:   true,
		LogWriter: &out,
	}, logging.Global())
	if err := proc.Start(ctx); err != nil {
		return "", errors.Wrapf(err, "failed to find ROS package %q", pkg)
	}
	// stderr is mixed in; the directory is the last line rospack prints
	var path string
	for _, line := range strings.Split(out.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			path = line
		}
	}
	if path == "" {
		return "", errors.Errorf("ROS package %q not found", pkg)
	}
	return path, nil
}

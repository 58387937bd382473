//go:build unix

package rexec

import (
	"context"
	"strings"
	"syscall"
	"testing"
	"time"

	"go.viam.com/test"

	"go.viam.com/navbench/logging"
)

func TestProcessConfigValidate(t *testing.T) {
	config := ProcessConfig{}
	err := config.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"id" is required`)

	config.ID = "planner"
	err = config.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, `"name" is required`)

	config.Name = "roslaunch"
	config.Env = []string{"JACKAL_LASER"}
	err = config.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "KEY=VALUE")

	config.Env = []string{"JACKAL_LASER=1"}
	test.That(t, config.Validate("path"), test.ShouldBeNil)
}

func TestManagedProcessStop(t *testing.T) {
	logger := logging.NewTestLogger(t)
	proc := NewManagedProcess(ProcessConfig{ID: "sleeper", Name: "sleep", Args: []string{"30"}, StopSignal: syscall.SIGTERM}, logger)
	test.That(t, proc.Alive(), test.ShouldBeFalse)

	test.That(t, proc.Start(context.Background()), test.ShouldBeNil)
	test.That(t, proc.Alive(), test.ShouldBeTrue)
	err := proc.Start(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "already started")

	test.That(t, proc.Stop(), test.ShouldBeNil)
	test.That(t, proc.Alive(), test.ShouldBeFalse)
	test.That(t, proc.Stop(), test.ShouldBeNil)
}

func TestManagedProcessKillAfterTimeout(t *testing.T) {
	logger := logging.NewTestLogger(t)
	proc := NewManagedProcess(ProcessConfig{
		ID:          "stubborn",
		Name:        "sh",
		Args:        []string{"-c", "trap '' INT; sleep 30"},
		StopTimeout: 200 * time.Millisecond,
	}, logger)
	test.That(t, proc.Start(context.Background()), test.ShouldBeNil)
	// give the shell time to install its trap
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	test.That(t, proc.Stop(), test.ShouldBeNil)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 190*time.Millisecond)
	test.That(t, proc.Alive(), test.ShouldBeFalse)
}

func TestManagedProcessExit(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	proc := NewManagedProcess(ProcessConfig{
		ID:   "echo",
		Name: "sh",
		Args: []string{"-c", "echo hello; echo world 1>&2"},
		Log:  true,
	}, logger)
	test.That(t, proc.Start(context.Background()), test.ShouldBeNil)

	select {
	case <-proc.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process to exit")
	}
	test.That(t, proc.Alive(), test.ShouldBeFalse)
	test.That(t, proc.ExitCode(), test.ShouldEqual, 0)
	test.That(t, logs.FilterMessageSnippet("hello").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessageSnippet("world").Len(), test.ShouldEqual, 1)
	test.That(t, logs.FilterMessageSnippet("exited unexpectedly").Len(), test.ShouldEqual, 1)
	test.That(t, proc.Stop(), test.ShouldBeNil)
}

func TestManagedProcessEnvAndExitCode(t *testing.T) {
	logger, logs := logging.NewObservedTestLogger(t)
	proc := NewManagedProcess(ProcessConfig{
		ID:   "laser",
		Name: "sh",
		Args: []string{"-c", "echo laser=$JACKAL_LASER_MODEL; exit 3"},
		Env:  []string{"JACKAL_LASER_MODEL=lms1xx", "JACKAL_LASER_MODEL=ust10"},
		Log:  true,
	}, logger)
	test.That(t, proc.Start(context.Background()), test.ShouldBeNil)

	select {
	case <-proc.Exited():
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for process to exit")
	}
	test.That(t, proc.ExitCode(), test.ShouldEqual, 3)
	test.That(t, logs.FilterMessageSnippet("laser=ust10").Len(), test.ShouldEqual, 1)
	test.That(t, proc.Stop(), test.ShouldBeNil)
}

func TestPackagePathUnknownPackage(t *testing.T) {
	_, err := PackagePath(context.Background(), "navbench_no_such_package")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestManagedProcessStartFailure(t *testing.T) {
	proc := NewManagedProcess(ProcessConfig{ID: "missing", Name: "/nonexistent/navbench-binary"}, logging.NewTestLogger(t))
	err := proc.Start(context.Background())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, proc.Alive(), test.ShouldBeFalse)
	test.That(t, proc.Stop(), test.ShouldBeNil)
}

func TestProcessGroupManagedProcesses(t *testing.T) {
	pg := NewProcessGroup(logging.NewTestLogger(t))
	ctx := context.Background()
	first, err := pg.AddConfig(ctx, ProcessConfig{ID: "first", Name: "sleep", Args: []string{"30"}, StopSignal: syscall.SIGTERM})
	test.That(t, err, test.ShouldBeNil)
	second, err := pg.AddConfig(ctx, ProcessConfig{ID: "second", Name: "sleep", Args: []string{"30"}, Env: []string{"JACKAL_LASER=1"}, StopSignal: syscall.SIGTERM})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, strings.Join(pg.ProcessIDs(), ","), test.ShouldEqual, "first,second")

	test.That(t, pg.Stop(), test.ShouldBeNil)
	test.That(t, first.Alive(), test.ShouldBeFalse)
	test.That(t, second.Alive(), test.ShouldBeFalse)
}

package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/upcxx-project/nobs/internal/common"
)

// ProcessResult is what a subprocess launch gives back to the caller;
// modeled on nocc's Session cxxStdout/cxxStderr/cxxExitCode/cxxDuration
// fields (internal/server/cxx-launcher.go), flattened into a value type
// since nobs has no client/server session to hang them off of.
type ProcessResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// RunProcess launches name(args...) in dir, throttled by the engine's
// subprocess semaphore the way nocc's CxxLauncher throttles concurrent
// compiler invocations via serverCxxThrottle. This is suspension point
// (ii) of spec §5 ("awaiting a subprocess exit"): Go's runtime parks the
// goroutine on Sem.Acquire and on cmd.Run(), freeing the scheduler to
// make progress on other rule tasks.
func (c *Context) RunProcess(name string, args []string, dir string) (ProcessResult, error) {
	if err := c.eng.Sem.Acquire(context.Background(), 1); err != nil {
		return ProcessResult{}, err
	}
	defer c.eng.Sem.Release(1)

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
	}
	c.eng.stats.record(elapsed.Milliseconds(), exitCode)

	if c.eng.Logger != nil {
		c.eng.Logger.Info(2, name, args, "took", elapsed, "exit", exitCode)
	}

	result := ProcessResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode, Duration: elapsed}
	if runErr != nil {
		return result, &common.SubprocessError{
			Command:  name,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}
	return result, nil
}

// RunProcessEnv is RunProcess with an explicit environment, used by
// gasnet_configured to run GASNet's `configure` with the cross-config
// env delta layered on top of the ambient environment rather than
// inheriting it unmodified.
func (c *Context) RunProcessEnv(name string, args []string, dir string, env []string) (ProcessResult, error) {
	if err := c.eng.Sem.Acquire(context.Background(), 1); err != nil {
		return ProcessResult{}, err
	}
	defer c.eng.Sem.Release(1)

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Env = env
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
	}
	c.eng.stats.record(elapsed.Milliseconds(), exitCode)

	if c.eng.Logger != nil {
		c.eng.Logger.Info(2, name, args, "took", elapsed, "exit", exitCode)
	}

	result := ProcessResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode, Duration: elapsed}
	if runErr != nil {
		return result, &common.SubprocessError{Command: name, Args: args, ExitCode: exitCode, Stderr: stderr.String()}
	}
	return result, nil
}

// RunProcessStdin is RunProcess plus a stdin payload, used by the
// makefile-extraction protocol (spec §6) which feeds make a synthesized
// script on stdin rather than a file argument.
func (c *Context) RunProcessStdin(name string, args []string, dir string, stdin string) (ProcessResult, error) {
	if err := c.eng.Sem.Acquire(context.Background(), 1); err != nil {
		return ProcessResult{}, err
	}
	defer c.eng.Sem.Release(1)

	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = strings.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		exitCode = -1
		if ee, ok := runErr.(*exec.ExitError); ok {
			exitCode = ee.ExitCode()
		}
	}
	c.eng.stats.record(elapsed.Milliseconds(), exitCode)

	result := ProcessResult{Stdout: stdout.String(), Stderr: stderr.String(), ExitCode: exitCode, Duration: elapsed}
	if runErr != nil {
		return result, &common.SubprocessError{Command: name, Args: args, ExitCode: exitCode, Stderr: stderr.String()}
	}
	return result, nil
}

// Package execx runs the OS tools zinst delegates to (dpkg, apt-get, file,
// curl, systemctl) behind a small interface so install steps can be tested
// without touching the host.
package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// maxStderr bounds how much stderr is carried in a CommandError.
const maxStderr = 512

// Result holds the captured output of a finished command.
type Result struct {
	Stdout string
	Stderr string
}

// Runner executes external commands.
type Runner interface {
	// Run executes name with args and waits for it. A non-zero exit is
	// returned as a *CommandError.
	Run(ctx context.Context, name string, args ...string) (Result, error)
	// LookPath reports where name would be found on PATH.
	LookPath(name string) (string, error)
}

// CommandError describes a command that could not start or exited non-zero.
type CommandError struct {
	Name   string
	Args   []string
	Code   int // -1 when the command never ran
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	cmdline := strings.TrimSpace(e.Name + " " + strings.Join(e.Args, " "))
	if e.Stderr != "" {
		return fmt.Sprintf("command %q failed: %v | stderr: %s", cmdline, e.Err, e.Stderr)
	}
	return fmt.Sprintf("command %q failed: %v", cmdline, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit status of the command, or -1 if it never ran.
func (e *CommandError) ExitCode() int {
	return e.Code
}

// OSRunner runs commands with os/exec.
type OSRunner struct{}

// NewRunner returns a Runner backed by the host OS.
func NewRunner() *OSRunner {
	return &OSRunner{}
}

// Run executes a command, capturing stdout and stderr.
func (r *OSRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	cmdErr := &CommandError{
		Name:   name,
		Args:   args,
		Code:   -1,
		Stderr: truncate(strings.TrimSpace(res.Stderr), maxStderr),
		Err:    err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.Code = exitErr.ExitCode()
	}
	return res, cmdErr
}

// LookPath wraps exec.LookPath.
func (r *OSRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

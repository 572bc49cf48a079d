package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/fetch"
	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
	"github.com/ZebulonRouseFrantzich/zinst/internal/preflight"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0-dev"

// cliEnv carries the process boundaries a command touches, so tests can
// swap the terminal, the command runner and host detection.
type cliEnv struct {
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	runner   execx.Runner
	detector platform.Detector
	checker  *preflight.Checker
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		runner:   execx.NewRunner(),
		detector: platform.NewDetector(),
		checker:  preflight.NewChecker(),
	}
}

// exitError ends the process with a specific code. The failure has already
// been reported by the time it is returned.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	fetch.UserAgent = "zinst/" + Version
	os.Exit(execute(os.Args[1:], defaultEnv()))
}

// execute runs the CLI and returns the process exit code.
func execute(args []string, env *cliEnv) int {
	root := newRootCmd(env)
	root.SetArgs(args)

	err := root.Execute()
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	fmt.Fprintf(env.stderr, "Error: %v\n", err)
	return 1
}

// Package preflight runs the environment checks that must pass before a run
// does any work. Every failure is a FatalEnvironment error.
package preflight

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

// ErrNotRoot is returned when root privileges are required but missing.
var ErrNotRoot = errors.New("zinst must run as root (try sudo)")

// Options selects which checks run.
type Options struct {
	RequireRoot bool
	// WritablePaths are files whose parent directory must accept writes
	// (the log file and the fail marker).
	WritablePaths []string
}

// Checker runs preflight checks.
type Checker struct {
	geteuid func() int
}

// NewChecker creates a checker for the current process.
func NewChecker() *Checker {
	return &Checker{geteuid: os.Geteuid}
}

// Run executes all checks in order and stops at the first failure.
func (c *Checker) Run(opts Options) error {
	if opts.RequireRoot && c.geteuid() != 0 {
		return lifecycle.Environment("preflight", ErrNotRoot)
	}

	for _, path := range opts.WritablePaths {
		if err := checkWritable(path); err != nil {
			return lifecycle.Environment("preflight", err)
		}
	}

	return nil
}

// checkWritable ensures path can be created or appended to. Missing parent
// directories are created the same way the run would create them.
func checkWritable(path string) error {
	if path == "" {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}

	if fi, err := os.Stat(path); err == nil {
		if fi.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
		if err != nil {
			return fmt.Errorf("%s is not writable: %w", path, err)
		}
		return f.Close()
	}

	probe, err := os.CreateTemp(dir, ".zinst-probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

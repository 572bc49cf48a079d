package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
)

// Actions runs the optional steps that follow a successful install.
type Actions struct {
	runner   execx.Runner
	logger   lifecycle.Logger
	unitDir  string
	platform *platform.Info
}

// NewActions creates post-install actions writing units into unitDir.
// info may be nil when the host was not detected.
func NewActions(runner execx.Runner, unitDir string, info *platform.Info, logger lifecycle.Logger) *Actions {
	return &Actions{
		runner:   runner,
		logger:   lifecycle.OrNop(logger),
		unitDir:  unitDir,
		platform: info,
	}
}

// RunOnce executes the installed tool once with no arguments. Without a
// known executable the run is skipped with a warning. A non-zero exit is
// FatalExecution carrying the tool's exit code.
func (a *Actions) RunOnce(ctx context.Context, executable string) error {
	if executable == "" {
		a.logger.Warn("no executable path known, skipping run")
		return nil
	}

	a.logger.Info("running tool once", "executable", executable)
	res, err := a.runner.Run(ctx, executable)
	a.echo("stdout", res.Stdout)
	a.echo("stderr", res.Stderr)
	if err != nil {
		return lifecycle.Execution("run", err)
	}
	a.logger.Info("tool run completed", "executable", executable)
	return nil
}

// echo records captured tool output one line per event, so it reaches both
// the console and the log.
func (a *Actions) echo(stream, out string) {
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		a.logger.Info(stream + "| " + line)
	}
}

// InstallUnit writes u to the unit directory, reloads systemd and enables
// and starts the service. An empty ExecStart skips the step with a warning.
// Returns the path of the written unit file, or "" when skipped.
func (a *Actions) InstallUnit(ctx context.Context, u Unit) (string, error) {
	if u.ExecStart == "" {
		a.logger.Warn("no command for the service, skipping unit creation", "unit", u.FileName())
		return "", nil
	}
	if a.platform != nil && !a.platform.HasSystemd() {
		a.logger.Warn("systemd does not appear to be running, systemctl may fail")
	}

	content, err := u.Render()
	if err != nil {
		return "", lifecycle.Input("service", err)
	}

	if err := os.MkdirAll(a.unitDir, 0755); err != nil {
		return "", lifecycle.Execution("service", fmt.Errorf("create unit dir: %w", err))
	}
	unitPath := filepath.Join(a.unitDir, u.FileName())
	if err := os.WriteFile(unitPath, []byte(content), UnitPermissions); err != nil {
		return "", lifecycle.Execution("service", fmt.Errorf("write unit: %w", err))
	}
	if err := os.Chmod(unitPath, UnitPermissions); err != nil {
		return "", lifecycle.Execution("service", fmt.Errorf("chmod unit: %w", err))
	}
	a.logger.Info("unit written", "path", unitPath)

	if _, err := a.runner.Run(ctx, "systemctl", "daemon-reload"); err != nil {
		return unitPath, lifecycle.Execution("service", err)
	}
	if _, err := a.runner.Run(ctx, "systemctl", "enable", "--now", u.FileName()); err != nil {
		return unitPath, lifecycle.Execution("service", err)
	}

	a.logger.Info("service enabled and started", "unit", u.FileName())
	return unitPath, nil
}

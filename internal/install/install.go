// Package install places a classified artifact on the system.
//
// Each Kind has one strategy:
//
//   - package: dpkg -i, with a single apt-get install -f -y repair pass
//   - tarball and zip: extract into installBase/toolName, pick the first
//     owner-executable file and link it into the bin directory
//   - single-file: copy into place with mode 0755, linking when the install
//     base is not the bin directory itself
//
// Nothing is rolled back on failure; whatever was written stays in place.
package install

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/zinst/internal/artifact"
	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
)

// Result describes what a strategy installed.
type Result struct {
	// ExecutablePath is the installed executable, empty when unknown.
	ExecutablePath string
	InstallBase    string
	ToolName       artifact.ToolName
	Kind           artifact.Kind
	// LinkPath is the symlink created in the bin directory, if any.
	LinkPath string
	// PackageName is the dpkg package name for package installs.
	PackageName string
}

// Installer dispatches artifacts to their install strategy.
type Installer struct {
	runner    execx.Runner
	extractor *Extractor
	logger    lifecycle.Logger
	binDir    string
	platform  *platform.Info
}

// Option configures an Installer.
type Option func(*Installer)

// WithPlatform sets the detected host, used to warn before dpkg runs on a
// non-Debian system.
func WithPlatform(info *platform.Info) Option {
	return func(i *Installer) { i.platform = info }
}

// WithLogger sets the event logger.
func WithLogger(l lifecycle.Logger) Option {
	return func(i *Installer) { i.logger = lifecycle.OrNop(l) }
}

// NewInstaller creates an installer that links executables into binDir.
func NewInstaller(runner execx.Runner, binDir string, opts ...Option) *Installer {
	i := &Installer{
		runner:    runner,
		extractor: NewExtractor(),
		logger:    lifecycle.NopLogger(),
		binDir:    binDir,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install runs the strategy for art.Kind. Every failure is FatalExecution.
func (i *Installer) Install(ctx context.Context, art artifact.Artifact, installBase string, tool artifact.ToolName) (*Result, error) {
	if tool == "" {
		return nil, lifecycle.Input("install", artifact.ErrEmptyToolName)
	}

	res := &Result{InstallBase: installBase, ToolName: tool, Kind: art.Kind}
	i.logger.Info("installing", "kind", art.Kind.String(), "tool", tool.String(), "install_base", installBase)

	var err error
	switch art.Kind {
	case artifact.KindPackage:
		err = i.installPackage(ctx, art, res)
	case artifact.KindTarball:
		err = i.installArchive(art, res, i.extractor.ExtractTarGz)
	case artifact.KindZip:
		err = i.installArchive(art, res, i.extractor.ExtractZip)
	case artifact.KindSingleFile:
		err = i.installSingleFile(art, res)
	default:
		err = fmt.Errorf("unsupported artifact kind %d", int(art.Kind))
	}
	if err != nil {
		return nil, lifecycle.Execution("install", err)
	}

	if res.ExecutablePath != "" {
		i.logger.Info("installed", "tool", tool.String(), "executable", res.ExecutablePath, "link", res.LinkPath)
	}
	return res, nil
}

func (i *Installer) installArchive(art artifact.Artifact, res *Result, extract func(string, string) error) error {
	dest := filepath.Join(res.InstallBase, res.ToolName.String())
	if err := extract(art.Path, dest); err != nil {
		return fmt.Errorf("extract %s: %w", art.Name, err)
	}
	i.logger.Info("extracted", "archive", art.Name, "dest", dest)

	exe, found, err := FindExecutable(dest)
	if err != nil {
		return err
	}
	if !found {
		i.logger.Warn("no executable found, inspect the directory manually", "dir", dest)
		return nil
	}

	return i.link(exe, res)
}

func (i *Installer) installSingleFile(art artifact.Artifact, res *Result) error {
	if sameDir(res.InstallBase, i.binDir) {
		dest := filepath.Join(i.binDir, art.Name)
		if err := copyExecutable(art.Path, dest); err != nil {
			return err
		}
		res.ExecutablePath = dest
		return nil
	}

	dest := filepath.Join(res.InstallBase, res.ToolName.String(), art.Name)
	if err := copyExecutable(art.Path, dest); err != nil {
		return err
	}
	return i.link(dest, res)
}

func (i *Installer) link(exe string, res *Result) error {
	linkPath := filepath.Join(i.binDir, res.ToolName.String())
	if err := Link(exe, linkPath); err != nil {
		return err
	}
	res.ExecutablePath = exe
	res.LinkPath = linkPath
	return nil
}

func sameDir(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

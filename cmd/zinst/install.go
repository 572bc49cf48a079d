package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/zinst/internal/artifact"
	"github.com/ZebulonRouseFrantzich/zinst/internal/config"
	"github.com/ZebulonRouseFrantzich/zinst/internal/fetch"
	"github.com/ZebulonRouseFrantzich/zinst/internal/install"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
	"github.com/ZebulonRouseFrantzich/zinst/internal/preflight"
	"github.com/ZebulonRouseFrantzich/zinst/internal/prompt"
	"github.com/ZebulonRouseFrantzich/zinst/internal/service"
	"github.com/ZebulonRouseFrantzich/zinst/internal/verify"
)

// installFlags holds the per-run answers given on the command line.
type installFlags struct {
	answersFile string
	saveAnswers string
	yes         bool
	answers     prompt.Answers
}

func newInstallCmd(env *cliEnv, v *viper.Viper) *cobra.Command {
	var f installFlags

	cmd := &cobra.Command{
		Use:   "install [source]",
		Short: "Fetch, verify and install a tool",
		Long: `Install a .deb package, a .tar.gz or .zip archive, or a single binary.

The source is a http(s) or ftp URL or a local path. Questions not answered
by flags or by an --answers file are asked interactively unless --yes is
given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				f.answers.Source = args[0]
			}
			return runInstall(cmd, env, v, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.answersFile, "answers", "", "YAML answers file (non-interactive)")
	fl.StringVar(&f.saveAnswers, "save-answers", "", "write the final answers to a YAML file for later --answers runs")
	fl.BoolVarP(&f.yes, "yes", "y", false, "do not prompt; use flags and defaults")
	fl.StringVar(&f.answers.ToolName, "name", "", "tool name used for the install directory, symlink and service")
	fl.StringVar(&f.answers.Kind, "kind", "", "declare the artifact kind (package, tarball, zip, single-file)")
	fl.StringVar(&f.answers.Checksum, "checksum", "", "expected SHA-256 (hex, sha256sum line, or checksum file)")
	fl.StringVar(&f.answers.Signature, "signature", "", "detached signature file (.asc/.sig for OpenPGP, .minisig for minisign)")
	fl.StringVar(&f.answers.PublicKey, "public-key", "", "public key for --signature")
	fl.BoolVar(&f.answers.RunOnce, "run", false, "run the installed tool once")
	fl.BoolVar(&f.answers.Service, "service", false, "install and start a systemd service")
	fl.StringVar(&f.answers.ServiceDescription, "description", "", "service description")
	fl.StringVar(&f.answers.ExecStart, "exec-start", "", "service command (default: the installed executable)")

	return cmd
}

// mergeAnswers overlays flags that were set explicitly onto base.
func mergeAnswers(cmd *cobra.Command, base prompt.Answers, flags prompt.Answers) prompt.Answers {
	fl := cmd.Flags()
	if flags.Source != "" {
		base.Source = flags.Source
	}
	if fl.Changed("name") {
		base.ToolName = flags.ToolName
	}
	if fl.Changed("kind") {
		base.Kind = flags.Kind
	}
	if fl.Changed("checksum") {
		base.Checksum = flags.Checksum
	}
	if fl.Changed("signature") {
		base.Signature = flags.Signature
	}
	if fl.Changed("public-key") {
		base.PublicKey = flags.PublicKey
	}
	if fl.Changed("run") {
		base.RunOnce = flags.RunOnce
	}
	if fl.Changed("service") {
		base.Service = flags.Service
	}
	if fl.Changed("description") {
		base.ServiceDescription = flags.ServiceDescription
	}
	if fl.Changed("exec-start") {
		base.ExecStart = flags.ExecStart
	}
	return base
}

func runInstall(cmd *cobra.Command, env *cliEnv, v *viper.Viper, f *installFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, env, v)
	if err != nil {
		return err
	}

	lc := lifecycle.New(lifecycle.Options{
		LogPath:    cfg.LogPath,
		MarkerPath: cfg.FailMarker,
		Prefix:     cfg.LogPrefix,
		Stdout:     env.stdout,
		Stderr:     env.stderr,
	})

	if err := run(ctx, cmd, env, cfg, lc, f); err != nil {
		return &exitError{code: lc.Fail(err)}
	}
	if err := lc.Succeed(); err != nil {
		return err
	}
	return nil
}

// run performs the install steps in order. The first error aborts the run;
// nothing already written is rolled back.
func run(ctx context.Context, cmd *cobra.Command, env *cliEnv, cfg *config.Config, lc *lifecycle.Lifecycle, f *installFlags) error {
	if err := env.checker.Run(preflight.Options{
		RequireRoot:   cfg.RequireRoot,
		WritablePaths: []string{cfg.LogPath, cfg.FailMarker},
	}); err != nil {
		return err
	}
	if err := lc.Begin(); err != nil {
		return err
	}

	info, err := env.detector.Detect(ctx)
	if err != nil {
		lc.Warn("platform detection failed", "error", err.Error())
		info = nil
	} else {
		lc.Debug("platform detected", "os", info.OS, "arch", info.Arch, "family", info.Family, "systemd", info.Systemd)
	}

	answers, err := gatherAnswers(cmd, env, cfg, f)
	if err != nil {
		return err
	}
	if f.saveAnswers != "" {
		if err := saveAnswers(f.saveAnswers, answers); err != nil {
			return lifecycle.Execution("answers", err)
		}
		lc.Info("answers saved", "path", f.saveAnswers)
	}

	tool, err := artifact.NewToolName(answers.ToolName)
	if err != nil {
		return lifecycle.Input("tool name", err)
	}
	if string(tool) != answers.ToolName {
		lc.Info("tool name sanitized", "from", answers.ToolName, "to", tool.String())
	}
	installBase := answers.InstallBase
	if !filepath.IsAbs(installBase) {
		return lifecycle.Input("install base", fmt.Errorf("install base %q must be an absolute path", installBase))
	}

	lc.Info("starting install", "source", answers.Source, "tool", tool.String(), "install_base", installBase)

	fetcher := fetch.NewFetcher(cfg.CacheDir,
		fetch.NewDownloader(cfg.Download.Retries, cfg.Download.Timeout()), env.runner, lc)
	fetched, err := fetcher.Fetch(ctx, answers.Source)
	if err != nil {
		return err
	}

	var digester verify.Digester
	if cfg.ChecksumTool != "" {
		digester = verify.ToolDigester{Tool: cfg.ChecksumTool, Runner: env.runner}
	}
	verifier := verify.NewVerifier(digester, lc)
	if err := verifier.Checksum(ctx, fetched.Path, fetched.Name, answers.Checksum); err != nil {
		return err
	}
	if err := verifier.Signature(fetched.Path, answers.Signature, answers.PublicKey); err != nil {
		return err
	}

	art := artifact.Artifact{Path: fetched.Path, Name: fetched.Name}
	if answers.Kind != "" {
		kind, err := artifact.ParseKind(answers.Kind)
		if err != nil {
			return lifecycle.Input("classify", err)
		}
		art.Kind = kind
		lc.Info("artifact kind declared", "kind", kind.String())
	} else {
		c := artifact.NewClassifier(artifact.NewFileSniffer(env.runner), lc).
			Explain(ctx, fetched.Name, fetched.Path)
		art.Kind = c.Kind
		lc.Info("artifact classified", "kind", c.Kind.String(), "rule", c.Rule, "mime", c.MIME)
	}

	installer := install.NewInstaller(env.runner, cfg.BinDir, install.WithLogger(lc), install.WithPlatform(info))
	res, err := installer.Install(ctx, art, installBase, tool)
	if err != nil {
		return err
	}

	actions := service.NewActions(env.runner, cfg.UnitDir, info, lc)
	if answers.RunOnce {
		if err := actions.RunOnce(ctx, res.ExecutablePath); err != nil {
			return err
		}
	}
	if answers.Service {
		execStart := answers.ExecStart
		if execStart == "" {
			execStart = res.ExecutablePath
		}
		if _, err := actions.InstallUnit(ctx, service.Unit{
			Name:        tool.String(),
			Description: answers.ServiceDescription,
			ExecStart:   execStart,
		}); err != nil {
			return err
		}
	}

	printSummary(env, res)
	return nil
}

// gatherAnswers combines the answers file, flags and interactive prompts.
func gatherAnswers(cmd *cobra.Command, env *cliEnv, cfg *config.Config, f *installFlags) (*prompt.Answers, error) {
	var base prompt.Answers
	if f.answersFile != "" {
		loaded, err := prompt.LoadAnswers(f.answersFile)
		if err != nil {
			return nil, lifecycle.Input("answers", err)
		}
		base = *loaded
	}
	a := mergeAnswers(cmd, base, f.answers)
	if a.InstallBase == "" {
		a.InstallBase = cfg.InstallBase
	}

	if f.answersFile == "" && !f.yes {
		collected, err := prompt.New(env.stdin, env.stdout).Collect(a)
		if err != nil {
			return nil, lifecycle.Input("prompt", err)
		}
		a = *collected
	}

	if a.Source == "" {
		return nil, lifecycle.Input("answers", errors.New("no source given"))
	}
	if a.ToolName == "" {
		a.ToolName = prompt.DefaultToolName(a.Source)
	}
	if a.Signature != "" && a.PublicKey == "" {
		return nil, lifecycle.Input("answers", verify.ErrSignatureKeyRequired)
	}
	return &a, nil
}

// saveAnswers writes a so a later run can replay it with --answers.
func saveAnswers(path string, a *prompt.Answers) error {
	data, err := prompt.MarshalAnswers(a)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write answers file: %w", err)
	}
	return nil
}

func printSummary(env *cliEnv, res *install.Result) {
	fmt.Fprintln(env.stdout)
	fmt.Fprintf(env.stdout, "Installed %s (%s)\n", res.ToolName, res.Kind)
	switch {
	case res.LinkPath != "":
		fmt.Fprintf(env.stdout, "  executable: %s\n  link:       %s\n", res.ExecutablePath, res.LinkPath)
	case res.ExecutablePath != "":
		fmt.Fprintf(env.stdout, "  executable: %s\n", res.ExecutablePath)
	case res.PackageName != "":
		fmt.Fprintf(env.stdout, "  package:    %s (run it by its package-registered name)\n", res.PackageName)
	case res.Kind == artifact.KindPackage:
		fmt.Fprintln(env.stdout, "  run it by its package-registered name")
	default:
		fmt.Fprintf(env.stdout, "  no executable found; inspect %s manually\n",
			filepath.Join(res.InstallBase, res.ToolName.String()))
	}
}

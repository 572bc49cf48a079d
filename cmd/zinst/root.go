package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/zinst/internal/config"
)

// settings maps viper keys to persistent flags. Keys follow the Lua field
// names so every layer (Lua file, ZINST_* env, flags) shares one namespace.
var settings = []struct {
	key  string
	flag string
}{
	{"install_base", "install-base"},
	{"bin_dir", "bin-dir"},
	{"log_path", "log-path"},
	{"log_prefix", "log-prefix"},
	{"fail_marker", "fail-marker"},
	{"cache_dir", "cache-dir"},
	{"unit_dir", "unit-dir"},
	{"checksum_tool", "checksum-tool"},
	{"require_root", "require-root"},
	{"download.retries", "retries"},
	{"download.timeout_seconds", "timeout"},
}

func newRootCmd(env *cliEnv) *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "zinst",
		Short: "Interactive single-run tool installer",
		Long: `zinst fetches a package, archive or binary, verifies it, installs it
and optionally runs it once or registers it as a systemd service.

Every step is appended to the log file. A failed run leaves a fail marker
that monitoring can poll with 'zinst status'.`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetVersionTemplate("zinst {{.Version}}\n")
	root.SetIn(env.stdin)
	root.SetOut(env.stdout)
	root.SetErr(env.stderr)

	defaults := config.Defaults()
	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default "+config.DefaultPath+")")
	pf.String("install-base", "", "base directory for extracted tools (default "+defaults.InstallBase+")")
	pf.String("bin-dir", "", "directory receiving tool symlinks (default "+defaults.BinDir+")")
	pf.String("log-path", "", "append-only event log (default "+defaults.LogPath+")")
	pf.String("log-prefix", "", "prefix of every log line (default "+defaults.LogPrefix+")")
	pf.String("fail-marker", "", "file written when a run fails (default "+defaults.FailMarker+")")
	pf.String("cache-dir", "", "download directory (default "+defaults.CacheDir+")")
	pf.String("unit-dir", "", "systemd unit directory (default "+defaults.UnitDir+")")
	pf.String("checksum-tool", "", "external sha256sum-compatible tool (default: built-in)")
	pf.Bool("require-root", defaults.RequireRoot, "refuse to run without root privileges")
	pf.Int("retries", defaults.Download.Retries, "HTTP download retries")
	pf.Int("timeout", defaults.Download.TimeoutSeconds, "HTTP request timeout in seconds")

	v.SetEnvPrefix("ZINST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlag("config", pf.Lookup("config"))
	for _, s := range settings {
		_ = v.BindPFlag(s.key, pf.Lookup(s.flag))
	}

	root.AddCommand(
		newInstallCmd(env, v),
		newClassifyCmd(env),
		newStatusCmd(env, v),
		newConfigCmd(env, v),
	)
	return root
}

// loadConfig resolves the effective configuration: flags override ZINST_*
// environment variables, which override the Lua file, which overrides the
// built-in defaults.
func loadConfig(ctx context.Context, env *cliEnv, v *viper.Viper) (*config.Config, error) {
	parser := config.NewParser(env.detector)
	fileCfg, err := parser.Load(ctx, v.GetString("config"))
	if err != nil {
		return nil, fmt.Errorf("load config:\n%s", config.FormatError(err, true))
	}

	// Lua values become viper defaults so env and flags layer on top.
	v.SetDefault("install_base", fileCfg.InstallBase)
	v.SetDefault("bin_dir", fileCfg.BinDir)
	v.SetDefault("log_path", fileCfg.LogPath)
	v.SetDefault("log_prefix", fileCfg.LogPrefix)
	v.SetDefault("fail_marker", fileCfg.FailMarker)
	v.SetDefault("cache_dir", fileCfg.CacheDir)
	v.SetDefault("unit_dir", fileCfg.UnitDir)
	v.SetDefault("checksum_tool", fileCfg.ChecksumTool)
	v.SetDefault("require_root", fileCfg.RequireRoot)
	v.SetDefault("download.retries", fileCfg.Download.Retries)
	v.SetDefault("download.timeout_seconds", fileCfg.Download.TimeoutSeconds)

	// Unchanged flags never shadow a default, so Unmarshal sees the layered values.
	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &cfg, nil
}

// Package testutil provides utilities for testing zinst in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env holds the isolated locations created by SetupTestEnv.
type Env struct {
	Root        string
	InstallBase string
	BinDir      string
	LogPath     string
	FailMarker  string
	CacheDir    string
	UnitDir     string
	// ConfigPath is a free location for a test config file. It is not
	// exported to the environment; pass it with --config.
	ConfigPath string
}

// SetupTestEnv creates isolated directories for a test and points the
// ZINST_* environment variables at them, so a test never writes to /opt,
// /usr/local/bin, /var/log or /etc/systemd.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Root:        tmpDir,
		InstallBase: filepath.Join(tmpDir, "opt"),
		BinDir:      filepath.Join(tmpDir, "bin"),
		LogPath:     filepath.Join(tmpDir, "log", "zinst.log"),
		FailMarker:  filepath.Join(tmpDir, "state", "last-run.failed"),
		CacheDir:    filepath.Join(tmpDir, "cache"),
		UnitDir:     filepath.Join(tmpDir, "systemd"),
		ConfigPath:  filepath.Join(tmpDir, "config.lua"),
	}

	t.Setenv("ZINST_INSTALL_BASE", env.InstallBase)
	t.Setenv("ZINST_BIN_DIR", env.BinDir)
	t.Setenv("ZINST_LOG_PATH", env.LogPath)
	t.Setenv("ZINST_FAIL_MARKER", env.FailMarker)
	t.Setenv("ZINST_CACHE_DIR", env.CacheDir)
	t.Setenv("ZINST_UNIT_DIR", env.UnitDir)
	t.Setenv("ZINST_REQUIRE_ROOT", "false")

	dirs := []string{env.InstallBase, env.BinDir, env.CacheDir, env.UnitDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return env
}

// Package config loads zinst's Lua configuration file.
//
// The file defines a single global table:
//
//	zinst = {
//	  install_base = "/opt",
//	  bin_dir      = "/usr/local/bin",
//	  log_path     = "/var/log/zinst.log",
//	  log_prefix   = "[zinst]",
//	  fail_marker  = "/var/lib/zinst/last-run.failed",
//	  cache_dir    = "/var/cache/zinst",
//	  unit_dir     = "/etc/systemd/system",
//	  checksum_tool = "",           -- empty: in-process SHA-256
//	  require_root = true,
//	  download = { retries = 3, timeout_seconds = 300 },
//	}
//
// Every field is optional; missing fields keep their defaults. The config is
// executed in a sandboxed gopher-lua VM with a read-only `platform` table, so
// values can depend on the host:
//
//	zinst = { install_base = platform.is_debian_family and "/opt" or "/usr/local/opt" }
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// DefaultPath is where the config file is looked up when none is given.
const DefaultPath = "/etc/zinst/config.lua"

// Config is the resolved zinst configuration.
type Config struct {
	InstallBase  string `mapstructure:"install_base"`
	BinDir       string `mapstructure:"bin_dir"`
	LogPath      string `mapstructure:"log_path"`
	LogPrefix    string `mapstructure:"log_prefix"`
	FailMarker   string `mapstructure:"fail_marker"`
	CacheDir     string `mapstructure:"cache_dir"`
	UnitDir      string `mapstructure:"unit_dir"`
	ChecksumTool string `mapstructure:"checksum_tool"`
	RequireRoot  bool   `mapstructure:"require_root"`

	Download Download `mapstructure:"download"`
}

// Download tunes HTTP fetching.
type Download struct {
	Retries        int `mapstructure:"retries"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-request timeout.
func (d Download) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		InstallBase:  "/opt",
		BinDir:       "/usr/local/bin",
		LogPath:      "/var/log/zinst.log",
		LogPrefix:    "[zinst]",
		FailMarker:   "/var/lib/zinst/last-run.failed",
		CacheDir:     "/var/cache/zinst",
		UnitDir:      "/etc/systemd/system",
		ChecksumTool: "",
		RequireRoot:  true,
		Download: Download{
			Retries:        3,
			TimeoutSeconds: 300,
		},
	}
}

// ValidationError reports an invalid config field.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Message)
}

// maxRetries bounds download retries; backoff doubles per attempt.
const maxRetries = 10

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	paths := []struct {
		field string
		value string
	}{
		{"install_base", c.InstallBase},
		{"bin_dir", c.BinDir},
		{"log_path", c.LogPath},
		{"fail_marker", c.FailMarker},
		{"cache_dir", c.CacheDir},
		{"unit_dir", c.UnitDir},
	}
	for _, p := range paths {
		if err := validateAbsPath(p.field, p.value); err != nil {
			return err
		}
	}

	if strings.TrimSpace(c.LogPrefix) == "" {
		return &ValidationError{Field: "log_prefix", Value: c.LogPrefix, Message: "must not be empty"}
	}
	if strings.ContainsAny(c.LogPrefix, "\n\r") {
		return &ValidationError{Field: "log_prefix", Value: c.LogPrefix, Message: "must be a single line"}
	}

	if c.Download.Retries < 0 || c.Download.Retries > maxRetries {
		return &ValidationError{Field: "download.retries", Value: c.Download.Retries,
			Message: fmt.Sprintf("must be between 0 and %d", maxRetries)}
	}
	if c.Download.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "download.timeout_seconds", Value: c.Download.TimeoutSeconds,
			Message: "must be positive"}
	}

	if c.ChecksumTool != "" && strings.ContainsAny(c.ChecksumTool, " \t/") {
		return &ValidationError{Field: "checksum_tool", Value: c.ChecksumTool,
			Message: "must be a bare command name looked up on PATH"}
	}

	return nil
}

func validateAbsPath(field, value string) error {
	if value == "" {
		return &ValidationError{Field: field, Value: value, Message: "must not be empty"}
	}
	if !filepath.IsAbs(value) {
		return &ValidationError{Field: field, Value: value, Message: "must be an absolute path"}
	}
	if filepath.Clean(value) != value && filepath.Clean(value)+"/" != value {
		return &ValidationError{Field: field, Value: value, Message: "must be a clean path"}
	}
	return nil
}

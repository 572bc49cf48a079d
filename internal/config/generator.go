package config

import (
	"bytes"
	"fmt"
	"strings"
)

// Generate renders cfg as a Lua config file that ParseString reads back to
// an equal Config. `zinst config` prints it so users can start from the
// effective settings.
func Generate(cfg *Config) string {
	var buf bytes.Buffer

	buf.WriteString("-- zinst configuration\n\n")
	buf.WriteString("zinst = {\n")

	fields := []struct {
		key   string
		value string
	}{
		{"install_base", cfg.InstallBase},
		{"bin_dir", cfg.BinDir},
		{"log_path", cfg.LogPath},
		{"log_prefix", cfg.LogPrefix},
		{"fail_marker", cfg.FailMarker},
		{"cache_dir", cfg.CacheDir},
		{"unit_dir", cfg.UnitDir},
		{"checksum_tool", cfg.ChecksumTool},
	}
	for _, f := range fields {
		fmt.Fprintf(&buf, "  %s = %s,\n", f.key, quoteLuaString(f.value))
	}

	fmt.Fprintf(&buf, "  require_root = %t,\n", cfg.RequireRoot)
	buf.WriteString("  download = {\n")
	fmt.Fprintf(&buf, "    retries = %d,\n", cfg.Download.Retries)
	fmt.Fprintf(&buf, "    timeout_seconds = %d,\n", cfg.Download.TimeoutSeconds)
	buf.WriteString("  },\n")
	buf.WriteString("}\n")

	return buf.String()
}

// quoteLuaString quotes a string for Lua, handling special characters.
func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}

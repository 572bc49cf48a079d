package config

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser evaluates Lua config files with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the `platform` global undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Load reads the config at path. When path is empty DefaultPath is tried and
// a missing file yields Defaults(); an explicitly named file must exist.
func (p *Parser) Load(ctx context.Context, path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			cfg := Defaults()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := p.ParseString(ctx, string(data))
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseString evaluates luaCode and overlays the `zinst` table on Defaults().
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// extractConfig reads the global "zinst" table. A config without the table
// is treated as empty.
func extractConfig(L *lua.LState) (*Config, error) {
	cfg := Defaults()

	root := L.GetGlobal("zinst")
	switch root.Type() {
	case lua.LTNil:
		return &cfg, nil
	case lua.LTTable:
	default:
		return nil, &ParseError{
			Message: "invalid 'zinst' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}

	strFields := map[string]*string{
		"install_base":  &cfg.InstallBase,
		"bin_dir":       &cfg.BinDir,
		"log_path":      &cfg.LogPath,
		"log_prefix":    &cfg.LogPrefix,
		"fail_marker":   &cfg.FailMarker,
		"cache_dir":     &cfg.CacheDir,
		"unit_dir":      &cfg.UnitDir,
		"checksum_tool": &cfg.ChecksumTool,
	}

	var errs []string
	root.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		name := key.String()
		if dst, ok := strFields[name]; ok {
			if s, ok := value.(lua.LString); ok {
				*dst = string(s)
			} else if value != lua.LNil {
				errs = append(errs, fmt.Sprintf("%s: expected string, got %s", name, value.Type()))
			}
			return
		}

		switch name {
		case "require_root":
			if b, ok := value.(lua.LBool); ok {
				cfg.RequireRoot = bool(b)
			} else {
				errs = append(errs, fmt.Sprintf("%s: expected boolean, got %s", name, value.Type()))
			}
		case "download":
			t, ok := value.(*lua.LTable)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s: expected table, got %s", name, value.Type()))
				return
			}
			errs = append(errs, extractDownload(t, &cfg.Download)...)
		default:
			errs = append(errs, fmt.Sprintf("unknown field %q", name))
		}
	})

	if len(errs) > 0 {
		sort.Strings(errs)
		return nil, &ParseError{
			Message: "invalid 'zinst' table",
			Detail:  strings.Join(errs, "; "),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return &cfg, nil
}

func extractDownload(t *lua.LTable, dl *Download) []string {
	var errs []string
	t.ForEach(func(key, value lua.LValue) {
		name := "download." + key.String()
		var dst *int
		switch key.String() {
		case "retries":
			dst = &dl.Retries
		case "timeout_seconds":
			dst = &dl.TimeoutSeconds
		default:
			errs = append(errs, fmt.Sprintf("unknown field %q", name))
			return
		}

		n, ok := value.(lua.LNumber)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: expected number, got %s", name, value.Type()))
			return
		}
		f := float64(n)
		if f != math.Trunc(f) {
			errs = append(errs, fmt.Sprintf("%s: expected integer, got %v", name, f))
			return
		}
		*dst = int(f)
	})
	return errs
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		return err.Error()
	}
	if verbose {
		return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
	}
	detail := parseErr.Detail
	if idx := strings.Index(detail, "stack traceback"); idx > 0 {
		detail = strings.TrimSpace(detail[:idx])
	}
	return fmt.Sprintf("%s: %s", parseErr.Message, detail)
}

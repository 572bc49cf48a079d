package artifact

import (
	"errors"
	"strings"
)

// ErrEmptyToolName is returned when a tool name is blank.
var ErrEmptyToolName = errors.New("tool name must not be empty")

// ToolName is a sanitized identifier used as install directory, symlink and
// service name. It only contains [A-Za-z0-9._-].
type ToolName string

// String returns the tool name
func (n ToolName) String() string {
	return string(n)
}

// SanitizeToolName replaces every rune outside [A-Za-z0-9._-] with '_'.
// Sanitizing an already sanitized name returns it unchanged.
func SanitizeToolName(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if isToolNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// NewToolName trims and sanitizes raw. Blank input is rejected.
// "." and ".." would resolve to the install base itself, so they are
// rejected as well.
func NewToolName(raw string) (ToolName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrEmptyToolName
	}

	name := SanitizeToolName(trimmed)
	if name == "." || name == ".." {
		return "", errors.New("tool name must not be . or ..")
	}
	return ToolName(name), nil
}

func isToolNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	default:
		return false
	}
}

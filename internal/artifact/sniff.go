package artifact

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
)

// Sniffer reports the MIME type of a file's content.
type Sniffer interface {
	Sniff(ctx context.Context, path string) (string, error)
}

// SnifferFunc adapts a function to Sniffer.
type SnifferFunc func(ctx context.Context, path string) (string, error)

// Sniff calls f.
func (f SnifferFunc) Sniff(ctx context.Context, path string) (string, error) {
	return f(ctx, path)
}

// FileSniffer asks file(1) for the MIME type.
type FileSniffer struct {
	runner  execx.Runner
	command string
}

// NewFileSniffer creates a sniffer running `file --brief --mime-type`.
func NewFileSniffer(runner execx.Runner) *FileSniffer {
	return &FileSniffer{runner: runner, command: "file"}
}

// Sniff runs file(1) on path and returns its trimmed stdout.
func (s *FileSniffer) Sniff(ctx context.Context, path string) (string, error) {
	if _, err := s.runner.LookPath(s.command); err != nil {
		return "", fmt.Errorf("%s not available: %w", s.command, err)
	}

	res, err := s.runner.Run(ctx, s.command, "--brief", "--mime-type", path)
	if err != nil {
		return "", fmt.Errorf("sniff %s: %w", path, err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// Package verify gates installation on an optional SHA-256 digest and an
// optional detached signature. Both are checked before any install strategy
// touches the system.
package verify

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/zinst/internal/execx"
	"github.com/ZebulonRouseFrantzich/zinst/internal/lifecycle"
)

// sha256HexLen is the length of a hex-encoded SHA-256 digest.
const sha256HexLen = 64

var (
	// ErrChecksumMismatch is returned when the artifact digest differs from
	// the expected one.
	ErrChecksumMismatch = errors.New("checksum mismatch")
	// ErrInvalidChecksum is returned for digests that are not 64 hex characters.
	ErrInvalidChecksum = errors.New("invalid sha256 checksum")
	// ErrDigestToolMissing is returned by ToolDigester when its tool is not on PATH.
	ErrDigestToolMissing = errors.New("digest tool not found")
)

// Digester computes the hex SHA-256 digest of a file.
type Digester interface {
	Name() string
	Digest(ctx context.Context, path string) (string, error)
}

// SHA256Digester hashes in-process and is always available.
type SHA256Digester struct{}

// Name returns "sha256".
func (SHA256Digester) Name() string { return "sha256" }

// Digest returns the lower-case hex digest of the file at path.
func (SHA256Digester) Digest(ctx context.Context, path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ToolDigester runs an external sha256sum-compatible tool.
type ToolDigester struct {
	Tool   string
	Runner execx.Runner
}

// Name returns the tool name.
func (d ToolDigester) Name() string { return d.Tool }

// Digest runs "<tool> <path>" and returns the first field of its output.
func (d ToolDigester) Digest(ctx context.Context, path string) (string, error) {
	if _, err := d.Runner.LookPath(d.Tool); err != nil {
		return "", fmt.Errorf("%w: %s", ErrDigestToolMissing, d.Tool)
	}

	res, err := d.Runner.Run(ctx, d.Tool, path)
	if err != nil {
		return "", err
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 || !isHexDigest(fields[0]) {
		return "", fmt.Errorf("unexpected %s output: %q", d.Tool, strings.TrimSpace(res.Stdout))
	}
	return strings.ToLower(fields[0]), nil
}

// ParseChecksum extracts the expected digest for name from input. Input is
// either a bare 64-character hex digest or sha256sum output ("<hex>  <file>"
// per line); lines are matched on the base name of their file column.
func ParseChecksum(input, name string) (string, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidChecksum)
	}

	if !strings.ContainsAny(text, " \t\n") {
		if !isHexDigest(text) {
			return "", fmt.Errorf("%w: %q", ErrInvalidChecksum, text)
		}
		return strings.ToLower(text), nil
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// sha256sum marks binary mode with a leading '*'.
		file := strings.TrimPrefix(fields[len(fields)-1], "*")
		if filepath.Base(file) != name {
			continue
		}
		if !isHexDigest(fields[0]) {
			return "", fmt.Errorf("%w for %s: %q", ErrInvalidChecksum, name, fields[0])
		}
		return strings.ToLower(fields[0]), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan checksum input: %w", err)
	}

	return "", fmt.Errorf("%w: no entry for %s", ErrInvalidChecksum, name)
}

// LoadChecksum reads input as a checksum file when it names one, and
// otherwise parses it as literal checksum text.
func LoadChecksum(input, name string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if fi, err := os.Stat(trimmed); err == nil && fi.Mode().IsRegular() {
		data, err := os.ReadFile(trimmed)
		if err != nil {
			return "", fmt.Errorf("read checksum file: %w", err)
		}
		return ParseChecksum(string(data), name)
	}
	return ParseChecksum(trimmed, name)
}

func isHexDigest(value string) bool {
	if len(value) != sha256HexLen {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

// Verifier checks artifacts against user-supplied checksums and signatures.
type Verifier struct {
	digester Digester
	logger   lifecycle.Logger
}

// NewVerifier creates a verifier. A nil digester selects SHA256Digester.
func NewVerifier(digester Digester, logger lifecycle.Logger) *Verifier {
	if digester == nil {
		digester = SHA256Digester{}
	}
	return &Verifier{digester: digester, logger: lifecycle.OrNop(logger)}
}

// Checksum compares the artifact at path against expected. An empty expected
// string disables the check. Bad input and mismatches are FatalInput; a
// missing external digest tool only skips the check with a warning.
func (v *Verifier) Checksum(ctx context.Context, path, name, expected string) error {
	if strings.TrimSpace(expected) == "" {
		v.logger.Debug("no checksum supplied, skipping verification")
		return nil
	}

	want, err := LoadChecksum(expected, name)
	if err != nil {
		return lifecycle.Input("checksum", err)
	}

	got, err := v.digester.Digest(ctx, path)
	if err != nil {
		if errors.Is(err, ErrDigestToolMissing) {
			v.logger.Warn("checksum verification skipped", "reason", err.Error())
			return nil
		}
		return lifecycle.Execution("checksum", err)
	}

	if !strings.EqualFold(got, want) {
		return lifecycle.Input("checksum", fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, want, got))
	}

	v.logger.Info("checksum verified", "tool", v.digester.Name(), "sha256", got)
	return nil
}

package lifecycle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultPrefix is the fixed marker string at the start of every log line.
const DefaultPrefix = "[zinst]"

// Level represents event severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ErrNotBegun is returned by Succeed when Begin was never called.
var ErrNotBegun = errors.New("lifecycle has not begun")

// Options configures a Lifecycle.
type Options struct {
	// LogPath is the append-only event log.
	LogPath string
	// MarkerPath is the fail marker written by Fail and removed by Succeed.
	MarkerPath string
	// Prefix starts every line (default DefaultPrefix).
	Prefix string
	// Stdout and Stderr receive console output (default os.Stdout/os.Stderr).
	Stdout io.Writer
	Stderr io.Writer
	// Now returns the current time (default time.Now).
	Now func() time.Time
	// RunID overrides the generated run identifier.
	RunID string
}

// Lifecycle is the explicit process-lifecycle object of a single run.
// It is not safe for concurrent use; a run is single-threaded.
type Lifecycle struct {
	opts     Options
	runID    string
	file     *os.File
	begun    bool
	finished bool
}

// New creates a Lifecycle. Nothing touches the filesystem until Begin.
func New(opts Options) *Lifecycle {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	return &Lifecycle{opts: opts, runID: runID}
}

// RunID returns the identifier stamped on every event of this run.
func (l *Lifecycle) RunID() string {
	return l.runID
}

// Begin opens the event log for appending. A log that cannot be opened is a
// FatalEnvironment error.
func (l *Lifecycle) Begin() error {
	if l.begun {
		return nil
	}

	if l.opts.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(l.opts.LogPath), 0755); err != nil {
			return Environment("open log", fmt.Errorf("create log directory: %w", err))
		}

		_, statErr := os.Stat(l.opts.LogPath)
		created := os.IsNotExist(statErr)

		file, err := os.OpenFile(l.opts.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644) //nolint:gosec // G302: log is world-readable on purpose
		if err != nil {
			return Environment("open log", fmt.Errorf("log path %s is not writable: %w", l.opts.LogPath, err))
		}

		// The umask may have stripped bits from a freshly created log.
		if created {
			if err := os.Chmod(l.opts.LogPath, 0644); err != nil {
				file.Close()
				return Environment("open log", fmt.Errorf("chmod log: %w", err))
			}
		}
		l.file = file
	}

	l.begun = true
	l.Info("run started")
	return nil
}

// RecordEvent appends one event line to the log file and mirrors it to the
// console. Debug events only go to the log file.
func (l *Lifecycle) RecordEvent(level Level, msg string, keysAndValues ...interface{}) {
	fields := formatFields(keysAndValues)

	if l.file != nil {
		timestamp := l.opts.Now().UTC().Format(time.RFC3339)
		line := fmt.Sprintf("%s %s %s run=%s %s%s\n", l.opts.Prefix, timestamp, level, l.runID, msg, fields)
		_, _ = l.file.WriteString(line)
	}

	switch level {
	case LevelDebug:
		return
	case LevelInfo:
		fmt.Fprintf(l.opts.Stdout, "%s %s%s\n", l.opts.Prefix, msg, fields)
	default:
		fmt.Fprintf(l.opts.Stderr, "%s %s %s%s\n", l.opts.Prefix, level, msg, fields)
	}
}

func (l *Lifecycle) Debug(msg string, keysAndValues ...interface{}) {
	l.RecordEvent(LevelDebug, msg, keysAndValues...)
}

func (l *Lifecycle) Info(msg string, keysAndValues ...interface{}) {
	l.RecordEvent(LevelInfo, msg, keysAndValues...)
}

func (l *Lifecycle) Warn(msg string, keysAndValues ...interface{}) {
	l.RecordEvent(LevelWarn, msg, keysAndValues...)
}

func (l *Lifecycle) Error(msg string, keysAndValues ...interface{}) {
	l.RecordEvent(LevelError, msg, keysAndValues...)
}

// Fail is the single termination handler for fatal errors. It logs the error
// with its exit code, writes the fail marker and closes the log. The returned
// code is what the process must exit with.
func (l *Lifecycle) Fail(err error) int {
	code := ExitCode(err)
	if code == 0 {
		code = 1
	}

	msg := "run failed"
	if err != nil {
		msg = err.Error()
	}
	l.Error(msg, "class", ClassOf(err), "code", code)

	if l.opts.MarkerPath != "" {
		if markErr := WriteMarker(l.opts.MarkerPath, code, l.runID, l.opts.Now()); markErr != nil {
			fmt.Fprintf(l.opts.Stderr, "%s ERROR write fail marker: %v\n", l.opts.Prefix, markErr)
		}
	}

	l.close()
	return code
}

// Succeed removes the fail marker, records completion and closes the log.
func (l *Lifecycle) Succeed() error {
	if !l.begun {
		return ErrNotBegun
	}

	if l.opts.MarkerPath != "" {
		if err := RemoveMarker(l.opts.MarkerPath); err != nil {
			l.Warn("could not remove fail marker", "path", l.opts.MarkerPath, "error", err)
		}
	}

	l.Info("run completed")
	l.close()
	return nil
}

func (l *Lifecycle) close() {
	if l.finished {
		return
	}
	l.finished = true
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}
}

// formatFields renders key/value pairs as " k=v k2=v2". Values containing
// spaces are quoted.
func formatFields(keysAndValues []interface{}) string {
	if len(keysAndValues) == 0 {
		return ""
	}

	var b strings.Builder
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%s", keysAndValues[i], quoteValue(keysAndValues[i+1]))
	}
	// Orphan key with no value
	if len(keysAndValues)%2 != 0 {
		fmt.Fprintf(&b, " %v=", keysAndValues[len(keysAndValues)-1])
	}
	return b.String()
}

func quoteValue(v interface{}) string {
	s := fmt.Sprintf("%v", v)
	if strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

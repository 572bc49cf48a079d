package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// Entry is one event captured by RecordingLogger.
type Entry struct {
	Level  string
	Msg    string
	Fields []interface{}
}

// String renders the entry as "LEVEL msg k=v ...".
func (e Entry) String() string {
	var b strings.Builder
	b.WriteString(e.Level)
	b.WriteByte(' ')
	b.WriteString(e.Msg)
	for i := 0; i+1 < len(e.Fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", e.Fields[i], e.Fields[i+1])
	}
	return b.String()
}

// RecordingLogger captures log events in memory. It satisfies
// lifecycle.Logger.
type RecordingLogger struct {
	mu      sync.Mutex
	Entries []Entry
}

func (l *RecordingLogger) record(level, msg string, kv []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Entries = append(l.Entries, Entry{Level: level, Msg: msg, Fields: kv})
}

func (l *RecordingLogger) Debug(msg string, kv ...interface{}) { l.record("DEBUG", msg, kv) }
func (l *RecordingLogger) Info(msg string, kv ...interface{})  { l.record("INFO", msg, kv) }
func (l *RecordingLogger) Warn(msg string, kv ...interface{})  { l.record("WARN", msg, kv) }
func (l *RecordingLogger) Error(msg string, kv ...interface{}) { l.record("ERROR", msg, kv) }

// Messages returns the messages logged at level.
func (l *RecordingLogger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.Entries {
		if e.Level == level {
			out = append(out, e.Msg)
		}
	}
	return out
}

// Warnings returns the rendered WARN entries.
func (l *RecordingLogger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.Entries {
		if e.Level == "WARN" {
			out = append(out, e.String())
		}
	}
	return out
}

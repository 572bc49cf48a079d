package lifecycle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FailToken is the first line of every fail marker. Monitors match on it.
const FailToken = "FAILED"

// MarkerInfo is the parsed content of a fail marker.
type MarkerInfo struct {
	Code      int
	RunID     string
	Timestamp time.Time
}

// WriteMarker writes the fail marker at path, creating parent directories.
func WriteMarker(path string, code int, runID string, at time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create marker directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}

	data := fmt.Sprintf("%s\ncode=%d\nrun=%s\ntimestamp=%s\n",
		FailToken, code, runID, at.UTC().Format(time.RFC3339))
	if _, err := file.WriteString(data); err != nil {
		file.Close()
		return fmt.Errorf("write marker data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync marker file: %w", err)
	}

	return file.Close()
}

// RemoveMarker deletes the fail marker. A missing marker is not an error.
func RemoveMarker(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove marker file: %w", err)
	}
	return nil
}

// ReadMarker parses the fail marker at path. It returns (nil, nil) when no
// marker exists.
func ReadMarker(path string) (*MarkerInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open marker file: %w", err)
	}
	defer file.Close()

	info := &MarkerInfo{}
	scanner := bufio.NewScanner(file)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			first = false
			if line != FailToken {
				return nil, fmt.Errorf("marker %s does not start with %s", path, FailToken)
			}
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "code":
			if code, err := strconv.Atoi(value); err == nil {
				info.Code = code
			}
		case "run":
			info.RunID = value
		case "timestamp":
			if ts, err := time.Parse(time.RFC3339, value); err == nil {
				info.Timestamp = ts
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan marker file: %w", err)
	}
	if first {
		return nil, fmt.Errorf("marker %s is empty", path)
	}

	return info, nil
}

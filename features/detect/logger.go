package detect

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// CheckLogEntry is one line of the detection audit log.
type CheckLogEntry struct {
	Timestamp     time.Time     `json:"timestamp"`
	ContentLength int           `json:"content_length"`
	Duplicate     bool          `json:"duplicate"`
	Method        string        `json:"method"`
	Similarity    float64       `json:"similarity"`
	Duration      time.Duration `json:"duration_ns"`
	LatencyMs     int64         `json:"latency_ms"`
}

// CheckLogger appends one JSON line per classification decision.
type CheckLogger struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewCheckLogger(w io.Writer) *CheckLogger {
	return &CheckLogger{writer: w}
}

func NewFileCheckLogger(path string) (*CheckLogger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}

	cleanPath := filepath.Clean(path)
	f, err := os.OpenFile(cleanPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) // #nosec G304 -- path is from application config, not user input
	if err != nil {
		return nil, err
	}
	return NewCheckLogger(f), nil
}

func (l *CheckLogger) Log(entry CheckLogEntry) {
	entry.Timestamp = time.Now()
	entry.LatencyMs = entry.Duration.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := json.NewEncoder(l.writer).Encode(entry); err != nil {
		slog.Error("failed to write check log entry", "error", err)
	}
}

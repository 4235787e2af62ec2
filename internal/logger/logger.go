package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/gzhole/rulebench/internal/redact"
)

// defaultMaxLogBytes is the size at which the invocation log is rotated to
// <path>.1 when opened.
const defaultMaxLogBytes = 10 * 1024 * 1024

// InvocationEvent records one analyzer run against one unit.
type InvocationEvent struct {
	Timestamp   string   `json:"timestamp"`
	Unit        string   `json:"unit"`
	Pack        string   `json:"pack"`
	Analyzer    string   `json:"analyzer"`
	Args        []string `json:"args,omitempty"`
	Attempt     int      `json:"attempt"`
	DurationMS  int64    `json:"duration_ms"`
	ExitCode    int      `json:"exit_code"`
	Outcome     string   `json:"outcome"`
	Diagnostics int      `json:"diagnostics"`
	Warnings    []string `json:"warnings,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// Invocation outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeTimeout = "timeout"
	OutcomeFailed  = "failed"
)

// InvocationLogger appends InvocationEvents as JSON lines. It is safe for
// concurrent use by the adapter's workers.
type InvocationLogger struct {
	file     *os.File
	mu       sync.Mutex
	redactor *redact.Redactor
}

// New opens (or creates) the log at path. Secrets are scrubbed from every
// event before it is written.
func New(path string, secrets ...string) (*InvocationLogger, error) {
	if err := rotate(path, defaultMaxLogBytes); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	return &InvocationLogger{file: file, redactor: redact.New(secrets...)}, nil
}

func rotate(path string, limit int64) error {
	info, err := os.Stat(path)
	if err != nil || info.Size() < limit {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotating invocation log: %w", err)
	}
	return nil
}

// Log writes one event. A nil logger discards events.
func (l *InvocationLogger) Log(event InvocationEvent) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	event.Args = l.redactor.Args(event.Args)
	if event.Error != "" {
		event.Error = l.redactor.String(event.Error)
	}
	for i, w := range event.Warnings {
		event.Warnings[i] = l.redactor.String(w)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	data = append(data, '\n')
	_, err = l.file.Write(data)
	return err
}

func (l *InvocationLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

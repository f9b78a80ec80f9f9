// Package diag provides the append-only diagnostics log for the update subsystem.
// Every entry is a single line prefixed with a millisecond timestamp. Writes are
// serialized, and a failing log file never interrupts the caller: the first write
// error is reported to stderr and later ones are dropped.
package diag

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

const (
	// LogFileName is the name of the diagnostics log file.
	LogFileName = "CareLite_Update.log"
	// TimeFormat is the timestamp prefix written on every line.
	TimeFormat = "2006-01-02 15:04:05.000"
)

// Log is a serialized, append-only diagnostics sink.
type Log struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	logger  *log.Logger
	console *log.Logger
}

// Option configures Open.
type Option func(*Log)

// WithConsole mirrors every entry at or above level to w.
func WithConsole(w io.Writer, level log.Level) Option {
	return func(l *Log) {
		l.console = log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.000",
			Level:           level,
			Prefix:          "update",
		})
	}
}

// DefaultPath returns the conventional log location in the OS temp directory.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), LogFileName)
}

// Open opens (or creates) the log at path in append mode.
func Open(path string, opts ...Option) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		path = DefaultPath()
	}
	//nolint:gosec // G301: log directory needs standard permissions
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	//nolint:gosec // G304: log path comes from configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &Log{path: path, file: f}
	l.logger = newFileLogger(&guardedWriter{w: f, path: path})
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// New builds a Log over an arbitrary writer. Used by tests and by callers that
// already own the destination.
func New(w io.Writer, opts ...Option) *Log {
	l := &Log{logger: newFileLogger(&guardedWriter{w: w})}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Discard returns a Log that drops everything.
func Discard() *Log {
	return New(io.Discard)
}

func newFileLogger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Level:           log.DebugLevel,
		Formatter:       log.TextFormatter,
	})
}

// Path returns the file backing the log, or "" for writer-backed logs.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Printf appends an informational entry.
func (l *Log) Printf(format string, v ...any) {
	l.write(log.InfoLevel, fmt.Sprintf(format, v...))
}

// Debugf appends a debug entry.
func (l *Log) Debugf(format string, v ...any) {
	l.write(log.DebugLevel, fmt.Sprintf(format, v...))
}

// Warnf appends a warning entry.
func (l *Log) Warnf(format string, v ...any) {
	l.write(log.WarnLevel, fmt.Sprintf(format, v...))
}

// Errorf appends an error entry.
func (l *Log) Errorf(format string, v ...any) {
	l.write(log.ErrorLevel, fmt.Sprintf(format, v...))
}

func (l *Log) write(level log.Level, msg string) {
	if l == nil {
		return
	}
	msg = singleLine(msg)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger != nil {
		l.logger.Log(level, msg)
	}
	if l.console != nil {
		l.console.Log(level, msg)
	}
}

// Close closes the log file if open. Safe to call more than once.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.logger = nil
	return err
}

func singleLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", " | ")
}

// guardedWriter keeps log failures away from the caller.
type guardedWriter struct {
	w        io.Writer
	path     string
	reported sync.Once
}

func (g *guardedWriter) Write(p []byte) (int, error) {
	if _, err := g.w.Write(p); err != nil {
		g.reported.Do(func() {
			_, _ = fmt.Fprintf(os.Stderr, "diagnostics log %s unavailable: %v\n", g.path, err)
		})
	}
	return len(p), nil
}

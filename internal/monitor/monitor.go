// Package monitor owns the two append-only files the supervisor writes: the
// monitor log (one separator plus timestamped lifecycle lines per iteration)
// and the output log (the raw interleaved stdout/stderr of every child run).
// Neither file is ever rotated or truncated.
package monitor

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const timeLayout = "2006-01-02 15:04:05"

var separator = strings.Repeat("=", 60)

// Log appends lifecycle lines to the monitor log.
type Log struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// Open opens (or creates) the monitor log at path in append mode.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302 G304
	if err != nil {
		return nil, fmt.Errorf("open monitor log %s: %w", path, err)
	}
	return &Log{w: f, c: f}, nil
}

// NewLog wraps an arbitrary writer; used for embedding and tests.
func NewLog(w io.Writer) *Log { return &Log{w: w} }

// Starting writes the separator and the start line for one iteration.
func (l *Log) Starting(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "%s\n[%s] Starting %s ...\n", separator, timestamp(), name)
	return err
}

// Exited writes the stop/crash line. The literal "exit code <c>" substring is
// load-bearing: it is what operators grep for.
func (l *Log) Exited(name string, code int, delay time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "[%s] %s stopped/crashed with exit code %d. Restarting in %d seconds...\n",
		timestamp(), name, code, int(delay.Seconds()))
	return err
}

// StartFailed records a spawn failure. There is no exit code to report; the
// loop retries after the same fixed delay.
func (l *Log) StartFailed(name string, cause error, delay time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, err := fmt.Fprintf(l.w, "[%s] Failed to start %s: %v. Retrying in %d seconds...\n",
		timestamp(), name, cause, int(delay.Seconds()))
	return err
}

func (l *Log) Close() error {
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}

// Timestamps are local time, matching what an operator tailing the file sees.
func timestamp() string { return time.Now().Format(timeLayout) }

// OpenOutput opens the child output log at path in append mode. Every run's
// combined stdout/stderr is written back to back with no per-run delimiter.
func OpenOutput(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) // #nosec G302 G304
	if err != nil {
		return nil, fmt.Errorf("open output log %s: %w", path, err)
	}
	return f, nil
}

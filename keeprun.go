// Package keeprun keeps a single external program running: launch it, wait
// for it to exit, append the outcome to an append-only monitor log, sleep a
// fixed interval, launch it again, forever.
package keeprun

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/keeprun/keeprun/internal/child"
	"github.com/keeprun/keeprun/internal/config"
	"github.com/keeprun/keeprun/internal/env"
	"github.com/keeprun/keeprun/internal/history"
	"github.com/keeprun/keeprun/internal/history/factory"
	"github.com/keeprun/keeprun/internal/logger"
	"github.com/keeprun/keeprun/internal/metrics"
	"github.com/keeprun/keeprun/internal/monitor"
	"github.com/keeprun/keeprun/internal/server"
	"github.com/keeprun/keeprun/internal/supervisor"
)

// Re-export core types for embedding.

type Config = config.Config

type Status = supervisor.Status

// LoadConfig parses a TOML config file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// Supervisor is a ready-to-run restart loop with its log files and optional
// history sink opened.
type Supervisor struct {
	inner *supervisor.Supervisor
	mon   *monitor.Log
	out   interface{ Close() error }
	sink  history.Sink
}

// New assembles a Supervisor from cfg: merges the child environment, opens
// the monitor and output logs in append mode, and connects the history sink
// when a DSN is configured.
func New(cfg *Config) (*Supervisor, error) {
	e := env.New()
	if cfg.Child.UseOSEnv {
		e.FromOS()
	}
	for _, f := range cfg.Child.EnvFiles {
		if err := e.LoadFile(f); err != nil {
			return nil, err
		}
	}
	for _, kv := range cfg.Child.Env {
		e.Set(kv)
	}

	mon, err := monitor.Open(cfg.Log.Monitor)
	if err != nil {
		return nil, err
	}
	out, err := monitor.OpenOutput(cfg.Log.Output)
	if err != nil {
		_ = mon.Close()
		return nil, err
	}

	var sink history.Sink
	if cfg.History.DSN != "" {
		sink, err = factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			_ = mon.Close()
			_ = out.Close()
			return nil, fmt.Errorf("connect history sink: %w", err)
		}
	}

	inner := supervisor.New(supervisor.Options{
		Spec: child.Spec{
			Name:    cfg.Child.Name,
			Command: cfg.Child.Command,
			WorkDir: cfg.Child.WorkDir,
			Env:     e.Merge(),
		},
		RestartInterval: cfg.Loop.RestartInterval,
		Monitor:         mon,
		Output:          out,
		Sink:            sink,
		Logger:          logger.New(cfg.LoggerConfig()),
	})
	return &Supervisor{inner: inner, mon: mon, out: out, sink: sink}, nil
}

// Run drives the loop until ctx is canceled. Under normal operation it never
// returns: pass context.Background() and let the operating system terminate
// the process.
func (s *Supervisor) Run(ctx context.Context) error {
	return s.inner.Run(ctx)
}

// Status returns the current loop snapshot.
func (s *Supervisor) Status() Status { return s.inner.Status() }

// Close releases the log files and the history sink. Only meaningful for
// embedders whose context has canceled Run.
func (s *Supervisor) Close() error {
	var first error
	if err := s.mon.Close(); err != nil {
		first = err
	}
	if err := s.out.Close(); err != nil && first == nil {
		first = err
	}
	if s.sink != nil {
		if err := s.sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RegisterMetricsDefault registers the keeprun collectors with the default
// Prometheus registry.
func RegisterMetricsDefault() error { return metrics.Register(prometheus.DefaultRegisterer) }

// NewTelemetryServer starts the read-only /status and /metrics server on
// addr. Call Close on the returned server to stop it.
func NewTelemetryServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return server.NewServer(addr, basePath, s.inner)
}

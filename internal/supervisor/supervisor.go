// Package supervisor implements the restart loop: launch the child, wait for
// it to exit, log the outcome, sleep a fixed interval, launch it again.
// There is no exit condition inside the loop; only context cancellation (for
// embedders and tests) or external termination of the whole process stops it.
package supervisor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/keeprun/keeprun/internal/child"
	"github.com/keeprun/keeprun/internal/history"
	"github.com/keeprun/keeprun/internal/metrics"
	"github.com/keeprun/keeprun/internal/monitor"
)

// DefaultRestartInterval is the fixed delay between a child exit and the next
// launch. There is deliberately no backoff and no retry cap: a crash loop
// restarts every interval, forever.
const DefaultRestartInterval = 10 * time.Second

// Options assembles one Supervisor. Monitor and Output are required; Sink and
// Logger are optional.
type Options struct {
	Spec            child.Spec
	RestartInterval time.Duration
	Monitor         *monitor.Log
	Output          io.Writer
	Sink            history.Sink
	Logger          *slog.Logger
}

// Status is a point-in-time snapshot of the loop.
type Status struct {
	Name         string    `json:"name"`
	Running      bool      `json:"running"`
	PID          int       `json:"pid"`
	StartedAt    time.Time `json:"started_at"`
	LastExitCode int       `json:"last_exit_code"`
	Runs         int       `json:"runs"`     // completed child runs
	Restarts     int       `json:"restarts"` // launches after the first
}

type Supervisor struct {
	opts   Options
	mu     sync.Mutex
	status Status
}

func New(opts Options) *Supervisor {
	if opts.RestartInterval <= 0 {
		opts.RestartInterval = DefaultRestartInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{opts: opts, status: Status{Name: opts.Spec.Name}}
}

// Status returns a copy of the current snapshot.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run drives the loop until ctx is canceled. It only ever returns ctx's
// error: a child exit of any code, and even a spawn failure, trigger the same
// fixed-delay restart. When cancellation lands while a child is running, the
// child is killed and no restart line is written.
func (s *Supervisor) Run(ctx context.Context) error {
	name := s.opts.Spec.Name
	launches := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := s.opts.Monitor.Starting(name); err != nil {
			s.opts.Logger.Error("monitor log write failed", "err", err)
		}

		h, err := child.Start(s.opts.Spec, s.opts.Output)
		if err != nil {
			s.opts.Logger.Error("child start failed", "child", name, "err", err)
			_ = s.opts.Monitor.StartFailed(name, err, s.opts.RestartInterval)
			metrics.IncStartFailure(name)
			if !s.sleep(ctx) {
				return ctx.Err()
			}
			continue
		}
		launches++

		s.setRunning(h.PID(), h.StartedAt(), launches)
		metrics.IncStart(name)
		metrics.SetRunning(name, true)
		s.record(ctx, history.EventStart, history.Record{
			Name: name, PID: h.PID(), Run: launches, StartedAt: h.StartedAt(),
		})
		s.opts.Logger.Info("child started", "child", name, "pid", h.PID(), "run", launches)

		res, werr := h.Wait(ctx)
		s.setStopped(res)
		metrics.SetRunning(name, false)
		if werr != nil {
			// Supervisor shutdown: the child was terminated on our way out.
			s.opts.Logger.Info("supervisor stopping, child terminated", "child", name, "pid", res.PID)
			return werr
		}

		metrics.IncExit(name, res.Code)
		metrics.ObserveRunDuration(name, res.Duration().Seconds())
		s.record(ctx, history.EventExit, history.Record{
			Name: name, PID: res.PID, Run: launches,
			StartedAt: res.StartedAt, StoppedAt: res.StoppedAt, ExitCode: res.Code,
		})
		if err := s.opts.Monitor.Exited(name, res.Code, s.opts.RestartInterval); err != nil {
			s.opts.Logger.Error("monitor log write failed", "err", err)
		}
		s.opts.Logger.Info("child exited", "child", name, "pid", res.PID,
			"code", res.Code, "uptime", res.Duration())

		if !s.sleep(ctx) {
			return ctx.Err()
		}
	}
}

// sleep blocks for the restart interval; false means ctx was canceled first.
func (s *Supervisor) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.opts.RestartInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// record forwards a history event. Sink failures are logged and absorbed;
// persistence must never break the loop.
func (s *Supervisor) record(ctx context.Context, t history.EventType, rec history.Record) {
	if s.opts.Sink == nil {
		return
	}
	ev := history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}
	if err := s.opts.Sink.Send(ctx, ev); err != nil {
		s.opts.Logger.Warn("history sink send failed", "type", string(t), "err", err)
	}
}

func (s *Supervisor) setRunning(pid int, startedAt time.Time, launches int) {
	s.mu.Lock()
	s.status.Running = true
	s.status.PID = pid
	s.status.StartedAt = startedAt
	s.status.Restarts = launches - 1
	s.mu.Unlock()
}

func (s *Supervisor) setStopped(res child.Result) {
	s.mu.Lock()
	s.status.Running = false
	s.status.LastExitCode = res.Code
	s.status.Runs++
	s.mu.Unlock()
}

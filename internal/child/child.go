package child

import (
	"context"
	"io"
	"os/exec"
	"time"
)

// Result captures the outcome of one completed child run.
type Result struct {
	PID       int
	Code      int
	StartedAt time.Time
	StoppedAt time.Time
}

func (r Result) Duration() time.Duration { return r.StoppedAt.Sub(r.StartedAt) }

// Handle is one started child run. It is not reusable.
type Handle struct {
	cmd       *exec.Cmd
	startedAt time.Time
}

// Start launches the child with both output streams redirected to output.
// The caller owns the output writer; Start never closes it, so consecutive
// runs append to the same destination back to back.
func Start(spec Spec, output io.Writer) (*Handle, error) {
	cmd := spec.BuildCommand()
	if spec.WorkDir != "" {
		cmd.Dir = spec.WorkDir
	}
	if spec.Env != nil {
		cmd.Env = spec.Env
	}
	cmd.Stdout = output
	cmd.Stderr = output
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Handle{cmd: cmd, startedAt: time.Now()}, nil
}

func (h *Handle) PID() int             { return h.cmd.Process.Pid }
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Wait blocks until the child exits and returns its integer exit status.
// If ctx is canceled first, the child is killed, reaped, and ctx's error is
// returned alongside the partial result.
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	done := make(chan error, 1)
	go func() { done <- h.cmd.Wait() }()

	res := Result{PID: h.cmd.Process.Pid, StartedAt: h.startedAt}
	select {
	case <-done:
		res.StoppedAt = time.Now()
		res.Code = exitCode(h.cmd.ProcessState)
		return res, nil
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		<-done
		res.StoppedAt = time.Now()
		res.Code = exitCode(h.cmd.ProcessState)
		return res, ctx.Err()
	}
}

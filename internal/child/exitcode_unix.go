//go:build !windows

package child

import (
	"os"
	"syscall"
)

// exitCode extracts the integer exit status from a reaped process. A child
// killed by a signal reports the shell convention 128+signal, so the status
// stays a plain int everywhere above this point.
func exitCode(ps *os.ProcessState) int {
	if ps == nil {
		return -1
	}
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return ps.ExitCode()
}

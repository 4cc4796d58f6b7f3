package child

import (
	"os/exec"
	"strings"
)

// Spec describes the single supervised program.
type Spec struct {
	Name    string   // label used in logs and metrics
	Command string   // command line to start the child
	WorkDir string   // optional working dir
	Env     []string // full child environment; nil inherits the supervisor's, empty non-nil is an empty environment
}

// BuildCommand constructs an *exec.Cmd for spec.Command. A command that
// already spells out a shell invocation ("sh -c '...'") is honored without
// wrapping it in a second shell; commands containing shell metacharacters are
// run through /bin/sh -c; anything else is split on whitespace and executed
// directly.
func (s *Spec) BuildCommand() *exec.Cmd {
	cmdStr := strings.TrimSpace(s.Command)
	if cmdStr == "" {
		// #nosec G204
		return exec.Command("/bin/true")
	}
	if script, ok := explicitShellScript(cmdStr); ok {
		// Absolute shell path so a stripped-down Env still resolves it.
		// #nosec G204
		return exec.Command("/bin/sh", "-c", script)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.Command("/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.Command(parts[0], parts[1:]...)
}

// explicitShellScript matches "sh -c <ARG>" (or an absolute-path variant) at
// the start of cmdStr and returns the script after -c. One surrounding pair
// of quotes is stripped so redirections inside the script still parse.
func explicitShellScript(cmdStr string) (string, bool) {
	trim := strings.TrimLeft(cmdStr, " \t")
	for _, p := range []string{"sh -c ", "/bin/sh -c ", "/usr/bin/sh -c "} {
		if !strings.HasPrefix(trim, p) {
			continue
		}
		script := trim[len(p):]
		if n := len(script); n >= 2 {
			if (script[0] == '\'' && script[n-1] == '\'') || (script[0] == '"' && script[n-1] == '"') {
				script = script[1 : n-1]
			}
		}
		return script, true
	}
	return "", false
}

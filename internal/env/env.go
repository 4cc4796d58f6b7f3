package env

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type Var map[string]string

// Env composes the environment passed to the child process.
// Precedence, lowest to highest: OS environment (optional), env files in
// order, inline overrides.
type Env struct {
	base  Var
	files Var
	extra Var
}

func New() *Env {
	return &Env{files: make(Var), extra: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i > 0 {
			base[kv[:i]] = kv[i+1:]
		}
	}
	e.base = base
}

// LoadFile reads a dotenv-style file: KEY=VALUE lines, blank lines and lines
// starting with # ignored. No export keyword, no quoting rules.
func (e *Env) LoadFile(path string) error {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return fmt.Errorf("read env file %s: %w", path, err)
	}
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.IndexByte(line, '='); i > 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			e.files[k] = v
		}
	}
	return nil
}

// Set records an inline override, given as "KEY=VALUE".
func (e *Env) Set(kv string) {
	if i := strings.IndexByte(kv, '='); i > 0 {
		e.extra[kv[:i]] = kv[i+1:]
	}
}

// Merge returns the composed environment as a "K=V" slice. ${VAR} references
// are expanded against the composed map (single pass, no recursion).
func (e *Env) Merge() []string {
	m := make(Var)
	for k, v := range e.base {
		m[k] = v
	}
	for k, v := range e.files {
		m[k] = v
	}
	for k, v := range e.extra {
		m[k] = v
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+os.Expand(v, func(ref string) string { return m[ref] }))
	}
	return out
}

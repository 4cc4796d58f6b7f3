//go:build !windows

package keeprun

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "keeprun.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestSupervisorEndToEnd(t *testing.T) {
	dir := t.TempDir()
	historyPath := filepath.Join(dir, "history.db")
	path := writeConfig(t, dir, fmt.Sprintf(`
[child]
name = "bot"
command = "sh -c 'echo alive; exit 0'"

[loop]
restart_interval = "30ms"

[history]
dsn = "sqlite://%s"
`, historyPath))

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Log.Monitor != filepath.Join(dir, "monitor.log") {
		t.Errorf("monitor path = %q", cfg.Log.Monitor)
	}

	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := sup.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run error = %v, want context.DeadlineExceeded", err)
	}
	if err := sup.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	st := sup.Status()
	if st.Runs < 1 {
		t.Errorf("Runs = %d, want >= 1", st.Runs)
	}
	if st.Name != "bot" {
		t.Errorf("Name = %q, want bot", st.Name)
	}

	mon, err := os.ReadFile(cfg.Log.Monitor)
	if err != nil {
		t.Fatalf("monitor log missing: %v", err)
	}
	if !strings.Contains(string(mon), "Starting bot ...") {
		t.Errorf("monitor log missing start line:\n%s", mon)
	}
	if !strings.Contains(string(mon), "stopped/crashed with exit code 0") {
		t.Errorf("monitor log missing exit line:\n%s", mon)
	}

	out, err := os.ReadFile(cfg.Log.Output)
	if err != nil {
		t.Fatalf("output log missing: %v", err)
	}
	if !strings.Contains(string(out), "alive") {
		t.Errorf("output log missing child output:\n%s", out)
	}

	if _, err := os.Stat(historyPath); err != nil {
		t.Errorf("history database not created: %v", err)
	}
}

func TestUseOSEnvOptOut(t *testing.T) {
	t.Setenv("KEEPRUN_ENV_CHECK", "leaked")

	dir := t.TempDir()
	path := writeConfig(t, dir, `
[child]
name = "bot"
command = "sh -c 'echo V=$KEEPRUN_ENV_CHECK'"
use_os_env = false

[loop]
restart_interval = "1s"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	sup, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_ = sup.Run(ctx)
	if err := sup.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	out, err := os.ReadFile(cfg.Log.Output)
	if err != nil {
		t.Fatalf("output log missing: %v", err)
	}
	if strings.Contains(string(out), "leaked") {
		t.Errorf("use_os_env = false leaked the supervisor environment:\n%s", out)
	}
	if !strings.Contains(string(out), "V=") {
		t.Errorf("child did not run:\n%s", out)
	}
}

func TestNewBadHistoryDSN(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[child]
command = "sleep 1"

[history]
dsn = "redis://localhost:6379"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for unsupported history DSN")
	}
}

func TestNewBadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[child]
command = "sleep 1"
env_files = ["absent.env"]
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

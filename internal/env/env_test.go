package env

import (
	"os"
	"path/filepath"
	"testing"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	return path
}

func asMap(t *testing.T, kvs []string) map[string]string {
	t.Helper()
	m := make(map[string]string)
	for _, kv := range kvs {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				m[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return m
}

func TestLoadFileParsing(t *testing.T) {
	path := writeEnvFile(t, `
# a comment
API_KEY=secret123

  CHANNEL_ID = abc-def
MALFORMED
=novalue
`)
	e := New()
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	m := asMap(t, e.Merge())
	if m["API_KEY"] != "secret123" {
		t.Errorf("API_KEY = %q, want secret123", m["API_KEY"])
	}
	if m["CHANNEL_ID"] != "abc-def" {
		t.Errorf("CHANNEL_ID = %q, want abc-def", m["CHANNEL_ID"])
	}
	if _, ok := m["MALFORMED"]; ok {
		t.Error("malformed line without '=' should be ignored")
	}
}

func TestLoadFileMissing(t *testing.T) {
	e := New()
	if err := e.LoadFile(filepath.Join(t.TempDir(), "absent.env")); err == nil {
		t.Fatal("expected error for missing env file")
	}
}

func TestMergePrecedence(t *testing.T) {
	path := writeEnvFile(t, "TOKEN=from-file\nONLY_FILE=yes\n")

	t.Setenv("TOKEN", "from-os")
	t.Setenv("ONLY_OS", "yes")

	e := New()
	e.FromOS()
	if err := e.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	e.Set("TOKEN=from-inline")

	m := asMap(t, e.Merge())
	if m["TOKEN"] != "from-inline" {
		t.Errorf("inline override lost: TOKEN = %q", m["TOKEN"])
	}
	if m["ONLY_FILE"] != "yes" {
		t.Errorf("file var lost: ONLY_FILE = %q", m["ONLY_FILE"])
	}
	if m["ONLY_OS"] != "yes" {
		t.Errorf("OS var lost: ONLY_OS = %q", m["ONLY_OS"])
	}
}

func TestMergeWithoutOSBase(t *testing.T) {
	e := New()
	e.Set("A=1")
	m := asMap(t, e.Merge())
	if len(m) != 1 || m["A"] != "1" {
		t.Errorf("unexpected merge result: %v", m)
	}
}

func TestMergeExpansion(t *testing.T) {
	e := New()
	e.Set("HOME_DIR=/srv/bot")
	e.Set("DATA=${HOME_DIR}/data")
	m := asMap(t, e.Merge())
	if m["DATA"] != "/srv/bot/data" {
		t.Errorf("DATA = %q, want /srv/bot/data", m["DATA"])
	}
}

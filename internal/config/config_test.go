package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("expected missing file to be ignored: %v", err)
	}
	if cfg.Store.Path != nil || cfg.Log.Level != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
	if _, err := LoadConfig(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := writeConfig(t, `
[store]
path = "/tmp/x.db"
scope = "score-store-v2"

[quiz]
category = "kalat"
choices = 3

[client]
ready-timeout = "750ms"

[log]
level = "debug"
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *cfg.Store.Path != "/tmp/x.db" || *cfg.Store.Scope != "score-store-v2" {
		t.Fatalf("unexpected store section %+v", cfg.Store)
	}
	if *cfg.Quiz.Category != "kalat" || *cfg.Quiz.Choices != 3 || *cfg.Log.Level != "debug" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	d, ok, err := cfg.ReadyTimeoutDuration()
	if err != nil || !ok || d != 750*time.Millisecond {
		t.Fatalf("unexpected ready timeout %v %v %v", d, ok, err)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":   "[quiz]\nwords = 3\n",
		"bad timeout":   "[client]\nready-timeout = \"soon\"\n",
		"zero timeout":  "[client]\nready-timeout = \"0s\"\n",
		"empty scope":   "[store]\nscope = \"\"\n",
		"too many opts": "[quiz]\nchoices = 12\n",
		"bad toml":      "[quiz\n",
	}
	for name, body := range cases {
		if _, err := LoadConfig(writeConfig(t, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDefaultPathsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	t.Setenv("XDG_STATE_HOME", "/state")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "lajit", "config.toml") {
		t.Fatalf("unexpected config path %q", got)
	}
	if got := DefaultDBPath(); got != filepath.Join("/data", "lajit", "lajit.db") {
		t.Fatalf("unexpected db path %q", got)
	}
	if got := DefaultLogPath(); got != filepath.Join("/state", "lajit", "lajit.log") {
		t.Fatalf("unexpected log path %q", got)
	}
}

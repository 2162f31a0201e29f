package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "samaya.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Timer.TickInterval.Duration != time.Second {
		t.Errorf("TickInterval = %v, want 1s", cfg.Timer.TickInterval)
	}
	if cfg.Timer.MaxAway.Duration != 24*time.Hour {
		t.Errorf("MaxAway = %v, want 24h", cfg.Timer.MaxAway)
	}
	if cfg.Timer.FlushInterval.Duration != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", cfg.Timer.FlushInterval)
	}
	if cfg.Store.Backend != BackendFile {
		t.Errorf("Backend = %q, want %q", cfg.Store.Backend, BackendFile)
	}
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
[timer]
tick_interval = "500ms"
max_away = "12h"

[store]
backend = "memory"
max_bytes = 5242880

[log]
level = "debug"
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if cfg.Timer.TickInterval.Duration != 500*time.Millisecond {
		t.Errorf("TickInterval = %v, want 500ms", cfg.Timer.TickInterval)
	}
	if cfg.Timer.MaxAway.Duration != 12*time.Hour {
		t.Errorf("MaxAway = %v, want 12h", cfg.Timer.MaxAway)
	}
	// Unset keys keep their defaults.
	if cfg.Timer.FlushInterval.Duration != 5*time.Second {
		t.Errorf("FlushInterval = %v, want default 5s", cfg.Timer.FlushInterval)
	}
	if cfg.Store.Backend != BackendMemory || cfg.Store.MaxBytes != 5242880 {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"syntax", "[timer", "parse"},
		{"bad duration", "[timer]\ntick_interval = \"soon\"", "parse"},
		{"zero interval", "[timer]\nflush_interval = \"0s\"", "flush_interval"},
		{"negative away", "[timer]\nmax_away = \"-1h\"", "max_away"},
		{"unknown backend", "[store]\nbackend = \"sqlite\"", "unknown store.backend"},
		{"file without path", "[store]\nbackend = \"file\"\npath = \"\"", "store.path"},
		{"nats without bucket", "[store]\nbackend = \"nats\"\nbucket = \"\"", "store.bucket"},
		{"nats notify without url", "[store]\nnats_url = \"\"\n[notify]\nbackend = \"nats\"", "nats_url"},
		{"unknown notify", "[notify]\nbackend = \"kafka\"", "unknown notify.backend"},
		{"bad level", "[log]\nlevel = \"loud\"", "log.level"},
		{"unknown key", "[timer]\ntick = \"1s\"", "unknown keys"},
		{"negative quota", "[store]\nmax_bytes = -1", "max_bytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_ExpandsHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	cfg, err := LoadFile(writeConfig(t, "[store]\npath = \"~/timers/state.json\""))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	want := filepath.Join(home, "timers", "state.json")
	if cfg.Store.Path != want {
		t.Errorf("Path = %q, want %q", cfg.Store.Path, want)
	}
}

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("HOME", dir)

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.Store.Backend != Default().Store.Backend {
		t.Errorf("Load without a file should return defaults")
	}
}

func TestLoad_CurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "samaya.toml"), []byte("[log]\nlevel = \"warn\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, path, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if path != "samaya.toml" || cfg.Log.Level != "warn" {
		t.Errorf("Load = %q, level %q; want samaya.toml, warn", path, cfg.Log.Level)
	}
}

func TestDurationText(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte(" 1m30s ")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if d.Duration != 90*time.Second {
		t.Errorf("Duration = %v, want 1m30s", d.Duration)
	}
	out, _ := d.MarshalText()
	if string(out) != "1m30s" {
		t.Errorf("MarshalText = %q, want 1m30s", out)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != Default() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadParsesYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eidetica.yaml")
	contents := "database_file: custom.db\nkey_name: alice\nlog_level: debug\nlog_json: true\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseFile != "custom.db" || cfg.KeyName != "alice" || cfg.LogLevel != "debug" || !cfg.LogJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eidetica.yaml")
	if err := os.WriteFile(path, []byte("database_file: file.db\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("EIDETICA_DATABASE_FILE", "env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DatabaseFile != "env.db" {
		t.Fatalf("expected env override, got %q", cfg.DatabaseFile)
	}
}

func TestApplyFlagOverridesWinsOverAll(t *testing.T) {
	cfg := Config{DatabaseFile: "file.db", KeyName: "k", LogLevel: "info", LogJSON: false}
	ApplyFlagOverrides(&cfg, "flag.db", "", "", true, true)
	if cfg.DatabaseFile != "flag.db" {
		t.Fatalf("expected flag override, got %q", cfg.DatabaseFile)
	}
	if cfg.KeyName != "k" {
		t.Fatalf("expected untouched key name, got %q", cfg.KeyName)
	}
	if !cfg.LogJSON {
		t.Fatalf("expected log json flag override applied")
	}
}

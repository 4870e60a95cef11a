package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TerminalDriver != "mock" {
		t.Fatalf("default driver: %q", cfg.TerminalDriver)
	}
	if cfg.TerminalPort != 20002 || cfg.HTTPAddr != ":8089" {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if len(cfg.PresetAmounts) != 4 {
		t.Fatalf("default presets: %v", cfg.PresetAmounts)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if err := os.MkdirAll(filepath.Join(dir, "config"), 0o755); err != nil {
		t.Fatal(err)
	}
	raw := `{"controllerUrl":"wss://flow.example.com/terminal","terminalIp":"10.1.2.3","terminalDriver":"vendor","saleTimeoutSec":90}`
	if err := os.WriteFile(filepath.Join(dir, "config", "agent.json"), []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ControllerURL != "wss://flow.example.com/terminal" || cfg.TerminalIP != "10.1.2.3" {
		t.Fatalf("file not applied: %+v", cfg)
	}
	if cfg.TerminalDriver != "vendor" || cfg.SaleTimeoutSec != 90 {
		t.Fatalf("file not applied: %+v", cfg)
	}
	// Untouched fields keep defaults.
	if cfg.TerminalPort != 20002 {
		t.Fatalf("default lost: %+v", cfg)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENT_TERMINALDRIVER", "abacus")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

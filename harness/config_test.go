package harness

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "harness.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDecodesFullConfig(t *testing.T) {
	path := writeConfig(t, `
kind = "zebra"
path = "/opt/zebra/zebrad"
start_command = "zebrad start"
stop_command = "pkill zebrad"
local_ip = "127.0.0.1"
local_addr = "127.0.0.1:18233"
external_addr = "203.0.113.7:8233"
peer_ip = "203.0.113.8"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Kind != KindZebra {
		t.Errorf("Kind = %q, want %q", cfg.Kind, KindZebra)
	}
	if cfg.Path != "/opt/zebra/zebrad" {
		t.Errorf("Path = %q", cfg.Path)
	}
	if cfg.StartCommand != "zebrad start" {
		t.Errorf("StartCommand = %q", cfg.StartCommand)
	}
	if cfg.PeerIP != "203.0.113.8" {
		t.Errorf("PeerIP = %q", cfg.PeerIP)
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, `
kind = "bitcoind"
path = "/opt/bitcoind"
start_command = "bitcoind"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for an unknown node kind")
	}
}

func TestLoadRequiresStartCommand(t *testing.T) {
	path := writeConfig(t, `
kind = "zcashd"
path = "/opt/zcashd"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a missing start_command")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

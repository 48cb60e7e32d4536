package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Sync.TriggerTime != "09:00" || cfg.Sync.MaxCached != 200 || cfg.Sync.Mode != "daily" {
		t.Errorf("unexpected sync defaults: %+v", cfg.Sync)
	}
	if cfg.Wallhaven.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %s", cfg.Wallhaven.Timeout)
	}
	if len(cfg.Surfaces) != 1 || cfg.Surfaces[0] != "default" {
		t.Errorf("expected default surface, got %v", cfg.Surfaces)
	}
	if cfg.Keyring.Service != "wallfeed" {
		t.Errorf("expected keyring service wallfeed, got %s", cfg.Keyring.Service)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
catalog:
  root: /tmp/wf
sync:
  trigger_time: "7:30"
  mapping: perSurface
  ratios: ["16x9"]
surfaces: ["left", "right"]
apply:
  command: feh
  args: ["--bg-fill"]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Sync.TriggerTime != "7:30" || cfg.Sync.Mapping != "perSurface" {
		t.Errorf("unexpected sync config: %+v", cfg.Sync)
	}
	if len(cfg.Surfaces) != 2 || cfg.Surfaces[1] != "right" {
		t.Errorf("unexpected surfaces: %v", cfg.Surfaces)
	}
	if cfg.Catalog.ImageDir() != "/tmp/wf/images" {
		t.Errorf("expected /tmp/wf/images, got %s", cfg.Catalog.ImageDir())
	}
	if cfg.Apply.Command != "feh" || len(cfg.Apply.Args) != 1 {
		t.Errorf("unexpected apply config: %+v", cfg.Apply)
	}
}

func TestWallhavenConfig_ResolveEnvVars(t *testing.T) {
	t.Setenv("WF_TEST_KEY", "from-env")

	c := WallhavenConfig{APIKeyEnv: "WF_TEST_KEY"}
	c.ResolveEnvVars()
	if c.APIKey != "from-env" {
		t.Errorf("expected from-env, got %q", c.APIKey)
	}

	c = WallhavenConfig{APIKey: "direct", APIKeyEnv: "WF_TEST_KEY"}
	c.ResolveEnvVars()
	if c.APIKey != "direct" {
		t.Errorf("expected direct value to win, got %q", c.APIKey)
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	sqlite := DatabaseConfig{Driver: "sqlite", Path: "a.db", URL: "postgres://x"}
	if sqlite.DSN() != "a.db" {
		t.Errorf("expected a.db, got %s", sqlite.DSN())
	}
	pg := DatabaseConfig{Driver: "postgres", Path: "a.db", URL: "postgres://x"}
	if pg.DSN() != "postgres://x" {
		t.Errorf("expected postgres url, got %s", pg.DSN())
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if resolved != path {
		t.Fatalf("expected resolved path %s, got %s", path, resolved)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config not written: %v", err)
	}

	def := Default()
	if cfg.Addr != def.Addr || cfg.JWTTTL != def.JWTTTL {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Relay.DirectPageSize != 50 || cfg.Relay.GroupPageSize != 20 {
		t.Fatalf("unexpected page sizes: %+v", cfg.Relay)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("addr: \":9000\"\njwt_ttl: 2h\nrelay:\n  group_page_size: 5\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("WIRECHAT_JWT_SECRET", "from-env")
	t.Setenv("WIRECHAT_RELAY_DIRECT_PAGE_SIZE", "7")
	t.Setenv("WIRECHAT_ADDR", ":9100")

	cfg, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Addr != ":9100" {
		t.Errorf("env should override file addr, got %s", cfg.Addr)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("expected jwt_ttl 2h, got %s", cfg.JWTTTL)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("expected jwt secret from env, got %q", cfg.JWTSecret)
	}
	if cfg.Relay.GroupPageSize != 5 || cfg.Relay.DirectPageSize != 7 {
		t.Errorf("unexpected relay config: %+v", cfg.Relay)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing jwt secret")
	}

	cfg.JWTSecret = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Relay.GroupPageSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero page size")
	}
}

func TestUpdateFrom(t *testing.T) {
	cfg := Default()
	cfg.UpdateFrom(Config{Addr: ":1234", LogLevel: "debug"})

	if cfg.Addr != ":1234" || cfg.LogLevel != "debug" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.DatabasePath != Default().DatabasePath {
		t.Fatalf("zero values must not override, got %q", cfg.DatabasePath)
	}
}

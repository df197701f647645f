package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Practice.Words != nil || cfg.Server.Addr != nil {
		t.Fatalf("expected empty config, got %+v", cfg)
	}
}

func TestLoadConfigSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := strings.Join([]string{
		"[practice]",
		"words = 40",
		"difficulty = \"hard\"",
		"",
		"[server]",
		"addr = \":9000\"",
		"nats-url = \"nats://127.0.0.1:4222\"",
		"allowed-origins = [\"https://a.example\"]",
		"",
		"[client]",
		"server = \"http://race.local:9000\"",
		"capacity = 6",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Practice.Words == nil || *cfg.Practice.Words != 40 {
		t.Fatalf("unexpected words: %v", cfg.Practice.Words)
	}
	if cfg.Practice.Duration != nil {
		t.Fatalf("unset duration should stay nil")
	}
	if *cfg.Practice.Difficulty != "hard" || *cfg.Server.Addr != ":9000" || *cfg.Server.NATSURL != "nats://127.0.0.1:4222" {
		t.Fatalf("unexpected values: %+v", cfg)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || *cfg.Client.Server != "http://race.local:9000" || *cfg.Client.Capacity != 6 {
		t.Fatalf("unexpected values: %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[practice\nwords = "), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestApplyEnv(t *testing.T) {
	addr := ":8080"
	cfg := ServerConfig{Addr: &addr}
	env := map[string]string{
		EnvAddr:           ":7000",
		EnvAllowedOrigins: "https://a.example, https://b.example,",
		EnvLogLevel:       "",
	}
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if *cfg.Addr != ":7000" {
		t.Fatalf("addr not overridden: %s", *cfg.Addr)
	}
	if cfg.LogLevel != nil || cfg.DB != nil {
		t.Fatalf("unset variables applied: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.AllowedOrigins)
	}
}

func TestDefaultPathsUseXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")
	if got := DefaultConfigPath(); got != filepath.Join("/cfg", "typerace", "config.toml") {
		t.Fatalf("unexpected config path %s", got)
	}
	if got := DefaultIdentityPath(); got != filepath.Join("/cfg", "typerace", "identity.toml") {
		t.Fatalf("unexpected identity path %s", got)
	}
	if got := DefaultServerDBPath(); got != filepath.Join("/data", "typerace", "server.db") {
		t.Fatalf("unexpected server db path %s", got)
	}
}

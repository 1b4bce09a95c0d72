package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("BUREAU_DATABASE_DSN", "postgres://u:p@localhost:5432/bureau")
	t.Setenv("BUREAU_AUTH_SECRET", "a-sufficiently-long-secret")
}

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}
	return path
}

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	validEnv(t)
	t.Setenv("BUREAU_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Server.GRPCAddr != ":9090" {
		t.Errorf("grpc addr: got %q", cfg.Server.GRPCAddr)
	}
	if cfg.Auth.TokenTTL != 12*time.Hour {
		t.Errorf("ttl: got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Storage.MaxImageBytes != 5<<20 {
		t.Errorf("max image bytes: got %d", cfg.Storage.MaxImageBytes)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("log format: got %q", cfg.Log.Format)
	}
}

func TestLoad_MissingDSNIsFatal(t *testing.T) {
	t.Setenv("BUREAU_CONFIG", "")
	t.Setenv("BUREAU_DATABASE_DSN", "")
	t.Setenv("BUREAU_AUTH_SECRET", "a-sufficiently-long-secret")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when database dsn is missing")
	}
}

func TestLoad_ShortSecretIsFatal(t *testing.T) {
	validEnv(t)
	t.Setenv("BUREAU_CONFIG", "")
	t.Setenv("BUREAU_AUTH_SECRET", "short")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "token_secret") {
		t.Fatalf("expected token_secret error, got %v", err)
	}
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	path := writeYAML(t, `
server:
  addr: "127.0.0.1:9090"
database:
  dsn: "postgres://u:p@db:5432/bureau"
auth:
  token_secret: "yaml-secret-0123456789"
  token_ttl: "30m"
log:
  level: "debug"
  format: "text"
cors:
  allowed_origins: "https://a.example, https://b.example"
`)
	t.Setenv("BUREAU_CONFIG", path)
	t.Setenv("BUREAU_LOG_LEVEL", "warn")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9090" {
		t.Errorf("addr: got %q", cfg.Server.Addr)
	}
	if cfg.Auth.TokenTTL != 30*time.Minute {
		t.Errorf("ttl: got %s", cfg.Auth.TokenTTL)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("env should override yaml, got %q", cfg.Log.Level)
	}
	if got := cfg.CORS.Origins(); len(got) != 2 || got[1] != "https://b.example" {
		t.Errorf("origins: got %v", got)
	}
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	validEnv(t)
	t.Setenv("BUREAU_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestValidate_Neo4jNeedsPassword(t *testing.T) {
	cfg := Config{
		Database: DatabaseConfig{DSN: "postgres://x"},
		Auth:     AuthConfig{TokenSecret: "0123456789abcdef", TokenTTL: time.Hour},
		Storage:  StorageConfig{MaxImageBytes: 1},
		Neo4j:    Neo4jConfig{URI: "neo4j://localhost:7687"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected neo4j password error")
	}
	cfg.Neo4j.Password = "secret"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadTool_NeedsOnlyDSN(t *testing.T) {
	t.Setenv("BUREAU_DATABASE_DSN", "postgres://localhost/bureau")
	t.Setenv("BUREAU_AUTH_SECRET", "")
	cfg, err := LoadTool()
	if err != nil {
		t.Fatalf("LoadTool: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/bureau" || cfg.Database.MaxOpenConns != 25 {
		t.Fatalf("unexpected database config: %+v", cfg.Database)
	}
	if cfg.Log.Level != "info" {
		t.Fatalf("unexpected log level %q", cfg.Log.Level)
	}
}

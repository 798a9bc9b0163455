package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var overrideVars = []string{
	"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"STORE_DRIVER", "FIRESTORE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS",
	"MQ_URL", "REDIS_ADDR", "REDIS_PASSWORD", "JWT_SECRET",
	"SERVER_PORT", "ASSET_BASE_URL", "BLOB_DRIVER", "BLOB_BUCKET", "LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range overrideVars {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

const baseYAML = `
server:
  port: "3000"
  asset_base_url: http://assets.example
store:
  driver: memory
db:
  host: db.internal
  password: ${DB_SECRET}
  slow_query_threshold: 250ms
jwt:
  secret: ${JWT_KEY}
`

func TestLoadLayersFilesSecretsAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", baseYAML)
	writeFile(t, dir, "staging.yaml", "db:\n  name: staging_db\nredis:\n  ttl: 30s\n")
	writeFile(t, dir, "secrets.env", "DB_SECRET=\"s3cret\"\nJWT_KEY=signing-key\n")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load("staging", dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("port = %q, env override should win", cfg.Server.Port)
	}
	if cfg.Server.AssetBaseURL != "http://assets.example" {
		t.Errorf("asset base url = %q", cfg.Server.AssetBaseURL)
	}
	if cfg.DB.Host != "db.internal" || cfg.DB.Name != "staging_db" {
		t.Errorf("db = %+v", cfg.DB)
	}
	if cfg.DB.Password != "s3cret" || cfg.JWT.Secret != "signing-key" {
		t.Errorf("secrets not substituted: password=%q jwt=%q", cfg.DB.Password, cfg.JWT.Secret)
	}
	if cfg.DB.SlowQueryThreshold != 250*time.Millisecond {
		t.Errorf("slow query threshold = %v", cfg.DB.SlowQueryThreshold)
	}
	if cfg.Redis.TTL != 30*time.Second {
		t.Errorf("redis ttl = %v", cfg.Redis.TTL)
	}
	// untouched keys keep their defaults
	if cfg.DB.Port != 5432 || cfg.Blob.Driver != "local" || cfg.Server.MaxUploadBytes != 5<<20 {
		t.Errorf("defaults lost: db.port=%d blob=%q max_upload=%d", cfg.DB.Port, cfg.Blob.Driver, cfg.Server.MaxUploadBytes)
	}
}

func TestLoadMissingEnvFileIsFine(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "store:\n  driver: memory\njwt:\n  secret: x\n")
	if _, err := Load("production", dir); err != nil {
		t.Fatalf("Load without production.yaml: %v", err)
	}
}

func TestLoadRequiresBase(t *testing.T) {
	clearEnv(t)
	if _, err := Load("local", t.TempDir()); err == nil {
		t.Fatalf("expected error without base.yaml")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"ok", func(c *Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store.Driver = "mongo" }, "unknown store driver"},
		{"firestore without project", func(c *Config) { c.Store.Driver = "firestore" }, "project_id"},
		{"gcs without bucket", func(c *Config) { c.Blob.Driver = "gcs" }, "bucket"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt.secret"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.JWT.Secret = "x"
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

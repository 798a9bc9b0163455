package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration in increasing priority:
//  1. Defaults()
//  2. <configDir>/base.yaml (required)
//  3. <configDir>/<env>.yaml (optional)
//  4. environment variables (DB_HOST, STORE_DRIVER, ...)
//
// ${KEY} placeholders in the yaml files are replaced with values from
// <configDir>/secrets.env when that file exists.
func Load(env, configDir string) (*Config, error) {
	if configDir == "" {
		configDir = "config"
	}

	secrets, err := loadSecrets(filepath.Join(configDir, "secrets.env"))
	if err != nil {
		return nil, fmt.Errorf("failed to load secrets.env: %w", err)
	}

	cfg := Defaults()
	if err := overlayYAML(&cfg, filepath.Join(configDir, "base.yaml"), secrets); err != nil {
		return nil, fmt.Errorf("failed to load base.yaml: %w", err)
	}

	if env != "" && env != "base" {
		envFile := filepath.Join(configDir, env+".yaml")
		err := overlayYAML(&cfg, envFile, secrets)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s.yaml: %w", env, err)
		}
	}

	OverrideServerFromEnv(&cfg.Server)
	OverrideStoreFromEnv(&cfg.Store)
	OverrideDBFromEnv(&cfg.DB)
	OverrideMQFromEnv(&cfg.MQ)
	OverrideRedisFromEnv(&cfg.Redis)
	OverrideJWTFromEnv(&cfg.JWT)
	OverrideBlobFromEnv(&cfg.Blob)
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// overlayYAML decodes path on top of cfg; keys missing from the file keep
// their current values.
func overlayYAML(cfg *Config, path string, secrets map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := substituteSecrets(string(data), secrets)
	return yaml.Unmarshal([]byte(text), cfg)
}

func loadSecrets(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	return godotenv.Read(path)
}

func substituteSecrets(s string, secrets map[string]string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	for key, value := range secrets {
		s = strings.ReplaceAll(s, "${"+key+"}", value)
	}
	return s
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "postgres", "memory":
	case "firestore":
		if c.Store.Firestore.ProjectID == "" {
			return fmt.Errorf("store.firestore.project_id is required for the firestore driver")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.Blob.Driver {
	case "local":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob.dir is required for the local driver")
		}
	case "gcs":
		if c.Blob.Bucket == "" {
			return fmt.Errorf("blob.bucket is required for the gcs driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	return nil
}

func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetConfigEnv reads CONFIG_ENV, defaulting to local.
func GetConfigEnv() string {
	return GetEnv("CONFIG_ENV", "local")
}

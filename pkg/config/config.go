package config

import (
	"os"
	"strconv"
	"time"
)

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	// queries slower than this are logged and counted
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	MaxConns           int32         `yaml:"max_conns"`
}

type FirestoreConfig struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	// collection name prefix, lets several environments share one database
	CollectionPrefix string `yaml:"collection_prefix"`
}

// StoreConfig selects the document store backend: postgres, firestore or memory.
type StoreConfig struct {
	Driver    string          `yaml:"driver"`
	Firestore FirestoreConfig `yaml:"firestore"`
}

type MQConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	// AssetBaseURL prefixes project image references, e.g. http://localhost:3000
	AssetBaseURL string `yaml:"asset_base_url"`
	// largest accepted image upload in bytes
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
}

// BlobConfig selects image storage: local (a directory) or gcs (a bucket).
type BlobConfig struct {
	Driver          string `yaml:"driver"`
	Dir             string `yaml:"dir"`
	Bucket          string `yaml:"bucket"`
	CredentialsFile string `yaml:"credentials_file"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	DB     DBConfig     `yaml:"db"`
	MQ     MQConfig     `yaml:"mq"`
	Redis  RedisConfig  `yaml:"redis"`
	JWT    JWTConfig    `yaml:"jwt"`
	Blob   BlobConfig   `yaml:"blob"`
	Log    LogConfig    `yaml:"log"`
}

// Defaults returns the configuration used when a key is absent from every file.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			AssetBaseURL:   "http://localhost:8080",
			MaxUploadBytes: 5 << 20,
		},
		Store: StoreConfig{Driver: "postgres"},
		DB: DBConfig{
			Host:               "localhost",
			Port:               5432,
			SlowQueryThreshold: 100 * time.Millisecond,
			MaxConns:           10,
		},
		Redis: RedisConfig{TTL: 5 * time.Minute},
		Blob:  BlobConfig{Driver: "local", Dir: "assets"},
		Log:   LogConfig{Level: "info"},
	}
}

func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

func OverrideStoreFromEnv(cfg *StoreConfig) {
	if driver := os.Getenv("STORE_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if projectID := os.Getenv("FIRESTORE_PROJECT_ID"); projectID != "" {
		cfg.Firestore.ProjectID = projectID
	}
	if creds := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); creds != "" && cfg.Firestore.CredentialsFile == "" {
		cfg.Firestore.CredentialsFile = creds
	}
}

func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
		cfg.Enabled = true
	}
}

func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
		cfg.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if base := os.Getenv("ASSET_BASE_URL"); base != "" {
		cfg.AssetBaseURL = base
	}
}

func OverrideBlobFromEnv(cfg *BlobConfig) {
	if driver := os.Getenv("BLOB_DRIVER"); driver != "" {
		cfg.Driver = driver
	}
	if bucket := os.Getenv("BLOB_BUCKET"); bucket != "" {
		cfg.Bucket = bucket
	}
}

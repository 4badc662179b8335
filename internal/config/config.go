// Package config loads the service configuration with koanf: built-in defaults,
// then an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds all service configuration.
type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Storage  StorageConfig `koanf:"storage"`
	Admin    AdminConfig   `koanf:"admin"`
	Session  SessionConfig `koanf:"session"`
	Redis    RedisConfig   `koanf:"redis"`
	Minio    MinioConfig   `koanf:"minio"`
	Reset    ResetConfig   `koanf:"reset"`
	Logging  LoggingConfig `koanf:"logging"`
	Timezone string        `koanf:"timezone"`
}

type ServerConfig struct {
	Port        string   `koanf:"port"`
	SiteName    string   `koanf:"site_name"`
	BaseURL     string   `koanf:"base_url"`
	CORSOrigins []string `koanf:"cors_origins"`
}

type StorageConfig struct {
	DataDir       string `koanf:"data_dir"`
	UploadDir     string `koanf:"upload_dir"`
	UploadWebPath string `koanf:"upload_web_path"`
}

// AdminConfig is the fallback admin identity. PasswordHash (bcrypt) wins over
// Password when both are set; an override written by the reset flow wins over
// both.
type AdminConfig struct {
	Username     string `koanf:"username"`
	Password     string `koanf:"password"`
	PasswordHash string `koanf:"password_hash"`
}

type SessionConfig struct {
	// Store is redis, badger or memory.
	Store      string        `koanf:"store"`
	Path       string        `koanf:"path"`
	TTL        time.Duration `koanf:"ttl"`
	CookieName string        `koanf:"cookie_name"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// MinioConfig enables the optional image mirror bucket.
type MinioConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Endpoint  string `koanf:"endpoint"`
	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`
	Bucket    string `koanf:"bucket"`
	UseSSL    bool   `koanf:"use_ssl"`
}

type ResetConfig struct {
	TokenTTL time.Duration `koanf:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			SiteName:    "Community Blog",
			BaseURL:     "",
			CORSOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
		},
		Storage: StorageConfig{
			DataDir:       "data",
			UploadDir:     "uploads",
			UploadWebPath: "uploads",
		},
		Admin: AdminConfig{
			Username: "admin",
			Password: "admin123",
		},
		Session: SessionConfig{
			Store:      "redis",
			Path:       "data/sessions",
			TTL:        24 * time.Hour,
			CookieName: "blog_session",
		},
		Redis: RedisConfig{
			Addr: "redis:6379",
		},
		Minio: MinioConfig{
			Enabled:  false,
			Endpoint: "minio:9000",
			Bucket:   "blog-images",
		},
		Reset: ResetConfig{
			TokenTTL: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Timezone: "Local",
	}
}

// Load builds the configuration: defaults < YAML file < environment.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := splitCSV(k, "server.cors_origins"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks option combinations that cannot work.
func (c *Config) Validate() error {
	var errs []error
	if c.Storage.DataDir == "" {
		errs = append(errs, errors.New("storage.data_dir is required"))
	}
	if c.Storage.UploadDir == "" {
		errs = append(errs, errors.New("storage.upload_dir is required"))
	}
	if strings.Trim(c.Storage.UploadWebPath, "/") == "" {
		errs = append(errs, errors.New("storage.upload_web_path is required"))
	}
	if c.Admin.Username == "" {
		errs = append(errs, errors.New("admin.username is required"))
	}
	switch c.Session.Store {
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis session store"))
		}
	case "badger":
		if c.Session.Path == "" {
			errs = append(errs, errors.New("session.path is required for the badger session store"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("session.store %q must be redis, badger or memory", c.Session.Store))
	}
	if c.Session.TTL <= 0 {
		errs = append(errs, errors.New("session.ttl must be positive"))
	}
	if c.Reset.TokenTTL <= 0 {
		errs = append(errs, errors.New("reset.token_ttl must be positive"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.Bucket == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucket are required when minio is enabled"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location returns the timezone used for every stored timestamp.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// PublicUploadPath is the URL prefix images are served from, without slashes.
func (c *Config) PublicUploadPath() string {
	return strings.Trim(c.Storage.UploadWebPath, "/")
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// splitCSV turns a comma separated env value into a slice.
func splitCSV(k *koanf.Koanf, path string) error {
	raw, ok := k.Get(path).(string)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if err := k.Set(path, out); err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	return nil
}

var envMappings = map[string]string{
	"port":               "server.port",
	"site_name":          "server.site_name",
	"base_url":           "server.base_url",
	"cors_origins":       "server.cors_origins",
	"data_dir":           "storage.data_dir",
	"upload_dir":         "storage.upload_dir",
	"upload_web_path":    "storage.upload_web_path",
	"admin_user":         "admin.username",
	"admin_pass":         "admin.password",
	"admin_pass_hash":    "admin.password_hash",
	"session_store":      "session.store",
	"session_store_path": "session.path",
	"session_ttl":        "session.ttl",
	"session_cookie":     "session.cookie_name",
	"redis_addr":         "redis.addr",
	"redis_password":     "redis.password",
	"redis_db":           "redis.db",
	"minio_enabled":      "minio.enabled",
	"minio_endpoint":     "minio.endpoint",
	"minio_access_key":   "minio.access_key",
	"minio_secret_key":   "minio.secret_key",
	"minio_bucket":       "minio.bucket",
	"minio_use_ssl":      "minio.use_ssl",
	"reset_token_ttl":    "reset.token_ttl",
	"log_level":          "logging.level",
	"log_format":         "logging.format",
	"log_caller":         "logging.caller",
	"timezone":           "timezone",
}

// envTransformFunc maps known environment variables to koanf paths and drops
// everything else.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

// Package config loads the server configuration from built-in defaults, an
// optional YAML file and the environment, in that order of precedence.
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

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "/etc/beatpost/config.yaml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Storage  StorageConfig  `koanf:"storage"`
	Ranking  RankingConfig  `koanf:"ranking"`
	Logging  LoggingConfig  `koanf:"logging"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimit       int           `koanf:"rate_limit"` // requests per minute per client IP, 0 disables
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	JWTSecret string `koanf:"jwt_secret"`
	// JWTAlgorithm only accepts HS256.
	JWTAlgorithm    string `koanf:"jwt_algorithm"`
	TokenTTLMinutes int    `koanf:"token_ttl_minutes"`
}

func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// StorageConfig selects the image bucket: GCS when Bucket is set, a local
// directory when LocalDir is set, otherwise uploads are disabled.
type StorageConfig struct {
	Bucket          string        `koanf:"bucket"`
	LocalDir        string        `koanf:"local_dir"`
	LocalBaseURL    string        `koanf:"local_base_url"`
	UploadTimeout   time.Duration `koanf:"upload_timeout"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

type RankingConfig struct {
	FrontpageWindow time.Duration `koanf:"frontpage_window"`
	FrontpageSize   int           `koanf:"frontpage_size"`
	RanksSize       int           `koanf:"ranks_size"`
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8001,
			CORSOrigins:     []string{"*"},
			RateLimit:       300,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{Path: "beatpost.db"},
		Auth: AuthConfig{
			JWTAlgorithm:    "HS256",
			TokenTTLMinutes: 30,
		},
		Storage: StorageConfig{
			LocalBaseURL:    "/media",
			UploadTimeout:   30 * time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  30 * time.Second,
		},
		Ranking: RankingConfig{
			FrontpageWindow: 24 * time.Hour,
			FrontpageSize:   10,
			RanksSize:       20,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load layers defaults, the config file and environment variables, then
// validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
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

var sliceConfigPaths = []string{"server.cors_origins"}

// processSliceFields splits comma-separated env values of slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"host":                            "server.host",
	"port":                            "server.port",
	"cors_origins":                    "server.cors_origins",
	"rate_limit_per_minute":           "server.rate_limit",
	"http_read_timeout":               "server.read_timeout",
	"http_write_timeout":              "server.write_timeout",
	"shutdown_timeout":                "server.shutdown_timeout",
	"database_path":                   "database.path",
	"jwt_secret_key":                  "auth.jwt_secret",
	"jwt_algorithm":                   "auth.jwt_algorithm",
	"jwt_access_token_expire_minutes": "auth.token_ttl_minutes",
	"gcs_bucket_name":                 "storage.bucket",
	"media_dir":                       "storage.local_dir",
	"media_base_url":                  "storage.local_base_url",
	"upload_timeout":                  "storage.upload_timeout",
	"storage_breaker_failures":        "storage.breaker_failures",
	"storage_breaker_timeout":         "storage.breaker_timeout",
	"frontpage_window":                "ranking.frontpage_window",
	"frontpage_size":                  "ranking.frontpage_size",
	"ranks_size":                      "ranking.ranks_size",
	"log_level":                       "logging.level",
	"log_format":                      "logging.format",
}

// envTransformFunc maps an environment variable to its config path. Unknown
// variables map to "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if !strings.EqualFold(c.Auth.JWTAlgorithm, "HS256") {
		errs = append(errs, fmt.Errorf("unsupported JWT algorithm %q, only HS256", c.Auth.JWTAlgorithm))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("token TTL must be positive"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Ranking.FrontpageSize <= 0 || c.Ranking.RanksSize <= 0 {
		errs = append(errs, errors.New("ranking sizes must be positive"))
	}
	return errors.Join(errs...)
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

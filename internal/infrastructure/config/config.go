package config

import (
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Artifact  ArtifactConfig
	Remote    RemoteConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Demo      DemoConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// The address other processes use to reach this one. Remote endpoints
	// resolving to it are refused. Defaults to the listen host; an unspecified
	// host matches every local address.
	AdvertiseHost string `envconfig:"THIS_HOST"`
	AdvertisePort string `envconfig:"THIS_PORT"`

	InstanceID      string        `envconfig:"INSTANCE_ID"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// StoreConfig holds registry persistence configuration.
type StoreConfig struct {
	Path    string `envconfig:"SERVICES_DB_PATH" default:"data/db/services.json"`
	SeedDir string `envconfig:"SEED_DIR"`
}

// ArtifactConfig holds local model configuration.
type ArtifactConfig struct {
	Root  string `envconfig:"ARTIFACT_ROOT"`
	Cache bool   `envconfig:"ARTIFACT_CACHE" default:"true"`
}

// RemoteConfig holds outbound invocation configuration.
type RemoteConfig struct {
	Timeout         time.Duration `envconfig:"REMOTE_TIMEOUT" default:"30s"`
	Retries         int           `envconfig:"REMOTE_RETRIES" default:"0"`
	RequestsPerSec  float64       `envconfig:"REMOTE_RPS" default:"0"`
	BreakerFailures uint32        `envconfig:"REMOTE_BREAKER_FAILURES" default:"10"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// CORSConfig holds allowed origins.
type CORSConfig struct {
	Origins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// DemoConfig holds the demo model server configuration.
type DemoConfig struct {
	Host      string `envconfig:"DEMO_HOST" default:"0.0.0.0"`
	Port      string `envconfig:"DEMO_PORT" default:"8001"`
	ModelsDir string `envconfig:"DEMO_MODELS_DIR" default:"data/models"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.fill()
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Path: "data/db/services.json",
		},
		Artifact: ArtifactConfig{
			Cache: true,
		},
		Remote: RemoteConfig{
			Timeout:         30 * time.Second,
			BreakerFailures: 10,
		},
		Logging: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
		CORS: CORSConfig{
			Origins: []string{"*"},
		},
		Demo: DemoConfig{
			Host:      "0.0.0.0",
			Port:      "8001",
			ModelsDir: "data/models",
		},
	}
	cfg.fill()
	return cfg
}

// fill derives values left empty by the environment
func (c *Config) fill() {
	if c.Server.AdvertiseHost == "" {
		c.Server.AdvertiseHost = c.Server.Host
	}
	if c.Server.AdvertisePort == "" {
		c.Server.AdvertisePort = c.Server.Port
	}
	if c.Server.InstanceID == "" {
		c.Server.InstanceID = uuid.NewString()
	}
}

// ListenAddr is the address the HTTP server binds
func (s ServerConfig) ListenAddr() string {
	return net.JoinHostPort(s.Host, s.Port)
}

// AdvertiseAddr is the host:port this process is reachable at
func (s ServerConfig) AdvertiseAddr() string {
	return net.JoinHostPort(s.AdvertiseHost, s.AdvertisePort)
}

// ListenAddr is the address the demo server binds
func (d DemoConfig) ListenAddr() string {
	return net.JoinHostPort(d.Host, d.Port)
}

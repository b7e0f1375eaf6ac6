// Package config loads server settings from an optional .env file, an
// optional YAML file and the environment, in that order of precedence
// from lowest to highest.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcoot/turnclock/internal/api"
	"github.com/mcoot/turnclock/internal/events"
	"github.com/mcoot/turnclock/internal/factory"
	"github.com/mcoot/turnclock/internal/services/auth"
	pgstorage "github.com/mcoot/turnclock/internal/storage/postgres"
	redisstorage "github.com/mcoot/turnclock/internal/storage/redis"
)

// Config is the full server configuration
type Config struct {
	LogLevel string  `yaml:"log_level"`
	Server   Server  `yaml:"server"`
	Storage  Storage `yaml:"storage"`
	NATS     NATS    `yaml:"nats"`
	Auth     Auth    `yaml:"auth"`
	CORS     CORS    `yaml:"cors"`
}

// Server holds HTTP listener settings
type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Storage selects and configures the room store
type Storage struct {
	Type        string        `yaml:"type"`
	RedisURL    string        `yaml:"redis_url"`
	RoomTTL     time.Duration `yaml:"room_ttl"`
	DatabaseURL string        `yaml:"database_url"`
}

// NATS enables the JetStream room-event publisher when URL is set
type NATS struct {
	URL        string `yaml:"url"`
	StreamName string `yaml:"stream_name"`
}

// Auth configures session tokens
type Auth struct {
	Secret          string        `yaml:"secret"`
	SessionDuration time.Duration `yaml:"session_duration"`
}

// CORS lists the origins allowed to call the API
type CORS struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Default returns the configuration used when nothing is set
func Default() Config {
	server := api.DefaultServerConfig()
	return Config{
		LogLevel: "info",
		Server: Server{
			Host:            server.Host,
			Port:            server.Port,
			ReadTimeout:     server.ReadTimeout,
			ShutdownTimeout: server.ShutdownTimeout,
		},
		Storage: Storage{Type: factory.StorageTypeMemory},
		Auth:    Auth{SessionDuration: auth.DefaultConfig().SessionDuration},
	}
}

// Load reads .env (or TCLOCK_ENV_FILE), then the YAML file named by
// TCLOCK_CONFIG, then environment overrides
func Load() (Config, error) {
	envFile := os.Getenv("TCLOCK_ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	return load(envFile, os.Getenv("TCLOCK_CONFIG"))
}

func load(envFile, yamlPath string) (Config, error) {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Default()
	if yamlPath != "" {
		if err := cfg.readYAML(yamlPath); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) readYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.Server.Host, "HOST")
	setString(&c.Storage.Type, "STORAGE_TYPE")
	setString(&c.Storage.RedisURL, "REDIS_URL")
	setString(&c.Storage.DatabaseURL, "DATABASE_URL")
	setString(&c.NATS.URL, "NATS_URL")
	setString(&c.NATS.StreamName, "NATS_STREAM")
	setString(&c.Auth.Secret, "JWT_SECRET")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("SESSION_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_DURATION %q: %w", v, err)
		}
		c.Auth.SessionDuration = d
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = splitList(v)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks that the selected storage has what it needs
func (c Config) Validate() error {
	switch c.Storage.Type {
	case "", factory.StorageTypeMemory:
	case factory.StorageTypeRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("REDIS_URL required when STORAGE_TYPE=redis")
		}
	case factory.StorageTypePostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL required when STORAGE_TYPE=postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE_TYPE %q", c.Storage.Type)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	return nil
}

// Level parses LogLevel
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// Factory builds the application factory configuration
func (c Config) Factory(logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		Logger:      logger,
		StorageType: c.Storage.Type,
		AuthConfig: auth.Config{
			SessionDuration: c.Auth.SessionDuration,
			Secret:          c.Auth.Secret,
		},
	}

	switch c.Storage.Type {
	case factory.StorageTypeRedis:
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.Storage.RedisURL
		if c.Storage.RoomTTL > 0 {
			redisCfg.RoomTTL = c.Storage.RoomTTL
		}
		cfg.RedisConfig = &redisCfg
	case factory.StorageTypePostgres:
		pgCfg := pgstorage.DefaultConfig()
		pgCfg.URL = c.Storage.DatabaseURL
		cfg.PostgresConfig = &pgCfg
	}

	if c.NATS.URL != "" {
		jsCfg := events.DefaultJetStreamConfig()
		jsCfg.URL = c.NATS.URL
		if c.NATS.StreamName != "" {
			jsCfg.StreamName = c.NATS.StreamName
		}
		cfg.JetStreamConfig = &jsCfg
	}
	return cfg
}

// HTTP builds the HTTP server configuration
func (c Config) HTTP() api.ServerConfig {
	server := api.DefaultServerConfig()
	server.Host = c.Server.Host
	server.Port = c.Server.Port
	if c.Server.ReadTimeout > 0 {
		server.ReadTimeout = c.Server.ReadTimeout
	}
	if c.Server.ShutdownTimeout > 0 {
		server.ShutdownTimeout = c.Server.ShutdownTimeout
	}
	return server
}

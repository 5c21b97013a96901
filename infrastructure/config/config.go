package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// HostingMode selects how the process is run.
type HostingMode string

const (
	// HostingManaged is a host-managed, short-lived process (Lambda, Vercel).
	HostingManaged HostingMode = "managed-short-lived"
	// HostingLongRunning is a self-managed server process.
	HostingLongRunning HostingMode = "long-running"
)

// DefaultCORSOrigins is used when CORS_ORIGINS is empty.
var DefaultCORSOrigins = []string{
	"https://comsats-frontend-deploy.vercel.app",
	"https://comsats-backend-deploy-rjcj.vercel.app",
	"http://localhost:5173",
	"http://localhost:5174",
	"http://localhost:5175",
	"http://localhost:5176",
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:3002",
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string      `validate:"required"`
	Environment   string      `validate:"required"`
	HostingMode   HostingMode `validate:"oneof=managed-short-lived long-running"`

	// Database configuration
	DatabaseURI  string
	DatabaseName string `validate:"required"`

	// Handshake bounds. All of them must be finite.
	ConnectTimeout         time.Duration `validate:"gt=0"`
	ServerSelectionTimeout time.Duration `validate:"gt=0"`
	SocketTimeout          time.Duration `validate:"gt=0"`
	MaxPoolSize            uint64        `validate:"gte=1"`

	// Retry policy for long-running hosting
	BreakerFailures uint32        `validate:"gte=1"`
	BreakerCooldown time.Duration `validate:"gt=0"`

	// CORS
	CORSOrigins []string `validate:"min=1,dive,required"`

	// Memory sampling for long-running hosting
	MemoryWarnBytes    uint64        `validate:"gt=0"`
	MemoryReclaimBytes uint64        `validate:"gtefield=MemoryWarnBytes"`
	MemorySampleEvery  time.Duration `validate:"gt=0"`

	// Logging
	LogLevel string `validate:"oneof=debug info warn error"`

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
}

// LoadConfig loads configuration from an optional .env file and the
// environment. Environment variables win over the file.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	if err := readEnvFile(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		ServerAddress:          serverAddress(v),
		Environment:            environment(v),
		HostingMode:            hostingMode(v),
		DatabaseURI:            strings.TrimSpace(v.GetString("MONGO_URI")),
		DatabaseName:           v.GetString("DATABASE_NAME"),
		ConnectTimeout:         v.GetDuration("DB_CONNECT_TIMEOUT"),
		ServerSelectionTimeout: v.GetDuration("DB_SERVER_SELECTION_TIMEOUT"),
		SocketTimeout:          v.GetDuration("DB_SOCKET_TIMEOUT"),
		MaxPoolSize:            v.GetUint64("DB_MAX_POOL_SIZE"),
		BreakerFailures:        v.GetUint32("DB_BREAKER_FAILURES"),
		BreakerCooldown:        v.GetDuration("DB_BREAKER_COOLDOWN"),
		CORSOrigins:            ParseOrigins(v.GetString("CORS_ORIGINS")),
		MemoryWarnBytes:        v.GetUint64("MEMORY_WARN_MB") << 20,
		MemoryReclaimBytes:     v.GetUint64("MEMORY_RECLAIM_MB") << 20,
		MemorySampleEvery:      v.GetDuration("MEMORY_SAMPLE_INTERVAL"),
		LogLevel:               strings.ToLower(v.GetString("LOG_LEVEL")),
		EnableMetrics:          v.GetBool("ENABLE_METRICS"),
		EnableTracing:          v.GetBool("ENABLE_TRACING"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "5005")
	v.SetDefault("DATABASE_NAME", "internship_portal")
	v.SetDefault("DB_CONNECT_TIMEOUT", "30s")
	v.SetDefault("DB_SERVER_SELECTION_TIMEOUT", "30s")
	v.SetDefault("DB_SOCKET_TIMEOUT", "45s")
	v.SetDefault("DB_MAX_POOL_SIZE", 10)
	v.SetDefault("DB_BREAKER_FAILURES", 5)
	v.SetDefault("DB_BREAKER_COOLDOWN", "30s")
	v.SetDefault("MEMORY_WARN_MB", 200)
	v.SetDefault("MEMORY_RECLAIM_MB", 500)
	v.SetDefault("MEMORY_SAMPLE_INTERVAL", "30s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENABLE_METRICS", true)
	v.SetDefault("ENABLE_TRACING", false)
}

// readEnvFile merges a .env file when one exists. CONFIG_FILE overrides
// the location.
func readEnvFile(v *viper.Viper) error {
	path := os.Getenv("CONFIG_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

func serverAddress(v *viper.Viper) string {
	if addr := v.GetString("SERVER_ADDRESS"); addr != "" {
		return addr
	}
	return ":" + v.GetString("PORT")
}

func environment(v *viper.Viper) string {
	if env := v.GetString("ENVIRONMENT"); env != "" {
		return env
	}
	if env := v.GetString("NODE_ENV"); env != "" {
		return env
	}
	return "development"
}

func hostingMode(v *viper.Viper) HostingMode {
	if mode := v.GetString("HOSTING_MODE"); mode != "" {
		return HostingMode(mode)
	}
	if v.GetBool("IS_LAMBDA") || v.GetString("VERCEL") != "" || v.GetString("AWS_LAMBDA_FUNCTION_NAME") != "" {
		return HostingManaged
	}
	return HostingLongRunning
}

// ParseOrigins splits a comma-separated allow-list, falling back to
// DefaultCORSOrigins when nothing usable is given.
func ParseOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return append([]string(nil), DefaultCORSOrigins...)
	}
	return origins
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DatabaseConfigured reports whether a database URI is present.
func (c *Config) DatabaseConfigured() bool {
	return c.DatabaseURI != ""
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// IsManaged reports whether the host manages the process lifetime.
func (c *Config) IsManaged() bool {
	return c.HostingMode == HostingManaged
}

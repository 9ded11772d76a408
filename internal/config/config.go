package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds all server configuration
// Tags:
//
//	env: Environment variable name
//	envDefault: Default value if not set
type Config struct {
	// Server basics
	Addr string `env:"NOTIR_ADDR" envDefault:":5800"`

	// Delivery timing
	HeartbeatInterval time.Duration `env:"NOTIR_HEARTBEAT_INTERVAL" envDefault:"30s"`
	ReplyTimeout      time.Duration `env:"NOTIR_REPLY_TIMEOUT" envDefault:"5s"`
	WriteTimeout      time.Duration `env:"NOTIR_WRITE_TIMEOUT" envDefault:"10s"`

	// Capacity. 0 means no connection cap.
	MaxConnections int `env:"NOTIR_MAX_CONNECTIONS" envDefault:"0"`

	// Rate limiting of new subscriber connections
	RateLimitEnabled     bool    `env:"NOTIR_RATE_LIMIT_ENABLED" envDefault:"false"`
	RateLimitIPBurst     int     `env:"NOTIR_RATE_LIMIT_IP_BURST" envDefault:"10"`
	RateLimitIPRate      float64 `env:"NOTIR_RATE_LIMIT_IP_RATE" envDefault:"1.0"`
	RateLimitGlobalBurst int     `env:"NOTIR_RATE_LIMIT_GLOBAL_BURST" envDefault:"300"`
	RateLimitGlobalRate  float64 `env:"NOTIR_RATE_LIMIT_GLOBAL_RATE" envDefault:"50.0"`

	// Monitoring
	MonitorInterval time.Duration `env:"NOTIR_MONITOR_INTERVAL" envDefault:"15s"`

	// Shutdown
	ShutdownGrace time.Duration `env:"NOTIR_SHUTDOWN_GRACE" envDefault:"10s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Load reads configuration from .env file and environment variables
// Priority: ENV vars > .env file > defaults
//
// Optional logger parameter for structured logging. If nil, logs to stdout.
func Load(logger *zerolog.Logger) (*Config, error) {
	// .env is a development convenience; in containers plain env vars win
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("No .env file found (using environment variables only)")
		}
	} else {
		if logger != nil {
			logger.Info().Msg("Loaded configuration from .env file")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if logger != nil {
		logger.Info().Msg("Configuration loaded and validated successfully")
	}

	return cfg, nil
}

// Validate checks configuration for errors
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("NOTIR_ADDR is required")
	}

	// Range checks
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("NOTIR_HEARTBEAT_INTERVAL must be > 0, got %s", c.HeartbeatInterval)
	}
	if c.ReplyTimeout <= 0 {
		return fmt.Errorf("NOTIR_REPLY_TIMEOUT must be > 0, got %s", c.ReplyTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("NOTIR_WRITE_TIMEOUT must be > 0, got %s", c.WriteTimeout)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("NOTIR_MAX_CONNECTIONS must be >= 0, got %d", c.MaxConnections)
	}
	if c.RateLimitEnabled {
		if c.RateLimitIPBurst < 1 {
			return fmt.Errorf("NOTIR_RATE_LIMIT_IP_BURST must be > 0, got %d", c.RateLimitIPBurst)
		}
		if c.RateLimitIPRate <= 0 {
			return fmt.Errorf("NOTIR_RATE_LIMIT_IP_RATE must be > 0, got %f", c.RateLimitIPRate)
		}
		if c.RateLimitGlobalBurst < 1 {
			return fmt.Errorf("NOTIR_RATE_LIMIT_GLOBAL_BURST must be > 0, got %d", c.RateLimitGlobalBurst)
		}
		if c.RateLimitGlobalRate <= 0 {
			return fmt.Errorf("NOTIR_RATE_LIMIT_GLOBAL_RATE must be > 0, got %f", c.RateLimitGlobalRate)
		}
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("NOTIR_MONITOR_INTERVAL must be > 0, got %s", c.MonitorInterval)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("NOTIR_SHUTDOWN_GRACE must be >= 0, got %s", c.ShutdownGrace)
	}

	// Enum checks
	validLogLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got: %s)", c.LogLevel)
	}

	validLogFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validLogFormats[c.LogFormat] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, text, pretty (got: %s)", c.LogFormat)
	}

	return nil
}

// Print logs configuration for debugging (human-readable format)
// For production, use LogConfig() with structured logging
func (c *Config) Print() {
	fmt.Println("=== Notir Configuration ===")
	fmt.Printf("Environment:        %s\n", c.Environment)
	fmt.Printf("Address:            %s\n", c.Addr)
	fmt.Println("\n=== Delivery ===")
	fmt.Printf("Heartbeat Interval: %s\n", c.HeartbeatInterval)
	fmt.Printf("Reply Timeout:      %s\n", c.ReplyTimeout)
	fmt.Printf("Write Timeout:      %s\n", c.WriteTimeout)
	fmt.Println("\n=== Capacity ===")
	if c.MaxConnections == 0 {
		fmt.Println("Max Connections:    unlimited")
	} else {
		fmt.Printf("Max Connections:    %d\n", c.MaxConnections)
	}
	fmt.Printf("Rate Limiting:      %t\n", c.RateLimitEnabled)
	if c.RateLimitEnabled {
		fmt.Printf("Per-IP:             %.1f/sec (burst %d)\n", c.RateLimitIPRate, c.RateLimitIPBurst)
		fmt.Printf("Global:             %.1f/sec (burst %d)\n", c.RateLimitGlobalRate, c.RateLimitGlobalBurst)
	}
	fmt.Println("\n=== Monitoring ===")
	fmt.Printf("Monitor Interval:   %s\n", c.MonitorInterval)
	fmt.Println("\n=== Logging ===")
	fmt.Printf("Level:              %s\n", c.LogLevel)
	fmt.Printf("Format:             %s\n", c.LogFormat)
	fmt.Println("===========================")
}

// LogConfig logs configuration using structured logging (Loki-compatible)
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Dur("heartbeat_interval", c.HeartbeatInterval).
		Dur("reply_timeout", c.ReplyTimeout).
		Dur("write_timeout", c.WriteTimeout).
		Int("max_connections", c.MaxConnections).
		Bool("rate_limit_enabled", c.RateLimitEnabled).
		Dur("monitor_interval", c.MonitorInterval).
		Dur("shutdown_grace", c.ShutdownGrace).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("Server configuration loaded")
}

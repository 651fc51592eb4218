// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	GRPCPort    string
	FrontendURL string
	DBPath      string
	LogLevel    string
	Model       ModelConfig
	Sandbox     SandboxConfig
	Tools       ToolsConfig
	Session     SessionConfig
	RateLimit   RateLimitConfig
}

// ModelConfig describes the chat-completion backend.
type ModelConfig struct {
	BaseURL       string
	Name          string
	Temperature   float64
	MaxTokens     int
	TopP          float64
	TopK          int
	Timeout       time.Duration
	VisionTimeout time.Duration
}

// SandboxConfig controls code execution.
type SandboxConfig struct {
	Mode     string // "disabled", "subprocess", "container", "inprocess"
	Timeout  time.Duration
	WorkRoot string
	Python   string
	Dotnet   string
	Go       string
	Runtime  string // Docker runtime for container mode: "" = default (runc), "runsc" = gVisor
}

// ToolsConfig holds paths used by the local tools.
type ToolsConfig struct {
	SearchRoot string
	FilePath   string
}

// SessionConfig bounds the per-session history registry and the turn log.
type SessionConfig struct {
	MaxSessions   int
	IdleTTL       time.Duration
	TurnRetention time.Duration
}

// RateLimitConfig controls per-user chat throttling.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Sandbox modes.
const (
	SandboxDisabled   = "disabled"
	SandboxSubprocess = "subprocess"
	SandboxContainer  = "container"
	SandboxInProcess  = "inprocess"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GRPCPort:    getEnv("GRPC_PORT", "9090"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/codemate.db"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Model: ModelConfig{
			BaseURL:       strings.TrimRight(getEnv("MODEL_BASE_URL", "http://localhost:11434"), "/"),
			Name:          getEnv("MODEL_NAME", "deepseek-r1:1.5b"),
			Temperature:   getEnvFloat("MODEL_TEMPERATURE", 0.1),
			MaxTokens:     getEnvInt("MODEL_MAX_TOKENS", 2000),
			TopP:          getEnvFloat("MODEL_TOP_P", 0.9),
			TopK:          getEnvInt("MODEL_TOP_K", 40),
			Timeout:       getEnvDuration("MODEL_TIMEOUT", 60*time.Second),
			VisionTimeout: getEnvDuration("MODEL_VISION_TIMEOUT", 120*time.Second),
		},
		Sandbox: SandboxConfig{
			Mode:     strings.ToLower(getEnv("SANDBOX_MODE", SandboxSubprocess)),
			Timeout:  getEnvDuration("SANDBOX_TIMEOUT", 10*time.Second),
			WorkRoot: getEnv("SANDBOX_WORK_ROOT", os.TempDir()),
			Python:   getEnv("SANDBOX_PYTHON", "python3"),
			Dotnet:   getEnv("SANDBOX_DOTNET", "dotnet"),
			Go:       getEnv("SANDBOX_GO", "go"),
			Runtime:  getEnv("SANDBOX_RUNTIME", ""),
		},
		Tools: ToolsConfig{
			SearchRoot: getEnv("SEARCH_ROOT", "."),
			FilePath:   getEnv("FILE_TOOL_PATH", "example.txt"),
		},
		Session: SessionConfig{
			MaxSessions:   getEnvInt("SESSION_MAX", 1024),
			IdleTTL:       getEnvDuration("SESSION_TTL", 60*time.Minute),
			TurnRetention: getEnvDuration("TURN_RETENTION", 7*24*time.Hour),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 20),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Model.BaseURL == "" {
		return fmt.Errorf("MODEL_BASE_URL cannot be empty")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("MODEL_TIMEOUT must be > 0")
	}
	switch c.Sandbox.Mode {
	case SandboxDisabled, SandboxSubprocess, SandboxContainer, SandboxInProcess:
	default:
		return fmt.Errorf("SANDBOX_MODE %q is not one of disabled, subprocess, container, inprocess", c.Sandbox.Mode)
	}
	if c.Sandbox.Timeout <= 0 {
		return fmt.Errorf("SANDBOX_TIMEOUT must be > 0")
	}
	if c.Session.MaxSessions <= 0 {
		return fmt.Errorf("SESSION_MAX must be > 0")
	}
	if c.Session.TurnRetention <= 0 {
		return fmt.Errorf("TURN_RETENTION must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// SlogLevel maps LOG_LEVEL onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

// IsContainer returns true if running inside a Docker container.
func IsContainer() bool {
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

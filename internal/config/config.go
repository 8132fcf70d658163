package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Gateway GatewayConfig `yaml:"gateway"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig holds the bridge server configuration
type ServerConfig struct {
	Port int `yaml:"port"`
}

// GatewayConfig holds the remote trips API configuration
type GatewayConfig struct {
	BaseURL      string        `yaml:"base_url"`
	SessionToken string        `yaml:"session_token"`
	Timeout      time.Duration `yaml:"timeout"`
}

// AuthConfig holds the bridge authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig holds the logging configuration
type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080},
		Gateway: GatewayConfig{Timeout: 30 * time.Second},
		Auth:    AuthConfig{JWTSecret: "your-secret-key-here"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load builds the configuration: defaults, then the optional YAML file at
// path, then .env and environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvAsInt("SERVER_PORT", cfg.Server.Port)
	cfg.Gateway.BaseURL = getEnv("TRIPSYNC_API_BASE_URL", cfg.Gateway.BaseURL)
	cfg.Gateway.SessionToken = getEnv("TRIPSYNC_SESSION_TOKEN", cfg.Gateway.SessionToken)
	cfg.Gateway.Timeout = getEnvAsDuration("TRIPSYNC_API_TIMEOUT", cfg.Gateway.Timeout)
	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Log.Level = getEnv("TRIPSYNC_LOG_LEVEL", cfg.Log.Level)
}

// Helper functions to read environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

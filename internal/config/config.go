package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server struct {
		Port      string `json:"port" validate:"required,numeric"`
		StaticDir string `json:"static_dir"`
		Debug     bool   `json:"debug"`
	} `json:"server"`

	Lookup struct {
		BaseURL   string `json:"base_url" validate:"required,url"`
		TimeoutMs int    `json:"timeout_ms" validate:"min=1"`
		UserAgent string `json:"user_agent" validate:"required"`
	} `json:"lookup"`

	Scanner struct {
		Type       string `json:"type" validate:"oneof=device google"`
		ConfigPath string `json:"config_path"`
	} `json:"scanner"`

	Log struct {
		FilePath    string `json:"file_path" validate:"required"`
		Environment string `json:"environment" validate:"oneof=development production"`
	} `json:"log"`

	Tracing struct {
		Enabled  bool   `json:"enabled"`
		Endpoint string `json:"endpoint"`
	} `json:"tracing"`
}

// Timeout is the lookup HTTP timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Lookup.TimeoutMs) * time.Millisecond
}

func (c *Config) IsProduction() bool {
	return c.Log.Environment == "production"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	var cfg Config
	cfg.Server.Port = "8080"
	cfg.Server.StaticDir = "./static"
	cfg.Lookup.BaseURL = "https://world.openfoodfacts.org/api/v2"
	cfg.Lookup.TimeoutMs = 10000
	cfg.Lookup.UserAgent = "nutriscan/1.0"
	cfg.Scanner.Type = "device"
	cfg.Log.FilePath = "nutriscan.log"
	cfg.Log.Environment = "development"
	cfg.Tracing.Endpoint = "localhost:4318"
	return &cfg
}

// LoadConfig loads configuration from a JSON file, then applies environment
// overrides (including a .env file) and validates the result. A missing file
// is not an error.
func LoadConfig(configPath string) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	_ = godotenv.Load()
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func applyEnv(c *Config) {
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)
	c.Server.StaticDir = getEnv("STATIC_DIR", c.Server.StaticDir)
	c.Server.Debug = getEnvBool("SERVER_DEBUG", c.Server.Debug)

	c.Lookup.BaseURL = getEnv("OFF_BASE_URL", c.Lookup.BaseURL)
	c.Lookup.TimeoutMs = getEnvInt("OFF_TIMEOUT_MS", c.Lookup.TimeoutMs)
	c.Lookup.UserAgent = getEnv("OFF_USER_AGENT", c.Lookup.UserAgent)

	c.Scanner.Type = getEnv("SCANNER_TYPE", c.Scanner.Type)
	c.Scanner.ConfigPath = getEnv("SCANNER_CONFIG", c.Scanner.ConfigPath)

	c.Log.FilePath = getEnv("LOG_FILE_PATH", c.Log.FilePath)
	c.Log.Environment = getEnv("GO_ENV", c.Log.Environment)

	c.Tracing.Enabled = getEnvBool("OTEL_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.Endpoint)
}

// GetConfigPath returns the path to the configuration file
func GetConfigPath() string {
	if path := os.Getenv("NUTRISCAN_CONFIG"); path != "" {
		return path
	}

	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}

	return "config.json"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(getEnv(key, ""))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/franckalain/nutriscan/internal/logger"
)

// BaseConfig provides common configuration functionality
type BaseConfig struct {
	ConfigPath string
	log        logger.ILogger
}

// LoadConfig loads configuration from a file. When neither the given path
// nor config/<name>.json can be read, the caller falls back to environment
// variables.
func (c *BaseConfig) LoadConfig(configPath string, name string, config interface{}) error {
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read %s config: %w", name, err)
		}
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse %s config: %w", name, err)
		}
		c.logger().Info("scanner", "loaded configuration from file", map[string]interface{}{"path": configPath})
		return nil
	}

	defaultPath := filepath.Join("config", fmt.Sprintf("%s.json", name))
	if data, err := os.ReadFile(defaultPath); err == nil {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse %s: %w", defaultPath, err)
		}
		c.logger().Info("scanner", "loaded configuration from default file", map[string]interface{}{"path": defaultPath})
		return nil
	}

	c.logger().Info("scanner", "using environment variables for configuration", map[string]interface{}{"scanner": name})
	return nil
}

func (c *BaseConfig) logger() logger.ILogger {
	if c.log == nil {
		return logger.NewNop()
	}
	return c.log
}

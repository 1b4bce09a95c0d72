package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Load reads configuration from a YAML file and environment variables.
// Priority: ENV > YAML > defaults (via env-default tags).
// The YAML file path is BUREAU_CONFIG (fallback "./config.yaml"). A missing
// default file is not an error; a missing explicit one is.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("BUREAU_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = "./config.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("config: read env: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// ToolConfig is the subset of settings read by offline tools such as the
// migrator; it does not require auth secrets.
type ToolConfig struct {
	Database DatabaseConfig
	Log      LogConfig
}

// LoadTool reads ToolConfig from the environment only.
func LoadTool() (*ToolConfig, error) {
	var cfg ToolConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	return &cfg, nil
}

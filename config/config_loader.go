package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// LoadConfig reads a YAML configuration file from filePath and unmarshals
// it into a Configuration, validating it before returning.
func LoadConfig(filePath string) (*Configuration, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", filePath, err)
	}

	var cfg Configuration
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration from %s: %w", filePath, err)
	}

	if err := ValidateConfiguration(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// ValidateConfiguration checks the structural invariants a Configuration
// must satisfy before the engine can use it.
func ValidateConfiguration(cfg *Configuration) error {
	if cfg == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if cfg.DefaultAppID == "" {
		return fmt.Errorf("defaultAppId cannot be empty")
	}
	if cfg.S3Sync != nil {
		if cfg.S3Sync.Bucket == "" {
			return fmt.Errorf("s3Sync.bucket cannot be empty when s3Sync is configured")
		}
	}
	return nil
}

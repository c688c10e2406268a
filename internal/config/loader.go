package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osUserHomeDir = os.UserHomeDir

const (
	userConfigDir    = ".config/researchctl"
	projectConfigDir = ".researchctl"
	configFileName   = "config.yaml"
	stateFileName    = "state.yaml"
)

// LoadConfig loads the researchctl configuration by layering default, user, and
// project settings. root is the invocation root holding the compose files.
func LoadConfig(root string) (Config, error) {
	// 1. Start with the default configuration
	config := GetDefaultConfig()

	// 2. Determine user-specific configuration path
	userConfigPath, err := getUserConfigPath()
	if err != nil {
		// Log this error but don't fail; user config is optional
		fmt.Fprintf(os.Stderr, "Warning: Could not determine user config path: %v\n", err)
	} else {
		if _, err := os.Stat(userConfigPath); !os.IsNotExist(err) {
			userConfig, err := loadConfigFromFile(userConfigPath)
			if err != nil {
				return Config{}, fmt.Errorf("error loading user config from %s: %w", userConfigPath, err)
			}
			config = mergeConfigs(config, userConfig)
		}
	}

	// 3. Project-specific configuration lives under the invocation root
	projectConfigPath := getProjectConfigPath(root)
	if _, err := os.Stat(projectConfigPath); !os.IsNotExist(err) {
		projectConfig, err := loadConfigFromFile(projectConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("error loading project config from %s: %w", projectConfigPath, err)
		}
		config = mergeConfigs(config, projectConfig)
	}

	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

var getUserConfigPath = func() (string, error) {
	dir, err := GetUserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

func getProjectConfigPath(root string) string {
	return filepath.Join(root, projectConfigDir, configFileName)
}

// loadConfigFromFile loads a Config from a YAML file.
func loadConfigFromFile(filePath string) (Config, error) {
	var config Config
	data, err := os.ReadFile(filePath)
	if err != nil {
		return Config{}, err
	}
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return Config{}, err
	}
	return config, nil
}

// mergeConfigs merges 'overlay' config into 'base' config.
// Scalars override when set, lists replace wholesale when non-empty.
func mergeConfigs(base, overlay Config) Config {
	merged := base

	if overlay.Project != "" {
		merged.Project = overlay.Project
	}
	if overlay.NamePrefix != "" {
		merged.NamePrefix = overlay.NamePrefix
	}
	if len(overlay.ComposeCommand) > 0 {
		merged.ComposeCommand = overlay.ComposeCommand
	}
	if overlay.DockerCommand != "" {
		merged.DockerCommand = overlay.DockerCommand
	}

	if overlay.Overlays.Base != "" {
		merged.Overlays.Base = overlay.Overlays.Base
	}
	if overlay.Overlays.Dev != "" {
		merged.Overlays.Dev = overlay.Overlays.Dev
	}

	if overlay.Env.Template != "" {
		merged.Env.Template = overlay.Env.Template
	}
	if overlay.Env.Target != "" {
		merged.Env.Target = overlay.Env.Target
	}
	if len(overlay.Env.RequiredKeys) > 0 {
		merged.Env.RequiredKeys = overlay.Env.RequiredKeys
	}
	if len(overlay.Env.OptionalKeys) > 0 {
		merged.Env.OptionalKeys = overlay.Env.OptionalKeys
	}
	if len(overlay.Env.Placeholders) > 0 {
		merged.Env.Placeholders = overlay.Env.Placeholders
	}

	if len(overlay.Directories) > 0 {
		merged.Directories = overlay.Directories
	}
	if overlay.ReportsDir != "" {
		merged.ReportsDir = overlay.ReportsDir
	}
	if overlay.ArchiveDir != "" {
		merged.ArchiveDir = overlay.ArchiveDir
	}

	if overlay.Health.Interval > 0 {
		merged.Health.Interval = overlay.Health.Interval
	}
	if overlay.Health.MaxAttempts > 0 {
		merged.Health.MaxAttempts = overlay.Health.MaxAttempts
	}
	if overlay.Health.ProbeTimeout > 0 {
		merged.Health.ProbeTimeout = overlay.Health.ProbeTimeout
	}
	if len(overlay.Health.Targets) > 0 {
		merged.Health.Targets = overlay.Health.Targets
	}

	if len(overlay.Services) > 0 {
		merged.Services = overlay.Services
	}
	if len(overlay.Endpoints) > 0 {
		merged.Endpoints = overlay.Endpoints
	}

	return merged
}

// Validate rejects configurations the lifecycle driver cannot act on.
func Validate(cfg Config) error {
	if cfg.Project == "" {
		return fmt.Errorf("config: project name must not be empty")
	}
	if cfg.NamePrefix == "" {
		return fmt.Errorf("config: namePrefix must not be empty")
	}
	if len(cfg.ComposeCommand) == 0 {
		return fmt.Errorf("config: composeCommand must not be empty")
	}
	if cfg.Overlays.Base == "" {
		return fmt.Errorf("config: overlays.base must be set")
	}
	if cfg.Env.Template == "" || cfg.Env.Target == "" {
		return fmt.Errorf("config: env.template and env.target must be set")
	}
	if cfg.Health.MaxAttempts < 1 {
		return fmt.Errorf("config: health.maxAttempts must be at least 1, got %d", cfg.Health.MaxAttempts)
	}
	if cfg.Health.Interval < 0 {
		return fmt.Errorf("config: health.interval must not be negative")
	}
	for _, t := range cfg.Health.Targets {
		if t.Name == "" || t.Address == "" {
			return fmt.Errorf("config: health target requires name and address")
		}
		switch t.Kind {
		case TargetKindHTTP, TargetKindTCP, "":
		default:
			return fmt.Errorf("config: health target %q has unknown kind %q", t.Name, t.Kind)
		}
	}
	return nil
}

// GetUserConfigDir returns the user configuration directory path
func GetUserConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

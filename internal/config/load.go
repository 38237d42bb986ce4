package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/andlab/doctas/internal/logging"
)

var ErrConfigNotFound = errors.New("config not found")

// PathEnv overrides the config file location.
const PathEnv = "DOCTAS_CONFIG"

func GetConfigPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	doctasDir := filepath.Join(configDir, "doctas")
	if err := os.MkdirAll(doctasDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(doctasDir, "config.toml"), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFile(configPath)
}

// LoadFile decodes path on top of DefaultConfig, so keys missing from the
// file keep their default values.
func LoadFile(configPath string) (*Config, error) {
	logger := logging.WithComponent("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: run doctas configure", ErrConfigNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat config file %s: %w", configPath, err)
	}

	logger.Debug().Str("path", configPath).Msg("loading configuration")
	config := DefaultConfig()
	meta, err := toml.DecodeFile(configPath, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		logger.Warn().Interface("keys", undecoded).Msg("ignoring unknown config keys")
	}

	if config.Providers == nil {
		config.Providers = make(map[string]ProviderConfig)
	}

	logger.Debug().Msg("configuration loaded")
	return config, nil
}

const fileHeader = `# Doctas configuration
# Changes to [session], [transcript], [recognizer] language settings and
# [notifications] are applied without restarting the daemon.

`

// Save writes config to the default location.
func Save(config *Config) error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return SaveFile(config, configPath)
}

func SaveFile(config *Config, configPath string) error {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	// api keys may be stored in the file
	tmp := configPath + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, configPath); err != nil {
		return fmt.Errorf("failed to replace config file: %w", err)
	}
	return nil
}

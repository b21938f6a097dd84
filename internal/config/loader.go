package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

const (
	userConfigDir  = ".config/agentgate"
	configFileName = "agentgate.yaml"
	envFileName    = ".env"
)

// osUserHomeDir is swapped in tests.
var osUserHomeDir = os.UserHomeDir

// DefaultConfigDir returns ~/.config/agentgate.
func DefaultConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// DefaultConfigPath returns ~/.config/agentgate/agentgate.yaml.
func DefaultConfigPath() (string, error) {
	dir, err := DefaultConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// Load reads the configuration at path, or the default location when path
// is empty. A missing file yields the defaults. The result is validated.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}
	configDir := filepath.Dir(path)

	loadEnvFiles(filepath.Join(configDir, envFileName), envFileName)

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Info("ConfigLoader", "No %s found at %s, using defaults", configFileName, path)
	case err != nil:
		return Config{}, &ConfigurationError{FilePath: path, ErrorType: ErrorTypeIO, Message: err.Error(), Err: err}
	default:
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return Config{}, &ConfigurationError{FilePath: path, ErrorType: ErrorTypeParse, Message: err.Error(), Err: err}
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	}

	applyDefaults(&cfg, configDir)
	if err := cfg.Validate(); err != nil {
		return Config{}, &ConfigurationError{FilePath: path, ErrorType: ErrorTypeValidation, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// loadEnvFiles loads each existing file into the environment. Variables
// already set take precedence.
func loadEnvFiles(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			logging.Warn("ConfigLoader", "Ignoring unreadable env file %s: %v", p, err)
			continue
		}
		logging.Debug("ConfigLoader", "Loaded environment from %s", p)
	}
}

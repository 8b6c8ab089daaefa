package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"recipebox/pkg/logging"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/recipebox"
	configFileName = "config.yaml"
	envFileName    = ".env"
)

// Overridable in tests.
var (
	osUserHomeDir = os.UserHomeDir
	lookupEnv     = os.LookupEnv
)

// GetDefaultConfigPath returns ~/.config/recipebox.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

func GetDefaultConfigPathOrPanic() string {
	path, err := GetDefaultConfigPath()
	if err != nil {
		panic(err)
	}
	return path
}

// LoadConfig loads configuration from the given directory, applies
// environment overrides and validates the result.
func LoadConfig(configPath string) (Config, error) {
	config := GetDefaultConfig()

	configFilePath := filepath.Join(configPath, configFileName)
	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, NewConfigurationError(configFilePath, "io", err)
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, NewConfigurationError(configFilePath, "parse", err)
		}
		logging.Info("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	loadEnvFiles(configPath)
	if err := applyEnv(&config); err != nil {
		return Config{}, err
	}

	if config.Credentials.Dir == "" {
		config.Credentials.Dir = configPath
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

// loadEnvFiles reads .env from the working directory and the config
// directory. godotenv never overrides variables that are already set.
func loadEnvFiles(configPath string) {
	for _, path := range []string{envFileName, filepath.Join(configPath, envFileName)} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logging.Warn("ConfigLoader", "Ignoring unreadable env file %s: %v", path, err)
			continue
		}
		logging.Debug("ConfigLoader", "Loaded environment from %s", path)
	}
}

func applyEnv(config *Config) error {
	setString := func(key string, dst *string) {
		if v, ok := lookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	setString("DRUPAL_BASE_URL", &config.Drupal.BaseURL)
	setString("DRUPAL_API_URL", &config.Drupal.APIURL)
	setString("DRUPAL_CLIENT_ID", &config.OAuth.ClientID)
	setString("DRUPAL_CLIENT_SECRET", &config.OAuth.ClientSecret)
	setString("RECIPEBOX_STORE", &config.Credentials.Backend)
	setString("RECIPEBOX_REDIS_ADDR", &config.Credentials.Redis.Addr)

	if v, ok := lookupEnv("RECIPEBOX_CALLBACK_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return NewConfigurationError("RECIPEBOX_CALLBACK_PORT", "env", err)
		}
		config.OAuth.CallbackPort = port
	}

	config.Drupal.BaseURL = strings.TrimSuffix(config.Drupal.BaseURL, "/")
	config.Drupal.APIURL = strings.TrimSuffix(config.Drupal.APIURL, "/")
	return nil
}

// Save writes cfg to config.yaml in configPath, creating the directory.
func Save(configPath string, cfg Config) error {
	if err := os.MkdirAll(configPath, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(configPath, configFileName), data, 0600)
}

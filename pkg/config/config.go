package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-yaml"
)

type ProviderOptions struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	RealmID string `yaml:"realmId"`
}

type AlertOptions struct {
	NotifyOnWarnings   bool     `yaml:"notifyOnWarnings"`
	MinIntervalSeconds int      `yaml:"minIntervalSeconds"`
	Recipients         []string `yaml:"recipients"`
	WebhookURL         string   `yaml:"webhookUrl"`
}

type SyncOptions struct {
	SameDayReverse  bool   `yaml:"sameDayReverse"`
	DefaultCurrency string `yaml:"defaultCurrency"`
}

// Config holds the application configuration
type Config struct {
	Provider   ProviderOptions `yaml:"provider"`
	Alerts     AlertOptions    `yaml:"alerts"`
	Sync       SyncOptions     `yaml:"sync"`
	ListenAddr string          `yaml:"listenAddr"`
	AppBaseURL string          `yaml:"appBaseUrl"`
}

var (
	// Global configuration instance
	globalConfig *Config
	// Mutex to ensure thread-safe access to the global configuration
	configMutex sync.RWMutex
	// Flag to track if the configuration has been loaded
	configLoaded bool
)

func defaultConfig() *Config {
	return &Config{
		Provider: ProviderOptions{
			Name: "quickbooks",
		},
		Alerts: AlertOptions{
			NotifyOnWarnings:   true,
			MinIntervalSeconds: 60,
		},
		Sync: SyncOptions{
			SameDayReverse:  false,
			DefaultCurrency: "USD",
		},
		ListenAddr: ":8080",
		AppBaseURL: "https://app.resoldhq.com",
	}
}

// LoadConfig loads the configuration from the specified YAML file
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// InitGlobalConfig initializes the global configuration from the specified file
func InitGlobalConfig(configPath string) error {
	config, err := LoadConfig(configPath)
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	globalConfig = config
	configLoaded = true
	return nil
}

// GetConfig returns the global configuration instance
// If the configuration hasn't been loaded yet, it attempts to load it from
// the default location (./config.yaml)
func GetConfig() (*Config, error) {
	configMutex.RLock()
	if configLoaded {
		defer configMutex.RUnlock()
		return globalConfig, nil
	}
	configMutex.RUnlock()

	configPath := "config.yaml"
	if err := InitGlobalConfig(configPath); err != nil {
		// If the default config file doesn't exist, create it. The
		// error is wrapped, so unwrap with errors.Is.
		if errors.Is(err, fs.ErrNotExist) {
			dir := filepath.Dir(configPath)
			if dir != "" && dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("error creating config directory: %w", err)
				}
			}

			config := defaultConfig()

			data, err := yaml.Marshal(config)
			if err != nil {
				return nil, fmt.Errorf("error creating default config: %w", err)
			}

			if err := os.WriteFile(configPath, data, 0644); err != nil {
				return nil, fmt.Errorf("error writing default config: %w", err)
			}

			configMutex.Lock()
			globalConfig = config
			configLoaded = true
			configMutex.Unlock()

			return config, nil
		}
		return nil, err
	}

	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig, nil
}

// GetProviderOptions returns the external ledger provider settings
func GetProviderOptions() (ProviderOptions, error) {
	config, err := GetConfig()
	if err != nil {
		return ProviderOptions{}, err
	}

	if config.Provider.BaseURL == "" || config.Provider.APIKey == "" {
		return ProviderOptions{}, fmt.Errorf("error: ledger provider credentials not set in configuration")
	}

	return config.Provider, nil
}

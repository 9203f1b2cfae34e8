package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// SyncConfig holds settings for the sync coordinator.
type SyncConfig struct {
	// PageSize is the number of headers requested per gateway page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`
}

// ConnectivityConfig holds settings for the connectivity monitor.
type ConnectivityConfig struct {
	// DebounceMs is how long a reachability change must hold before it
	// is committed as the new online/offline state.
	DebounceMs int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	// DBPath is the location of the local SQLite cache.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`

	// AccountsPath is the location of the account registry file.
	AccountsPath string `mapstructure:"accounts_path" yaml:"accounts_path"`

	Sync         SyncConfig         `mapstructure:"sync" yaml:"sync"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity" yaml:"connectivity"`
	Log          LogConfig          `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailclient/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailclient", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	dir := filepath.Dir(DefaultConfigPath())
	return &AppConfig{
		DBPath:       filepath.Join(dir, "mail.db"),
		AccountsPath: filepath.Join(dir, "accounts.json"),
		Sync:         SyncConfig{PageSize: 50},
		Connectivity: ConnectivityConfig{DebounceMs: 1500},
		Log:          LogConfig{Level: "info"},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	defaults := defaultAppConfig()
	v.SetDefault("db_path", defaults.DBPath)
	v.SetDefault("accounts_path", defaults.AccountsPath)
	v.SetDefault("sync.page_size", defaults.Sync.PageSize)
	v.SetDefault("connectivity.debounce_ms", defaults.Connectivity.DebounceMs)
	v.SetDefault("log.level", defaults.Log.Level)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaults, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Sync.PageSize <= 0 {
		cfg.Sync.PageSize = defaults.Sync.PageSize
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("db_path", cfg.DBPath)
	v.Set("accounts_path", cfg.AccountsPath)
	v.Set("sync", cfg.Sync)
	v.Set("connectivity", cfg.Connectivity)
	v.Set("log", cfg.Log)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

package model

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// AppConfig is the top-level application configuration, loaded from
// ~/.config/maildeck/config.yaml. Account records live in a separate
// accounts.json file; this file only carries application-wide settings.
type AppConfig struct {
	// ConfigDir is where accounts.json and the log file live.
	ConfigDir string `mapstructure:"config_dir" yaml:"config_dir"`

	// LocalStorageDir is where local mailbox documents are stored.
	LocalStorageDir string `mapstructure:"local_storage_dir" yaml:"local_storage_dir"`

	// LocalDomain is the domain suffix for newly created local
	// addresses.
	LocalDomain string `mapstructure:"local_domain" yaml:"local_domain"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level" yaml:"log_level"`

	// PageSize is the default number of messages per fetch.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// PollIntervalSeconds is how often the background poller checks
	// the active account for new mail.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" yaml:"poll_interval_seconds"`

	// DownloadsDir is where saved attachments are written.
	DownloadsDir string `mapstructure:"downloads_dir" yaml:"downloads_dir"`
}

// PollInterval returns the poll interval as a duration, falling back
// to two minutes when unset.
func (c AppConfig) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// DownloadDir returns the attachment target directory, defaulting to
// ~/Downloads.
func (c AppConfig) DownloadDir() string {
	if c.DownloadsDir != "" {
		return c.DownloadsDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// DefaultConfigPath returns the default path for the configuration
// file, located at ~/.config/maildeck/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "maildeck", "config.yaml")
}

// defaultAppConfig returns a sensible default configuration rooted
// next to the given config file.
func defaultAppConfig(path string) *AppConfig {
	dir := filepath.Dir(path)
	return &AppConfig{
		ConfigDir:           dir,
		LocalStorageDir:     filepath.Join(dir, "local_emails"),
		LocalDomain:         "local",
		LogLevel:            "info",
		PageSize:            50,
		PollIntervalSeconds: 120,
	}
}

// LoadConfig reads configuration from the given YAML file path using
// Viper. If the file does not exist, it returns a default
// configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	dir := filepath.Dir(path)
	v.SetDefault("config_dir", dir)
	v.SetDefault("local_storage_dir", filepath.Join(dir, "local_emails"))
	v.SetDefault("local_domain", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("page_size", 50)
	v.SetDefault("poll_interval_seconds", 120)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(path), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(path), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig(path)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
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

	v.Set("config_dir", cfg.ConfigDir)
	v.Set("local_storage_dir", cfg.LocalStorageDir)
	v.Set("local_domain", cfg.LocalDomain)
	v.Set("log_level", cfg.LogLevel)
	v.Set("page_size", cfg.PageSize)
	v.Set("poll_interval_seconds", cfg.PollIntervalSeconds)
	if cfg.DownloadsDir != "" {
		v.Set("downloads_dir", cfg.DownloadsDir)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

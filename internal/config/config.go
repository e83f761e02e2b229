// Package config loads the Hash Index daemon's settings from
// config.yaml, falling back to environment variables and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton. It should be
// called once at process startup, before any Get call.
func Initialize() error {
	v = viper.New()
	v.SetConfigType("yaml")

	// Precedence: project .hashidx/config.yaml (walked up from cwd) >
	// user config dir > home dir. The walk-up lets the CLI work from
	// any subdirectory of a project.
	configFileSet := false

	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, ".hashidx", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
				break
			}
		}
	}

	if !configFileSet {
		if configDir, err := os.UserConfigDir(); err == nil {
			candidate := filepath.Join(configDir, "hashidx", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	if !configFileSet {
		if homeDir, err := os.UserHomeDir(); err == nil {
			candidate := filepath.Join(homeDir, ".hashidx", "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				v.SetConfigFile(candidate)
				configFileSet = true
			}
		}
	}

	v.SetEnvPrefix("HASHIDX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("path", "hash_index.db")
	v.SetDefault("flush_interval", "10s")
	v.SetDefault("digest_width", 0)
	v.SetDefault("busy_timeout", "5s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)

	if configFileSet {
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	return nil
}

// ConfigFileUsed returns the path of the config file that was loaded,
// or "" if none was found.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value.
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetInt retrieves an integer configuration value.
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value.
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// Set overrides a configuration value, for flags that take precedence
// over the config file.
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// Reload re-reads the config file that was located during Initialize.
// It is the daemon's hook for fsnotify-driven hot-reload (internal/daemon):
// unlike viper's own WatchConfig, the caller decides when to call this,
// so a reload can be debounced and logged alongside the rest of the
// daemon's event loop. A no-op if no config file was found.
func Reload() error {
	if v == nil || v.ConfigFileUsed() == "" {
		return nil
	}
	return v.ReadInConfig()
}

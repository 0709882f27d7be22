package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Initialize sets up the viper configuration singleton
// Should be called once at application startup
func Initialize() error {
	v = viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Walk up from CWD to find a project .litebrite/ directory so
	// commands work from subdirectories
	cwd, err := os.Getwd()
	if err == nil {
		for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			lbDir := filepath.Join(dir, ".litebrite")
			if info, err := os.Stat(lbDir); err == nil && info.IsDir() {
				v.AddConfigPath(lbDir)
				break
			}
		}
		v.AddConfigPath(filepath.Join(cwd, ".litebrite"))
	}

	// User config directory (~/.config/lb/)
	if configDir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(configDir, "lb"))
	}

	// Home directory (~/.litebrite/)
	if homeDir, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(homeDir, ".litebrite"))
	}

	// Environment variables take precedence over the config file,
	// e.g. LB_JSON, LB_ACTOR, LB_BRANCH, LB_SYNC_RETRIES
	v.SetEnvPrefix("LB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault("json", false)
	v.SetDefault("no-color", false)
	v.SetDefault("actor", "")
	v.SetDefault("branch", "litebrite")
	v.SetDefault("sync-retries", 3)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found - this is ok, we'll use defaults
	}

	return nil
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// Set overrides a configuration value, used by CLI flags
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// IsSet reports whether a key has an explicit value from any source
func IsSet(key string) bool {
	if v == nil {
		return false
	}
	return v.IsSet(key)
}

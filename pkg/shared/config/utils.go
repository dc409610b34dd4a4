package config

import (
	"path/filepath"
	"reflect"
)

// SetThen provides a utility to select the first value if set, otherwise defaults.
func SetThen[T any](value T, defaultValue T) T {
	if reflect.ValueOf(value).IsZero() {
		return defaultValue
	}
	return value
}

// GetPluginsHome returns the resolved plugins folder.
func GetPluginsHome(cfg *Config) string {
	return cfg.Prefixsec.PluginsFolder
}

// GetResultsHome returns the resolved results folder.
func GetResultsHome(cfg *Config) string {
	return cfg.Prefixsec.ResultsFolder
}

// GetCheckpointsHome returns the folder where prefix checkpoints are stored.
func GetCheckpointsHome(cfg *Config) string {
	return filepath.Join(cfg.Prefixsec.HomeFolder, "checkpoints")
}

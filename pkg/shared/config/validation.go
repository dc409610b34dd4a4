package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// ValidateConfig checks if the global configuration has valid values and
// resolves the home folder layout.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateHomeConfig(cfg); err != nil {
		return fmt.Errorf("YAML global config: prefixsec directive is invalid: %w", err)
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateTrainerConfig(&cfg.Trainer); err != nil {
		return fmt.Errorf("YAML global config: trainer directive is invalid: %w", err)
	}
	if err := ValidateLossConfig(&cfg.Loss); err != nil {
		return fmt.Errorf("YAML global config: loss directive is invalid: %w", err)
	}
	return nil
}

// ValidateHomeConfig resolves the home, plugins and results folders from the
// environment or defaults, creating them when missing.
func ValidateHomeConfig(cfg *Config) error {
	if err := updateHome(cfg); err != nil {
		return fmt.Errorf("failed to update home folder: %w", err)
	}
	if err := updateFolder(&cfg.Prefixsec.PluginsFolder, "PREFIXSEC_PLUGINS_FOLDER", "plugins", cfg); err != nil {
		return fmt.Errorf("failed to update plugins folder: %w", err)
	}
	if err := updateFolder(&cfg.Prefixsec.ResultsFolder, "PREFIXSEC_RESULTS_FOLDER", "results", cfg); err != nil {
		return fmt.Errorf("failed to update results folder: %w", err)
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
		"Timeout":          httpConfig.Timeout,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}

	if err := validateProxy(&httpConfig.Proxy); err != nil {
		return err
	}

	return nil
}

// ValidateTrainerConfig checks the training-loop settings, filling defaults
// for unset fields.
func ValidateTrainerConfig(trainerConfig *Trainer) error {
	if trainerConfig == nil {
		return fmt.Errorf("trainer configuration is nil")
	}
	defaults := DefaultTrainer()
	if trainerConfig.NumEpochs == 0 {
		trainerConfig.NumEpochs = defaults.NumEpochs
	}
	if trainerConfig.NumEpochs < 1 {
		return fmt.Errorf("num_epochs must be at least 1: %d", trainerConfig.NumEpochs)
	}
	if trainerConfig.BatchSize == 0 {
		trainerConfig.BatchSize = defaults.BatchSize
	}
	if trainerConfig.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive: %d", trainerConfig.BatchSize)
	}
	if len(trainerConfig.KValues) == 0 {
		trainerConfig.KValues = defaults.KValues
	}
	for _, k := range trainerConfig.KValues {
		if k < 1 {
			return fmt.Errorf("k_values entries must be positive: %d", k)
		}
	}
	if trainerConfig.PrefixLength == 0 {
		trainerConfig.PrefixLength = defaults.PrefixLength
	}
	if trainerConfig.HiddenDim == 0 {
		trainerConfig.HiddenDim = defaults.HiddenDim
	}
	if trainerConfig.PrefixLength < 1 || trainerConfig.HiddenDim < 1 {
		return fmt.Errorf("prefix_length and hidden_dim must be positive: %d, %d",
			trainerConfig.PrefixLength, trainerConfig.HiddenDim)
	}
	return nil
}

// ValidateLossConfig fills zero loss weights with documented defaults and
// rejects negative weights.
func ValidateLossConfig(lossConfig *Loss) error {
	if lossConfig == nil {
		return fmt.Errorf("loss configuration is nil")
	}
	defaults := DefaultLoss()
	if lossConfig.LMWeight == 0 {
		lossConfig.LMWeight = defaults.LMWeight
	}
	if lossConfig.ContrastiveWeight == 0 {
		lossConfig.ContrastiveWeight = defaults.ContrastiveWeight
	}
	if lossConfig.KLWeight == 0 {
		lossConfig.KLWeight = defaults.KLWeight
	}
	if lossConfig.MaskWeight == 0 {
		lossConfig.MaskWeight = defaults.MaskWeight
	}
	for name, w := range map[string]float64{
		"lm_weight":          lossConfig.LMWeight,
		"contrastive_weight": lossConfig.ContrastiveWeight,
		"kl_weight":          lossConfig.KLWeight,
		"mask_weight":        lossConfig.MaskWeight,
	} {
		if w < 0 {
			return fmt.Errorf("%s cannot be negative: %f", name, w)
		}
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}

	return validatePort(proxy.Port)
}

// validateHost checks if the host part of the proxy configuration is valid.
// It ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	_, err := url.Parse(*host)
	if err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// updateHome updates the HomeFolder from environment variables or sets a default value.
func updateHome(cfg *Config) error {
	if homeFolder := os.Getenv("PREFIXSEC_HOME"); homeFolder != "" {
		cfg.Prefixsec.HomeFolder = homeFolder
	} else if cfg.Prefixsec.HomeFolder == "" {
		userHome, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to get user home folder: %w", err)
		}
		cfg.Prefixsec.HomeFolder = filepath.Join(userHome, ".prefixsec")
	}

	expandedHomePath, err := files.ExpandPath(cfg.Prefixsec.HomeFolder)
	if err != nil {
		return fmt.Errorf("failed to expand home path %q: %w", cfg.Prefixsec.HomeFolder, err)
	}
	cfg.Prefixsec.HomeFolder = expandedHomePath

	if err := files.CreateFolderIfNotExists(expandedHomePath); err != nil {
		return fmt.Errorf("failed to create home folder %q: %w", cfg.Prefixsec.HomeFolder, err)
	}
	return nil
}

// updateFolder updates a folder path in the configuration.
func updateFolder(folder *string, envVar, defaultSubFolder string, cfg *Config) error {
	if envVarValue := os.Getenv(envVar); envVarValue != "" {
		*folder = envVarValue
	} else if *folder == "" {
		*folder = filepath.Join(cfg.Prefixsec.HomeFolder, defaultSubFolder)
	}

	expandedPath, err := files.ExpandPath(*folder)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", *folder, err)
	}
	*folder = expandedPath

	if err := files.CreateFolderIfNotExists(expandedPath); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", expandedPath, err)
	}
	return nil
}

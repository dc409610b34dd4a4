package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateHomeConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("PREFIXSEC_HOME", home)
	t.Setenv("PREFIXSEC_PLUGINS_FOLDER", "")
	t.Setenv("PREFIXSEC_RESULTS_FOLDER", "")

	cfg := &Config{}
	require.NoError(t, ValidateHomeConfig(cfg))

	assert.Equal(t, home, cfg.Prefixsec.HomeFolder)
	assert.Equal(t, filepath.Join(home, "plugins"), cfg.Prefixsec.PluginsFolder)
	assert.Equal(t, filepath.Join(home, "results"), cfg.Prefixsec.ResultsFolder)
	assert.DirExists(t, cfg.Prefixsec.PluginsFolder)
	assert.DirExists(t, cfg.Prefixsec.ResultsFolder)
}

func TestValidateHomeConfigEnvOverridesFolders(t *testing.T) {
	home := t.TempDir()
	plugins := t.TempDir()
	t.Setenv("PREFIXSEC_HOME", home)
	t.Setenv("PREFIXSEC_PLUGINS_FOLDER", plugins)
	t.Setenv("PREFIXSEC_RESULTS_FOLDER", "")

	cfg := &Config{}
	require.NoError(t, ValidateHomeConfig(cfg))

	assert.Equal(t, plugins, cfg.Prefixsec.PluginsFolder)
}

func TestValidateHTTPConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     HTTPClient
		wantErr bool
	}{
		{name: "zero config", cfg: HTTPClient{}},
		{name: "sane values", cfg: HTTPClient{RetryCount: 3, Timeout: 30 * time.Second}},
		{name: "negative retry count", cfg: HTTPClient{RetryCount: -1}, wantErr: true},
		{name: "excessive timeout", cfg: HTTPClient{Timeout: time.Hour}, wantErr: true},
		{name: "bad proxy port", cfg: HTTPClient{Proxy: Proxy{Host: "proxy.local", Port: 99999}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHTTPConfig(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateTrainerConfigFillsDefaults(t *testing.T) {
	cfg := Trainer{}

	require.NoError(t, ValidateTrainerConfig(&cfg))

	defaults := DefaultTrainer()
	assert.Equal(t, defaults.NumEpochs, cfg.NumEpochs)
	assert.Equal(t, defaults.BatchSize, cfg.BatchSize)
	assert.Equal(t, defaults.KValues, cfg.KValues)
	assert.Equal(t, defaults.PrefixLength, cfg.PrefixLength)
	assert.Equal(t, defaults.HiddenDim, cfg.HiddenDim)
}

func TestValidateTrainerConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Trainer
	}{
		{name: "negative epochs", cfg: Trainer{NumEpochs: -1}},
		{name: "negative batch size", cfg: Trainer{BatchSize: -2}},
		{name: "zero k value", cfg: Trainer{KValues: []int{1, 0}}},
		{name: "negative prefix length", cfg: Trainer{PrefixLength: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateTrainerConfig(&tt.cfg))
		})
	}
}

func TestValidateLossConfig(t *testing.T) {
	t.Run("zero weights get defaults", func(t *testing.T) {
		cfg := Loss{}
		require.NoError(t, ValidateLossConfig(&cfg))
		assert.Equal(t, DefaultLoss(), cfg)
	})

	t.Run("negative weight rejected", func(t *testing.T) {
		cfg := Loss{ContrastiveWeight: -0.5}
		assert.Error(t, ValidateLossConfig(&cfg))
	})

	t.Run("explicit weights kept", func(t *testing.T) {
		cfg := Loss{LMWeight: 2, ContrastiveWeight: 1, KLWeight: 0.2, MaskWeight: 3}
		require.NoError(t, ValidateLossConfig(&cfg))
		assert.Equal(t, 2.0, cfg.LMWeight)
	})
}

package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"

	"github.com/prefixsec/prefixsec/pkg/schema"
)

// Config is the root of the YAML configuration for the prefixsec core and
// its plugins.
type Config struct {
	Prefixsec  Prefixsec            `yaml:"prefixsec"`
	Logger     Logger               `yaml:"logger"`
	HTTPClient HTTPClient           `yaml:"http_client"`
	Backbone   Backbone             `yaml:"backbone"`
	Trainer    Trainer              `yaml:"trainer"`
	Dataset    schema.DatasetConfig `yaml:"dataset"`
	Evaluator  Evaluator            `yaml:"evaluator"`
	Loss       Loss                 `yaml:"loss"`
}

// Prefixsec holds the core home layout settings.
type Prefixsec struct {
	HomeFolder    string `yaml:"home_folder"`
	PluginsFolder string `yaml:"plugins_folder"`
	ResultsFolder string `yaml:"results_folder"`
}

type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     bool   `yaml:"disable_time"`
	JSONFormat      bool   `yaml:"json_format"`
	IncludeLocation bool   `yaml:"include_location"`
}

type HTTPClient struct {
	Debug            bool            `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Backbone describes the external text-generation service.
type Backbone struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	Seed        int64   `yaml:"seed"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxLength   int     `yaml:"max_length"`
}

// Trainer holds the training-loop settings.
type Trainer struct {
	NumEpochs     int    `yaml:"num_epochs"`
	BatchSize     int    `yaml:"batch_size"`
	DryRun        bool   `yaml:"dry_run"`
	EvalEachEpoch bool   `yaml:"eval_each_epoch"`
	KValues       []int  `yaml:"k_values"`
	LearningRate  float64 `yaml:"learning_rate"`
	PrefixLength  int    `yaml:"prefix_length"`
	HiddenDim     int    `yaml:"hidden_dim"`
}

// Evaluator holds settings for both evaluation oracles.
type Evaluator struct {
	Analyzer        string        `yaml:"analyzer"`
	AnalyzerTimeout time.Duration `yaml:"analyzer_timeout"`
	Interpreter     string        `yaml:"interpreter"`
	TestTimeout     time.Duration `yaml:"test_timeout"`
}

// Loss holds the tunable weighting of the composite training objective.
// The exact ratio is configuration, not contract.
type Loss struct {
	LMWeight          float64 `yaml:"lm_weight"`
	ContrastiveWeight float64 `yaml:"contrastive_weight"`
	KLWeight          float64 `yaml:"kl_weight"`
	MaskWeight        float64 `yaml:"mask_weight"`
}

// ValidateConfigPath checks that the given path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes a YAML file into the given structure.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// NewConfig reads and decodes the root configuration file.
func NewConfig(configPath string) (*Config, error) {
	config := &Config{}

	if err := LoadYAML(configPath, config); err != nil {
		return nil, err
	}

	return config, nil
}

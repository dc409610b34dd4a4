package config

import (
	"crypto/tls"
	"time"
)

// BaseHTTPConfig holds common HTTP client configuration settings.
type BaseHTTPConfig struct {
	RetryCount       int           // Number of retries for failed requests
	RetryWaitTime    time.Duration // Wait time between retries
	RetryMaxWaitTime time.Duration // Maximum wait time for retries
	Timeout          time.Duration // Timeout for requests
	TLSClientConfig  *tls.Config   // TLS configuration
	Proxy            string        // Proxy address
}

// RestyHTTPClientConfig holds additional configuration settings for the Resty HTTP client.
type RestyHTTPClientConfig struct {
	BaseHTTPConfig
	Debug bool // Flag to enable Resty debug mode
}

// DefaultHTTPConfig returns a base configuration for HTTP clients with default values.
func DefaultHTTPConfig() BaseHTTPConfig {
	return BaseHTTPConfig{
		RetryCount:       5,
		RetryWaitTime:    1 * time.Second,
		RetryMaxWaitTime: 5 * time.Second,
		Timeout:          30 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12, // Enforce a minimum TLS version
			InsecureSkipVerify: false,
		},
		Proxy: "",
	}
}

// DefaultRestyConfig returns a default configuration for the Resty HTTP client, extending the base HTTP configuration.
func DefaultRestyConfig() RestyHTTPClientConfig {
	return RestyHTTPClientConfig{
		BaseHTTPConfig: DefaultHTTPConfig(),
		Debug:          false,
	}
}

// DefaultLoss returns the documented default weighting of the composite loss:
// lm 1.0, contrastive 0.5, kl 0.1, with a multiplicative up-weight of 2.0 on
// diff-masked positions.
func DefaultLoss() Loss {
	return Loss{
		LMWeight:          1.0,
		ContrastiveWeight: 0.5,
		KLWeight:          0.1,
		MaskWeight:        2.0,
	}
}

// DefaultTrainer returns the default training-loop settings.
func DefaultTrainer() Trainer {
	return Trainer{
		NumEpochs:     1,
		BatchSize:     8,
		DryRun:        false,
		EvalEachEpoch: true,
		KValues:       []int{1, 10},
		LearningRate:  5e-4,
		PrefixLength:  20,
		HiddenDim:     512,
	}
}

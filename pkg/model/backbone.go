package model

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
	"github.com/prefixsec/prefixsec/pkg/shared/httpclient"
)

// GenerationParams are the sampling settings for one generation call.
type GenerationParams struct {
	MaxLength   int     `json:"max_length"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	Seed        int64   `json:"seed"`
}

// Backbone is the boundary to the external causal-LM generation service. The
// backbone is frozen and shared; the core never retrains it.
type Backbone interface {
	// Generate returns decoded text for a prompt, optionally conditioned
	// on a prefix embedding block.
	Generate(ctx context.Context, prompt string, prefix [][]float32, params GenerationParams) (string, error)

	// Scores returns per-position logits for the input token sequence,
	// optionally conditioned on a prefix embedding block. A nil prefix
	// scores the unconditioned backbone.
	Scores(ctx context.Context, inputIDs []int, prefix [][]float32) ([][]float64, error)

	// Available reports whether the service is reachable. Callers use it
	// to choose the placeholder path instead of failing.
	Available(ctx context.Context) bool
}

// HTTPBackbone talks to an inference server exposing Ollama-style generate
// and score endpoints.
type HTTPBackbone struct {
	client   *resty.Client
	endpoint string
	model    string
	logger   hclog.Logger
}

// NewHTTPBackbone builds a backbone client from the global configuration.
func NewHTTPBackbone(cfg *config.Config, logger hclog.Logger) *HTTPBackbone {
	return &HTTPBackbone{
		client:   httpclient.InitializeRestyClient(logger, cfg),
		endpoint: cfg.Backbone.Endpoint,
		model:    cfg.Backbone.Model,
		logger:   logger,
	}
}

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Prefix  [][]float32            `json:"prefix,omitempty"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type scoreRequest struct {
	Model    string      `json:"model"`
	InputIDs []int       `json:"input_ids"`
	Prefix   [][]float32 `json:"prefix,omitempty"`
}

type scoreResponse struct {
	Logits [][]float64 `json:"logits"`
}

// Generate implements the Backbone interface over HTTP.
func (b *HTTPBackbone) Generate(ctx context.Context, prompt string, prefix [][]float32, params GenerationParams) (string, error) {
	var result generateResponse

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(generateRequest{
			Model:  b.model,
			Prompt: prompt,
			Prefix: prefix,
			Stream: false,
			Options: map[string]interface{}{
				"num_predict": params.MaxLength,
				"temperature": params.Temperature,
				"top_p":       params.TopP,
				"seed":        params.Seed,
			},
		}).
		SetResult(&result).
		Post(b.endpoint + "/api/generate")
	if err != nil {
		return "", errors.NewBackboneUnavailableError(b.endpoint, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("backbone generate failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Response, nil
}

// Scores implements the Backbone interface over HTTP.
func (b *HTTPBackbone) Scores(ctx context.Context, inputIDs []int, prefix [][]float32) ([][]float64, error) {
	var result scoreResponse

	resp, err := b.client.R().
		SetContext(ctx).
		SetBody(scoreRequest{
			Model:    b.model,
			InputIDs: inputIDs,
			Prefix:   prefix,
		}).
		SetResult(&result).
		Post(b.endpoint + "/api/score")
	if err != nil {
		return nil, errors.NewBackboneUnavailableError(b.endpoint, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("backbone score failed with status %d: %s", resp.StatusCode(), resp.String())
	}

	return result.Logits, nil
}

// Available implements the Backbone interface over HTTP.
func (b *HTTPBackbone) Available(ctx context.Context) bool {
	if b.endpoint == "" {
		return false
	}
	resp, err := b.client.R().SetContext(ctx).Get(b.endpoint + "/api/version")
	if err != nil {
		b.logger.Debug("backbone not reachable", "endpoint", b.endpoint, "error", err)
		return false
	}
	return !resp.IsError()
}

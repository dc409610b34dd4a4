package model

import (
	"context"
	goerrors "errors"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/prefix"
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// PrefixTunedName is the registry name of the prefix-tuned model.
const PrefixTunedName = "prefix-tuned"

func init() {
	MustRegister(PrefixTunedName, func(opts Options) (Model, error) {
		return NewPrefixTuned(opts)
	})
}

// PrefixTuned wraps a frozen backbone with a pair of prefix modules. The
// secure module conditions generation; the vulnerable module is the
// contrastive negative for the separation loss.
type PrefixTuned struct {
	backbone   Backbone
	secure     *prefix.Module
	vulnerable *prefix.Module
	secureMode bool
	weights    config.Loss
	defaults   config.Backbone
	logger     hclog.Logger
}

// NewPrefixTuned constructs the model with freshly initialized prefix
// modules. The two modules get distinct seeds so they never start identical.
func NewPrefixTuned(opts Options) (*PrefixTuned, error) {
	if opts.Backbone == nil {
		return nil, errors.NewInvalidArgumentError("backbone", "must not be nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	prefixCfg := prefix.Config{
		PrefixLength: opts.Config.Trainer.PrefixLength,
		HiddenDim:    opts.Config.Trainer.HiddenDim,
		Init:         prefix.InitRandom,
	}
	seed := opts.Config.Backbone.Seed

	secure, err := prefix.NewModule(prefixCfg, prefix.ModeSecure, seed)
	if err != nil {
		return nil, fmt.Errorf("failed to build secure prefix: %w", err)
	}
	vulnerable, err := prefix.NewModule(prefixCfg, prefix.ModeVulnerable, seed+1)
	if err != nil {
		return nil, fmt.Errorf("failed to build vulnerable prefix: %w", err)
	}

	return &PrefixTuned{
		backbone:   opts.Backbone,
		secure:     secure,
		vulnerable: vulnerable,
		secureMode: opts.Secure,
		weights:    opts.Config.Loss,
		defaults:   opts.Config.Backbone,
		logger:     logger,
	}, nil
}

// LoadCheckpoint replaces the prefix module matching the checkpoint's mode.
// Only the tiny prefix parameters are loaded; the backbone stays frozen.
func (m *PrefixTuned) LoadCheckpoint(path string) error {
	loaded, err := prefix.Load(path, m.activeModule().Config())
	if err != nil {
		return err
	}

	switch loaded.Mode() {
	case prefix.ModeVulnerable:
		m.vulnerable = loaded
	default:
		m.secure = loaded
	}
	m.logger.Info("prefix checkpoint loaded", "path", path, "mode", string(loaded.Mode()))
	return nil
}

// Generate produces code for a prompt. The placeholder path keeps the rest
// of the pipeline testable before a backbone is wired in.
func (m *PrefixTuned) Generate(ctx context.Context, req GenerateRequest) (schema.GeneratedCode, error) {
	if req.MaxLength <= 0 {
		return schema.GeneratedCode{}, errors.NewInvalidArgumentError("max_length", "must be positive")
	}

	language := req.Language
	if language == "" {
		language = schema.LanguagePython
	}

	if !m.backbone.Available(ctx) {
		m.logger.Warn("backbone unavailable, returning placeholder generation")
		return m.placeholder(req.Prompt, language), nil
	}

	params := GenerationParams{
		MaxLength:   req.MaxLength,
		Temperature: config.SetThen(req.Temperature, m.defaults.Temperature),
		TopP:        config.SetThen(req.TopP, m.defaults.TopP),
		Seed:        config.SetThen(req.Seed, m.defaults.Seed),
	}

	text, err := m.backbone.Generate(ctx, req.Prompt, m.activeModule().Embeddings(), params)
	if err != nil {
		var unavailable *errors.BackboneUnavailableError
		if goerrors.As(err, &unavailable) {
			m.logger.Warn("backbone dropped mid-call, returning placeholder generation", "error", err)
			return m.placeholder(req.Prompt, language), nil
		}
		return schema.GeneratedCode{}, err
	}

	return schema.NewGeneratedCode(text, req.Prompt, language, m.secureMode, false), nil
}

// PrefixEmbeddings returns a snapshot of the active prefix block.
func (m *PrefixTuned) PrefixEmbeddings() [][]float32 {
	return m.activeModule().Embeddings()
}

// ComputeLoss scores the input under the secure prefix, the vulnerable
// prefix and the bare backbone, then composes the three terms locally. With
// no backbone the breakdown is all zeros, never missing fields.
func (m *PrefixTuned) ComputeLoss(ctx context.Context, input LossInput) (LossBreakdown, error) {
	if !m.backbone.Available(ctx) {
		return LossBreakdown{}, nil
	}

	secureLogits, err := m.backbone.Scores(ctx, input.InputIDs, m.secure.Embeddings())
	if err != nil {
		return m.absorbScoreError(err)
	}
	vulnerableLogits, err := m.backbone.Scores(ctx, input.InputIDs, m.vulnerable.Embeddings())
	if err != nil {
		return m.absorbScoreError(err)
	}
	baseLogits, err := m.backbone.Scores(ctx, input.InputIDs, nil)
	if err != nil {
		return m.absorbScoreError(err)
	}

	lm := maskedCrossEntropy(secureLogits, input.Labels, input.DiffMask, m.weights.MaskWeight)
	contrastive := contrastiveSeparation(secureLogits, vulnerableLogits, input.DiffMask, defaultContrastiveMargin)
	kl := meanKLDivergence(secureLogits, baseLogits)

	return combine(lm, contrastive, kl, m.weights), nil
}

// SecureModule exposes the secure prefix module for checkpointing.
func (m *PrefixTuned) SecureModule() *prefix.Module {
	return m.secure
}

// VulnerableModule exposes the vulnerable prefix module for checkpointing.
func (m *PrefixTuned) VulnerableModule() *prefix.Module {
	return m.vulnerable
}

func (m *PrefixTuned) activeModule() *prefix.Module {
	if m.secureMode {
		return m.secure
	}
	return m.vulnerable
}

// absorbScoreError degrades a mid-computation outage to a zero breakdown and
// propagates anything else.
func (m *PrefixTuned) absorbScoreError(err error) (LossBreakdown, error) {
	var unavailable *errors.BackboneUnavailableError
	if goerrors.As(err, &unavailable) {
		m.logger.Warn("backbone dropped during loss computation", "error", err)
		return LossBreakdown{}, nil
	}
	return LossBreakdown{}, err
}

// placeholder builds the tagged stand-in result for an unavailable backbone.
func (m *PrefixTuned) placeholder(prompt, language string) schema.GeneratedCode {
	marker := "#"
	if language == schema.LanguageJava || language == schema.LanguageCPP {
		marker = "//"
	}
	code := fmt.Sprintf("%s placeholder generation for: %s\n", marker, prompt)
	return schema.NewGeneratedCode(code, prompt, language, m.secureMode, true)
}

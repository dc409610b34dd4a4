// Package prefix owns the learnable prefix embeddings that condition the
// frozen backbone. Two variants share one type: the secure prefix biases
// generation toward fixed-style code, the vulnerable prefix is the
// contrastive negative. They differ only in which loss term trains them.
package prefix

import (
	"math"
	"math/rand"

	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// Mode selects the training role of a prefix module.
type Mode string

const (
	ModeSecure     Mode = "secure"
	ModeVulnerable Mode = "vulnerable"
)

// Init strategies for the embedding block.
const (
	InitRandom = "random"
	InitZero   = "zero"
)

// Config describes the shape and initialization of a prefix module.
type Config struct {
	PrefixLength int    `json:"prefix_length" yaml:"prefix_length"`
	HiddenDim    int    `json:"hidden_dim" yaml:"hidden_dim"`
	Init         string `json:"init" yaml:"init"`
}

// Validate checks the construction invariants of the config.
func (c Config) Validate() error {
	if c.PrefixLength <= 0 {
		return errors.NewValidationError("prefix config", "prefix_length", "must be positive")
	}
	if c.HiddenDim <= 0 {
		return errors.NewValidationError("prefix config", "hidden_dim", "must be positive")
	}
	if c.Init != "" && c.Init != InitRandom && c.Init != InitZero {
		return errors.NewValidationError("prefix config", "init", "must be one of random, zero")
	}
	return nil
}

// Module holds one learnable embedding block of shape
// [PrefixLength][HiddenDim] for a single mode.
type Module struct {
	config     Config
	mode       Mode
	embeddings [][]float32
}

// NewModule constructs a prefix module with the given config and mode. The
// random init is seeded so module construction is reproducible.
func NewModule(cfg Config, mode Mode, seed int64) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Init == "" {
		cfg.Init = InitRandom
	}

	embeddings := make([][]float32, cfg.PrefixLength)
	rng := rand.New(rand.NewSource(seed))
	for i := range embeddings {
		row := make([]float32, cfg.HiddenDim)
		if cfg.Init == InitRandom {
			for j := range row {
				// Small-scale normal init, matching the usual
				// prefix-tuning initialization scale.
				row[j] = float32(rng.NormFloat64() * 0.02)
			}
		}
		embeddings[i] = row
	}

	return &Module{config: cfg, mode: mode, embeddings: embeddings}, nil
}

// Config returns the originating configuration.
func (m *Module) Config() Config {
	return m.config
}

// Mode returns the training role of the module.
func (m *Module) Mode() Mode {
	return m.mode
}

// Embeddings returns a deep-copy snapshot of the embedding block. The
// snapshot is safe to hand out; mutating it never touches the module.
func (m *Module) Embeddings() [][]float32 {
	snapshot := make([][]float32, len(m.embeddings))
	for i, row := range m.embeddings {
		snapshot[i] = append([]float32(nil), row...)
	}
	return snapshot
}

// ApplyDelta adds an update to the embedding block in place. The optimizer
// owns when and how deltas are produced; the module only applies them.
func (m *Module) ApplyDelta(delta [][]float32) error {
	if len(delta) != m.config.PrefixLength {
		return errors.NewInvalidArgumentError("delta", "row count must match prefix_length")
	}
	for i, row := range delta {
		if len(row) != m.config.HiddenDim {
			return errors.NewInvalidArgumentError("delta", "column count must match hidden_dim")
		}
		for j, v := range row {
			if !math.IsNaN(float64(v)) {
				m.embeddings[i][j] += v
			}
		}
	}
	return nil
}

// Package model defines the prefix-tuned model contract, its registry, and
// the composite training-loss computation.
package model

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// GenerateRequest carries one generation call's arguments.
type GenerateRequest struct {
	Prompt      string
	MaxLength   int
	Temperature float64
	TopP        float64
	Language    string
	Seed        int64
}

// LossInput carries one training step's tensors in token-id form.
type LossInput struct {
	InputIDs []int
	Labels   []int
	DiffMask []int
}

// Model is the contract a prefix-tuned model implementation must satisfy.
type Model interface {
	// LoadCheckpoint replaces the current prefix modules with ones loaded
	// from path. The backbone stays frozen and untouched.
	LoadCheckpoint(path string) error

	// Generate produces code for a prompt. When the backbone is
	// unavailable it returns a well-formed placeholder result tagged via
	// GeneratedCode.IsPlaceholder rather than failing.
	Generate(ctx context.Context, req GenerateRequest) (schema.GeneratedCode, error)

	// PrefixEmbeddings returns a snapshot of the active prefix block.
	PrefixEmbeddings() [][]float32

	// ComputeLoss returns every term of the composite objective. All four
	// fields are populated even when the backbone is unavailable (zeros).
	ComputeLoss(ctx context.Context, input LossInput) (LossBreakdown, error)
}

// Options carries the environment a model constructor needs.
type Options struct {
	Config   *config.Config
	Logger   hclog.Logger
	Backbone Backbone
	Secure   bool
}

// Constructor builds a Model from its options.
type Constructor func(opts Options) (Model, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Constructor)
)

// Register adds a model constructor under name, failing fast on conflicts.
func Register(name string, constructor Constructor) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return errors.NewRegistrationConflictError("model", name)
	}
	registry[name] = constructor
	return nil
}

// MustRegister registers a model constructor and panics on conflict. It is
// meant for init-time registration only.
func MustRegister(name string, constructor Constructor) {
	if err := Register(name, constructor); err != nil {
		panic(err)
	}
}

// Get returns a model instance for the registered name, or an
// UnknownModelError listing the currently registered names.
func Get(name string, opts Options) (Model, error) {
	registryMu.Lock()
	constructor, exists := registry[name]
	registryMu.Unlock()

	if !exists {
		return nil, errors.NewUnknownModelError(name, RegisteredNames())
	}
	return constructor(opts)
}

// RegisteredNames returns the sorted list of registered model names.
func RegisteredNames() []string {
	registryMu.Lock()
	defer registryMu.Unlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

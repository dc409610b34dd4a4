// Package dataset defines the loader contract for vulnerability/fix corpora,
// the process-wide loader registry, and the diff-mask computation shared by
// the loaders.
package dataset

import (
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// Loader is the contract every dataset implementation must satisfy: bulk
// load, batched load and diff-mask computation.
type Loader interface {
	// Load materializes the full filtered split. An empty result is a
	// valid outcome, not an error.
	Load(cfg schema.DatasetConfig) ([]schema.VulnerabilityPair, error)

	// Iterator produces batches of at most batchSize pairs in a stable,
	// restartable order: re-invoking with the same config reproduces the
	// same sequence of batches. The last batch may be short.
	Iterator(cfg schema.DatasetConfig, batchSize int) (*Iterator, error)

	// ApplyDiffMasking tokenizes both strings and aligns them, labeling
	// every token of the fixed text with 0 (shared) or 1 (changed/added).
	ApplyDiffMasking(vulnerable, fixed string) []int
}

// Options carries the environment a loader constructor needs.
type Options struct {
	// DataDir is the root folder (or repository path) the loader reads from.
	DataDir string
	Logger  hclog.Logger
}

// Constructor builds a Loader from its options.
type Constructor func(opts Options) (Loader, error)

var (
	registryMu sync.Mutex
	registry   = make(map[string]Constructor)
)

// Register adds a dataset constructor under name. Registering the same name
// twice is a configuration error and fails fast instead of overwriting.
func Register(name string, constructor Constructor) error {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[name]; exists {
		return errors.NewRegistrationConflictError("dataset", name)
	}
	registry[name] = constructor
	return nil
}

// MustRegister registers a dataset constructor and panics on conflict. It is
// meant for init-time registration only.
func MustRegister(name string, constructor Constructor) {
	if err := Register(name, constructor); err != nil {
		panic(err)
	}
}

// Get returns a loader instance for the registered name, or an
// UnknownDatasetError listing the currently registered names.
func Get(name string, opts Options) (Loader, error) {
	registryMu.Lock()
	constructor, exists := registry[name]
	registryMu.Unlock()

	if !exists {
		return nil, errors.NewUnknownDatasetError(name, RegisteredNames())
	}
	return constructor(opts)
}

// RegisteredNames returns the sorted list of registered dataset names.
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

// Iterator is a finite, restartable batch sequence over a loaded split.
type Iterator struct {
	pairs     []schema.VulnerabilityPair
	batchSize int
	cursor    int
}

// NewIterator wraps an already materialized, stably ordered pair sequence.
func NewIterator(pairs []schema.VulnerabilityPair, batchSize int) (*Iterator, error) {
	if batchSize <= 0 {
		return nil, errors.NewInvalidArgumentError("batch_size", "must be positive")
	}
	return &Iterator{pairs: pairs, batchSize: batchSize}, nil
}

// Next returns the next batch and true, or nil and false when exhausted.
func (it *Iterator) Next() ([]schema.VulnerabilityPair, bool) {
	if it.cursor >= len(it.pairs) {
		return nil, false
	}
	end := it.cursor + it.batchSize
	if end > len(it.pairs) {
		end = len(it.pairs)
	}
	batch := it.pairs[it.cursor:end]
	it.cursor = end
	return batch, true
}

// Reset rewinds the iterator to the first batch.
func (it *Iterator) Reset() {
	it.cursor = 0
}

// filterPairs applies the language, split-independent CWE and max-sample
// filters of cfg to pairs, preserving order.
func filterPairs(pairs []schema.VulnerabilityPair, cfg schema.DatasetConfig) []schema.VulnerabilityPair {
	allowCWE := make(map[string]bool, len(cfg.FilterCWE))
	for _, id := range cfg.FilterCWE {
		allowCWE[id] = true
	}

	var filtered []schema.VulnerabilityPair
	for _, pair := range pairs {
		if cfg.Language != "" && pair.Language != cfg.Language {
			continue
		}
		if len(allowCWE) > 0 && !allowCWE[pair.CWEID] {
			continue
		}
		filtered = append(filtered, pair)
		if cfg.MaxSamples > 0 && len(filtered) == cfg.MaxSamples {
			break
		}
	}
	return filtered
}

package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
)

// JSONLName is the registry name of the JSONL file loader.
const JSONLName = "jsonl"

func init() {
	MustRegister(JSONLName, func(opts Options) (Loader, error) {
		return NewJSONLLoader(opts.DataDir, opts.Logger), nil
	})
}

// JSONLLoader reads vulnerability pairs from JSON-lines files laid out as
// <data dir>/<dataset name>/<split>.jsonl, one pair object per line. Records
// without a diff mask get one computed from their code pair.
type JSONLLoader struct {
	dataDir string
	logger  hclog.Logger
}

// NewJSONLLoader creates a JSONL loader rooted at dataDir.
func NewJSONLLoader(dataDir string, logger hclog.Logger) *JSONLLoader {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &JSONLLoader{dataDir: dataDir, logger: logger}
}

// Load materializes the full filtered split from the backing file.
func (l *JSONLLoader) Load(cfg schema.DatasetConfig) ([]schema.VulnerabilityPair, error) {
	path := filepath.Join(l.dataDir, cfg.Name, cfg.Split+".jsonl")
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open split file %q: %w", path, err)
	}
	defer file.Close()

	var pairs []schema.VulnerabilityPair
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var pair schema.VulnerabilityPair
		if err := json.Unmarshal(line, &pair); err != nil {
			return nil, fmt.Errorf("malformed record at %s:%d: %w", path, lineNo, err)
		}
		if len(pair.DiffMask) == 0 {
			pair.DiffMask = l.ApplyDiffMasking(pair.VulnerableCode, pair.FixedCode)
		}
		if err := pair.Validate(); err != nil {
			l.logger.Warn("skipping invalid pair", "file", path, "line", lineNo, "error", err)
			continue
		}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read split file %q: %w", path, err)
	}

	filtered := filterPairs(pairs, cfg)
	l.logger.Debug("split loaded", "dataset", cfg.Name, "split", cfg.Split, "total", len(pairs), "selected", len(filtered))
	return filtered, nil
}

// Iterator returns a restartable batch iterator over the filtered split.
func (l *JSONLLoader) Iterator(cfg schema.DatasetConfig, batchSize int) (*Iterator, error) {
	pairs, err := l.Load(cfg)
	if err != nil {
		return nil, err
	}
	return NewIterator(pairs, batchSize)
}

// ApplyDiffMasking computes the token-level diff mask for a code pair.
func (l *JSONLLoader) ApplyDiffMasking(vulnerable, fixed string) []int {
	return DiffMask(vulnerable, fixed)
}

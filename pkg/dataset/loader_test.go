package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

func TestGetUnknownDatasetListsRegisteredNames(t *testing.T) {
	_, err := Get("nope", Options{})

	require.Error(t, err)
	var unknownErr *errors.UnknownDatasetError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Name)
	assert.Contains(t, unknownErr.Available, JSONLName)
	assert.Contains(t, unknownErr.Available, GitPairsName)
}

func TestRegisterConflict(t *testing.T) {
	err := Register(JSONLName, func(Options) (Loader, error) { return nil, nil })

	require.Error(t, err)
	var conflictErr *errors.RegistrationConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.Equal(t, JSONLName, conflictErr.Name)
}

func TestIteratorBatching(t *testing.T) {
	pairs := makePairs(t, 7)

	it, err := NewIterator(pairs, 3)
	require.NoError(t, err)

	var sizes []int
	for {
		batch, ok := it.Next()
		if !ok {
			break
		}
		sizes = append(sizes, len(batch))
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)
}

func TestIteratorResetReproducesSequence(t *testing.T) {
	pairs := makePairs(t, 5)

	it, err := NewIterator(pairs, 2)
	require.NoError(t, err)

	first, ok := it.Next()
	require.True(t, ok)

	it.Reset()
	again, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, first, again)
}

func TestIteratorRejectsNonPositiveBatchSize(t *testing.T) {
	_, err := NewIterator(nil, 0)

	var argErr *errors.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "batch_size", argErr.Argument)
}

func TestJSONLLoaderLoad(t *testing.T) {
	dataDir := t.TempDir()
	writeSplit(t, dataDir, "demo", "train", []map[string]interface{}{
		{
			"vulnerable_code": "eval(user_input)",
			"fixed_code":      "ast.literal_eval(user_input)",
			"diff_mask":       []int{1, 0, 1, 0, 0, 0},
			"cwe_id":          "CWE-094",
			"language":        "python",
		},
		{
			// No mask: the loader computes one.
			"vulnerable_code": "x = a + b",
			"fixed_code":      "x = a + b # safe",
			"cwe_id":          "CWE-089",
			"language":        "python",
		},
		{
			// Invalid: empty fixed code, skipped with a warning.
			"vulnerable_code": "y = 1",
			"fixed_code":      "",
			"cwe_id":          "CWE-089",
			"language":        "python",
		},
	})

	loader := NewJSONLLoader(dataDir, nil)
	pairs, err := loader.Load(schema.DatasetConfig{Name: "demo", Split: "train", Language: "python"})

	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "CWE-094", pairs[0].CWEID)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 1, 1}, pairs[1].DiffMask, "missing mask must be computed")
}

func TestJSONLLoaderFilters(t *testing.T) {
	dataDir := t.TempDir()
	writeSplit(t, dataDir, "demo", "train", []map[string]interface{}{
		{"vulnerable_code": "a", "fixed_code": "b", "diff_mask": []int{1}, "cwe_id": "CWE-089", "language": "python"},
		{"vulnerable_code": "c", "fixed_code": "d", "diff_mask": []int{1}, "cwe_id": "CWE-078", "language": "python"},
		{"vulnerable_code": "e", "fixed_code": "f", "diff_mask": []int{1}, "cwe_id": "CWE-089", "language": "java"},
	})
	loader := NewJSONLLoader(dataDir, nil)

	tests := []struct {
		name     string
		cfg      schema.DatasetConfig
		expected int
	}{
		{
			name:     "language filter",
			cfg:      schema.DatasetConfig{Name: "demo", Split: "train", Language: "python"},
			expected: 2,
		},
		{
			name:     "cwe allow list",
			cfg:      schema.DatasetConfig{Name: "demo", Split: "train", FilterCWE: []string{"CWE-078"}},
			expected: 1,
		},
		{
			name:     "max samples cap",
			cfg:      schema.DatasetConfig{Name: "demo", Split: "train", MaxSamples: 1},
			expected: 1,
		},
		{
			name:     "no filters",
			cfg:      schema.DatasetConfig{Name: "demo", Split: "train"},
			expected: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pairs, err := loader.Load(tt.cfg)
			require.NoError(t, err)
			assert.Len(t, pairs, tt.expected)
		})
	}
}

func TestJSONLLoaderMissingSplit(t *testing.T) {
	loader := NewJSONLLoader(t.TempDir(), nil)

	_, err := loader.Load(schema.DatasetConfig{Name: "demo", Split: "train"})

	assert.Error(t, err)
}

func makePairs(t *testing.T, n int) []schema.VulnerabilityPair {
	t.Helper()
	pairs := make([]schema.VulnerabilityPair, 0, n)
	for i := 0; i < n; i++ {
		pair, err := schema.NewVulnerabilityPair("vuln", "fixed", []int{0, 1}, "CWE-089", schema.LanguagePython)
		require.NoError(t, err)
		pairs = append(pairs, pair)
	}
	return pairs
}

func writeSplit(t *testing.T, dataDir, name, split string, records []map[string]interface{}) {
	t.Helper()
	dir := filepath.Join(dataDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var lines []byte
	for _, record := range records {
		encoded, err := json.Marshal(record)
		require.NoError(t, err)
		lines = append(lines, encoded...)
		lines = append(lines, '\n')
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, split+".jsonl"), lines, 0o644))
}

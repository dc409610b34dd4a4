package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// stubScanner returns scripted findings keyed by sample code.
type stubScanner struct {
	findings map[string][]string
}

func (s *stubScanner) Scan(_ context.Context, sample schema.GeneratedCode) ([]string, error) {
	return s.findings[sample.Code], nil
}

func TestComputeSecurityRate(t *testing.T) {
	tests := []struct {
		name          string
		findings      [][]string
		expectedRate  float64
		expectedTotal int
	}{
		{
			name:          "all clean",
			findings:      [][]string{{}, nil, {}},
			expectedRate:  100.0,
			expectedTotal: 0,
		},
		{
			name:          "half clean",
			findings:      [][]string{{"CWE-089"}, {}},
			expectedRate:  50.0,
			expectedTotal: 1,
		},
		{
			name:          "all vulnerable",
			findings:      [][]string{{"CWE-078", "CWE-089"}},
			expectedRate:  0.0,
			expectedTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, total, _, err := ComputeSecurityRate(tt.findings)
			require.NoError(t, err)
			assert.InDelta(t, tt.expectedRate, rate, 1e-9)
			assert.Equal(t, tt.expectedTotal, total)
		})
	}
}

func TestComputeSecurityRateEmptyInput(t *testing.T) {
	_, _, _, err := ComputeSecurityRate(nil)

	var emptyErr *errors.EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
}

func TestComputeSecurityRateBreakdown(t *testing.T) {
	_, _, breakdown, err := ComputeSecurityRate([][]string{
		{"CWE-089", "CWE-089"},
		{"CWE-078"},
		{},
	})

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"CWE-089": 2, "CWE-078": 1}, breakdown)
}

func TestSecurityEvaluatorAnnotatesById(t *testing.T) {
	vulnerable := schema.NewGeneratedCode("eval(x)", "p", schema.LanguagePython, true, false)
	clean := schema.NewGeneratedCode("return 1", "p", schema.LanguagePython, true, false)

	evaluator := NewSecurityEvaluator(&stubScanner{findings: map[string][]string{
		"eval(x)": {"CWE-094"},
	}}, nil)

	result, err := evaluator.Evaluate(context.Background(), []schema.GeneratedCode{vulnerable, clean})

	require.NoError(t, err)
	assert.InDelta(t, 50.0, result.Rate, 1e-9)
	assert.Equal(t, 1, result.TotalVulnerabilities)
	assert.Equal(t, map[string]int{"CWE-094": 1}, result.CWEBreakdown)
	assert.Equal(t, []string{"CWE-094"}, result.Annotations[vulnerable.ID].SecurityViolations)
	assert.Empty(t, result.Annotations[clean.ID].SecurityViolations)
}

func TestSecurityEvaluatorEmptyInput(t *testing.T) {
	evaluator := NewSecurityEvaluator(&stubScanner{}, nil)

	_, err := evaluator.Evaluate(context.Background(), nil)

	var emptyErr *errors.EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
}

func TestRuleScanner(t *testing.T) {
	tests := []struct {
		name     string
		language string
		code     string
		expected []string
	}{
		{
			name:     "shell injection",
			language: schema.LanguagePython,
			code:     "subprocess.run(cmd, shell=True)",
			expected: []string{"CWE-078"},
		},
		{
			name:     "sql concatenation",
			language: schema.LanguagePython,
			code:     `cursor.execute("SELECT * FROM t WHERE id = " + uid)`,
			expected: []string{"CWE-089"},
		},
		{
			name:     "eval of input",
			language: schema.LanguagePython,
			code:     "result = eval(expr)",
			expected: []string{"CWE-094"},
		},
		{
			name:     "clean python",
			language: schema.LanguagePython,
			code:     "def add(a, b):\n    return a + b\n",
			expected: nil,
		},
		{
			name:     "unsafe c string copy",
			language: schema.LanguageCPP,
			code:     "strcpy(dst, src);",
			expected: []string{"CWE-787"},
		},
		{
			name:     "java runtime exec",
			language: schema.LanguageJava,
			code:     `Runtime.getRuntime().exec(cmd);`,
			expected: []string{"CWE-078"},
		},
		{
			name:     "unknown language scans clean",
			language: "go",
			code:     "os.system('x')",
			expected: nil,
		},
	}

	scanner := NewRuleScanner(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sample := schema.GeneratedCode{ID: "s", Code: tt.code, Language: tt.language}
			cwes, err := scanner.Scan(context.Background(), sample)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cwes)
		})
	}
}

func TestSortedCWEsDeduplicates(t *testing.T) {
	assert.Equal(t, []string{"CWE-078", "CWE-089"}, SortedCWEs([]string{"CWE-089", "CWE-078", "CWE-089"}))
}

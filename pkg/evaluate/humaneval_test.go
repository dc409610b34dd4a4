package evaluate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

func TestPassAtKEstimator(t *testing.T) {
	tests := []struct {
		name     string
		n, c, k  int
		expected float64
	}{
		{name: "single correct candidate", n: 1, c: 1, k: 1, expected: 1.0},
		{name: "single wrong candidate", n: 1, c: 0, k: 1, expected: 0.0},
		{name: "half correct at k 1", n: 4, c: 2, k: 1, expected: 0.5},
		{name: "all correct", n: 10, c: 10, k: 3, expected: 1.0},
		{name: "none correct", n: 10, c: 0, k: 5, expected: 0.0},
		{name: "k covers the wrong ones", n: 5, c: 2, k: 4, expected: 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, passAtK(tt.n, tt.c, tt.k), 1e-9)
		})
	}
}

func TestPassAtKMonotoneInK(t *testing.T) {
	previous := 0.0
	for k := 1; k <= 7; k++ {
		current := passAtK(10, 3, k)
		assert.GreaterOrEqual(t, current, previous, "pass@%d must not drop below pass@%d", k, k-1)
		previous = current
	}
}

func newTestRunner() *HumanEvalRunner {
	return NewHumanEvalRunner(&config.Config{}, nil)
}

func TestRunHumanEvalEmptyProblems(t *testing.T) {
	_, _, err := newTestRunner().RunHumanEval(context.Background(), nil, nil, []int{1})

	var emptyErr *errors.EmptyInputError
	require.ErrorAs(t, err, &emptyErr)
}

func TestRunHumanEvalInsufficientSamples(t *testing.T) {
	problems := []Problem{{TaskID: "t1", Prompt: "p"}}
	candidates := map[string][]schema.GeneratedCode{
		"t1": {schema.NewGeneratedCode("x", "p", schema.LanguagePython, true, false)},
	}

	_, _, err := newTestRunner().RunHumanEval(context.Background(), problems, candidates, []int{10})

	var samplesErr *errors.InsufficientSamplesError
	require.ErrorAs(t, err, &samplesErr)
	assert.Equal(t, 10, samplesErr.K)
	assert.Equal(t, 1, samplesErr.Samples)
}

func TestRunHumanEvalAnnotatesCandidates(t *testing.T) {
	// Problems without test cases count every candidate as correct; the
	// point here is aggregation, not execution.
	problems := []Problem{
		{TaskID: "t1", Prompt: "p1"},
		{TaskID: "t2", Prompt: "p2"},
	}
	candidates := map[string][]schema.GeneratedCode{
		"t1": {
			schema.NewGeneratedCode("a", "p1", schema.LanguagePython, true, false),
			schema.NewGeneratedCode("b", "p1", schema.LanguagePython, true, false),
		},
		"t2": {
			schema.NewGeneratedCode("c", "p2", schema.LanguagePython, true, false),
			schema.NewGeneratedCode("d", "p2", schema.LanguagePython, true, false),
		},
	}

	rates, annotations, err := newTestRunner().RunHumanEval(context.Background(), problems, candidates, []int{1, 2})

	require.NoError(t, err)
	assert.InDelta(t, 100.0, rates["pass@1"], 1e-9)
	assert.InDelta(t, 100.0, rates["pass@2"], 1e-9)
	require.Len(t, annotations, 4)
	for id, annotation := range annotations {
		require.NotNil(t, annotation.FunctionallyCorrect, "candidate %s must be annotated", id)
		assert.True(t, *annotation.FunctionallyCorrect)
	}
}

func TestRunHumanEvalRejectsNonPositiveK(t *testing.T) {
	problems := []Problem{{TaskID: "t1", Prompt: "p"}}
	candidates := map[string][]schema.GeneratedCode{
		"t1": {schema.NewGeneratedCode("x", "p", schema.LanguagePython, true, false)},
	}

	_, _, err := newTestRunner().RunHumanEval(context.Background(), problems, candidates, []int{0})

	var argErr *errors.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
}

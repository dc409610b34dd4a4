package model

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
)

func TestSoftmaxIsDistribution(t *testing.T) {
	probs := softmax([]float64{1.0, 2.0, 3.0, 1000.0})

	var sum float64
	for _, p := range probs {
		require.GreaterOrEqual(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[3], probs[2], "larger logits get larger mass")
}

func TestCombineWeighting(t *testing.T) {
	weights := config.Loss{LMWeight: 1.0, ContrastiveWeight: 0.5, KLWeight: 0.1}

	breakdown := combine(1.0, 2.0, 3.0, weights)

	assert.Equal(t, 1.0, breakdown.LM)
	assert.Equal(t, 2.0, breakdown.Contrastive)
	assert.Equal(t, 3.0, breakdown.KL)
	assert.InDelta(t, 2.3, breakdown.Total, 1e-9)
}

func TestMaskedCrossEntropy(t *testing.T) {
	peaked := [][]float64{
		{20, 0, 0},
		{0, 20, 0},
	}
	uniform := [][]float64{
		{0, 0, 0},
		{0, 0, 0},
	}

	t.Run("confident correct predictions cost nearly nothing", func(t *testing.T) {
		loss := maskedCrossEntropy(peaked, []int{0, 1}, []int{0, 0}, 2.0)
		assert.InDelta(t, 0.0, loss, 1e-6)
	})

	t.Run("uniform predictions cost log vocab size", func(t *testing.T) {
		loss := maskedCrossEntropy(uniform, []int{0, 1}, []int{0, 0}, 2.0)
		assert.InDelta(t, math.Log(3), loss, 1e-9)
	})

	t.Run("mask weighting shifts the mean towards masked positions", func(t *testing.T) {
		logits := [][]float64{
			{20, 0}, // correct, near-zero loss
			{0, 0},  // uncertain
		}
		unweighted := maskedCrossEntropy(logits, []int{0, 1}, []int{0, 0}, 2.0)
		weighted := maskedCrossEntropy(logits, []int{0, 1}, []int{0, 1}, 2.0)
		assert.Greater(t, weighted, unweighted)
	})

	t.Run("empty input is zero", func(t *testing.T) {
		assert.Zero(t, maskedCrossEntropy(nil, nil, nil, 2.0))
	})

	t.Run("out of range labels are skipped", func(t *testing.T) {
		loss := maskedCrossEntropy([][]float64{{0, 0}}, []int{5}, []int{1}, 2.0)
		assert.Zero(t, loss)
	})
}

func TestContrastiveSeparation(t *testing.T) {
	a := [][]float64{{5, 0, 0}, {0, 5, 0}}
	b := [][]float64{{0, 0, 5}, {0, 5, 0}}

	t.Run("identical distributions pay the full margin", func(t *testing.T) {
		loss := contrastiveSeparation(a, a, []int{1, 1}, 1.0)
		assert.InDelta(t, 1.0, loss, 1e-9)
	})

	t.Run("well separated masked positions pay nothing", func(t *testing.T) {
		loss := contrastiveSeparation(a, b, []int{1, 0}, 1.0)
		assert.InDelta(t, 0.0, loss, 1e-6)
	})

	t.Run("unmasked positions are ignored", func(t *testing.T) {
		loss := contrastiveSeparation(a, a, []int{0, 0}, 1.0)
		assert.Zero(t, loss)
	})
}

func TestMeanKLDivergence(t *testing.T) {
	a := [][]float64{{5, 0}, {0, 5}}
	b := [][]float64{{0, 5}, {5, 0}}

	assert.InDelta(t, 0.0, meanKLDivergence(a, a), 1e-9)
	assert.Greater(t, meanKLDivergence(a, b), 0.0)
	assert.Zero(t, meanKLDivergence(nil, nil))
}

func TestKLDivergenceNonNegative(t *testing.T) {
	p := softmax([]float64{1, 2, 3})
	q := softmax([]float64{3, 2, 1})

	assert.GreaterOrEqual(t, klDivergence(p, q), 0.0)
	assert.InDelta(t, 0.0, klDivergence(p, p), 1e-12)
}

package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// fakeBackbone is an in-memory Backbone with scripted responses.
type fakeBackbone struct {
	available     bool
	response      string
	logits        [][]float64
	generateCalls int
	scoreCalls    int
}

func (f *fakeBackbone) Generate(_ context.Context, prompt string, _ [][]float32, _ GenerationParams) (string, error) {
	f.generateCalls++
	return f.response, nil
}

func (f *fakeBackbone) Scores(_ context.Context, inputIDs []int, _ [][]float32) ([][]float64, error) {
	f.scoreCalls++
	return f.logits, nil
}

func (f *fakeBackbone) Available(context.Context) bool {
	return f.available
}

func testConfig() *config.Config {
	return &config.Config{
		Trainer: config.Trainer{PrefixLength: 4, HiddenDim: 8},
		Loss:    config.DefaultLoss(),
	}
}

func newTestModel(t *testing.T, backbone Backbone, secure bool) Model {
	t.Helper()
	m, err := Get(PrefixTunedName, Options{
		Config:   testConfig(),
		Backbone: backbone,
		Secure:   secure,
	})
	require.NoError(t, err)
	return m
}

func TestGetUnknownModelListsRegisteredNames(t *testing.T) {
	_, err := Get("nope", Options{})

	var unknownErr *errors.UnknownModelError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "nope", unknownErr.Name)
	assert.Contains(t, unknownErr.Available, PrefixTunedName)
}

func TestNewPrefixTunedRequiresBackbone(t *testing.T) {
	_, err := NewPrefixTuned(Options{Config: testConfig()})

	var argErr *errors.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "backbone", argErr.Argument)
}

func TestGenerateRejectsNonPositiveMaxLength(t *testing.T) {
	m := newTestModel(t, &fakeBackbone{available: true}, true)

	_, err := m.Generate(context.Background(), GenerateRequest{Prompt: "def f():"})

	var argErr *errors.InvalidArgumentError
	require.ErrorAs(t, err, &argErr)
	assert.Equal(t, "max_length", argErr.Argument)
}

func TestGeneratePlaceholderWhenBackboneUnavailable(t *testing.T) {
	backbone := &fakeBackbone{available: false}
	m := newTestModel(t, backbone, true)

	sample, err := m.Generate(context.Background(), GenerateRequest{Prompt: "def f():", MaxLength: 64})

	require.NoError(t, err)
	assert.True(t, sample.IsPlaceholder)
	assert.True(t, sample.IsSecureMode)
	assert.NotEmpty(t, sample.ID)
	assert.Contains(t, sample.Code, "def f():")
	assert.Zero(t, backbone.generateCalls, "an unavailable backbone must not be called")
}

func TestGenerateUsesBackboneWhenAvailable(t *testing.T) {
	backbone := &fakeBackbone{available: true, response: "    return 1\n"}
	m := newTestModel(t, backbone, false)

	sample, err := m.Generate(context.Background(), GenerateRequest{Prompt: "def f():", MaxLength: 64})

	require.NoError(t, err)
	assert.False(t, sample.IsPlaceholder)
	assert.False(t, sample.IsSecureMode)
	assert.Equal(t, "    return 1\n", sample.Code)
	assert.Equal(t, 1, backbone.generateCalls)
}

func TestComputeLossZerosWhenBackboneUnavailable(t *testing.T) {
	m := newTestModel(t, &fakeBackbone{available: false}, true)

	breakdown, err := m.ComputeLoss(context.Background(), LossInput{
		InputIDs: []int{1, 2},
		Labels:   []int{1, 2},
		DiffMask: []int{0, 1},
	})

	require.NoError(t, err)
	assert.Zero(t, breakdown.LM)
	assert.Zero(t, breakdown.Contrastive)
	assert.Zero(t, breakdown.KL)
	assert.Zero(t, breakdown.Total)
}

func TestComputeLossCombinesTerms(t *testing.T) {
	backbone := &fakeBackbone{
		available: true,
		logits: [][]float64{
			{1, 0, 0},
			{0, 1, 0},
		},
	}
	m := newTestModel(t, backbone, true)

	breakdown, err := m.ComputeLoss(context.Background(), LossInput{
		InputIDs: []int{0, 1},
		Labels:   []int{0, 1},
		DiffMask: []int{0, 1},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, backbone.scoreCalls, "secure, vulnerable and base scoring passes")
	assert.Greater(t, breakdown.LM, 0.0)
	assert.Greater(t, breakdown.Contrastive, 0.0, "identical logits pay the hinge margin")
	assert.InDelta(t, 0.0, breakdown.KL, 1e-9, "identical logits have no divergence")

	weights := config.DefaultLoss()
	expected := weights.LMWeight*breakdown.LM + weights.ContrastiveWeight*breakdown.Contrastive + weights.KLWeight*breakdown.KL
	assert.InDelta(t, expected, breakdown.Total, 1e-9)
}

func TestLoadCheckpointReplacesMatchingModule(t *testing.T) {
	m := newTestModel(t, &fakeBackbone{}, true)
	tuned, ok := m.(*PrefixTuned)
	require.True(t, ok)

	delta := make([][]float32, 4)
	for i := range delta {
		delta[i] = []float32{1, 1, 1, 1, 1, 1, 1, 1}
	}
	require.NoError(t, tuned.SecureModule().ApplyDelta(delta))

	path := t.TempDir() + "/secure.json"
	require.NoError(t, tuned.SecureModule().Save(path))

	other := newTestModel(t, &fakeBackbone{}, true)
	require.NoError(t, other.LoadCheckpoint(path))
	assert.Equal(t, tuned.SecureModule().Embeddings(), other.PrefixEmbeddings())
}

// Package trainer drives the contrastive prefix-tuning loop: batches from a
// dataset loader, composite loss from the model, optimizer steps, and
// per-epoch evaluation.
package trainer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/dataset"
	"github.com/prefixsec/prefixsec/pkg/evaluate"
	"github.com/prefixsec/prefixsec/pkg/model"
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// dryRunPrompt is the fixed prompt of the plumbing check. It exists only to
// exercise the generation path end to end.
const dryRunPrompt = "def add(a, b):"

// evalSampleCap bounds how many pairs feed the per-epoch security
// evaluation. Generation is the expensive part of the loop.
const evalSampleCap = 16

// Optimizer consumes one batch's loss breakdown and updates the prefix
// parameters. Gradient computation lives behind this boundary; the trainer
// only reports losses into it.
type Optimizer interface {
	Step(ctx context.Context, loss model.LossBreakdown) error
}

// RecordingOptimizer keeps the loss trajectory without touching parameters.
// It is the step implementation used until a gradient service is wired in.
type RecordingOptimizer struct {
	History []model.LossBreakdown
}

// Step implements the Optimizer interface.
func (o *RecordingOptimizer) Step(_ context.Context, loss model.LossBreakdown) error {
	o.History = append(o.History, loss)
	return nil
}

// Options carries everything a Trainer needs. Security, Functional and
// Problems are optional; a nil evaluator leaves its metric fields absent.
type Options struct {
	Config     *config.Config
	Logger     hclog.Logger
	Model      model.Model
	Loader     dataset.Loader
	Optimizer  Optimizer
	Security   *evaluate.SecurityEvaluator
	Functional *evaluate.HumanEvalRunner
	Problems   []evaluate.Problem
}

// Trainer runs the epoch loop described by the trainer configuration.
type Trainer struct {
	cfg        *config.Config
	logger     hclog.Logger
	model      model.Model
	loader     dataset.Loader
	optimizer  Optimizer
	security   *evaluate.SecurityEvaluator
	functional *evaluate.HumanEvalRunner
	problems   []evaluate.Problem

	// vocab maps tokens to stable ids for the backbone scoring calls. It is
	// local to one trainer and grows monotonically.
	vocab map[string]int
}

// NewTrainer wires a trainer from its options.
func NewTrainer(opts Options) (*Trainer, error) {
	if opts.Model == nil {
		return nil, fmt.Errorf("trainer requires a model")
	}
	if opts.Optimizer == nil {
		opts.Optimizer = &RecordingOptimizer{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &Trainer{
		cfg:        opts.Config,
		logger:     logger,
		model:      opts.Model,
		loader:     opts.Loader,
		optimizer:  opts.Optimizer,
		security:   opts.Security,
		functional: opts.Functional,
		problems:   opts.Problems,
		vocab:      make(map[string]int),
	}, nil
}

// Run executes the configured training mode and returns the metrics of the
// final evaluation pass. Dry-run mode returns empty metrics.
func (t *Trainer) Run(ctx context.Context) (evaluate.Metrics, error) {
	if t.cfg.Trainer.DryRun {
		return evaluate.Metrics{}, t.dryRun(ctx)
	}
	return t.train(ctx)
}

// dryRun exercises the generation path once, without touching the dataset.
// A placeholder result is a pass: the point is plumbing, not quality.
func (t *Trainer) dryRun(ctx context.Context) error {
	t.logger.Info("dry run: single generation, no dataset access")

	sample, err := t.model.Generate(ctx, model.GenerateRequest{
		Prompt:    dryRunPrompt,
		MaxLength: config.SetThen(t.cfg.Backbone.MaxLength, 128),
		Language:  schema.LanguagePython,
	})
	if err != nil {
		return fmt.Errorf("dry run generation failed: %w", err)
	}

	t.logger.Info("dry run finished",
		"id", sample.ID,
		"placeholder", sample.IsPlaceholder,
		"generated_chars", len(sample.Code))
	return nil
}

func (t *Trainer) train(ctx context.Context) (evaluate.Metrics, error) {
	if t.loader == nil {
		return evaluate.Metrics{}, fmt.Errorf("trainer requires a dataset loader")
	}

	var metrics evaluate.Metrics
	for epoch := 1; epoch <= t.cfg.Trainer.NumEpochs; epoch++ {
		if err := t.runEpoch(ctx, epoch); err != nil {
			return evaluate.Metrics{}, err
		}

		if t.cfg.Trainer.EvalEachEpoch {
			metrics = t.evaluateEpoch(ctx, epoch)
		}
	}
	return metrics, nil
}

// runEpoch walks every batch of the split once. A malformed pair aborts its
// batch, never the epoch.
func (t *Trainer) runEpoch(ctx context.Context, epoch int) error {
	iterator, err := t.loader.Iterator(t.cfg.Dataset, t.cfg.Trainer.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to open batch iterator: %w", err)
	}

	var batches, steps int
	var epochLoss float64
	for {
		batch, ok := iterator.Next()
		if !ok {
			break
		}
		batches++

		loss, stepped, err := t.trainBatch(ctx, batch)
		if err != nil {
			return err
		}
		if stepped {
			steps++
			epochLoss += loss.Total
		}
	}

	if steps > 0 {
		epochLoss /= float64(steps)
	}
	t.logger.Info("epoch finished", "epoch", epoch, "batches", batches, "steps", steps, "mean_total_loss", epochLoss)
	return nil
}

// trainBatch computes the mean loss over one batch and feeds it to the
// optimizer. The bool result reports whether an optimizer step happened.
func (t *Trainer) trainBatch(ctx context.Context, batch []schema.VulnerabilityPair) (model.LossBreakdown, bool, error) {
	var sum model.LossBreakdown
	var counted int

	for _, pair := range batch {
		if err := pair.Validate(); err != nil {
			t.logger.Error("malformed pair, aborting batch", "error", err)
			return model.LossBreakdown{}, false, nil
		}

		loss, err := t.model.ComputeLoss(ctx, t.lossInput(pair))
		if err != nil {
			return model.LossBreakdown{}, false, fmt.Errorf("loss computation failed: %w", err)
		}
		sum.LM += loss.LM
		sum.Contrastive += loss.Contrastive
		sum.KL += loss.KL
		sum.Total += loss.Total
		counted++
	}
	if counted == 0 {
		return model.LossBreakdown{}, false, nil
	}

	mean := model.LossBreakdown{
		LM:          sum.LM / float64(counted),
		Contrastive: sum.Contrastive / float64(counted),
		KL:          sum.KL / float64(counted),
		Total:       sum.Total / float64(counted),
	}
	if err := t.optimizer.Step(ctx, mean); err != nil {
		return model.LossBreakdown{}, false, fmt.Errorf("optimizer step failed: %w", err)
	}
	return mean, true, nil
}

// lossInput tokenizes the pair's fixed code into stable ids. Labels equal
// the input ids: the backbone scores next-token targets itself.
func (t *Trainer) lossInput(pair schema.VulnerabilityPair) model.LossInput {
	tokens := dataset.Tokenize(pair.FixedCode)
	ids := make([]int, len(tokens))
	for i, token := range tokens {
		id, ok := t.vocab[token]
		if !ok {
			id = len(t.vocab)
			t.vocab[token] = id
		}
		ids[i] = id
	}
	return model.LossInput{InputIDs: ids, Labels: ids, DiffMask: pair.DiffMask}
}

// evaluateEpoch runs the configured evaluators. A failing evaluator logs and
// leaves its metric fields absent; evaluation never aborts training.
func (t *Trainer) evaluateEpoch(ctx context.Context, epoch int) evaluate.Metrics {
	var security *evaluate.SecurityResult
	var passAtK map[string]float64

	if t.security != nil {
		if result, err := t.runSecurityEval(ctx); err != nil {
			t.logger.Warn("security evaluation failed, leaving metrics absent", "epoch", epoch, "error", err)
		} else {
			security = &result
		}
	}

	if t.functional != nil && len(t.problems) > 0 {
		if rates, err := t.runFunctionalEval(ctx); err != nil {
			t.logger.Warn("functional evaluation failed, leaving metrics absent", "epoch", epoch, "error", err)
		} else {
			passAtK = rates
		}
	}

	metrics := evaluate.BuildMetrics(security, passAtK)
	t.logger.Info("evaluation finished", "epoch", epoch, "metrics", metrics.String())
	t.writeMetrics(epoch, metrics)
	return metrics
}

// runSecurityEval generates one completion per evaluation prompt and scans
// the results.
func (t *Trainer) runSecurityEval(ctx context.Context) (evaluate.SecurityResult, error) {
	pairs, err := t.loader.Load(t.cfg.Dataset)
	if err != nil {
		return evaluate.SecurityResult{}, err
	}
	if len(pairs) > evalSampleCap {
		pairs = pairs[:evalSampleCap]
	}

	samples := make([]schema.GeneratedCode, 0, len(pairs))
	for _, pair := range pairs {
		sample, err := t.model.Generate(ctx, model.GenerateRequest{
			Prompt:    pair.VulnerableCode,
			MaxLength: config.SetThen(t.cfg.Backbone.MaxLength, 128),
			Language:  pair.Language,
		})
		if err != nil {
			return evaluate.SecurityResult{}, err
		}
		samples = append(samples, sample)
	}

	return t.security.Evaluate(ctx, samples)
}

// runFunctionalEval generates k candidates per problem and scores pass@k.
func (t *Trainer) runFunctionalEval(ctx context.Context) (map[string]float64, error) {
	kValues := t.cfg.Trainer.KValues
	maxK := 1
	for _, k := range kValues {
		if k > maxK {
			maxK = k
		}
	}

	candidates := make(map[string][]schema.GeneratedCode, len(t.problems))
	for _, problem := range t.problems {
		for i := 0; i < maxK; i++ {
			sample, err := t.model.Generate(ctx, model.GenerateRequest{
				Prompt:    problem.Prompt,
				MaxLength: config.SetThen(t.cfg.Backbone.MaxLength, 128),
				Language:  schema.LanguagePython,
				Seed:      t.cfg.Backbone.Seed + int64(i),
			})
			if err != nil {
				return nil, err
			}
			candidates[problem.TaskID] = append(candidates[problem.TaskID], sample)
		}
	}

	rates, _, err := t.functional.RunHumanEval(ctx, t.problems, candidates, kValues)
	return rates, err
}

// writeMetrics persists one epoch's metrics to the results folder. Failure
// to persist is logged and absorbed.
func (t *Trainer) writeMetrics(epoch int, metrics evaluate.Metrics) {
	resultsHome := config.GetResultsHome(t.cfg)
	if err := files.CreateFolderIfNotExists(resultsHome); err != nil {
		t.logger.Warn("failed to prepare results folder", "error", err)
		return
	}

	path := filepath.Join(resultsHome, fmt.Sprintf("metrics_epoch_%d.json", epoch))
	if err := files.WriteJSONFile(path, metrics.ToMap()); err != nil {
		t.logger.Warn("failed to write metrics file", "path", path, "error", err)
		return
	}
	t.logger.Debug("metrics written", "path", path)
}

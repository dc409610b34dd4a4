package train

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/prefixsec/prefixsec/internal/trainer"
	"github.com/prefixsec/prefixsec/pkg/dataset"
	"github.com/prefixsec/prefixsec/pkg/evaluate"
	"github.com/prefixsec/prefixsec/pkg/model"
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
	"github.com/prefixsec/prefixsec/pkg/shared/logger"
)

// RunOptionsTrain holds the arguments for the train command.
type RunOptionsTrain struct {
	Dataset      string
	DataDir      string
	Model        string
	Checkpoint   string
	ProblemsFile string
	Epochs       int
	BatchSize    int
	DryRun       bool
}

var (
	AppConfig         *config.Config
	trainOptions      RunOptionsTrain
	exampleTrainUsage = `  # Verifying the pipeline plumbing without a dataset
  prefixsec train --dry-run

  # Training on the jsonl dataset for three epochs
  prefixsec train --dataset jsonl --data-dir /path/to/data --epochs 3

  # Resuming from a saved prefix checkpoint
  prefixsec train --dataset jsonl --data-dir /path/to/data --checkpoint /path/to/secure.json

  # Training with per-epoch functional evaluation
  prefixsec train --dataset jsonl --data-dir /path/to/data --problems /path/to/problems.json`
)

// TrainCmd represents the train command.
var TrainCmd = &cobra.Command{
	Use:                   "train [--dataset/-d NAME] [--data-dir PATH] [--model/-m NAME] [--epochs N] [--batch-size N] [--checkpoint PATH] [--problems PATH] [--dry-run]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleTrainUsage,
	Short:                 "Runs the contrastive prefix-tuning loop",
	RunE:                  runTrainCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runTrainCommand(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(AppConfig, "core-train")

	applyTrainOverrides(AppConfig, &trainOptions)
	if err := validateTrainArgs(AppConfig, &trainOptions); err != nil {
		log.Error("invalid train arguments", "error", err)
		return err
	}

	backbone := model.NewHTTPBackbone(AppConfig, log)
	m, err := model.Get(trainOptions.Model, model.Options{
		Config:   AppConfig,
		Logger:   log,
		Backbone: backbone,
		Secure:   true,
	})
	if err != nil {
		log.Error("failed to build model", "error", err)
		return err
	}
	if trainOptions.Checkpoint != "" {
		if err := m.LoadCheckpoint(trainOptions.Checkpoint); err != nil {
			log.Error("failed to load checkpoint", "path", trainOptions.Checkpoint, "error", err)
			return err
		}
	}

	opts := trainer.Options{
		Config: AppConfig,
		Logger: log,
		Model:  m,
	}

	if !AppConfig.Trainer.DryRun {
		loader, err := dataset.Get(AppConfig.Dataset.Name, dataset.Options{
			DataDir: trainOptions.DataDir,
			Logger:  log,
		})
		if err != nil {
			log.Error("failed to build dataset loader", "error", err)
			return err
		}
		opts.Loader = loader
		opts.Security = evaluate.NewSecurityEvaluator(newScanner(AppConfig, log), log)

		if trainOptions.ProblemsFile != "" {
			var problems []evaluate.Problem
			if err := files.ReadJSONFile(trainOptions.ProblemsFile, &problems); err != nil {
				log.Error("failed to read problems file", "path", trainOptions.ProblemsFile, "error", err)
				return err
			}
			opts.Functional = evaluate.NewHumanEvalRunner(AppConfig, log)
			opts.Problems = problems
		}
	}

	t, err := trainer.NewTrainer(opts)
	if err != nil {
		log.Error("failed to build trainer", "error", err)
		return err
	}

	metrics, err := t.Run(context.Background())
	if err != nil {
		log.Error("training failed", "error", err)
		return err
	}
	log.Info("training finished", "metrics", metrics.String())

	if err := saveCheckpoints(m, AppConfig, log); err != nil {
		return err
	}

	log.Info("train command completed successfully")
	return nil
}

// newScanner selects the configured analyzer plugin or falls back to the
// in-process rule scanner.
func newScanner(cfg *config.Config, log hclog.Logger) evaluate.Scanner {
	analyzer := cfg.Evaluator.Analyzer
	if analyzer == "" || analyzer == evaluate.RuleScannerName {
		return evaluate.NewRuleScanner(log)
	}
	return evaluate.NewSARIFScanner(cfg, log)
}

// saveCheckpoints persists both prefix modules when the model exposes them.
// Dry runs save too; the checkpoints are tiny and resuming is cheap.
func saveCheckpoints(m model.Model, cfg *config.Config, log hclog.Logger) error {
	tuned, ok := m.(*model.PrefixTuned)
	if !ok {
		return nil
	}

	home := config.GetCheckpointsHome(cfg)
	for mode, module := range map[string]interface{ Save(string) error }{
		"secure":     tuned.SecureModule(),
		"vulnerable": tuned.VulnerableModule(),
	} {
		path := filepath.Join(home, mode+".json")
		if err := module.Save(path); err != nil {
			log.Error("failed to save checkpoint", "path", path, "error", err)
			return err
		}
		log.Info("checkpoint saved", "path", path)
	}
	return nil
}

// applyTrainOverrides folds the command flags into the loaded configuration.
func applyTrainOverrides(cfg *config.Config, opts *RunOptionsTrain) {
	if opts.Dataset != "" {
		cfg.Dataset.Name = opts.Dataset
	}
	if opts.Epochs > 0 {
		cfg.Trainer.NumEpochs = opts.Epochs
	}
	if opts.BatchSize > 0 {
		cfg.Trainer.BatchSize = opts.BatchSize
	}
	if opts.DryRun {
		cfg.Trainer.DryRun = true
	}
	if cfg.Dataset.Split == "" {
		cfg.Dataset.Split = "train"
	}
	if cfg.Dataset.Language == "" {
		cfg.Dataset.Language = schema.LanguagePython
	}
}

func init() {
	TrainCmd.Flags().StringVarP(&trainOptions.Dataset, "dataset", "d", "", "registered dataset name (overrides config)")
	TrainCmd.Flags().StringVar(&trainOptions.DataDir, "data-dir", "", "root folder of the dataset files")
	TrainCmd.Flags().StringVarP(&trainOptions.Model, "model", "m", model.PrefixTunedName, "registered model name")
	TrainCmd.Flags().StringVar(&trainOptions.Checkpoint, "checkpoint", "", "prefix checkpoint to resume from")
	TrainCmd.Flags().StringVar(&trainOptions.ProblemsFile, "problems", "", "functional evaluation problems file (JSON)")
	TrainCmd.Flags().IntVar(&trainOptions.Epochs, "epochs", 0, "number of epochs (overrides config)")
	TrainCmd.Flags().IntVar(&trainOptions.BatchSize, "batch-size", 0, "batch size (overrides config)")
	TrainCmd.Flags().BoolVar(&trainOptions.DryRun, "dry-run", false, "single generation plumbing check, no dataset access")
}

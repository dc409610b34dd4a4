package evaluate

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/prefixsec/prefixsec/pkg/evaluate"
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
	"github.com/prefixsec/prefixsec/pkg/shared/logger"
)

// RunOptionsEvaluate holds the arguments for the evaluate command.
type RunOptionsEvaluate struct {
	SamplesFile  string
	ProblemsFile string
	KValues      []int
	Output       string
}

var (
	AppConfig            *config.Config
	evaluateOptions      RunOptionsEvaluate
	exampleEvaluateUsage = `  # Scanning previously generated samples for weaknesses
  prefixsec evaluate --samples /path/to/samples.json

  # Adding functional pass@k evaluation over a problems file
  prefixsec evaluate --samples /path/to/samples.json --problems /path/to/problems.json -k 1 -k 10

  # Writing the metrics to a specific file
  prefixsec evaluate --samples /path/to/samples.json --output /path/to/metrics.json`
)

// EvaluateCmd represents the evaluate command.
var EvaluateCmd = &cobra.Command{
	Use:                   "evaluate --samples/-s PATH [--problems PATH] [-k N]... [--output/-o PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleEvaluateUsage,
	Short:                 "Evaluates generated code samples for security and functional correctness",
	RunE:                  runEvaluateCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runEvaluateCommand(cmd *cobra.Command, args []string) error {
	log := logger.NewLogger(AppConfig, "core-evaluate")

	if err := validateEvaluateArgs(&evaluateOptions); err != nil {
		log.Error("invalid evaluate arguments", "error", err)
		return err
	}

	var samples []schema.GeneratedCode
	if err := files.ReadJSONFile(evaluateOptions.SamplesFile, &samples); err != nil {
		log.Error("failed to read samples file", "path", evaluateOptions.SamplesFile, "error", err)
		return err
	}

	ctx := context.Background()
	annotations := make(map[string]evaluate.Annotation)

	securityEvaluator := evaluate.NewSecurityEvaluator(newScanner(AppConfig, log), log)
	result, err := securityEvaluator.Evaluate(ctx, samples)
	if err != nil {
		log.Error("security evaluation failed", "error", err)
		return err
	}
	for id, annotation := range result.Annotations {
		annotations[id] = annotation
	}

	var passAtK map[string]float64
	if evaluateOptions.ProblemsFile != "" {
		rates, functional, err := runFunctionalEvaluation(ctx, samples)
		if err != nil {
			log.Error("functional evaluation failed", "error", err)
			return err
		}
		passAtK = rates
		for id, annotation := range functional {
			merged := annotations[id]
			merged.FunctionallyCorrect = annotation.FunctionallyCorrect
			annotations[id] = merged
		}
	}

	metrics := evaluate.BuildMetrics(&result, passAtK)
	log.Info("evaluation finished", "metrics", metrics.String())
	return writeEvaluationResult(log, metrics, annotations)
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

// runFunctionalEvaluation groups the samples by prompt and scores pass@k
// against the problems file. Samples whose prompt matches no problem are
// ignored by the functional oracle.
func runFunctionalEvaluation(ctx context.Context, samples []schema.GeneratedCode) (map[string]float64, map[string]evaluate.Annotation, error) {
	var problems []evaluate.Problem
	if err := files.ReadJSONFile(evaluateOptions.ProblemsFile, &problems); err != nil {
		return nil, nil, err
	}

	candidates := make(map[string][]schema.GeneratedCode)
	for _, problem := range problems {
		for _, sample := range samples {
			if sample.Prompt == problem.Prompt {
				candidates[problem.TaskID] = append(candidates[problem.TaskID], sample)
			}
		}
	}

	runner := evaluate.NewHumanEvalRunner(AppConfig, logger.NewLogger(AppConfig, "core-evaluate"))
	return runner.RunHumanEval(ctx, problems, candidates, evaluateOptions.KValues)
}

// evaluationResult is the on-disk layout of one evaluate run.
type evaluationResult struct {
	Metrics     map[string]interface{}         `json:"metrics"`
	Annotations map[string]evaluate.Annotation `json:"annotations"`
}

func writeEvaluationResult(log hclog.Logger, metrics evaluate.Metrics, annotations map[string]evaluate.Annotation) error {
	output := evaluateOptions.Output
	if output == "" {
		output = filepath.Join(config.GetResultsHome(AppConfig), "evaluation.json")
	}

	if err := files.WriteJSONFile(output, evaluationResult{
		Metrics:     metrics.ToMap(),
		Annotations: annotations,
	}); err != nil {
		log.Error("failed to write evaluation result", "path", output, "error", err)
		return err
	}
	log.Info("evaluation result saved", "path", output)
	return nil
}

func init() {
	EvaluateCmd.Flags().StringVarP(&evaluateOptions.SamplesFile, "samples", "s", "", "generated samples file (JSON)")
	EvaluateCmd.Flags().StringVar(&evaluateOptions.ProblemsFile, "problems", "", "functional evaluation problems file (JSON)")
	EvaluateCmd.Flags().IntSliceVarP(&evaluateOptions.KValues, "k", "k", []int{1, 10}, "k values for pass@k")
	EvaluateCmd.Flags().StringVarP(&evaluateOptions.Output, "output", "o", "", "output file for the evaluation result")
}

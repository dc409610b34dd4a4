package evaluate

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// TestCase is one functional check: driver code appended to the candidate
// solution and the exact stdout it must produce.
type TestCase struct {
	Input    string `json:"input"`
	Expected string `json:"expected"`
}

// Problem is one functional-evaluation task: a prompt and the test cases
// every candidate solution for it must pass.
type Problem struct {
	TaskID string     `json:"task_id"`
	Prompt string     `json:"prompt"`
	Tests  []TestCase `json:"tests"`
}

const defaultTestTimeout = 30 * time.Second

// HumanEvalRunner executes candidate solutions against their test cases and
// aggregates the outcomes into pass@k rates.
type HumanEvalRunner struct {
	interpreter string
	timeout     time.Duration
	logger      hclog.Logger
}

// NewHumanEvalRunner builds a runner from the evaluator configuration.
func NewHumanEvalRunner(cfg *config.Config, logger hclog.Logger) *HumanEvalRunner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	interpreter := cfg.Evaluator.Interpreter
	if interpreter == "" {
		interpreter = "python3"
	}
	timeout := cfg.Evaluator.TestTimeout
	if timeout <= 0 {
		timeout = defaultTestTimeout
	}
	return &HumanEvalRunner{interpreter: interpreter, timeout: timeout, logger: logger}
}

// TestSingleSolution runs one candidate against one test case. Any failure
// mode of the candidate, including a crash or a timeout, is a failed case,
// never an evaluator error.
func (r *HumanEvalRunner) TestSingleSolution(ctx context.Context, code string, testCase TestCase) bool {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	scratch, err := os.MkdirTemp("", "prefixsec-test-*")
	if err != nil {
		r.logger.Warn("failed to create scratch folder for a test run", "error", err)
		return false
	}
	defer os.RemoveAll(scratch)

	scriptPath := filepath.Join(scratch, "solution.py")
	script := code + "\n" + testCase.Input + "\n"
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		r.logger.Warn("failed to write a test script", "error", err)
		return false
	}

	output, err := exec.CommandContext(runCtx, r.interpreter, scriptPath).Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) == strings.TrimSpace(testCase.Expected)
}

// RunHumanEval evaluates every candidate of every problem and returns the
// pass@k rate for each requested k, plus per-candidate annotations. Every
// problem must have at least k candidates for the estimator to be defined.
func (r *HumanEvalRunner) RunHumanEval(ctx context.Context, problems []Problem, candidates map[string][]schema.GeneratedCode, kValues []int) (map[string]float64, map[string]Annotation, error) {
	if len(problems) == 0 {
		return nil, nil, errors.NewEmptyInputError("pass@k")
	}

	annotations := make(map[string]Annotation)
	passed := make(map[string]int, len(problems))
	counts := make(map[string]int, len(problems))

	for _, problem := range problems {
		samples := candidates[problem.TaskID]
		counts[problem.TaskID] = len(samples)

		for _, sample := range samples {
			correct := r.passesAll(ctx, sample.Code, problem.Tests)
			if correct {
				passed[problem.TaskID]++
			}
			annotations[sample.ID] = Annotation{FunctionallyCorrect: BoolPtr(correct)}
		}
	}

	rates := make(map[string]float64, len(kValues))
	for _, k := range kValues {
		if k < 1 {
			return nil, nil, errors.NewInvalidArgumentError("k", "must be positive")
		}
		var sum float64
		for _, problem := range problems {
			n := counts[problem.TaskID]
			if n < k {
				return nil, nil, errors.NewInsufficientSamplesError(k, n)
			}
			sum += passAtK(n, passed[problem.TaskID], k)
		}
		rates[passAtKKey(k)] = 100 * sum / float64(len(problems))
	}
	return rates, annotations, nil
}

func (r *HumanEvalRunner) passesAll(ctx context.Context, code string, tests []TestCase) bool {
	for _, testCase := range tests {
		if !r.TestSingleSolution(ctx, code, testCase) {
			return false
		}
	}
	return true
}

// passAtK is the unbiased estimator 1 - C(n-c, k)/C(n, k): the probability
// that at least one of k draws from n candidates is among the c correct
// ones. Computed as a running product to avoid large binomials.
func passAtK(n, c, k int) float64 {
	if n-c < k {
		return 1.0
	}
	result := 1.0
	for i := n - c + 1; i <= n; i++ {
		result *= 1 - float64(k)/float64(i)
	}
	return 1 - result
}

func passAtKKey(k int) string {
	return "pass@" + strconv.Itoa(k)
}

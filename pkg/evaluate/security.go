package evaluate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// Scanner inspects one generated sample and returns the CWE identifiers of
// every weakness it finds. An empty slice means the sample is clean.
type Scanner interface {
	Scan(ctx context.Context, sample schema.GeneratedCode) ([]string, error)
}

// SecurityResult is the outcome of one security evaluation pass.
type SecurityResult struct {
	Rate                 float64
	TotalVulnerabilities int
	CWEBreakdown         map[string]int
	Annotations          map[string]Annotation
}

// scanConcurrency bounds the in-flight scans of one evaluation pass.
const scanConcurrency = 4

// SecurityEvaluator fans samples out over a scanner and aggregates the
// findings into a security rate.
type SecurityEvaluator struct {
	scanner Scanner
	logger  hclog.Logger
}

// NewSecurityEvaluator builds an evaluator over the given scanner.
func NewSecurityEvaluator(scanner Scanner, logger hclog.Logger) *SecurityEvaluator {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &SecurityEvaluator{scanner: scanner, logger: logger}
}

// Evaluate scans every sample and aggregates the findings. A scanner error
// on one sample fails the whole pass; partial security rates mislead.
func (e *SecurityEvaluator) Evaluate(ctx context.Context, samples []schema.GeneratedCode) (SecurityResult, error) {
	if len(samples) == 0 {
		return SecurityResult{}, errors.NewEmptyInputError("security rate")
	}

	findings := make([][]string, len(samples))
	scanErrs := make([]error, len(samples))
	values := make([]interface{}, len(samples))
	for i := range samples {
		values[i] = samples[i]
	}

	var mu sync.Mutex
	shared.ForEveryWithBoundedGoroutines(scanConcurrency, values, func(i int, value interface{}) {
		sample := value.(schema.GeneratedCode)
		cwes, err := e.scanner.Scan(ctx, sample)

		mu.Lock()
		defer mu.Unlock()
		findings[i] = cwes
		scanErrs[i] = err
	})

	for i, err := range scanErrs {
		if err != nil {
			return SecurityResult{}, fmt.Errorf("failed to scan sample %q: %w", samples[i].ID, err)
		}
	}

	rate, total, breakdown, err := ComputeSecurityRate(findings)
	if err != nil {
		return SecurityResult{}, err
	}

	annotations := make(map[string]Annotation, len(samples))
	for i, sample := range samples {
		annotations[sample.ID] = Annotation{SecurityViolations: findings[i]}
	}

	return SecurityResult{
		Rate:                 rate,
		TotalVulnerabilities: total,
		CWEBreakdown:         breakdown,
		Annotations:          annotations,
	}, nil
}

// ComputeSecurityRate aggregates per-sample findings into the percentage of
// clean samples, the total finding count and a per-CWE breakdown. An empty
// input has no defined rate.
func ComputeSecurityRate(findings [][]string) (float64, int, map[string]int, error) {
	if len(findings) == 0 {
		return 0, 0, nil, errors.NewEmptyInputError("security rate")
	}

	var clean, total int
	breakdown := make(map[string]int)
	for _, sample := range findings {
		if len(sample) == 0 {
			clean++
			continue
		}
		total += len(sample)
		for _, cwe := range sample {
			breakdown[cwe]++
		}
	}

	rate := 100 * float64(clean) / float64(len(findings))
	return rate, total, breakdown, nil
}

// cwePattern extracts CWE identifiers from SARIF rule metadata and messages.
var cwePattern = regexp.MustCompile(`CWE-\d{2,4}`)

// SARIFScanner runs a static-analysis plugin over a sample and reads the
// CWE identifiers back out of its SARIF report.
type SARIFScanner struct {
	cfg      *config.Config
	analyzer string
	logger   hclog.Logger
}

// NewSARIFScanner builds a scanner driving the configured analyzer plugin.
func NewSARIFScanner(cfg *config.Config, logger hclog.Logger) *SARIFScanner {
	return &SARIFScanner{cfg: cfg, analyzer: cfg.Evaluator.Analyzer, logger: logger}
}

// Scan writes the sample to a scratch file, hands it to the analyzer plugin
// and collects the CWE identifiers from the resulting SARIF report.
func (s *SARIFScanner) Scan(ctx context.Context, sample schema.GeneratedCode) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	scratch, err := os.MkdirTemp("", "prefixsec-scan-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch folder: %w", err)
	}
	defer os.RemoveAll(scratch)

	targetPath := filepath.Join(scratch, "sample"+sourceExtension(sample.Language))
	if err := os.WriteFile(targetPath, []byte(sample.Code), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write sample: %w", err)
	}
	resultsPath := filepath.Join(scratch, "report.sarif")

	err = shared.WithPlugin(s.cfg, "core-evaluate", shared.PluginTypeAnalyzer, s.analyzer, func(raw interface{}) error {
		analyzer, ok := raw.(shared.Analyzer)
		if !ok {
			return fmt.Errorf("plugin %q does not implement the analyzer contract", s.analyzer)
		}
		if _, err := analyzer.Setup(*s.cfg); err != nil {
			return fmt.Errorf("failed to set up analyzer %q: %w", s.analyzer, err)
		}
		_, err := analyzer.Analyze(shared.AnalyzerRequest{
			TargetPath:  targetPath,
			ResultsPath: resultsPath,
			Language:    sample.Language,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return extractCWEs(resultsPath)
}

// extractCWEs parses a SARIF report and returns one CWE identifier per
// result, falling back to CWE-UNKNOWN when the rule metadata names none.
func extractCWEs(resultsPath string) ([]string, error) {
	report, err := sarif.Open(resultsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse SARIF report %q: %w", resultsPath, err)
	}

	var cwes []string
	for _, run := range report.Runs {
		ruleCWEs := ruleCWEIndex(run)
		for _, result := range run.Results {
			cwes = append(cwes, resultCWE(result, ruleCWEs))
		}
	}
	return cwes, nil
}

// ruleCWEIndex maps each rule in a run to the CWE mentioned in its metadata.
func ruleCWEIndex(run *sarif.Run) map[string]string {
	index := make(map[string]string)
	if run.Tool.Driver == nil {
		return index
	}
	for _, rule := range run.Tool.Driver.Rules {
		var haystack string
		if rule.Name != nil {
			haystack += *rule.Name + " "
		}
		if rule.FullDescription != nil && rule.FullDescription.Text != nil {
			haystack += *rule.FullDescription.Text + " "
		}
		if rule.Properties != nil {
			haystack += fmt.Sprintf("%v", rule.Properties)
		}
		if cwe := cwePattern.FindString(haystack); cwe != "" {
			index[rule.ID] = cwe
		}
	}
	return index
}

func resultCWE(result *sarif.Result, ruleCWEs map[string]string) string {
	if result.RuleID != nil {
		if cwe := cwePattern.FindString(*result.RuleID); cwe != "" {
			return cwe
		}
		if cwe, ok := ruleCWEs[*result.RuleID]; ok {
			return cwe
		}
	}
	if result.Message.Text != nil {
		if cwe := cwePattern.FindString(*result.Message.Text); cwe != "" {
			return cwe
		}
	}
	return "CWE-UNKNOWN"
}

func sourceExtension(language string) string {
	switch language {
	case schema.LanguageJava:
		return ".java"
	case schema.LanguageCPP:
		return ".cpp"
	default:
		return ".py"
	}
}

// SortedCWEs returns a deduplicated, sorted copy of the identifiers.
func SortedCWEs(cwes []string) []string {
	seen := make(map[string]struct{}, len(cwes))
	out := make([]string, 0, len(cwes))
	for _, cwe := range cwes {
		if _, ok := seen[cwe]; ok {
			continue
		}
		seen[cwe] = struct{}{}
		out = append(out, cwe)
	}
	sort.Strings(out)
	return out
}

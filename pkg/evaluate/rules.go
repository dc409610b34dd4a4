package evaluate

import (
	"context"
	"regexp"

	"github.com/hashicorp/go-hclog"

	"github.com/prefixsec/prefixsec/pkg/schema"
)

// RuleScannerName is the analyzer name that selects the in-process scanner
// instead of an external plugin.
const RuleScannerName = "builtin"

// securityRule flags one weakness class with a single pattern. These rules
// trade recall for zero setup cost; an analyzer plugin supersedes them when
// one is installed.
type securityRule struct {
	cwe     string
	pattern *regexp.Regexp
}

var rulesByLanguage = map[string][]securityRule{
	schema.LanguagePython: {
		{"CWE-078", regexp.MustCompile(`subprocess\.\w+\([^)]*shell\s*=\s*True`)},
		{"CWE-078", regexp.MustCompile(`os\.(system|popen)\s*\(`)},
		{"CWE-089", regexp.MustCompile(`execute\s*\(\s*["'][^"']*%s`)},
		{"CWE-089", regexp.MustCompile(`execute\s*\(\s*["'][^"']*["']\s*(\+|%|\.format)`)},
		{"CWE-089", regexp.MustCompile(`execute\s*\(\s*f["']`)},
		{"CWE-094", regexp.MustCompile(`\b(eval|exec)\s*\(`)},
		{"CWE-327", regexp.MustCompile(`hashlib\.(md5|sha1)\s*\(`)},
		{"CWE-502", regexp.MustCompile(`pickle\.loads?\s*\(`)},
		{"CWE-502", regexp.MustCompile(`yaml\.load\s*\([^)]*\)`)},
		{"CWE-798", regexp.MustCompile(`(?i)(password|secret|api_key)\s*=\s*["'][^"']{4,}["']`)},
	},
	schema.LanguageJava: {
		{"CWE-078", regexp.MustCompile(`Runtime\.getRuntime\(\)\.exec\s*\(`)},
		{"CWE-089", regexp.MustCompile(`(createStatement|executeQuery|executeUpdate)\s*\([^)]*\+`)},
		{"CWE-327", regexp.MustCompile(`MessageDigest\.getInstance\s*\(\s*"(MD5|SHA-?1)"`)},
		{"CWE-502", regexp.MustCompile(`new\s+ObjectInputStream\s*\(`)},
	},
	schema.LanguageCPP: {
		{"CWE-078", regexp.MustCompile(`\bsystem\s*\(`)},
		{"CWE-134", regexp.MustCompile(`\bprintf\s*\(\s*[a-zA-Z_]\w*\s*[),]`)},
		{"CWE-787", regexp.MustCompile(`\b(strcpy|strcat|sprintf|gets)\s*\(`)},
	},
}

// RuleScanner is the in-process fallback scanner: a fixed set of pattern
// rules per language, no external analyzer required.
type RuleScanner struct {
	logger hclog.Logger
}

// NewRuleScanner builds the pattern-based scanner.
func NewRuleScanner(logger hclog.Logger) *RuleScanner {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &RuleScanner{logger: logger}
}

// Scan matches the sample against the rule set for its language. Languages
// without rules scan clean rather than failing.
func (s *RuleScanner) Scan(ctx context.Context, sample schema.GeneratedCode) ([]string, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var cwes []string
	for _, rule := range rulesByLanguage[sample.Language] {
		if rule.pattern.MatchString(sample.Code) {
			cwes = append(cwes, rule.cwe)
		}
	}
	if len(cwes) == 0 {
		return nil, nil
	}
	s.logger.Debug("sample flagged by rule scanner", "id", sample.ID, "cwes", cwes)
	return SortedCWEs(cwes), nil
}

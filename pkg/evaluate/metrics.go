// Package evaluate holds the two evaluation oracles: a security evaluator
// over static-analysis findings and a functional evaluator over test
// execution, plus the metrics they produce.
package evaluate

import (
	"fmt"
	"sort"
	"strings"
)

// Annotation is the evaluation outcome for one generated sample, keyed by
// the sample's ID. Evaluation never mutates the sample itself.
type Annotation struct {
	SecurityViolations  []string `json:"security_violations,omitempty"`
	FunctionallyCorrect *bool    `json:"functionally_correct,omitempty"`
}

// Metrics is the aggregate evaluation outcome of one run. Pointer fields
// distinguish "not evaluated" from a genuine zero: a crashed security
// evaluator leaves SecurityRate nil, a fully vulnerable batch sets it to 0.
type Metrics struct {
	SecurityRate         *float64           `json:"security_rate,omitempty"`
	PassAtK              map[string]float64 `json:"pass_at_k,omitempty"`
	TotalVulnerabilities *int               `json:"total_vulnerabilities,omitempty"`
	CWEBreakdown         map[string]int     `json:"cwe_breakdown,omitempty"`
}

// ToMap flattens the metrics into a plain map, omitting fields that were
// never computed.
func (m Metrics) ToMap() map[string]interface{} {
	out := make(map[string]interface{})
	if m.SecurityRate != nil {
		out["security_rate"] = *m.SecurityRate
	}
	if m.TotalVulnerabilities != nil {
		out["total_vulnerabilities"] = *m.TotalVulnerabilities
	}
	for k, v := range m.PassAtK {
		out[k] = v
	}
	if len(m.CWEBreakdown) > 0 {
		out["cwe_breakdown"] = m.CWEBreakdown
	}
	return out
}

// String renders the metrics for log lines, with stable key order.
func (m Metrics) String() string {
	var parts []string
	if m.SecurityRate != nil {
		parts = append(parts, fmt.Sprintf("security_rate=%.1f%%", *m.SecurityRate))
	}
	if m.TotalVulnerabilities != nil {
		parts = append(parts, fmt.Sprintf("total_vulnerabilities=%d", *m.TotalVulnerabilities))
	}
	keys := make([]string, 0, len(m.PassAtK))
	for k := range m.PassAtK {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.1f%%", k, m.PassAtK[k]))
	}
	if len(parts) == 0 {
		return "no metrics computed"
	}
	return strings.Join(parts, " ")
}

// BuildMetrics assembles a Metrics snapshot from whichever evaluation passes
// ran. Either argument may be nil; its fields stay absent.
func BuildMetrics(security *SecurityResult, passAtK map[string]float64) Metrics {
	var m Metrics
	if security != nil {
		m.SecurityRate = Float64Ptr(security.Rate)
		m.TotalVulnerabilities = IntPtr(security.TotalVulnerabilities)
		m.CWEBreakdown = security.CWEBreakdown
	}
	if len(passAtK) > 0 {
		m.PassAtK = passAtK
	}
	return m
}

// Float64Ptr returns a pointer to v, for filling optional metric fields.
func Float64Ptr(v float64) *float64 { return &v }

// IntPtr returns a pointer to v, for filling optional metric fields.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v, for filling optional annotation fields.
func BoolPtr(v bool) *bool { return &v }

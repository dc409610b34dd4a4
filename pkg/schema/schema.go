// Package schema defines the shared value objects of the training pipeline.
// They are the contract between independently developed dataset loaders,
// models and evaluators: validated on construction, immutable afterwards.
package schema

import (
	"github.com/google/uuid"

	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// SchemaVersion is incremented whenever a field contract changes.
const SchemaVersion = "1.0.0"

// Supported programming languages.
const (
	LanguagePython = "python"
	LanguageJava   = "java"
	LanguageCPP    = "cpp"
)

// SupportedLanguages lists the languages a VulnerabilityPair may carry.
var SupportedLanguages = []string{LanguagePython, LanguageJava, LanguageCPP}

// IsSupportedLanguage reports whether the given language is one the pipeline accepts.
func IsSupportedLanguage(language string) bool {
	for _, l := range SupportedLanguages {
		if l == language {
			return true
		}
	}
	return false
}

// VulnerabilityPair is one training example: a vulnerability and its fix,
// aligned by a per-token diff mask over the fixed text. Produced exclusively
// by dataset loaders and owned by the batch that contains it.
type VulnerabilityPair struct {
	VulnerableCode string `json:"vulnerable_code"`
	FixedCode      string `json:"fixed_code"`

	// DiffMask has one 0/1 entry per token of the tokenized fixed code;
	// 1 marks a token carrying security-fix signal.
	DiffMask []int `json:"diff_mask"`

	// CWEID is an opaque weakness identifier, e.g. "CWE-089". The core does
	// not validate it against a taxonomy.
	CWEID    string `json:"cwe_id"`
	Language string `json:"language"`

	// Optional provenance, informational only.
	CommitID string `json:"commit_id,omitempty"`
	RepoName string `json:"repo_name,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// NewVulnerabilityPair constructs a validated VulnerabilityPair. A violation
// of the construction invariants is fatal to the item, not recoverable.
func NewVulnerabilityPair(vulnerable, fixed string, diffMask []int, cweID, language string) (VulnerabilityPair, error) {
	pair := VulnerabilityPair{
		VulnerableCode: vulnerable,
		FixedCode:      fixed,
		DiffMask:       diffMask,
		CWEID:          cweID,
		Language:       language,
	}
	if err := pair.Validate(); err != nil {
		return VulnerabilityPair{}, err
	}
	return pair, nil
}

// Validate checks the construction invariants of the pair.
func (p VulnerabilityPair) Validate() error {
	if p.VulnerableCode == "" {
		return errors.NewValidationError("vulnerability pair", "vulnerable_code", "cannot be empty")
	}
	if p.FixedCode == "" {
		return errors.NewValidationError("vulnerability pair", "fixed_code", "cannot be empty")
	}
	if len(p.DiffMask) == 0 {
		return errors.NewValidationError("vulnerability pair", "diff_mask", "must have at least one element")
	}
	for _, v := range p.DiffMask {
		if v != 0 && v != 1 {
			return errors.NewValidationError("vulnerability pair", "diff_mask", "entries must be 0 or 1")
		}
	}
	if !IsSupportedLanguage(p.Language) {
		return errors.NewValidationError("vulnerability pair", "language", "must be one of python, java, cpp")
	}
	return nil
}

// DatasetConfig describes a dataset selection: which corpus, which split,
// and optional filters. Pure input value, consumed once per load call.
type DatasetConfig struct {
	Name     string `yaml:"name" json:"name"`
	Language string `yaml:"language" json:"language"`
	Split    string `yaml:"split" json:"split"`

	// MaxSamples caps the number of returned pairs; 0 means no cap.
	MaxSamples int `yaml:"max_samples" json:"max_samples,omitempty"`

	// FilterCWE keeps only pairs whose CWEID is in the list; empty keeps all.
	FilterCWE []string `yaml:"filter_cwe" json:"filter_cwe,omitempty"`
}

// GeneratedCode is the output of one generation call. It is immutable once
// produced; evaluation results are attached separately, keyed by ID.
type GeneratedCode struct {
	ID           string `json:"id"`
	Code         string `json:"code"`
	IsSecureMode bool   `json:"is_secure_mode"`
	Prompt       string `json:"prompt"`
	Language     string `json:"language"`

	// IsPlaceholder marks a stand-in result produced while the backbone
	// generation service is unavailable, so callers can tell it apart
	// from real output.
	IsPlaceholder bool `json:"is_placeholder,omitempty"`
}

// NewGeneratedCode constructs a GeneratedCode with a fresh identity.
func NewGeneratedCode(code, prompt, language string, secureMode, placeholder bool) GeneratedCode {
	return GeneratedCode{
		ID:            uuid.NewString(),
		Code:          code,
		IsSecureMode:  secureMode,
		Prompt:        prompt,
		Language:      language,
		IsPlaceholder: placeholder,
	}
}

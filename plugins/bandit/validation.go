package main

import (
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
)

// validateAnalyze checks the necessary fields in AnalyzerRequest and returns errors if they are not set.
func (g *AnalyzerBandit) validateAnalyze(args *shared.AnalyzerRequest) error {
	if args.TargetPath == "" {
		return errors.NewInvalidArgumentError("target_path", "must not be empty")
	}
	if args.ResultsPath == "" {
		return errors.NewInvalidArgumentError("results_path", "must not be empty")
	}
	g.validateLanguageSoft(args.Language)
	return nil
}

// validateLanguageSoft warns when the target language is not one Bandit
// understands and continues anyway.
func (g *AnalyzerBandit) validateLanguageSoft(language string) {
	if language != "" && language != schema.LanguagePython {
		g.logger.Warn(
			"bandit only analyzes python, results for this language will be empty",
			"language", language,
		)
	}
}

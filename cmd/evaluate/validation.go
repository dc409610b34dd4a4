package evaluate

import (
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// validateEvaluateArgs checks the command flags before any file is touched.
func validateEvaluateArgs(opts *RunOptionsEvaluate) error {
	if opts.SamplesFile == "" {
		return errors.NewInvalidArgumentError("samples", "must not be empty")
	}
	if err := files.ValidatePath(opts.SamplesFile); err != nil {
		return errors.NewInvalidArgumentError("samples", err.Error())
	}

	if opts.ProblemsFile != "" {
		if err := files.ValidatePath(opts.ProblemsFile); err != nil {
			return errors.NewInvalidArgumentError("problems", err.Error())
		}
	}
	for _, k := range opts.KValues {
		if k < 1 {
			return errors.NewInvalidArgumentError("k", "must be positive")
		}
	}
	return nil
}

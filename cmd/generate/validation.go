package generate

import (
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// validateGenerateArgs checks the command flags before the model is built.
func validateGenerateArgs(opts *RunOptionsGenerate) error {
	if opts.Prompt == "" {
		return errors.NewInvalidArgumentError("prompt", "must not be empty")
	}
	if opts.Model == "" {
		return errors.NewInvalidArgumentError("model", "must not be empty")
	}
	if !schema.IsSupportedLanguage(opts.Language) {
		return errors.NewInvalidArgumentError("language", "must be one of python, java, cpp")
	}
	if opts.Samples < 1 {
		return errors.NewInvalidArgumentError("samples", "must be positive")
	}
	if opts.Checkpoint != "" {
		if err := files.ValidatePath(opts.Checkpoint); err != nil {
			return errors.NewInvalidArgumentError("checkpoint", err.Error())
		}
	}
	return nil
}

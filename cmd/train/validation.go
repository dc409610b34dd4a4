package train

import (
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// validateTrainArgs checks the folded configuration before the expensive
// parts of the command start.
func validateTrainArgs(cfg *config.Config, opts *RunOptionsTrain) error {
	if opts.Model == "" {
		return errors.NewInvalidArgumentError("model", "must not be empty")
	}

	if opts.Checkpoint != "" {
		if err := files.ValidatePath(opts.Checkpoint); err != nil {
			return errors.NewInvalidArgumentError("checkpoint", err.Error())
		}
	}
	if opts.ProblemsFile != "" {
		if err := files.ValidatePath(opts.ProblemsFile); err != nil {
			return errors.NewInvalidArgumentError("problems", err.Error())
		}
	}

	if cfg.Trainer.DryRun {
		return nil
	}
	if cfg.Dataset.Name == "" {
		return errors.NewInvalidArgumentError("dataset", "must be set unless running with --dry-run")
	}
	if opts.DataDir == "" {
		return errors.NewInvalidArgumentError("data-dir", "must be set unless running with --dry-run")
	}
	return nil
}

package prefix

import (
	"github.com/prefixsec/prefixsec/pkg/shared/errors"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
)

// checkpoint is the on-disk layout of a saved prefix module: the embedding
// parameters plus the config that produced them.
type checkpoint struct {
	Config     Config      `json:"config"`
	Mode       Mode        `json:"mode"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Save serializes the embedding parameters and the originating config to path.
func (m *Module) Save(path string) error {
	return files.WriteJSONFile(path, checkpoint{
		Config:     m.config,
		Mode:       m.mode,
		Embeddings: m.Embeddings(),
	})
}

// Load reconstructs a module from a checkpoint file. The stored shape must
// agree with the expected config; a disagreement is a
// CheckpointShapeMismatchError, not a silent reshape.
func Load(path string, want Config) (*Module, error) {
	if err := want.Validate(); err != nil {
		return nil, err
	}

	var ckpt checkpoint
	if err := files.ReadJSONFile(path, &ckpt); err != nil {
		return nil, err
	}

	if ckpt.Config.PrefixLength != want.PrefixLength || ckpt.Config.HiddenDim != want.HiddenDim {
		return nil, errors.NewCheckpointShapeMismatchError(path,
			want.PrefixLength, want.HiddenDim,
			ckpt.Config.PrefixLength, ckpt.Config.HiddenDim)
	}
	if len(ckpt.Embeddings) != ckpt.Config.PrefixLength {
		return nil, errors.NewCheckpointShapeMismatchError(path,
			want.PrefixLength, want.HiddenDim,
			len(ckpt.Embeddings), ckpt.Config.HiddenDim)
	}
	for _, row := range ckpt.Embeddings {
		if len(row) != ckpt.Config.HiddenDim {
			return nil, errors.NewCheckpointShapeMismatchError(path,
				want.PrefixLength, want.HiddenDim,
				ckpt.Config.PrefixLength, len(row))
		}
	}

	return &Module{
		config:     ckpt.Config,
		mode:       ckpt.Mode,
		embeddings: ckpt.Embeddings,
	}, nil
}

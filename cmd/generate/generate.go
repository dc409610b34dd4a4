package generate

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prefixsec/prefixsec/pkg/model"
	"github.com/prefixsec/prefixsec/pkg/schema"
	"github.com/prefixsec/prefixsec/pkg/shared"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/files"
	"github.com/prefixsec/prefixsec/pkg/shared/logger"
)

// RunOptionsGenerate holds the arguments for the generate command.
type RunOptionsGenerate struct {
	Prompt     string
	Model      string
	Language   string
	Checkpoint string
	Output     string
	MaxLength  int
	Samples    int
	Vulnerable bool
}

var (
	AppConfig            *config.Config
	generateOptions      RunOptionsGenerate
	exampleGenerateUsage = `  # Generating a secure completion for a prompt
  prefixsec generate --prompt "def read_file(path):"

  # Generating from the vulnerable prefix for contrastive inspection
  prefixsec generate --prompt "def read_file(path):" --vulnerable

  # Generating several candidates and saving them for later evaluation
  prefixsec generate --prompt "def read_file(path):" --samples 10 --output /path/to/samples.json

  # Generating with a trained prefix checkpoint
  prefixsec generate --prompt "def read_file(path):" --checkpoint /path/to/secure.json`
)

// GenerateCmd represents the generate command.
var GenerateCmd = &cobra.Command{
	Use:                   "generate --prompt/-p PROMPT [--language/-l NAME] [--max-length N] [--samples N] [--checkpoint PATH] [--output/-o PATH] [--vulnerable]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleGenerateUsage,
	Short:                 "Generates code from the prefix-conditioned backbone",
	RunE:                  runGenerateCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runGenerateCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !shared.HasFlags(cmd.Flags()) {
		return cmd.Help()
	}

	log := logger.NewLogger(AppConfig, "core-generate")

	if err := validateGenerateArgs(&generateOptions); err != nil {
		log.Error("invalid generate arguments", "error", err)
		return err
	}

	backbone := model.NewHTTPBackbone(AppConfig, log)
	m, err := model.Get(generateOptions.Model, model.Options{
		Config:   AppConfig,
		Logger:   log,
		Backbone: backbone,
		Secure:   !generateOptions.Vulnerable,
	})
	if err != nil {
		log.Error("failed to build model", "error", err)
		return err
	}
	if generateOptions.Checkpoint != "" {
		if err := m.LoadCheckpoint(generateOptions.Checkpoint); err != nil {
			log.Error("failed to load checkpoint", "path", generateOptions.Checkpoint, "error", err)
			return err
		}
	}

	ctx := context.Background()
	samples := make([]schema.GeneratedCode, 0, generateOptions.Samples)
	for i := 0; i < generateOptions.Samples; i++ {
		sample, err := m.Generate(ctx, model.GenerateRequest{
			Prompt:    generateOptions.Prompt,
			MaxLength: config.SetThen(generateOptions.MaxLength, config.SetThen(AppConfig.Backbone.MaxLength, 128)),
			Language:  generateOptions.Language,
			Seed:      AppConfig.Backbone.Seed + int64(i),
		})
		if err != nil {
			log.Error("generation failed", "error", err)
			return err
		}
		if sample.IsPlaceholder {
			log.Warn("backbone unavailable, result is a placeholder", "id", sample.ID)
		}
		samples = append(samples, sample)
	}

	if generateOptions.Output == "" && generateOptions.Samples == 1 {
		fmt.Println(samples[0].Code)
		return nil
	}

	output := generateOptions.Output
	if output == "" {
		output = filepath.Join(config.GetResultsHome(AppConfig), "samples.json")
	}
	if err := files.WriteJSONFile(output, samples); err != nil {
		log.Error("failed to write samples", "path", output, "error", err)
		return err
	}
	log.Info("samples saved", "path", output, "count", len(samples))
	return nil
}

func init() {
	GenerateCmd.Flags().StringVarP(&generateOptions.Prompt, "prompt", "p", "", "prompt to complete")
	GenerateCmd.Flags().StringVarP(&generateOptions.Model, "model", "m", model.PrefixTunedName, "registered model name")
	GenerateCmd.Flags().StringVarP(&generateOptions.Language, "language", "l", schema.LanguagePython, "target language")
	GenerateCmd.Flags().StringVar(&generateOptions.Checkpoint, "checkpoint", "", "prefix checkpoint to load")
	GenerateCmd.Flags().StringVarP(&generateOptions.Output, "output", "o", "", "output file for the generated samples")
	GenerateCmd.Flags().IntVar(&generateOptions.MaxLength, "max-length", 0, "maximum generation length in tokens")
	GenerateCmd.Flags().IntVar(&generateOptions.Samples, "samples", 1, "number of candidates to generate")
	GenerateCmd.Flags().BoolVar(&generateOptions.Vulnerable, "vulnerable", false, "generate from the vulnerable prefix")
}

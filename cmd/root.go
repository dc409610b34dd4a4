package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/prefixsec/prefixsec/cmd/evaluate"
	"github.com/prefixsec/prefixsec/cmd/generate"
	"github.com/prefixsec/prefixsec/cmd/train"
	"github.com/prefixsec/prefixsec/cmd/version"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
)

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "prefixsec [command]",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Short:                 "Prefixsec trains and evaluates security-controlled code generation prefixes.",
		Long: `Prefixsec is a contrastive prefix-tuning pipeline: it learns a pair of
	prefix parameter blocks over a frozen code-generation backbone, one steering
	towards secure code and one towards vulnerable code, and evaluates the result
	with static-analysis and functional-correctness oracles.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml)")
	rootCmd.AddCommand(train.TrainCmd)
	rootCmd.AddCommand(evaluate.EvaluateCmd)
	rootCmd.AddCommand(generate.GenerateCmd)
	rootCmd.AddCommand(version.NewVersionCmd())
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	if cfgFile == "" {
		cfgFile = "config.yml"
	}
	AppConfig, err = config.NewConfig(cfgFile)
	if err != nil {
		// A missing config file is fine; every setting has a default.
		AppConfig = &config.Config{}
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	train.Init(AppConfig)
	evaluate.Init(AppConfig)
	generate.Init(AppConfig)
	version.Init(AppConfig)
}

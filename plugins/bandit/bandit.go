package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	"github.com/prefixsec/prefixsec/pkg/shared"
	"github.com/prefixsec/prefixsec/pkg/shared/config"
)

// Metadata of the plugin
var (
	Version       = "unknown"
	GolangVersion = "unknown"
	BuildTime     = "unknown"
)

// AnalyzerBandit represents the Bandit analyzer with its configuration and logger.
type AnalyzerBandit struct {
	logger       hclog.Logger
	globalConfig *config.Config
}

// newAnalyzerBandit creates a new instance of AnalyzerBandit.
func newAnalyzerBandit(logger hclog.Logger) *AnalyzerBandit {
	return &AnalyzerBandit{
		logger: logger,
	}
}

// setGlobalConfig sets the global configuration for the AnalyzerBandit instance.
func (g *AnalyzerBandit) setGlobalConfig(globalConfig *config.Config) {
	g.globalConfig = globalConfig
}

// buildCommandArgs constructs the command-line arguments for the Bandit command.
// The report format is pinned to SARIF; the core's CWE extraction depends on it.
func (g *AnalyzerBandit) buildCommandArgs(args shared.AnalyzerRequest) []string {
	var commandArgs []string

	appendArg := func(arg ...string) {
		commandArgs = append(commandArgs, arg...)
	}

	if len(args.AdditionalArgs) != 0 {
		appendArg(args.AdditionalArgs...)
	}

	appendArg("-f", "sarif")

	if args.ConfigPath != "" {
		appendArg("-c", args.ConfigPath)
	}

	appendArg("-r", "-o", args.ResultsPath)
	appendArg(args.TargetPath)

	return commandArgs
}

// Analyze executes the Bandit scan with the provided arguments and returns the response.
func (g *AnalyzerBandit) Analyze(args shared.AnalyzerRequest) (shared.AnalyzerResponse, error) {
	var result shared.AnalyzerResponse
	g.logger.Info("analysis is starting", "target", args.TargetPath)
	g.logger.Debug("debug info", "args", args)

	if err := g.validateAnalyze(&args); err != nil {
		g.logger.Error("validation failed for analyze operation", "error", err)
		return result, err
	}

	commandArgs := g.buildCommandArgs(args)

	cmd := exec.Command("bandit", commandArgs...)
	g.logger.Debug("debug info", "cmd", cmd.Args)

	var stdBuffer bytes.Buffer
	mw := io.MultiWriter(g.logger.StandardWriter(&hclog.StandardLoggerOptions{
		InferLevels: true,
	}), &stdBuffer)

	cmd.Stdout = mw
	cmd.Stderr = mw

	if err := cmd.Run(); err != nil {
		// Bandit exits 1 when it finds issues; a written report is a success.
		if _, statErr := os.Stat(args.ResultsPath); statErr != nil {
			g.logger.Error("bandit execution error", "error", err)
			return result, fmt.Errorf("bandit execution error: %w. Output: %s", err, stdBuffer.String())
		}
	}
	result.ResultsPath = args.ResultsPath
	g.logger.Info("analysis finished", "target", args.TargetPath)
	g.logger.Info("result saved", "path", args.ResultsPath)
	return result, nil
}

// Setup initializes the global configuration for the AnalyzerBandit instance.
func (g *AnalyzerBandit) Setup(configData config.Config) (bool, error) {
	g.setGlobalConfig(&configData)
	return true, nil
}

func main() {
	logger := hclog.New(&hclog.LoggerOptions{
		Level:      hclog.Trace,
		Output:     os.Stderr,
		JSONFormat: true,
	})

	banditInstance := newAnalyzerBandit(logger)

	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: shared.HandshakeConfig,
		Plugins: map[string]plugin.Plugin{
			shared.PluginTypeAnalyzer: &shared.AnalyzerPlugin{Impl: banditInstance},
		},
		Logger: logger,
	})
}

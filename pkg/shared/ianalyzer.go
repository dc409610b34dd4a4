package shared

import (
	"net/rpc"

	"github.com/hashicorp/go-plugin"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
)

// Analyzer is the contract every static-analysis plugin must satisfy. The
// core treats the engine as an opaque oracle: it hands over code and expects
// a SARIF report on disk.
type Analyzer interface {
	Setup(configData config.Config) (bool, error)
	Analyze(args AnalyzerRequest) (AnalyzerResponse, error)
}

// AnalyzerRequest represents a single analysis request.
type AnalyzerRequest struct {
	TargetPath     string   // Path to the file or folder with the code to analyze
	ResultsPath    string   // Path to save the SARIF report of the analysis
	Language       string   // Programming language of the target
	ConfigPath     string   // Path to the configuration file for the analyzer
	AdditionalArgs []string // Additional arguments for the analyzer
}

// AnalyzerResponse carries the location of the produced report.
type AnalyzerResponse struct {
	ResultsPath string
}

type AnalyzerRPCClient struct{ client *rpc.Client }

func (g *AnalyzerRPCClient) Setup(configData config.Config) (bool, error) {
	var resp bool
	err := g.client.Call("Plugin.Setup", configData, &resp)
	if err != nil {
		return false, err
	}
	return resp, nil
}

func (g *AnalyzerRPCClient) Analyze(req AnalyzerRequest) (AnalyzerResponse, error) {
	var resp AnalyzerResponse

	err := g.client.Call("Plugin.Analyze", req, &resp)
	if err != nil {
		return resp, err
	}

	return resp, nil
}

type AnalyzerRPCServer struct {
	Impl Analyzer
}

func (s *AnalyzerRPCServer) Setup(configData config.Config, resp *bool) error {
	var err error
	*resp, err = s.Impl.Setup(configData)
	return err
}

func (s *AnalyzerRPCServer) Analyze(args AnalyzerRequest, resp *AnalyzerResponse) error {
	var err error
	*resp, err = s.Impl.Analyze(args)
	return err
}

type AnalyzerPlugin struct {
	Impl Analyzer
}

func (p *AnalyzerPlugin) Server(*plugin.MuxBroker) (interface{}, error) {
	return &AnalyzerRPCServer{Impl: p.Impl}, nil
}

func (AnalyzerPlugin) Client(b *plugin.MuxBroker, c *rpc.Client) (interface{}, error) {
	return &AnalyzerRPCClient{client: c}, nil
}

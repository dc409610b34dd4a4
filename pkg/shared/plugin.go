package shared

import (
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-plugin"

	"github.com/prefixsec/prefixsec/pkg/shared/config"
	"github.com/prefixsec/prefixsec/pkg/shared/logger"
)

const (
	PluginTypeAnalyzer string = "analyzer"
)

// HandshakeConfig is the basic handshake between the core and a plugin. It
// prevents the core from executing unrelated binaries as plugins. It is a UX
// feature, not a security feature.
var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PREFIXSEC",
	MagicCookieValue: "e2a1d0c55f3be8427d9bf1a0c7a54c7e93c40218",
}

// PluginMap is the map of plugin types the core can dispense.
var PluginMap = map[string]plugin.Plugin{
	PluginTypeAnalyzer: &AnalyzerPlugin{},
}

// WithPlugin launches the named plugin binary from the plugins folder,
// dispenses the requested plugin type and hands the raw implementation to f.
// The plugin process is always killed before returning.
func WithPlugin(cfg *config.Config, loggerName string, pluginType string, pluginName string, f func(interface{}) error) error {
	pluginLogger := logger.NewLogger(cfg, loggerName)

	pluginPath := filepath.Join(config.GetPluginsHome(cfg), pluginName)
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig: HandshakeConfig,
		Plugins:         PluginMap,
		Cmd:             exec.Command(pluginPath),
		Logger:          pluginLogger,
	})
	defer client.Kill()

	rpcClient, err := client.Client()
	if err != nil {
		return fmt.Errorf("failed to start plugin %q: %w", pluginName, err)
	}

	raw, err := rpcClient.Dispense(pluginType)
	if err != nil {
		return fmt.Errorf("failed to dispense plugin type %q: %w", pluginType, err)
	}

	return f(raw)
}

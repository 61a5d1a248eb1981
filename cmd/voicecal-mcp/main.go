// Command voicecal-mcp serves the scheduling and voice MCP tools over HTTP.
package main

import (
	"os"
	_ "time/tzdata"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "voicecal-mcp",
		Short:         "MCP gateway for Cal.com scheduling and ElevenLabs voice tools",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (environment variables override it)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(toolsCmd())
	root.AddCommand(callCmd(&configPath))
	return root
}

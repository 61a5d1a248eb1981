package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"voicecal-mcp/internal/mcp"
)

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools [name]",
		Short: "Print the tool catalog, or one tool descriptor, as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if len(args) == 0 {
				return enc.Encode(map[string]any{"tools": mcp.Catalog()})
			}
			name, ok := mcp.ParseToolName(args[0])
			if !ok {
				return fmt.Errorf("unknown tool: %s", args[0])
			}
			tool, _ := mcp.Lookup(name)
			return enc.Encode(tool)
		},
	}
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"voicecal-mcp/internal/config"
	"voicecal-mcp/internal/mcp"
)

func callCmd(configPath *string) *cobra.Command {
	var rawArgs string
	cmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print the response envelope",
		Example: `  voicecal-mcp call list_voices
  voicecal-mcp call get_available_slots --args '{"event_type_id":"123","timezone":"Europe/Madrid"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := map[string]any{}
			if rawArgs != "" {
				if err := json.Unmarshal([]byte(rawArgs), &toolArgs); err != nil {
					return fmt.Errorf("--args must be a JSON object: %w", err)
				}
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			resp := a.dispatcher.Handle(cmd.Context(), mcp.Request{
				Type:     mcp.RequestToolCall,
				ToolName: args[0],
				ToolArgs: toolArgs,
			})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(resp); err != nil {
				return err
			}
			if resp.IsError() {
				return errors.New(resp.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rawArgs, "args", "", "tool arguments as a JSON object")
	return cmd
}

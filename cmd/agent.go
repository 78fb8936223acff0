package cmd

import (
	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/internal/mcpserver"
)

func init() {
	rootCmd.AddCommand(agentCmd)
}

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Serve the mining pipeline to agents over MCP on stdio",
	Long: `Agent speaks the Model Context Protocol on stdin/stdout and exposes
three tools: mine (samples to grammar JSON), merge (two grammar JSONs
to one) and check (grammar JSON to diagnostics).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mcpserver.ServeStdio()
	},
}

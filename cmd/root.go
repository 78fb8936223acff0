package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "grist",
	Short: "Grist: grammar mining for fuzzers",
	Long: `Grist mines context-free grammars from sample inputs by tracing
instrumented parsers over them. The samples live in a SQLite corpus,
and the mined grammar can be linted, merged, exported as fuzzer
artifacts, browsed as a filesystem (NFS or FUSE), handed off to
external fuzzers through an mmap arena, or served to agents over MCP.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

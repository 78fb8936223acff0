package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/synth"
)

var mergeOut string

func init() {
	mergeCmd.Flags().StringVarP(&mergeOut, "out", "o", "", "write the merged grammar JSON to this file")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge <grammar.json> <grammar.json> [more...]",
	Short: "Union grammar files into one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		grammars := make([]*api.Grammar, 0, len(args))
		for _, path := range args {
			g, err := export.Load(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			grammars = append(grammars, g)
		}

		merged := synth.MergeAll(grammars...)
		if mergeOut == "" {
			fmt.Print(string(export.JSONBytes(merged)))
			return nil
		}
		if err := export.WriteJSON(mergeOut, merged); err != nil {
			return err
		}
		fmt.Printf("Wrote %s.\n", mergeOut)
		return nil
	},
}

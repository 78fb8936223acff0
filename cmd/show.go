package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/corpus"
	"github.com/agentic-research/grist/internal/export"
)

var (
	showText   bool
	showCorpus string
)

func init() {
	showCmd.Flags().BoolVar(&showText, "text", false, "render as text rules instead of JSON")
	showCmd.Flags().StringVar(&showCorpus, "corpus", "", "read the grammar by name from this corpus instead of a file")
	rootCmd.AddCommand(showCmd)
}

var showCmd = &cobra.Command{
	Use:   "show <grammar.json | name>",
	Short: "Render a grammar as pretty JSON or text rules",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadShown(args[0])
		if err != nil {
			return err
		}

		if showText {
			for _, sym := range g.Symbols() {
				fmt.Printf("%s ::= %s\n", sym, strings.Join(g.Rules[sym], " | "))
			}
			return nil
		}
		fmt.Print(string(export.JSONBytes(g)))
		return nil
	},
}

func loadShown(arg string) (*api.Grammar, error) {
	if showCorpus == "" {
		return export.Load(arg)
	}
	store, err := corpus.Open(showCorpus)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()
	g, _, err := store.GetGrammar(arg)
	return g, err
}

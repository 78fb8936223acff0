package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/internal/corpus"
	"github.com/agentic-research/grist/internal/export"
)

var (
	exportOut     string
	exportPackage string
	exportFuzz    string
	exportSamples []string
	exportCorpus  string
	exportTarget  string
	exportMax     int
	exportSeed    int64
)

func init() {
	exportCmd.PersistentFlags().StringVarP(&exportOut, "out", "o", "", "output file (required)")
	_ = exportCmd.MarkPersistentFlagRequired("out")

	exportGoCmd.Flags().StringVar(&exportPackage, "package", "fuzz", "package name for the harness")
	exportGoCmd.Flags().StringVar(&exportFuzz, "fuzz-name", "Grammar", "suffix of the Fuzz function name")
	exportGoCmd.Flags().StringSliceVar(&exportSamples, "samples", nil, "sample sources to seed the harness with")
	exportGoCmd.Flags().StringVar(&exportCorpus, "corpus", "", "draw seed samples from this corpus")
	exportGoCmd.Flags().StringVar(&exportTarget, "target", "", "corpus target to draw seeds from")
	exportGoCmd.Flags().IntVar(&exportMax, "max", 32, "maximum seeds drawn from the corpus")
	exportGoCmd.Flags().Int64Var(&exportSeed, "seed", 1, "reservoir sampling seed for corpus draws")

	exportCmd.AddCommand(exportGoCmd)
	exportCmd.AddCommand(exportDictCmd)
	exportCmd.AddCommand(exportJSONCmd)
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a grammar as fuzzer artifacts",
}

var exportGoCmd = &cobra.Command{
	Use:   "go <grammar.json>",
	Short: "Generate a Go native-fuzzing harness seeded from the grammar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := export.Load(args[0])
		if err != nil {
			return err
		}

		var seeds []string
		if err := corpus.ReadSources(exportSamples, func(s string) error {
			seeds = append(seeds, s)
			return nil
		}); err != nil {
			return err
		}
		if exportCorpus != "" {
			store, err := corpus.Open(exportCorpus)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			drawn, err := store.SampleN(exportTarget, exportMax, exportSeed)
			if err != nil {
				return err
			}
			seeds = append(seeds, drawn...)
		}

		cfg := export.GoConfig{
			Package: exportPackage,
			Name:    exportFuzz,
			Samples: seeds,
		}
		if err := export.WriteGo(exportOut, cfg, g); err != nil {
			return err
		}
		fmt.Printf("Wrote %s.\n", exportOut)
		return nil
	},
}

var exportDictCmd = &cobra.Command{
	Use:   "dict <grammar.json>",
	Short: "Generate an AFL/libFuzzer token dictionary from the grammar terminals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := export.Load(args[0])
		if err != nil {
			return err
		}
		if err := export.WriteDict(exportOut, g); err != nil {
			return err
		}
		fmt.Printf("Wrote %s.\n", exportOut)
		return nil
	},
}

var exportJSONCmd = &cobra.Command{
	Use:   "json <grammar.json>",
	Short: "Normalize a grammar file to sorted, indented JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := export.Load(args[0])
		if err != nil {
			return err
		}
		if err := export.WriteJSON(exportOut, g); err != nil {
			return err
		}
		fmt.Printf("Wrote %s.\n", exportOut)
		return nil
	},
}

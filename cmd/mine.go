package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/internal/corpus"
	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/handoff"
	"github.com/agentic-research/grist/internal/mine"
	"github.com/agentic-research/grist/internal/profile"
	"github.com/agentic-research/grist/internal/target"
)

var (
	mineTarget  string
	minePolicy  string
	mineMinLen  int
	mineProfile string
	mineName    string
	mineOut     string
	mineCorpus  string
	mineSave    string
	mineArena   string
	mineControl string
)

func init() {
	mineCmd.Flags().StringVarP(&mineTarget, "target", "t", "", "tracing target: "+strings.Join(target.Names(), ", "))
	mineCmd.Flags().StringVar(&minePolicy, "policy", "", "tracing policy: unscoped, scoped or provenance")
	mineCmd.Flags().IntVar(&mineMinLen, "min-len", 0, "minimum traced value length to become a nonterminal")
	mineCmd.Flags().StringVarP(&mineProfile, "profile", "p", "", "HCL profile file supplying target, policy and samples")
	mineCmd.Flags().StringVar(&mineName, "name", "", "profile name inside the profile file")
	mineCmd.Flags().StringVarP(&mineOut, "out", "o", "", "write the grammar JSON to this file")
	mineCmd.Flags().StringVar(&mineCorpus, "corpus", "", "SQLite corpus: stores new samples, supplies existing ones, keeps the grammar")
	mineCmd.Flags().StringVar(&mineSave, "save", "", "grammar name in the corpus (default: the target name)")
	mineCmd.Flags().StringVar(&mineArena, "handoff", "", "publish the grammar to this mmap arena file")
	mineCmd.Flags().StringVar(&mineControl, "control", "", "control block file updated on each arena flush")
	rootCmd.AddCommand(mineCmd)
}

var mineCmd = &cobra.Command{
	Use:   "mine [sources...]",
	Short: "Mine a grammar from samples by tracing a target over them",
	Long: `Mine runs every sample through the tracing target, turns the traced
(variable, value) observations into a per-sample grammar, and unions
the results. Sources are files (one sample per line) or directories
(one sample per file). With --corpus, new samples are stored first and
the corpus supplies the samples when no sources are given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mine.Config{
			Target: mineTarget,
			Policy: minePolicy,
			MinLen: mineMinLen,
		}

		sources := args
		if mineProfile != "" {
			file, err := profile.Load(mineProfile)
			if err != nil {
				return err
			}
			name := mineName
			if name == "" {
				names := file.Names()
				if len(names) != 1 {
					return fmt.Errorf("profile file defines %v, pick one with --name", names)
				}
				name = names[0]
			}
			p, ok := file.Find(name)
			if !ok {
				return fmt.Errorf("no profile %q in %s (have %v)", name, mineProfile, file.Names())
			}
			if !cmd.Flags().Changed("target") {
				cfg.Target = p.Target
			}
			if !cmd.Flags().Changed("policy") {
				cfg.Policy = p.Policy
			}
			if !cmd.Flags().Changed("min-len") {
				cfg.MinLen = p.MinLen
			}
			if !cmd.Flags().Changed("out") {
				mineOut = p.Output
			}
			cfg.Selectors = p.Selectors
			sources = append(p.Samples, sources...)
		}
		if cfg.Target == "" {
			return fmt.Errorf("no target: pass --target or --profile")
		}

		var samples []string
		if err := corpus.ReadSources(sources, func(s string) error {
			samples = append(samples, s)
			return nil
		}); err != nil {
			return err
		}

		var store *corpus.Store
		if mineCorpus != "" {
			var err error
			store, err = corpus.Open(mineCorpus)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			for _, s := range samples {
				if _, err := store.AddSample(cfg.Target, s); err != nil {
					return fmt.Errorf("add sample: %w", err)
				}
			}
			if len(samples) == 0 {
				err = store.Samples(cfg.Target, func(id int64, body string) error {
					samples = append(samples, body)
					return nil
				})
				if err != nil {
					return err
				}
			}
		}
		if len(samples) == 0 {
			return fmt.Errorf("no samples: pass source paths, profile samples or --corpus")
		}

		if mineArena != "" {
			flusher, err := openFlusher(mineArena, mineControl)
			if err != nil {
				return err
			}
			flusher.Start(100 * time.Millisecond)
			defer func() { _ = flusher.Close() }()
			cfg.Sink = flusher
		}

		eng, err := mine.New(cfg)
		if err != nil {
			return err
		}

		start := time.Now()
		results := eng.MineAll(samples)
		for _, res := range results {
			if res.Err != nil {
				fmt.Printf("  %s: %v\n", res.Outcome, res.Err)
			}
		}
		mined, empty, failed := mine.Summarize(results)
		fmt.Printf("Mined %d/%d samples in %v (%d empty, %d failed).\n",
			mined, len(samples), time.Since(start), empty, failed)

		g := eng.Grammar()
		if store != nil {
			name := mineSave
			if name == "" {
				name = cfg.Target
			}
			if err := store.PutGrammar(name, cfg.Target, g); err != nil {
				return err
			}
			fmt.Printf("Saved grammar %q to %s.\n", name, mineCorpus)
		}

		switch {
		case mineOut != "":
			if err := export.WriteJSON(mineOut, g); err != nil {
				return err
			}
			fmt.Printf("Wrote %s.\n", mineOut)
		case store == nil:
			fmt.Print(string(export.JSONBytes(g)))
		}
		return nil
	},
}

// openFlusher opens the handoff arena, creating a 1 MiB-per-buffer one
// when the file does not exist yet.
func openFlusher(arenaPath, controlPath string) (*handoff.Flusher, error) {
	if _, err := os.Stat(arenaPath); os.IsNotExist(err) {
		if err := handoff.CreateArena(arenaPath, 1<<20); err != nil {
			return nil, err
		}
	}
	var ctrl *handoff.Controller
	if controlPath != "" {
		var err error
		ctrl, err = handoff.OpenOrCreate(controlPath)
		if err != nil {
			return nil, err
		}
	}
	return handoff.NewFlusher(arenaPath, ctrl), nil
}

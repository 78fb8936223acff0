package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/api"
	"github.com/agentic-research/grist/internal/corpus"
	"github.com/agentic-research/grist/internal/export"
	"github.com/agentic-research/grist/internal/gramfs"
	"github.com/agentic-research/grist/internal/mine"
	"github.com/agentic-research/grist/internal/synth"
)

var (
	serveAddr     string
	serveWritable bool
	serveCorpus   string
	serveTarget   string
	serveSave     string
	serveMount    string
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":0", "TCP address for the NFS listener")
	serveCmd.Flags().BoolVar(&serveWritable, "writable", false, "accept new samples under /samples/ (needs --corpus and --target)")
	serveCmd.Flags().StringVar(&serveCorpus, "corpus", "", "SQLite corpus backing the served grammar")
	serveCmd.Flags().StringVar(&serveTarget, "target", "", "target whose corpus samples are mined into the served grammar")
	serveCmd.Flags().StringVar(&serveSave, "save", "", "grammar name saved to the corpus on shutdown (default: the target name)")
	serveCmd.Flags().StringVar(&serveMount, "mount", "", "also mount the export at this directory (uses sudo)")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [grammar.json]",
	Short: "Serve a grammar as an NFS filesystem",
	Long: `Serve projects a grammar over NFS: one directory per nonterminal, one
numbered file per alternative, and _grammar.json at the root. With
--writable, files written under /samples/ are appended to the corpus,
mined, and merged into the served tree on the fly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base := api.NewGrammar()
		if len(args) == 1 {
			g, err := export.Load(args[0])
			if err != nil {
				return err
			}
			base = g
		}

		var store *corpus.Store
		var eng *mine.Engine
		if serveCorpus != "" {
			var err error
			store, err = corpus.Open(serveCorpus)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if serveTarget != "" {
				eng, err = mine.New(mine.Config{Target: serveTarget})
				if err != nil {
					return err
				}
				mined, failed := 0, 0
				err = store.Samples(serveTarget, func(id int64, body string) error {
					if res := eng.MineSample(body); res.Outcome == mine.TargetFailed {
						failed++
					} else {
						mined++
					}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Printf("Mined %d corpus samples for %q (%d failed).\n", mined, serveTarget, failed)
			}
		}
		if len(args) == 0 && eng == nil {
			return fmt.Errorf("nothing to serve: pass a grammar file or --corpus with --target")
		}

		current := base
		if eng != nil {
			current = synth.Merge(base, eng.Grammar())
		}
		src := gramfs.NewSwapSource(current)
		fs := gramfs.New(src)

		if serveWritable {
			if store == nil || eng == nil {
				return fmt.Errorf("--writable needs --corpus and --target")
			}
			var mu sync.Mutex
			fs.SetWriteBack(func(name string, content []byte) error {
				mu.Lock()
				defer mu.Unlock()

				sample := strings.TrimSuffix(string(content), "\n")
				if sample == "" {
					return fmt.Errorf("empty sample %s", name)
				}
				if _, err := store.AddSample(serveTarget, sample); err != nil {
					return err
				}
				res := eng.MineSample(sample)
				if res.Err != nil {
					return res.Err
				}
				src.Swap(synth.Merge(base, eng.Grammar()))
				fmt.Printf("  sample %s: %s (%d observations)\n", name, res.Outcome, res.Observations)
				return nil
			})
		}

		server, err := gramfs.NewServer(fs, serveAddr)
		if err != nil {
			return err
		}
		defer func() { _ = server.Close() }()

		fmt.Printf("Serving NFS on port %d. Mount with:\n", server.Port())
		fmt.Printf("  sudo mount -t nfs -o port=%d,mountport=%d,vers=3,tcp localhost:/ <mountpoint>\n",
			server.Port(), server.Port())

		if serveMount != "" {
			if err := gramfs.Mount(server.Port(), serveMount, serveWritable); err != nil {
				return err
			}
			fmt.Printf("Mounted at %s.\n", serveMount)
			defer func() {
				if err := gramfs.Unmount(serveMount); err != nil {
					fmt.Println(err)
				}
			}()
		}

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		fmt.Println("Shutting down.")

		if store != nil && eng != nil && (serveWritable || serveSave != "") {
			name := serveSave
			if name == "" {
				name = serveTarget
			}
			if err := store.PutGrammar(name, serveTarget, synth.Merge(base, eng.Grammar())); err != nil {
				return err
			}
			fmt.Printf("Saved grammar %q to %s.\n", name, serveCorpus)
		}
		return nil
	},
}

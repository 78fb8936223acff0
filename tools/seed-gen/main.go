package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/agentic-research/grist/internal/corpus"
)

func main() {
	corpusPath := flag.String("corpus", "", "Path to the sample corpus (SQLite)")
	targetName := flag.String("target", "", "Target whose samples become seeds")
	fuzzName := flag.String("fuzz", "FuzzGrammar", "Name of the fuzz function the seeds feed")
	outDir := flag.String("out", "testdata/fuzz", "Base output directory")
	max := flag.Int("max", 0, "Maximum number of seeds (0 = all)")
	seed := flag.Int64("seed", 1, "Reservoir sampling seed used with -max")
	flag.Parse()

	if *corpusPath == "" || *targetName == "" {
		flag.Usage()
		os.Exit(1)
	}

	store, err := corpus.Open(*corpusPath)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = store.Close() }()

	var samples []string
	if *max > 0 {
		samples, err = store.SampleN(*targetName, *max, *seed)
	} else {
		err = store.Samples(*targetName, func(id int64, body string) error {
			samples = append(samples, body)
			return nil
		})
	}
	if err != nil {
		fatal(err)
	}
	if len(samples) == 0 {
		fatal(fmt.Errorf("no samples for target %q in %s", *targetName, *corpusPath))
	}

	seedDir := filepath.Join(*outDir, *fuzzName)
	if err := os.MkdirAll(seedDir, 0o755); err != nil {
		fatal(err)
	}

	for i, sample := range samples {
		name := filepath.Join(seedDir, fmt.Sprintf("seed-%04d", i))
		content := "go test fuzz v1\nstring(" + strconv.Quote(sample) + ")\n"
		if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
			fatal(err)
		}
	}

	fmt.Printf("✅ Wrote %d seeds to %s\n", len(samples), seedDir)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

package corpus

import (
	"bufio"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
)

// SampleN draws up to n samples for a target using reservoir sampling,
// so the draw is uniform without loading the corpus in memory. The
// seed makes draws reproducible.
func (s *Store) SampleN(target string, n int, seed int64) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	rng := rand.New(rand.NewSource(seed))
	reservoir := make([]string, 0, n)
	seen := 0

	err := s.Samples(target, func(_ int64, body string) error {
		if len(reservoir) < n {
			reservoir = append(reservoir, body)
		} else if j := rng.Intn(seen + 1); j < n {
			reservoir[j] = body
		}
		seen++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservoir, nil
}

// ReadSources visits sample sources in order. A regular file yields
// one sample per non-empty line; a directory yields one sample per
// regular file it directly contains, in name order; "-" reads lines
// from stdin.
func ReadSources(paths []string, fn func(sample string) error) error {
	for _, path := range paths {
		if path == "-" {
			if err := scanLines(os.Stdin, "stdin", fn); err != nil {
				return err
			}
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("corpus: source %s: %w", path, err)
		}
		if info.IsDir() {
			if err := readDir(path, fn); err != nil {
				return err
			}
			continue
		}
		if err := readLines(path, fn); err != nil {
			return err
		}
	}
	return nil
}

func readDir(dir string, fn func(string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("corpus: read dir %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return fmt.Errorf("corpus: read sample %s: %w", e.Name(), err)
		}
		if len(raw) == 0 {
			continue
		}
		if err := fn(string(raw)); err != nil {
			return err
		}
	}
	return nil
}

func readLines(path string, fn func(string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("corpus: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return scanLines(f, path, fn)
}

func scanLines(r io.Reader, label string, fn func(string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("corpus: scan %s: %w", label, err)
	}
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/grist/internal/corpus"
)

func init() {
	corpusCmd.AddCommand(corpusAddCmd)
	corpusCmd.AddCommand(corpusListCmd)
	corpusCmd.AddCommand(corpusIndexCmd)
	corpusCmd.AddCommand(corpusTokensCmd)
	corpusCmd.AddCommand(corpusGrepCmd)
	rootCmd.AddCommand(corpusCmd)
}

var corpusCmd = &cobra.Command{
	Use:   "corpus",
	Short: "Manage the SQLite sample corpus",
}

var corpusAddCmd = &cobra.Command{
	Use:   "add <corpus.db> <target> <sources...>",
	Short: "Add samples from files or directories",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		bulk, err := store.Bulk()
		if err != nil {
			return err
		}

		added := 0
		err = corpus.ReadSources(args[2:], func(s string) error {
			if err := bulk.Add(args[1], s); err != nil {
				return err
			}
			added++
			return nil
		})
		if err != nil {
			_ = bulk.Close()
			return err
		}
		if err := bulk.Close(); err != nil {
			return err
		}

		total, err := store.CountSamples(args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Added %d samples; %q now holds %d.\n", added, args[1], total)
		return nil
	},
}

var corpusListCmd = &cobra.Command{
	Use:   "list <corpus.db> [target]",
	Short: "List samples, newest last",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		target := ""
		if len(args) == 2 {
			target = args[1]
		}

		count := 0
		err = store.Samples(target, func(id int64, body string) error {
			fmt.Printf("%6d  %s\n", id, body)
			count++
			return nil
		})
		if err != nil {
			return err
		}
		fmt.Printf("%d samples.\n", count)
		return nil
	},
}

var corpusIndexCmd = &cobra.Command{
	Use:   "index <corpus.db> [target]",
	Short: "Rebuild the token index over the samples",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		target := ""
		if len(args) == 2 {
			target = args[1]
		}
		tokens, err := store.RebuildIndex(target)
		if err != nil {
			return err
		}
		fmt.Printf("Indexed %d tokens.\n", tokens)
		return nil
	},
}

var corpusGrepCmd = &cobra.Command{
	Use:   "grep <corpus.db> <pattern>",
	Short: "Find samples by indexed token, through the grist_tokens virtual table",
	Long: `Grep queries the token index through the grist_tokens virtual table.
A pattern without wildcards matches one token exactly; * and ? are
GLOB wildcards. Run 'grist corpus index' first.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		mod, err := corpus.AttachTokens(store, "tokens_view", "corpus")
		if err != nil {
			return err
		}
		defer mod.UnregisterDB("corpus")

		pattern := args[1]
		query := `SELECT token, sample_id, body FROM tokens_view WHERE token = ?`
		if strings.ContainsAny(pattern, "*?") {
			query = `SELECT token, sample_id, body FROM tokens_view WHERE token GLOB ?`
		}

		rows, err := store.DB().Query(query, pattern)
		if err != nil {
			return err
		}
		defer func() { _ = rows.Close() }()

		count := 0
		for rows.Next() {
			var tok, body string
			var id int64
			if err := rows.Scan(&tok, &id, &body); err != nil {
				return err
			}
			fmt.Printf("%6d  %-12s  %s\n", id, tok, body)
			count++
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if count == 0 {
			fmt.Println("No matches. Is the index built? See 'grist corpus index'.")
			return nil
		}
		fmt.Printf("%d rows.\n", count)
		return nil
	},
}

var corpusTokensCmd = &cobra.Command{
	Use:   "tokens <corpus.db> [prefix]",
	Short: "List indexed tokens and the samples that contain them",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := corpus.Open(args[0])
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		prefix := ""
		if len(args) == 2 {
			prefix = args[1]
		}
		tokens, err := store.Tokens(prefix)
		if err != nil {
			return err
		}
		for _, tok := range tokens {
			ids, err := store.TokenSamples(tok)
			if err != nil {
				return err
			}
			fmt.Printf("%s  (%d samples)\n", tok, len(ids))
		}
		return nil
	},
}

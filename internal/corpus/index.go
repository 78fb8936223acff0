package corpus

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

const minTokenLen = 2

// Tokenize splits a sample body into index tokens: maximal runs of
// letters, digits and underscores, case preserved, shorter than two
// bytes dropped.
func Tokenize(body string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(body); i++ {
		if wordByte(body[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 && i-start >= minTokenLen {
			tokens = append(tokens, body[start:i])
		}
		start = -1
	}
	if start >= 0 && len(body)-start >= minTokenLen {
		tokens = append(tokens, body[start:])
	}
	return tokens
}

func wordByte(c byte) bool {
	return c == '_' ||
		('a' <= c && c <= 'z') ||
		('A' <= c && c <= 'Z') ||
		('0' <= c && c <= '9')
}

// RebuildIndex recomputes the token index over the target's samples
// (every sample when target is empty). Each sample gets a dense uint32
// alias; postings are roaring bitmaps over those aliases, serialized
// into the tokens table. Returns the number of distinct tokens.
func (s *Store) RebuildIndex(target string) (int, error) {
	postings := make(map[string]*roaring.Bitmap)
	aliases := make(map[uint32]int64)

	var next uint32
	err := s.Samples(target, func(id int64, body string) error {
		alias := next
		next++
		aliases[alias] = id
		for _, tok := range Tokenize(body) {
			rb, ok := postings[tok]
			if !ok {
				rb = roaring.New()
				postings[tok] = rb
			}
			rb.Add(alias)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("corpus: index begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tokens`); err != nil {
		return 0, fmt.Errorf("corpus: clear tokens: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM sample_ids`); err != nil {
		return 0, fmt.Errorf("corpus: clear sample_ids: %w", err)
	}

	aliasStmt, err := tx.Prepare(`INSERT INTO sample_ids (alias, sample_id) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("corpus: prepare sample_ids: %w", err)
	}
	for alias, id := range aliases {
		if _, err := aliasStmt.Exec(alias, id); err != nil {
			_ = aliasStmt.Close()
			return 0, fmt.Errorf("corpus: insert alias: %w", err)
		}
	}
	_ = aliasStmt.Close()

	tokenStmt, err := tx.Prepare(`INSERT INTO tokens (token, bitmap) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("corpus: prepare tokens: %w", err)
	}
	for tok, rb := range postings {
		blob, err := rb.MarshalBinary()
		if err != nil {
			_ = tokenStmt.Close()
			return 0, fmt.Errorf("corpus: marshal bitmap for %q: %w", tok, err)
		}
		if _, err := tokenStmt.Exec(tok, blob); err != nil {
			_ = tokenStmt.Close()
			return 0, fmt.Errorf("corpus: insert token: %w", err)
		}
	}
	_ = tokenStmt.Close()

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("corpus: index commit: %w", err)
	}
	return len(postings), nil
}

// TokenSamples resolves a token to the ids of the samples containing
// it, ascending.
func (s *Store) TokenSamples(token string) ([]int64, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT bitmap FROM tokens WHERE token = ?`, token).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("corpus: token %q: %w", token, err)
	}

	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return nil, fmt.Errorf("corpus: unmarshal bitmap for %q: %w", token, err)
	}
	ids, err := s.resolveAliases(rb)
	if err != nil {
		return nil, err
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Tokens lists indexed tokens, optionally restricted to a prefix,
// sorted.
func (s *Store) Tokens(prefix string) ([]string, error) {
	query := `SELECT token FROM tokens ORDER BY token`
	args := []any{}
	if prefix != "" {
		query = `SELECT token FROM tokens WHERE token LIKE ? ESCAPE '\' ORDER BY token`
		args = append(args, escapeLike(prefix)+"%")
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus: list tokens: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tokens []string
	for rows.Next() {
		var tok string
		if err := rows.Scan(&tok); err != nil {
			return nil, fmt.Errorf("corpus: scan token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	return tokens, rows.Err()
}

func (s *Store) resolveAliases(rb *roaring.Bitmap) ([]int64, error) {
	var aliases []uint32
	it := rb.Iterator()
	for it.HasNext() {
		aliases = append(aliases, it.Next())
	}
	if len(aliases) == 0 {
		return nil, nil
	}

	args := make([]any, len(aliases))
	placeholders := make([]string, len(aliases))
	for i, a := range aliases {
		args[i] = a
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(`SELECT sample_id FROM sample_ids WHERE alias IN (%s)`, strings.Join(placeholders, ","))
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("corpus: resolve aliases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("corpus: scan sample id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// escapeLike quotes LIKE metacharacters so a prefix with _ in it (a
// word byte tokens may contain) matches literally.
func escapeLike(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix)
}

// Package corpus persists samples and mined grammars in SQLite and
// maintains an inverted token index over the samples so triage queries
// ("which samples contain this terminal") stay cheap as corpora grow.
package corpus

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/agentic-research/grist/api"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("corpus: not found")

const schema = `
CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY,
	target TEXT NOT NULL,
	body TEXT NOT NULL,
	added_at INTEGER NOT NULL,
	UNIQUE (target, body)
);
CREATE INDEX IF NOT EXISTS idx_samples_target ON samples(target);

CREATE TABLE IF NOT EXISTS grammars (
	name TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	json TEXT NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	token TEXT PRIMARY KEY,
	bitmap BLOB NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS sample_ids (
	alias INTEGER PRIMARY KEY,
	sample_id INTEGER NOT NULL UNIQUE
);
`

// Store is a SQLite-backed sample and grammar store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a corpus database at path.
func Open(path string) (*Store, error) {
	// Register the grist_tokens vtab module globally before the first
	// Exec. sql.Open is lazy (no connection until first query), so
	// registering here ensures every pooled connection sees the module
	// and persisted virtual table definitions resolve on reopen.
	if _, err := RegisterModule(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("corpus: open %s: %w", path, err)
	}
	// The grist_tokens vtab holds one connection for the outer query
	// and needs a second one for its own lookups.
	db.SetMaxOpenConns(2)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("corpus: create schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying handle for virtual table registration.
func (s *Store) DB() *sql.DB { return s.db }

// AddSample inserts one sample and returns its id. Duplicate
// (target, body) pairs keep their original id.
func (s *Store) AddSample(target, body string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT OR IGNORE INTO samples (target, body, added_at) VALUES (?, ?, ?)`,
		target, body, time.Now().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("corpus: add sample: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return res.LastInsertId()
	}
	var id int64
	err = s.db.QueryRow(`SELECT id FROM samples WHERE target = ? AND body = ?`, target, body).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("corpus: resolve sample id: %w", err)
	}
	return id, nil
}

// Sample returns the body of one sample.
func (s *Store) Sample(id int64) (string, error) {
	var body string
	err := s.db.QueryRow(`SELECT body FROM samples WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("corpus: sample %d: %w", id, err)
	}
	return body, nil
}

// Samples streams samples row by row, calling fn for each one. Only
// one body is alive at a time, keeping memory usage constant. An empty
// target selects every sample.
func (s *Store) Samples(target string, fn func(id int64, body string) error) error {
	query := `SELECT id, body FROM samples ORDER BY id`
	args := []any{}
	if target != "" {
		query = `SELECT id, body FROM samples WHERE target = ? ORDER BY id`
		args = append(args, target)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("corpus: query samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return fmt.Errorf("corpus: scan sample: %w", err)
		}
		if err := fn(id, body); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CountSamples reports how many samples the target has. An empty
// target counts every sample.
func (s *Store) CountSamples(target string) (int, error) {
	query := `SELECT COUNT(*) FROM samples`
	args := []any{}
	if target != "" {
		query = `SELECT COUNT(*) FROM samples WHERE target = ?`
		args = append(args, target)
	}
	var n int
	if err := s.db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("corpus: count samples: %w", err)
	}
	return n, nil
}

// PutGrammar stores a grammar under name, replacing any previous
// version.
func (s *Store) PutGrammar(name, target string, g *api.Grammar) error {
	raw, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("corpus: marshal grammar %q: %w", name, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO grammars (name, target, json, updated_at) VALUES (?, ?, ?, ?)`,
		name, target, string(raw), time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("corpus: put grammar %q: %w", name, err)
	}
	return nil
}

// GetGrammar loads a stored grammar and the target it was mined from.
func (s *Store) GetGrammar(name string) (*api.Grammar, string, error) {
	var target, raw string
	err := s.db.QueryRow(`SELECT target, json FROM grammars WHERE name = ?`, name).Scan(&target, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("corpus: grammar %q: %w", name, err)
	}
	var g api.Grammar
	if err := json.Unmarshal([]byte(raw), &g); err != nil {
		return nil, "", fmt.Errorf("corpus: parse grammar %q: %w", name, err)
	}
	return &g, target, nil
}

// GrammarNames lists stored grammar names, sorted.
func (s *Store) GrammarNames() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM grammars ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("corpus: list grammars: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("corpus: scan grammar name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

package corpus

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"modernc.org/sqlite/vtab"
)

// singleton holds the one TokensModule registered with the SQLite
// driver. modernc.org/sqlite registers modules globally (driver-level,
// not per-DB), so registration happens once per process.
var (
	once      sync.Once
	singleton *TokensModule
	initErr   error
)

// TokensModule implements vtab.Module and exposes the token index as
// a grist_tokens virtual table with (token, sample_id, body) rows.
type TokensModule struct {
	mu sync.RWMutex
	// dbs maps the ID passed to CREATE VIRTUAL TABLE ... USING
	// grist_tokens(id) to the store connection holding the index.
	dbs map[string]*sql.DB
}

// RegisterModule registers grist_tokens with the global SQLite driver.
// Safe to call multiple times; only the first call registers.
func RegisterModule() (*TokensModule, error) {
	once.Do(func() {
		singleton = &TokensModule{dbs: make(map[string]*sql.DB)}
		if err := vtab.RegisterModule(nil, "grist_tokens", singleton); err != nil {
			initErr = fmt.Errorf("corpus: register grist_tokens: %w", err)
			singleton = nil
		}
	})
	return singleton, initErr
}

// RegisterDB binds a store connection to an ID for use in CREATE
// VIRTUAL TABLE arguments.
func (m *TokensModule) RegisterDB(id string, db *sql.DB) {
	m.mu.Lock()
	m.dbs[id] = db
	m.mu.Unlock()
}

// UnregisterDB removes a store binding. Call when the store closes.
func (m *TokensModule) UnregisterDB(id string) {
	m.mu.Lock()
	delete(m.dbs, id)
	m.mu.Unlock()
}

// AttachTokens creates the grist_tokens virtual table on a store's
// own connection under the given table name. The table definition
// persists in the database schema with the ID embedded, so callers
// must pass the same ID on every open of the same file and call
// RegisterDB (via AttachTokens) before querying the table.
func AttachTokens(s *Store, table, id string) (*TokensModule, error) {
	mod, err := RegisterModule()
	if err != nil {
		return nil, err
	}
	mod.RegisterDB(id, s.db)
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING grist_tokens(%s)", table, id)
	if _, err := s.db.Exec(stmt); err != nil {
		mod.UnregisterDB(id)
		return nil, fmt.Errorf("corpus: create %s: %w", table, err)
	}
	return mod, nil
}

func (m *TokensModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	// argv[0] is the module name, argv[1] the database, argv[2] the
	// table name; the first () argument lands at argv[3].
	if len(args) < 4 {
		return nil, errors.New("grist_tokens: missing store ID argument")
	}
	id := strings.TrimSpace(args[3])

	m.mu.RLock()
	db, ok := m.dbs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("grist_tokens: unknown store ID %q", id)
	}

	if err := ctx.Declare("CREATE TABLE x(token TEXT, sample_id INTEGER, body TEXT)"); err != nil {
		return nil, err
	}
	return &tokensTable{mod: m, db: db}, nil
}

func (m *TokensModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

type tokensTable struct {
	mod *TokensModule
	db  *sql.DB
}

func (t *tokensTable) BestIndex(info *vtab.IndexInfo) error {
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Column != 0 {
			continue
		}
		switch c.Op {
		case vtab.OpEQ:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 1
			info.EstimatedCost = 1
			info.EstimatedRows = 10
			return nil
		case vtab.OpLIKE:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 2
			info.EstimatedCost = 100
			info.EstimatedRows = 100
			return nil
		case vtab.OpGLOB:
			c.ArgIndex = 0
			c.Omit = true
			info.IdxNum = 3
			info.EstimatedCost = 100
			info.EstimatedRows = 100
			return nil
		}
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e6
	info.EstimatedRows = 1e6
	return nil
}

func (t *tokensTable) Open() (vtab.Cursor, error) {
	return &tokensCursor{table: t}, nil
}

func (t *tokensTable) Disconnect() error { return nil }
func (t *tokensTable) Destroy() error    { return nil }

type tokenRow struct {
	token    string
	sampleID int64
	body     string
}

type tokensCursor struct {
	table *tokensTable
	rows  []tokenRow
	pos   int
}

func (c *tokensCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0

	db := c.table.db
	if db == nil {
		return nil
	}

	switch idxNum {
	case 1:
		token, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.loadToken(db, token)
	case 2:
		pattern, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.loadFiltered(db, "LIKE", pattern)
	case 3:
		pattern, ok := vals[0].(string)
		if !ok {
			return nil
		}
		return c.loadFiltered(db, "GLOB", pattern)
	default:
		return c.loadAll(db)
	}
}

func (c *tokensCursor) loadToken(db *sql.DB, token string) error {
	var blob []byte
	err := db.QueryRow(`SELECT bitmap FROM tokens WHERE token = ?`, token).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("grist_tokens: query token %q: %w", token, err)
	}
	return c.expandBitmap(db, token, blob)
}

// loadFiltered materializes the matching (token, bitmap) pairs and
// closes the scan before expanding, because expandBitmap needs a
// connection of its own and the pool is capped at two: the outer vtab
// query holds one, so the scan here and the expansion must share the
// other sequentially.
func (c *tokensCursor) loadFiltered(db *sql.DB, op, pattern string) error {
	type entry struct {
		token string
		blob  []byte
	}

	query := fmt.Sprintf(`SELECT token, bitmap FROM tokens WHERE token %s ?`, op)
	rows, err := db.Query(query, pattern)
	if err != nil {
		return fmt.Errorf("grist_tokens: filtered scan (%s %q): %w", op, pattern, err)
	}

	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.token, &e.blob); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("grist_tokens: filtered scan rows: %w", err)
	}
	_ = rows.Close()

	for _, e := range entries {
		if err := c.expandBitmap(db, e.token, e.blob); err != nil {
			return err
		}
	}
	return nil
}

func (c *tokensCursor) loadAll(db *sql.DB) error {
	return c.loadFiltered(db, "LIKE", "%")
}

// expandBitmap deserializes one posting bitmap and resolves the
// aliases to sample rows.
func (c *tokensCursor) expandBitmap(db *sql.DB, token string, blob []byte) error {
	rb := roaring.New()
	if err := rb.UnmarshalBinary(blob); err != nil {
		return fmt.Errorf("grist_tokens: unmarshal bitmap for %q: %w", token, err)
	}

	var aliases []uint32
	it := rb.Iterator()
	for it.HasNext() {
		aliases = append(aliases, it.Next())
	}
	if len(aliases) == 0 {
		return nil
	}

	args := make([]any, len(aliases))
	placeholders := make([]string, len(aliases))
	for i, a := range aliases {
		args[i] = a
		placeholders[i] = "?"
	}

	query := fmt.Sprintf(
		`SELECT s.id, s.body FROM sample_ids a JOIN samples s ON s.id = a.sample_id WHERE a.alias IN (%s) ORDER BY s.id`,
		strings.Join(placeholders, ","),
	)
	rows, err := db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("grist_tokens: resolve samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var row tokenRow
		row.token = token
		if err := rows.Scan(&row.sampleID, &row.body); err != nil {
			continue
		}
		c.rows = append(c.rows, row)
	}
	return rows.Err()
}

func (c *tokensCursor) Next() error {
	c.pos++
	return nil
}

func (c *tokensCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *tokensCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	switch col {
	case 0:
		return c.rows[c.pos].token, nil
	case 1:
		return c.rows[c.pos].sampleID, nil
	case 2:
		return c.rows[c.pos].body, nil
	default:
		return nil, nil
	}
}

func (c *tokensCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *tokensCursor) Close() error {
	c.rows = nil
	return nil
}

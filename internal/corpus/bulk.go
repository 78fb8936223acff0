package corpus

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// BulkWriter batches sample inserts inside one transaction for fast
// corpus ingestion. Not safe to interleave with reads on the same
// Store until Close.
type BulkWriter struct {
	store     *Store
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
	mu        sync.Mutex
}

// Bulk starts a batched insert session. Durability pragmas are relaxed
// for the duration; the database file is only consistent again after
// Close.
func (s *Store) Bulk() (*BulkWriter, error) {
	if _, err := s.db.Exec("PRAGMA synchronous = OFF"); err != nil {
		return nil, fmt.Errorf("corpus: bulk pragma: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		return nil, fmt.Errorf("corpus: bulk pragma: %w", err)
	}

	w := &BulkWriter{store: s, batchSize: 10000}
	if err := w.begin(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *BulkWriter) begin() error {
	var err error
	w.tx, err = w.store.db.Begin()
	if err != nil {
		return fmt.Errorf("corpus: bulk begin: %w", err)
	}
	w.stmt, err = w.tx.Prepare(`INSERT OR IGNORE INTO samples (target, body, added_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("corpus: bulk prepare: %w", err)
	}
	return nil
}

func (w *BulkWriter) commit() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
	}
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("corpus: bulk commit: %w", err)
	}
	return nil
}

// Add queues one sample for insertion.
func (w *BulkWriter) Add(target, body string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.stmt.Exec(target, body, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("corpus: bulk insert: %w", err)
	}
	w.count++
	if w.count >= w.batchSize {
		if err := w.commit(); err != nil {
			return err
		}
		if err := w.begin(); err != nil {
			return err
		}
		w.count = 0
	}
	return nil
}

// Close commits the final batch and restores durable writes. The
// Store stays open.
func (w *BulkWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.commit(); err != nil {
		return err
	}
	if _, err := w.store.db.Exec("PRAGMA synchronous = FULL"); err != nil {
		return fmt.Errorf("corpus: restore pragma: %w", err)
	}
	return nil
}

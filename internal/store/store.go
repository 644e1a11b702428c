// Package store is the typed, transactional persistence layer for
// users, items, inventories, and sell orders (spec.md §3, §4.1). It is
// the only package that issues SQL.
//
// The underlying engine is an embedded SQLite database via
// modernc.org/sqlite, following the teacher's raw-SQL-string +
// Scan-into-struct style (internal/db in the teacher repo) adapted
// from pgx's API to database/sql's.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/kinkard/auctionhouse/internal/auctionerr"
)

// FundsItemName is the distinguished currency item created at store
// initialization (spec.md §3).
const FundsItemName = "funds"

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting every
// primitive below run either standalone or inside a caller-managed
// transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queries implements every primitive from spec.md §4.1 against
// whichever dbtx it's bound to.
type queries struct {
	db      dbtx
	fundsID uint64
}

// Store is the typed persistent container described in spec.md §4.1.
// It owns the only mutable handle to persistent state.
//
// SQLite serializes writers regardless of connection pool size, so
// Store keeps exactly one connection open (SetMaxOpenConns(1)) and
// additionally guards every write transaction with mu — the "explicit
// mutual exclusion" spec.md §5 requires from a multi-threaded host
// runtime in place of the original's single-threaded async runtime.
type Store struct {
	queries
	db *sql.DB
	mu sync.Mutex
}

// Open creates or opens the SQLite database at path, creates the
// schema if missing, and ensures the distinguished funds item exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return nil, fmt.Errorf("failed to set journal mode: %w", err)
	}

	if err := createSchema(ctx, db); err != nil {
		return nil, err
	}

	fundsID, err := ensureFundsItem(ctx, db)
	if err != nil {
		return nil, err
	}

	return &Store{
		queries: queries{db: db, fundsID: fundsID},
		db:      db,
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// FundsID returns the cached id of the distinguished "funds" item.
func (s *Store) FundsID() uint64 {
	return s.fundsID
}

func createSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);`,
		`CREATE TABLE IF NOT EXISTS user_items (
			user_id INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, item_id),
			FOREIGN KEY (user_id) REFERENCES users (id),
			FOREIGN KEY (item_id) REFERENCES items (id)
		);`,
		`CREATE TABLE IF NOT EXISTS sell_orders (
			id INTEGER PRIMARY KEY,
			seller_id INTEGER NOT NULL,
			item_id INTEGER NOT NULL,
			quantity INTEGER NOT NULL,
			price INTEGER NOT NULL,
			unix_expiration_time INTEGER NOT NULL,
			buyer_id INTEGER,
			FOREIGN KEY (seller_id) REFERENCES users (id),
			FOREIGN KEY (item_id) REFERENCES items (id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sell_orders_expiration ON sell_orders (unix_expiration_time);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func ensureFundsItem(ctx context.Context, db *sql.DB) (uint64, error) {
	if _, err := db.ExecContext(ctx, "INSERT OR IGNORE INTO items (name) VALUES (?);", FundsItemName); err != nil {
		return 0, fmt.Errorf("failed to insert %q item: %w", FundsItemName, err)
	}
	var id uint64
	err := db.QueryRowContext(ctx, "SELECT id FROM items WHERE name = ?;", FundsItemName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to get %q item id: %w", FundsItemName, err)
	}
	return id, nil
}

// Tx is a scoped transaction: Rollback is idempotent and safe to defer
// unconditionally before a Commit call, per spec.md §9's scoped
// transaction contract.
type Tx struct {
	queries
	store *Store
	tx    *sql.Tx
	done  bool
}

// Begin acquires the store's write lock and starts a transaction. The
// caller must defer tx.Rollback() and call tx.Commit() on success.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	s.mu.Lock()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return nil, auctionerr.New(auctionerr.Conflict, fmt.Sprintf("failed to start transaction: %v", err))
	}
	return &Tx{
		queries: queries{db: tx, fundsID: s.fundsID},
		store:   s,
		tx:      tx,
	}, nil
}

// Commit commits the transaction and releases the store's write lock.
func (t *Tx) Commit() error {
	if t.done {
		return nil
	}
	t.done = true
	defer t.store.mu.Unlock()
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the transaction if it hasn't already been committed
// and releases the store's write lock. Safe to call multiple times.
func (t *Tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	defer t.store.mu.Unlock()
	_ = t.tx.Rollback()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

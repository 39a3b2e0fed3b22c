/*
Package sqlite provides a SQLite-backed implementation of gym.Store.

PURPOSE:
  Keeps the gym's collections in a single local database file so the
  repository survives restarts.

INTERFACES IMPLEMENTED:
  gym.Store:   collection persistence
  gym.TxStore: atomic multi-collection writes

KEY TABLES:
  collections:          customers and classes as JSON arrays under a fixed
                        name, rewritten whole on change
  attendance_records:   append-only check-in log
  session_transactions: append-only session ledger

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on attendance_records or session_transactions
  - No DELETE statements on them outside Replace (reset/seed)
  - Rows are read back in insertion order (seq)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Better crash recovery

CONNECTIONS:
  The pool is capped at one connection. ":memory:" databases are per
  connection, and a single writer is all this store ever has.

USAGE:
  store, err := sqlite.New("./data/gym.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  repo, err := gym.NewRepository(ctx, store, gym.WithSeed(gym.DefaultSeed))

SEE ALSO:
  - gym/store.go: Interface definitions
  - gym/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/gym-ledger/gym"
)

// Store implements gym.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Whole-array collections (customers, classes)
	CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Attendance (append-only)
	CREATE TABLE IF NOT EXISTS attendance_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		class_id TEXT,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_customer
		ON attendance_records(customer_id);
	CREATE INDEX IF NOT EXISTS idx_attendance_timestamp
		ON attendance_records(timestamp);

	-- Session ledger (append-only)
	CREATE TABLE IF NOT EXISTS session_transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		class_id TEXT,
		source TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		delta INTEGER NOT NULL,
		balance_after INTEGER NOT NULL,
		reference_id TEXT,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_transactions_customer
		ON session_transactions(customer_id);
	CREATE INDEX IF NOT EXISTS idx_session_transactions_reference
		ON session_transactions(reference_id) WHERE reference_id IS NOT NULL;
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads every collection.
func (s *Store) Load(ctx context.Context) (gym.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return load(ctx, s.db)
}

func load(ctx context.Context, db execer) (gym.Snapshot, error) {
	var snap gym.Snapshot

	if err := loadCollection(ctx, db, gym.CollectionCustomers, &snap.Customers); err != nil {
		return snap, err
	}
	if err := loadCollection(ctx, db, gym.CollectionClasses, &snap.Classes); err != nil {
		return snap, err
	}

	records, err := loadAttendance(ctx, db)
	if err != nil {
		return snap, err
	}
	snap.AttendanceRecords = records

	txs, err := loadTransactions(ctx, db)
	if err != nil {
		return snap, err
	}
	snap.Transactions = txs

	return snap, nil
}

func loadCollection(ctx context.Context, db execer, name gym.Collection, dst any) error {
	rows, err := db.QueryContext(ctx, "SELECT payload FROM collections WHERE name = ?", string(name))
	if err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Err()
	}
	var payload string
	if err := rows.Scan(&payload); err != nil {
		return fmt.Errorf("failed to scan %s: %w", name, err)
	}
	if err := json.Unmarshal([]byte(payload), dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return rows.Err()
}

func loadAttendance(ctx context.Context, db execer) ([]gym.AttendanceRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, customer_id, class_id, timestamp
		FROM attendance_records
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %w", err)
	}
	defer rows.Close()

	records := []gym.AttendanceRecord{}
	for rows.Next() {
		var (
			rec       gym.AttendanceRecord
			classID   sql.NullString
			timestamp string
		)
		if err := rows.Scan(&rec.ID, &rec.CustomerID, &classID, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		rec.ClassID = gym.ClassID(classID.String)
		rec.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("attendance %s: bad timestamp: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func loadTransactions(ctx context.Context, db execer) ([]gym.SessionTransaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, customer_id, class_id, source, tx_type, delta, balance_after,
		       reference_id, reason, created_at
		FROM session_transactions
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	txs := []gym.SessionTransaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (gym.SessionTransaction, error) {
	var (
		tx          gym.SessionTransaction
		classID     sql.NullString
		referenceID sql.NullString
		reason      sql.NullString
		createdAt   string
	)

	err := rows.Scan(
		&tx.ID, &tx.CustomerID, &classID, &tx.Source, &tx.Type,
		&tx.Delta, &tx.BalanceAfter, &referenceID, &reason, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.ClassID = gym.ClassID(classID.String)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return tx, fmt.Errorf("transaction %s: bad created_at: %w", tx.ID, err)
	}
	return tx, nil
}

// =============================================================================
// WRITE (gym.Store interface)
// =============================================================================

func (s *Store) SaveCustomers(ctx context.Context, customers []gym.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCollection(ctx, s.db, gym.CollectionCustomers, customers)
}

func (s *Store) SaveClasses(ctx context.Context, classes []gym.Class) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveCollection(ctx, s.db, gym.CollectionClasses, classes)
}

// AppendAttendance adds records atomically.
func (s *Store) AppendAttendance(ctx context.Context, records []gym.AttendanceRecord) error {
	return s.WithTx(ctx, func(ts gym.Store) error {
		return ts.AppendAttendance(ctx, records)
	})
}

// AppendTransactions adds ledger entries atomically.
func (s *Store) AppendTransactions(ctx context.Context, txs []gym.SessionTransaction) error {
	return s.WithTx(ctx, func(ts gym.Store) error {
		return ts.AppendTransactions(ctx, txs)
	})
}

// Replace wipes every table and writes snap.
func (s *Store) Replace(ctx context.Context, snap gym.Snapshot) error {
	return s.WithTx(ctx, func(ts gym.Store) error {
		return ts.Replace(ctx, snap)
	})
}

func saveCollection(ctx context.Context, db execer, name gym.Collection, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO collections (name, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at
	`, string(name), string(payload), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func appendAttendance(ctx context.Context, db execer, rec gym.AttendanceRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, customer_id, class_id, timestamp)
		VALUES (?, ?, ?, ?)
	`,
		rec.ID,
		rec.CustomerID,
		nullString(string(rec.ClassID)),
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("attendance record %s already stored: %w", rec.ID, ErrDuplicateID)
		}
		return fmt.Errorf("failed to append attendance: %w", err)
	}
	return nil
}

func appendTransaction(ctx context.Context, db execer, tx gym.SessionTransaction) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO session_transactions
		(id, customer_id, class_id, source, tx_type, delta, balance_after,
		 reference_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tx.ID,
		tx.CustomerID,
		nullString(string(tx.ClassID)),
		tx.Source,
		tx.Type,
		tx.Delta,
		tx.BalanceAfter,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		tx.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("transaction %s already stored: %w", tx.ID, ErrDuplicateID)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func replace(ctx context.Context, db execer, snap gym.Snapshot) error {
	for _, table := range []string{"collections", "attendance_records", "session_transactions"} {
		if _, err := db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := saveCollection(ctx, db, gym.CollectionCustomers, nonNil(snap.Customers)); err != nil {
		return err
	}
	if err := saveCollection(ctx, db, gym.CollectionClasses, nonNil(snap.Classes)); err != nil {
		return err
	}
	for _, rec := range snap.AttendanceRecords {
		if err := appendAttendance(ctx, db, rec); err != nil {
			return err
		}
	}
	for _, tx := range snap.Transactions {
		if err := appendTransaction(ctx, db, tx); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (gym.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store gym.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes every call through the open transaction.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Load(ctx context.Context) (gym.Snapshot, error) {
	return load(ctx, ts.tx)
}

func (ts *txStore) SaveCustomers(ctx context.Context, customers []gym.Customer) error {
	return saveCollection(ctx, ts.tx, gym.CollectionCustomers, customers)
}

func (ts *txStore) SaveClasses(ctx context.Context, classes []gym.Class) error {
	return saveCollection(ctx, ts.tx, gym.CollectionClasses, classes)
}

func (ts *txStore) AppendAttendance(ctx context.Context, records []gym.AttendanceRecord) error {
	for _, rec := range records {
		if err := appendAttendance(ctx, ts.tx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) AppendTransactions(ctx context.Context, txs []gym.SessionTransaction) error {
	for _, tx := range txs {
		if err := appendTransaction(ctx, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Replace(ctx context.Context, snap gym.Snapshot) error {
	return replace(ctx, ts.tx, snap)
}

// =============================================================================
// UTILITIES
// =============================================================================

// ErrDuplicateID is returned when an append reuses a stored id.
var ErrDuplicateID = errors.New("duplicate id")

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nonNil keeps empty collections encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

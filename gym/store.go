/*
store.go - Persistence interface for gym collections

PURPOSE:
  Defines the boundary between the repository and durable storage. The
  repository reads everything once at startup and writes on every change.

COLLECTIONS:
  customers           whole array, rewritten on change
  classes             whole array, rewritten on change
  attendanceRecords   append-only
  sessionTransactions append-only

ATOMIC WRITES:
  A check-in touches three collections (customers, attendance, ledger).
  Stores that implement TxStore get all of them inside one WithTx call;
  either every write lands or none does.

IMPLEMENTATIONS:
  - gym/store/memory.go: in-memory, for tests and throwaway runs
  - store/sqlite/sqlite.go: local SQLite file

SEE ALSO:
  - repository.go: the only caller
*/
package gym

import "context"

// Collection names are the fixed keys the collections persist under.
type Collection string

const (
	CollectionCustomers    Collection = "customers"
	CollectionClasses      Collection = "classes"
	CollectionAttendance   Collection = "attendanceRecords"
	CollectionTransactions Collection = "sessionTransactions"
)

// Snapshot is the full persisted state.
type Snapshot struct {
	Customers         []Customer           `json:"customers"`
	Classes           []Class              `json:"classes"`
	AttendanceRecords []AttendanceRecord   `json:"attendanceRecords"`
	Transactions      []SessionTransaction `json:"sessionTransactions"`
}

// IsEmpty reports whether nothing has ever been stored.
func (s Snapshot) IsEmpty() bool {
	return len(s.Customers) == 0 && len(s.Classes) == 0 &&
		len(s.AttendanceRecords) == 0 && len(s.Transactions) == 0
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Customers:         make([]Customer, len(s.Customers)),
		Classes:           append([]Class{}, s.Classes...),
		AttendanceRecords: append([]AttendanceRecord{}, s.AttendanceRecords...),
		Transactions:      append([]SessionTransaction{}, s.Transactions...),
	}
	for i, c := range s.Customers {
		out.Customers[i] = c.Clone()
	}
	return out
}

// =============================================================================
// STORE
// =============================================================================

// Store persists the collections.
// Attendance and transactions are APPEND-ONLY: there is no way to rewrite
// or remove them short of Replace.
type Store interface {
	// Load returns everything stored. An empty store yields an empty Snapshot.
	Load(ctx context.Context) (Snapshot, error)

	// SaveCustomers replaces the customers collection.
	SaveCustomers(ctx context.Context, customers []Customer) error

	// SaveClasses replaces the classes collection.
	SaveClasses(ctx context.Context, classes []Class) error

	AppendAttendance(ctx context.Context, records []AttendanceRecord) error
	AppendTransactions(ctx context.Context, txs []SessionTransaction) error

	// Replace discards all data and stores snap. Used by reset/seed only.
	Replace(ctx context.Context, snap Snapshot) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, everything fn wrote is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

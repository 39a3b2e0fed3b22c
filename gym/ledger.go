/*
ledger.go - Append-only session transaction log

PURPOSE:
  Every change to a session balance is also written as a SessionTransaction.
  The customer record holds the current balances; the ledger explains how
  they got there.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. ONE ENTRY PER BALANCE CHANGE: written in the same atomic store write as
     the balance change itself.
  3. REPLAYABLE: summing Delta per (customer, source, class) reproduces the
     stored balance. Seed data starts with opening-balance top-ups so this
     holds from day one.

EXAMPLE FLOW:
  1. Owner adds 10 BJJ sessions:   top_up   class/bjj  +10 -> 10
  2. Customer attends BJJ:         check_in class/bjj  -1  -> 9
  3. Owner adds 2 drop-in:         top_up   dropin     +2  -> 2
  4. Customer attends Muay Thai:   check_in dropin     -1  -> 1

SEE ALSO:
  - engine.go: writes the entries
  - store.go: AppendTransactions
*/
package gym

import "time"

// =============================================================================
// TRANSACTION - Atomic change to a session balance
// =============================================================================

type TransactionID string

// Source names the balance a transaction moved.
type Source string

const (
	SourceClass  Source = "class"
	SourceDropIn Source = "dropin"
)

type TransactionType string

const (
	TxTopUp   TransactionType = "top_up"   // Sessions added by the owner (or opening balance)
	TxCheckIn TransactionType = "check_in" // Sessions consumed by attendance
)

type SessionTransaction struct {
	ID           TransactionID   `json:"id"`
	CustomerID   CustomerID      `json:"customerId"`
	ClassID      ClassID         `json:"classId,omitempty"`
	Source       Source          `json:"source"`
	Type         TransactionType `json:"type"`
	Delta        int             `json:"delta"`
	BalanceAfter int             `json:"balanceAfter"`
	ReferenceID  string          `json:"referenceId,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// LedgerBalance replays txs for one balance. classID is ignored for the
// drop-in source.
func LedgerBalance(txs []SessionTransaction, customerID CustomerID, source Source, classID ClassID) int {
	balance := 0
	for _, tx := range txs {
		if tx.CustomerID != customerID || tx.Source != source {
			continue
		}
		if source == SourceClass && tx.ClassID != classID {
			continue
		}
		balance += tx.Delta
	}
	return balance
}

// TransactionsFor returns the customer's entries in ledger order.
func TransactionsFor(txs []SessionTransaction, customerID CustomerID) []SessionTransaction {
	out := []SessionTransaction{}
	for _, tx := range txs {
		if tx.CustomerID == customerID {
			out = append(out, tx)
		}
	}
	return out
}

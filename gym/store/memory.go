// Package store provides in-process gym.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data gym.Snapshot
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryFrom returns a store preloaded with snap.
func NewMemoryFrom(snap gym.Snapshot) *Memory {
	return &Memory{data: snap.Clone()}
}

func (m *Memory) Load(_ context.Context) (gym.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data.Clone(), nil
}

func (m *Memory) SaveCustomers(_ context.Context, customers []gym.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCustomersLocked(customers)
	return nil
}

func (m *Memory) SaveClasses(_ context.Context, classes []gym.Class) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveClassesLocked(classes)
	return nil
}

// AppendAttendance adds records to the end of the log. Append-only.
func (m *Memory) AppendAttendance(_ context.Context, records []gym.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.AttendanceRecords = append(m.data.AttendanceRecords, records...)
	return nil
}

// AppendTransactions adds ledger entries to the end of the log. Append-only.
func (m *Memory) AppendTransactions(_ context.Context, txs []gym.SessionTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Transactions = append(m.data.Transactions, txs...)
	return nil
}

func (m *Memory) Replace(_ context.Context, snap gym.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = snap.Clone()
	return nil
}

func (m *Memory) saveCustomersLocked(customers []gym.Customer) {
	m.data.Customers = gym.Snapshot{Customers: customers}.Clone().Customers
}

func (m *Memory) saveClassesLocked(classes []gym.Class) {
	m.data.Classes = append([]gym.Class{}, classes...)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(gym.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	saved := tm.data.Clone()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.data = saved
		return err
	}
	return nil
}

// txMemoryView writes straight into the parent while WithTx holds its lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Load(_ context.Context) (gym.Snapshot, error) {
	return tv.parent.data.Clone(), nil
}

func (tv *txMemoryView) SaveCustomers(_ context.Context, customers []gym.Customer) error {
	tv.parent.saveCustomersLocked(customers)
	return nil
}

func (tv *txMemoryView) SaveClasses(_ context.Context, classes []gym.Class) error {
	tv.parent.saveClassesLocked(classes)
	return nil
}

func (tv *txMemoryView) AppendAttendance(_ context.Context, records []gym.AttendanceRecord) error {
	tv.parent.data.AttendanceRecords = append(tv.parent.data.AttendanceRecords, records...)
	return nil
}

func (tv *txMemoryView) AppendTransactions(_ context.Context, txs []gym.SessionTransaction) error {
	tv.parent.data.Transactions = append(tv.parent.data.Transactions, txs...)
	return nil
}

func (tv *txMemoryView) Replace(_ context.Context, snap gym.Snapshot) error {
	tv.parent.data = snap.Clone()
	return nil
}

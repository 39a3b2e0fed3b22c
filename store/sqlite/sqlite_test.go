package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var seedTime = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_EmptyLoad(t *testing.T) {
	store := newTestStore(t)

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestStore_ReplaceAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed := gym.DefaultSeed(seedTime)

	require.NoError(t, store.Replace(ctx, seed))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Customers, 2)
	require.Len(t, snap.Classes, 3)
	assert.Len(t, snap.Transactions, len(seed.Transactions))

	john := snap.Customers[0]
	assert.Equal(t, "John Smith", john.Name)
	assert.Equal(t, "2025-01-15", john.EndDate.String())
	assert.Equal(t, map[gym.ClassID]int{"1": 12, "2": 8}, john.ClassSessions)
	assert.Equal(t, "150", john.SubscriptionFee.String())

	assert.Equal(t, "Brazilian Jiu-Jitsu", snap.Classes[0].Name)
	assert.Equal(t, seed.Transactions[0].ID, snap.Transactions[0].ID)
	assert.True(t, seed.Transactions[0].CreatedAt.Equal(snap.Transactions[0].CreatedAt))
}

func TestStore_ReplaceClearsPreviousData(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendance(ctx, []gym.AttendanceRecord{
		{ID: "a1", CustomerID: "1", ClassID: "1", Timestamp: seedTime},
	}))
	require.NoError(t, store.Replace(ctx, gym.Snapshot{}))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, snap.IsEmpty())
}

func TestStore_AttendanceKeepsInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AppendAttendance(ctx, []gym.AttendanceRecord{
		{ID: "late", CustomerID: "1", ClassID: "1", Timestamp: seedTime.Add(time.Hour)},
		{ID: "early", CustomerID: "1", Timestamp: seedTime},
	}))

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snap.AttendanceRecords, 2)
	assert.Equal(t, gym.RecordID("late"), snap.AttendanceRecords[0].ID)
	assert.Equal(t, gym.ClassID(""), snap.AttendanceRecords[1].ClassID, "class is optional")
	assert.True(t, seedTime.Equal(snap.AttendanceRecords[1].Timestamp))
}

func TestStore_DuplicateIDRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	tx := gym.SessionTransaction{
		ID: "t1", CustomerID: "1", Source: gym.SourceDropIn, Type: gym.TxTopUp,
		Delta: 2, BalanceAfter: 2, CreatedAt: seedTime,
	}

	require.NoError(t, store.AppendTransactions(ctx, []gym.SessionTransaction{tx}))
	err := store.AppendTransactions(ctx, []gym.SessionTransaction{tx})
	assert.ErrorIs(t, err, sqlite.ErrDuplicateID)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestStore_WithTxRollback(t *testing.T) {
	// GIVEN: A seeded store
	// WHEN: A transaction saves customers and appends attendance, then fails
	// THEN: Nothing from the transaction is visible

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Replace(ctx, gym.DefaultSeed(seedTime)))

	boom := errors.New("boom")
	err := store.WithTx(ctx, func(s gym.Store) error {
		if err := s.SaveCustomers(ctx, []gym.Customer{}); err != nil {
			return err
		}
		if err := s.AppendAttendance(ctx, []gym.AttendanceRecord{{ID: "a1", CustomerID: "1", Timestamp: seedTime}}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	snap, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Customers, 2)
	assert.Empty(t, snap.AttendanceRecords)
}

func TestStore_RepositoryRoundTrip(t *testing.T) {
	// GIVEN: A repository over a SQLite store
	// WHEN: Checking in and topping up, then reopening the repository
	// THEN: Balances, attendance and ledger come back intact

	store := newTestStore(t)
	ctx := context.Background()
	clock := func() time.Time { return seedTime }

	repo, err := gym.NewRepository(ctx, store, gym.WithClock(clock), gym.WithSeed(gym.DefaultSeed))
	require.NoError(t, err)
	eng := gym.NewEngine(repo, zerolog.Nop())

	_, err = eng.CheckIn(ctx, "2", "1")
	require.NoError(t, err)
	_, err = eng.AddSessions(ctx, "2", 4, "")
	require.NoError(t, err)
	_, err = eng.Freeze(ctx, "1", gym.MustParseDate("2025-01-01"), gym.MustParseDate("2025-01-20"), "travel")
	require.NoError(t, err)

	reopened, err := gym.NewRepository(ctx, store, gym.WithClock(clock), gym.WithSeed(gym.DefaultSeed))
	require.NoError(t, err)

	sarah, err := reopened.Customer("2")
	require.NoError(t, err)
	assert.Equal(t, 23, sarah.ClassSessions["1"])
	assert.Equal(t, 4, sarah.DropInSessions)
	assert.Len(t, sarah.AttendanceLog, 1)

	john, err := reopened.Customer("1")
	require.NoError(t, err)
	assert.Equal(t, gym.StatusFrozen, john.Status)
	require.Len(t, john.FreezePeriods, 1)
	assert.Equal(t, "travel", john.FreezePeriods[0].Reason)

	txs := reopened.Transactions("2")
	assert.Equal(t, 23, gym.LedgerBalance(txs, "2", gym.SourceClass, "1"))
	assert.Equal(t, 4, gym.LedgerBalance(txs, "2", gym.SourceDropIn, ""))
	assert.Len(t, reopened.Attendance(gym.AttendanceFilter{}), 1)
}

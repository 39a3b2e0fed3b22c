package gym_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/gym/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.January, 10, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

var zerologNop = zerolog.Nop()

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fixture struct {
	repo  *gym.Repository
	eng   *gym.Engine
	store gym.Store
}

func newFixture(t *testing.T, snap gym.Snapshot) *fixture {
	t.Helper()
	mem := store.NewTxMemory()
	require.NoError(t, mem.Replace(context.Background(), snap))
	return newFixtureWithStore(t, mem)
}

func newFixtureWithStore(t *testing.T, s gym.Store) *fixture {
	t.Helper()
	repo, err := gym.NewRepository(context.Background(), s,
		gym.WithClock(fixedClock),
		gym.WithIDGenerator(sequentialIDs()),
	)
	require.NoError(t, err)
	return &fixture{repo: repo, eng: gym.NewEngine(repo, zerologNop), store: s}
}

func testClass(id gym.ClassID, perVisit int) gym.Class {
	return gym.Class{
		ID:               id,
		Name:             "Class " + string(id),
		Instructor:       "Coach",
		Capacity:         20,
		SessionsPerVisit: perVisit,
		MonthlyFee:       decimal.NewFromInt(100),
		DropInFee:        decimal.NewFromInt(20),
	}
}

func testCustomer(id gym.CustomerID) gym.Customer {
	return gym.Customer{
		ID:              id,
		Name:            "Customer " + string(id),
		Phone:           "555-01" + string(id),
		Email:           string(id) + "@example.com",
		MembershipType:  "Monthly Basic",
		SubscriptionFee: decimal.NewFromInt(100),
		StartDate:       gym.MustParseDate("2025-01-01"),
		EndDate:         gym.MustParseDate("2025-06-01"),
		Status:          gym.StatusActive,
		EnrolledClasses: []gym.ClassID{},
		ClassSessions:   map[gym.ClassID]int{},
	}
}

func snapshotOf(customers []gym.Customer, classes ...gym.Class) gym.Snapshot {
	return gym.Snapshot{Customers: customers, Classes: classes}
}

func mustCustomer(t *testing.T, repo *gym.Repository, id gym.CustomerID) gym.Customer {
	t.Helper()
	c, err := repo.Customer(id)
	require.NoError(t, err)
	return c
}

// =============================================================================
// CHECK-IN SCENARIOS
// =============================================================================

func TestCheckIn_ClassBalanceThenInsufficient(t *testing.T) {
	// GIVEN: Customer enrolled in class 1 with one class session, no drop-in
	// WHEN: Checking in twice
	// THEN: First succeeds from the class balance, second fails and changes nothing

	c := testCustomer("c1")
	c.EnrolledClasses = []gym.ClassID{"1"}
	c.ClassSessions = map[gym.ClassID]int{"1": 1}
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))
	ctx := context.Background()

	res, err := f.eng.CheckIn(ctx, "c1", "1")
	require.NoError(t, err)
	assert.Equal(t, gym.SourceClass, res.Source)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, "Welcome Customer c1 to Class 1! 0 sessions remaining for this class.", res.Message)
	assert.Equal(t, gym.ClassID("1"), res.Record.ClassID)
	assert.Equal(t, testNow, res.Record.Timestamp)

	_, err = f.eng.CheckIn(ctx, "c1", "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, gym.ErrInsufficientSessions)

	var short *gym.InsufficientSessionsError
	require.ErrorAs(t, err, &short)
	assert.Equal(t, 1, short.Required)
	assert.Equal(t, 0, short.ClassAvailable)
	assert.Equal(t, 0, short.DropInAvailable)
	assert.True(t, short.Enrolled)

	after := mustCustomer(t, f.repo, "c1")
	assert.Equal(t, 0, after.ClassSessions["1"])
	assert.Len(t, after.AttendanceLog, 1)
	assert.Len(t, f.repo.Attendance(gym.AttendanceFilter{}), 1)
}

func TestCheckIn_DropInAutoEnrolls(t *testing.T) {
	// GIVEN: Customer with 2 drop-in sessions, not enrolled in class 2
	// WHEN: Checking in to class 2
	// THEN: Drop-in pays, customer becomes enrolled, class balances untouched

	c := testCustomer("c1")
	c.DropInSessions = 2
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("2", 1)))

	res, err := f.eng.CheckIn(context.Background(), "c1", "2")
	require.NoError(t, err)
	assert.Equal(t, gym.SourceDropIn, res.Source)
	assert.Equal(t, 1, res.Remaining)
	assert.Contains(t, res.Message, "Welcome Customer c1 to Class 2!")

	after := mustCustomer(t, f.repo, "c1")
	assert.Equal(t, 1, after.DropInSessions)
	assert.Contains(t, after.EnrolledClasses, gym.ClassID("2"))
	assert.Empty(t, after.ClassSessions)
}

func TestCheckIn_FallsBackToDropInWhenClassBalanceShort(t *testing.T) {
	// GIVEN: Class costs 2 per visit, customer has 1 class session and 3 drop-in
	// WHEN: Checking in
	// THEN: Drop-in pays the full cost, class balance is left alone

	c := testCustomer("c1")
	c.EnrolledClasses = []gym.ClassID{"1"}
	c.ClassSessions = map[gym.ClassID]int{"1": 1}
	c.DropInSessions = 3
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 2)))

	res, err := f.eng.CheckIn(context.Background(), "c1", "1")
	require.NoError(t, err)
	assert.Equal(t, gym.SourceDropIn, res.Source)
	assert.Equal(t, 2, res.Debited)

	after := mustCustomer(t, f.repo, "c1")
	assert.Equal(t, 1, after.ClassSessions["1"])
	assert.Equal(t, 1, after.DropInSessions)
}

func TestCheckIn_ClassBalanceIgnoredWhenNotEnrolled(t *testing.T) {
	// GIVEN: A class balance exists but the class is not in EnrolledClasses
	// WHEN: Checking in with no drop-in sessions
	// THEN: Rejected as insufficient; the stray balance is not used

	c := testCustomer("c1")
	c.ClassSessions = map[gym.ClassID]int{"1": 5}
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))

	_, err := f.eng.CheckIn(context.Background(), "c1", "1")

	var short *gym.InsufficientSessionsError
	require.ErrorAs(t, err, &short)
	assert.False(t, short.Enrolled)
	assert.Equal(t, 5, short.ClassAvailable)
	assert.Equal(t, 5, mustCustomer(t, f.repo, "c1").ClassSessions["1"])
}

func TestCheckIn_ZeroSessionsPerVisitDefaultsToOne(t *testing.T) {
	c := testCustomer("c1")
	c.EnrolledClasses = []gym.ClassID{"1"}
	c.ClassSessions = map[gym.ClassID]int{"1": 3}
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 0)))

	res, err := f.eng.CheckIn(context.Background(), "c1", "1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Debited)
	assert.Equal(t, 2, res.Remaining)
}

func TestCheckIn_DecisionOrder(t *testing.T) {
	expired := testCustomer("expired")
	expired.Status = gym.StatusExpired
	frozen := testCustomer("frozen")
	frozen.Status = gym.StatusFrozen
	active := testCustomer("active")
	active.DropInSessions = 10

	f := newFixture(t, snapshotOf([]gym.Customer{expired, frozen, active}, testClass("1", 1)))

	tests := []struct {
		name     string
		customer gym.CustomerID
		class    gym.ClassID
		want     error
	}{
		{"missing customer", "nobody", "1", gym.ErrCustomerNotFound},
		{"expired before class lookup", "expired", "missing", gym.ErrMembershipExpired},
		{"frozen before class lookup", "frozen", "", gym.ErrMembershipFrozen},
		{"class required", "active", "", gym.ErrClassRequired},
		{"class not found", "active", "missing", gym.ErrClassNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.eng.CheckIn(context.Background(), tt.customer, tt.class)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, gym.IsClientError(err))
		})
	}

	assert.Empty(t, f.repo.Attendance(gym.AttendanceFilter{}))
	assert.Equal(t, 10, mustCustomer(t, f.repo, "active").DropInSessions)
}

func TestCheckIn_RepeatedFailureNeverMutates(t *testing.T) {
	c := testCustomer("c1")
	c.EnrolledClasses = []gym.ClassID{"1"}
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))
	before := f.repo.Snapshot()

	for i := 0; i < 5; i++ {
		_, err := f.eng.CheckIn(context.Background(), "c1", "1")
		assert.ErrorIs(t, err, gym.ErrInsufficientSessions)
	}

	assert.Equal(t, before, f.repo.Snapshot())
}

func TestCheckIn_WritesLedgerEntry(t *testing.T) {
	c := testCustomer("c1")
	c.EnrolledClasses = []gym.ClassID{"1"}
	c.ClassSessions = map[gym.ClassID]int{"1": 4}
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))

	res, err := f.eng.CheckIn(context.Background(), "c1", "1")
	require.NoError(t, err)

	txs := f.repo.Transactions("c1")
	require.Len(t, txs, 1)
	assert.Equal(t, gym.TxCheckIn, txs[0].Type)
	assert.Equal(t, gym.SourceClass, txs[0].Source)
	assert.Equal(t, -1, txs[0].Delta)
	assert.Equal(t, 3, txs[0].BalanceAfter)
	assert.Equal(t, string(res.Record.ID), txs[0].ReferenceID)

	stored, err := f.store.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, stored.Transactions, 1)
	assert.Len(t, stored.AttendanceRecords, 1)
}

func TestChooseDebit(t *testing.T) {
	class := testClass("1", 2)

	tests := []struct {
		name     string
		enrolled bool
		classBal int
		dropIn   int
		want     gym.Source
		wantErr  bool
	}{
		{"enrolled with enough class balance", true, 2, 5, gym.SourceClass, false},
		{"enrolled, class short, drop-in covers", true, 1, 2, gym.SourceDropIn, false},
		{"not enrolled, drop-in covers", false, 9, 2, gym.SourceDropIn, false},
		{"nothing covers", true, 1, 1, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testCustomer("c1")
			c.ClassSessions[class.ID] = tt.classBal
			c.DropInSessions = tt.dropIn
			if tt.enrolled {
				c.EnrolledClasses = []gym.ClassID{class.ID}
			}

			d, err := gym.ChooseDebit(&c, &class)
			if tt.wantErr {
				assert.ErrorIs(t, err, gym.ErrInsufficientSessions)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Source)
			assert.Equal(t, 2, d.Amount)
		})
	}
}

// =============================================================================
// TOP-UP
// =============================================================================

func TestAddSessions_DropInDoesNotEnroll(t *testing.T) {
	c := testCustomer("c1")
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))

	res, err := f.eng.AddSessions(context.Background(), "c1", 5, "")
	require.NoError(t, err)
	assert.Equal(t, gym.SourceDropIn, res.Type)
	assert.Equal(t, 5, res.Added)
	assert.Equal(t, 5, res.Balance)

	after := mustCustomer(t, f.repo, "c1")
	assert.Equal(t, 5, after.DropInSessions)
	assert.Empty(t, after.EnrolledClasses)
}

func TestAddSessions_ClassTopUpEnrolls(t *testing.T) {
	c := testCustomer("c1")
	f := newFixture(t, snapshotOf([]gym.Customer{c}, testClass("1", 1)))

	res, err := f.eng.AddSessions(context.Background(), "c1", 8, "1")
	require.NoError(t, err)
	assert.Equal(t, gym.SourceClass, res.Type)
	assert.Equal(t, gym.ClassID("1"), res.ClassID)
	assert.Equal(t, "Added 8 sessions for Class 1", res.Message)

	after := mustCustomer(t, f.repo, "c1")
	assert.Equal(t, 8, after.ClassSessions["1"])
	assert.Equal(t, []gym.ClassID{"1"}, after.EnrolledClasses)
}

func TestAddSessions_Rejections(t *testing.T) {
	f := newFixture(t, snapshotOf([]gym.Customer{testCustomer("c1")}, testClass("1", 1)))
	ctx := context.Background()

	_, err := f.eng.AddSessions(ctx, "nobody", 0, "")
	assert.ErrorIs(t, err, gym.ErrCustomerNotFound, "customer is checked before count")

	_, err = f.eng.AddSessions(ctx, "c1", 0, "")
	assert.ErrorIs(t, err, gym.ErrInvalidSessionCount)

	_, err = f.eng.AddSessions(ctx, "c1", -3, "1")
	assert.ErrorIs(t, err, gym.ErrInvalidSessionCount)

	_, err = f.eng.AddSessions(ctx, "c1", 2, "missing")
	assert.ErrorIs(t, err, gym.ErrClassNotFound)

	assert.Empty(t, f.repo.Transactions("c1"))
}

func TestAddSessions_BalanceLimit(t *testing.T) {
	// GIVEN: A customer whose balances are already at the largest int
	// WHEN: Topping up either balance again
	// THEN: The top-up is rejected and nothing changes

	f := newFixture(t, snapshotOf([]gym.Customer{testCustomer("c1")}, testClass("1", 1)))
	ctx := context.Background()

	largest, err := gym.ParseSessionCount(strconv.Itoa(math.MaxInt))
	require.NoError(t, err)

	tests := []struct {
		name    string
		classID gym.ClassID
	}{
		{"drop-in", ""},
		{"class", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.eng.AddSessions(ctx, "c1", largest, tt.classID)
			require.NoError(t, err)
			before := len(f.repo.Transactions("c1"))

			_, err = f.eng.AddSessions(ctx, "c1", 2, tt.classID)
			assert.ErrorIs(t, err, gym.ErrInvalidSessionCount)

			c := mustCustomer(t, f.repo, "c1")
			assert.GreaterOrEqual(t, c.DropInSessions, 0)
			for _, n := range c.ClassSessions {
				assert.GreaterOrEqual(t, n, 0)
			}
			assert.Len(t, f.repo.Transactions("c1"), before)
		})
	}
}

func TestParseSessionCount(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"5", 5, false},
		{" 12 ", 12, false},
		{"0", 0, true},
		{"-2", 0, true},
		{"2.5", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := gym.ParseSessionCount(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, gym.ErrInvalidSessionCount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestBalancesNeverNegativeAndLedgerReplays(t *testing.T) {
	// GIVEN: A customer starting from zero balances
	// WHEN: Running a mixed sequence of top-ups and check-ins
	// THEN: No balance goes negative, enrollment only grows, and replaying
	//       the ledger reproduces every stored balance

	f := newFixture(t, snapshotOf(
		[]gym.Customer{testCustomer("c1")},
		testClass("1", 1), testClass("2", 2), testClass("3", 3),
	))
	ctx := context.Background()

	ops := []func() error{
		func() error { _, err := f.eng.AddSessions(ctx, "c1", 2, "1"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "1"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "2"); return err },
		func() error { _, err := f.eng.AddSessions(ctx, "c1", 3, ""); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "2"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "3"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "1"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "1"); return err },
		func() error { _, err := f.eng.CheckIn(ctx, "c1", "3"); return err },
	}

	enrolled := map[gym.ClassID]bool{}
	for i, op := range ops {
		err := op()
		if err != nil {
			require.True(t, gym.IsClientError(err), "op %d: %v", i, err)
		}

		c := mustCustomer(t, f.repo, "c1")
		assert.GreaterOrEqual(t, c.DropInSessions, 0, "op %d", i)
		for id, n := range c.ClassSessions {
			assert.GreaterOrEqual(t, n, 0, "op %d class %s", i, id)
		}
		for id := range enrolled {
			assert.True(t, c.IsEnrolled(id), "op %d dropped enrollment in %s", i, id)
		}
		for _, id := range c.EnrolledClasses {
			enrolled[id] = true
		}
	}

	c := mustCustomer(t, f.repo, "c1")
	txs := f.repo.Transactions("c1")
	assert.Equal(t, c.DropInSessions, gym.LedgerBalance(txs, "c1", gym.SourceDropIn, ""))
	for id, n := range c.ClassSessions {
		assert.Equal(t, n, gym.LedgerBalance(txs, "c1", gym.SourceClass, id))
	}
}

// =============================================================================
// ATOMICITY
// =============================================================================

var errDiskFull = errors.New("disk full")

// failingStore rolls back a transaction when the named collection is written.
type failingStore struct {
	*store.TxMemory
	failOn gym.Collection
}

func (f *failingStore) WithTx(ctx context.Context, fn func(gym.Store) error) error {
	return f.TxMemory.WithTx(ctx, func(s gym.Store) error {
		return fn(&failingView{Store: s, failOn: f.failOn})
	})
}

type failingView struct {
	gym.Store
	failOn gym.Collection
}

func (v *failingView) AppendAttendance(ctx context.Context, records []gym.AttendanceRecord) error {
	if v.failOn == gym.CollectionAttendance {
		return errDiskFull
	}
	return v.Store.AppendAttendance(ctx, records)
}

func (v *failingView) AppendTransactions(ctx context.Context, txs []gym.SessionTransaction) error {
	if v.failOn == gym.CollectionTransactions {
		return errDiskFull
	}
	return v.Store.AppendTransactions(ctx, txs)
}

func TestCheckIn_StoreFailureLeavesEverythingUnchanged(t *testing.T) {
	for _, coll := range []gym.Collection{gym.CollectionAttendance, gym.CollectionTransactions} {
		t.Run(string(coll), func(t *testing.T) {
			c := testCustomer("c1")
			c.EnrolledClasses = []gym.ClassID{"1"}
			c.ClassSessions = map[gym.ClassID]int{"1": 2}

			fs := &failingStore{TxMemory: store.NewTxMemory(), failOn: coll}
			require.NoError(t, fs.Replace(context.Background(), snapshotOf([]gym.Customer{c}, testClass("1", 1))))
			f := newFixtureWithStore(t, fs)

			storedBefore, err := fs.Load(context.Background())
			require.NoError(t, err)
			memBefore := f.repo.Snapshot()

			_, err = f.eng.CheckIn(context.Background(), "c1", "1")
			require.Error(t, err)
			assert.ErrorIs(t, err, errDiskFull)
			assert.Equal(t, gym.CodeInternal, gym.CodeOf(err))
			assert.False(t, gym.IsClientError(err))

			assert.Equal(t, memBefore, f.repo.Snapshot())
			storedAfter, err := fs.Load(context.Background())
			require.NoError(t, err)
			assert.Equal(t, storedBefore, storedAfter)
		})
	}
}

/*
repository.go - Authoritative in-memory collections

PURPOSE:
  The Repository owns customers, classes, attendance and the session ledger
  for the lifetime of the process. It is built once at startup, reads the
  store once, and is the single writer of persisted state.

MUTATION CONTRACT:
  Every mutation runs against a copy of the current state:
    1. copy state
    2. apply the change to the copy (may fail, nothing written yet)
    3. write the touched collections to the store (atomically when the
       store is a TxStore)
    4. swap the copy in
  A failure at step 2 or 3 leaves memory and store as they were.

READS:
  Reads return deep copies. Callers can't reach into repository state.

SEE ALSO:
  - engine.go: check-in/top-up mutations
  - freeze.go: freeze/unfreeze mutations
  - store.go: persistence interface
*/
package gym

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT TYPES
// =============================================================================

// NewCustomer is the registration input.
type NewCustomer struct {
	Name            string
	Phone           string
	Email           string
	PhotoURL        string
	MembershipType  string
	SubscriptionFee decimal.Decimal
	StartDate       Date
	EndDate         Date
}

// Validate checks required fields. Catalog defaults are applied before
// this runs, so EndDate may already be derived.
func (n NewCustomer) Validate() error {
	switch {
	case strings.TrimSpace(n.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	case strings.TrimSpace(n.Phone) == "":
		return fmt.Errorf("%w: phone is required", ErrInvalidCustomer)
	case strings.TrimSpace(n.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidCustomer)
	case n.StartDate.IsZero():
		return fmt.Errorf("%w: start date is required", ErrInvalidCustomer)
	case n.EndDate.IsZero():
		return fmt.Errorf("%w: end date is required", ErrInvalidCustomer)
	case n.SubscriptionFee.IsNegative():
		return fmt.Errorf("%w: subscription fee cannot be negative", ErrInvalidCustomer)
	}
	return nil
}

// withCatalogDefaults fills end date and fee from a preset membership.
func (n NewCustomer) withCatalogDefaults() NewCustomer {
	if strings.TrimSpace(n.MembershipType) == "" {
		n.MembershipType = CustomMembership
	}
	plan, ok := LookupPlan(n.MembershipType)
	if !ok || plan.IsCustom() {
		return n
	}
	n.MembershipType = plan.Name
	if n.EndDate.IsZero() && !n.StartDate.IsZero() {
		n.EndDate = plan.EndDateFrom(n.StartDate)
	}
	if n.SubscriptionFee.IsZero() {
		n.SubscriptionFee = plan.Fee
	}
	return n
}

// CustomerUpdate edits display attributes. Status, balances, enrollment
// and history only move through engine operations.
type CustomerUpdate struct {
	Name            *string
	Phone           *string
	Email           *string
	PhotoURL        *string
	MembershipType  *string
	SubscriptionFee *decimal.Decimal
	StartDate       *Date
	EndDate         *Date
}

func (u CustomerUpdate) apply(c *Customer) error {
	for _, f := range []struct {
		name string
		val  *string
		dst  *string
	}{
		{"name", u.Name, &c.Name},
		{"phone", u.Phone, &c.Phone},
		{"email", u.Email, &c.Email},
	} {
		if f.val == nil {
			continue
		}
		v := strings.TrimSpace(*f.val)
		if v == "" {
			return fmt.Errorf("%w: %s cannot be empty", ErrInvalidCustomer, f.name)
		}
		*f.dst = v
	}
	if u.PhotoURL != nil {
		c.PhotoURL = *u.PhotoURL
	}
	if u.MembershipType != nil {
		c.MembershipType = strings.TrimSpace(*u.MembershipType)
	}
	if u.SubscriptionFee != nil {
		if u.SubscriptionFee.IsNegative() {
			return fmt.Errorf("%w: subscription fee cannot be negative", ErrInvalidCustomer)
		}
		c.SubscriptionFee = *u.SubscriptionFee
	}
	if u.StartDate != nil {
		c.StartDate = *u.StartDate
	}
	if u.EndDate != nil {
		c.EndDate = *u.EndDate
	}
	return nil
}

// NewClass is the class creation input. SessionsPerVisit 0 means the default.
type NewClass struct {
	Name             string
	Instructor       string
	Schedule         string
	Description      string
	Capacity         int
	SessionsPerVisit int
	MonthlyFee       decimal.Decimal
	DropInFee        decimal.Decimal
}

func (n NewClass) Validate() error {
	switch {
	case strings.TrimSpace(n.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidClass)
	case n.Capacity < 0:
		return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidClass)
	case n.SessionsPerVisit < 0:
		return fmt.Errorf("%w: sessions per visit cannot be negative", ErrInvalidClass)
	case n.MonthlyFee.IsNegative() || n.DropInFee.IsNegative():
		return fmt.Errorf("%w: fees cannot be negative", ErrInvalidClass)
	}
	return nil
}

// ClassUpdate edits a class. EnrolledCount is only ever changed here.
type ClassUpdate struct {
	Name             *string
	Instructor       *string
	Schedule         *string
	Description      *string
	Capacity         *int
	EnrolledCount    *int
	SessionsPerVisit *int
	MonthlyFee       *decimal.Decimal
	DropInFee        *decimal.Decimal
}

func (u ClassUpdate) apply(c *Class) error {
	if u.Name != nil {
		name := strings.TrimSpace(*u.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidClass)
		}
		c.Name = name
	}
	if u.Instructor != nil {
		c.Instructor = *u.Instructor
	}
	if u.Schedule != nil {
		c.Schedule = *u.Schedule
	}
	if u.Description != nil {
		c.Description = *u.Description
	}
	if u.Capacity != nil {
		if *u.Capacity < 0 {
			return fmt.Errorf("%w: capacity cannot be negative", ErrInvalidClass)
		}
		c.Capacity = *u.Capacity
	}
	if u.EnrolledCount != nil {
		if *u.EnrolledCount < 0 {
			return fmt.Errorf("%w: enrolled count cannot be negative", ErrInvalidClass)
		}
		c.EnrolledCount = *u.EnrolledCount
	}
	if u.SessionsPerVisit != nil {
		if *u.SessionsPerVisit < 0 {
			return fmt.Errorf("%w: sessions per visit cannot be negative", ErrInvalidClass)
		}
		c.SessionsPerVisit = *u.SessionsPerVisit
	}
	if u.MonthlyFee != nil {
		c.MonthlyFee = *u.MonthlyFee
	}
	if u.DropInFee != nil {
		c.DropInFee = *u.DropInFee
	}
	if c.MonthlyFee.IsNegative() || c.DropInFee.IsNegative() {
		return fmt.Errorf("%w: fees cannot be negative", ErrInvalidClass)
	}
	c.normalize()
	return nil
}

// =============================================================================
// FILTERS
// =============================================================================

// LowSessionThreshold marks an active customer as running low.
const LowSessionThreshold = 5

type StatusFilter string

const (
	FilterAll         StatusFilter = "all"
	FilterActive      StatusFilter = "active"
	FilterFrozen      StatusFilter = "frozen"
	FilterExpired     StatusFilter = "expired"
	FilterLowSessions StatusFilter = "low-sessions"
)

// CustomerFilter narrows Customers. Zero value matches everyone.
type CustomerFilter struct {
	Search string
	Status StatusFilter
}

// IsLowOnSessions reports an active customer with fewer than
// LowSessionThreshold sessions across all balances.
func IsLowOnSessions(c *Customer) bool {
	return c.Status == StatusActive && c.TotalSessions() < LowSessionThreshold
}

func (f CustomerFilter) matches(c *Customer) bool {
	if term := strings.TrimSpace(f.Search); term != "" {
		lower := strings.ToLower(term)
		if !strings.Contains(strings.ToLower(c.Name), lower) &&
			!strings.Contains(c.Phone, term) &&
			!strings.Contains(strings.ToLower(c.Email), lower) &&
			!strings.Contains(string(c.ID), term) {
			return false
		}
	}
	switch f.Status {
	case "", FilterAll:
		return true
	case FilterLowSessions:
		return IsLowOnSessions(c)
	default:
		return c.Status == Status(f.Status)
	}
}

// AttendanceFilter narrows Attendance. Zero value matches every record.
type AttendanceFilter struct {
	CustomerID CustomerID
	ClassID    ClassID
	Day        Date
}

func (f AttendanceFilter) matches(r AttendanceRecord) bool {
	if f.CustomerID != "" && r.CustomerID != f.CustomerID {
		return false
	}
	if f.ClassID != "" && r.ClassID != f.ClassID {
		return false
	}
	if !f.Day.IsZero() && !DateOf(r.Timestamp).Equal(f.Day) {
		return false
	}
	return true
}

// =============================================================================
// REPOSITORY
// =============================================================================

type Repository struct {
	mu    sync.RWMutex
	store Store
	log   zerolog.Logger
	now   func() time.Time
	newID func() string
	seed  func(now time.Time) Snapshot

	st state
}

// Option configures a Repository.
type Option func(*Repository)

func WithLogger(l zerolog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithClock replaces time.Now. Tests use it to pin "today".
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(fn func() string) Option {
	return func(r *Repository) { r.newID = fn }
}

// WithSeed installs seed data when the store is empty on startup.
func WithSeed(seed func(now time.Time) Snapshot) Option {
	return func(r *Repository) { r.seed = seed }
}

// NewRepository loads the store into memory.
func NewRepository(ctx context.Context, store Store, opts ...Option) (*Repository, error) {
	r := &Repository{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	if snap.IsEmpty() && r.seed != nil {
		snap = r.seed(r.now())
		if err := store.Replace(ctx, snap); err != nil {
			return nil, fmt.Errorf("failed to seed store: %w", err)
		}
		r.log.Info().
			Int("customers", len(snap.Customers)).
			Int("classes", len(snap.Classes)).
			Msg("seeded empty store")
	}

	r.st = newState(snap)
	return r, nil
}

// Reset replaces every collection with fresh seed data (or nothing when no
// seed is configured).
func (r *Repository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{}
	if r.seed != nil {
		snap = r.seed(r.now())
	}
	if err := r.store.Replace(ctx, snap); err != nil {
		return fmt.Errorf("failed to reset store: %w", err)
	}
	r.st = newState(snap)
	r.log.Warn().Msg("repository reset")
	return nil
}

// Now is the repository clock.
func (r *Repository) Now() time.Time {
	return r.now()
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// AddCustomer registers a customer. New customers are active with no
// sessions; balances come from AddSessions.
func (r *Repository) AddCustomer(ctx context.Context, in NewCustomer) (Customer, error) {
	in = in.withCatalogDefaults()
	if err := in.Validate(); err != nil {
		return Customer{}, err
	}

	var created Customer
	err := r.mutate(ctx, func(st *state) (change, error) {
		c := Customer{
			ID:              CustomerID(r.newID()),
			Name:            strings.TrimSpace(in.Name),
			Phone:           strings.TrimSpace(in.Phone),
			Email:           strings.TrimSpace(in.Email),
			PhotoURL:        in.PhotoURL,
			MembershipType:  in.MembershipType,
			SubscriptionFee: in.SubscriptionFee,
			StartDate:       in.StartDate,
			EndDate:         in.EndDate,
			Status:          StatusActive,
			CreatedAt:       r.now().UTC(),
		}
		c.normalize()
		st.customers = append(st.customers, c)
		created = c.Clone()
		return change{customers: true}, nil
	})
	if err != nil {
		return Customer{}, err
	}
	r.log.Info().Str("customer_id", string(created.ID)).Str("name", created.Name).Msg("customer registered")
	return created, nil
}

func (r *Repository) UpdateCustomer(ctx context.Context, id CustomerID, u CustomerUpdate) (Customer, error) {
	var updated Customer
	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.customer(id)
		if c == nil {
			return change{}, ErrCustomerNotFound
		}
		if err := u.apply(c); err != nil {
			return change{}, err
		}
		updated = c.Clone()
		return change{customers: true}, nil
	})
	return updated, err
}

// DeleteCustomer removes the customer. Their attendance records stay in the
// global log.
func (r *Repository) DeleteCustomer(ctx context.Context, id CustomerID) error {
	err := r.mutate(ctx, func(st *state) (change, error) {
		for i := range st.customers {
			if st.customers[i].ID == id {
				st.customers = append(st.customers[:i], st.customers[i+1:]...)
				return change{customers: true}, nil
			}
		}
		return change{}, ErrCustomerNotFound
	})
	if err == nil {
		r.log.Info().Str("customer_id", string(id)).Msg("customer deleted")
	}
	return err
}

func (r *Repository) Customer(id CustomerID) (Customer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.st.customer(id)
	if c == nil {
		return Customer{}, ErrCustomerNotFound
	}
	return c.Clone(), nil
}

// Customers returns matching customers in registration order.
func (r *Repository) Customers(f CustomerFilter) []Customer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Customer{}
	for i := range r.st.customers {
		if f.matches(&r.st.customers[i]) {
			out = append(out, r.st.customers[i].Clone())
		}
	}
	return out
}

// =============================================================================
// CLASSES
// =============================================================================

func (r *Repository) AddClass(ctx context.Context, in NewClass) (Class, error) {
	if err := in.Validate(); err != nil {
		return Class{}, err
	}
	var created Class
	err := r.mutate(ctx, func(st *state) (change, error) {
		c := Class{
			ID:               ClassID(r.newID()),
			Name:             strings.TrimSpace(in.Name),
			Instructor:       in.Instructor,
			Schedule:         in.Schedule,
			Description:      in.Description,
			Capacity:         in.Capacity,
			EnrolledCount:    0,
			SessionsPerVisit: in.SessionsPerVisit,
			MonthlyFee:       in.MonthlyFee,
			DropInFee:        in.DropInFee,
		}
		c.normalize()
		st.classes = append(st.classes, c)
		created = c
		return change{classes: true}, nil
	})
	if err != nil {
		return Class{}, err
	}
	r.log.Info().Str("class_id", string(created.ID)).Str("name", created.Name).Msg("class created")
	return created, nil
}

func (r *Repository) UpdateClass(ctx context.Context, id ClassID, u ClassUpdate) (Class, error) {
	var updated Class
	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.class(id)
		if c == nil {
			return change{}, ErrClassNotFound
		}
		if err := u.apply(c); err != nil {
			return change{}, err
		}
		updated = *c
		return change{classes: true}, nil
	})
	return updated, err
}

// DeleteClass removes the class. Customers keep it in EnrolledClasses and
// ClassSessions; enrollment never shrinks.
func (r *Repository) DeleteClass(ctx context.Context, id ClassID) error {
	err := r.mutate(ctx, func(st *state) (change, error) {
		for i := range st.classes {
			if st.classes[i].ID == id {
				st.classes = append(st.classes[:i], st.classes[i+1:]...)
				return change{classes: true}, nil
			}
		}
		return change{}, ErrClassNotFound
	})
	if err == nil {
		r.log.Info().Str("class_id", string(id)).Msg("class deleted")
	}
	return err
}

func (r *Repository) Class(id ClassID) (Class, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := r.st.class(id)
	if c == nil {
		return Class{}, ErrClassNotFound
	}
	return *c, nil
}

func (r *Repository) Classes() []Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Class{}, r.st.classes...)
}

// =============================================================================
// HISTORY
// =============================================================================

// Attendance returns matching records from the global log, oldest first.
func (r *Repository) Attendance(f AttendanceFilter) []AttendanceRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []AttendanceRecord{}
	for _, rec := range r.st.attendance {
		if f.matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// Transactions returns the customer's ledger entries, oldest first.
func (r *Repository) Transactions(id CustomerID) []SessionTransaction {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return TransactionsFor(r.st.transactions, id)
}

// Snapshot returns a deep copy of everything, for read-only aggregation.
func (r *Repository) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.snapshot()
}

// =============================================================================
// MUTATION PLUMBING
// =============================================================================

type state struct {
	customers    []Customer
	classes      []Class
	attendance   []AttendanceRecord
	transactions []SessionTransaction
}

func newState(snap Snapshot) state {
	snap = snap.Clone()
	for i := range snap.Customers {
		snap.Customers[i].normalize()
	}
	for i := range snap.Classes {
		snap.Classes[i].normalize()
	}
	return state{
		customers:    snap.Customers,
		classes:      snap.Classes,
		attendance:   snap.AttendanceRecords,
		transactions: snap.Transactions,
	}
}

func (s *state) snapshot() Snapshot {
	return Snapshot{
		Customers:         s.customers,
		Classes:           s.classes,
		AttendanceRecords: s.attendance,
		Transactions:      s.transactions,
	}.Clone()
}

func (s *state) customer(id CustomerID) *Customer {
	for i := range s.customers {
		if s.customers[i].ID == id {
			return &s.customers[i]
		}
	}
	return nil
}

func (s *state) class(id ClassID) *Class {
	for i := range s.classes {
		if s.classes[i].ID == id {
			return &s.classes[i]
		}
	}
	return nil
}

// change records which collections a mutation touched.
type change struct {
	customers    bool
	classes      bool
	attendance   []AttendanceRecord
	transactions []SessionTransaction
}

// mutate applies fn to a copy of state, persists, then swaps it in.
func (r *Repository) mutate(ctx context.Context, fn func(st *state) (change, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := newState(r.st.snapshot())
	ch, err := fn(&next)
	if err != nil {
		return err
	}
	if err := r.persist(ctx, &next, ch); err != nil {
		r.log.Error().Err(err).Msg("persist failed, change discarded")
		return fmt.Errorf("failed to persist change: %w", err)
	}
	r.st = next
	return nil
}

func (r *Repository) persist(ctx context.Context, next *state, ch change) error {
	write := func(s Store) error {
		if ch.customers {
			if err := s.SaveCustomers(ctx, next.customers); err != nil {
				return err
			}
		}
		if ch.classes {
			if err := s.SaveClasses(ctx, next.classes); err != nil {
				return err
			}
		}
		if len(ch.attendance) > 0 {
			if err := s.AppendAttendance(ctx, ch.attendance); err != nil {
				return err
			}
		}
		if len(ch.transactions) > 0 {
			if err := s.AppendTransactions(ctx, ch.transactions); err != nil {
				return err
			}
		}
		return nil
	}

	if txs, ok := r.store.(TxStore); ok {
		return txs.WithTx(ctx, write)
	}
	return write(r.store)
}

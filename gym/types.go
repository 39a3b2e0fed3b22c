/*
Package gym provides the session ledger and check-in engine for a
martial-arts gym.

PURPOSE:
  Customers buy sessions, either for a specific class or as a general
  drop-in pool. Attending a class consumes sessions. This package owns the
  rules for how balances move, when a membership may check in, and how
  freeze periods change membership status.

KEY CONCEPTS IN THIS FILE (types.go):
  - Customer: membership record with per-class and drop-in balances
  - Class: a class on the timetable with its per-visit session cost
  - AttendanceRecord: an immutable check-in entry
  - FreezePeriod: an immutable freeze interval in a customer's history

INVARIANTS:
  1. Balances never go negative. A debit that would overdraw is rejected
     before anything is written.
  2. Attendance records, freeze periods and session transactions are
     append-only.
  3. Enrollment only grows. No operation removes a class from
     EnrolledClasses.

SEE ALSO:
  - engine.go: check-in and top-up
  - freeze.go: freeze/unfreeze state machine
  - repository.go: authoritative in-memory collections
  - store.go: persistence interface
*/
package gym

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type ClassID string
type RecordID string
type FreezeID string

// =============================================================================
// MEMBERSHIP STATUS
// =============================================================================

type Status string

const (
	StatusActive  Status = "active"
	StatusFrozen  Status = "frozen"
	StatusExpired Status = "expired"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFrozen, StatusExpired:
		return true
	}
	return false
}

// =============================================================================
// CUSTOMER
// =============================================================================

// Customer is a gym member. JSON field names match the persisted format.
type Customer struct {
	ID              CustomerID         `json:"id"`
	Name            string             `json:"name"`
	Phone           string             `json:"phone"`
	Email           string             `json:"email"`
	PhotoURL        string             `json:"photoUrl,omitempty"`
	MembershipType  string             `json:"membershipType"`
	SubscriptionFee decimal.Decimal    `json:"subscriptionFee"`
	StartDate       Date               `json:"startDate"`
	EndDate         Date               `json:"endDate"`
	Status          Status             `json:"status"`
	EnrolledClasses []ClassID          `json:"enrolledClasses"`
	ClassSessions   map[ClassID]int    `json:"classSessions"`
	DropInSessions  int                `json:"dropInSessions"`
	AttendanceLog   []AttendanceRecord `json:"attendanceLog"`
	FreezePeriods   []FreezePeriod     `json:"freezePeriods"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// IsEnrolled reports whether the customer is enrolled in the class.
func (c *Customer) IsEnrolled(classID ClassID) bool {
	for _, id := range c.EnrolledClasses {
		if id == classID {
			return true
		}
	}
	return false
}

// ClassBalance returns the remaining sessions for a class (0 if none).
func (c *Customer) ClassBalance(classID ClassID) int {
	return c.ClassSessions[classID]
}

// TotalSessions is every class balance plus the drop-in pool.
func (c *Customer) TotalSessions() int {
	total := c.DropInSessions
	for _, n := range c.ClassSessions {
		total += n
	}
	return total
}

// enroll adds classID to EnrolledClasses if absent.
func (c *Customer) enroll(classID ClassID) {
	if !c.IsEnrolled(classID) {
		c.EnrolledClasses = append(c.EnrolledClasses, classID)
	}
}

// Clone returns a deep copy so callers can't reach repository state.
func (c Customer) Clone() Customer {
	out := c
	out.EnrolledClasses = append([]ClassID{}, c.EnrolledClasses...)
	out.ClassSessions = make(map[ClassID]int, len(c.ClassSessions))
	for k, v := range c.ClassSessions {
		out.ClassSessions[k] = v
	}
	out.AttendanceLog = append([]AttendanceRecord{}, c.AttendanceLog...)
	out.FreezePeriods = append([]FreezePeriod{}, c.FreezePeriods...)
	return out
}

// normalize fills nil collections so persisted JSON uses [] and {}.
func (c *Customer) normalize() {
	if c.EnrolledClasses == nil {
		c.EnrolledClasses = []ClassID{}
	}
	if c.ClassSessions == nil {
		c.ClassSessions = map[ClassID]int{}
	}
	if c.AttendanceLog == nil {
		c.AttendanceLog = []AttendanceRecord{}
	}
	if c.FreezePeriods == nil {
		c.FreezePeriods = []FreezePeriod{}
	}
	if c.Status == "" {
		c.Status = StatusActive
	}
}

// =============================================================================
// CLASS
// =============================================================================

// DefaultSessionsPerVisit is charged when a class has no explicit cost.
const DefaultSessionsPerVisit = 1

// Class is a class on the gym timetable.
//
// EnrolledCount is a display figure edited by the owner. It is NOT derived
// from customer enrollment.
type Class struct {
	ID               ClassID         `json:"id"`
	Name             string          `json:"name"`
	Instructor       string          `json:"instructor"`
	Schedule         string          `json:"schedule"`
	Description      string          `json:"description,omitempty"`
	Capacity         int             `json:"capacity"`
	EnrolledCount    int             `json:"enrolledCount"`
	SessionsPerVisit int             `json:"sessionsPerVisit"`
	MonthlyFee       decimal.Decimal `json:"monthlyFee"`
	DropInFee        decimal.Decimal `json:"dropInFee"`
}

// VisitCost is the number of sessions one check-in consumes.
func (c *Class) VisitCost() int {
	if c.SessionsPerVisit <= 0 {
		return DefaultSessionsPerVisit
	}
	return c.SessionsPerVisit
}

func (c *Class) normalize() {
	c.SessionsPerVisit = c.VisitCost()
}

// =============================================================================
// ATTENDANCE & FREEZE HISTORY
// =============================================================================

// AttendanceRecord is one check-in. ClassID is empty for legacy records
// that were taken without a class.
type AttendanceRecord struct {
	ID         RecordID   `json:"id"`
	CustomerID CustomerID `json:"customerId"`
	ClassID    ClassID    `json:"classId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// FreezePeriod is a recorded membership suspension. Unfreezing does not
// remove it.
type FreezePeriod struct {
	ID        FreezeID  `json:"id"`
	StartDate Date      `json:"startDate"`
	EndDate   Date      `json:"endDate"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports whether at falls inside [StartDate, EndDate].
func (f FreezePeriod) Contains(at time.Time) bool {
	return !at.Before(f.StartDate.Time) && !at.After(f.EndDate.Time)
}

// Days is the day span of the period, rounded up.
func (f FreezePeriod) Days() int {
	return DaySpan(f.StartDate, f.EndDate)
}

/*
engine.go - Check-in and session top-up

PURPOSE:
  Decides whether a customer may check in to a class, which balance pays
  for the visit, and applies the result. Also handles the owner adding
  sessions by hand.

CHECK-IN DECISION ORDER:
  Each step short-circuits with its own error:
    1. customer exists                    ErrCustomerNotFound
    2. status is not expired              ErrMembershipExpired
    3. status is not frozen               ErrMembershipFrozen
    4. class given and resolves           ErrClassRequired / ErrClassNotFound
    5. cost = class.VisitCost()
    6. pick the debit source (ChooseDebit)
         enrolled and class balance >= cost   -> class balance
         drop-in balance >= cost              -> drop-in balance
         otherwise                            InsufficientSessionsError

SIDE EFFECTS OF A CHECK-IN:
  ┌───────────────────────────────────────────────────────────────┐
  │  AttendanceRecord   global log + customer.AttendanceLog       │
  │  Balance debit      classSessions[class] or dropInSessions    │
  │  Enrollment         class added to EnrolledClasses if absent  │
  │  Ledger entry       one check_in SessionTransaction           │
  └───────────────────────────────────────────────────────────────┘
  All four land together or not at all (see repository.go).

EXAMPLE:
  eng := gym.NewEngine(repo, log)
  res, err := eng.CheckIn(ctx, "1", "2")
  if err != nil { ... }
  fmt.Println(res.Message)

SEE ALSO:
  - freeze.go: the other status-changing operations
  - ledger.go: SessionTransaction
*/
package gym

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Engine applies check-ins and top-ups to a Repository.
type Engine struct {
	repo *Repository
	log  zerolog.Logger
}

func NewEngine(repo *Repository, log zerolog.Logger) *Engine {
	return &Engine{repo: repo, log: log.With().Str("component", "engine").Logger()}
}

// Repository returns the repository the engine writes to.
func (e *Engine) Repository() *Repository {
	return e.repo
}

// =============================================================================
// DEBIT DECISION
// =============================================================================

// Debit is the balance chosen to pay for a visit.
type Debit struct {
	Source    Source
	Amount    int
	Available int
}

// ChooseDebit picks the balance that pays for one visit to class. It does
// not look at membership status; callers gate on that first.
func ChooseDebit(c *Customer, class *Class) (Debit, error) {
	cost := class.VisitCost()
	classAvailable := c.ClassBalance(class.ID)
	enrolled := c.IsEnrolled(class.ID)

	if enrolled && classAvailable >= cost {
		return Debit{Source: SourceClass, Amount: cost, Available: classAvailable}, nil
	}
	if c.DropInSessions >= cost {
		return Debit{Source: SourceDropIn, Amount: cost, Available: c.DropInSessions}, nil
	}
	return Debit{}, &InsufficientSessionsError{
		CustomerID:      c.ID,
		ClassID:         class.ID,
		ClassName:       class.Name,
		Required:        cost,
		ClassAvailable:  classAvailable,
		DropInAvailable: c.DropInSessions,
		Enrolled:        enrolled,
	}
}

// checkStatus gates an operation that needs a usable membership.
func checkStatus(c *Customer) error {
	switch c.Status {
	case StatusExpired:
		return ErrMembershipExpired
	case StatusFrozen:
		return ErrMembershipFrozen
	}
	return nil
}

// =============================================================================
// CHECK-IN
// =============================================================================

type CheckInResult struct {
	Record    AttendanceRecord
	Customer  Customer
	Class     Class
	Source    Source
	Debited   int
	Remaining int
	Message   string
}

func (e *Engine) CheckIn(ctx context.Context, customerID CustomerID, classID ClassID) (*CheckInResult, error) {
	r := e.repo
	var res CheckInResult

	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.customer(customerID)
		if c == nil {
			return change{}, ErrCustomerNotFound
		}
		if err := checkStatus(c); err != nil {
			return change{}, err
		}
		if classID == "" {
			return change{}, ErrClassRequired
		}
		class := st.class(classID)
		if class == nil {
			return change{}, ErrClassNotFound
		}

		debit, err := ChooseDebit(c, class)
		if err != nil {
			return change{}, err
		}

		now := r.now().UTC()
		rec := AttendanceRecord{
			ID:         RecordID(r.newID()),
			CustomerID: c.ID,
			ClassID:    class.ID,
			Timestamp:  now,
		}

		var remaining int
		switch debit.Source {
		case SourceClass:
			c.ClassSessions[class.ID] -= debit.Amount
			remaining = c.ClassSessions[class.ID]
		case SourceDropIn:
			c.DropInSessions -= debit.Amount
			remaining = c.DropInSessions
		}
		c.enroll(class.ID)
		c.AttendanceLog = append(c.AttendanceLog, rec)
		st.attendance = append(st.attendance, rec)

		tx := SessionTransaction{
			ID:           TransactionID(r.newID()),
			CustomerID:   c.ID,
			Source:       debit.Source,
			Type:         TxCheckIn,
			Delta:        -debit.Amount,
			BalanceAfter: remaining,
			ReferenceID:  string(rec.ID),
			CreatedAt:    now,
		}
		if debit.Source == SourceClass {
			tx.ClassID = class.ID
		}
		st.transactions = append(st.transactions, tx)

		res = CheckInResult{
			Record:    rec,
			Customer:  c.Clone(),
			Class:     *class,
			Source:    debit.Source,
			Debited:   debit.Amount,
			Remaining: remaining,
			Message:   checkInMessage(c.Name, class.Name, debit.Source, remaining),
		}
		return change{
			customers:    true,
			attendance:   []AttendanceRecord{rec},
			transactions: []SessionTransaction{tx},
		}, nil
	})
	if err != nil {
		e.log.Debug().Err(err).
			Str("customer_id", string(customerID)).
			Str("class_id", string(classID)).
			Msg("check-in rejected")
		return nil, err
	}

	e.log.Info().
		Str("customer_id", string(customerID)).
		Str("class_id", string(classID)).
		Str("source", string(res.Source)).
		Int("remaining", res.Remaining).
		Msg("checked in")
	return &res, nil
}

func checkInMessage(customer, class string, source Source, remaining int) string {
	if source == SourceDropIn {
		return fmt.Sprintf("Welcome %s to %s! Used a drop-in session, %d drop-in sessions remaining.",
			customer, class, remaining)
	}
	return fmt.Sprintf("Welcome %s to %s! %d sessions remaining for this class.", customer, class, remaining)
}

// =============================================================================
// TOP-UP
// =============================================================================

type TopUpResult struct {
	Type     Source
	ClassID  ClassID
	Added    int
	Balance  int
	Customer Customer
	Message  string
}

// ParseSessionCount parses a top-up amount typed by a user. Only positive
// whole numbers are accepted.
func ParseSessionCount(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSessionCount, s)
	}
	return n, nil
}

// AddSessions credits count sessions to the class balance, or to the
// drop-in pool when classID is empty. A class top-up also enrolls the
// customer in that class.
func (e *Engine) AddSessions(ctx context.Context, customerID CustomerID, count int, classID ClassID) (*TopUpResult, error) {
	r := e.repo
	var res TopUpResult

	err := r.mutate(ctx, func(st *state) (change, error) {
		c := st.customer(customerID)
		if c == nil {
			return change{}, ErrCustomerNotFound
		}
		if count <= 0 {
			return change{}, ErrInvalidSessionCount
		}

		tx := SessionTransaction{
			ID:         TransactionID(r.newID()),
			CustomerID: c.ID,
			Type:       TxTopUp,
			Delta:      count,
			CreatedAt:  r.now().UTC(),
		}

		if classID != "" {
			class := st.class(classID)
			if class == nil {
				return change{}, ErrClassNotFound
			}
			if count > math.MaxInt-c.ClassSessions[classID] {
				return change{}, fmt.Errorf("%w: balance limit reached", ErrInvalidSessionCount)
			}
			c.ClassSessions[classID] += count
			c.enroll(classID)
			tx.Source = SourceClass
			tx.ClassID = classID
			tx.BalanceAfter = c.ClassSessions[classID]
			res.Message = fmt.Sprintf("Added %d sessions for %s", count, class.Name)
		} else {
			if count > math.MaxInt-c.DropInSessions {
				return change{}, fmt.Errorf("%w: balance limit reached", ErrInvalidSessionCount)
			}
			c.DropInSessions += count
			tx.Source = SourceDropIn
			tx.BalanceAfter = c.DropInSessions
			res.Message = fmt.Sprintf("Added %d drop-in sessions", count)
		}
		st.transactions = append(st.transactions, tx)

		res.Type = tx.Source
		res.ClassID = classID
		res.Added = count
		res.Balance = tx.BalanceAfter
		res.Customer = c.Clone()
		return change{customers: true, transactions: []SessionTransaction{tx}}, nil
	})
	if err != nil {
		e.log.Debug().Err(err).
			Str("customer_id", string(customerID)).
			Int("count", count).
			Msg("top-up rejected")
		return nil, err
	}

	e.log.Info().
		Str("customer_id", string(customerID)).
		Str("class_id", string(classID)).
		Int("added", count).
		Int("balance", res.Balance).
		Msg("sessions added")
	return &res, nil
}

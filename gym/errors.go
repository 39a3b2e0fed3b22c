/*
errors.go - Centralized error types for the session engine

PURPOSE:
  Every failure an engine operation can report lives here. All of them are
  expected, user-facing outcomes: the caller shows a message and the user
  tries again with corrected input. Only store failures are unexpected.

ERROR CATEGORIES:
  1. Lookup errors - customer or class missing
  2. Membership errors - status does not allow the operation
  3. Balance errors - not enough sessions, bad top-up count
  4. Validation errors - malformed customer/class input

USAGE:
  res, err := engine.CheckIn(ctx, customerID, classID)
  var short *gym.InsufficientSessionsError
  if errors.As(err, &short) {
      fmt.Println(short.Required, short.ClassAvailable, short.DropInAvailable)
  }

SEE ALSO:
  - engine.go: returns these errors
  - api/handlers.go: maps Code values to HTTP status
*/
package gym

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrClassNotFound    = errors.New("class not found")
	ErrClassRequired    = errors.New("please select a class")

	ErrMembershipExpired = errors.New("membership expired")
	ErrMembershipFrozen  = errors.New("membership is frozen")
	ErrAlreadyFrozen     = errors.New("membership is already frozen")
	ErrNotFrozen         = errors.New("membership is not frozen")

	// ErrInsufficientSessions is wrapped by InsufficientSessionsError.
	ErrInsufficientSessions = errors.New("insufficient sessions")
	ErrInvalidSessionCount  = errors.New("sessions must be a positive number")

	ErrInvalidCustomer = errors.New("invalid customer")
	ErrInvalidClass    = errors.New("invalid class")
	ErrInvalidDate     = errors.New("invalid date, use YYYY-MM-DD")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientSessionsError reports a check-in neither balance could cover.
type InsufficientSessionsError struct {
	CustomerID      CustomerID
	ClassID         ClassID
	ClassName       string
	Required        int
	ClassAvailable  int
	DropInAvailable int
	Enrolled        bool
}

func (e *InsufficientSessionsError) Error() string {
	return fmt.Sprintf("not enough sessions for %s: need %d, class balance %d, drop-in balance %d",
		e.ClassName, e.Required, e.ClassAvailable, e.DropInAvailable)
}

func (e *InsufficientSessionsError) Unwrap() error {
	return ErrInsufficientSessions
}

// =============================================================================
// ERROR CODES - Stable identifiers for adapters
// =============================================================================

type Code string

const (
	CodeCustomerNotFound     Code = "customer_not_found"
	CodeClassNotFound        Code = "class_not_found"
	CodeClassRequired        Code = "class_required"
	CodeMembershipExpired    Code = "membership_expired"
	CodeMembershipFrozen     Code = "membership_frozen"
	CodeAlreadyFrozen        Code = "already_frozen"
	CodeNotFrozen            Code = "not_frozen"
	CodeInsufficientSessions Code = "insufficient_sessions"
	CodeInvalidSessionCount  Code = "invalid_session_count"
	CodeInvalidCustomer      Code = "invalid_customer"
	CodeInvalidClass         Code = "invalid_class"
	CodeInvalidDate          Code = "invalid_date"
	CodeInternal             Code = "internal"
)

var codes = []struct {
	err  error
	code Code
}{
	{ErrCustomerNotFound, CodeCustomerNotFound},
	{ErrClassNotFound, CodeClassNotFound},
	{ErrClassRequired, CodeClassRequired},
	{ErrMembershipExpired, CodeMembershipExpired},
	{ErrMembershipFrozen, CodeMembershipFrozen},
	{ErrAlreadyFrozen, CodeAlreadyFrozen},
	{ErrNotFrozen, CodeNotFrozen},
	{ErrInsufficientSessions, CodeInsufficientSessions},
	{ErrInvalidSessionCount, CodeInvalidSessionCount},
	{ErrInvalidCustomer, CodeInvalidCustomer},
	{ErrInvalidClass, CodeInvalidClass},
	{ErrInvalidDate, CodeInvalidDate},
}

// CodeOf returns the code for a known error, CodeInternal otherwise.
// nil has no code.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is an expected, user-facing
// outcome rather than a storage failure.
func IsClientError(err error) bool {
	code := CodeOf(err)
	return code != "" && code != CodeInternal
}

// IsNotFound returns true if the error indicates a missing customer or class.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrClassNotFound)
}

// IsMembershipError returns true for status-related rejections.
func IsMembershipError(err error) bool {
	return errors.Is(err, ErrMembershipExpired) ||
		errors.Is(err, ErrMembershipFrozen)
}

// IsConflict returns true when the freeze state machine refused a transition.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyFrozen) ||
		errors.Is(err, ErrNotFrozen)
}

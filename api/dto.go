/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model (camelCase, persisted as-is) from the external API
  contract (snake_case).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Operation results

TYPES:
  Customer:    CustomerDTO, CreateCustomerRequest, UpdateCustomerRequest
  Class:       ClassDTO, CreateClassRequest, UpdateClassRequest
  Engine:      CheckInRequest/Response, AddSessionsRequest/Response,
               FreezeRequest/Response, UnfreezeResponse, FreezeStatusDTO
  History:     AttendanceDTO, TransactionDTO

VALIDATION:
  Validation is done in the gym package, not in DTOs. DTOs are pure data
  carriers; handlers only parse dates and numbers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gym-ledger/gym"
)

// =============================================================================
// CUSTOMERS
// =============================================================================

type CustomerDTO struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Phone           string          `json:"phone"`
	Email           string          `json:"email"`
	PhotoURL        string          `json:"photo_url,omitempty"`
	MembershipType  string          `json:"membership_type"`
	SubscriptionFee decimal.Decimal `json:"subscription_fee"`
	StartDate       string          `json:"start_date"`
	EndDate         string          `json:"end_date"`
	Status          string          `json:"status"`
	EnrolledClasses []string        `json:"enrolled_classes"`
	ClassSessions   map[string]int  `json:"class_sessions"`
	DropInSessions  int             `json:"drop_in_sessions"`
	TotalSessions   int             `json:"total_sessions"`
	LowSessions     bool            `json:"low_sessions"`
	AttendanceLog   []AttendanceDTO `json:"attendance_log"`
	FreezePeriods   []FreezeDTO     `json:"freeze_periods"`
	CreatedAt       string          `json:"created_at,omitempty"`
}

// CreateCustomerRequest registers a customer. end_date and
// subscription_fee default from the membership catalog when omitted.
type CreateCustomerRequest struct {
	Name            string           `json:"name"`
	Phone           string           `json:"phone"`
	Email           string           `json:"email"`
	PhotoURL        string           `json:"photo_url"`
	MembershipType  string           `json:"membership_type"`
	SubscriptionFee *decimal.Decimal `json:"subscription_fee"`
	StartDate       string           `json:"start_date"`
	EndDate         string           `json:"end_date"`
}

// UpdateCustomerRequest edits display attributes. Omitted fields are kept.
type UpdateCustomerRequest struct {
	Name            *string          `json:"name"`
	Phone           *string          `json:"phone"`
	Email           *string          `json:"email"`
	PhotoURL        *string          `json:"photo_url"`
	MembershipType  *string          `json:"membership_type"`
	SubscriptionFee *decimal.Decimal `json:"subscription_fee"`
	StartDate       *string          `json:"start_date"`
	EndDate         *string          `json:"end_date"`
}

// =============================================================================
// CLASSES
// =============================================================================

type ClassDTO struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	Instructor       string          `json:"instructor"`
	Schedule         string          `json:"schedule"`
	Description      string          `json:"description,omitempty"`
	Capacity         int             `json:"capacity"`
	EnrolledCount    int             `json:"enrolled_count"`
	SessionsPerVisit int             `json:"sessions_per_visit"`
	MonthlyFee       decimal.Decimal `json:"monthly_fee"`
	DropInFee        decimal.Decimal `json:"drop_in_fee"`
}

type CreateClassRequest struct {
	Name             string          `json:"name"`
	Instructor       string          `json:"instructor"`
	Schedule         string          `json:"schedule"`
	Description      string          `json:"description"`
	Capacity         int             `json:"capacity"`
	SessionsPerVisit int             `json:"sessions_per_visit"`
	MonthlyFee       decimal.Decimal `json:"monthly_fee"`
	DropInFee        decimal.Decimal `json:"drop_in_fee"`
}

type UpdateClassRequest struct {
	Name             *string          `json:"name"`
	Instructor       *string          `json:"instructor"`
	Schedule         *string          `json:"schedule"`
	Description      *string          `json:"description"`
	Capacity         *int             `json:"capacity"`
	EnrolledCount    *int             `json:"enrolled_count"`
	SessionsPerVisit *int             `json:"sessions_per_visit"`
	MonthlyFee       *decimal.Decimal `json:"monthly_fee"`
	DropInFee        *decimal.Decimal `json:"drop_in_fee"`
}

// =============================================================================
// ENGINE OPERATIONS
// =============================================================================

type CheckInRequest struct {
	ClassID string `json:"class_id"`
}

type CheckInResponse struct {
	Record    AttendanceDTO `json:"record"`
	Source    string        `json:"source"`
	Debited   int           `json:"debited"`
	Remaining int           `json:"remaining_sessions"`
	Message   string        `json:"message"`
	Customer  CustomerDTO   `json:"customer"`
}

// AddSessionsRequest accepts count as a JSON number or a numeric string,
// since form inputs usually post strings.
type AddSessionsRequest struct {
	Count   json.RawMessage `json:"count"`
	ClassID string          `json:"class_id,omitempty"`
}

type AddSessionsResponse struct {
	Type     string      `json:"type"`
	ClassID  string      `json:"class_id,omitempty"`
	Added    int         `json:"added"`
	Balance  int         `json:"balance"`
	Message  string      `json:"message"`
	Customer CustomerDTO `json:"customer"`
}

type FreezeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
}

type FreezeResponse struct {
	Period   FreezeDTO   `json:"period"`
	Message  string      `json:"message"`
	Customer CustomerDTO `json:"customer"`
}

type UnfreezeResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message"`
	Customer CustomerDTO `json:"customer"`
}

type FreezeStatusDTO struct {
	Frozen          bool        `json:"frozen"`
	ActiveFreezes   []FreezeDTO `json:"active_freezes"`
	TotalFreezeDays int         `json:"total_freeze_days"`
}

// =============================================================================
// HISTORY
// =============================================================================

type AttendanceDTO struct {
	ID         string `json:"id"`
	CustomerID string `json:"customer_id"`
	ClassID    string `json:"class_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}

type FreezeDTO struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt string `json:"created_at"`
}

// TransactionDTO represents a ledger entry in API responses.
type TransactionDTO struct {
	ID           string `json:"id"`
	CustomerID   string `json:"customer_id"`
	ClassID      string `json:"class_id,omitempty"`
	Source       string `json:"source"`
	Type         string `json:"type"`
	Delta        int    `json:"delta"`
	BalanceAfter int    `json:"balance_after"`
	ReferenceID  string `json:"reference_id,omitempty"`
	Reason       string `json:"reason,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// InsufficientSessionsDetails is the Details payload of an
// insufficient_sessions error.
type InsufficientSessionsDetails struct {
	ClassID         string `json:"class_id"`
	ClassName       string `json:"class_name"`
	Required        int    `json:"required"`
	ClassAvailable  int    `json:"class_available"`
	DropInAvailable int    `json:"drop_in_available"`
	Enrolled        bool   `json:"enrolled"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toCustomerDTO(c gym.Customer) CustomerDTO {
	dto := CustomerDTO{
		ID:              string(c.ID),
		Name:            c.Name,
		Phone:           c.Phone,
		Email:           c.Email,
		PhotoURL:        c.PhotoURL,
		MembershipType:  c.MembershipType,
		SubscriptionFee: c.SubscriptionFee,
		StartDate:       c.StartDate.String(),
		EndDate:         c.EndDate.String(),
		Status:          string(c.Status),
		EnrolledClasses: make([]string, len(c.EnrolledClasses)),
		ClassSessions:   make(map[string]int, len(c.ClassSessions)),
		DropInSessions:  c.DropInSessions,
		TotalSessions:   c.TotalSessions(),
		LowSessions:     gym.IsLowOnSessions(&c),
		AttendanceLog:   make([]AttendanceDTO, len(c.AttendanceLog)),
		FreezePeriods:   make([]FreezeDTO, len(c.FreezePeriods)),
	}
	for i, id := range c.EnrolledClasses {
		dto.EnrolledClasses[i] = string(id)
	}
	for id, n := range c.ClassSessions {
		dto.ClassSessions[string(id)] = n
	}
	for i, rec := range c.AttendanceLog {
		dto.AttendanceLog[i] = toAttendanceDTO(rec)
	}
	for i, p := range c.FreezePeriods {
		dto.FreezePeriods[i] = toFreezeDTO(p)
	}
	if !c.CreatedAt.IsZero() {
		dto.CreatedAt = c.CreatedAt.Format(time.RFC3339)
	}
	return dto
}

func toClassDTO(c gym.Class) ClassDTO {
	return ClassDTO{
		ID:               string(c.ID),
		Name:             c.Name,
		Instructor:       c.Instructor,
		Schedule:         c.Schedule,
		Description:      c.Description,
		Capacity:         c.Capacity,
		EnrolledCount:    c.EnrolledCount,
		SessionsPerVisit: c.SessionsPerVisit,
		MonthlyFee:       c.MonthlyFee,
		DropInFee:        c.DropInFee,
	}
}

func toAttendanceDTO(r gym.AttendanceRecord) AttendanceDTO {
	return AttendanceDTO{
		ID:         string(r.ID),
		CustomerID: string(r.CustomerID),
		ClassID:    string(r.ClassID),
		Timestamp:  r.Timestamp.Format(time.RFC3339),
	}
}

func toFreezeDTO(p gym.FreezePeriod) FreezeDTO {
	return FreezeDTO{
		ID:        string(p.ID),
		StartDate: p.StartDate.String(),
		EndDate:   p.EndDate.String(),
		Reason:    p.Reason,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
}

func toTransactionDTO(tx gym.SessionTransaction) TransactionDTO {
	return TransactionDTO{
		ID:           string(tx.ID),
		CustomerID:   string(tx.CustomerID),
		ClassID:      string(tx.ClassID),
		Source:       string(tx.Source),
		Type:         string(tx.Type),
		Delta:        tx.Delta,
		BalanceAfter: tx.BalanceAfter,
		ReferenceID:  tx.ReferenceID,
		Reason:       tx.Reason,
		CreatedAt:    tx.CreatedAt.Format(time.RFC3339),
	}
}

/*
handlers.go - HTTP API handlers for the gym session ledger

PURPOSE:
  Exposes the repository and check-in engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the gym package.

ENDPOINTS:
  Customers:
    GET    /api/customers                      List (?search=&status=)
    POST   /api/customers                      Register customer
    GET    /api/customers/{id}                 Customer details
    PUT    /api/customers/{id}                 Edit display attributes
    DELETE /api/customers/{id}                 Delete customer

  Engine:
    POST   /api/customers/{id}/check-ins       Check in to a class
    POST   /api/customers/{id}/sessions        Add sessions (class or drop-in)
    POST   /api/customers/{id}/freeze          Freeze membership
    POST   /api/customers/{id}/unfreeze        Unfreeze membership
    GET    /api/customers/{id}/freeze-status   Active freezes
    GET    /api/customers/{id}/transactions    Session ledger

  Classes:
    GET/POST /api/classes, GET/PUT/DELETE /api/classes/{id}

  Other:
    GET    /api/attendance                     (?customer_id=&class_id=&date=)
    GET    /api/stats                          Dashboard figures
    GET    /api/memberships                    Membership catalog
    POST   /api/reset                          Reload demo data

REQUEST FLOW:
  1. Parse HTTP request
  2. Call the repository or engine
  3. Serialize response
  4. Map errors to status via gym.CodeOf

ERROR HANDLING:
  Errors are returned as JSON {error, code, details}:
  - 400: Validation errors, invalid input
  - 404: Customer or class not found
  - 409: Freeze state conflict (already frozen / not frozen)
  - 422: Membership or balance does not allow the operation
  - 500: Storage failures

SECURITY NOTE:
  No authentication. The server is meant to run on the gym's own machine.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/gym-ledger/gym"
	"github.com/warp/gym-ledger/stats"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Repo   *gym.Repository
	Engine *gym.Engine
	log    zerolog.Logger
}

// NewHandler creates a handler over an engine and its repository.
func NewHandler(engine *gym.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		Repo:   engine.Repository(),
		Engine: engine,
		log:    log,
	}
}

// =============================================================================
// CUSTOMER HANDLERS
// =============================================================================

// ListCustomers returns customers matching ?search= and ?status=.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	filter := gym.CustomerFilter{
		Search: r.URL.Query().Get("search"),
		Status: gym.StatusFilter(r.URL.Query().Get("status")),
	}
	switch filter.Status {
	case "", gym.FilterAll, gym.FilterActive, gym.FilterFrozen, gym.FilterExpired, gym.FilterLowSessions:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter", nil)
		return
	}

	customers := h.Repo.Customers(filter)
	dtos := make([]CustomerDTO, len(customers))
	for i, c := range customers {
		dtos[i] = toCustomerDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Repo.Customer(customerID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := gym.NewCustomer{
		Name:           req.Name,
		Phone:          req.Phone,
		Email:          req.Email,
		PhotoURL:       req.PhotoURL,
		MembershipType: req.MembershipType,
	}
	if req.SubscriptionFee != nil {
		in.SubscriptionFee = *req.SubscriptionFee
	}
	var err error
	if in.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if in.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	c, err := h.Repo.AddCustomer(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCustomerDTO(c))
}

func (h *Handler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req UpdateCustomerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	u := gym.CustomerUpdate{
		Name:            req.Name,
		Phone:           req.Phone,
		Email:           req.Email,
		PhotoURL:        req.PhotoURL,
		MembershipType:  req.MembershipType,
		SubscriptionFee: req.SubscriptionFee,
	}
	for _, d := range []struct {
		raw *string
		dst **gym.Date
	}{
		{req.StartDate, &u.StartDate},
		{req.EndDate, &u.EndDate},
	} {
		if d.raw == nil {
			continue
		}
		parsed, err := gym.ParseDate(*d.raw)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		*d.dst = &parsed
	}

	c, err := h.Repo.UpdateCustomer(r.Context(), customerID(r), u)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCustomerDTO(c))
}

func (h *Handler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteCustomer(r.Context(), customerID(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ENGINE HANDLERS
// =============================================================================

// CheckIn records attendance and debits a session balance.
func (h *Handler) CheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	res, err := h.Engine.CheckIn(r.Context(), customerID(r), gym.ClassID(strings.TrimSpace(req.ClassID)))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CheckInResponse{
		Record:    toAttendanceDTO(res.Record),
		Source:    string(res.Source),
		Debited:   res.Debited,
		Remaining: res.Remaining,
		Message:   res.Message,
		Customer:  toCustomerDTO(res.Customer),
	})
}

// AddSessions tops up a class balance, or the drop-in pool when class_id
// is omitted.
func (h *Handler) AddSessions(w http.ResponseWriter, r *http.Request) {
	var req AddSessionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// An unparseable count goes through as 0 so the engine still reports a
	// missing customer first.
	count, _ := parseCount(req.Count)

	res, err := h.Engine.AddSessions(r.Context(), customerID(r), count, gym.ClassID(strings.TrimSpace(req.ClassID)))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AddSessionsResponse{
		Type:     string(res.Type),
		ClassID:  string(res.ClassID),
		Added:    res.Added,
		Balance:  res.Balance,
		Message:  res.Message,
		Customer: toCustomerDTO(res.Customer),
	})
}

func parseCount(raw json.RawMessage) (int, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not a JSON string; take the literal (number, null, ...).
		s = string(raw)
	}
	return gym.ParseSessionCount(s)
}

func (h *Handler) Freeze(w http.ResponseWriter, r *http.Request) {
	var req FreezeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := gym.ParseDate(req.StartDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	end, err := gym.ParseDate(req.EndDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	res, err := h.Engine.Freeze(r.Context(), customerID(r), start, end, strings.TrimSpace(req.Reason))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FreezeResponse{
		Period:   toFreezeDTO(res.Period),
		Message:  res.Message,
		Customer: toCustomerDTO(res.Customer),
	})
}

func (h *Handler) Unfreeze(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.Unfreeze(r.Context(), customerID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnfreezeResponse{
		Status:   string(res.Status),
		Message:  res.Message,
		Customer: toCustomerDTO(res.Customer),
	})
}

func (h *Handler) FreezeStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.Engine.CheckFreezeStatus(r.Context(), customerID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	dto := FreezeStatusDTO{
		Frozen:          st.Frozen,
		ActiveFreezes:   make([]FreezeDTO, len(st.Active)),
		TotalFreezeDays: st.TotalDays,
	}
	for i, p := range st.Active {
		dto.ActiveFreezes[i] = toFreezeDTO(p)
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetTransactions returns the customer's session ledger, oldest first.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	id := customerID(r)
	if _, err := h.Repo.Customer(id); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	txs := h.Repo.Transactions(id)
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLASS HANDLERS
// =============================================================================

func (h *Handler) ListClasses(w http.ResponseWriter, r *http.Request) {
	classes := h.Repo.Classes()
	dtos := make([]ClassDTO, len(classes))
	for i, c := range classes {
		dtos[i] = toClassDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetClass(w http.ResponseWriter, r *http.Request) {
	c, err := h.Repo.Class(gym.ClassID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClassDTO(c))
}

func (h *Handler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req CreateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Repo.AddClass(r.Context(), gym.NewClass{
		Name:             req.Name,
		Instructor:       req.Instructor,
		Schedule:         req.Schedule,
		Description:      req.Description,
		Capacity:         req.Capacity,
		SessionsPerVisit: req.SessionsPerVisit,
		MonthlyFee:       req.MonthlyFee,
		DropInFee:        req.DropInFee,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClassDTO(c))
}

func (h *Handler) UpdateClass(w http.ResponseWriter, r *http.Request) {
	var req UpdateClassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	c, err := h.Repo.UpdateClass(r.Context(), gym.ClassID(chi.URLParam(r, "id")), gym.ClassUpdate{
		Name:             req.Name,
		Instructor:       req.Instructor,
		Schedule:         req.Schedule,
		Description:      req.Description,
		Capacity:         req.Capacity,
		EnrolledCount:    req.EnrolledCount,
		SessionsPerVisit: req.SessionsPerVisit,
		MonthlyFee:       req.MonthlyFee,
		DropInFee:        req.DropInFee,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClassDTO(c))
}

func (h *Handler) DeleteClass(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.DeleteClass(r.Context(), gym.ClassID(chi.URLParam(r, "id"))); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// REPORTING HANDLERS
// =============================================================================

// ListAttendance returns attendance filtered by ?customer_id=, ?class_id=
// and ?date= (YYYY-MM-DD).
func (h *Handler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := gym.AttendanceFilter{
		CustomerID: gym.CustomerID(q.Get("customer_id")),
		ClassID:    gym.ClassID(q.Get("class_id")),
	}
	day, err := parseOptionalDate(q.Get("date"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	filter.Day = day

	records := h.Repo.Attendance(filter)
	dtos := make([]AttendanceDTO, len(records))
	for i, rec := range records {
		dtos[i] = toAttendanceDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stats.Compute(h.Repo.Snapshot(), h.Repo.Now()))
}

func (h *Handler) ListMemberships(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gym.Catalog())
}

// ResetDatabase replaces all data with the demo seed.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Repo.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func customerID(r *http.Request) gym.CustomerID {
	return gym.CustomerID(chi.URLParam(r, "id"))
}

func parseOptionalDate(s string) (gym.Date, error) {
	if strings.TrimSpace(s) == "" {
		return gym.Date{}, nil
	}
	return gym.ParseDate(s)
}

// statusFor maps a gym error code to an HTTP status.
func statusFor(code gym.Code) int {
	switch code {
	case gym.CodeCustomerNotFound, gym.CodeClassNotFound:
		return http.StatusNotFound
	case gym.CodeAlreadyFrozen, gym.CodeNotFrozen:
		return http.StatusConflict
	case gym.CodeMembershipExpired, gym.CodeMembershipFrozen, gym.CodeInsufficientSessions:
		return http.StatusUnprocessableEntity
	case gym.CodeClassRequired, gym.CodeInvalidSessionCount, gym.CodeInvalidCustomer,
		gym.CodeInvalidClass, gym.CodeInvalidDate:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := gym.CodeOf(err)
	status := statusFor(code)

	resp := ErrorResponse{Error: err.Error(), Code: string(code)}
	var short *gym.InsufficientSessionsError
	if errors.As(err, &short) {
		resp.Details = InsufficientSessionsDetails{
			ClassID:         string(short.ClassID),
			ClassName:       short.ClassName,
			Required:        short.Required,
			ClassAvailable:  short.ClassAvailable,
			DropInAvailable: short.DropInAvailable,
			Enrolled:        short.Enrolled,
		}
	}
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		resp.Error = "Internal error"
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

/*
handlers.go - HTTP API handlers for the court reservation engine

PURPOSE:
  Exposes the reservation engine, ledger and occupancy queries via REST.
  Handles HTTP request/response, JSON serialization and access checks, and
  delegates every decision to the court package.

ENDPOINTS:
  Session:
    POST   /api/login                       Email + password -> token
    GET    /api/session                     Current principal

  Members:
    GET    /api/members/me                  Profile + 5 latest reservations
    GET    /api/members                     All members            [admin]
    GET    /api/members/{id}/balance        Balance                [admin]
    GET    /api/members/{id}/reconcile      Balance vs ledger      [admin]

  Ledger:
    POST   /api/topup                       Credit/debit a member  [admin]
    GET    /api/transactions                Transaction history    [admin]

  Reservations:
    POST   /api/reservations                Book a slot
    GET    /api/reservations/mine           Personal history
    GET    /api/reservations                All reservations       [admin]
    POST   /api/reservations/{id}/cancel    Cancel, no refund      [admin]
    DELETE /api/reservations/{id}           Same as cancel         [admin]
    GET    /api/court-status?date=          Occupancy grid
    POST   /api/court-status                Occupancy grid ({"date": ...})

  Audit:
    GET    /api/audit                       Last ledger audit      [admin]
    POST   /api/audit/run                   Audit now              [admin]

  Scenarios:
    GET    /api/scenarios                   List demo scenarios    [admin]
    POST   /api/scenarios/load              Reset + seed           [admin]

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid slot, zero amount
  - 401: Missing/invalid token
  - 402: insufficientFunds / cannotTopUp (status body)
  - 403: Not an admin
  - 404: Member or reservation not found
  - 409: slotTaken (status body), email taken
  - 500: Storage unavailable, integrity violation (always with a body)

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Authenticated / AdminOnly middleware
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/identity"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   court.TxStore
	Engine  *court.Engine
	Ledger  *court.Ledger
	Query   *court.Query
	Auth    *identity.Authenticator
	Metrics *Metrics
	Auditor *LedgerAuditor

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine, ledger and queries over one store. The
// options (publisher, clock, id generator) are passed to the engine.
func NewHandler(store court.TxStore, auth *identity.Authenticator, metrics *Metrics, opts ...court.Option) *Handler {
	if metrics == nil {
		metrics = NewMetrics()
	}
	engine := court.NewEngine(store, opts...)
	return &Handler{
		Store:    store,
		Engine:   engine,
		Ledger:   engine.Ledger(),
		Query:    court.NewQuery(store),
		Auth:     auth,
		Metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// HEALTH
// =============================================================================

type pinger interface {
	Ping(ctx context.Context) error
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusOK})
}

// =============================================================================
// SESSION
// =============================================================================

// Login exchanges an email and password for a token. The token is also set
// as an HTTP-only cookie for browser clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, m, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Member: toMemberDTO(m)})
}

// Session returns the authenticated principal.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"memberId": int64(p.MemberID),
		"role":     string(p.Role),
	})
}

// =============================================================================
// MEMBER HANDLERS
// =============================================================================

// Me returns the caller's profile with their latest reservations.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	info, err := h.Query.MemberInfo(r.Context(), principal(r).MemberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dto := toMemberDTO(info.Member)
	dto.Recent = make([]ReservationDTO, len(info.Recent))
	for i, res := range info.Recent {
		dto.Recent[i] = toReservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListMembers returns all members.
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Store.ListMembers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]MemberDTO, len(members))
	for i, m := range members {
		dtos[i] = toMemberDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// MemberBalance returns one member's balance.
func (h *Handler) MemberBalance(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDParam(w, r)
	if !ok {
		return
	}

	balance, err := h.Ledger.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"memberId": int64(id), "balance": money(balance)})
}

// Reconcile compares a member's balance with their transaction log.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, ok := memberIDParam(w, r)
	if !ok {
		return
	}

	rec, err := h.Ledger.Reconcile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileDTO{
		MemberID:   int64(rec.MemberID),
		Balance:    money(rec.Balance),
		LogTotal:   money(rec.LogTotal),
		Drift:      int64(rec.Drift()),
		Consistent: rec.Consistent(),
	})
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// TopUp applies a signed amount to a member's balance.
//
// Request:  {"memberId": 7, "amount": 1000}
// Response: {"status": "ok", "balance": {...}} or 402 {"status": "cannotTopUp"}
func (h *Handler) TopUp(w http.ResponseWriter, r *http.Request) {
	var req TopUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	balance, err := h.Ledger.TopUp(r.Context(), court.MemberID(req.MemberID), court.Amount(req.Amount))
	h.Metrics.TopUps.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Status: StatusOK, Balance: money(balance)})
}

// Transactions returns the whole ledger, newest first.
func (h *Handler) Transactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Query.TransactionHistory(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESERVATION HANDLERS
// =============================================================================

// Book reserves a slot.
//
// Request:  {"courtNo": 3, "date": "2025-06-14", "time": "17:00"}
// Response: {"status": "ok", "reservation": {...}, "balance": {...}}
//
// Admins may add "memberId" to book for someone else; the fee is charged to
// that member unless they are an admin too.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if !h.decode(w, r, &req) {
		return
	}

	p := principal(r)
	target := p.MemberID
	if req.MemberID != 0 && court.MemberID(req.MemberID) != p.MemberID {
		if err := identity.RequireAdmin(p); err != nil {
			writeDomainError(w, err)
			return
		}
		target = court.MemberID(req.MemberID)
	}

	day, err := court.ParseDay(req.Date)
	if err != nil {
		h.Metrics.Bookings.WithLabelValues("invalid").Inc()
		writeDomainError(w, &court.InvalidSlotError{CourtNo: req.CourtNo, TimeLabel: req.Time, Reason: err.Error()})
		return
	}

	booking, err := h.Engine.Book(r.Context(), target, req.CourtNo, day, req.Time)
	h.Metrics.Bookings.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res := toReservationDTO(booking.Reservation)
	writeJSON(w, http.StatusCreated, StatusResponse{
		Status:      StatusOK,
		Reservation: &res,
		Balance:     money(booking.Balance),
	})
}

// Cancel removes a reservation. The booking fee is not refunded.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := court.ReservationID(chi.URLParam(r, "id"))

	res, err := h.Engine.Cancel(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Metrics.Cancellations.Inc()

	dto := toReservationDTO(res)
	writeJSON(w, http.StatusOK, StatusResponse{Status: StatusOK, Reservation: &dto})
}

// MyReservations returns the caller's reservations, newest first.
func (h *Handler) MyReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Query.PersonalHistory(r.Context(), principal(r).MemberID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ReservationDTO, len(list))
	for i, res := range list {
		dtos[i] = toReservationDTO(res)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AllReservations returns every reservation with member names, newest first.
func (h *Handler) AllReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.Query.AllHistory(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	dtos := make([]ReservationDTO, len(list))
	for i, v := range list {
		dtos[i] = toReservationViewDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CourtStatus returns the 5 x 6 occupancy grid for a date. The date comes
// from the "date" query parameter or, for POST, the JSON body.
func (h *Handler) CourtStatus(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if r.Method == http.MethodPost {
		var req CourtStatusRequest
		if !h.decode(w, r, &req) {
			return
		}
		date = req.Date
	}
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required", nil)
		return
	}

	day, err := court.ParseDay(date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err)
		return
	}

	grid, err := h.Query.GridForDate(r.Context(), day)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGridDTO(grid))
}

// =============================================================================
// HELPERS
// =============================================================================

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

// writeDomainError maps court errors to HTTP. Business rejections get a
// status body; faults are logged and answered with a generic 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, court.ErrSlotTaken):
		writeJSON(w, http.StatusConflict, StatusResponse{Status: StatusSlotTaken, Message: err.Error()})
	case errors.Is(err, court.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, StatusResponse{Status: StatusInsufficientFunds, Message: err.Error()})
	case errors.Is(err, court.ErrInsufficientResultingBalance):
		writeJSON(w, http.StatusPaymentRequired, StatusResponse{Status: StatusCannotTopUp, Message: err.Error()})
	case errors.Is(err, court.ErrInvalidSlot), errors.Is(err, court.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid request", err)
	case errors.Is(err, court.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email already registered", err)
	case errors.Is(err, court.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", nil)
	case errors.Is(err, court.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "admin only", nil)
	case court.IsNotFound(err):
		writeError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, court.ErrIntegrityViolation):
		log.Printf("[API] INTEGRITY: %v", err)
		writeError(w, http.StatusInternalServerError, "integrity violation", nil)
	default:
		log.Printf("[API] internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "storage unavailable", nil)
	}
}

// decode reads and validates a JSON body. It writes the 400 itself and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "validation failed", err)
		return false
	}
	return true
}

func memberIDParam(w http.ResponseWriter, r *http.Request) (court.MemberID, bool) {
	id, err := court.ParseMemberID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid member id", err)
		return 0, false
	}
	return id, true
}

// outcome labels an operation result for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, court.ErrSlotTaken):
		return StatusSlotTaken
	case errors.Is(err, court.ErrInsufficientFunds):
		return StatusInsufficientFunds
	case errors.Is(err, court.ErrInsufficientResultingBalance):
		return StatusCannotTopUp
	case court.IsClientError(err):
		return "invalid"
	case court.IsNotFound(err):
		return "notFound"
	}
	return "error"
}

/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes of the HTTP surface, kept apart from the court domain types.

NAMING CONVENTION:
  - *Request:  request bodies, validated with struct tags
  - *DTO:      response items
  - *Response: response wrappers

MONEY:
  Amounts travel as integer minor units ("amount": 250). Responses also
  carry a fixed two-decimal display value ("2.50") for UIs.

STATUS BODIES:
  Business outcomes answer with {"status": ...}:
    ok | slotTaken | insufficientFunds | cannotTopUp

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/court-engine/court"
)

// =============================================================================
// STATUS
// =============================================================================

const (
	StatusOK                = "ok"
	StatusSlotTaken         = "slotTaken"
	StatusInsufficientFunds = "insufficientFunds"
	StatusCannotTopUp       = "cannotTopUp"
)

// StatusResponse is the body of every write operation.
type StatusResponse struct {
	Status      string          `json:"status"`
	Message     string          `json:"message,omitempty"`
	Reservation *ReservationDTO `json:"reservation,omitempty"`
	Balance     *MoneyDTO       `json:"balance,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TopUpRequest credits (or, when negative, debits) a member's balance.
type TopUpRequest struct {
	MemberID int64 `json:"memberId" validate:"required,gt=0"`
	Amount   int64 `json:"amount"`
}

// BookRequest books one slot. MemberID is only honoured for admins booking
// on behalf of a member; members always book for themselves.
type BookRequest struct {
	MemberID int64  `json:"memberId,omitempty" validate:"omitempty,gt=0"`
	CourtNo  int    `json:"courtNo" validate:"required"`
	Date     string `json:"date" validate:"required"`
	Time     string `json:"time" validate:"required"`
}

type CourtStatusRequest struct {
	Date string `json:"date" validate:"required"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type MoneyDTO struct {
	Minor   int64           `json:"minor"`
	Value   decimal.Decimal `json:"value"`
	Display string          `json:"display"`
}

func money(a court.Amount) *MoneyDTO {
	return &MoneyDTO{Minor: int64(a), Value: a.Decimal(), Display: a.String()}
}

type ReservationDTO struct {
	ID         string    `json:"id"`
	MemberID   int64     `json:"memberId"`
	CourtNo    int       `json:"courtNo"`
	Date       string    `json:"date"`
	Time       string    `json:"time"`
	MemberName *NameDTO  `json:"memberName,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NameDTO struct {
	First string `json:"fname"`
	Last  string `json:"lname"`
}

func toReservationDTO(r court.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:        string(r.ID),
		MemberID:  int64(r.MemberID),
		CourtNo:   r.CourtNo,
		Date:      r.Day.String(),
		Time:      r.TimeLabel,
		CreatedAt: r.CreatedAt,
	}
}

func toReservationViewDTO(v court.ReservationView) ReservationDTO {
	dto := toReservationDTO(v.Reservation)
	dto.MemberName = &NameDTO{First: v.Member.First, Last: v.Member.Last}
	return dto
}

type TransactionDTO struct {
	ID            int64     `json:"id"`
	MemberID      int64     `json:"memberId"`
	Amount        int64     `json:"amount"`
	Display       string    `json:"display"`
	Kind          string    `json:"kind"`
	ReservationID string    `json:"reservationId,omitempty"`
	Date          time.Time `json:"date"`
	MemberName    NameDTO   `json:"memberName"`
}

func toTransactionDTO(v court.TransactionView) TransactionDTO {
	return TransactionDTO{
		ID:            v.ID,
		MemberID:      int64(v.MemberID),
		Amount:        int64(v.Amount),
		Display:       v.Amount.String(),
		Kind:          string(v.Kind),
		ReservationID: string(v.ReservationID),
		Date:          v.CreatedAt,
		MemberName:    NameDTO{First: v.Member.First, Last: v.Member.Last},
	}
}

type MemberDTO struct {
	MemberID int64            `json:"memberId"`
	First    string           `json:"fname"`
	Last     string           `json:"lname"`
	Email    string           `json:"email"`
	Role     string           `json:"role"`
	Balance  *MoneyDTO        `json:"balance"`
	Recent   []ReservationDTO `json:"reservation,omitempty"`
}

func toMemberDTO(m court.Member) MemberDTO {
	return MemberDTO{
		MemberID: int64(m.ID),
		First:    m.FirstName,
		Last:     m.LastName,
		Email:    m.Email,
		Role:     string(m.Role),
		Balance:  money(m.Balance),
	}
}

type LoginResponse struct {
	Token  string    `json:"token"`
	Member MemberDTO `json:"member"`
}

type ReconcileDTO struct {
	MemberID   int64     `json:"memberId"`
	Balance    *MoneyDTO `json:"balance"`
	LogTotal   *MoneyDTO `json:"logTotal"`
	Drift      int64     `json:"drift"`
	Consistent bool      `json:"consistent"`
}

// =============================================================================
// GRID
// =============================================================================

// GridCellDTO serializes as false for a free cell and {fname, lname} for a
// booked one.
type GridCellDTO struct {
	court.Cell
}

func (c GridCellDTO) MarshalJSON() ([]byte, error) {
	if !c.Occupied {
		return []byte("false"), nil
	}
	return json.Marshal(NameDTO{First: c.Member.First, Last: c.Member.Last})
}

// toGridDTO returns the dense 5 x 6 grid: rows are courts, columns times.
func toGridDTO(g court.Grid) [][]GridCellDTO {
	out := make([][]GridCellDTO, court.Courts)
	for row := range g.Cells {
		out[row] = make([]GridCellDTO, court.Columns)
		for col, cell := range g.Cells[row] {
			out[row][col] = GridCellDTO{Cell: cell}
		}
	}
	return out
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId" validate:"required"`
}

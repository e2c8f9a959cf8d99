/*
Package court provides the reservation and ledger engine for the court club.

PURPOSE:
  This package holds the only part of the system with real invariants:
  deciding whether a booking may proceed, paying for it from a member's
  prepaid balance, keeping each slot single-booked, and rendering the
  occupancy grid. Everything around it (HTTP, tokens, persistence drivers)
  lives in other packages and talks to this one through interfaces.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: money in minor currency units (signed, int64)
  - Member: a club member with a denormalized running balance and a role
  - Reservation: one booked slot (court, day, time label)
  - Transaction: an append-only ledger row explaining a balance change

DESIGN PRINCIPLES:
  1. Integer money: minor units only, decimal is used for display only
  2. Type safety: MemberID and ReservationID cannot be mixed up
  3. Append-only ledger: transactions are never updated or deleted
  4. Storage decides races: uniqueness and balance floors are enforced by
     the store inside a unit of work, never by Go-side read-modify-write

SEE ALSO:
  - grid.go: slot grid model (court/time mapping)
  - ledger.go: balance ledger
  - engine.go: reservation engine
  - occupancy.go: occupancy grid and history queries
*/
package court

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Money in minor units
// =============================================================================

// Amount is a signed quantity of money in minor currency units (cents).
type Amount int64

// BookingFee is the flat charge for one non-admin booking.
const BookingFee Amount = 200

// Decimal returns the amount in major units, e.g. 250 -> 2.50.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -2) }

// String renders the amount with two decimals.
func (a Amount) String() string { return a.Decimal().StringFixed(2) }

func (a Amount) IsNegative() bool { return a < 0 }
func (a Amount) IsZero() bool     { return a == 0 }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MemberID int64

func (id MemberID) String() string { return strconv.FormatInt(int64(id), 10) }

// ParseMemberID parses a decimal member id.
func ParseMemberID(s string) (MemberID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid member id %q", s)
	}
	return MemberID(n), nil
}

type ReservationID string

// =============================================================================
// MEMBER
// =============================================================================

type Role string

const (
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool { return r == RoleMember || r == RoleAdmin }

type Member struct {
	ID           MemberID
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Balance      Amount
	Role         Role
	CreatedAt    time.Time
}

func (m Member) IsAdmin() bool { return m.Role == RoleAdmin }

// Name is the display name shown in the occupancy grid and histories.
func (m Member) Name() Name { return Name{First: m.FirstName, Last: m.LastName} }

type Name struct {
	First string
	Last  string
}

func (n Name) String() string {
	switch {
	case n.First == "":
		return n.Last
	case n.Last == "":
		return n.First
	}
	return n.First + " " + n.Last
}

// =============================================================================
// RESERVATION
// =============================================================================

// Reservation is one booked slot. Never mutated after creation; removed only
// by an admin cancellation.
type Reservation struct {
	ID        ReservationID
	MemberID  MemberID
	CourtNo   int
	Day       Day
	TimeLabel string
	CreatedAt time.Time
}

func (r Reservation) Slot() Slot {
	return Slot{CourtNo: r.CourtNo, Day: r.Day, TimeLabel: r.TimeLabel}
}

// ReservationView is a reservation joined with its member's display name.
type ReservationView struct {
	Reservation
	Member Name
}

// =============================================================================
// TRANSACTION - Append-only ledger row
// =============================================================================

type TransactionKind string

const (
	TxTopUp      TransactionKind = "topup"      // admin credit
	TxAdjustment TransactionKind = "adjustment" // admin debit (negative top-up)
	TxBooking    TransactionKind = "booking"    // booking fee
)

type Transaction struct {
	ID            int64
	MemberID      MemberID
	Amount        Amount
	Kind          TransactionKind
	ReservationID ReservationID // set for TxBooking only
	CreatedAt     time.Time
}

// TransactionView is a transaction joined with its member's display name.
type TransactionView struct {
	Transaction
	Member Name
}

// MemberInfo is a member profile with its most recent reservations.
type MemberInfo struct {
	Member
	Recent []Reservation
}

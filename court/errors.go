/*
errors.go - Centralized error types for the reservation engine

PURPOSE:
  All error types in one place. Every rejection the engine can report is a
  sentinel (use errors.Is) and most also have a structured form carrying the
  details (use errors.As).

ERROR CATEGORIES:
  1. Client input:   ErrInvalidSlot, ErrInvalidAmount
  2. Rejections:     ErrSlotTaken, ErrInsufficientFunds,
                     ErrInsufficientResultingBalance, ErrEmailTaken
  3. Access control: ErrUnauthenticated, ErrUnauthorized
  4. Missing rows:   ErrMemberNotFound, ErrReservationNotFound
  5. Faults:         ErrStorageUnavailable, ErrIntegrityViolation

PROPAGATION:
  Nothing here is retried inside the engine. Stores wrap driver failures
  with ErrStorageUnavailable; the HTTP layer maps categories to statuses.

SEE ALSO:
  - api/handlers.go: writeDomainError maps these to HTTP
  - store/sqlite/sqlite.go: constraint errors mapped to sentinels
*/
package court

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSlot is returned for a court number outside [1,5] or an
	// unrecognized time label.
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrSlotTaken is returned when a reservation already holds the slot.
	ErrSlotTaken = errors.New("slot taken")

	// ErrInsufficientFunds is returned when a non-admin member cannot pay the booking fee.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientResultingBalance is returned when a top-up would leave
	// the balance negative.
	ErrInsufficientResultingBalance = errors.New("insufficient resulting balance")

	// ErrInvalidAmount is returned for a zero top-up or one that would
	// overflow the balance.
	ErrInvalidAmount = errors.New("invalid amount")

	ErrMemberNotFound      = errors.New("member not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrEmailTaken          = errors.New("email already registered")

	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")

	// ErrStorageUnavailable wraps any failure of the persistence collaborator.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrIntegrityViolation means persisted data breaks the slot uniqueness
	// invariant. Always logged loudly.
	ErrIntegrityViolation = errors.New("integrity violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidSlotError explains why a slot was rejected.
type InvalidSlotError struct {
	CourtNo   int
	TimeLabel string
	Reason    string
}

func (e *InvalidSlotError) Error() string {
	return fmt.Sprintf("invalid slot (court %d, time %q): %s", e.CourtNo, e.TimeLabel, e.Reason)
}

func (e *InvalidSlotError) Unwrap() error { return ErrInvalidSlot }

// SlotTakenError names the contested slot.
type SlotTakenError struct {
	Slot Slot
}

func (e *SlotTakenError) Error() string {
	return fmt.Sprintf("slot taken: court %d on %s at %s", e.Slot.CourtNo, e.Slot.Day, e.Slot.TimeLabel)
}

func (e *SlotTakenError) Unwrap() error { return ErrSlotTaken }

// InsufficientFundsError provides details about a booking the member cannot pay for.
type InsufficientFundsError struct {
	MemberID MemberID
	Balance  Amount
	Required Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: member %s has %s, booking costs %s",
		e.MemberID, e.Balance, e.Required)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// ResultingBalanceError is returned when balance+delta would drop below zero.
type ResultingBalanceError struct {
	MemberID MemberID
	Balance  Amount
	Delta    Amount
}

func (e *ResultingBalanceError) Error() string {
	return fmt.Sprintf("cannot apply %s to member %s: balance %s would become %s",
		e.Delta, e.MemberID, e.Balance, e.Balance+e.Delta)
}

func (e *ResultingBalanceError) Unwrap() error { return ErrInsufficientResultingBalance }

// IntegrityError describes persisted rows that break the slot invariant.
type IntegrityError struct {
	Day      Day
	CourtNo  int
	Label    string
	Existing ReservationID
	Conflict ReservationID
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity violation on %s court %d %s: %s (reservations %s, %s)",
		e.Day, e.CourtNo, e.Label, e.Reason, e.Existing, e.Conflict)
}

func (e *IntegrityError) Unwrap() error { return ErrIntegrityViolation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// StorageError wraps a driver failure so it matches ErrStorageUnavailable.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}

// IsRejection reports an expected, non-fatal business outcome.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrInsufficientResultingBalance)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSlot) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrEmailTaken)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMemberNotFound) ||
		errors.Is(err, ErrReservationNotFound)
}

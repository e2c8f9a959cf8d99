/*
store.go - Persistence interface for members, reservations and the ledger

PURPOSE:
  Defines the boundary between the engine and the database. The engine owns
  the rules; the store owns atomicity and uniqueness.

STORE GUARANTEES:
  - InsertReservation fails with ErrSlotTaken when the (court, day, label)
    triple is already held. This is the linearization point for concurrent
    bookings of one slot: the unique index decides the winner.
  - AddToBalance applies a delta only if the result stays >= 0, as one atomic
    storage statement. It never reads the balance into Go and writes it back.
  - Transactions are append-only: there is no update or delete for them.
  - Driver failures are wrapped with ErrStorageUnavailable.

ATOMIC UNITS:
  TxStore.WithTx runs fn against a transactional view. If fn returns an
  error, every write made through the view is rolled back; readers outside
  never observe a partial unit.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite via database/sql
  - court/store/memory.go: in-memory, for tests and demos
*/
package court

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Members
	CreateMember(ctx context.Context, m Member) (Member, error)
	GetMember(ctx context.Context, id MemberID) (Member, error)
	GetMemberByEmail(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)

	// AddToBalance atomically sets balance = balance + delta when the result
	// is non-negative and returns the new balance. Otherwise it returns a
	// *ResultingBalanceError and leaves the balance unchanged.
	AddToBalance(ctx context.Context, id MemberID, delta Amount) (Amount, error)

	// Ledger (append-only)
	AppendTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	SumTransactions(ctx context.Context, id MemberID) (Amount, error)
	ListTransactions(ctx context.Context) ([]TransactionView, error) // newest first

	// Reservations
	InsertReservation(ctx context.Context, r Reservation) error
	DeleteReservation(ctx context.Context, id ReservationID) (Reservation, error)
	FindReservation(ctx context.Context, slot Slot) (Reservation, bool, error)
	ReservationsForDay(ctx context.Context, day Day) ([]ReservationView, error)
	ReservationsByMember(ctx context.Context, id MemberID, limit int) ([]Reservation, error) // newest first, limit <= 0 means all
	ListReservations(ctx context.Context) ([]ReservationView, error)                       // newest first
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

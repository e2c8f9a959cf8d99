/*
engine.go - Reservation engine

PURPOSE:
  Decides whether a booking may proceed and commits it together with its
  payment. This is the only writer of reservations and, with TopUp, the only
  writer of balances.

BOOKING STATES:
  Requested -> SlotChecked -> EntitlementChecked -> Committed
       \             \                \
        `-> Rejected  `-> Rejected     `-> Rejected

  1. Slot:        NewSlot validates court and label      (ErrInvalidSlot)
  2. Availability: existing reservation for the triple?   (ErrSlotTaken)
  3. Entitlement: admin books free; others need >= fee    (ErrInsufficientFunds)
  4. Commit:      insert reservation + charge fee, atomically

CONCURRENCY:
  Steps 2-4 run in one storage transaction. The availability read is only a
  fast path: two concurrent bookers can both pass it, and the store's unique
  index on (court, day, label) then rejects the loser's insert with
  ErrSlotTaken and its whole unit rolls back. The fee debit is a conditional
  atomic update, so two concurrent charges for one member cannot both spend
  the same balance.

  Once the unit of work starts it runs to commit or rollback: the request
  context's cancellation is detached for the duration.

CANCELLATION:
  Cancel deletes the reservation by id. No refund is written; the fee stays
  in the ledger.

SEE ALSO:
  - ledger.go: charge()
  - store.go: InsertReservation / AddToBalance guarantees
*/
package court

import (
	"context"
	"errors"
	"log"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store  TxStore
	ledger *Ledger
	fee    Amount
	pub    Publisher
	now    func() time.Time
	newID  func() ReservationID
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	o := buildOptions(opts)
	return &Engine{
		store:  store,
		ledger: &Ledger{store: store, pub: o.publisher, now: o.now},
		fee:    BookingFee,
		pub:    o.publisher,
		now:    o.now,
		newID:  o.newID,
	}
}

// Ledger returns the balance ledger sharing this engine's store and publisher.
func (e *Engine) Ledger() *Ledger { return e.ledger }

// Booking is the result of a committed booking.
type Booking struct {
	Reservation Reservation
	Charged     Amount // 0 for admins
	Balance     Amount // balance after the charge
}

// Book reserves a slot for a member, charging the booking fee unless the
// member is an admin. On any error no state has changed.
func (e *Engine) Book(ctx context.Context, memberID MemberID, courtNo int, day Day, timeLabel string) (Booking, error) {
	slot, err := NewSlot(courtNo, day, timeLabel)
	if err != nil {
		return Booking{}, err
	}

	booking := Booking{Reservation: Reservation{
		ID:        e.newID(),
		MemberID:  memberID,
		CourtNo:   slot.CourtNo,
		Day:       slot.Day,
		TimeLabel: slot.TimeLabel,
		CreatedAt: e.now(),
	}}

	unit := context.WithoutCancel(ctx)
	err = e.store.WithTx(unit, func(s Store) error {
		if _, taken, err := s.FindReservation(unit, slot); err != nil {
			return err
		} else if taken {
			return &SlotTakenError{Slot: slot}
		}

		member, err := s.GetMember(unit, memberID)
		if err != nil {
			return err
		}
		if !member.IsAdmin() && member.Balance < e.fee {
			return &InsufficientFundsError{MemberID: memberID, Balance: member.Balance, Required: e.fee}
		}

		if err := s.InsertReservation(unit, booking.Reservation); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &SlotTakenError{Slot: slot}
			}
			return err
		}

		booking.Balance = member.Balance
		if member.IsAdmin() {
			return nil
		}
		booking.Balance, err = e.ledger.charge(unit, s, memberID, e.fee, booking.Reservation.ID)
		booking.Charged = e.fee
		return err
	})
	if err != nil {
		return Booking{}, err
	}

	r := booking.Reservation
	e.publish(ctx, Event{
		Type:          EventReservationBooked,
		MemberID:      r.MemberID,
		ReservationID: r.ID,
		CourtNo:       r.CourtNo,
		Day:           r.Day.String(),
		TimeLabel:     r.TimeLabel,
		Amount:        -booking.Charged,
		Balance:       booking.Balance,
		At:            r.CreatedAt,
	})
	return booking, nil
}

// Cancel removes a reservation by id. No refund is issued.
func (e *Engine) Cancel(ctx context.Context, id ReservationID) (Reservation, error) {
	r, err := e.store.DeleteReservation(context.WithoutCancel(ctx), id)
	if err != nil {
		return Reservation{}, err
	}
	e.publish(ctx, Event{
		Type:          EventReservationCancelled,
		MemberID:      r.MemberID,
		ReservationID: r.ID,
		CourtNo:       r.CourtNo,
		Day:           r.Day.String(),
		TimeLabel:     r.TimeLabel,
		At:            e.now(),
	})
	return r, nil
}

// IsOccupied reports whether a reservation holds the slot.
func (e *Engine) IsOccupied(ctx context.Context, courtNo int, day Day, timeLabel string) (bool, error) {
	slot, err := NewSlot(courtNo, day, timeLabel)
	if err != nil {
		return false, err
	}
	_, taken, err := e.store.FindReservation(ctx, slot)
	return taken, err
}

func (e *Engine) publish(ctx context.Context, ev Event) {
	if err := e.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("[Events] publish %s for reservation %s failed: %v", ev.Type, ev.ReservationID, err)
	}
}

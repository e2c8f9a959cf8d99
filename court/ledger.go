/*
ledger.go - Balance ledger

PURPOSE:
  Holds each member's spendable balance and the append-only transaction log
  that explains it. Every balance mutation writes exactly one Transaction in
  the same unit of work.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: transactions are never updated or deleted
  2. NON-NEGATIVE: a mutation that would leave the balance below zero is
     rejected and nothing is written
  3. CONSISTENT: balance == sum(transactions) for every member, because the
     only writers (TopUp and the engine's charge) update both together

WHY A DENORMALIZED BALANCE?
  Entitlement checks read one column instead of summing the log. The price
  is drift risk if some path updates one side only. Reconcile() detects that
  and the ledger auditor runs it periodically.

EXAMPLE FLOW:
  1. Admin tops up member 7 by 100:   balance 150 -> 250, tx +100 (topup)
  2. Member 7 books a court:          balance 250 ->  50, tx -200 (booking)
  3. Admin debits 30 (negative top-up): balance 50 -> 20, tx -30 (adjustment)

SEE ALSO:
  - engine.go: the only caller of charge()
  - store.go: AddToBalance atomic primitive
*/
package court

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"
)

// MaxBalance is the largest balance a member can hold.
const MaxBalance Amount = math.MaxInt64

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	store TxStore
	pub   Publisher
	now   func() time.Time
}

func NewLedger(store TxStore, opts ...Option) *Ledger {
	o := buildOptions(opts)
	return &Ledger{store: store, pub: o.publisher, now: o.now}
}

// TopUp adds a signed amount to a member's balance. A negative amount is an
// admin debit. Fails with *ResultingBalanceError if the result would be
// negative, and with ErrInvalidAmount if it would exceed MaxBalance; the
// balance is left untouched in both cases.
func (l *Ledger) TopUp(ctx context.Context, id MemberID, amount Amount) (Amount, error) {
	if amount.IsZero() {
		return 0, ErrInvalidAmount
	}

	kind := TxTopUp
	if amount.IsNegative() {
		kind = TxAdjustment
	}

	var balance Amount
	err := l.store.WithTx(ctx, func(s Store) error {
		if amount > 0 {
			m, err := s.GetMember(ctx, id)
			if err != nil {
				return err
			}
			if m.Balance > MaxBalance-amount {
				return fmt.Errorf("top-up of %s on balance %s: %w", amount, m.Balance, ErrInvalidAmount)
			}
		}

		var err error
		balance, err = s.AddToBalance(ctx, id, amount)
		if err != nil {
			return err
		}
		_, err = s.AppendTransaction(ctx, Transaction{
			MemberID:  id,
			Amount:    amount,
			Kind:      kind,
			CreatedAt: l.now(),
		})
		return err
	})
	if err != nil {
		return 0, err
	}

	l.publish(ctx, Event{
		Type:     EventBalanceToppedUp,
		MemberID: id,
		Amount:   amount,
		Balance:  balance,
		At:       l.now(),
	})
	return balance, nil
}

// Balance returns the member's current balance.
func (l *Ledger) Balance(ctx context.Context, id MemberID) (Amount, error) {
	m, err := l.store.GetMember(ctx, id)
	if err != nil {
		return 0, err
	}
	return m.Balance, nil
}

// charge debits the booking fee inside the caller's unit of work. It must
// only be called from a WithTx callback so the debit and its reservation
// commit or roll back together.
func (l *Ledger) charge(ctx context.Context, s Store, id MemberID, fee Amount, ref ReservationID) (Amount, error) {
	balance, err := s.AddToBalance(ctx, id, -fee)
	if err != nil {
		var rb *ResultingBalanceError
		if errors.As(err, &rb) {
			return 0, &InsufficientFundsError{MemberID: id, Balance: rb.Balance, Required: fee}
		}
		return 0, err
	}
	_, err = s.AppendTransaction(ctx, Transaction{
		MemberID:      id,
		Amount:        -fee,
		Kind:          TxBooking,
		ReservationID: ref,
		CreatedAt:     l.now(),
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// =============================================================================
// RECONCILIATION
// =============================================================================

// Reconciliation compares the stored balance with the transaction log.
type Reconciliation struct {
	MemberID MemberID
	Balance  Amount
	LogTotal Amount
}

func (r Reconciliation) Drift() Amount { return r.Balance - r.LogTotal }
func (r Reconciliation) Consistent() bool { return r.Drift() == 0 }

// Reconcile reads the balance and the log total in one unit of work so both
// come from the same snapshot.
func (l *Ledger) Reconcile(ctx context.Context, id MemberID) (Reconciliation, error) {
	rec := Reconciliation{MemberID: id}
	err := l.store.WithTx(ctx, func(s Store) error {
		m, err := s.GetMember(ctx, id)
		if err != nil {
			return err
		}
		rec.Balance = m.Balance
		rec.LogTotal, err = s.SumTransactions(ctx, id)
		return err
	})
	return rec, err
}

func (l *Ledger) publish(ctx context.Context, ev Event) {
	if err := l.pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Printf("[Events] publish %s for member %s failed: %v", ev.Type, ev.MemberID, err)
	}
}

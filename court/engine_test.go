package court_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/court-engine/court"
)

// =============================================================================
// BOOKING
// =============================================================================

func TestEngine_Book_ChargesFee(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		engine := court.NewEngine(s, court.WithClock(fixedClock()), court.WithPublisher(pub))
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), m.ID, 500)

		booking, err := engine.Book(ctx, m.ID, 3, testDay, "17:00")
		require.NoError(t, err)
		assert.Equal(t, court.BookingFee, booking.Charged)
		assert.Equal(t, court.Amount(300), booking.Balance)
		assert.NotEmpty(t, booking.Reservation.ID)

		taken, err := engine.IsOccupied(ctx, 3, testDay, "17:00")
		require.NoError(t, err)
		assert.True(t, taken)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, court.TxBooking, txs[0].Kind)
		assert.Equal(t, -court.BookingFee, txs[0].Amount)
		assert.Equal(t, booking.Reservation.ID, txs[0].ReservationID)

		require.Len(t, pub.events, 2)
		assert.Equal(t, court.EventReservationBooked, pub.events[1].Type)
		assert.Equal(t, "17:00", pub.events[1].TimeLabel)
	})
}

func TestEngine_Book_InsufficientFundsThenTopUp(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: Member with balance 150
		ctx := context.Background()
		engine := court.NewEngine(s, court.WithClock(fixedClock()))
		ledger := engine.Ledger()
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, ledger, m.ID, 150)

		// WHEN: Booking
		// THEN: Insufficient funds, slot stays free
		_, err := engine.Book(ctx, m.ID, 1, testDay, "16:00")
		require.ErrorIs(t, err, court.ErrInsufficientFunds)
		var fundsErr *court.InsufficientFundsError
		require.ErrorAs(t, err, &fundsErr)
		assert.Equal(t, court.Amount(150), fundsErr.Balance)
		assert.Equal(t, court.BookingFee, fundsErr.Required)

		taken, err := engine.IsOccupied(ctx, 1, testDay, "16:00")
		require.NoError(t, err)
		assert.False(t, taken)

		// WHEN: Admin tops up 100, member books again
		balance, err := ledger.TopUp(ctx, m.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(250), balance)

		booking, err := engine.Book(ctx, m.ID, 1, testDay, "16:00")
		require.NoError(t, err)
		assert.Equal(t, court.Amount(50), booking.Balance)

		// THEN: Balance 50, log holds +150, +100 and -200
		balance, err = ledger.Balance(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(50), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		var amounts []court.Amount
		for _, tx := range txs {
			amounts = append(amounts, tx.Amount)
		}
		assert.ElementsMatch(t, []court.Amount{150, 100, -200}, amounts)
	})
}

func TestEngine_Book_SlotTaken(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		engine := court.NewEngine(s)
		a := addMember(t, s, "Jane", "Doe", court.RoleMember)
		b := addMember(t, s, "John", "Roe", court.RoleMember)
		fund(t, engine.Ledger(), a.ID, 1000)
		fund(t, engine.Ledger(), b.ID, 1000)

		_, err := engine.Book(ctx, a.ID, 2, testDay, "19:00")
		require.NoError(t, err)

		_, err = engine.Book(ctx, b.ID, 2, testDay, "19:00")
		require.ErrorIs(t, err, court.ErrSlotTaken)
		var takenErr *court.SlotTakenError
		require.ErrorAs(t, err, &takenErr)
		assert.Equal(t, 2, takenErr.Slot.CourtNo)

		// The loser was not charged.
		balance, err := engine.Ledger().Balance(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(1000), balance)

		// Same slot, other day, is free.
		_, err = engine.Book(ctx, b.ID, 2, testDay.AddDays(1), "19:00")
		assert.NoError(t, err)
	})
}

func TestEngine_Book_InvalidSlot(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		engine := court.NewEngine(s)
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), m.ID, 1000)

		for _, tc := range []struct {
			court int
			label string
		}{{0, "15:00"}, {6, "15:00"}, {1, "21:00"}, {1, "3pm"}} {
			_, err := engine.Book(ctx, m.ID, tc.court, testDay, tc.label)
			assert.ErrorIs(t, err, court.ErrInvalidSlot, "court %d label %q", tc.court, tc.label)
		}

		balance, err := engine.Ledger().Balance(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(1000), balance)
	})
}

func TestEngine_Book_AdminIsFree(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: An admin with zero balance
		ctx := context.Background()
		engine := court.NewEngine(s)
		admin := addMember(t, s, "Ada", "Admin", court.RoleAdmin)

		// WHEN: Booking
		booking, err := engine.Book(ctx, admin.ID, 5, testDay, "20:00")

		// THEN: Booked, nothing charged, no transaction
		require.NoError(t, err)
		assert.Equal(t, court.Amount(0), booking.Charged)
		assert.Equal(t, court.Amount(0), booking.Balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestEngine_Book_FundedAdminKeepsBalanceAndSlotRule(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: An admin holding 500 and a funded member
		ctx := context.Background()
		engine := court.NewEngine(s)
		admin := addMember(t, s, "Ada", "Admin", court.RoleAdmin)
		member := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), admin.ID, 500)
		fund(t, engine.Ledger(), member.ID, 1000)

		// WHEN: The admin books
		booking, err := engine.Book(ctx, admin.ID, 2, testDay, "18:00")

		// THEN: Balance untouched, no booking transaction
		require.NoError(t, err)
		assert.Equal(t, court.Amount(0), booking.Charged)
		assert.Equal(t, court.Amount(500), booking.Balance)

		balance, err := engine.Ledger().Balance(ctx, admin.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(500), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		for _, tx := range txs {
			assert.Equal(t, court.TxTopUp, tx.Kind)
		}

		// WHEN: The same slot is booked again, by a member and by the admin
		_, err = engine.Book(ctx, member.ID, 2, testDay, "18:00")
		assert.ErrorIs(t, err, court.ErrSlotTaken)
		_, err = engine.Book(ctx, admin.ID, 2, testDay, "18:00")
		assert.ErrorIs(t, err, court.ErrSlotTaken)

		// THEN: Still exactly one reservation, nobody charged
		all, err := s.ListReservations(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.Equal(t, admin.ID, all[0].MemberID)

		balance, err = engine.Ledger().Balance(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(1000), balance)
	})
}

func TestEngine_Book_UnknownMember(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		engine := court.NewEngine(s)
		_, err := engine.Book(context.Background(), 4242, 1, testDay, "15:00")
		require.ErrorIs(t, err, court.ErrMemberNotFound)

		taken, err := engine.IsOccupied(context.Background(), 1, testDay, "15:00")
		require.NoError(t, err)
		assert.False(t, taken)
	})
}

func TestEngine_Book_CancelledRequestContextStillCommits(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		engine := court.NewEngine(s)
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), m.ID, 200)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := engine.Book(ctx, m.ID, 4, testDay, "18:00")
		require.NoError(t, err)

		rec, err := engine.Ledger().Reconcile(context.Background(), m.ID)
		require.NoError(t, err)
		assert.True(t, rec.Consistent())
		assert.Equal(t, court.Amount(0), rec.Balance)
	})
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestEngine_ConcurrentBookingsOfOneSlot_OneWinner(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: Ten funded members
		ctx := context.Background()
		engine := court.NewEngine(s)
		var members []court.Member
		for i := 0; i < 10; i++ {
			m := addMember(t, s, "Player", string(rune('A'+i)), court.RoleMember)
			fund(t, engine.Ledger(), m.ID, 1000)
			members = append(members, m)
		}

		// WHEN: All book court 1 at 15:00 at once
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			wins    int
			taken   int
			unknown []error
		)
		for _, m := range members {
			wg.Add(1)
			go func(id court.MemberID) {
				defer wg.Done()
				_, err := engine.Book(ctx, id, 1, testDay, "15:00")
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					wins++
				case errors.Is(err, court.ErrSlotTaken):
					taken++
				default:
					unknown = append(unknown, err)
				}
			}(m.ID)
		}
		wg.Wait()

		// THEN: Exactly one booking, exactly one charge
		require.Empty(t, unknown)
		assert.Equal(t, 1, wins)
		assert.Equal(t, 9, taken)

		all, err := s.ListReservations(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)

		var charged int
		for _, m := range members {
			rec, err := engine.Ledger().Reconcile(ctx, m.ID)
			require.NoError(t, err)
			assert.True(t, rec.Consistent())
			if rec.Balance == 1000-court.BookingFee {
				charged++
			}
		}
		assert.Equal(t, 1, charged)
	})
}

func TestEngine_ConcurrentChargesNeverOverspend(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: A member who can afford exactly one booking
		ctx := context.Background()
		engine := court.NewEngine(s)
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), m.ID, court.BookingFee)

		// WHEN: Booking five different slots at once
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for c := 1; c <= court.Courts; c++ {
			wg.Add(1)
			go func(courtNo int) {
				defer wg.Done()
				_, err := engine.Book(ctx, m.ID, courtNo, testDay, "19:00")
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, court.ErrInsufficientFunds)
			}(c)
		}
		wg.Wait()

		// THEN: One booking, balance zero, log consistent
		assert.Equal(t, 1, wins)
		rec, err := engine.Ledger().Reconcile(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(0), rec.Balance)
		assert.True(t, rec.Consistent())
	})
}

// =============================================================================
// CANCELLATION
// =============================================================================

func TestEngine_Cancel_NoRefund(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		engine := court.NewEngine(s, court.WithPublisher(pub))
		m := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), m.ID, 300)

		booking, err := engine.Book(ctx, m.ID, 2, testDay, "16:00")
		require.NoError(t, err)

		cancelled, err := engine.Cancel(ctx, booking.Reservation.ID)
		require.NoError(t, err)
		assert.Equal(t, booking.Reservation.ID, cancelled.ID)

		// Slot is free again, fee is kept.
		taken, err := engine.IsOccupied(ctx, 2, testDay, "16:00")
		require.NoError(t, err)
		assert.False(t, taken)

		balance, err := engine.Ledger().Balance(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(100), balance)

		assert.Equal(t, court.EventReservationCancelled, pub.events[len(pub.events)-1].Type)

		_, err = engine.Cancel(ctx, booking.Reservation.ID)
		assert.ErrorIs(t, err, court.ErrReservationNotFound)
	})
}

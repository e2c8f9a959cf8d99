package court_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/court/store"
)

func TestQuery_GridForDate_Empty(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		grid, err := court.NewQuery(s).GridForDate(context.Background(), testDay)
		require.NoError(t, err)
		assert.Equal(t, 0, grid.Occupied())
		assert.Equal(t, testDay.String(), grid.Day.String())
	})
}

func TestQuery_GridForDate_JaneDoe(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: Jane Doe books court 3 at 17:00
		ctx := context.Background()
		engine := court.NewEngine(s)
		jane := addMember(t, s, "Jane", "Doe", court.RoleMember)
		fund(t, engine.Ledger(), jane.ID, 200)
		_, err := engine.Book(ctx, jane.ID, 3, testDay, "17:00")
		require.NoError(t, err)

		// WHEN: Rendering the grid
		grid, err := court.NewQuery(s).GridForDate(ctx, testDay)
		require.NoError(t, err)

		// THEN: Only cell (2,2) is occupied, by Jane Doe
		for row := 0; row < court.Courts; row++ {
			for col := 0; col < court.Columns; col++ {
				cell := grid.Cells[row][col]
				if row == 2 && col == 2 {
					assert.True(t, cell.Occupied)
					assert.Equal(t, court.Name{First: "Jane", Last: "Doe"}, cell.Member)
					continue
				}
				assert.False(t, cell.Occupied, "cell (%d,%d)", row, col)
			}
		}

		// Other days are unaffected.
		other, err := court.NewQuery(s).GridForDate(ctx, testDay.AddDays(1))
		require.NoError(t, err)
		assert.Equal(t, 0, other.Occupied())
	})
}

// corruptStore returns stored rows that break the slot invariant.
type corruptStore struct {
	court.Store
	rows []court.ReservationView
}

func (c corruptStore) ReservationsForDay(context.Context, court.Day) ([]court.ReservationView, error) {
	return c.rows, nil
}

func TestQuery_GridForDate_IntegrityViolation(t *testing.T) {
	row := func(id string, courtNo int, label string) court.ReservationView {
		return court.ReservationView{Reservation: court.Reservation{
			ID: court.ReservationID(id), CourtNo: courtNo, Day: testDay, TimeLabel: label,
		}}
	}

	tests := []struct {
		name string
		rows []court.ReservationView
	}{
		{name: "duplicate cell", rows: []court.ReservationView{row("r1", 1, "15:00"), row("r2", 1, "15:00")}},
		{name: "unknown label", rows: []court.ReservationView{row("r1", 1, "22:00")}},
		{name: "unknown court", rows: []court.ReservationView{row("r1", 7, "15:00")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := court.NewQuery(corruptStore{Store: store.NewMemory(), rows: tt.rows})
			_, err := q.GridForDate(context.Background(), testDay)
			require.ErrorIs(t, err, court.ErrIntegrityViolation)
			var ierr *court.IntegrityError
			assert.ErrorAs(t, err, &ierr)
		})
	}
}

func TestQuery_Histories(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		engine := court.NewEngine(s, court.WithClock(fixedClock()))
		q := court.NewQuery(s)
		jane := addMember(t, s, "Jane", "Doe", court.RoleMember)
		john := addMember(t, s, "John", "Roe", court.RoleMember)
		fund(t, engine.Ledger(), jane.ID, 2000)
		fund(t, engine.Ledger(), john.ID, 2000)

		// Jane books seven slots over three days, John one.
		for i := 0; i < 7; i++ {
			day := testDay.AddDays(i / court.Columns)
			_, err := engine.Book(ctx, jane.ID, 1, day, court.TimeLabels[i%court.Columns])
			require.NoError(t, err, fmt.Sprintf("booking %d", i))
		}
		_, err := engine.Book(ctx, john.ID, 2, testDay, "15:00")
		require.NoError(t, err)

		mine, err := q.PersonalHistory(ctx, jane.ID)
		require.NoError(t, err)
		require.Len(t, mine, 7)
		// Newest day first.
		assert.Equal(t, testDay.AddDays(1).String(), mine[0].Day.String())
		assert.Equal(t, "20:00", mine[1].TimeLabel)

		all, err := q.AllHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 8)
		for _, v := range all {
			assert.NotEmpty(t, v.Member.First)
		}

		txs, err := q.TransactionHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 10)
		assert.True(t, !txs[0].CreatedAt.Before(txs[len(txs)-1].CreatedAt))

		info, err := q.MemberInfo(ctx, jane.ID)
		require.NoError(t, err)
		assert.Equal(t, "Jane", info.FirstName)
		assert.Len(t, info.Recent, court.RecentReservations)
		assert.Equal(t, court.Amount(2000-7*court.BookingFee), info.Balance)

		_, err = q.MemberInfo(ctx, 999)
		assert.ErrorIs(t, err, court.ErrMemberNotFound)
	})
}

func TestRegisterMember(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		m, err := court.RegisterMember(ctx, s, court.NewMember{
			FirstName: " Jane ", LastName: "Doe", Email: "Jane.Doe@Club.test",
		})
		require.NoError(t, err)
		assert.Equal(t, "jane.doe@club.test", m.Email)
		assert.Equal(t, court.RoleMember, m.Role)
		assert.Equal(t, "Jane", m.FirstName)
		assert.Equal(t, court.Amount(0), m.Balance)

		_, err = court.RegisterMember(ctx, s, court.NewMember{FirstName: "J", LastName: "D", Email: "jane.doe@club.test"})
		assert.ErrorIs(t, err, court.ErrEmailTaken)

		_, err = court.RegisterMember(ctx, s, court.NewMember{FirstName: "J", LastName: "D", Email: "not-an-email"})
		assert.Error(t, err)

		_, err = court.RegisterMember(ctx, s, court.NewMember{FirstName: "J", LastName: "D", Email: "x@club.test", Role: "owner"})
		assert.Error(t, err)

		found, err := s.GetMemberByEmail(ctx, "jane.doe@club.test")
		require.NoError(t, err)
		assert.Equal(t, m.ID, found.ID)
	})
}

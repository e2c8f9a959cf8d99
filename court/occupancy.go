/*
occupancy.go - Occupancy grid and history queries

PURPOSE:
  Read side of the engine. Builds the 5 x 6 grid for one day and the
  reservation / transaction histories. Reads only committed rows and takes
  no locks of its own.

GRID RULES:
  - Every cell starts empty, so the grid is always dense.
  - Each reservation is placed with CellFor.
  - Two reservations on one cell, or a stored row with an unknown label,
    mean the uniqueness invariant was broken upstream: the query fails with
    *IntegrityError and logs it loudly instead of overwriting.
*/
package court

import (
	"context"
	"log"
)

// RecentReservations is how many reservations MemberInfo returns.
const RecentReservations = 5

type Query struct {
	store Store
}

func NewQuery(store Store) *Query {
	return &Query{store: store}
}

// GridForDate returns the occupancy grid for a day.
func (q *Query) GridForDate(ctx context.Context, day Day) (Grid, error) {
	day = DayOf(day.Time)
	rows, err := q.store.ReservationsForDay(ctx, day)
	if err != nil {
		return Grid{}, err
	}

	grid := Grid{Day: day}
	for _, r := range rows {
		row, col, err := CellFor(r.CourtNo, r.TimeLabel)
		if err != nil {
			ierr := &IntegrityError{Day: day, CourtNo: r.CourtNo, Label: r.TimeLabel,
				Conflict: r.ID, Reason: err.Error()}
			log.Printf("[Query] INTEGRITY: %v", ierr)
			return Grid{}, ierr
		}
		cell := &grid.Cells[row][col]
		if cell.Occupied {
			ierr := &IntegrityError{Day: day, CourtNo: r.CourtNo, Label: r.TimeLabel,
				Existing: cell.ReservationID, Conflict: r.ID, Reason: "two reservations hold one slot"}
			log.Printf("[Query] INTEGRITY: %v", ierr)
			return Grid{}, ierr
		}
		*cell = Cell{Occupied: true, Member: r.Member, ReservationID: r.ID}
	}
	return grid, nil
}

// PersonalHistory lists one member's reservations, newest first.
func (q *Query) PersonalHistory(ctx context.Context, id MemberID) ([]Reservation, error) {
	return q.store.ReservationsByMember(ctx, id, 0)
}

// AllHistory lists every reservation with the member's name, newest first.
func (q *Query) AllHistory(ctx context.Context) ([]ReservationView, error) {
	return q.store.ListReservations(ctx)
}

// TransactionHistory lists every ledger row with the member's name, newest first.
func (q *Query) TransactionHistory(ctx context.Context) ([]TransactionView, error) {
	return q.store.ListTransactions(ctx)
}

// MemberInfo returns a member profile with its latest reservations.
func (q *Query) MemberInfo(ctx context.Context, id MemberID) (MemberInfo, error) {
	m, err := q.store.GetMember(ctx, id)
	if err != nil {
		return MemberInfo{}, err
	}
	recent, err := q.store.ReservationsByMember(ctx, id, RecentReservations)
	if err != nil {
		return MemberInfo{}, err
	}
	return MemberInfo{Member: m, Recent: recent}, nil
}

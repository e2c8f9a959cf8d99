/*
grid.go - Slot grid model

PURPOSE:
  The club has a fixed 5 x 6 grid: courts 1..5, six one-hour time labels
  from 15:00 to 20:00. A slot is one (court, day, time label) triple and can
  hold at most one reservation.

MAPPING:
  row    = courtNo - 1
  column = index of the time label in TimeLabels

  Unknown labels are rejected when a slot is built, never silently dropped
  when the grid is rendered.

SEE ALSO:
  - engine.go: validates every booking through NewSlot
  - occupancy.go: places reservations with CellFor
*/
package court

import "fmt"

// Courts is the number of courts in the club.
const Courts = 5

// TimeLabels are the bookable start times, in column order.
var TimeLabels = [...]string{"15:00", "16:00", "17:00", "18:00", "19:00", "20:00"}

// Columns is the number of time labels per court.
const Columns = len(TimeLabels)

var timeIndex = func() map[string]int {
	m := make(map[string]int, len(TimeLabels))
	for i, label := range TimeLabels {
		m[label] = i
	}
	return m
}()

// CellFor maps a court number and time label to grid coordinates.
func CellFor(courtNo int, timeLabel string) (row, col int, err error) {
	if courtNo < 1 || courtNo > Courts {
		return 0, 0, &InvalidSlotError{CourtNo: courtNo, TimeLabel: timeLabel,
			Reason: fmt.Sprintf("court must be between 1 and %d", Courts)}
	}
	col, ok := timeIndex[timeLabel]
	if !ok {
		return 0, 0, &InvalidSlotError{CourtNo: courtNo, TimeLabel: timeLabel,
			Reason: "unknown time label"}
	}
	return courtNo - 1, col, nil
}

// =============================================================================
// SLOT
// =============================================================================

// Slot is a validated (court, day, time label) triple.
type Slot struct {
	CourtNo   int
	Day       Day
	TimeLabel string
}

// NewSlot validates the court and label and normalizes the day.
func NewSlot(courtNo int, day Day, timeLabel string) (Slot, error) {
	if _, _, err := CellFor(courtNo, timeLabel); err != nil {
		return Slot{}, err
	}
	if day.IsZero() {
		return Slot{}, &InvalidSlotError{CourtNo: courtNo, TimeLabel: timeLabel, Reason: "missing date"}
	}
	return Slot{CourtNo: courtNo, Day: DayOf(day.Time), TimeLabel: timeLabel}, nil
}

func (s Slot) String() string {
	return fmt.Sprintf("court %d %s %s", s.CourtNo, s.Day, s.TimeLabel)
}

// =============================================================================
// GRID
// =============================================================================

// Cell is one grid position. The zero value is an empty cell.
type Cell struct {
	Occupied      bool
	Member        Name
	ReservationID ReservationID
}

// Grid is the dense occupancy view for one day.
type Grid struct {
	Day   Day
	Cells [Courts][Columns]Cell
}

// At returns the cell for a court and label; an invalid pair yields an empty cell.
func (g *Grid) At(courtNo int, timeLabel string) Cell {
	row, col, err := CellFor(courtNo, timeLabel)
	if err != nil {
		return Cell{}
	}
	return g.Cells[row][col]
}

// Occupied counts the booked cells.
func (g *Grid) Occupied() int {
	n := 0
	for _, row := range g.Cells {
		for _, c := range row {
			if c.Occupied {
				n++
			}
		}
	}
	return n
}

package court

import (
	"fmt"
	"time"
)

// =============================================================================
// DAY - Calendar day with the time of day stripped
// =============================================================================

// DayLayout is the canonical textual form of a Day, also used as storage key.
const DayLayout = "2006-01-02"

// Day is a calendar day in UTC. Reservations are keyed by Day, so two inputs
// naming the same date always compare equal.
type Day struct {
	Time time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf strips the time of day, keeping the calendar date as seen in t's location.
func DayOf(t time.Time) Day {
	return NewDay(t.Year(), t.Month(), t.Day())
}

func Today() Day { return DayOf(time.Now()) }

// ParseDay accepts "2006-01-02" or a full RFC 3339 timestamp.
func ParseDay(s string) (Day, error) {
	if t, err := time.Parse(DayLayout, s); err == nil {
		return DayOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Day{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return DayOf(t), nil
}

// MustParseDay is ParseDay for constants and tests.
func MustParseDay(s string) Day {
	d, err := ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Day) Equal(other Day) bool  { return d.Time.Equal(other.Time) }
func (d Day) Before(other Day) bool { return d.Time.Before(other.Time) }
func (d Day) After(other Day) bool  { return d.Time.After(other.Time) }
func (d Day) AddDays(n int) Day     { return Day{Time: d.Time.AddDate(0, 0, n)} }
func (d Day) IsZero() bool          { return d.Time.IsZero() }
func (d Day) String() string        { return d.Time.Format(DayLayout) }

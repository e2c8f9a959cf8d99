package court

import (
	"context"
	"time"
)

// EventType is the routing key of a domain event.
type EventType string

const (
	EventReservationBooked    EventType = "reservation.booked"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventBalanceToppedUp      EventType = "balance.topped_up"
)

// Event is emitted after a unit of work commits.
type Event struct {
	Type          EventType     `json:"type"`
	MemberID      MemberID      `json:"member_id"`
	ReservationID ReservationID `json:"reservation_id,omitempty"`
	CourtNo       int           `json:"court_no,omitempty"`
	Day           string        `json:"date,omitempty"`
	TimeLabel     string        `json:"time,omitempty"`
	Amount        Amount        `json:"amount,omitempty"`
	Balance       Amount        `json:"balance"`
	At            time.Time     `json:"at"`
}

// Publisher delivers committed events. Failures never undo a commit.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Package notify delivers committed court events to other systems.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/warp/court-engine/court"
)

// =============================================================================
// AMQP
// =============================================================================

// AMQPPublisher publishes each event as JSON on a topic exchange, routed by
// event type (reservation.booked, balance.topped_up, ...).
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev court.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    ev.At,
		Body:         body,
	})
}

func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// =============================================================================
// LOG
// =============================================================================

// LogPublisher writes events to the standard logger. Used when no broker is
// configured so events remain visible in development.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev court.Event) error {
	switch ev.Type {
	case court.EventBalanceToppedUp:
		log.Printf("[Events] %s member=%s amount=%s balance=%s", ev.Type, ev.MemberID, ev.Amount, ev.Balance)
	default:
		log.Printf("[Events] %s member=%s reservation=%s court=%d %s %s",
			ev.Type, ev.MemberID, ev.ReservationID, ev.CourtNo, ev.Day, ev.TimeLabel)
	}
	return nil
}

// =============================================================================
// FAN-OUT
// =============================================================================

// Multi publishes to every publisher and returns the first error.
type Multi []court.Publisher

func (m Multi) Publish(ctx context.Context, ev court.Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

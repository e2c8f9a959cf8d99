package court

import (
	"time"

	"github.com/google/uuid"
)

// Option configures a Ledger or Engine.
type Option func(*options)

type options struct {
	publisher Publisher
	now       func() time.Time
	newID     func() ReservationID
}

// WithPublisher wires a publisher that receives committed events.
func WithPublisher(p Publisher) Option {
	return func(o *options) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithClock overrides time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithIDGenerator overrides reservation id generation.
func WithIDGenerator(gen func() ReservationID) Option {
	return func(o *options) { o.newID = gen }
}

func buildOptions(opts []Option) options {
	o := options{
		publisher: NopPublisher{},
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() ReservationID { return ReservationID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

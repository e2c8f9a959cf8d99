package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/notify"
)

type countingPublisher struct {
	n   int
	err error
}

func (c *countingPublisher) Publish(context.Context, court.Event) error {
	c.n++
	return c.err
}

func TestMulti_PublishesToAll(t *testing.T) {
	failing := &countingPublisher{err: errors.New("broker down")}
	ok := &countingPublisher{}

	err := notify.Multi{notify.LogPublisher{}, failing, ok}.Publish(context.Background(), court.Event{
		Type: court.EventReservationBooked, MemberID: 1, CourtNo: 3, Day: "2025-06-14", TimeLabel: "17:00",
	})

	assert.EqualError(t, err, "broker down")
	assert.Equal(t, 1, failing.n)
	assert.Equal(t, 1, ok.n, "a failing publisher does not stop the others")
}

func TestNewAMQPPublisher_BadURL(t *testing.T) {
	_, err := notify.NewAMQPPublisher("not-a-url", "court.events")
	assert.Error(t, err)
}

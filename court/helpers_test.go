package court_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/court/store"
	"github.com/warp/court-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// backend names a store constructor; every engine test runs against each one.
type backend struct {
	name string
	open func(t *testing.T) court.TxStore
}

func backends() []backend {
	return []backend{
		{name: "memory", open: func(t *testing.T) court.TxStore { return store.NewMemory() }},
		{name: "sqlite", open: func(t *testing.T) court.TxStore {
			s, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func eachBackend(t *testing.T, fn func(t *testing.T, s court.TxStore)) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			fn(t, b.open(t))
		})
	}
}

var testDay = court.NewDay(2025, time.June, 14)

// fixedClock returns a clock that advances one second per call so ordering
// by created_at is deterministic.
func fixedClock() func() time.Time {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func addMember(t *testing.T, s court.Store, first, last string, role court.Role) court.Member {
	t.Helper()
	m, err := court.RegisterMember(context.Background(), s, court.NewMember{
		FirstName: first,
		LastName:  last,
		Email:     first + "." + last + "@club.test",
		Role:      role,
	})
	require.NoError(t, err)
	return m
}

func fund(t *testing.T, l *court.Ledger, id court.MemberID, amount court.Amount) {
	t.Helper()
	_, err := l.TopUp(context.Background(), id, amount)
	require.NoError(t, err)
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	events []court.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev court.Event) error {
	p.events = append(p.events, ev)
	return nil
}

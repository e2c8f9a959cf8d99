// Package store provides an in-memory court.TxStore.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/court-engine/court"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.Mutex
	st *state
}

type state struct {
	members      map[court.MemberID]court.Member
	emails       map[string]court.MemberID
	nextMemberID court.MemberID
	reservations map[court.ReservationID]court.Reservation
	slots        map[slotKey]court.ReservationID
	transactions []court.Transaction
	nextTxID     int64
}

// slotKey avoids time.Time map keys.
type slotKey struct {
	court int
	day   string
	label string
}

func keyOf(s court.Slot) slotKey {
	return slotKey{court: s.CourtNo, day: s.Day.String(), label: s.TimeLabel}
}

func NewMemory() *Memory {
	return &Memory{st: &state{
		members:      make(map[court.MemberID]court.Member),
		emails:       make(map[string]court.MemberID),
		nextMemberID: 1,
		reservations: make(map[court.ReservationID]court.Reservation),
		slots:        make(map[slotKey]court.ReservationID),
		nextTxID:     1,
	}}
}

// Reset clears all data (for testing/demo).
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	*m.st = *NewMemory().st
	return nil
}

// WithTx executes fn within a transaction.
// The whole unit holds the store lock; on error the snapshot is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(court.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()

	// The view shares state but has its own (uncontended) mutex, so calls
	// made through it do not deadlock on the lock held here.
	view := &Memory{st: m.st}
	if err := fn(view); err != nil {
		*m.st = *snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := &state{
		members:      make(map[court.MemberID]court.Member, len(s.members)),
		emails:       make(map[string]court.MemberID, len(s.emails)),
		nextMemberID: s.nextMemberID,
		reservations: make(map[court.ReservationID]court.Reservation, len(s.reservations)),
		slots:        make(map[slotKey]court.ReservationID, len(s.slots)),
		transactions: append([]court.Transaction(nil), s.transactions...),
		nextTxID:     s.nextTxID,
	}
	for k, v := range s.members {
		c.members[k] = v
	}
	for k, v := range s.emails {
		c.emails[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.slots {
		c.slots[k] = v
	}
	return c
}

// =============================================================================
// MEMBERS
// =============================================================================

func (m *Memory) CreateMember(_ context.Context, mem court.Member) (court.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.st.emails[mem.Email]; exists {
		return court.Member{}, court.ErrEmailTaken
	}
	mem.ID = m.st.nextMemberID
	m.st.nextMemberID++
	mem.Balance = 0
	m.st.members[mem.ID] = mem
	m.st.emails[mem.Email] = mem.ID
	return mem, nil
}

func (m *Memory) GetMember(_ context.Context, id court.MemberID) (court.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.st.members[id]
	if !ok {
		return court.Member{}, court.ErrMemberNotFound
	}
	return mem, nil
}

func (m *Memory) GetMemberByEmail(_ context.Context, email string) (court.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.st.emails[email]
	if !ok {
		return court.Member{}, court.ErrMemberNotFound
	}
	return m.st.members[id], nil
}

func (m *Memory) ListMembers(_ context.Context) ([]court.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]court.Member, 0, len(m.st.members))
	for _, mem := range m.st.members {
		out = append(out, mem)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) AddToBalance(_ context.Context, id court.MemberID, delta court.Amount) (court.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mem, ok := m.st.members[id]
	if !ok {
		return 0, court.ErrMemberNotFound
	}
	if mem.Balance+delta < 0 {
		return 0, &court.ResultingBalanceError{MemberID: id, Balance: mem.Balance, Delta: delta}
	}
	mem.Balance += delta
	m.st.members[id] = mem
	return mem.Balance, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (m *Memory) AppendTransaction(_ context.Context, tx court.Transaction) (court.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx.ID = m.st.nextTxID
	m.st.nextTxID++
	m.st.transactions = append(m.st.transactions, tx)
	return tx, nil
}

func (m *Memory) SumTransactions(_ context.Context, id court.MemberID) (court.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total court.Amount
	for _, tx := range m.st.transactions {
		if tx.MemberID == id {
			total += tx.Amount
		}
	}
	return total, nil
}

func (m *Memory) ListTransactions(_ context.Context) ([]court.TransactionView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]court.TransactionView, 0, len(m.st.transactions))
	for _, tx := range m.st.transactions {
		out = append(out, court.TransactionView{Transaction: tx, Member: m.st.nameOf(tx.MemberID)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (m *Memory) InsertReservation(_ context.Context, r court.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot := keyOf(r.Slot())
	if _, taken := m.st.slots[slot]; taken {
		return court.ErrSlotTaken
	}
	m.st.reservations[r.ID] = r
	m.st.slots[slot] = r.ID
	return nil
}

func (m *Memory) DeleteReservation(_ context.Context, id court.ReservationID) (court.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.st.reservations[id]
	if !ok {
		return court.Reservation{}, court.ErrReservationNotFound
	}
	delete(m.st.reservations, id)
	delete(m.st.slots, keyOf(r.Slot()))
	return r, nil
}

func (m *Memory) FindReservation(_ context.Context, slot court.Slot) (court.Reservation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.st.slots[keyOf(slot)]
	if !ok {
		return court.Reservation{}, false, nil
	}
	return m.st.reservations[id], true, nil
}

func (m *Memory) ReservationsForDay(_ context.Context, day court.Day) ([]court.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []court.ReservationView
	for _, r := range m.st.reservations {
		if r.Day.Equal(day) {
			out = append(out, court.ReservationView{Reservation: r, Member: m.st.nameOf(r.MemberID)})
		}
	}
	sortViews(out)
	return out, nil
}

func (m *Memory) ReservationsByMember(_ context.Context, id court.MemberID, limit int) ([]court.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var views []court.ReservationView
	for _, r := range m.st.reservations {
		if r.MemberID == id {
			views = append(views, court.ReservationView{Reservation: r})
		}
	}
	sortViews(views)
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	out := make([]court.Reservation, len(views))
	for i, v := range views {
		out[i] = v.Reservation
	}
	return out, nil
}

func (m *Memory) ListReservations(_ context.Context) ([]court.ReservationView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]court.ReservationView, 0, len(m.st.reservations))
	for _, r := range m.st.reservations {
		out = append(out, court.ReservationView{Reservation: r, Member: m.st.nameOf(r.MemberID)})
	}
	sortViews(out)
	return out, nil
}

func (s *state) nameOf(id court.MemberID) court.Name {
	return s.members[id].Name()
}

// sortViews orders newest day first, then latest time, then court.
func sortViews(v []court.ReservationView) {
	sort.Slice(v, func(i, j int) bool {
		a, b := v[i], v[j]
		if !a.Day.Equal(b.Day) {
			return a.Day.After(b.Day)
		}
		if a.TimeLabel != b.TimeLabel {
			return a.TimeLabel > b.TimeLabel
		}
		return a.CourtNo < b.CourtNo
	})
}

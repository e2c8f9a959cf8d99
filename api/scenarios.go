/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Every scenario goes through the real engine and ledger,
	so the seeded data satisfies the same invariants as production data.

AVAILABLE SCENARIOS:

	club-day:        Admin + three members, bookings today and tomorrow
	low-balance:     Member with 1.50 who cannot book until topped up
	fully-booked:    Every slot of today taken, for grid rendering

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the admin first so it gets member id 1
 3. Create members and top them up
 4. Book slots through the engine

USAGE VIA API:

	POST /api/scenarios/load
	{"scenarioId": "club-day"}

	Every seeded account uses the password "court-demo".

NOTE:

	Scenarios reset the database. Only use in development/demo environments.
	Tokens issued before a reset name members that may no longer exist.

SEE ALSO:
  - handlers.go: Handler dependencies
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/court-engine/court"
	"github.com/warp/court-engine/identity"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "court-demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "club-day",
		Name:        "Club Day",
		Description: "Admin plus three funded members with a mix of bookings today and tomorrow",
	},
	{
		ID:          "low-balance",
		Name:        "Low Balance",
		Description: "Member with 1.50 who is refused until an admin tops them up",
	},
	{
		ID:          "fully-booked",
		Name:        "Fully Booked",
		Description: "All 30 slots of today taken by members and the admin",
	},
}

type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.loadScenario(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

var errUnknownScenario = errors.New("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "club-day":
		load = h.loadClubDayScenario
	case "low-balance":
		load = h.loadLowBalanceScenario
	case "fully-booked":
		load = h.loadFullyBookedScenario
	default:
		return errUnknownScenario
	}

	rs, ok := h.Store.(resetter)
	if !ok {
		return errors.New("store does not support reset")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := rs.Reset(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		return err
	}
	h.currentScenario = id
	return nil
}

// LoadScenarioByID seeds the store outside of HTTP.
func (h *Handler) LoadScenarioByID(ctx context.Context, id string) error {
	return h.loadScenario(ctx, id)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seedMember struct {
	first, last, email string
	role               court.Role
	balance            court.Amount
}

func (h *Handler) seedMembers(ctx context.Context, seeds []seedMember) ([]court.Member, error) {
	hash, err := identity.HashPassword(DemoPassword)
	if err != nil {
		return nil, err
	}

	out := make([]court.Member, 0, len(seeds))
	for _, s := range seeds {
		m, err := court.RegisterMember(ctx, h.Store, court.NewMember{
			FirstName:    s.first,
			LastName:     s.last,
			Email:        s.email,
			PasswordHash: hash,
			Role:         s.role,
		})
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", s.email, err)
		}
		if s.balance != 0 {
			if m.Balance, err = h.Ledger.TopUp(ctx, m.ID, s.balance); err != nil {
				return nil, fmt.Errorf("top up %s: %w", s.email, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}

func (h *Handler) book(ctx context.Context, id court.MemberID, courtNo int, day court.Day, label string) error {
	if _, err := h.Engine.Book(ctx, id, courtNo, day, label); err != nil {
		return fmt.Errorf("book court %d %s %s: %w", courtNo, day, label, err)
	}
	return nil
}

func (h *Handler) loadClubDayScenario(ctx context.Context) error {
	members, err := h.seedMembers(ctx, []seedMember{
		{"Ada", "Admin", "admin@club.test", court.RoleAdmin, 0},
		{"Jane", "Doe", "jane@club.test", court.RoleMember, 2000},
		{"John", "Roe", "john@club.test", court.RoleMember, 1000},
		{"Mia", "Wong", "mia@club.test", court.RoleMember, 600},
	})
	if err != nil {
		return err
	}
	admin, jane, john, mia := members[0], members[1], members[2], members[3]

	today := court.Today()
	tomorrow := today.AddDays(1)
	bookings := []struct {
		who     court.MemberID
		courtNo int
		day     court.Day
		label   string
	}{
		{jane.ID, 3, today, "17:00"},
		{jane.ID, 3, today, "18:00"},
		{john.ID, 1, today, "15:00"},
		{mia.ID, 5, today, "20:00"},
		{admin.ID, 2, today, "19:00"},
		{john.ID, 4, tomorrow, "16:00"},
		{jane.ID, 1, tomorrow, "18:00"},
	}
	for _, b := range bookings {
		if err := h.book(ctx, b.who, b.courtNo, b.day, b.label); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadLowBalanceScenario(ctx context.Context) error {
	_, err := h.seedMembers(ctx, []seedMember{
		{"Ada", "Admin", "admin@club.test", court.RoleAdmin, 0},
		{"Sam", "Short", "sam@club.test", court.RoleMember, 150},
	})
	return err
}

func (h *Handler) loadFullyBookedScenario(ctx context.Context) error {
	members, err := h.seedMembers(ctx, []seedMember{
		{"Ada", "Admin", "admin@club.test", court.RoleAdmin, 0},
		{"Jane", "Doe", "jane@club.test", court.RoleMember, 10 * court.BookingFee},
		{"John", "Roe", "john@club.test", court.RoleMember, 10 * court.BookingFee},
	})
	if err != nil {
		return err
	}

	today := court.Today()
	i := 0
	for courtNo := 1; courtNo <= court.Courts; courtNo++ {
		for _, label := range court.TimeLabels {
			// Members take 10 slots each; the admin (free) takes the rest.
			who := members[0].ID
			if i < 20 {
				who = members[1+i%2].ID
			}
			if err := h.book(ctx, who, courtNo, today, label); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}

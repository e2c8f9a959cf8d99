/*
Package sqlite provides a SQLite-backed implementation of court.TxStore.

PURPOSE:
  Persists members, reservations and the transaction log. The invariants the
  engine relies on are enforced here, by the database, not by Go code.

KEY TABLES:
  members:      one row per member, denormalized running balance
  reservations: one row per booked slot
  transactions: append-only ledger

CONSTRAINTS:
  - members.email UNIQUE                                  -> court.ErrEmailTaken
  - reservations UNIQUE(court_no, day, time_label)        -> court.ErrSlotTaken
  - members.balance CHECK (balance >= 0)                  backstop for AddToBalance
  - members.id INTEGER PRIMARY KEY AUTOINCREMENT          storage-side id counter

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on transactions table
  - No DELETE statements on transactions table

BALANCE UPDATES:
  AddToBalance is a single conditional statement:

    UPDATE members SET balance = balance + ? WHERE id = ? AND balance + ? >= 0

  so concurrent top-ups and charges for one member never read a stale value.

CONCURRENCY:
  Writers are serialized by a mutex around every write path (same approach
  as single-writer SQLite in WAL mode). Transactions begin IMMEDIATE so a
  second process blocks on busy_timeout instead of failing mid-unit.

USAGE:
  store, err := sqlite.New("./data/court.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := court.NewEngine(store)

SEE ALSO:
  - court/store.go: Interface definitions
  - court/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/court-engine/court"
)

// timeLayout sorts lexicographically, unlike RFC3339Nano.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements court.TxStore using SQLite.
type Store struct {
	db   *sql.DB
	q    querier
	mu   *sync.Mutex
	inTx bool
}

// New opens the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if dbPath != ":memory:" {
		dsn += "&_journal_mode=WAL"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := Wrap(db)
	if err := store.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Wrap builds a Store over an already opened database without migrating it.
func Wrap(db *sql.DB) *Store {
	return &Store{db: db, q: db, mu: &sync.Mutex{}}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return court.StorageError("ping", s.db.PingContext(ctx))
}

// Migrate creates the database schema.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS members (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		first_name    TEXT NOT NULL,
		last_name     TEXT NOT NULL,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL DEFAULT '',
		balance       INTEGER NOT NULL DEFAULT 0 CHECK (balance >= 0),
		role          TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
		created_at    TEXT NOT NULL
	);

	-- CRITICAL: one reservation per (court, day, time label)
	CREATE TABLE IF NOT EXISTS reservations (
		id         TEXT PRIMARY KEY,
		member_id  INTEGER NOT NULL,
		court_no   INTEGER NOT NULL CHECK (court_no BETWEEN 1 AND 5),
		day        TEXT NOT NULL,
		time_label TEXT NOT NULL,
		created_at TEXT NOT NULL,
		UNIQUE (court_no, day, time_label)
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_day
		ON reservations(day);
	CREATE INDEX IF NOT EXISTS idx_reservations_member_day
		ON reservations(member_id, day DESC);

	-- Append-only ledger
	CREATE TABLE IF NOT EXISTS transactions (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		member_id      INTEGER NOT NULL,
		amount         INTEGER NOT NULL,
		kind           TEXT NOT NULL,
		reservation_id TEXT,
		created_at     TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_member
		ON transactions(member_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		ON transactions(created_at DESC);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM transactions;
		DELETE FROM reservations;
		DELETE FROM members;
		DELETE FROM sqlite_sequence WHERE name IN ('members', 'transactions');
	`)
	return court.StorageError("reset", err)
}

// =============================================================================
// TRANSACTIONS (court.TxStore)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(court.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return court.StorageError("begin transaction", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Store{db: s.db, q: sqlTx, mu: s.mu, inTx: true}); err != nil {
		return err
	}
	return court.StorageError("commit", sqlTx.Commit())
}

// write serializes single-statement writes made outside WithTx.
func (s *Store) write(fn func() error) error {
	if s.inTx {
		return fn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// =============================================================================
// MEMBERS
// =============================================================================

const memberColumns = `id, first_name, last_name, email, password_hash, balance, role, created_at`

func (s *Store) CreateMember(ctx context.Context, m court.Member) (court.Member, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Balance = 0
	err := s.write(func() error {
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO members (first_name, last_name, email, password_hash, balance, role, created_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			m.FirstName, m.LastName, m.Email, m.PasswordHash, string(m.Role), formatTime(m.CreatedAt))
		if err != nil {
			if isUniqueConstraintError(err) {
				return court.ErrEmailTaken
			}
			return court.StorageError("create member", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return court.StorageError("create member", err)
		}
		m.ID = court.MemberID(id)
		return nil
	})
	if err != nil {
		return court.Member{}, err
	}
	return m, nil
}

func (s *Store) GetMember(ctx context.Context, id court.MemberID) (court.Member, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, int64(id))
	return scanMember(row)
}

func (s *Store) GetMemberByEmail(ctx context.Context, email string) (court.Member, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE email = ?`, email)
	return scanMember(row)
}

func (s *Store) ListMembers(ctx context.Context) ([]court.Member, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, court.StorageError("list members", err)
	}
	defer rows.Close()

	var out []court.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, court.StorageError("list members", rows.Err())
}

func (s *Store) AddToBalance(ctx context.Context, id court.MemberID, delta court.Amount) (court.Amount, error) {
	var balance court.Amount
	err := s.write(func() error {
		res, err := s.q.ExecContext(ctx, `
			UPDATE members SET balance = balance + ?
			WHERE id = ? AND balance + ? >= 0`,
			int64(delta), int64(id), int64(delta))
		if err != nil {
			return court.StorageError("update balance", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return court.StorageError("update balance", err)
		}

		// Same transaction (or same serialized writer): this read sees our update.
		if err := s.q.QueryRowContext(ctx, `SELECT balance FROM members WHERE id = ?`, int64(id)).Scan(&balance); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return court.ErrMemberNotFound
			}
			return court.StorageError("read balance", err)
		}
		if n == 0 {
			return &court.ResultingBalanceError{MemberID: id, Balance: balance, Delta: delta}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// =============================================================================
// LEDGER
// =============================================================================

func (s *Store) AppendTransaction(ctx context.Context, tx court.Transaction) (court.Transaction, error) {
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	err := s.write(func() error {
		res, err := s.q.ExecContext(ctx, `
			INSERT INTO transactions (member_id, amount, kind, reservation_id, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			int64(tx.MemberID), int64(tx.Amount), string(tx.Kind),
			nullString(string(tx.ReservationID)), formatTime(tx.CreatedAt))
		if err != nil {
			return court.StorageError("append transaction", err)
		}
		tx.ID, err = res.LastInsertId()
		return court.StorageError("append transaction", err)
	})
	if err != nil {
		return court.Transaction{}, err
	}
	return tx, nil
}

func (s *Store) SumTransactions(ctx context.Context, id court.MemberID) (court.Amount, error) {
	var total int64
	err := s.q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE member_id = ?`, int64(id)).Scan(&total)
	if err != nil {
		return 0, court.StorageError("sum transactions", err)
	}
	return court.Amount(total), nil
}

func (s *Store) ListTransactions(ctx context.Context) ([]court.TransactionView, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT t.id, t.member_id, t.amount, t.kind, COALESCE(t.reservation_id, ''), t.created_at,
		       COALESCE(m.first_name, ''), COALESCE(m.last_name, '')
		FROM transactions t
		LEFT JOIN members m ON m.id = t.member_id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, court.StorageError("list transactions", err)
	}
	defer rows.Close()

	var out []court.TransactionView
	for rows.Next() {
		var (
			v         court.TransactionView
			memberID  int64
			amount    int64
			kind      string
			resID     string
			createdAt string
		)
		if err := rows.Scan(&v.ID, &memberID, &amount, &kind, &resID, &createdAt,
			&v.Member.First, &v.Member.Last); err != nil {
			return nil, court.StorageError("scan transaction", err)
		}
		v.MemberID = court.MemberID(memberID)
		v.Amount = court.Amount(amount)
		v.Kind = court.TransactionKind(kind)
		v.ReservationID = court.ReservationID(resID)
		v.CreatedAt = parseTime(createdAt)
		out = append(out, v)
	}
	return out, court.StorageError("list transactions", rows.Err())
}

// =============================================================================
// RESERVATIONS
// =============================================================================

func (s *Store) InsertReservation(ctx context.Context, r court.Reservation) error {
	return s.write(func() error {
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO reservations (id, member_id, court_no, day, time_label, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			string(r.ID), int64(r.MemberID), r.CourtNo, r.Day.String(), r.TimeLabel, formatTime(r.CreatedAt))
		if err != nil {
			if isSlotUniquenessError(err) {
				return court.ErrSlotTaken
			}
			return court.StorageError("insert reservation", err)
		}
		return nil
	})
}

func (s *Store) DeleteReservation(ctx context.Context, id court.ReservationID) (court.Reservation, error) {
	var r court.Reservation
	err := s.write(func() error {
		row := s.q.QueryRowContext(ctx, `
			DELETE FROM reservations WHERE id = ?
			RETURNING id, member_id, court_no, day, time_label, created_at`, string(id))
		var err error
		r, err = scanReservation(row)
		if errors.Is(err, sql.ErrNoRows) {
			return court.ErrReservationNotFound
		}
		if err != nil {
			return court.StorageError("delete reservation", err)
		}
		return nil
	})
	return r, err
}

func (s *Store) FindReservation(ctx context.Context, slot court.Slot) (court.Reservation, bool, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT id, member_id, court_no, day, time_label, created_at
		FROM reservations
		WHERE court_no = ? AND day = ? AND time_label = ?`,
		slot.CourtNo, slot.Day.String(), slot.TimeLabel)
	r, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return court.Reservation{}, false, nil
	}
	if err != nil {
		return court.Reservation{}, false, court.StorageError("find reservation", err)
	}
	return r, true, nil
}

const reservationViewQuery = `
	SELECT r.id, r.member_id, r.court_no, r.day, r.time_label, r.created_at,
	       COALESCE(m.first_name, ''), COALESCE(m.last_name, '')
	FROM reservations r
	LEFT JOIN members m ON m.id = r.member_id`

const newestFirst = ` ORDER BY r.day DESC, r.time_label DESC, r.court_no ASC`

func (s *Store) ReservationsForDay(ctx context.Context, day court.Day) ([]court.ReservationView, error) {
	return s.queryViews(ctx, reservationViewQuery+` WHERE r.day = ?`+newestFirst, day.String())
}

func (s *Store) ListReservations(ctx context.Context) ([]court.ReservationView, error) {
	return s.queryViews(ctx, reservationViewQuery+newestFirst)
}

func (s *Store) ReservationsByMember(ctx context.Context, id court.MemberID, limit int) ([]court.Reservation, error) {
	query := reservationViewQuery + ` WHERE r.member_id = ?` + newestFirst
	args := []any{int64(id)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	views, err := s.queryViews(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]court.Reservation, len(views))
	for i, v := range views {
		out[i] = v.Reservation
	}
	return out, nil
}

func (s *Store) queryViews(ctx context.Context, query string, args ...any) ([]court.ReservationView, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, court.StorageError("query reservations", err)
	}
	defer rows.Close()

	var out []court.ReservationView
	for rows.Next() {
		var (
			v                         court.ReservationView
			id, day, label, createdAt string
			memberID                  int64
		)
		if err := rows.Scan(&id, &memberID, &v.CourtNo, &day, &label, &createdAt,
			&v.Member.First, &v.Member.Last); err != nil {
			return nil, court.StorageError("scan reservation", err)
		}
		v.ID = court.ReservationID(id)
		v.MemberID = court.MemberID(memberID)
		v.TimeLabel = label
		v.CreatedAt = parseTime(createdAt)
		d, err := court.ParseDay(day)
		if err != nil {
			return nil, court.StorageError("scan reservation", err)
		}
		v.Day = d
		out = append(out, v)
	}
	return out, court.StorageError("query reservations", rows.Err())
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (court.Member, error) {
	var (
		m         court.Member
		id        int64
		balance   int64
		role      string
		createdAt string
	)
	err := row.Scan(&id, &m.FirstName, &m.LastName, &m.Email, &m.PasswordHash, &balance, &role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return court.Member{}, court.ErrMemberNotFound
	}
	if err != nil {
		return court.Member{}, court.StorageError("scan member", err)
	}
	m.ID = court.MemberID(id)
	m.Balance = court.Amount(balance)
	m.Role = court.Role(role)
	m.CreatedAt = parseTime(createdAt)
	return m, nil
}

// scanReservation returns sql.ErrNoRows unwrapped so callers can branch on it.
func scanReservation(row scanner) (court.Reservation, error) {
	var (
		r                         court.Reservation
		id, day, label, createdAt string
		memberID                  int64
	)
	if err := row.Scan(&id, &memberID, &r.CourtNo, &day, &label, &createdAt); err != nil {
		return court.Reservation{}, err
	}
	d, err := court.ParseDay(day)
	if err != nil {
		return court.Reservation{}, err
	}
	r.ID = court.ReservationID(id)
	r.MemberID = court.MemberID(memberID)
	r.Day = d
	r.TimeLabel = label
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func isSlotUniquenessError(err error) bool {
	return isUniqueConstraintError(err) && strings.Contains(err.Error(), "reservations.court_no")
}

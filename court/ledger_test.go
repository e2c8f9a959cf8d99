package court_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/court-engine/court"
)

// =============================================================================
// TOP-UP
// =============================================================================

func TestLedger_TopUp_WritesOneTransaction(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		pub := &recordingPublisher{}
		ledger := court.NewLedger(s, court.WithClock(fixedClock()), court.WithPublisher(pub))
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)

		balance, err := ledger.TopUp(ctx, m.ID, 500)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(500), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, court.Amount(500), txs[0].Amount)
		assert.Equal(t, court.TxTopUp, txs[0].Kind)
		assert.Equal(t, "Ada Lovelace", txs[0].Member.String())

		require.Len(t, pub.events, 1)
		assert.Equal(t, court.EventBalanceToppedUp, pub.events[0].Type)
		assert.Equal(t, court.Amount(500), pub.events[0].Balance)
	})
}

func TestLedger_NegativeTopUp(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		ledger := court.NewLedger(s)
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)
		fund(t, ledger, m.ID, 100)

		// GIVEN: Balance 100
		// WHEN: Debit 30
		// THEN: Balance 70, adjustment recorded
		balance, err := ledger.TopUp(ctx, m.ID, -30)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(70), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		kinds := []court.TransactionKind{txs[0].Kind, txs[1].Kind}
		assert.Contains(t, kinds, court.TxAdjustment)
	})
}

func TestLedger_TopUp_BelowZeroRejected(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		ledger := court.NewLedger(s)
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)
		fund(t, ledger, m.ID, 100)

		// GIVEN: Balance 100
		// WHEN: Debit 150
		// THEN: Rejected, nothing written
		_, err := ledger.TopUp(ctx, m.ID, -150)
		require.ErrorIs(t, err, court.ErrInsufficientResultingBalance)
		var rbErr *court.ResultingBalanceError
		require.ErrorAs(t, err, &rbErr)
		assert.Equal(t, court.Amount(100), rbErr.Balance)

		balance, err := ledger.Balance(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(100), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 1)
	})
}

func TestLedger_TopUp_ZeroAndUnknownMember(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		ledger := court.NewLedger(s)
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)

		_, err := ledger.TopUp(ctx, m.ID, 0)
		assert.ErrorIs(t, err, court.ErrInvalidAmount)

		_, err = ledger.TopUp(ctx, 9999, 100)
		assert.ErrorIs(t, err, court.ErrMemberNotFound)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Empty(t, txs)
	})
}

func TestLedger_TopUp_OverflowRejected(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		// GIVEN: A member with 10
		ctx := context.Background()
		ledger := court.NewLedger(s)
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)
		fund(t, ledger, m.ID, 10)

		// WHEN: Topping up past the largest representable balance
		_, err := ledger.TopUp(ctx, m.ID, court.MaxBalance)

		// THEN: Rejected as bad input, nothing written
		assert.ErrorIs(t, err, court.ErrInvalidAmount)
		assert.NotErrorIs(t, err, court.ErrStorageUnavailable)

		balance, err := ledger.Balance(ctx, m.ID)
		require.NoError(t, err)
		assert.Equal(t, court.Amount(10), balance)

		txs, err := s.ListTransactions(ctx)
		require.NoError(t, err)
		assert.Len(t, txs, 1)

		// AND: Filling up to exactly the maximum still works
		balance, err = ledger.TopUp(ctx, m.ID, court.MaxBalance-10)
		require.NoError(t, err)
		assert.Equal(t, court.MaxBalance, balance)
	})
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestLedger_Reconcile_BalanceMatchesLog(t *testing.T) {
	eachBackend(t, func(t *testing.T, s court.TxStore) {
		ctx := context.Background()
		engine := court.NewEngine(s)
		ledger := engine.Ledger()
		m := addMember(t, s, "Ada", "Lovelace", court.RoleMember)

		fund(t, ledger, m.ID, 1000)
		_, err := engine.Book(ctx, m.ID, 1, testDay, "15:00")
		require.NoError(t, err)
		_, err = engine.Book(ctx, m.ID, 2, testDay, "15:00")
		require.NoError(t, err)
		fund(t, ledger, m.ID, -100)
		_, err = ledger.TopUp(ctx, m.ID, -10000)
		require.Error(t, err)

		rec, err := ledger.Reconcile(ctx, m.ID)
		require.NoError(t, err)
		assert.True(t, rec.Consistent(), "drift %s", rec.Drift())
		assert.Equal(t, court.Amount(500), rec.Balance)
	})
}

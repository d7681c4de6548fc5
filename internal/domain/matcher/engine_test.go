package matcher_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

func TestGenerateCandidates(t *testing.T) {
	cfg := matcher.DefaultConfig()
	ctx := context.Background()

	t.Run("pairs within date window and amount tolerance", func(t *testing.T) {
		txs := []*matcher.Transaction{tx("t1", "Starbucks", "100.00", "2024-01-10")}
		exps := []*matcher.Expense{
			exp("e1", "Starbucks", "100.00", "2024-01-12"), // qualifies
			exp("e2", "Starbucks", "100.00", "2024-01-20"), // outside window
			exp("e3", "Starbucks", "80.00", "2024-01-10"),  // outside tolerance
		}

		cands, err := cfg.GenerateCandidates(ctx, txs, exps)
		require.NoError(t, err)
		require.Len(t, cands, 1)
		assert.Equal(t, "e1", cands[0].Expense.ID)
	})

	t.Run("skips conflicting currencies", func(t *testing.T) {
		txs := []*matcher.Transaction{tx("t1", "Starbucks", "100.00", "2024-01-10")}
		foreign := exp("e1", "Starbucks", "100.00", "2024-01-10")
		foreign.Currency = "EUR"

		cands, err := cfg.GenerateCandidates(ctx, txs, []*matcher.Expense{foreign})
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("empty inputs yield no candidates", func(t *testing.T) {
		cands, err := cfg.GenerateCandidates(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, cands)
	})

	t.Run("honors cancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := cfg.GenerateCandidates(cancelled,
			[]*matcher.Transaction{tx("t1", "A", "10.00", "2024-01-10")},
			[]*matcher.Expense{exp("e1", "A", "10.00", "2024-01-10")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	newEngine := func(t *testing.T) *matcher.Engine {
		e, err := matcher.NewEngine(matcher.DefaultConfig())
		require.NoError(t, err)
		return e
	}

	t.Run("perfect pair is auto approved", func(t *testing.T) {
		e := newEngine(t)
		result, err := e.Run(ctx,
			[]*matcher.Transaction{tx("t1", "Starbucks", "100.00", "2024-01-10")},
			[]*matcher.Expense{exp("e1", "Starbucks", "100.00", "2024-01-10")})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)

		m := result.Matches[0]
		assert.Equal(t, matcher.StatusAutoApproved, m.Status)
		assert.Equal(t, matcher.StrategyExact, m.Strategy)
		assert.Equal(t, 1.0, m.AmountScore)
		assert.Equal(t, 1.0, m.DateScore)
		assert.Equal(t, 1.0, m.VendorScore)
		assert.InDelta(t, 1.0, m.ConfidenceScore, 1e-9)
		assert.Equal(t, 1, result.AutoApproved)
		assert.NotEmpty(t, m.ID)
	})

	t.Run("moderate pair is queued for review", func(t *testing.T) {
		e := newEngine(t)
		result, err := e.Run(ctx,
			[]*matcher.Transaction{tx("t1", "STARBUCKS COFFEE 812", "100.00", "2024-01-10")},
			[]*matcher.Expense{exp("e1", "Starbucks", "97.00", "2024-01-12")})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)

		m := result.Matches[0]
		assert.Equal(t, matcher.StatusManualReview, m.Status)
		assert.Equal(t, matcher.StrategyFuzzy, m.Strategy)
		assert.InDelta(t, 0.63, m.ConfidenceScore, 0.01)
		assert.Equal(t, 1, result.QueuedForReview)
	})

	t.Run("weak pair creates no match", func(t *testing.T) {
		e := newEngine(t)
		result, err := e.Run(ctx,
			[]*matcher.Transaction{tx("t1", "Lufthansa", "100.00", "2024-01-10")},
			[]*matcher.Expense{exp("e1", "Starbucks", "96.00", "2024-01-16")})
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
		assert.Equal(t, 1, result.Discarded)
	})

	t.Run("each record participates in at most one match", func(t *testing.T) {
		e := newEngine(t)
		// Two transactions compete for the same expense; the exact-date one
		// must win and the other stays unmatched.
		result, err := e.Run(ctx,
			[]*matcher.Transaction{
				tx("t1", "Starbucks", "100.00", "2024-01-11"),
				tx("t2", "Starbucks", "100.00", "2024-01-10"),
			},
			[]*matcher.Expense{exp("e1", "Starbucks", "100.00", "2024-01-10")})
		require.NoError(t, err)
		require.Len(t, result.Matches, 1)
		assert.Equal(t, "t2", result.Matches[0].TransactionID)

		seenTx := map[string]bool{}
		seenExp := map[string]bool{}
		for _, m := range result.Matches {
			assert.False(t, seenTx[m.TransactionID])
			assert.False(t, seenExp[m.ExpenseID])
			seenTx[m.TransactionID] = true
			seenExp[m.ExpenseID] = true
		}
	})

	t.Run("no candidates is a success outcome", func(t *testing.T) {
		e := newEngine(t)
		result, err := e.Run(ctx, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Matches)
		assert.Zero(t, result.CandidateCount)
	})

	t.Run("cancellation aborts the run", func(t *testing.T) {
		e := newEngine(t)
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := e.Run(cancelled,
			[]*matcher.Transaction{tx("t1", "A", "10.00", "2024-01-10")},
			[]*matcher.Expense{exp("e1", "A", "10.00", "2024-01-10")})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

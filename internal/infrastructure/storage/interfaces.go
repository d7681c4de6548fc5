package storage

import (
	"context"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// Repository defines the complete storage interface. Every method takes the
// tenant explicitly; there is no ambient tenant state anywhere in the
// service. The interface allows swapping implementations (SQLite, Postgres)
// and makes testing with the in-memory mock straightforward.
type Repository interface {
	TransactionRepository
	ExpenseRepository
	MatchRepository
	Close() error
}

// TransactionRepository stores normalized bank transactions. Transactions
// are immutable once ingested; the reconciliation core only reads them.
type TransactionRepository interface {
	// SaveTransactions inserts or replaces transactions for a tenant.
	SaveTransactions(ctx context.Context, tenantID string, txs []*matcher.Transaction) error

	// ListTransactions returns a page of a tenant's transactions, newest
	// posting date first.
	ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Transaction, error)

	// ListUnmatchedTransactions returns transactions without an active
	// (APPROVED or AUTO_APPROVED) match.
	ListUnmatchedTransactions(ctx context.Context, tenantID string) ([]*matcher.Transaction, error)

	// CountTransactions returns total and unmatched transaction counts.
	CountTransactions(ctx context.Context, tenantID string) (total, unmatched int, err error)
}

// ExpenseRepository stores normalized employee expenses. The core reads
// them but never mutates them.
type ExpenseRepository interface {
	SaveExpenses(ctx context.Context, tenantID string, exps []*matcher.Expense) error
	ListExpenses(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Expense, error)
	ListUnmatchedExpenses(ctx context.Context, tenantID string) ([]*matcher.Expense, error)
	CountExpenses(ctx context.Context, tenantID string) (total, unmatched int, err error)
}

// MatchFilters defines filters for listing matches.
type MatchFilters struct {
	Statuses []matcher.MatchStatus // empty = all
	Limit    int                   // 0 = default 50
	Offset   int
	SortBy   string // "confidence", "created_at" (default "confidence")
}

// MatchRepository owns Match persistence and the at-most-one-active-match
// invariant. Matches are never physically deleted; rejection is a terminal
// status, not a deletion.
type MatchRepository interface {
	// CreateMatches persists the matches produced by one run. The
	// implementation must fail with ErrActiveMatchConflict if an inserted
	// AUTO_APPROVED match would give a transaction or expense a second
	// active match.
	CreateMatches(ctx context.Context, tenantID string, matches []*matcher.Match) error

	// GetMatch retrieves one match scoped to a tenant. Returns ErrMatchNotFound
	// for unknown ids.
	GetMatch(ctx context.Context, tenantID, matchID string) (*matcher.Match, error)

	// ListMatches returns a tenant's matches per the given filters.
	ListMatches(ctx context.Context, tenantID string, filters MatchFilters) ([]*matcher.Match, error)

	// UpdateMatchReview persists a review transition (APPROVED or REJECTED)
	// for a match currently awaiting review. Returns ErrMatchNotFound if the
	// id is unknown, ErrNotReviewable if the match left the reviewable state
	// in the interim, and ErrActiveMatchConflict if approving would violate
	// the one-active-match invariant.
	UpdateMatchReview(ctx context.Context, m *matcher.Match) error

	// CountMatchesByStatus returns per-status match counts for a tenant.
	CountMatchesByStatus(ctx context.Context, tenantID string) (map[matcher.MatchStatus]int, error)

	// AverageConfidence returns the mean confidence over a tenant's
	// non-rejected matches, and the number of matches averaged.
	AverageConfidence(ctx context.Context, tenantID string) (avg float64, n int, err error)
}

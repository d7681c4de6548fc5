package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// Storage provides SQLite database access for reconciliation records.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

const activeStatuses = "'APPROVED', 'AUTO_APPROVED'"

// SaveTransactions inserts or replaces transactions for a tenant.
func (s *Storage) SaveTransactions(ctx context.Context, tenantID string, txs []*matcher.Transaction) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO transactions
	(id, tenant_id, account_id, posted_at, amount, currency, description, merchant)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, t := range txs {
		if _, err := dbTx.ExecContext(ctx, query,
			t.ID, tenantID, t.AccountID, t.PostedAt.UTC(),
			t.Amount.String(), t.Currency, t.Description, t.Merchant,
		); err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("failed to save transaction %s: %w", t.ID, err)
		}
	}

	return dbTx.Commit()
}

// ListTransactions returns a page of a tenant's transactions.
func (s *Storage) ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, tenant_id, account_id, posted_at, amount, currency, description, merchant
	FROM transactions
	WHERE tenant_id = ?
	ORDER BY posted_at DESC, id
	LIMIT ? OFFSET ?`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// ListUnmatchedTransactions returns transactions without an active match.
func (s *Storage) ListUnmatchedTransactions(ctx context.Context, tenantID string) ([]*matcher.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT t.id, t.tenant_id, t.account_id, t.posted_at, t.amount, t.currency, t.description, t.merchant
	FROM transactions t
	WHERE t.tenant_id = ?
	  AND NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.transaction_id = t.id AND m.status IN (`+activeStatuses+`)
	  )
	ORDER BY t.posted_at, t.id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// CountTransactions returns total and unmatched transaction counts.
func (s *Storage) CountTransactions(ctx context.Context, tenantID string) (int, int, error) {
	var total, unmatched int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	       COUNT(*) - COUNT(active.transaction_id)
	FROM transactions t
	LEFT JOIN (
		SELECT DISTINCT transaction_id FROM matches WHERE status IN (`+activeStatuses+`)
	) active ON active.transaction_id = t.id
	WHERE t.tenant_id = ?`, tenantID).Scan(&total, &unmatched)
	return total, unmatched, err
}

// SaveExpenses inserts or replaces expenses for a tenant.
func (s *Storage) SaveExpenses(ctx context.Context, tenantID string, exps []*matcher.Expense) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
	INSERT OR REPLACE INTO expenses
	(id, tenant_id, user_id, spent_at, amount, currency, title, merchant, category_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, e := range exps {
		if _, err := dbTx.ExecContext(ctx, query,
			e.ID, tenantID, e.UserID, e.SpentAt.UTC(),
			e.Amount.String(), e.Currency, e.Title, e.Merchant, e.CategoryID,
		); err != nil {
			_ = dbTx.Rollback()
			return fmt.Errorf("failed to save expense %s: %w", e.ID, err)
		}
	}

	return dbTx.Commit()
}

// ListExpenses returns a page of a tenant's expenses.
func (s *Storage) ListExpenses(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Expense, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT id, tenant_id, user_id, spent_at, amount, currency, title, merchant, category_id
	FROM expenses
	WHERE tenant_id = ?
	ORDER BY spent_at DESC, id
	LIMIT ? OFFSET ?`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// ListUnmatchedExpenses returns expenses without an active match.
func (s *Storage) ListUnmatchedExpenses(ctx context.Context, tenantID string) ([]*matcher.Expense, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT e.id, e.tenant_id, e.user_id, e.spent_at, e.amount, e.currency, e.title, e.merchant, e.category_id
	FROM expenses e
	WHERE e.tenant_id = ?
	  AND NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.expense_id = e.id AND m.status IN (`+activeStatuses+`)
	  )
	ORDER BY e.spent_at, e.id`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanExpenses(rows)
}

// CountExpenses returns total and unmatched expense counts.
func (s *Storage) CountExpenses(ctx context.Context, tenantID string) (int, int, error) {
	var total, unmatched int
	err := s.db.QueryRowContext(ctx, `
	SELECT COUNT(*),
	       COUNT(*) - COUNT(active.expense_id)
	FROM expenses e
	LEFT JOIN (
		SELECT DISTINCT expense_id FROM matches WHERE status IN (`+activeStatuses+`)
	) active ON active.expense_id = e.id
	WHERE e.tenant_id = ?`, tenantID).Scan(&total, &unmatched)
	return total, unmatched, err
}

// CreateMatches persists the matches produced by one run.
func (s *Storage) CreateMatches(ctx context.Context, tenantID string, matches []*matcher.Match) error {
	if len(matches) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO matches
	(id, tenant_id, transaction_id, expense_id,
	 amount_score, date_score, vendor_score, confidence_score,
	 strategy, status, created_at, reviewed_by, reviewed_at, human_confidence, reject_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, m := range matches {
		if _, err := dbTx.ExecContext(ctx, query,
			m.ID, tenantID, m.TransactionID, m.ExpenseID,
			m.AmountScore, m.DateScore, m.VendorScore, m.ConfidenceScore,
			string(m.Strategy), string(m.Status), m.CreatedAt.UTC(),
			m.ReviewedBy, m.ReviewedAt, m.HumanConfidence, m.RejectReason,
		); err != nil {
			_ = dbTx.Rollback()
			if isUniqueViolation(err) {
				return fmt.Errorf("match %s: %w", m.ID, ErrActiveMatchConflict)
			}
			return fmt.Errorf("failed to create match %s: %w", m.ID, err)
		}
	}

	return dbTx.Commit()
}

// GetMatch retrieves one match scoped to a tenant.
func (s *Storage) GetMatch(ctx context.Context, tenantID, matchID string) (*matcher.Match, error) {
	row := s.db.QueryRowContext(ctx, matchColumns+`
	FROM matches WHERE id = ? AND tenant_id = ?`, matchID, tenantID)

	m, err := scanMatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMatchNotFound
	}
	return m, err
}

// ListMatches returns a tenant's matches per the given filters.
func (s *Storage) ListMatches(ctx context.Context, tenantID string, filters MatchFilters) ([]*matcher.Match, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := matchColumns + " FROM matches WHERE tenant_id = ?"
	args := []any{tenantID}

	if len(filters.Statuses) > 0 {
		placeholders := make([]string, len(filters.Statuses))
		for i, status := range filters.Statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " AND status IN (" + strings.Join(placeholders, ", ") + ")"
	}

	switch filters.SortBy {
	case "created_at":
		query += " ORDER BY created_at DESC, id"
	default:
		query += " ORDER BY confidence_score DESC, id"
	}

	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filters.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []*matcher.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// UpdateMatchReview persists a review transition for a reviewable match.
// The guarded UPDATE plus the partial unique indexes make the transition
// safe against concurrent reviews and runs.
func (s *Storage) UpdateMatchReview(ctx context.Context, m *matcher.Match) error {
	result, err := s.db.ExecContext(ctx, `
	UPDATE matches
	SET status = ?, reviewed_by = ?, reviewed_at = ?, human_confidence = ?, reject_reason = ?
	WHERE id = ? AND tenant_id = ? AND status IN ('PENDING', 'MANUAL_REVIEW')`,
		string(m.Status), m.ReviewedBy, m.ReviewedAt, m.HumanConfidence, m.RejectReason,
		m.ID, m.TenantID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrActiveMatchConflict
		}
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish an unknown id from a match that already left the
		// reviewable state.
		if _, err := s.GetMatch(ctx, m.TenantID, m.ID); err != nil {
			return err
		}
		return ErrNotReviewable
	}
	return nil
}

// CountMatchesByStatus returns per-status match counts for a tenant.
func (s *Storage) CountMatchesByStatus(ctx context.Context, tenantID string) (map[matcher.MatchStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT status, COUNT(*) FROM matches WHERE tenant_id = ? GROUP BY status`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[matcher.MatchStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[matcher.MatchStatus(status)] = count
	}
	return counts, rows.Err()
}

// AverageConfidence returns the mean confidence over non-rejected matches.
func (s *Storage) AverageConfidence(ctx context.Context, tenantID string) (float64, int, error) {
	var avg sql.NullFloat64
	var n int
	err := s.db.QueryRowContext(ctx, `
	SELECT AVG(confidence_score), COUNT(*)
	FROM matches
	WHERE tenant_id = ? AND status != 'REJECTED'`, tenantID).Scan(&avg, &n)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, n, nil
}

const matchColumns = `
	SELECT id, tenant_id, transaction_id, expense_id,
	       amount_score, date_score, vendor_score, confidence_score,
	       strategy, status, created_at, reviewed_by, reviewed_at, human_confidence, reject_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMatch(row rowScanner) (*matcher.Match, error) {
	m := &matcher.Match{}
	var strategy, status string
	var reviewedAt sql.NullTime
	var humanConfidence sql.NullFloat64

	err := row.Scan(
		&m.ID, &m.TenantID, &m.TransactionID, &m.ExpenseID,
		&m.AmountScore, &m.DateScore, &m.VendorScore, &m.ConfidenceScore,
		&strategy, &status, &m.CreatedAt, &m.ReviewedBy, &reviewedAt, &humanConfidence, &m.RejectReason,
	)
	if err != nil {
		return nil, err
	}

	m.Strategy = matcher.MatchStrategy(strategy)
	m.Status = matcher.MatchStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		m.ReviewedAt = &t
	}
	if humanConfidence.Valid {
		v := humanConfidence.Float64
		m.HumanConfidence = &v
	}
	return m, nil
}

func scanTransactions(rows *sql.Rows) ([]*matcher.Transaction, error) {
	var txs []*matcher.Transaction
	for rows.Next() {
		t := &matcher.Transaction{}
		var amount string
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.AccountID, &t.PostedAt,
			&amount, &t.Currency, &t.Description, &t.Merchant,
		); err != nil {
			return nil, err
		}
		parsed, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("transaction %s: %w", t.ID, err)
		}
		t.Amount = parsed
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanExpenses(rows *sql.Rows) ([]*matcher.Expense, error) {
	var exps []*matcher.Expense
	for rows.Next() {
		e := &matcher.Expense{}
		var amount string
		if err := rows.Scan(
			&e.ID, &e.TenantID, &e.UserID, &e.SpentAt,
			&amount, &e.Currency, &e.Title, &e.Merchant, &e.CategoryID,
		); err != nil {
			return nil, err
		}
		parsed, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		e.Amount = parsed
		exps = append(exps, e)
	}
	return exps, rows.Err()
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint
// violation, which the partial active-match indexes raise on a second
// active match for the same entity.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

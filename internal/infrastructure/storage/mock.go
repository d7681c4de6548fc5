package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps keyed by tenant, making tests fast and
// isolated, and enforces the same invariants as the SQLite implementation.
type MockRepository struct {
	mu           sync.Mutex
	transactions map[string][]*matcher.Transaction // keyed by tenant
	expenses     map[string][]*matcher.Expense
	matches      map[string]*matcher.Match // keyed by match id

	// Hooks for test assertions
	CreateMatchesCalled bool
	LastCreatedMatches  []*matcher.Match

	// Error injection for testing error paths
	SaveTransactionsErr error
	SaveExpensesErr     error
	CreateMatchesErr    error
	ListUnmatchedErr    error
	UpdateReviewErr     error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string][]*matcher.Transaction),
		expenses:     make(map[string][]*matcher.Expense),
		matches:      make(map[string]*matcher.Match),
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

func (m *MockRepository) SaveTransactions(_ context.Context, tenantID string, txs []*matcher.Transaction) error {
	if m.SaveTransactionsErr != nil {
		return m.SaveTransactionsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range txs {
		copied := *t
		copied.TenantID = tenantID
		m.transactions[tenantID] = replaceOrAppendTx(m.transactions[tenantID], &copied)
	}
	return nil
}

func (m *MockRepository) ListTransactions(_ context.Context, tenantID string, limit, offset int) ([]*matcher.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageOf(m.transactions[tenantID], limit, offset), nil
}

func (m *MockRepository) ListUnmatchedTransactions(_ context.Context, tenantID string) ([]*matcher.Transaction, error) {
	if m.ListUnmatchedErr != nil {
		return nil, m.ListUnmatchedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*matcher.Transaction
	for _, t := range m.transactions[tenantID] {
		if !m.hasActiveTxMatch(t.ID) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MockRepository) CountTransactions(_ context.Context, tenantID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.transactions[tenantID])
	unmatched := 0
	for _, t := range m.transactions[tenantID] {
		if !m.hasActiveTxMatch(t.ID) {
			unmatched++
		}
	}
	return total, unmatched, nil
}

func (m *MockRepository) SaveExpenses(_ context.Context, tenantID string, exps []*matcher.Expense) error {
	if m.SaveExpensesErr != nil {
		return m.SaveExpensesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range exps {
		copied := *e
		copied.TenantID = tenantID
		m.expenses[tenantID] = replaceOrAppendExp(m.expenses[tenantID], &copied)
	}
	return nil
}

func (m *MockRepository) ListExpenses(_ context.Context, tenantID string, limit, offset int) ([]*matcher.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return pageOf(m.expenses[tenantID], limit, offset), nil
}

func (m *MockRepository) ListUnmatchedExpenses(_ context.Context, tenantID string) ([]*matcher.Expense, error) {
	if m.ListUnmatchedErr != nil {
		return nil, m.ListUnmatchedErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*matcher.Expense
	for _, e := range m.expenses[tenantID] {
		if !m.hasActiveExpMatch(e.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MockRepository) CountExpenses(_ context.Context, tenantID string) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := len(m.expenses[tenantID])
	unmatched := 0
	for _, e := range m.expenses[tenantID] {
		if !m.hasActiveExpMatch(e.ID) {
			unmatched++
		}
	}
	return total, unmatched, nil
}

func (m *MockRepository) CreateMatches(_ context.Context, tenantID string, matches []*matcher.Match) error {
	m.CreateMatchesCalled = true
	m.LastCreatedMatches = matches
	if m.CreateMatchesErr != nil {
		return m.CreateMatchesErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, match := range matches {
		if match.Status.Active() &&
			(m.hasActiveTxMatch(match.TransactionID) || m.hasActiveExpMatch(match.ExpenseID)) {
			return ErrActiveMatchConflict
		}
	}
	for _, match := range matches {
		copied := *match
		copied.TenantID = tenantID
		m.matches[match.ID] = &copied
	}
	return nil
}

func (m *MockRepository) GetMatch(_ context.Context, tenantID, matchID string) (*matcher.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	match, ok := m.matches[matchID]
	if !ok || match.TenantID != tenantID {
		return nil, ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (m *MockRepository) ListMatches(_ context.Context, tenantID string, filters MatchFilters) ([]*matcher.Match, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[matcher.MatchStatus]bool, len(filters.Statuses))
	for _, s := range filters.Statuses {
		wanted[s] = true
	}

	var out []*matcher.Match
	for _, match := range m.matches {
		if match.TenantID != tenantID {
			continue
		}
		if len(wanted) > 0 && !wanted[match.Status] {
			continue
		}
		copied := *match
		out = append(out, &copied)
	}

	switch filters.SortBy {
	case "created_at":
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.After(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
	default:
		sort.Slice(out, func(i, j int) bool {
			if out[i].ConfidenceScore != out[j].ConfidenceScore {
				return out[i].ConfidenceScore > out[j].ConfidenceScore
			}
			return out[i].ID < out[j].ID
		})
	}

	return pageOf(out, filters.Limit, filters.Offset), nil
}

func (m *MockRepository) UpdateMatchReview(_ context.Context, updated *matcher.Match) error {
	if m.UpdateReviewErr != nil {
		return m.UpdateReviewErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.matches[updated.ID]
	if !ok || existing.TenantID != updated.TenantID {
		return ErrMatchNotFound
	}
	if !existing.Status.Reviewable() {
		return ErrNotReviewable
	}
	if updated.Status.Active() {
		if m.hasOtherActiveTxMatch(existing.TransactionID, existing.ID) ||
			m.hasOtherActiveExpMatch(existing.ExpenseID, existing.ID) {
			return ErrActiveMatchConflict
		}
	}

	existing.Status = updated.Status
	existing.ReviewedBy = updated.ReviewedBy
	existing.ReviewedAt = updated.ReviewedAt
	existing.HumanConfidence = updated.HumanConfidence
	existing.RejectReason = updated.RejectReason
	return nil
}

// ForceUpdateMatch overwrites a stored match without any state checks. Test
// hook for arranging lifecycle states the guarded paths would refuse.
func (m *MockRepository) ForceUpdateMatch(updated *matcher.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.matches[updated.ID]; !ok {
		return ErrMatchNotFound
	}
	clone := *updated
	m.matches[updated.ID] = &clone
	return nil
}

func (m *MockRepository) CountMatchesByStatus(_ context.Context, tenantID string) (map[matcher.MatchStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[matcher.MatchStatus]int)
	for _, match := range m.matches {
		if match.TenantID == tenantID {
			counts[match.Status]++
		}
	}
	return counts, nil
}

func (m *MockRepository) AverageConfidence(_ context.Context, tenantID string) (float64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sum := 0.0
	n := 0
	for _, match := range m.matches {
		if match.TenantID != tenantID || match.Status == matcher.StatusRejected {
			continue
		}
		sum += match.ConfidenceScore
		n++
	}
	if n == 0 {
		return 0, 0, nil
	}
	return sum / float64(n), n, nil
}

// Callers must hold mu.
func (m *MockRepository) hasActiveTxMatch(txID string) bool {
	return m.hasOtherActiveTxMatch(txID, "")
}

func (m *MockRepository) hasActiveExpMatch(expID string) bool {
	return m.hasOtherActiveExpMatch(expID, "")
}

func (m *MockRepository) hasOtherActiveTxMatch(txID, excludeMatchID string) bool {
	for _, match := range m.matches {
		if match.ID != excludeMatchID && match.TransactionID == txID && match.Status.Active() {
			return true
		}
	}
	return false
}

func (m *MockRepository) hasOtherActiveExpMatch(expID, excludeMatchID string) bool {
	for _, match := range m.matches {
		if match.ID != excludeMatchID && match.ExpenseID == expID && match.Status.Active() {
			return true
		}
	}
	return false
}

func replaceOrAppendTx(list []*matcher.Transaction, t *matcher.Transaction) []*matcher.Transaction {
	for i, existing := range list {
		if existing.ID == t.ID {
			list[i] = t
			return list
		}
	}
	return append(list, t)
}

func replaceOrAppendExp(list []*matcher.Expense, e *matcher.Expense) []*matcher.Expense {
	for i, existing := range list {
		if existing.ID == e.ID {
			list[i] = e
			return list
		}
	}
	return append(list, e)
}

func pageOf[T any](list []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset >= len(list) {
		return nil
	}
	end := offset + limit
	if end > len(list) {
		end = len(list)
	}
	out := make([]T, end-offset)
	copy(out, list[offset:end])
	return out
}

package service

import (
	"context"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// Statistics summarizes the reconciliation state of one tenant.
type Statistics struct {
	TotalTransactions     int
	UnmatchedTransactions int
	TotalExpenses         int
	UnmatchedExpenses     int

	MatchesByStatus map[matcher.MatchStatus]int

	// AutoReconciliationRate is the fraction of transactions reconciled
	// without a human reviewer.
	AutoReconciliationRate float64
	// TotalReconciliationRate is the fraction of transactions covered by an
	// active match, auto or human approved.
	TotalReconciliationRate float64
	// AverageConfidence is the mean confidence over non-rejected matches.
	AverageConfidence float64
}

// GetStatistics computes reconciliation statistics for a tenant. Rates with
// a zero denominator report 0 rather than NaN.
func (s *ReconService) GetStatistics(ctx context.Context, tenantID string) (*Statistics, error) {
	totalTx, unmatchedTx, err := s.storage.CountTransactions(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	totalExp, unmatchedExp, err := s.storage.CountExpenses(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.storage.CountMatchesByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	avg, _, err := s.storage.AverageConfidence(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		TotalTransactions:     totalTx,
		UnmatchedTransactions: unmatchedTx,
		TotalExpenses:         totalExp,
		UnmatchedExpenses:     unmatchedExp,
		MatchesByStatus:       byStatus,
		AverageConfidence:     avg,
	}

	if totalTx > 0 {
		auto := byStatus[matcher.StatusAutoApproved]
		approved := byStatus[matcher.StatusApproved]
		stats.AutoReconciliationRate = float64(auto) / float64(totalTx)
		stats.TotalReconciliationRate = float64(auto+approved) / float64(totalTx)
	}

	return stats, nil
}

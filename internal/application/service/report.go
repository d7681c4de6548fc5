package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/adapters/export"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
)

// reportMatchLimit caps how many matches a single report includes.
const reportMatchLimit = 10000

// GenerateReconciliationReport builds a reconciliation report for a tenant
// and renders it in the requested format ("csv" or "json").
func (s *ReconService) GenerateReconciliationReport(ctx context.Context, tenantID, period, format string) (*export.Report, error) {
	registry := export.NewRegistry()
	exporter, err := registry.Get(format)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}

	stats, err := s.GetStatistics(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	matches, err := s.storage.ListMatches(ctx, tenantID, storage.MatchFilters{
		Limit:  reportMatchLimit,
		SortBy: "created_at",
	})
	if err != nil {
		return nil, err
	}

	data := &export.ReportData{
		TenantID:                tenantID,
		Period:                  period,
		GeneratedAt:             time.Now().UTC(),
		TotalTransactions:       stats.TotalTransactions,
		UnmatchedTransactions:   stats.UnmatchedTransactions,
		TotalExpenses:           stats.TotalExpenses,
		UnmatchedExpenses:       stats.UnmatchedExpenses,
		AutoReconciliationRate:  stats.AutoReconciliationRate,
		TotalReconciliationRate: stats.TotalReconciliationRate,
		AverageConfidence:       stats.AverageConfidence,
		Matches:                 matches,
	}

	report, err := exporter.Export(data)
	if err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}

	s.logger.Info("reconciliation report generated",
		"tenant_id", tenantID,
		"format", format,
		"matches", len(matches),
		"bytes", len(report.Data),
	)
	return report, nil
}

package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// JSONExporter renders a report as an indented JSON document.
type JSONExporter struct{}

func (e *JSONExporter) Format() string { return "json" }

type jsonReport struct {
	TenantID    string          `json:"tenant_id"`
	Period      string          `json:"period"`
	GeneratedAt time.Time       `json:"generated_at"`
	Summary     jsonSummary     `json:"summary"`
	Matches     []*matcher.Match `json:"matches"`
}

type jsonSummary struct {
	TotalTransactions       int     `json:"total_transactions"`
	UnmatchedTransactions   int     `json:"unmatched_transactions"`
	TotalExpenses           int     `json:"total_expenses"`
	UnmatchedExpenses       int     `json:"unmatched_expenses"`
	AutoReconciliationRate  float64 `json:"auto_reconciliation_rate"`
	TotalReconciliationRate float64 `json:"total_reconciliation_rate"`
	AverageConfidence       float64 `json:"average_confidence"`
}

func (e *JSONExporter) Export(data *ReportData) (*Report, error) {
	doc := jsonReport{
		TenantID:    data.TenantID,
		Period:      data.Period,
		GeneratedAt: data.GeneratedAt,
		Summary: jsonSummary{
			TotalTransactions:       data.TotalTransactions,
			UnmatchedTransactions:   data.UnmatchedTransactions,
			TotalExpenses:           data.TotalExpenses,
			UnmatchedExpenses:       data.UnmatchedExpenses,
			AutoReconciliationRate:  data.AutoReconciliationRate,
			TotalReconciliationRate: data.TotalReconciliationRate,
			AverageConfidence:       data.AverageConfidence,
		},
		Matches: data.Matches,
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}

	return &Report{
		Filename:    reportFilename(data, "json"),
		ContentType: "application/json",
		Data:        payload,
	}, nil
}

package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"
)

// CSVExporter renders a report as CSV with a summary block followed by one
// row per match.
type CSVExporter struct{}

func (e *CSVExporter) Format() string { return "csv" }

func (e *CSVExporter) Export(data *ReportData) (*Report, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	summary := [][]string{
		{"tenant_id", data.TenantID},
		{"period", data.Period},
		{"generated_at", data.GeneratedAt.Format(time.RFC3339)},
		{"total_transactions", strconv.Itoa(data.TotalTransactions)},
		{"unmatched_transactions", strconv.Itoa(data.UnmatchedTransactions)},
		{"total_expenses", strconv.Itoa(data.TotalExpenses)},
		{"unmatched_expenses", strconv.Itoa(data.UnmatchedExpenses)},
		{"total_reconciliation_rate", formatFloat(data.TotalReconciliationRate)},
		{"auto_reconciliation_rate", formatFloat(data.AutoReconciliationRate)},
		{"average_confidence", formatFloat(data.AverageConfidence)},
		{},
	}
	for _, row := range summary {
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	header := []string{
		"match_id", "transaction_id", "expense_id",
		"amount_score", "date_score", "vendor_score", "confidence",
		"strategy", "status", "reviewed_by", "created_at",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	for _, m := range data.Matches {
		row := []string{
			m.ID, m.TransactionID, m.ExpenseID,
			formatFloat(m.AmountScore), formatFloat(m.DateScore),
			formatFloat(m.VendorScore), formatFloat(m.ConfidenceScore),
			string(m.Strategy), string(m.Status), m.ReviewedBy,
			m.CreatedAt.Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write match %s: %w", m.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return &Report{
		Filename:    reportFilename(data, "csv"),
		ContentType: "text/csv",
		Data:        buf.Bytes(),
	}, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 4, 64)
}

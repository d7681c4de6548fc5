package dto

import (
	"time"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// MatchResponse represents a match in API responses.
type MatchResponse struct {
	ID              string   `json:"id"`
	TransactionID   string   `json:"transaction_id"`
	ExpenseID       string   `json:"expense_id"`
	AmountScore     float64  `json:"amount_score"`
	DateScore       float64  `json:"date_score"`
	VendorScore     float64  `json:"vendor_score"`
	Confidence      float64  `json:"confidence"`
	Strategy        string   `json:"strategy"`
	Status          string   `json:"status"`
	CreatedAt       string   `json:"created_at"`
	ReviewedBy      string   `json:"reviewed_by,omitempty"`
	ReviewedAt      *string  `json:"reviewed_at,omitempty"`
	HumanConfidence *float64 `json:"human_confidence,omitempty"`
	RejectReason    string   `json:"reject_reason,omitempty"`
}

// ToMatchResponse converts a domain match into its API representation.
func ToMatchResponse(m *matcher.Match) MatchResponse {
	resp := MatchResponse{
		ID:              m.ID,
		TransactionID:   m.TransactionID,
		ExpenseID:       m.ExpenseID,
		AmountScore:     m.AmountScore,
		DateScore:       m.DateScore,
		VendorScore:     m.VendorScore,
		Confidence:      m.ConfidenceScore,
		Strategy:        string(m.Strategy),
		Status:          string(m.Status),
		CreatedAt:       m.CreatedAt.Format(time.RFC3339),
		ReviewedBy:      m.ReviewedBy,
		HumanConfidence: m.HumanConfidence,
		RejectReason:    m.RejectReason,
	}
	if m.ReviewedAt != nil {
		reviewed := m.ReviewedAt.Format(time.RFC3339)
		resp.ReviewedAt = &reviewed
	}
	return resp
}

// PendingReviewsResponse lists matches waiting for review.
type PendingReviewsResponse struct {
	Matches []MatchResponse `json:"matches"`
	Count   int             `json:"count"`
}

// BulkApproveResponse summarizes a bulk approval.
type BulkApproveResponse struct {
	ApprovedCount int                `json:"approved_count"`
	FailedCount   int                `json:"failed_count"`
	Failures      []BulkFailureEntry `json:"failures,omitempty"`
}

// BulkFailureEntry describes one match that could not be approved.
type BulkFailureEntry struct {
	MatchID string `json:"match_id"`
	Reason  string `json:"reason"`
}

// StatsResponse summarizes a tenant's reconciliation state.
type StatsResponse struct {
	TotalTransactions       int            `json:"total_transactions"`
	UnmatchedTransactions   int            `json:"unmatched_transactions"`
	TotalExpenses           int            `json:"total_expenses"`
	UnmatchedExpenses       int            `json:"unmatched_expenses"`
	MatchesByStatus         map[string]int `json:"matches_by_status"`
	AutoReconciliationRate  float64        `json:"auto_reconciliation_rate"`
	TotalReconciliationRate float64        `json:"total_reconciliation_rate"`
	AverageConfidence       float64        `json:"average_confidence"`
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []*matcher.Transaction `json:"transactions"`
	Count        int                    `json:"count"`
	Limit        int                    `json:"limit"`
	Offset       int                    `json:"offset"`
}

// ExpenseListResponse is returned when listing expenses.
type ExpenseListResponse struct {
	Expenses []*matcher.Expense `json:"expenses"`
	Count    int                `json:"count"`
	Limit    int                `json:"limit"`
	Offset   int                `json:"offset"`
}

// IngestResponse is returned after a successful ingestion.
type IngestResponse struct {
	Ingested int `json:"ingested"`
}

// MessageResponse is a generic message response.
type MessageResponse struct {
	Message string `json:"message"`
}

package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApproveMatchRequest is the request body for approving a match.
type ApproveMatchRequest struct {
	TenantID        string   `json:"tenant_id"`
	Reviewer        string   `json:"reviewer"`
	HumanConfidence *float64 `json:"human_confidence,omitempty"`
}

// RejectMatchRequest is the request body for rejecting a match.
type RejectMatchRequest struct {
	TenantID string `json:"tenant_id"`
	Reviewer string `json:"reviewer"`
	Reason   string `json:"reason"`
}

// BulkApproveRequest is the request body for approving several matches.
type BulkApproveRequest struct {
	Reviewer        string   `json:"reviewer"`
	MatchIDs        []string `json:"match_ids"`
	HumanConfidence *float64 `json:"human_confidence,omitempty"`
}

// TransactionRequest is one normalized bank transaction to ingest.
type TransactionRequest struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	PostedAt    time.Time       `json:"posted_at"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant"`
}

// IngestTransactionsRequest is the request body for transaction ingestion.
type IngestTransactionsRequest struct {
	Transactions []TransactionRequest `json:"transactions"`
}

// ExpenseRequest is one normalized expense record to ingest.
type ExpenseRequest struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	SpentAt    time.Time       `json:"spent_at"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Title      string          `json:"title"`
	Merchant   string          `json:"merchant"`
	CategoryID string          `json:"category_id"`
}

// IngestExpensesRequest is the request body for expense ingestion.
type IngestExpensesRequest struct {
	Expenses []ExpenseRequest `json:"expenses"`
}

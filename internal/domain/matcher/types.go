// Package matcher pairs bank transactions with submitted expenses.
//
// The engine generates candidate pairs with coarse date/amount filters,
// scores each pair on amount, date and vendor similarity, combines the
// sub-scores into a weighted confidence score, and classifies the result
// into auto-approval, manual review, or no match.
//
// Everything in this package is pure: the engine reads transactions and
// expenses and produces Match records, but never touches storage.
package matcher

import (
	"time"

	"github.com/shopspring/decimal"
)

// MatchStatus is the lifecycle state of a Match.
type MatchStatus string

const (
	// StatusPending means the match is queued for a specific reviewer.
	StatusPending MatchStatus = "PENDING"
	// StatusManualReview means the match awaits a human decision.
	StatusManualReview MatchStatus = "MANUAL_REVIEW"
	// StatusAutoApproved means the classifier finalized the match directly.
	StatusAutoApproved MatchStatus = "AUTO_APPROVED"
	// StatusApproved means a reviewer confirmed the match.
	StatusApproved MatchStatus = "APPROVED"
	// StatusRejected means a reviewer dismissed the match. Terminal, but the
	// underlying pair stays eligible for future runs.
	StatusRejected MatchStatus = "REJECTED"
)

// Valid reports whether s is a known status.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusPending, StatusManualReview, StatusAutoApproved, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reviewable reports whether a human may still approve or reject the match.
func (s MatchStatus) Reviewable() bool {
	return s == StatusPending || s == StatusManualReview
}

// Active reports whether the match exclusively claims its transaction and
// expense.
func (s MatchStatus) Active() bool {
	return s == StatusApproved || s == StatusAutoApproved
}

// MatchStrategy labels how a match was established. Informational only; it
// drives UI display and statistics, never scoring.
type MatchStrategy string

const (
	StrategyExact      MatchStrategy = "EXACT"
	StrategyAmountOnly MatchStrategy = "AMOUNT_ONLY"
	StrategyFuzzy      MatchStrategy = "FUZZY"
)

// Valid reports whether s is a known strategy.
func (s MatchStrategy) Valid() bool {
	switch s {
	case StrategyExact, StrategyAmountOnly, StrategyFuzzy:
		return true
	}
	return false
}

// Transaction is an immutable bank-ledger record, produced by statement
// ingestion. The engine only reads it.
type Transaction struct {
	ID          string          `json:"id"`
	TenantID    string          `json:"tenant_id"`
	AccountID   string          `json:"account_id"`
	PostedAt    time.Time       `json:"posted_at"`
	Amount      decimal.Decimal `json:"amount"` // signed; debits are negative
	Currency    string          `json:"currency"`
	Description string          `json:"description"`
	Merchant    string          `json:"merchant,omitempty"`
}

// Expense is an employee-submitted spend record, produced by the expense
// submission flow. The engine only reads it.
type Expense struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	UserID     string          `json:"user_id"`
	SpentAt    time.Time       `json:"spent_at"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Title      string          `json:"title"`
	Merchant   string          `json:"merchant,omitempty"`
	CategoryID string          `json:"category_id,omitempty"`
}

// Candidate is a (transaction, expense) pair plausible enough to score.
type Candidate struct {
	Transaction *Transaction
	Expense     *Expense
}

// FieldScores holds the three independent sub-scores, each in [0,1].
type FieldScores struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Vendor float64 `json:"vendor"`
}

// ScoredCandidate is a candidate with its sub-scores, aggregate confidence
// and strategy label attached.
type ScoredCandidate struct {
	Candidate
	Scores     FieldScores
	Confidence float64
	Strategy   MatchStrategy
}

// Match is the engine's owned record of a proposed or confirmed pairing.
type Match struct {
	ID              string        `json:"id"`
	TenantID        string        `json:"tenant_id"`
	TransactionID   string        `json:"transaction_id"`
	ExpenseID       string        `json:"expense_id"`
	AmountScore     float64       `json:"amount_score"`
	DateScore       float64       `json:"date_score"`
	VendorScore     float64       `json:"vendor_score"`
	ConfidenceScore float64       `json:"confidence_score"`
	Strategy        MatchStrategy `json:"strategy"`
	Status          MatchStatus   `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	ReviewedBy      string        `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	HumanConfidence *float64      `json:"human_confidence,omitempty"`
	RejectReason    string        `json:"reject_reason,omitempty"`
}

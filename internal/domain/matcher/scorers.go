package matcher

import (
	"math"
	"time"
)

// AmountScore scores amount proximity in [0,1]: 1.0 at zero relative
// difference, decaying linearly to 0 at the tolerance boundary. Amounts are
// compared by absolute value since sign conventions differ between bank
// ledgers and expense reports.
func (c Config) AmountScore(tx *Transaction, exp *Expense) float64 {
	txAmount := tx.Amount.Abs()
	expAmount := exp.Amount.Abs()

	if txAmount.Equal(expAmount) {
		return 1.0
	}

	larger := txAmount
	if expAmount.GreaterThan(larger) {
		larger = expAmount
	}
	if larger.IsZero() {
		return 0.0
	}

	diffRatio, _ := txAmount.Sub(expAmount).Abs().Div(larger).Float64()
	if diffRatio >= c.AmountTolerancePct {
		return 0.0
	}
	return 1.0 - diffRatio/c.AmountTolerancePct
}

// DateScore scores date proximity in [0,1]: 1.0 on the same calendar day,
// decaying linearly to 0 at the date window boundary.
func (c Config) DateScore(posted, spent time.Time) float64 {
	days := math.Abs(daysBetween(posted, spent))
	if days >= float64(c.DateWindowDays) {
		return 0.0
	}
	return 1.0 - days/float64(c.DateWindowDays)
}

// VendorScore scores merchant-name similarity in [0,1]. The transaction side
// falls back to the free-text description when no merchant was extracted;
// a missing field on either side scores 0 rather than failing.
func (c Config) VendorScore(tx *Transaction, exp *Expense) float64 {
	txName := tx.Merchant
	if txName == "" {
		txName = tx.Description
	}
	return VendorSimilarity(txName, exp.Merchant)
}

// Score computes all field scores for a candidate pair, aggregates them into
// a weighted confidence score, and selects the strategy label. Pure and
// deterministic: identical inputs always produce identical output.
func (c Config) Score(cand Candidate) ScoredCandidate {
	scores := FieldScores{
		Amount: c.AmountScore(cand.Transaction, cand.Expense),
		Date:   c.DateScore(cand.Transaction.PostedAt, cand.Expense.SpentAt),
		Vendor: c.VendorScore(cand.Transaction, cand.Expense),
	}

	confidence := c.Weights.Amount*scores.Amount +
		c.Weights.Date*scores.Date +
		c.Weights.Vendor*scores.Vendor

	return ScoredCandidate{
		Candidate:  cand,
		Scores:     scores,
		Confidence: confidence,
		Strategy:   selectStrategy(scores),
	}
}

// amountOnlyFloor is the minimum amount/date score for the AMOUNT_ONLY label
// when vendor text contributed nothing.
const amountOnlyFloor = 0.8

// selectStrategy picks the informational strategy label from the sub-scores.
func selectStrategy(s FieldScores) MatchStrategy {
	switch {
	case s.Amount == 1.0 && s.Date == 1.0:
		return StrategyExact
	case s.Vendor == 0 && s.Amount >= amountOnlyFloor && s.Date >= amountOnlyFloor:
		return StrategyAmountOnly
	default:
		return StrategyFuzzy
	}
}

// daysBetween returns the signed number of days between two instants,
// compared at day granularity in UTC.
func daysBetween(a, b time.Time) float64 {
	ad := a.UTC().Truncate(24 * time.Hour)
	bd := b.UTC().Truncate(24 * time.Hour)
	return ad.Sub(bd).Hours() / 24
}

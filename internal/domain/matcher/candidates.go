package matcher

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// GenerateCandidates finds plausible (transaction, expense) pairs using
// coarse date and amount filters, bounding the naive O(n*m) comparison by
// bucketing expenses per calendar day. It has no side effects.
//
// A pair qualifies when the records are at most DateWindowDays apart and the
// absolute amount difference is within AmountTolerancePct of the larger
// amount. Pairs with conflicting currencies are skipped; currency conversion
// is not this engine's job.
func (c Config) GenerateCandidates(ctx context.Context, txs []*Transaction, exps []*Expense) ([]Candidate, error) {
	byDay := make(map[int64][]*Expense, len(exps))
	for _, exp := range exps {
		day := epochDay(exp.SpentAt)
		byDay[day] = append(byDay[day], exp)
	}

	var candidates []Candidate
	window := int64(c.DateWindowDays)

	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := epochDay(tx.PostedAt)
		for offset := -window; offset <= window; offset++ {
			for _, exp := range byDay[day+offset] {
				if !c.amountsComparable(tx, exp) {
					continue
				}
				candidates = append(candidates, Candidate{Transaction: tx, Expense: exp})
			}
		}
	}

	return candidates, nil
}

// amountsComparable applies the coarse amount filter: absolute amounts must
// differ by no more than the tolerance fraction of the larger amount, and
// currencies must not conflict.
func (c Config) amountsComparable(tx *Transaction, exp *Expense) bool {
	if tx.Currency != "" && exp.Currency != "" && tx.Currency != exp.Currency {
		return false
	}

	txAmount := tx.Amount.Abs()
	expAmount := exp.Amount.Abs()

	larger := txAmount
	if expAmount.GreaterThan(larger) {
		larger = expAmount
	}
	if larger.IsZero() {
		return txAmount.Equal(expAmount)
	}

	diff := txAmount.Sub(expAmount).Abs()
	tolerance := larger.Mul(tolerancePctDecimal(c.AmountTolerancePct))
	return diff.LessThanOrEqual(tolerance)
}

func tolerancePctDecimal(pct float64) decimal.Decimal {
	return decimal.NewFromFloat(pct)
}

func epochDay(t time.Time) int64 {
	return t.UTC().Unix() / (24 * 60 * 60)
}

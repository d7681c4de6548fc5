package matcher

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine runs the full candidate-generation, scoring and classification
// pipeline over a tenant's unmatched records.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine after validating the configuration.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid matcher config: %w", err)
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// RunResult is the outcome of a single matching run.
type RunResult struct {
	// Matches are the newly created Match records, highest confidence first.
	Matches []*Match
	// CandidateCount is how many pairs passed the coarse filters.
	CandidateCount int
	// AutoApproved and QueuedForReview partition Matches by disposition.
	AutoApproved    int
	QueuedForReview int
	// Discarded counts scored candidates below the review threshold.
	Discarded int
}

// Run matches the given transactions against the given expenses. Callers
// must pass only records without an active match; the engine additionally
// guarantees that within one run no transaction or expense participates in
// more than one created Match, resolving contention in descending confidence
// order so the highest-confidence pairing wins.
//
// Cancellation via ctx aborts the scan; any Matches the caller already
// persisted from a previous run remain valid.
func (e *Engine) Run(ctx context.Context, txs []*Transaction, exps []*Expense) (*RunResult, error) {
	candidates, err := e.cfg.GenerateCandidates(ctx, txs, exps)
	if err != nil {
		return nil, err
	}

	scored, err := e.scoreAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	// Descending confidence; ties broken on record IDs for determinism.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Confidence != scored[j].Confidence {
			return scored[i].Confidence > scored[j].Confidence
		}
		if scored[i].Transaction.ID != scored[j].Transaction.ID {
			return scored[i].Transaction.ID < scored[j].Transaction.ID
		}
		return scored[i].Expense.ID < scored[j].Expense.ID
	})

	result := &RunResult{CandidateCount: len(candidates)}
	claimedTx := make(map[string]bool)
	claimedExp := make(map[string]bool)
	now := time.Now().UTC()

	for _, sc := range scored {
		status, create := e.cfg.Classify(sc.Confidence).Status()
		if !create {
			result.Discarded++
			continue
		}
		if claimedTx[sc.Transaction.ID] || claimedExp[sc.Expense.ID] {
			continue
		}
		claimedTx[sc.Transaction.ID] = true
		claimedExp[sc.Expense.ID] = true

		result.Matches = append(result.Matches, &Match{
			ID:              uuid.NewString(),
			TenantID:        sc.Transaction.TenantID,
			TransactionID:   sc.Transaction.ID,
			ExpenseID:       sc.Expense.ID,
			AmountScore:     sc.Scores.Amount,
			DateScore:       sc.Scores.Date,
			VendorScore:     sc.Scores.Vendor,
			ConfidenceScore: sc.Confidence,
			Strategy:        sc.Strategy,
			Status:          status,
			CreatedAt:       now,
		})
		if status == StatusAutoApproved {
			result.AutoApproved++
		} else {
			result.QueuedForReview++
		}
	}

	return result, nil
}

// scoreAll scores candidates across a bounded pool of workers. Scoring is
// pure per pair, so order of execution does not matter; results keep the
// candidate slice's indexing.
func (e *Engine) scoreAll(ctx context.Context, candidates []Candidate) ([]ScoredCandidate, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	workers := e.cfg.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	scored := make([]ScoredCandidate, len(candidates))
	var wg sync.WaitGroup
	wg.Add(workers)

	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			for i := start; i < len(candidates); i += workers {
				if ctx.Err() != nil {
					return
				}
				scored[i] = e.cfg.Score(candidates[i])
			}
		}(w)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return scored, nil
}

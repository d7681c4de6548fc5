package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
)

// ApproveMatch transitions a reviewable match to APPROVED and records the
// reviewer's identity and optional confidence override.
func (s *ReconService) ApproveMatch(ctx context.Context, tenantID, matchID, reviewer string, humanConfidence *float64) (*matcher.Match, error) {
	if humanConfidence != nil && (*humanConfidence < 0 || *humanConfidence > 1) {
		return nil, fmt.Errorf("%w: human confidence must be in [0, 1]", ErrInvalidArgument)
	}

	m, err := s.storage.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, translateStorageErr(err)
	}

	now := time.Now().UTC()
	m.Status = matcher.StatusApproved
	m.ReviewedBy = reviewer
	m.ReviewedAt = &now
	m.HumanConfidence = humanConfidence

	if err := s.storage.UpdateMatchReview(ctx, m); err != nil {
		return nil, translateStorageErr(err)
	}

	s.logger.Info("match approved",
		"tenant_id", tenantID,
		"match_id", matchID,
		"reviewer", reviewer,
	)
	return m, nil
}

// RejectMatch transitions a reviewable match to REJECTED. A reason is
// required; the underlying transaction and expense become matchable again on
// the next run.
func (s *ReconService) RejectMatch(ctx context.Context, tenantID, matchID, reviewer, reason string) (*matcher.Match, error) {
	if reason == "" {
		return nil, fmt.Errorf("%w: reject reason is required", ErrInvalidArgument)
	}

	m, err := s.storage.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, translateStorageErr(err)
	}

	now := time.Now().UTC()
	m.Status = matcher.StatusRejected
	m.ReviewedBy = reviewer
	m.ReviewedAt = &now
	m.RejectReason = reason

	if err := s.storage.UpdateMatchReview(ctx, m); err != nil {
		return nil, translateStorageErr(err)
	}

	s.logger.Info("match rejected",
		"tenant_id", tenantID,
		"match_id", matchID,
		"reviewer", reviewer,
		"reason", reason,
	)
	return m, nil
}

// BulkFailure describes one match that could not be approved in a bulk
// request.
type BulkFailure struct {
	MatchID string
	Reason  string
}

// BulkResult summarizes a bulk approval.
type BulkResult struct {
	ApprovedCount int
	FailedCount   int
	Failures      []BulkFailure
}

// BulkApprove approves a set of matches, continuing past individual
// failures. Each failure is reported with the reason; the overall call only
// errors on invalid input.
func (s *ReconService) BulkApprove(ctx context.Context, tenantID, reviewer string, matchIDs []string, humanConfidence *float64) (*BulkResult, error) {
	if len(matchIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one match id is required", ErrInvalidArgument)
	}

	result := &BulkResult{}
	for _, id := range matchIDs {
		if _, err := s.ApproveMatch(ctx, tenantID, id, reviewer, humanConfidence); err != nil {
			result.FailedCount++
			result.Failures = append(result.Failures, BulkFailure{MatchID: id, Reason: err.Error()})
			continue
		}
		result.ApprovedCount++
	}

	s.logger.Info("bulk approval finished",
		"tenant_id", tenantID,
		"approved", result.ApprovedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

// GetMatch returns a single match scoped to a tenant.
func (s *ReconService) GetMatch(ctx context.Context, tenantID, matchID string) (*matcher.Match, error) {
	m, err := s.storage.GetMatch(ctx, tenantID, matchID)
	if err != nil {
		return nil, translateStorageErr(err)
	}
	return m, nil
}

// GetPendingReviews lists matches waiting for a human decision, highest
// confidence first by default.
func (s *ReconService) GetPendingReviews(ctx context.Context, tenantID string, limit, offset int, sortBy string) ([]*matcher.Match, error) {
	switch sortBy {
	case "", "confidence", "created_at":
	default:
		return nil, fmt.Errorf("%w: unsupported sort %q", ErrInvalidArgument, sortBy)
	}

	return s.storage.ListMatches(ctx, tenantID, storage.MatchFilters{
		Statuses: []matcher.MatchStatus{matcher.StatusPending, matcher.StatusManualReview},
		Limit:    limit,
		Offset:   offset,
		SortBy:   sortBy,
	})
}

// translateStorageErr maps storage sentinels onto service sentinels so
// handlers only ever see the service's error vocabulary.
func translateStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrMatchNotFound):
		return fmt.Errorf("%w: match", ErrNotFound)
	case errors.Is(err, storage.ErrNotReviewable):
		return fmt.Errorf("%w: match is not reviewable", ErrInvalidState)
	case errors.Is(err, storage.ErrActiveMatchConflict):
		return fmt.Errorf("%w: an active match already exists for the transaction or expense", ErrConflict)
	default:
		return err
	}
}

package service

import (
	"context"
	"fmt"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// IngestTransactions stores already-normalized bank transactions for a
// tenant. Records are validated before any write happens.
func (s *ReconService) IngestTransactions(ctx context.Context, tenantID string, txs []*matcher.Transaction) error {
	if len(txs) == 0 {
		return fmt.Errorf("%w: at least one transaction is required", ErrInvalidArgument)
	}
	for i, t := range txs {
		if t.ID == "" {
			return fmt.Errorf("%w: transaction %d is missing an id", ErrInvalidArgument, i)
		}
		if t.Currency == "" {
			return fmt.Errorf("%w: transaction %s is missing a currency", ErrInvalidArgument, t.ID)
		}
		if t.PostedAt.IsZero() {
			return fmt.Errorf("%w: transaction %s is missing a posting date", ErrInvalidArgument, t.ID)
		}
		t.TenantID = tenantID
	}

	if err := s.storage.SaveTransactions(ctx, tenantID, txs); err != nil {
		return err
	}
	s.logger.Info("transactions ingested", "tenant_id", tenantID, "count", len(txs))
	return nil
}

// IngestExpenses stores already-normalized expense reports for a tenant.
func (s *ReconService) IngestExpenses(ctx context.Context, tenantID string, exps []*matcher.Expense) error {
	if len(exps) == 0 {
		return fmt.Errorf("%w: at least one expense is required", ErrInvalidArgument)
	}
	for i, e := range exps {
		if e.ID == "" {
			return fmt.Errorf("%w: expense %d is missing an id", ErrInvalidArgument, i)
		}
		if e.Currency == "" {
			return fmt.Errorf("%w: expense %s is missing a currency", ErrInvalidArgument, e.ID)
		}
		if e.SpentAt.IsZero() {
			return fmt.Errorf("%w: expense %s is missing a spend date", ErrInvalidArgument, e.ID)
		}
		e.TenantID = tenantID
	}

	if err := s.storage.SaveExpenses(ctx, tenantID, exps); err != nil {
		return err
	}
	s.logger.Info("expenses ingested", "tenant_id", tenantID, "count", len(exps))
	return nil
}

// ListTransactions returns a page of a tenant's transactions.
func (s *ReconService) ListTransactions(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Transaction, error) {
	return s.storage.ListTransactions(ctx, tenantID, limit, offset)
}

// ListExpenses returns a page of a tenant's expenses.
func (s *ReconService) ListExpenses(ctx context.Context, tenantID string, limit, offset int) ([]*matcher.Expense, error) {
	return s.storage.ListExpenses(ctx, tenantID, limit, offset)
}

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/api/dto"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
)

// RecordsHandler handles transaction and expense HTTP requests.
type RecordsHandler struct {
	*Base
	svc *service.ReconService
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(svc *service.ReconService) *RecordsHandler {
	return &RecordsHandler{Base: &Base{}, svc: svc}
}

// ListTransactions handles GET /api/tenants/{tenantID}/transactions.
func (h *RecordsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)

	txs, err := h.svc.ListTransactions(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []*matcher.Transaction{}
	}

	h.WriteJSON(w, http.StatusOK, dto.TransactionListResponse{
		Transactions: txs,
		Count:        len(txs),
		Limit:        limit,
		Offset:       offset,
	})
}

// IngestTransactions handles POST /api/tenants/{tenantID}/transactions.
func (h *RecordsHandler) IngestTransactions(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req dto.IngestTransactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	txs := make([]*matcher.Transaction, 0, len(req.Transactions))
	for _, t := range req.Transactions {
		txs = append(txs, &matcher.Transaction{
			ID:          t.ID,
			TenantID:    tenantID,
			AccountID:   t.AccountID,
			PostedAt:    t.PostedAt,
			Amount:      t.Amount,
			Currency:    t.Currency,
			Description: t.Description,
			Merchant:    t.Merchant,
		})
	}

	if err := h.svc.IngestTransactions(r.Context(), tenantID, txs); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.IngestResponse{Ingested: len(txs)})
}

// ListExpenses handles GET /api/tenants/{tenantID}/expenses.
func (h *RecordsHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)

	exps, err := h.svc.ListExpenses(r.Context(), tenantID, limit, offset)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}
	if exps == nil {
		exps = []*matcher.Expense{}
	}

	h.WriteJSON(w, http.StatusOK, dto.ExpenseListResponse{
		Expenses: exps,
		Count:    len(exps),
		Limit:    limit,
		Offset:   offset,
	})
}

// IngestExpenses handles POST /api/tenants/{tenantID}/expenses.
func (h *RecordsHandler) IngestExpenses(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req dto.IngestExpensesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	exps := make([]*matcher.Expense, 0, len(req.Expenses))
	for _, e := range req.Expenses {
		exps = append(exps, &matcher.Expense{
			ID:         e.ID,
			TenantID:   tenantID,
			UserID:     e.UserID,
			SpentAt:    e.SpentAt,
			Amount:     e.Amount,
			Currency:   e.Currency,
			Title:      e.Title,
			Merchant:   e.Merchant,
			CategoryID: e.CategoryID,
		})
	}

	if err := h.svc.IngestExpenses(r.Context(), tenantID, exps); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, dto.IngestResponse{Ingested: len(exps)})
}

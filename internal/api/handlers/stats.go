package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/api/dto"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
)

// StatsHandler handles statistics HTTP requests.
type StatsHandler struct {
	*Base
	svc *service.ReconService
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(svc *service.ReconService) *StatsHandler {
	return &StatsHandler{Base: &Base{}, svc: svc}
}

// Get handles GET /api/tenants/{tenantID}/stats.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	stats, err := h.svc.GetStatistics(r.Context(), tenantID)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	byStatus := make(map[string]int, len(stats.MatchesByStatus))
	for status, count := range stats.MatchesByStatus {
		byStatus[string(status)] = count
	}

	h.WriteJSON(w, http.StatusOK, dto.StatsResponse{
		TotalTransactions:       stats.TotalTransactions,
		UnmatchedTransactions:   stats.UnmatchedTransactions,
		TotalExpenses:           stats.TotalExpenses,
		UnmatchedExpenses:       stats.UnmatchedExpenses,
		MatchesByStatus:         byStatus,
		AutoReconciliationRate:  stats.AutoReconciliationRate,
		TotalReconciliationRate: stats.TotalReconciliationRate,
		AverageConfidence:       stats.AverageConfidence,
	})
}

package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/application/service"
)

// ReportsHandler handles reconciliation report HTTP requests.
type ReportsHandler struct {
	*Base
	svc *service.ReconService
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(svc *service.ReconService) *ReportsHandler {
	return &ReportsHandler{Base: &Base{}, svc: svc}
}

// Get handles GET /api/tenants/{tenantID}/reports/reconciliation.
// Query parameters: period (free-form label), format ("csv" or "json",
// default "json").
func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	period := r.URL.Query().Get("period")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	report, err := h.svc.GenerateReconciliationReport(r.Context(), tenantID, period, format)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(report.Data)
}

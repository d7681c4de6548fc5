package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/api/dto"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
)

// ReviewsHandler handles match review HTTP requests.
type ReviewsHandler struct {
	*Base
	svc *service.ReconService
}

// NewReviewsHandler creates a new reviews handler.
func NewReviewsHandler(svc *service.ReconService) *ReviewsHandler {
	return &ReviewsHandler{Base: &Base{}, svc: svc}
}

// ListPending handles GET /api/tenants/{tenantID}/reviews.
func (h *ReviewsHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	limit := ParseIntParam(r, "limit", 50)
	offset := ParseIntParam(r, "offset", 0)
	sortBy := r.URL.Query().Get("sort_by")

	matches, err := h.svc.GetPendingReviews(r.Context(), tenantID, limit, offset, sortBy)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	response := dto.PendingReviewsResponse{
		Matches: make([]dto.MatchResponse, 0, len(matches)),
		Count:   len(matches),
	}
	for _, m := range matches {
		response.Matches = append(response.Matches, dto.ToMatchResponse(m))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Approve handles POST /api/matches/{matchID}/approve.
func (h *ReviewsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	var req dto.ApproveMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.TenantID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("tenant_id is required"))
		return
	}

	m, err := h.svc.ApproveMatch(r.Context(), req.TenantID, matchID, req.Reviewer, req.HumanConfidence)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToMatchResponse(m))
}

// Reject handles POST /api/matches/{matchID}/reject.
func (h *ReviewsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	matchID := chi.URLParam(r, "matchID")

	var req dto.RejectMatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}
	if req.TenantID == "" {
		h.WriteError(w, http.StatusBadRequest, dto.ValidationError("tenant_id is required"))
		return
	}

	m, err := h.svc.RejectMatch(r.Context(), req.TenantID, matchID, req.Reviewer, req.Reason)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.ToMatchResponse(m))
}

// BulkApprove handles POST /api/tenants/{tenantID}/reviews/bulk-approve.
func (h *ReviewsHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req dto.BulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	result, err := h.svc.BulkApprove(r.Context(), tenantID, req.Reviewer, req.MatchIDs, req.HumanConfidence)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	response := dto.BulkApproveResponse{
		ApprovedCount: result.ApprovedCount,
		FailedCount:   result.FailedCount,
	}
	for _, f := range result.Failures {
		response.Failures = append(response.Failures, dto.BulkFailureEntry{
			MatchID: f.MatchID,
			Reason:  f.Reason,
		})
	}

	h.WriteJSON(w, http.StatusOK, response)
}

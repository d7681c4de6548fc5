package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/reconcile-backend/internal/api/dto"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
)

// RunsHandler handles matching-run HTTP requests.
type RunsHandler struct {
	*Base
	svc *service.ReconService
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(svc *service.ReconService) *RunsHandler {
	return &RunsHandler{Base: &Base{}, svc: svc}
}

// Start handles POST /api/tenants/{tenantID}/matching/runs.
func (h *RunsHandler) Start(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	jobID, err := h.svc.StartRun(r.Context(), tenantID)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusAccepted, dto.StartRunResponse{
		JobID:    jobID,
		TenantID: tenantID,
		Status:   string(service.StatusPending),
	})
}

// List handles GET /api/tenants/{tenantID}/matching/runs.
func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	jobs := h.svc.ListRunJobs(tenantID)

	response := dto.RunListResponse{
		Jobs:  make([]dto.RunJobResponse, 0, len(jobs)),
		Count: len(jobs),
	}
	for _, job := range jobs {
		response.Jobs = append(response.Jobs, toRunJobResponse(job))
	}

	h.WriteJSON(w, http.StatusOK, response)
}

// Get handles GET /api/tenants/{tenantID}/matching/runs/{jobID}.
func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	jobID := chi.URLParam(r, "jobID")

	job, err := h.svc.GetRunJob(tenantID, jobID)
	if err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, toRunJobResponse(job))
}

// Cancel handles DELETE /api/tenants/{tenantID}/matching/runs/{jobID}.
func (h *RunsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	jobID := chi.URLParam(r, "jobID")

	if err := h.svc.CancelRun(tenantID, jobID); err != nil {
		h.WriteServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "run cancelled"})
}

func toRunJobResponse(job *service.RunJob) dto.RunJobResponse {
	resp := dto.RunJobResponse{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Status:    string(job.Status),
		StartedAt: job.StartedAt.Format(time.RFC3339),
		Progress: dto.RunProgressResponse{
			CurrentPhase: job.Progress.CurrentPhase,
			Transactions: job.Progress.Transactions,
			Expenses:     job.Progress.Expenses,
			LastUpdate:   job.Progress.LastUpdate.Format(time.RFC3339),
		},
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completed
	}
	if job.Summary != nil {
		resp.Summary = &dto.RunSummaryResponse{
			CandidateCount:  job.Summary.CandidateCount,
			MatchesCreated:  job.Summary.MatchesCreated,
			AutoApproved:    job.Summary.AutoApproved,
			QueuedForReview: job.Summary.QueuedForReview,
			Discarded:       job.Summary.Discarded,
		}
	}
	if job.Error != nil {
		msg := job.Error.Error()
		resp.Error = &msg
	}

	return resp
}

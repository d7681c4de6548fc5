package dto

// StartRunResponse is returned when a matching run is started.
type StartRunResponse struct {
	JobID    string `json:"job_id"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status"`
}

// RunJobResponse represents a matching run's status.
type RunJobResponse struct {
	JobID       string              `json:"job_id"`
	TenantID    string              `json:"tenant_id"`
	Status      string              `json:"status"`
	StartedAt   string              `json:"started_at"`
	CompletedAt *string             `json:"completed_at,omitempty"`
	Progress    RunProgressResponse `json:"progress"`
	Summary     *RunSummaryResponse `json:"summary,omitempty"`
	Error       *string             `json:"error,omitempty"`
}

// RunProgressResponse represents real-time run progress.
type RunProgressResponse struct {
	CurrentPhase string `json:"current_phase"`
	Transactions int    `json:"transactions"`
	Expenses     int    `json:"expenses"`
	LastUpdate   string `json:"last_update"`
}

// RunSummaryResponse represents the final result of a run.
type RunSummaryResponse struct {
	CandidateCount  int `json:"candidate_count"`
	MatchesCreated  int `json:"matches_created"`
	AutoApproved    int `json:"auto_approved"`
	QueuedForReview int `json:"queued_for_review"`
	Discarded       int `json:"discarded"`
}

// RunListResponse lists matching runs.
type RunListResponse struct {
	Jobs  []RunJobResponse `json:"jobs"`
	Count int              `json:"count"`
}

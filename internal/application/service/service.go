package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
)

// RunStatus represents the current state of a matching run job.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Finished reports whether the status is terminal. A finished job is never
// moved back to a live status.
func (s RunStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before being considered stale.
	DefaultJobStaleThreshold = 10 * time.Minute

	// DefaultJobMaxDuration is the maximum time a run can take before being
	// forcefully marked as failed.
	DefaultJobMaxDuration = 1 * time.Hour

	// DefaultJobRetention is how long finished jobs stay queryable.
	DefaultJobRetention = 24 * time.Hour
)

// RunProgress holds real-time progress information for a matching run.
type RunProgress struct {
	CurrentPhase string // "pending", "loading_records", "scoring", "persisting", "completed", "failed", "cancelled"
	Transactions int
	Expenses     int
	LastUpdate   time.Time
}

// RunSummary holds the counts reported by a completed matching run.
type RunSummary struct {
	CandidateCount  int
	MatchesCreated  int
	AutoApproved    int
	QueuedForReview int
	Discarded       int
}

// RunJob represents a running or completed matching run.
type RunJob struct {
	ID          string
	TenantID    string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	Progress    RunProgress
	Summary     *RunSummary
	Error       error
	cancelFunc  context.CancelFunc
}

// ReconService manages matching runs, match reviews and reconciliation
// statistics for all tenants.
type ReconService struct {
	cfg     matcher.Config
	storage storage.Repository
	logger  *slog.Logger

	// Job management
	jobs      map[string]*RunJob
	jobsMutex sync.RWMutex

	// Tenant-level locking (only one matching run per tenant at a time)
	tenantLocks map[string]*sync.Mutex
	locksMutex  sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewReconService creates a reconciliation service.
func NewReconService(cfg matcher.Config, store storage.Repository, logger *slog.Logger) (*ReconService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return &ReconService{
		cfg:         cfg,
		storage:     store,
		logger:      logger,
		jobs:        make(map[string]*RunJob),
		tenantLocks: make(map[string]*sync.Mutex),
	}, nil
}

// StartRun starts a matching run for a tenant asynchronously and returns the
// job ID. The passed context is NOT used as the parent for the background
// job; runs use context.Background() so they survive the HTTP request that
// started them. Use CancelRun to cancel a running job.
func (s *ReconService) StartRun(_ context.Context, tenantID string) (string, error) {
	if tenantID == "" {
		return "", fmt.Errorf("%w: tenant id is required", ErrInvalidArgument)
	}

	if !s.tryLockTenant(tenantID) {
		return "", fmt.Errorf("%w: tenant %s", ErrAlreadyRunning, tenantID)
	}

	jobID := s.generateJobID(tenantID)
	jobCtx, cancel := context.WithCancel(context.Background())

	job := &RunJob{
		ID:         jobID,
		TenantID:   tenantID,
		Status:     StatusPending,
		StartedAt:  time.Now(),
		cancelFunc: cancel,
		Progress:   RunProgress{CurrentPhase: "pending", LastUpdate: time.Now()},
	}

	s.jobsMutex.Lock()
	s.jobs[jobID] = job
	s.jobsMutex.Unlock()

	go s.runMatchingJob(jobCtx, job)

	s.logger.Info("matching run started", "job_id", jobID, "tenant_id", tenantID)
	return jobID, nil
}

// GetRunJob retrieves a run job by ID, scoped to a tenant.
func (s *ReconService) GetRunJob(tenantID, jobID string) (*RunJob, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists || job.TenantID != tenantID {
		return nil, fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}
	return job, nil
}

// ListRunJobs returns all of a tenant's jobs, newest first.
func (s *ReconService) ListRunJobs(tenantID string) []*RunJob {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	var jobs []*RunJob
	for _, job := range s.jobs {
		if job.TenantID == tenantID {
			jobs = append(jobs, job)
		}
	}
	sortJobsByStartDesc(jobs)
	return jobs
}

// CancelRun cancels a pending or running matching job.
func (s *ReconService) CancelRun(tenantID, jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists || job.TenantID != tenantID {
		return fmt.Errorf("%w: job %s", ErrNotFound, jobID)
	}

	if job.Status != StatusPending && job.Status != StatusRunning {
		return fmt.Errorf("%w: job cannot be cancelled: status=%s", ErrInvalidState, job.Status)
	}

	job.cancelFunc()
	job.Status = StatusCancelled
	now := time.Now()
	job.CompletedAt = &now
	job.Progress.CurrentPhase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("matching run cancelled", "job_id", jobID, "tenant_id", tenantID)
	return nil
}

// runMatchingJob executes a matching run in a background goroutine.
func (s *ReconService) runMatchingJob(ctx context.Context, job *RunJob) {
	defer s.unlockTenant(job.TenantID)

	s.updateJobPhase(job.ID, StatusRunning, "loading_records")

	txs, err := s.storage.ListUnmatchedTransactions(ctx, job.TenantID)
	if err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to load transactions: %w", err))
		return
	}
	exps, err := s.storage.ListUnmatchedExpenses(ctx, job.TenantID)
	if err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to load expenses: %w", err))
		return
	}

	s.jobsMutex.Lock()
	if j, exists := s.jobs[job.ID]; exists {
		j.Progress.Transactions = len(txs)
		j.Progress.Expenses = len(exps)
	}
	s.jobsMutex.Unlock()

	s.updateJobPhase(job.ID, StatusRunning, "scoring")

	engine, err := matcher.NewEngine(s.cfg)
	if err != nil {
		s.failJob(job.ID, err)
		return
	}

	result, err := engine.Run(ctx, txs, exps)
	if err != nil {
		if ctx.Err() == context.Canceled {
			// Already marked as cancelled in CancelRun
			return
		}
		s.failJob(job.ID, err)
		return
	}

	s.updateJobPhase(job.ID, StatusRunning, "persisting")

	if err := s.storage.CreateMatches(ctx, job.TenantID, result.Matches); err != nil {
		s.failJob(job.ID, fmt.Errorf("failed to persist matches: %w", err))
		return
	}

	s.completeJob(job.ID, result)
}

// updateJobPhase updates a job's status and current phase.
func (s *ReconService) updateJobPhase(jobID string, status RunStatus, phase string) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && !job.Status.Finished() {
		job.Status = status
		job.Progress.CurrentPhase = phase
		job.Progress.LastUpdate = time.Now()
	}
}

// completeJob marks a job as completed with its run summary.
func (s *ReconService) completeJob(jobID string, result *matcher.RunResult) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && !job.Status.Finished() {
		now := time.Now()
		job.Status = StatusCompleted
		job.CompletedAt = &now
		job.Summary = &RunSummary{
			CandidateCount:  result.CandidateCount,
			MatchesCreated:  len(result.Matches),
			AutoApproved:    result.AutoApproved,
			QueuedForReview: result.QueuedForReview,
			Discarded:       result.Discarded,
		}
		job.Progress.CurrentPhase = "completed"
		job.Progress.LastUpdate = now
		s.logger.Info("matching run completed",
			"job_id", jobID,
			"tenant_id", job.TenantID,
			"candidates", result.CandidateCount,
			"matches", len(result.Matches),
			"auto_approved", result.AutoApproved,
			"queued_for_review", result.QueuedForReview,
		)
	}
}

// failJob marks a job as failed with an error.
func (s *ReconService) failJob(jobID string, err error) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists && !job.Status.Finished() {
		now := time.Now()
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = err
		job.Progress.CurrentPhase = "failed"
		job.Progress.LastUpdate = now
		s.logger.Error("matching run failed", "job_id", jobID, "tenant_id", job.TenantID, "error", err)
	}
}

// tryLockTenant attempts to acquire the run lock for a tenant.
func (s *ReconService) tryLockTenant(tenantID string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.tenantLocks[tenantID]; !exists {
		s.tenantLocks[tenantID] = &sync.Mutex{}
	}
	return s.tenantLocks[tenantID].TryLock()
}

// unlockTenant releases the run lock for a tenant.
func (s *ReconService) unlockTenant(tenantID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.tenantLocks[tenantID]; exists {
		lock.Unlock()
	}
}

// generateJobID creates a unique job ID.
func (s *ReconService) generateJobID(tenantID string) string {
	return fmt.Sprintf("%s-%d", tenantID, time.Now().UnixNano())
}

// CleanupOldJobs removes finished jobs older than the specified duration.
func (s *ReconService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, job := range s.jobs {
		if job.Status.Finished() {
			if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
				delete(s.jobs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old run jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed finds jobs that appear to be stuck and marks them as
// failed. A job is stale if it has run longer than maxDuration or its
// progress has not updated within staleThreshold. This covers goroutines
// that panicked without updating job state and jobs that are genuinely hung.
func (s *ReconService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0

	for id, job := range s.jobs {
		if job.Status != StatusRunning && job.Status != StatusPending {
			continue
		}

		isStale := false
		reason := ""

		if now.Sub(job.StartedAt) > maxDuration {
			isStale = true
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		}
		if !isStale && now.Sub(job.Progress.LastUpdate) > staleThreshold {
			isStale = true
			reason = fmt.Sprintf("no progress update for %v", now.Sub(job.Progress.LastUpdate).Round(time.Second))
		}

		if isStale {
			if job.cancelFunc != nil {
				job.cancelFunc()
			}
			job.Status = StatusFailed
			job.CompletedAt = &now
			job.Error = fmt.Errorf("job marked as stale: %s", reason)
			job.Progress.CurrentPhase = "failed"
			job.Progress.LastUpdate = now

			s.releaseTenantLockUnsafe(job.TenantID)

			s.logger.Warn("marked stale run as failed",
				"job_id", id,
				"tenant_id", job.TenantID,
				"reason", reason,
				"started_at", job.StartedAt,
			)
			marked++
		}
	}

	return marked
}

// releaseTenantLockUnsafe releases a tenant run lock from cleanup paths.
// MUST only be called while holding jobsMutex.
func (s *ReconService) releaseTenantLockUnsafe(tenantID string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.tenantLocks[tenantID]; exists {
		// If the lock is free this is a harmless round trip. If it is still
		// held, the run goroutine's deferred unlockTenant releases it when
		// the cancelled context unwinds; unlocking it here would either
		// double-unlock or steal the lock from a newer run.
		if lock.TryLock() {
			lock.Unlock()
		}
	}
}

// IsJobStale checks if a specific job is considered stale.
func (s *ReconService) IsJobStale(jobID string, staleThreshold, maxDuration time.Duration) bool {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return false
	}
	if job.Status != StatusRunning && job.Status != StatusPending {
		return false
	}

	now := time.Now()
	return now.Sub(job.StartedAt) > maxDuration || now.Sub(job.Progress.LastUpdate) > staleThreshold
}

// StartBackgroundCleanup starts a goroutine that periodically marks stale
// jobs as failed and removes old finished jobs. Call StopBackgroundCleanup
// to stop it.
func (s *ReconService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		s.logger.Info("background job cleanup started",
			"check_interval", checkInterval,
			"stale_threshold", DefaultJobStaleThreshold,
			"max_duration", DefaultJobMaxDuration,
		)

		for {
			select {
			case <-s.cleanupStop:
				s.logger.Info("background job cleanup stopped")
				return
			case <-ticker.C:
				if marked := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); marked > 0 {
					s.logger.Info("marked stale runs as failed", "count", marked)
				}
				if cleaned := s.CleanupOldJobs(DefaultJobRetention); cleaned > 0 {
					s.logger.Debug("cleaned up old runs", "count", cleaned)
				}
			}
		}
	}()
}

// StopBackgroundCleanup stops the background cleanup goroutine and blocks
// until it has fully stopped.
func (s *ReconService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}

func sortJobsByStartDesc(jobs []*RunJob) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
}

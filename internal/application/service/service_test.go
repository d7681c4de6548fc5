package service

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
)

const testTenant = "tenant-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(t *testing.T, store storage.Repository) *ReconService {
	t.Helper()
	svc, err := NewReconService(matcher.DefaultConfig(), store, testLogger())
	require.NoError(t, err)
	return svc
}

func seedExactPair(t *testing.T, store *storage.MockRepository) {
	t.Helper()
	ctx := context.Background()
	when := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransactions(ctx, testTenant, []*matcher.Transaction{{
		ID:       "t1",
		TenantID: testTenant,
		PostedAt: when,
		Amount:   decimal.RequireFromString("42.00"),
		Currency: "USD",
		Merchant: "Acme Supplies",
	}}))
	require.NoError(t, store.SaveExpenses(ctx, testTenant, []*matcher.Expense{{
		ID:       "e1",
		TenantID: testTenant,
		SpentAt:  when,
		Amount:   decimal.RequireFromString("42.00"),
		Currency: "USD",
		Merchant: "Acme Supplies",
	}}))
}

func waitForStatus(t *testing.T, svc *ReconService, jobID string, want RunStatus) *RunJob {
	t.Helper()
	var job *RunJob
	require.Eventually(t, func() bool {
		var err error
		job, err = svc.GetRunJob(testTenant, jobID)
		return err == nil && job.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestReconService_InvalidConfig(t *testing.T) {
	cfg := matcher.DefaultConfig()
	cfg.AutoApproveThreshold = 2.0

	_, err := NewReconService(cfg, storage.NewMockRepository(), testLogger())

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReconService_StartRun_MissingTenant(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	_, err := svc.StartRun(context.Background(), "")

	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestReconService_StartRun_CompletesAndPersists(t *testing.T) {
	store := storage.NewMockRepository()
	seedExactPair(t, store)
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	job := waitForStatus(t, svc, jobID, StatusCompleted)
	require.NotNil(t, job.Summary)
	assert.Equal(t, 1, job.Summary.MatchesCreated)
	assert.Equal(t, 1, job.Summary.AutoApproved)
	assert.Equal(t, 0, job.Summary.QueuedForReview)
	assert.True(t, store.CreateMatchesCalled)
	require.Len(t, store.LastCreatedMatches, 1)
	assert.Equal(t, matcher.StatusAutoApproved, store.LastCreatedMatches[0].Status)
}

func TestReconService_StartRun_SingleFlightPerTenant(t *testing.T) {
	release := make(chan struct{})
	store := &blockingRepository{
		MockRepository: storage.NewMockRepository(),
		release:        release,
	}
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	// A second run for the same tenant is rejected while the first holds
	// the tenant lock. Another tenant is unaffected.
	_, err = svc.StartRun(context.Background(), testTenant)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	_, err = svc.StartRun(context.Background(), "tenant-2")
	assert.NoError(t, err)

	close(release)
	waitForStatus(t, svc, jobID, StatusCompleted)

	// The lock is released once the run finishes.
	_, err = svc.StartRun(context.Background(), testTenant)
	assert.NoError(t, err)
}

func TestReconService_StartRun_StorageFailure(t *testing.T) {
	store := storage.NewMockRepository()
	store.ListUnmatchedErr = assert.AnError
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	job := waitForStatus(t, svc, jobID, StatusFailed)
	assert.ErrorIs(t, job.Error, assert.AnError)
}

func TestReconService_GetRunJob_NotFound(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	_, err := svc.GetRunJob(testTenant, "non-existent")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconService_GetRunJob_WrongTenant(t *testing.T) {
	store := storage.NewMockRepository()
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	_, err = svc.GetRunJob("tenant-2", jobID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconService_ListRunJobs_ScopedToTenant(t *testing.T) {
	store := storage.NewMockRepository()
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)
	_, err = svc.StartRun(context.Background(), "tenant-2")
	require.NoError(t, err)

	waitForStatus(t, svc, jobID, StatusCompleted)

	jobs := svc.ListRunJobs(testTenant)
	require.Len(t, jobs, 1)
	assert.Equal(t, jobID, jobs[0].ID)
}

func TestReconService_CancelRun(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	store := &blockingRepository{
		MockRepository: storage.NewMockRepository(),
		release:        release,
	}
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	require.NoError(t, svc.CancelRun(testTenant, jobID))

	job, err := svc.GetRunJob(testTenant, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.NotNil(t, job.CompletedAt)

	// Cancelling again is an invalid transition.
	err = svc.CancelRun(testTenant, jobID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestReconService_CancelRun_NotFound(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	err := svc.CancelRun(testTenant, "non-existent")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReconService_IsJobStale(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	assert.False(t, svc.IsJobStale("non-existent", 10*time.Minute, time.Hour))

	svc.jobsMutex.Lock()
	svc.jobs["stale-job"] = &RunJob{
		ID:        "stale-job",
		TenantID:  testTenant,
		Status:    StatusRunning,
		StartedAt: time.Now().Add(-5 * time.Minute),
		Progress:  RunProgress{LastUpdate: time.Now().Add(-15 * time.Minute)},
	}
	svc.jobs["completed-job"] = &RunJob{
		ID:        "completed-job",
		TenantID:  testTenant,
		Status:    StatusCompleted,
		StartedAt: time.Now().Add(-3 * time.Hour),
		Progress:  RunProgress{LastUpdate: time.Now().Add(-2 * time.Hour)},
	}
	svc.jobsMutex.Unlock()

	assert.True(t, svc.IsJobStale("stale-job", 10*time.Minute, time.Hour))
	assert.False(t, svc.IsJobStale("completed-job", 10*time.Minute, time.Hour))
}

func TestReconService_MarkStaleJobsAsFailed(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc.jobsMutex.Lock()
	svc.jobs["stale-job"] = &RunJob{
		ID:         "stale-job",
		TenantID:   testTenant,
		Status:     StatusRunning,
		StartedAt:  time.Now().Add(-2 * time.Hour),
		Progress:   RunProgress{LastUpdate: time.Now().Add(-30 * time.Minute)},
		cancelFunc: cancel,
	}
	svc.jobs["healthy-job"] = &RunJob{
		ID:        "healthy-job",
		TenantID:  testTenant,
		Status:    StatusRunning,
		StartedAt: time.Now().Add(-time.Minute),
		Progress:  RunProgress{LastUpdate: time.Now()},
	}
	svc.jobsMutex.Unlock()

	marked := svc.MarkStaleJobsAsFailed(10*time.Minute, time.Hour)
	assert.Equal(t, 1, marked)

	stale, err := svc.GetRunJob(testTenant, "stale-job")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stale.Status)
	require.NotNil(t, stale.Error)
	assert.Contains(t, stale.Error.Error(), "stale")

	select {
	case <-ctx.Done():
	default:
		t.Error("context should have been cancelled")
	}

	healthy, err := svc.GetRunJob(testTenant, "healthy-job")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, healthy.Status)
}

func TestReconService_MarkStaleJobsAsFailed_LiveRunReleasesOwnLock(t *testing.T) {
	release := make(chan struct{})
	store := &blockingRepository{
		MockRepository: storage.NewMockRepository(),
		release:        release,
	}
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	// The run goroutine is alive but blocked in storage, so zero thresholds
	// mark it stale immediately.
	marked := svc.MarkStaleJobsAsFailed(0, 0)
	require.Equal(t, 1, marked)

	job, err := svc.GetRunJob(testTenant, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)

	// The goroutine still holds the tenant lock; stale-marking must not
	// steal it out from under a live run.
	_, err = svc.StartRun(context.Background(), testTenant)
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	// Once the blocked call returns, the goroutine sees the cancelled
	// context, exits, and releases the lock itself without panicking.
	close(release)
	require.Eventually(t, func() bool {
		_, err := svc.StartRun(context.Background(), testTenant)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	job, err = svc.GetRunJob(testTenant, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestReconService_CancelRun_NotOverwrittenByLateRun(t *testing.T) {
	release := make(chan struct{})
	store := &blockingRepository{
		MockRepository: storage.NewMockRepository(),
		release:        release,
	}
	seedExactPair(t, store.MockRepository)
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	require.NoError(t, svc.CancelRun(testTenant, jobID))

	// Unblock the run goroutine. Its phase updates and error handling must
	// not move the job out of the cancelled state.
	close(release)
	time.Sleep(50 * time.Millisecond)

	job, err := svc.GetRunJob(testTenant, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Equal(t, "cancelled", job.Progress.CurrentPhase)
	assert.Nil(t, job.Error)
}

func TestReconService_CancelRun_DuringPersistStaysCancelled(t *testing.T) {
	release := make(chan struct{})
	store := &persistBlockingRepository{
		MockRepository: storage.NewMockRepository(),
		release:        release,
	}
	seedExactPair(t, store.MockRepository)
	svc := newTestService(t, store)

	jobID, err := svc.StartRun(context.Background(), testTenant)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		job, err := svc.GetRunJob(testTenant, jobID)
		return err == nil && job.Progress.CurrentPhase == "persisting"
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, svc.CancelRun(testTenant, jobID))
	close(release)

	// The persist call fails with the cancelled context, but the job was
	// already cancelled and must not be recorded as failed.
	time.Sleep(50 * time.Millisecond)
	job, err := svc.GetRunJob(testTenant, jobID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, job.Status)
	assert.Nil(t, job.Error)
}

func TestReconService_CleanupOldJobs(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	oldTime := time.Now().Add(-25 * time.Hour)
	svc.jobsMutex.Lock()
	svc.jobs["old-job"] = &RunJob{
		ID:          "old-job",
		TenantID:    testTenant,
		Status:      StatusCompleted,
		CompletedAt: &oldTime,
	}
	svc.jobs["running-job"] = &RunJob{
		ID:       "running-job",
		TenantID: testTenant,
		Status:   StatusRunning,
	}
	svc.jobsMutex.Unlock()

	removed := svc.CleanupOldJobs(24 * time.Hour)
	assert.Equal(t, 1, removed)

	_, err := svc.GetRunJob(testTenant, "old-job")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.GetRunJob(testTenant, "running-job")
	assert.NoError(t, err)
}

func TestReconService_BackgroundCleanup_StartStop(t *testing.T) {
	svc := newTestService(t, storage.NewMockRepository())

	svc.StartBackgroundCleanup(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	svc.StopBackgroundCleanup()
}

// blockingRepository holds ListUnmatchedTransactions until release closes,
// keeping a run in flight for as long as a test needs.
type blockingRepository struct {
	*storage.MockRepository
	release chan struct{}
}

func (b *blockingRepository) ListUnmatchedTransactions(ctx context.Context, tenantID string) ([]*matcher.Transaction, error) {
	<-b.release
	return b.MockRepository.ListUnmatchedTransactions(ctx, tenantID)
}

// persistBlockingRepository holds CreateMatches instead, so a run can be
// caught in its persisting phase.
type persistBlockingRepository struct {
	*storage.MockRepository
	release chan struct{}
}

func (b *persistBlockingRepository) CreateMatches(ctx context.Context, tenantID string, matches []*matcher.Match) error {
	<-b.release
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.MockRepository.CreateMatches(ctx, tenantID, matches)
}

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/reconcile-backend/internal/api"
	"github.com/ledgerline/reconcile-backend/internal/api/dto"
	"github.com/ledgerline/reconcile-backend/internal/application/service"
	"github.com/ledgerline/reconcile-backend/internal/domain/matcher"
	"github.com/ledgerline/reconcile-backend/internal/infrastructure/storage"
)

const tenant = "tenant-1"

type testEnv struct {
	server *api.Server
	store  *storage.MockRepository
	svc    *service.ReconService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMockRepository()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	svc, err := service.NewReconService(matcher.DefaultConfig(), store, logger)
	require.NoError(t, err)

	server := api.NewServer(api.DefaultConfig(), svc, logger)
	return &testEnv{server: server, store: store, svc: svc}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func (e *testEnv) seedMatch(t *testing.T, status matcher.MatchStatus) *matcher.Match {
	t.Helper()
	m := &matcher.Match{
		ID:              uuid.NewString(),
		TenantID:        tenant,
		TransactionID:   uuid.NewString(),
		ExpenseID:       uuid.NewString(),
		AmountScore:     0.9,
		DateScore:       0.8,
		VendorScore:     0.6,
		ConfidenceScore: 0.77,
		Strategy:        matcher.StrategyFuzzy,
		Status:          status,
		CreatedAt:       time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateMatches(context.Background(), tenant, []*matcher.Match{m}))
	return m
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestAndListRecords(t *testing.T) {
	env := newTestEnv(t)

	t.Run("ingest transactions", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tenants/tenant-1/transactions", dto.IngestTransactionsRequest{
			Transactions: []dto.TransactionRequest{{
				ID:          "t1",
				AccountID:   "acct-1",
				PostedAt:    time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
				Amount:      decimal.RequireFromString("-58.20"),
				Currency:    "USD",
				Description: "CARD PURCHASE ACME",
				Merchant:    "Acme Supplies",
			}},
		})

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.IngestResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, 1, resp.Ingested)
	})

	t.Run("ingest rejects invalid records", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tenants/tenant-1/transactions", dto.IngestTransactionsRequest{
			Transactions: []dto.TransactionRequest{{ID: "", Currency: "USD"}},
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list transactions", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/transactions?limit=10", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.TransactionListResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, "t1", resp.Transactions[0].ID)
	})

	t.Run("other tenant sees nothing", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-2/transactions", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.TransactionListResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, 0, resp.Count)
	})

	t.Run("ingest and list expenses", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/tenants/tenant-1/expenses", dto.IngestExpensesRequest{
			Expenses: []dto.ExpenseRequest{{
				ID:       "e1",
				UserID:   "user-1",
				SpentAt:  time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
				Amount:   decimal.RequireFromString("58.20"),
				Currency: "USD",
				Title:    "Office supplies",
				Merchant: "Acme Supplies",
			}},
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		listRec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/expenses", nil)
		require.Equal(t, http.StatusOK, listRec.Code)
		var resp dto.ExpenseListResponse
		decodeInto(t, listRec, &resp)
		assert.Equal(t, 1, resp.Count)
	})
}

func TestMatchingRunEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/tenants/tenant-1/matching/runs", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started dto.StartRunResponse
	decodeInto(t, rec, &started)
	require.NotEmpty(t, started.JobID)
	assert.Equal(t, tenant, started.TenantID)

	t.Run("job becomes queryable and completes", func(t *testing.T) {
		require.Eventually(t, func() bool {
			getRec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/matching/runs/"+started.JobID, nil)
			if getRec.Code != http.StatusOK {
				return false
			}
			var job dto.RunJobResponse
			decodeInto(t, getRec, &job)
			return job.Status == "completed"
		}, 5*time.Second, 10*time.Millisecond)
	})

	t.Run("list runs", func(t *testing.T) {
		listRec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/matching/runs", nil)
		require.Equal(t, http.StatusOK, listRec.Code)

		var resp dto.RunListResponse
		decodeInto(t, listRec, &resp)
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("unknown job is 404", func(t *testing.T) {
		getRec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/matching/runs/nope", nil)
		assert.Equal(t, http.StatusNotFound, getRec.Code)
	})

	t.Run("cancelling a finished run is 409", func(t *testing.T) {
		cancelRec := env.do(t, http.MethodDelete, "/api/tenants/tenant-1/matching/runs/"+started.JobID, nil)
		assert.Equal(t, http.StatusConflict, cancelRec.Code)
	})
}

func TestReviewEndpoints(t *testing.T) {
	env := newTestEnv(t)
	m := env.seedMatch(t, matcher.StatusManualReview)

	t.Run("pending reviews include the match", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/reviews", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp dto.PendingReviewsResponse
		decodeInto(t, rec, &resp)
		require.Equal(t, 1, resp.Count)
		assert.Equal(t, m.ID, resp.Matches[0].ID)
	})

	t.Run("approve", func(t *testing.T) {
		confidence := 0.99
		rec := env.do(t, http.MethodPost, "/api/matches/"+m.ID+"/approve", dto.ApproveMatchRequest{
			TenantID:        tenant,
			Reviewer:        "alex@example.com",
			HumanConfidence: &confidence,
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.MatchResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, "APPROVED", resp.Status)
		assert.Equal(t, "alex@example.com", resp.ReviewedBy)
	})

	t.Run("approving again is 409", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/matches/"+m.ID+"/approve", dto.ApproveMatchRequest{
			TenantID: tenant,
			Reviewer: "alex@example.com",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("missing tenant is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/matches/"+m.ID+"/approve", dto.ApproveMatchRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("reject requires a reason", func(t *testing.T) {
		other := env.seedMatch(t, matcher.StatusManualReview)

		rec := env.do(t, http.MethodPost, "/api/matches/"+other.ID+"/reject", dto.RejectMatchRequest{
			TenantID: tenant,
			Reviewer: "alex@example.com",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPost, "/api/matches/"+other.ID+"/reject", dto.RejectMatchRequest{
			TenantID: tenant,
			Reviewer: "alex@example.com",
			Reason:   "different merchant",
		})
		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.MatchResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, "REJECTED", resp.Status)
		assert.Equal(t, "different merchant", resp.RejectReason)
	})

	t.Run("bulk approve reports per-item failures", func(t *testing.T) {
		a := env.seedMatch(t, matcher.StatusManualReview)
		b := env.seedMatch(t, matcher.StatusManualReview)

		rec := env.do(t, http.MethodPost, "/api/tenants/tenant-1/reviews/bulk-approve", dto.BulkApproveRequest{
			Reviewer: "alex@example.com",
			MatchIDs: []string{a.ID, b.ID, "missing"},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		var resp dto.BulkApproveResponse
		decodeInto(t, rec, &resp)
		assert.Equal(t, 2, resp.ApprovedCount)
		assert.Equal(t, 1, resp.FailedCount)
		require.Len(t, resp.Failures, 1)
		assert.Equal(t, "missing", resp.Failures[0].MatchID)
	})
}

func TestStatsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedMatch(t, matcher.StatusAutoApproved)

	rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.StatsResponse
	decodeInto(t, rec, &resp)
	assert.Equal(t, 1, resp.MatchesByStatus["AUTO_APPROVED"])
	assert.InDelta(t, 0.77, resp.AverageConfidence, 1e-9)
}

func TestReportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedMatch(t, matcher.StatusAutoApproved)

	t.Run("json report", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/reports/reconciliation?period=2024-03", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")

		var doc map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
		assert.Equal(t, tenant, doc["tenant_id"])
	})

	t.Run("csv report", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/reports/reconciliation?format=csv", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "tenant_id,tenant-1")
	})

	t.Run("unknown format is 400", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tenants/tenant-1/reports/reconciliation?format=xlsx", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServerShutdownBeforeStart(t *testing.T) {
	env := newTestEnv(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/orchestrator"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/versions"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/workers"
	eventmem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/events/memory"
	lockmem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/lock/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/platform/stub"
	queuemem "github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/queue/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/adapters/storage/memory"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

type staticHealth struct {
	status workers.HealthStatus
}

func (h staticHealth) Health() *workers.HealthStatus {
	s := h.status
	return &s
}

type testAPI struct {
	server  *Server
	manager *orchestrator.Manager
	store   *memory.Store
	queue   *queuemem.Queue
}

func newTestAPI(t *testing.T, queueCapacity int, health workers.HealthStatus) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	store := memory.NewStore()
	locker := lockmem.NewLocker()
	queue := queuemem.NewQueue(queueCapacity)
	bus := eventmem.NewInMemoryEventBus(logger)
	t.Cleanup(func() { _ = bus.Close() })

	manager := orchestrator.NewManager(
		store,
		versions.NewManager(store, locker, logger),
		queue,
		stub.New(logger),
		bus,
		ports.NoopMetrics{},
		locker,
		orchestrator.NewValidator(),
		logger,
		orchestrator.Config{JobTimeout: 5 * time.Second, SyncTimeout: time.Second, SaveRetries: 3},
	)

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.PutUser(&domain.User{ID: "u-1", DisplayName: "Ada", CreatedAt: now})
	store.PutProject(&domain.Project{
		ID: "p-approved", OwnerID: "u-1", Type: domain.ProjectTypeComic, Status: domain.ProjectStatusApproved,
		Title: "Moon Harbor", Payload: map[string]any{"pages": 3}, CreatedAt: now, UpdatedAt: now,
	})
	store.PutProject(&domain.Project{
		ID: "p-draft", OwnerID: "u-1", Type: domain.ProjectTypeComic, Status: domain.ProjectStatusDraft,
		Title: "Sketches", CreatedAt: now, UpdatedAt: now,
	})

	server := NewServer(&Config{
		Port:      0,
		Publisher: manager,
		Health:    staticHealth{status: health},
		Logger:    logger,
		Metrics:   http.NotFoundHandler(),
	})

	return &testAPI{server: server, manager: manager, store: store, queue: queue}
}

func healthy() workers.HealthStatus {
	return workers.HealthStatus{TotalWorkers: 2, IdleWorkers: 2, Healthy: true, Timestamp: time.Now()}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestPublish_Accepted(t *testing.T) {
	api := newTestAPI(t, 8, healthy())

	rec := api.do(t, http.MethodPost, "/api/v1/projects/p-approved/publish", PublishRequest{
		UserID:     "u-1",
		Visibility: domain.VisibilityPublic,
	})

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	resp := decode[PublishResponse](t, rec)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.JobID)
	assert.NotEmpty(t, resp.VersionID)
	assert.Equal(t, 1, resp.VersionNumber)

	depth, err := api.queue.Len(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, depth)
}

func TestPublish_Failures(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name:       "missing user id",
			path:       "/api/v1/projects/p-approved/publish",
			body:       map[string]any{"visibility": "public"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_REQUEST",
		},
		{
			name:       "bad visibility",
			path:       "/api/v1/projects/p-approved/publish",
			body:       PublishRequest{UserID: "u-1", Visibility: "everyone"},
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_OPTIONS",
		},
		{
			name:       "unknown project",
			path:       "/api/v1/projects/p-missing/publish",
			body:       PublishRequest{UserID: "u-1"},
			wantStatus: http.StatusNotFound,
			wantCode:   "PROJECT_NOT_FOUND",
		},
		{
			name:       "unknown user",
			path:       "/api/v1/projects/p-approved/publish",
			body:       PublishRequest{UserID: "u-ghost"},
			wantStatus: http.StatusNotFound,
			wantCode:   "USER_NOT_FOUND",
		},
		{
			name:       "draft project",
			path:       "/api/v1/projects/p-draft/publish",
			body:       PublishRequest{UserID: "u-1"},
			wantStatus: http.StatusConflict,
			wantCode:   "NOT_APPROVED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, 8, healthy())

			rec := api.do(t, http.MethodPost, tt.path, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)

			jobs, err := api.store.ListPublishJobs(context.Background(), "p-approved")
			require.NoError(t, err)
			assert.Empty(t, jobs)
		})
	}
}

func TestPublish_DraftMessage(t *testing.T) {
	api := newTestAPI(t, 8, healthy())

	rec := api.do(t, http.MethodPost, "/api/v1/projects/p-draft/publish", PublishRequest{UserID: "u-1"})

	resp := decode[ErrorResponse](t, rec)
	assert.Contains(t, resp.Error, "must be approved")
}

func TestPublish_QueueFull(t *testing.T) {
	api := newTestAPI(t, 1, healthy())

	first := api.do(t, http.MethodPost, "/api/v1/projects/p-approved/publish", PublishRequest{UserID: "u-1"})
	require.Equal(t, http.StatusAccepted, first.Code)

	second := api.do(t, http.MethodPost, "/api/v1/projects/p-approved/publish", PublishRequest{UserID: "u-1"})
	assert.Equal(t, http.StatusServiceUnavailable, second.Code)
	resp := decode[ErrorResponse](t, second)
	assert.Equal(t, "QUEUE_UNAVAILABLE", resp.Code)
	require.NotEmpty(t, resp.JobID)

	job, err := api.store.GetPublishJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
}

func TestJobEndpoints(t *testing.T) {
	api := newTestAPI(t, 8, healthy())
	ctx := context.Background()

	rec := api.do(t, http.MethodPost, "/api/v1/projects/p-approved/publish", PublishRequest{UserID: "u-1", Visibility: domain.VisibilityPublic})
	require.Equal(t, http.StatusAccepted, rec.Code)
	jobID := decode[PublishResponse](t, rec).JobID

	// Bundle is not available before the job runs
	rec = api.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/bundle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "BUNDLE_NOT_READY", decode[ErrorResponse](t, rec).Code)

	require.NoError(t, api.manager.RunJob(ctx, jobID))

	rec = api.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	job := decode[JobResponse](t, rec)
	assert.Equal(t, domain.JobStatusComplete, job.Status)
	assert.Equal(t, domain.JobStepSync, job.Step)
	assert.True(t, job.HasBundle)
	require.NotNil(t, job.EmergentSyncID)
	assert.NotEmpty(t, *job.EmergentSyncID)
	assert.NotNil(t, job.CompletedAt)

	rec = api.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/bundle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stored := decode[map[string]any](t, rec)
	assert.Equal(t, "v1", stored["contract_version"])
	assert.Equal(t, "p-approved", stored["content_id"])
	assert.Equal(t, "public", stored["visibility"])

	rec = api.do(t, http.MethodGet, "/api/v1/projects/p-approved/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["total"])

	rec = api.do(t, http.MethodGet, "/api/v1/projects/p-approved/versions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	versions := decode[struct {
		Versions []domain.ProjectVersion `json:"versions"`
		Total    int                     `json:"total"`
	}](t, rec)
	require.Len(t, versions.Versions, 1)
	assert.Equal(t, 1, versions.Versions[0].VersionNumber)

	rec = api.do(t, http.MethodGet, "/api/v1/jobs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decode[ErrorResponse](t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/v1/projects/p-missing/versions", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPreviewBundle(t *testing.T) {
	api := newTestAPI(t, 8, healthy())

	rec := api.do(t, http.MethodPost, "/api/v1/projects/p-draft/bundle/preview", PublishRequest{
		UserID: "u-1",
		Tags:   []string{"preview"},
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[PreviewResponse](t, rec)
	require.NotNil(t, resp.Bundle)
	assert.True(t, resp.Validation.Valid, resp.Validation.Errors)
	assert.Equal(t, []string{"preview"}, resp.Bundle.Tags)

	versions, err := api.store.ListProjectVersions(context.Background(), "p-draft")
	require.NoError(t, err)
	assert.Empty(t, versions)

	rec = api.do(t, http.MethodPost, "/api/v1/projects/p-draft/bundle/preview", PublishRequest{UserID: "u-ghost"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t, 8, healthy())
	rec := api.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]any](t, rec)["status"])

	api = newTestAPI(t, 8, workers.HealthStatus{TotalWorkers: 2, StoppedWorkers: 2})
	rec = api.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unhealthy", decode[map[string]any](t, rec)["status"])
}

func TestCORSPreflight(t *testing.T) {
	api := newTestAPI(t, 8, healthy())

	rec := api.do(t, http.MethodOptions, "/api/v1/projects/p-approved/publish", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

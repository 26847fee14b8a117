package jobs_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-tenancy/jobs"
)

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func queueHealth(t *testing.T, inspector jobs.QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", jobs.NewHandler(inspector, nil).MountRoutes)
	res := httptest.NewRecorder()
	r.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return res
}

func TestQueueHealthReportsCounts(t *testing.T) {
	res := queueHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: jobs.QueueDefault, Pending: 3, Scheduled: 1, Retry: 2}})
	require.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"queue":"default","paused":false,"pending":3,"active":0,"scheduled":1,"retry":2,"archived":0}`, res.Body.String())
}

func TestQueueHealthUnavailable(t *testing.T) {
	res := queueHealth(t, fakeInspector{err: errors.New("dial tcp: connection refused")})
	assert.Equal(t, http.StatusServiceUnavailable, res.Code)
	assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	assert.NotContains(t, res.Body.String(), "connection refused")
}

func TestNewWorkerRejectsIncompleteRegistrations(t *testing.T) {
	noop := func(context.Context, *asynq.Task) error { return nil }

	_, err := jobs.NewWorker(jobs.WorkerConfig{})
	assert.Error(t, err, "no handlers")

	_, err = jobs.NewWorker(jobs.WorkerConfig{Handlers: []jobs.TaskHandler{{Type: jobs.TaskSessionPurge}}})
	assert.Error(t, err, "handler without func")

	_, err = jobs.NewWorker(jobs.WorkerConfig{
		Handlers: []jobs.TaskHandler{{Type: "other:task", Handler: noop}},
		Cron:     []jobs.CronRegistration{{Spec: "@hourly", Task: jobs.NewSessionPurgeTask()}},
	})
	assert.Error(t, err, "cron task without handler")
}

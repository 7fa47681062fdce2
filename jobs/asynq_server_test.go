package jobs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"scheduled":0,"retry":0,"paused":false}`, rr.Body.String())
}

func TestNewWorkerRegistersCron(t *testing.T) {
	task, err := NewLowStockScanTask(LowStockScanPayload{})
	require.NoError(t, err)
	w, err := NewWorker(WorkerConfig{
		Handlers: []TaskHandler{{Type: TaskLowStockScan, Handler: NewLowStockScanJob(&stubLowStock{}, nil, nil, nil, 5).Handle}},
		Cron:     []CronRegistration{{Spec: "*/15 * * * *", Task: task}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)

	_, err = NewWorker(WorkerConfig{Cron: []CronRegistration{{Spec: "not a cron", Task: task}}})
	require.Error(t, err)
}

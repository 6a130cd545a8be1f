package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/traffic-flood-prep/internal/adapter/httpadapter"
	"github.com/couchcryptid/traffic-flood-prep/internal/pipeline"
)

type mockRunner struct {
	err    error
	status pipeline.Status
}

func (m *mockRunner) CheckReadiness(_ context.Context) error { return m.err }
func (m *mockRunner) Status() pipeline.Status                { return m.status }

func newTestServer(runner *mockRunner) *httpadapter.Server {
	return httpadapter.NewServer(":0", runner, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func serve(srv *httpadapter.Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{err: errors.New("runner has not completed any city yet")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusReportsRunProgress(t *testing.T) {
	runner := &mockRunner{status: pipeline.Status{
		RunID:     "run-1",
		Stage:     pipeline.StageHourly,
		Active:    true,
		Total:     12,
		Processed: 5,
		Failed:    1,
	}}
	rec := serve(newTestServer(runner), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got pipeline.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, runner.status, got)
}

func TestStatusBeforeAnyRun(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{}), "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"active":false,"total":0,"processed":0,"skipped":0,"failed":0}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestUnknownRoute(t *testing.T) {
	rec := serve(newTestServer(&mockRunner{}), "/cities")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

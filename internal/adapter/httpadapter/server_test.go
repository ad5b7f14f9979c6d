package httpadapter_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/httpadapter"
	"github.com/stretchr/testify/assert"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, nil, discardLogger())

	rec := serve(srv, http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	ready := httpadapter.NewServer(":0", &mockReadiness{}, nil, discardLogger())
	assert.Equal(t, http.StatusOK, serve(ready, http.MethodGet, "/readyz").Code)

	notReady := httpadapter.NewServer(":0", &mockReadiness{err: errors.New("not ready yet")}, nil, discardLogger())
	assert.Equal(t, http.StatusServiceUnavailable, serve(notReady, http.MethodGet, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, nil, discardLogger())

	rec := serve(srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAPIRoutesAbsentWithoutAPI(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, nil, discardLogger())

	assert.Equal(t, http.StatusNotFound, serve(srv, http.MethodGet, "/api/sites").Code)
}

func TestAllReady(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, httpadapter.AllReady().CheckReadiness(ctx))
	assert.NoError(t, httpadapter.AllReady(&mockReadiness{}, &mockReadiness{}).CheckReadiness(ctx))

	first := errors.New("store down")
	err := httpadapter.AllReady(&mockReadiness{}, &mockReadiness{err: first}, &mockReadiness{err: errors.New("later")}).CheckReadiness(ctx)
	assert.ErrorIs(t, err, first)
}

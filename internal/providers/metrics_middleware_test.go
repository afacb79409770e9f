package providers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockMetrics struct {
	endpoints     []string
	statuses      []int
	durationCalls int
}

func (m *mockMetrics) IncRequestsTotal(endpoint string, status int) {
	m.endpoints = append(m.endpoints, endpoint)
	m.statuses = append(m.statuses, status)
}
func (m *mockMetrics) ObserveRequestDuration(_ string, _ time.Duration) { m.durationCalls++ }
func (m *mockMetrics) IncCacheHits()                                    {}
func (m *mockMetrics) IncCacheMisses()                                  {}
func (m *mockMetrics) IncCacheInvalidations()                           {}
func (m *mockMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (m *mockMetrics) SetSessionsTotal(_ int, _ int)                    {}
func (m *mockMetrics) IncQuarantinedUnits()                             {}
func (m *mockMetrics) AddMigratedRecords(_ int)                         {}

type middlewareLogger struct {
	cacheTestLogger
	debugTypes []TypeEnum
	warnings   int
}

func (m *middlewareLogger) Debugf(t TypeEnum, _ string, _ ...interface{}) {
	m.debugTypes = append(m.debugTypes, t)
}

func (m *middlewareLogger) Warnf(_ TypeEnum, _ string, _ ...interface{}) {
	m.warnings++
}

func sessionMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions/end", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /sessions", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /aggregate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	return mux
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	metrics := &mockMetrics{}
	mw := MetricsMiddleware(metrics, &cacheTestLogger{}, sessionMux())

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/end", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions?from=2024-01-01&to=2024-01-31", nil))

	assert.Equal(t, []string{"POST /sessions/end", "GET /sessions"}, metrics.endpoints)
	assert.Equal(t, []int{http.StatusCreated, http.StatusOK}, metrics.statuses)
	assert.Equal(t, 2, metrics.durationCalls)
}

func TestMetricsMiddleware_UnmatchedRequests(t *testing.T) {
	metrics := &mockMetrics{}
	mw := MetricsMiddleware(metrics, &cacheTestLogger{}, sessionMux())

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions/8f0c/raw", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/sessions", nil))

	assert.Equal(t, []string{unmatchedEndpoint, unmatchedEndpoint}, metrics.endpoints)
	assert.Equal(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, metrics.statuses)
}

func TestMetricsMiddleware_LogsByMethodType(t *testing.T) {
	logger := &middlewareLogger{}
	mw := MetricsMiddleware(&mockMetrics{}, logger, sessionMux())

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sessions", nil))
	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/sessions/end", nil))

	assert.Equal(t, []TypeEnum{TypeGet, TypePost}, logger.debugTypes)
	assert.Zero(t, logger.warnings)
}

func TestMetricsMiddleware_WarnsOnServerErrors(t *testing.T) {
	logger := &middlewareLogger{}
	mw := MetricsMiddleware(&mockMetrics{}, logger, sessionMux())

	mw.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/aggregate?project=p1", nil))

	assert.Equal(t, 1, logger.warnings)
	assert.Empty(t, logger.debugTypes)
}

func TestStatusWriter_WriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}

	sw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, sw.status)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestStatusWriter_Unwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr}
	assert.Equal(t, rr, sw.Unwrap())
}

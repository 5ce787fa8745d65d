package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/ffexec/internal/logging"
)

func newTestServer(t *testing.T) (*Server, *Collector) {
	t.Helper()
	registry := prometheus.NewRegistry()
	c := NewCollectorWithRegistry(CollectorConfig{}, registry)
	return NewServer("127.0.0.1:0", registry, logging.Discard()), c
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code, rec.Body.String()
}

func TestServer_Health(t *testing.T) {
	s, _ := newTestServer(t)

	for _, path := range []string{"/health", "/healthz"} {
		code, body := get(t, s.Router(), path)
		assert.Equal(t, http.StatusOK, code, path)
		assert.Equal(t, "ok\n", body, path)
	}
}

func TestServer_Ready(t *testing.T) {
	s, _ := newTestServer(t)

	code, _ := get(t, s.Router(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	s.SetReady(true)
	code, body := get(t, s.Router(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	s.SetReady(false)
	code, _ = get(t, s.Router(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestServer_Metrics(t *testing.T) {
	s, c := newTestServer(t)
	c.RecordStart("tag", 1)

	code, body := get(t, s.Router(), "/metrics")
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "ffexec_executions_started_total 1")
	assert.Contains(t, body, "ffexec_executions_active 1")
}

func TestServer_MethodNotAllowed(t *testing.T) {
	s, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s, _ := newTestServer(t)
	require.NoError(t, s.Start())
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestServer_StartAddressInUse(t *testing.T) {
	first, _ := newTestServer(t)
	require.NoError(t, first.Start())
	defer first.Shutdown(context.Background())

	second := NewServer(first.Addr(), prometheus.NewRegistry(), logging.Discard())
	assert.Error(t, second.Start())
}

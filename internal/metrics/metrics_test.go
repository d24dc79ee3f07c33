package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sabiqazhar/frappe-env-setup/internal/orchestrator"
	"github.com/sabiqazhar/frappe-env-setup/internal/probe"
)

var (
	_ orchestrator.Recorder = (*Collector)(nil)
	_ probe.Observer        = (*Collector)(nil)
)

func TestCollector_Counts(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveStage("site", orchestrator.StatusSkipped, 2*time.Second)
	c.ObserveStage("site", orchestrator.StatusSkipped, time.Second)
	c.ObserveStage("bench-init", orchestrator.StatusFailed, time.Minute)
	c.ObserveRun(orchestrator.RunFailed, 5*time.Minute)
	c.ObserveProbe("database", probe.Ready, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("site", "skipped")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.stageTotal.WithLabelValues("bench-init", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runTotal.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.probeTotal.WithLabelValues("database", "ready")))
}

func TestHandler_ServesCollector(t *testing.T) {
	t.Parallel()

	c := NewCollector()
	c.ObserveProbe("redis-cache", probe.TimedOut, 30)

	h, err := Handler(c)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `frappe_env_probe_total{outcome="timed-out",target="redis-cache"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

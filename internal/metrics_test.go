package internal

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue reads one counter sample from reg. labels are name/value pairs.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels ...string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for i := 0; i+1 < len(labels); i += 2 {
				if got[labels[i]] != labels[i+1] {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestPromMetrics(t *testing.T) {
	m := NewPromMetrics()
	m.IncFlush(true)
	m.IncFlush(false)
	m.IncFlush(false)
	m.IncReconcile(ReconcileSeeded)
	m.IncKeyAttempt("youtube", false)
	m.IncCacheHit()

	reg := m.Registry()
	assert.Equal(t, 1.0, counterValue(t, reg, "ytdash_remote_flushes_total", "result", "ok"))
	assert.Equal(t, 2.0, counterValue(t, reg, "ytdash_remote_flushes_total", "result", "failed"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ytdash_reconciliations_total", "outcome", "seeded"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ytdash_api_key_attempts_total", "service", "youtube", "result", "failed"))
	assert.Equal(t, 1.0, counterValue(t, reg, "ytdash_cache_hits_total"))

	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ytdash_remote_flushes_total")
}

func TestNewCache(t *testing.T) {
	m := NewPromMetrics()
	c := NewCache(1, m)
	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Set("k", []byte("v"), 0)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", string(v))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "ytdash_cache_misses_total"))
	assert.Equal(t, 1.0, counterValue(t, m.Registry(), "ytdash_cache_hits_total"))

	disabled := NewCache(0, nil)
	disabled.Set("k", []byte("v"), 0)
	_, ok = disabled.Get("k")
	assert.False(t, ok)
}

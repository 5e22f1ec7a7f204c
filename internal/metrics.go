package internal

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records sync and upstream activity
type Metrics interface {
	IncFlush(ok bool)
	IncReconcile(outcome string)
	IncKeyAttempt(service string, ok bool)
	IncYouTubePages()
	IncCacheHit()
	IncCacheMiss()
}

// Reconcile outcomes
const (
	ReconcileSeeded = "seeded"
	ReconcileRemote = "remote"
	ReconcileMerged = "merged"
	ReconcileFailed = "failed"
)

// PromMetrics implements Metrics on a private prometheus registry
type PromMetrics struct {
	registry     *prometheus.Registry
	flushes      *prometheus.CounterVec
	reconciles   *prometheus.CounterVec
	keyAttempts  *prometheus.CounterVec
	youtubePages prometheus.Counter
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
}

// NewPromMetrics registers the ytdash collectors on a fresh registry
func NewPromMetrics() *PromMetrics {
	m := &PromMetrics{
		registry: prometheus.NewRegistry(),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdash_remote_flushes_total",
			Help: "Remote flushes by result",
		}, []string{"result"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdash_reconciliations_total",
			Help: "Login reconciliations by outcome",
		}, []string{"outcome"}),
		keyAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ytdash_api_key_attempts_total",
			Help: "API key attempts by service and result",
		}, []string{"service", "result"}),
		youtubePages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytdash_youtube_pages_total",
			Help: "Video pages fetched from the YouTube Data API",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytdash_cache_hits_total",
			Help: "Channel cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ytdash_cache_misses_total",
			Help: "Channel cache misses",
		}),
	}
	m.registry.MustRegister(m.flushes, m.reconciles, m.keyAttempts, m.youtubePages, m.cacheHits, m.cacheMisses)
	return m
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func (m *PromMetrics) IncFlush(ok bool)            { m.flushes.WithLabelValues(result(ok)).Inc() }
func (m *PromMetrics) IncReconcile(outcome string) { m.reconciles.WithLabelValues(outcome).Inc() }
func (m *PromMetrics) IncKeyAttempt(service string, ok bool) {
	m.keyAttempts.WithLabelValues(service, result(ok)).Inc()
}
func (m *PromMetrics) IncYouTubePages() { m.youtubePages.Inc() }
func (m *PromMetrics) IncCacheHit()     { m.cacheHits.Inc() }
func (m *PromMetrics) IncCacheMiss()    { m.cacheMisses.Inc() }

// Handler serves the registry in the prometheus exposition format
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}

type noopMetrics struct{}

func (noopMetrics) IncFlush(bool)              {}
func (noopMetrics) IncReconcile(string)        {}
func (noopMetrics) IncKeyAttempt(string, bool) {}
func (noopMetrics) IncYouTubePages()           {}
func (noopMetrics) IncCacheHit()               {}
func (noopMetrics) IncCacheMiss()              {}

// keyObserver adapts Metrics to a KeyObserver for the given service
func keyObserver(m Metrics, service string) KeyObserver {
	return func(_ int, err error) {
		m.IncKeyAttempt(service, err == nil)
	}
}

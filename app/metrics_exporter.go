package app

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/spf13/cast"

	servertypes "github.com/cosmos/cosmos-sdk/server/types"

	launchkeeper "github.com/tide-protocol/tidechain/x/launch/keeper"
)

// DefaultMetricsCacheSize bounds the number of per-height scrape renders kept
// in memory. Scrapers typically only ever ask for the latest height, so a
// small cache is plenty.
const DefaultMetricsCacheSize = 16

// MetricsScrapeCache memoizes rendered metric expositions per block height.
// Multiple scrapers hitting the endpoint between blocks get the same bytes
// without re-walking the keeper's counters.
type MetricsScrapeCache struct {
	renders *lru.Cache[int64, string]
	hits    atomic.Int64
	misses  atomic.Int64
}

// NewMetricsScrapeCache creates a scrape cache holding up to size renders.
func NewMetricsScrapeCache(size int) (*MetricsScrapeCache, error) {
	if size <= 0 {
		size = DefaultMetricsCacheSize
	}
	renders, err := lru.New[int64, string](size)
	if err != nil {
		return nil, err
	}
	return &MetricsScrapeCache{renders: renders}, nil
}

// Get returns the cached render for a height, if present.
func (c *MetricsScrapeCache) Get(height int64) (string, bool) {
	if c == nil || c.renders == nil {
		return "", false
	}
	render, ok := c.renders.Get(height)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return render, ok
}

// Put stores a render for a height, evicting the oldest entry when full.
func (c *MetricsScrapeCache) Put(height int64, render string) {
	if c == nil || c.renders == nil {
		return
	}
	c.renders.Add(height, render)
}

// Hits returns the number of cache hits served so far.
func (c *MetricsScrapeCache) Hits() int64 { return c.hits.Load() }

// Misses returns the number of cache misses so far.
func (c *MetricsScrapeCache) Misses() int64 { return c.misses.Load() }

// InitMetricsCache initializes the metrics scrape cache. Node operators can
// resize it via the [launch] app.toml section.
func (app *TideApp) InitMetricsCache(appOpts servertypes.AppOptions) {
	size := DefaultMetricsCacheSize
	if appOpts != nil {
		if v := appOpts.Get("launch.metrics-cache-size"); v != nil {
			if n := cast.ToInt(v); n > 0 {
				size = n
			}
		}
	}

	cache, err := NewMetricsScrapeCache(size)
	if err != nil {
		app.Logger().Error("failed to initialize metrics scrape cache", "error", err)
		return
	}
	app.metricsCache = cache
}

// TideMetricsExporter aggregates Tide-specific metrics in Prometheus format.
type TideMetricsExporter struct {
	app *TideApp
}

// MetricsHandler returns an HTTP handler for Tide-specific metrics.
func (app *TideApp) MetricsHandler() http.Handler {
	return &TideMetricsExporter{app: app}
}

func (e *TideMetricsExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	if e.app == nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("tide_metrics_error 1\n"))
		return
	}

	height := e.app.LastBlockHeight()
	if cached, ok := e.app.metricsCache.Get(height); ok {
		_, _ = w.Write([]byte(cached))
		return
	}

	render := e.render(height)
	e.app.metricsCache.Put(height, render)
	_, _ = w.Write([]byte(render))
}

func (e *TideMetricsExporter) render(height int64) string {
	chainID := ""
	if e.app.BaseApp != nil {
		chainID = e.app.BaseApp.ChainID()
	}

	writer := newMetricsWriter(chainID, Version)

	// Build info
	writer.gauge("tide_build_info", "Tide build information", 1, nil)

	// Launch module metrics
	if metrics := e.app.LaunchKeeper.Metrics(); metrics != nil {
		exporter := launchkeeper.NewPrometheusExporter(metrics)
		if chainID != "" {
			exporter.SetDefaultLabel("chain_id", chainID)
		}
		writer.writeRaw(exporter.Render())
	}

	// Audit log metrics
	if audit := e.app.LaunchKeeper.AuditLog(); audit != nil {
		writer.counter("tide_audit_records_total", "Total audit records emitted", int64(audit.TotalEmitted()), nil)
		writer.gauge("tide_audit_sequence", "Current audit log sequence number", float64(audit.Sequence()), nil)
	}

	// Yield bridge metrics
	if e.app.yieldSource != nil {
		stats := e.app.yieldSource.Stats()
		writer.gauge("tide_yield_open_lots", "Open staking lots held by the yield bridge", float64(stats.OpenLots), nil)
		writer.counter("tide_yield_stakes_total", "Total stake operations performed", stats.TotalStakes, nil)
		writer.counter("tide_yield_unstakes_total", "Total unstake operations performed", stats.TotalUnstakes, nil)
	}

	// Scrape cache metrics
	if e.app.metricsCache != nil {
		writer.counter("tide_metrics_cache_hits_total", "Metrics scrape cache hits", e.app.metricsCache.Hits(), nil)
		writer.counter("tide_metrics_cache_misses_total", "Metrics scrape cache misses", e.app.metricsCache.Misses(), nil)
	}

	// Rate limiter metrics
	if e.app.rateLimiter != nil {
		rm := e.app.rateLimiter.GetMetrics()
		writer.counter("tide_ratelimit_requests_total", "Total requests observed by rate limiter", rm.TotalRequests, nil)
		writer.counter("tide_ratelimit_requests_allowed_total", "Requests allowed by rate limiter", rm.AllowedRequests, nil)
		writer.counter("tide_ratelimit_requests_denied_total", "Requests denied by rate limiter", rm.DeniedRequests, nil)

		for endpoint, count := range rm.EndpointDenials {
			writer.counter("tide_ratelimit_denied_total", "Requests denied per endpoint", count,
				map[string]string{"endpoint": endpoint})
		}
	}

	// Circuit breaker metrics
	for _, b := range collectBreakers(e.app) {
		labels := map[string]string{"breaker": b.Name()}
		writer.gauge("tide_circuit_breaker_state", "Circuit breaker state (0=closed,1=open,2=half_open)", float64(b.State()), labels)
		writer.counter("tide_circuit_breaker_trips_total", "Total breaker trips", b.TotalTrips(), labels)
	}

	writer.gauge("tide_block_height", "Height the exposition was rendered at", float64(height), nil)

	return writer.String()
}

type metricsWriter struct {
	sb         strings.Builder
	baseLabels map[string]string
}

func newMetricsWriter(chainID, version string) *metricsWriter {
	labels := map[string]string{}
	if chainID != "" {
		labels["chain_id"] = chainID
	}
	if version != "" {
		labels["version"] = version
	}
	return &metricsWriter{baseLabels: labels}
}

func (mw *metricsWriter) String() string {
	return mw.sb.String()
}

func (mw *metricsWriter) writeRaw(raw string) {
	if raw == "" {
		return
	}
	if !strings.HasSuffix(raw, "\n") {
		raw += "\n"
	}
	mw.sb.WriteString(raw)
}

func (mw *metricsWriter) counter(name, help string, value int64, labels map[string]string) {
	mw.writeMetric("counter", name, help, fmt.Sprintf("%d", value), labels)
}

func (mw *metricsWriter) gauge(name, help string, value float64, labels map[string]string) {
	mw.writeMetric("gauge", name, help, fmt.Sprintf("%.6f", value), labels)
}

func (mw *metricsWriter) writeMetric(metricType, name, help, value string, labels map[string]string) {
	mw.sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, help))
	mw.sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, metricType))
	mw.sb.WriteString(name)
	if labelStr := mw.formatLabels(labels); labelStr != "" {
		mw.sb.WriteString(labelStr)
	}
	mw.sb.WriteString(" ")
	mw.sb.WriteString(value)
	mw.sb.WriteString("\n")
}

func (mw *metricsWriter) formatLabels(extra map[string]string) string {
	if len(mw.baseLabels) == 0 && len(extra) == 0 {
		return ""
	}
	merged := make(map[string]string, len(mw.baseLabels)+len(extra))
	for k, v := range mw.baseLabels {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, escapeLabelValue(merged[k])))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return v
}

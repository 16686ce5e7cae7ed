package keeper

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// PrometheusExporter exports launch metrics in Prometheus format
type PrometheusExporter struct {
	namespace string
	subsystem string

	// Reference to module metrics
	metrics *ModuleMetrics

	// Additional custom metrics
	customCounters   map[string]*AtomicCounter
	customGauges     map[string]*AtomicGauge
	customHistograms map[string]*TimingHistogram
	customMu         sync.RWMutex

	// Labels
	defaultLabels map[string]string
}

// NewPrometheusExporter creates a new Prometheus metrics exporter
func NewPrometheusExporter(metrics *ModuleMetrics) *PrometheusExporter {
	return &PrometheusExporter{
		namespace:        "tide",
		subsystem:        "launch",
		metrics:          metrics,
		customCounters:   make(map[string]*AtomicCounter),
		customGauges:     make(map[string]*AtomicGauge),
		customHistograms: make(map[string]*TimingHistogram),
		defaultLabels: map[string]string{
			"chain_id": "tidechain-1",
		},
	}
}

// SetDefaultLabel sets a default label to include with all metrics
func (pe *PrometheusExporter) SetDefaultLabel(name, value string) {
	pe.customMu.Lock()
	pe.defaultLabels[name] = value
	pe.customMu.Unlock()
}

// RegisterCounter registers a custom counter metric
func (pe *PrometheusExporter) RegisterCounter(name string) *AtomicCounter {
	pe.customMu.Lock()
	defer pe.customMu.Unlock()

	if c, exists := pe.customCounters[name]; exists {
		return c
	}
	c := &AtomicCounter{}
	pe.customCounters[name] = c
	return c
}

// RegisterGauge registers a custom gauge metric
func (pe *PrometheusExporter) RegisterGauge(name string) *AtomicGauge {
	pe.customMu.Lock()
	defer pe.customMu.Unlock()

	if g, exists := pe.customGauges[name]; exists {
		return g
	}
	g := &AtomicGauge{}
	pe.customGauges[name] = g
	return g
}

// RegisterHistogram registers a custom histogram metric
func (pe *PrometheusExporter) RegisterHistogram(name string, capacity int) *TimingHistogram {
	pe.customMu.Lock()
	defer pe.customMu.Unlock()

	if h, exists := pe.customHistograms[name]; exists {
		return h
	}
	h := NewTimingHistogram(capacity)
	pe.customHistograms[name] = h
	return h
}

// ServeHTTP implements http.Handler for Prometheus scraping
func (pe *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	var sb strings.Builder

	// Export built-in module metrics
	pe.exportModuleMetrics(&sb)

	// Export custom metrics
	pe.exportCustomMetrics(&sb)

	w.Write([]byte(sb.String()))
}

// Render returns the Prometheus exposition text for the current metrics snapshot.
func (pe *PrometheusExporter) Render() string {
	var sb strings.Builder
	pe.exportModuleMetrics(&sb)
	pe.exportCustomMetrics(&sb)
	return sb.String()
}

// exportModuleMetrics exports the built-in module metrics
func (pe *PrometheusExporter) exportModuleMetrics(sb *strings.Builder) {
	if pe.metrics == nil {
		return
	}

	// Listing lifecycle metrics
	pe.writeCounter(sb, "listings_created_total", "Total number of listings created",
		pe.metrics.ListingsCreated.Get())
	pe.writeCounter(sb, "listings_activated_total", "Total number of listings activated",
		pe.metrics.ListingsActivated.Get())
	pe.writeCounter(sb, "listings_finalized_total", "Total number of listings finalized",
		pe.metrics.ListingsFinalized.Get())
	pe.writeCounter(sb, "listings_completed_total", "Total number of listings completed",
		pe.metrics.ListingsCompleted.Get())
	pe.writeCounter(sb, "listings_cancelled_total", "Total number of listings cancelled",
		pe.metrics.ListingsCancelled.Get())

	// Gauges
	pe.writeGauge(sb, "listings_active", "Number of listings currently raising",
		pe.metrics.ActiveListings.Get())
	pe.writeGauge(sb, "listings_finalized", "Number of listings in the release phase",
		pe.metrics.FinalizedListings.Get())

	// Capital metrics
	pe.writeCounter(sb, "deposits_accepted_total", "Deposits accepted into capital vaults",
		pe.metrics.DepositsAccepted.Get())
	pe.writeCounter(sb, "fees_collected_total", "Raise fees collected to the treasury",
		pe.metrics.FeesCollected.Get())
	pe.writeCounter(sb, "tranches_released_total", "Tranches released to beneficiaries",
		pe.metrics.TranchesReleased.Get())
	pe.writeCounter(sb, "tranche_shortfalls_total", "Tranche releases paid short of schedule",
		pe.metrics.TrancheShortfalls.Get())
	pe.writeCounter(sb, "refunds_issued_total", "Refunds issued after cancellation",
		pe.metrics.RefundsIssued.Get())

	// Pass metrics
	pe.writeCounter(sb, "passes_minted_total", "Supporter passes minted",
		pe.metrics.PassesMinted.Get())
	pe.writeCounter(sb, "passes_transferred_total", "Supporter passes transferred",
		pe.metrics.PassesTransferred.Get())
	pe.writeGauge(sb, "passes_open", "Supporter passes not yet redeemed",
		pe.metrics.OpenPasses.Get())

	// Reward metrics
	pe.writeCounter(sb, "reward_deposits_total", "Reward deposits routed to vaults",
		pe.metrics.RewardDeposits.Get())
	pe.writeCounter(sb, "rewards_claimed_total", "Reward claims paid out",
		pe.metrics.RewardsClaimed.Get())

	// Yield metrics
	pe.writeCounter(sb, "yield_stakes_total", "Stake lots placed with the yield source",
		pe.metrics.YieldStakes.Get())
	pe.writeCounter(sb, "yield_harvests_total", "Stake lots harvested back",
		pe.metrics.YieldHarvests.Get())
	pe.writeCounter(sb, "yield_failures_total", "Yield source operations that failed",
		pe.metrics.YieldFailures.Get())

	// Block metrics
	pe.writeCounter(sb, "blocks_processed_total", "Total blocks processed",
		pe.metrics.BlocksProcessed.Get())
	pe.writeGauge(sb, "last_block_height", "Last processed block height",
		pe.metrics.LastBlockHeight.Get())

	// Timing histograms
	if pe.metrics.ReleaseSweepDuration != nil {
		summary := pe.metrics.ReleaseSweepDuration.Summary()
		pe.writeHistogramSummary(sb, "release_sweep_seconds", "Tranche release sweep time distribution", summary)
	}

	if pe.metrics.HarvestDuration != nil {
		summary := pe.metrics.HarvestDuration.Summary()
		pe.writeHistogramSummary(sb, "harvest_seconds", "Yield harvest time distribution", summary)
	}
}

// exportCustomMetrics exports custom registered metrics
func (pe *PrometheusExporter) exportCustomMetrics(sb *strings.Builder) {
	pe.customMu.RLock()
	defer pe.customMu.RUnlock()

	// Export custom counters
	names := make([]string, 0, len(pe.customCounters))
	for name := range pe.customCounters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c := pe.customCounters[name]
		pe.writeCounter(sb, name, "", c.Get())
	}

	// Export custom gauges
	names = make([]string, 0, len(pe.customGauges))
	for name := range pe.customGauges {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		g := pe.customGauges[name]
		pe.writeGauge(sb, name, "", g.Get())
	}

	// Export custom histograms
	names = make([]string, 0, len(pe.customHistograms))
	for name := range pe.customHistograms {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		h := pe.customHistograms[name]
		summary := h.Summary()
		pe.writeHistogramSummary(sb, name, "", summary)
	}
}

// writeCounter writes a counter metric in Prometheus format
func (pe *PrometheusExporter) writeCounter(sb *strings.Builder, name, help string, value int64) {
	fullName := pe.fullName(name)
	if help != "" {
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", fullName, help))
	}
	sb.WriteString(fmt.Sprintf("# TYPE %s counter\n", fullName))
	sb.WriteString(fmt.Sprintf("%s%s %d\n", fullName, pe.formatLabels(), value))
}

// writeGauge writes a gauge metric in Prometheus format
func (pe *PrometheusExporter) writeGauge(sb *strings.Builder, name, help string, value int64) {
	fullName := pe.fullName(name)
	if help != "" {
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", fullName, help))
	}
	sb.WriteString(fmt.Sprintf("# TYPE %s gauge\n", fullName))
	sb.WriteString(fmt.Sprintf("%s%s %d\n", fullName, pe.formatLabels(), value))
}

// writeHistogramSummary writes a histogram summary in Prometheus format
func (pe *PrometheusExporter) writeHistogramSummary(sb *strings.Builder, name, help string, summary HistogramSummary) {
	fullName := pe.fullName(name)
	if help != "" {
		sb.WriteString(fmt.Sprintf("# HELP %s %s\n", fullName, help))
	}
	sb.WriteString(fmt.Sprintf("# TYPE %s summary\n", fullName))

	labels := pe.formatLabels()

	// Write quantiles
	pe.writeQuantile(sb, fullName, labels, "0.5", summary.P50)
	pe.writeQuantile(sb, fullName, labels, "0.95", summary.P95)
	pe.writeQuantile(sb, fullName, labels, "0.99", summary.P99)

	// Write sum and count
	sb.WriteString(fmt.Sprintf("%s_sum%s %f\n", fullName, labels, summary.Avg.Seconds()*float64(summary.Count)))
	sb.WriteString(fmt.Sprintf("%s_count%s %d\n", fullName, labels, summary.Count))
}

// writeQuantile writes a single quantile line
func (pe *PrometheusExporter) writeQuantile(sb *strings.Builder, name, baseLabels, quantile string, value time.Duration) {
	if baseLabels == "" {
		sb.WriteString(fmt.Sprintf("%s{quantile=\"%s\"} %f\n", name, quantile, value.Seconds()))
	} else {
		// Insert quantile into existing labels
		labels := strings.TrimSuffix(baseLabels, "}")
		sb.WriteString(fmt.Sprintf("%s%s,quantile=\"%s\"} %f\n", name, labels, quantile, value.Seconds()))
	}
}

// fullName returns the full metric name with namespace and subsystem
func (pe *PrometheusExporter) fullName(name string) string {
	return fmt.Sprintf("%s_%s_%s", pe.namespace, pe.subsystem, name)
}

// formatLabels formats default labels for Prometheus
func (pe *PrometheusExporter) formatLabels() string {
	if len(pe.defaultLabels) == 0 {
		return ""
	}

	labels := make([]string, 0, len(pe.defaultLabels))
	for k, v := range pe.defaultLabels {
		labels = append(labels, fmt.Sprintf("%s=\"%s\"", k, v))
	}
	sort.Strings(labels)

	return "{" + strings.Join(labels, ",") + "}"
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics.
// Pass in the ModuleMetrics from the launch keeper.
func PrometheusHandler(metrics *ModuleMetrics) http.Handler {
	return NewPrometheusExporter(metrics)
}

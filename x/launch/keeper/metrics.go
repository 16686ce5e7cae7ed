package keeper

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// ---------------------------------------------------------------------------
// Module Metrics -- in-process telemetry for the launch module
// ---------------------------------------------------------------------------
//
// This file provides a unified telemetry collection layer for the launch
// module. All counters use sync/atomic for lock-free concurrent access and
// all timing windows use sync.Mutex-protected ring buffers.
//
// Design principles:
//   - No external dependencies beyond the standard library and Cosmos SDK
//   - All metrics are in-memory; exporters (Prometheus, JSON) are separate
//   - Thread-safe: multiple goroutines (ABCI handlers) can record concurrently
//   - Zero-allocation hot path for counter increments
//   - Deterministic reset for testing
// ---------------------------------------------------------------------------

// ---------------------------------------------------------------------------
// Counter
// ---------------------------------------------------------------------------

// AtomicCounter is a lock-free monotonic counter using sync/atomic.
type AtomicCounter struct {
	value int64
}

// Inc increments the counter by 1.
func (c *AtomicCounter) Inc() { atomic.AddInt64(&c.value, 1) }

// Add increments the counter by delta.
func (c *AtomicCounter) Add(delta int64) { atomic.AddInt64(&c.value, delta) }

// Get returns the current counter value.
func (c *AtomicCounter) Get() int64 { return atomic.LoadInt64(&c.value) }

// Reset sets the counter to 0.
func (c *AtomicCounter) Reset() { atomic.StoreInt64(&c.value, 0) }

// ---------------------------------------------------------------------------
// Gauge
// ---------------------------------------------------------------------------

// AtomicGauge is a lock-free gauge (can go up or down).
type AtomicGauge struct {
	value int64
}

// Set stores a new value.
func (g *AtomicGauge) Set(v int64) { atomic.StoreInt64(&g.value, v) }

// Get returns the current value.
func (g *AtomicGauge) Get() int64 { return atomic.LoadInt64(&g.value) }

// Inc increments the gauge by 1.
func (g *AtomicGauge) Inc() { atomic.AddInt64(&g.value, 1) }

// Dec decrements the gauge by 1.
func (g *AtomicGauge) Dec() { atomic.AddInt64(&g.value, -1) }

// ---------------------------------------------------------------------------
// Histogram (simple ring-buffer based)
// ---------------------------------------------------------------------------

// TimingHistogram records the most recent N durations and provides summary
// statistics (min, max, avg, p50, p95, p99) over that window.
type TimingHistogram struct {
	mu       sync.Mutex
	samples  []time.Duration
	capacity int
	cursor   int
	count    int64 // total samples ever recorded
}

// NewTimingHistogram creates a histogram that retains at most capacity samples.
func NewTimingHistogram(capacity int) *TimingHistogram {
	if capacity <= 0 {
		capacity = 1000
	}
	return &TimingHistogram{
		samples:  make([]time.Duration, capacity),
		capacity: capacity,
	}
}

// Record adds a duration sample.
func (h *TimingHistogram) Record(d time.Duration) {
	h.mu.Lock()
	h.samples[h.cursor%h.capacity] = d
	h.cursor++
	h.count++
	h.mu.Unlock()
}

// Count returns the total number of samples ever recorded.
func (h *TimingHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Summary returns summary statistics over the window.
type HistogramSummary struct {
	Count int64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
}

// Summary computes summary statistics from the buffered samples.
// It returns a HistogramSummary with Count set to the total recorded count
// (not just the window size). If no samples have been recorded, all duration
// fields are zero.
func (h *TimingHistogram) Summary() HistogramSummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := h.cursor
	if n > h.capacity {
		n = h.capacity
	}
	if n == 0 {
		return HistogramSummary{Count: h.count}
	}

	// Collect active samples into a sorted slice.
	active := make([]time.Duration, n)
	copy(active, h.samples[:n])
	sortDurations(active)

	var sum time.Duration
	for _, d := range active {
		sum += d
	}

	return HistogramSummary{
		Count: h.count,
		Min:   active[0],
		Max:   active[n-1],
		Avg:   sum / time.Duration(n),
		P50:   active[percentileIndex(n, 50)],
		P95:   active[percentileIndex(n, 95)],
		P99:   active[percentileIndex(n, 99)],
	}
}

// sortDurations performs an insertion sort (fast for small N, no alloc).
func sortDurations(a []time.Duration) {
	for i := 1; i < len(a); i++ {
		key := a[i]
		j := i - 1
		for j >= 0 && a[j] > key {
			a[j+1] = a[j]
			j--
		}
		a[j+1] = key
	}
}

// percentileIndex returns the index for the p-th percentile in a sorted
// slice of length n. Clamps to [0, n-1].
func percentileIndex(n, p int) int {
	idx := (n * p) / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

// ---------------------------------------------------------------------------
// ModuleMetrics -- aggregated telemetry for the launch module
// ---------------------------------------------------------------------------

// ModuleMetrics collects all telemetry for the launch module in a single
// struct. A singleton instance is held by the Keeper and shared with every
// subsystem (capital vault, reward distributor, yield adapter).
type ModuleMetrics struct {
	// --- Listing lifecycle ---
	ListingsCreated   AtomicCounter
	ListingsActivated AtomicCounter
	ListingsFinalized AtomicCounter
	ListingsCompleted AtomicCounter
	ListingsCancelled AtomicCounter
	ActiveListings    AtomicGauge // current count in the Active state
	FinalizedListings AtomicGauge // current count in the Finalized state

	// --- Capital vault ---
	DepositsAccepted  AtomicCounter
	FeesCollected     AtomicCounter
	TranchesReleased  AtomicCounter
	TrancheShortfalls AtomicCounter
	RefundsIssued     AtomicCounter

	// --- Supporter passes ---
	PassesMinted      AtomicCounter
	PassesTransferred AtomicCounter
	OpenPasses        AtomicGauge // live (non-redeemed) pass count

	// --- Reward index ---
	RewardDeposits AtomicCounter
	RewardsClaimed AtomicCounter

	// --- Yield adapter ---
	YieldStakes   AtomicCounter
	YieldHarvests AtomicCounter
	YieldFailures AtomicCounter

	// --- Timing ---
	ReleaseSweepDuration *TimingHistogram // time to sweep all ready tranches
	HarvestDuration      *TimingHistogram // time to redeem one stake lot

	// --- Blocks ---
	BlocksProcessed AtomicCounter
	LastBlockHeight AtomicGauge
}

// NewModuleMetrics creates a new ModuleMetrics with all histograms initialized.
func NewModuleMetrics() *ModuleMetrics {
	return &ModuleMetrics{
		ReleaseSweepDuration: NewTimingHistogram(500),
		HarvestDuration:      NewTimingHistogram(500),
	}
}

// Reset zeroes all counters and gauges and re-initializes histograms.
// This is intended for testing only.
func (m *ModuleMetrics) Reset() {
	m.ListingsCreated.Reset()
	m.ListingsActivated.Reset()
	m.ListingsFinalized.Reset()
	m.ListingsCompleted.Reset()
	m.ListingsCancelled.Reset()
	m.ActiveListings.Set(0)
	m.FinalizedListings.Set(0)

	m.DepositsAccepted.Reset()
	m.FeesCollected.Reset()
	m.TranchesReleased.Reset()
	m.TrancheShortfalls.Reset()
	m.RefundsIssued.Reset()

	m.PassesMinted.Reset()
	m.PassesTransferred.Reset()
	m.OpenPasses.Set(0)

	m.RewardDeposits.Reset()
	m.RewardsClaimed.Reset()

	m.YieldStakes.Reset()
	m.YieldHarvests.Reset()
	m.YieldFailures.Reset()

	m.BlocksProcessed.Reset()
	m.LastBlockHeight.Set(0)

	// Re-initialize histograms
	*m.ReleaseSweepDuration = *NewTimingHistogram(500)
	*m.HarvestDuration = *NewTimingHistogram(500)
}

// ---------------------------------------------------------------------------
// Snapshot -- point-in-time export
// ---------------------------------------------------------------------------

// MetricsSnapshot is a JSON-friendly snapshot of all module metrics at a given
// block height and timestamp.
type MetricsSnapshot struct {
	// Context
	BlockHeight int64  `json:"block_height"`
	Timestamp   string `json:"timestamp"`

	// Listing lifecycle
	ListingsCreated   int64 `json:"listings_created"`
	ListingsActivated int64 `json:"listings_activated"`
	ListingsFinalized int64 `json:"listings_finalized"`
	ListingsCompleted int64 `json:"listings_completed"`
	ListingsCancelled int64 `json:"listings_cancelled"`
	ActiveListings    int64 `json:"active_listings"`
	FinalizedListings int64 `json:"finalized_listings"`

	// Capital vault
	DepositsAccepted  int64 `json:"deposits_accepted"`
	FeesCollected     int64 `json:"fees_collected"`
	TranchesReleased  int64 `json:"tranches_released"`
	TrancheShortfalls int64 `json:"tranche_shortfalls"`
	RefundsIssued     int64 `json:"refunds_issued"`

	// Supporter passes
	PassesMinted      int64 `json:"passes_minted"`
	PassesTransferred int64 `json:"passes_transferred"`
	OpenPasses        int64 `json:"open_passes"`

	// Reward index
	RewardDeposits int64 `json:"reward_deposits"`
	RewardsClaimed int64 `json:"rewards_claimed"`

	// Yield adapter
	YieldStakes   int64 `json:"yield_stakes"`
	YieldHarvests int64 `json:"yield_harvests"`
	YieldFailures int64 `json:"yield_failures"`

	// Blocks
	BlocksProcessed int64 `json:"blocks_processed"`

	// Timing summaries
	ReleaseSweepMs *TimingSummaryMs `json:"release_sweep_ms,omitempty"`
	HarvestMs      *TimingSummaryMs `json:"harvest_ms,omitempty"`
}

// TimingSummaryMs is a histogram summary with durations expressed in
// milliseconds for JSON friendliness.
type TimingSummaryMs struct {
	Count int64   `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

func histSummaryToMs(s HistogramSummary) *TimingSummaryMs {
	if s.Count == 0 {
		return nil
	}
	return &TimingSummaryMs{
		Count: s.Count,
		MinMs: float64(s.Min) / float64(time.Millisecond),
		MaxMs: float64(s.Max) / float64(time.Millisecond),
		AvgMs: float64(s.Avg) / float64(time.Millisecond),
		P50Ms: float64(s.P50) / float64(time.Millisecond),
		P95Ms: float64(s.P95) / float64(time.Millisecond),
		P99Ms: float64(s.P99) / float64(time.Millisecond),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics, annotated with
// the given block height and timestamp.
func (m *ModuleMetrics) Snapshot(blockHeight int64, blockTime time.Time) MetricsSnapshot {
	return MetricsSnapshot{
		BlockHeight: blockHeight,
		Timestamp:   blockTime.UTC().Format(time.RFC3339),

		ListingsCreated:   m.ListingsCreated.Get(),
		ListingsActivated: m.ListingsActivated.Get(),
		ListingsFinalized: m.ListingsFinalized.Get(),
		ListingsCompleted: m.ListingsCompleted.Get(),
		ListingsCancelled: m.ListingsCancelled.Get(),
		ActiveListings:    m.ActiveListings.Get(),
		FinalizedListings: m.FinalizedListings.Get(),

		DepositsAccepted:  m.DepositsAccepted.Get(),
		FeesCollected:     m.FeesCollected.Get(),
		TranchesReleased:  m.TranchesReleased.Get(),
		TrancheShortfalls: m.TrancheShortfalls.Get(),
		RefundsIssued:     m.RefundsIssued.Get(),

		PassesMinted:      m.PassesMinted.Get(),
		PassesTransferred: m.PassesTransferred.Get(),
		OpenPasses:        m.OpenPasses.Get(),

		RewardDeposits: m.RewardDeposits.Get(),
		RewardsClaimed: m.RewardsClaimed.Get(),

		YieldStakes:   m.YieldStakes.Get(),
		YieldHarvests: m.YieldHarvests.Get(),
		YieldFailures: m.YieldFailures.Get(),

		BlocksProcessed: m.BlocksProcessed.Get(),

		ReleaseSweepMs: histSummaryToMs(m.ReleaseSweepDuration.Summary()),
		HarvestMs:      histSummaryToMs(m.HarvestDuration.Summary()),
	}
}

// ---------------------------------------------------------------------------
// SDK event emission
// ---------------------------------------------------------------------------

// EmitMetricsEvent emits a periodic metrics summary as an SDK event. This is
// designed to be called once per block (e.g. from EndBlocker) so that
// indexers and dashboards can consume metrics without a separate Prometheus
// scrape endpoint.
func (m *ModuleMetrics) EmitMetricsEvent(ctx sdk.Context) {
	snap := m.Snapshot(ctx.BlockHeight(), ctx.BlockTime())

	ctx.EventManager().EmitEvent(
		sdk.NewEvent(
			"launch_module_metrics",
			sdk.NewAttribute("block_height", strconv.FormatInt(snap.BlockHeight, 10)),
			sdk.NewAttribute("listings_created", strconv.FormatInt(snap.ListingsCreated, 10)),
			sdk.NewAttribute("active_listings", strconv.FormatInt(snap.ActiveListings, 10)),
			sdk.NewAttribute("deposits_accepted", strconv.FormatInt(snap.DepositsAccepted, 10)),
			sdk.NewAttribute("passes_minted", strconv.FormatInt(snap.PassesMinted, 10)),
			sdk.NewAttribute("tranches_released", strconv.FormatInt(snap.TranchesReleased, 10)),
			sdk.NewAttribute("tranche_shortfalls", strconv.FormatInt(snap.TrancheShortfalls, 10)),
			sdk.NewAttribute("reward_deposits", strconv.FormatInt(snap.RewardDeposits, 10)),
			sdk.NewAttribute("rewards_claimed", strconv.FormatInt(snap.RewardsClaimed, 10)),
			sdk.NewAttribute("refunds_issued", strconv.FormatInt(snap.RefundsIssued, 10)),
			sdk.NewAttribute("yield_harvests", strconv.FormatInt(snap.YieldHarvests, 10)),
			sdk.NewAttribute("yield_failures", strconv.FormatInt(snap.YieldFailures, 10)),
		),
	)
}

// ---------------------------------------------------------------------------
// Rate limiter
// ---------------------------------------------------------------------------

// RateLimiter enforces a maximum number of operations per window using a
// sliding-window counter. It is thread-safe.
type RateLimiter struct {
	mu       sync.Mutex
	limit    int64
	window   time.Duration
	tokens   int64
	lastTime time.Time
}

// NewRateLimiter creates a new rate limiter that allows at most `limit`
// operations per `window` duration.
func NewRateLimiter(limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:    limit,
		window:   window,
		tokens:   limit,
		lastTime: time.Now(),
	}
}

// Allow returns true if the operation is within the rate limit. If the
// window has elapsed since the last refill, tokens are replenished.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime)

	if elapsed >= rl.window {
		// Refill tokens.
		rl.tokens = rl.limit
		rl.lastTime = now
	}

	if rl.tokens <= 0 {
		return false
	}

	rl.tokens--
	return true
}

// AllowN returns true if n operations are within the rate limit.
func (rl *RateLimiter) AllowN(n int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastTime)

	if elapsed >= rl.window {
		rl.tokens = rl.limit
		rl.lastTime = now
	}

	if rl.tokens < n {
		return false
	}

	rl.tokens -= n
	return true
}

// Remaining returns the number of tokens left in the current window.
func (rl *RateLimiter) Remaining() int64 {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return rl.tokens
}

// ---------------------------------------------------------------------------
// Circuit breaker
// ---------------------------------------------------------------------------

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState int

const (
	CircuitClosed   CircuitBreakerState = iota // normal operation
	CircuitOpen                                // tripped -- rejecting requests
	CircuitHalfOpen                            // testing recovery
)

func (s CircuitBreakerState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker protects a subsystem from cascading failures by tracking
// consecutive errors. When the threshold is exceeded, it opens and rejects
// all requests for the cooldown period before allowing a single test request
// (half-open).
type CircuitBreaker struct {
	mu               sync.Mutex
	name             string
	failureThreshold int64
	cooldown         time.Duration
	consecutiveFails int64
	state            CircuitBreakerState
	lastFailTime     time.Time
	totalTrips       int64
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(name string, failureThreshold int64, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		state:            CircuitClosed,
	}
}

// Allow returns true if the circuit is closed or half-open (allowing a test
// request). Returns false if the circuit is open and the cooldown has not
// elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		// Check if cooldown has elapsed.
		if time.Since(cb.lastFailTime) >= cb.cooldown {
			cb.state = CircuitHalfOpen
			return true
		}
		return false
	case CircuitHalfOpen:
		// Only one request allowed in half-open state.
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful operation. If the breaker is half-open,
// it transitions to closed.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails = 0
	if cb.state == CircuitHalfOpen {
		cb.state = CircuitClosed
	}
}

// RecordFailure records a failed operation. If consecutive failures exceed
// the threshold, the breaker opens.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFails++
	cb.lastFailTime = time.Now()

	if cb.consecutiveFails >= cb.failureThreshold {
		if cb.state != CircuitOpen {
			cb.totalTrips++
		}
		cb.state = CircuitOpen
	}
}

// State returns the current circuit breaker state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// TotalTrips returns how many times the breaker has opened.
func (cb *CircuitBreaker) TotalTrips() int64 {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.totalTrips
}

// Name returns the circuit breaker's name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// ---------------------------------------------------------------------------
// Health status
// ---------------------------------------------------------------------------

// HealthStatus represents the overall health of the launch module.
type HealthStatus struct {
	Healthy     bool              `json:"healthy"`
	BlockHeight int64             `json:"block_height"`
	Timestamp   string            `json:"timestamp"`
	Checks      []HealthCheckItem `json:"checks"`
}

// HealthCheckItem is a single health check result.
type HealthCheckItem struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// CheckHealth performs a comprehensive health check of the launch module.
// It examines tranche shortfalls, yield source failure rates, cancellation
// rates, and block progress to determine overall module health.
func (m *ModuleMetrics) CheckHealth(ctx sdk.Context) HealthStatus {
	checks := make([]HealthCheckItem, 0, 4)
	allHealthy := true

	// Check 1: Tranche releases paying in full
	shortfalls := m.TrancheShortfalls.Get()
	if shortfalls > 0 {
		checks = append(checks, HealthCheckItem{
			Name:    "tranche_shortfalls",
			Healthy: false,
			Message: fmt.Sprintf("%d tranche releases could not pay in full", shortfalls),
		})
		allHealthy = false
	} else {
		checks = append(checks, HealthCheckItem{
			Name:    "tranche_shortfalls",
			Healthy: true,
			Message: "all releases paid in full",
		})
	}

	// Check 2: Yield source failure rate (only with enough operations)
	yieldOps := m.YieldStakes.Get() + m.YieldHarvests.Get()
	failures := m.YieldFailures.Get()
	if yieldOps > 10 {
		failureRate := float64(failures) / float64(yieldOps+failures)
		if failureRate > 0.2 {
			checks = append(checks, HealthCheckItem{
				Name:    "yield_failure_rate",
				Healthy: false,
				Message: fmt.Sprintf("yield failure rate %.1f%% > 20%%", failureRate*100),
			})
			allHealthy = false
		} else {
			checks = append(checks, HealthCheckItem{
				Name:    "yield_failure_rate",
				Healthy: true,
				Message: fmt.Sprintf("%.1f%% over %d operations", failureRate*100, yieldOps),
			})
		}
	}

	// Check 3: Blocks advancing
	lastHeight := m.LastBlockHeight.Get()
	if lastHeight > 0 && ctx.BlockHeight()-lastHeight > 10 {
		checks = append(checks, HealthCheckItem{
			Name:    "block_progress",
			Healthy: false,
			Message: fmt.Sprintf("last processed block %d, current %d", lastHeight, ctx.BlockHeight()),
		})
		allHealthy = false
	} else {
		checks = append(checks, HealthCheckItem{
			Name:    "block_progress",
			Healthy: true,
			Message: fmt.Sprintf("at block %d", ctx.BlockHeight()),
		})
	}

	// Check 4: Cancellations not dominating
	created := m.ListingsCreated.Get()
	cancelled := m.ListingsCancelled.Get()
	if created > 10 && cancelled > created/2 {
		checks = append(checks, HealthCheckItem{
			Name:    "cancellation_rate",
			Healthy: false,
			Message: fmt.Sprintf("cancellations (%d) exceed 50%% of listings created (%d)", cancelled, created),
		})
		allHealthy = false
	} else {
		checks = append(checks, HealthCheckItem{
			Name:    "cancellation_rate",
			Healthy: true,
			Message: fmt.Sprintf("%d cancelled of %d created", cancelled, created),
		})
	}

	return HealthStatus{
		Healthy:     allHealthy,
		BlockHeight: ctx.BlockHeight(),
		Timestamp:   ctx.BlockTime().UTC().Format(time.RFC3339),
		Checks:      checks,
	}
}

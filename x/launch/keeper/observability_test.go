package keeper_test

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/tide-protocol/tidechain/x/launch/keeper"
	"github.com/tide-protocol/tidechain/x/launch/types"
)

// =============================================================================
// OBSERVABILITY, METRICS & AUDIT TESTS
//
// These tests cover the metrics counters and histograms, the rate limiter,
// the yield-source circuit breaker, the hash-chained audit log, module
// health checks, and the Prometheus exposition endpoint.
//
// Test sections:
//   1.  Atomic counters & gauges (6 tests)
//   2.  Timing histogram (6 tests)
//   3.  Module metrics snapshot (5 tests)
//   4.  Rate limiter (4 tests)
//   5.  Circuit breaker (9 tests)
//   6.  Audit records & hash chaining (8 tests)
//   7.  Audit queries (4 tests)
//   8.  Keeper integration (4 tests)
//   9.  Health checks (5 tests)
//  10.  Prometheus exporter (6 tests)
//  11.  Benchmark baselines (4 benchmarks)
// =============================================================================

// =============================================================================
// Section 1: Atomic Counters & Gauges
// =============================================================================

func TestMetrics_Counter_Inc(t *testing.T) {
	var c keeper.AtomicCounter
	require.Zero(t, c.Get())
	c.Inc()
	c.Inc()
	require.Equal(t, int64(2), c.Get())
}

func TestMetrics_Counter_Add(t *testing.T) {
	var c keeper.AtomicCounter
	c.Add(100)
	c.Add(-30)
	require.Equal(t, int64(70), c.Get())
}

func TestMetrics_Counter_Reset(t *testing.T) {
	var c keeper.AtomicCounter
	c.Add(7)
	c.Reset()
	require.Zero(t, c.Get())
}

func TestMetrics_Counter_ConcurrentAccess(t *testing.T) {
	var c keeper.AtomicCounter
	const goroutines = 100
	const perGoroutine = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				c.Inc()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(goroutines*perGoroutine), c.Get())
}

func TestMetrics_Gauge_SetIncDec(t *testing.T) {
	var g keeper.AtomicGauge
	require.Zero(t, g.Get())
	g.Set(10)
	g.Inc()
	g.Dec()
	g.Dec()
	require.Equal(t, int64(9), g.Get())
}

func TestMetrics_Gauge_NegativeValues(t *testing.T) {
	var g keeper.AtomicGauge
	g.Dec()
	require.Equal(t, int64(-1), g.Get())
	g.Set(-42)
	require.Equal(t, int64(-42), g.Get())
}

// =============================================================================
// Section 2: Timing Histogram
// =============================================================================

func TestMetrics_Histogram_Empty(t *testing.T) {
	h := keeper.NewTimingHistogram(100)
	require.Zero(t, h.Count())

	summary := h.Summary()
	require.Zero(t, summary.Count)
	require.Zero(t, summary.Min)
	require.Zero(t, summary.P99)
}

func TestMetrics_Histogram_SingleSample(t *testing.T) {
	h := keeper.NewTimingHistogram(100)
	h.Record(5 * time.Millisecond)

	summary := h.Summary()
	require.Equal(t, int64(1), summary.Count)
	require.Equal(t, 5*time.Millisecond, summary.Min)
	require.Equal(t, 5*time.Millisecond, summary.Max)
	require.Equal(t, 5*time.Millisecond, summary.Avg)
	require.Equal(t, 5*time.Millisecond, summary.P50)
	require.Equal(t, 5*time.Millisecond, summary.P99)
}

func TestMetrics_Histogram_Percentiles(t *testing.T) {
	h := keeper.NewTimingHistogram(100)
	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	summary := h.Summary()
	require.Equal(t, int64(100), summary.Count)
	require.Equal(t, time.Millisecond, summary.Min)
	require.Equal(t, 100*time.Millisecond, summary.Max)
	require.Equal(t, 50500*time.Microsecond, summary.Avg)
	require.Equal(t, 51*time.Millisecond, summary.P50)
	require.Equal(t, 96*time.Millisecond, summary.P95)
	require.Equal(t, 100*time.Millisecond, summary.P99)
}

func TestMetrics_Histogram_WindowBounded(t *testing.T) {
	h := keeper.NewTimingHistogram(10)
	for i := 1; i <= 25; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}

	// Total count keeps growing, the stats window holds the last 10 samples.
	require.Equal(t, int64(25), h.Count())

	summary := h.Summary()
	require.Equal(t, int64(25), summary.Count)
	require.Equal(t, 16*time.Millisecond, summary.Min)
	require.Equal(t, 25*time.Millisecond, summary.Max)
}

func TestMetrics_Histogram_ZeroCapacityDefaults(t *testing.T) {
	h := keeper.NewTimingHistogram(0)
	h.Record(time.Millisecond)
	require.Equal(t, int64(1), h.Count())
	require.Equal(t, time.Millisecond, h.Summary().Max)
}

func TestMetrics_Histogram_ConcurrentRecord(t *testing.T) {
	h := keeper.NewTimingHistogram(64)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h.Record(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(1000), h.Count())
	require.Equal(t, time.Millisecond, h.Summary().P50)
}

// =============================================================================
// Section 3: Module Metrics Snapshot
// =============================================================================

func TestMetrics_Snapshot_ReflectsCounters(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.ListingsCreated.Add(3)
	m.ListingsCancelled.Inc()
	m.ActiveListings.Set(2)
	m.DepositsAccepted.Add(7)
	m.YieldFailures.Inc()
	m.BlocksProcessed.Add(10)

	snap := m.Snapshot(42, testBlockTime)
	require.Equal(t, int64(42), snap.BlockHeight)
	require.Equal(t, testBlockTime.Format(time.RFC3339), snap.Timestamp)
	require.Equal(t, int64(3), snap.ListingsCreated)
	require.Equal(t, int64(1), snap.ListingsCancelled)
	require.Equal(t, int64(2), snap.ActiveListings)
	require.Equal(t, int64(7), snap.DepositsAccepted)
	require.Equal(t, int64(1), snap.YieldFailures)
	require.Equal(t, int64(10), snap.BlocksProcessed)
}

func TestMetrics_Snapshot_OmitsEmptyTimings(t *testing.T) {
	snap := keeper.NewModuleMetrics().Snapshot(1, testBlockTime)
	require.Nil(t, snap.ReleaseSweepMs)
	require.Nil(t, snap.HarvestMs)

	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "release_sweep_ms")
	require.Contains(t, string(raw), `"listings_created":0`)
}

func TestMetrics_Snapshot_TimingSummaries(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.HarvestDuration.Record(10 * time.Millisecond)
	m.HarvestDuration.Record(30 * time.Millisecond)

	snap := m.Snapshot(1, testBlockTime)
	require.NotNil(t, snap.HarvestMs)
	require.Equal(t, int64(2), snap.HarvestMs.Count)
	require.Equal(t, float64(10), snap.HarvestMs.MinMs)
	require.Equal(t, float64(30), snap.HarvestMs.MaxMs)
	require.Equal(t, float64(20), snap.HarvestMs.AvgMs)
}

func TestMetrics_ResetZeroesEverything(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.ListingsCreated.Add(5)
	m.OpenPasses.Set(3)
	m.ReleaseSweepDuration.Record(time.Millisecond)

	m.Reset()

	snap := m.Snapshot(1, testBlockTime)
	require.Zero(t, snap.ListingsCreated)
	require.Zero(t, snap.OpenPasses)
	require.Nil(t, snap.ReleaseSweepMs)
}

func TestMetrics_EmitMetricsEvent(t *testing.T) {
	env := newTestEnv(t)
	listing, _, _ := env.activeListing(t, defaultConfig())
	env.deposit(t, listing.ID, backerAddr, 2_000)

	env.keeper.Metrics().EmitMetricsEvent(env.ctx)

	events := env.ctx.EventManager().Events()
	require.Equal(t, "1", findEventAttr(t, events, "launch_module_metrics", "listings_created"))
	require.Equal(t, "1", findEventAttr(t, events, "launch_module_metrics", "deposits_accepted"))
	require.Equal(t, "1", findEventAttr(t, events, "launch_module_metrics", "passes_minted"))
	require.Equal(t, "1", findEventAttr(t, events, "launch_module_metrics", "block_height"))
}

// =============================================================================
// Section 4: Rate Limiter
// =============================================================================

func TestMetrics_RateLimiter_AllowWithinLimit(t *testing.T) {
	rl := keeper.NewRateLimiter(5, time.Hour)
	for i := 0; i < 5; i++ {
		require.True(t, rl.Allow())
	}
}

func TestMetrics_RateLimiter_RejectsOverLimit(t *testing.T) {
	rl := keeper.NewRateLimiter(3, time.Hour)
	for i := 0; i < 3; i++ {
		require.True(t, rl.Allow())
	}
	require.False(t, rl.Allow())
	require.Zero(t, rl.Remaining())
}

func TestMetrics_RateLimiter_RefillsAfterWindow(t *testing.T) {
	rl := keeper.NewRateLimiter(2, 15*time.Millisecond)
	require.True(t, rl.Allow())
	require.True(t, rl.Allow())
	require.False(t, rl.Allow())

	time.Sleep(30 * time.Millisecond)
	require.True(t, rl.Allow())
	require.Equal(t, int64(1), rl.Remaining())
}

func TestMetrics_RateLimiter_AllowN(t *testing.T) {
	rl := keeper.NewRateLimiter(5, time.Hour)
	require.True(t, rl.AllowN(3))
	require.Equal(t, int64(2), rl.Remaining())
	require.False(t, rl.AllowN(3))
	require.True(t, rl.AllowN(2))
	require.Zero(t, rl.Remaining())
}

// =============================================================================
// Section 5: Circuit Breaker
// =============================================================================

func TestMetrics_CircuitBreaker_InitClosed(t *testing.T) {
	cb := keeper.NewCircuitBreaker("payout_gateway", 3, time.Second)
	require.Equal(t, keeper.CircuitClosed, cb.State())
	require.True(t, cb.Allow())
	require.Equal(t, "payout_gateway", cb.Name())
	require.Zero(t, cb.TotalTrips())
}

func TestMetrics_CircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 3, time.Hour)

	cb.RecordFailure()
	require.Equal(t, keeper.CircuitClosed, cb.State())
	cb.RecordFailure()
	require.Equal(t, keeper.CircuitClosed, cb.State())
	cb.RecordFailure()
	require.Equal(t, keeper.CircuitOpen, cb.State())
	require.False(t, cb.Allow(), "open circuit should reject requests")
}

func TestMetrics_CircuitBreaker_SuccessResetsCount(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 3, time.Hour)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()

	require.Equal(t, keeper.CircuitClosed, cb.State(),
		"success should reset the consecutive failure count")
}

func TestMetrics_CircuitBreaker_HalfOpenAfterCooldown(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 1, 10*time.Millisecond)

	cb.RecordFailure()
	require.Equal(t, keeper.CircuitOpen, cb.State())
	require.False(t, cb.Allow())

	time.Sleep(20 * time.Millisecond)
	require.True(t, cb.Allow(), "should allow a test request after cooldown")
	require.Equal(t, keeper.CircuitHalfOpen, cb.State())
}

func TestMetrics_CircuitBreaker_ClosesOnHalfOpenSuccess(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 1, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, cb.Allow())
	cb.RecordSuccess()

	require.Equal(t, keeper.CircuitClosed, cb.State())
	require.True(t, cb.Allow())
}

func TestMetrics_CircuitBreaker_ReopensOnHalfOpenFailure(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 1, 10*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	require.True(t, cb.Allow())
	cb.RecordFailure()

	require.Equal(t, keeper.CircuitOpen, cb.State())
}

func TestMetrics_CircuitBreaker_TotalTrips(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 1, 10*time.Millisecond)

	require.Zero(t, cb.TotalTrips())

	cb.RecordFailure()
	require.Equal(t, int64(1), cb.TotalTrips())

	time.Sleep(20 * time.Millisecond)
	cb.Allow()
	cb.RecordSuccess()

	cb.RecordFailure()
	require.Equal(t, int64(2), cb.TotalTrips())
}

func TestMetrics_CircuitBreaker_StateString(t *testing.T) {
	require.Equal(t, "closed", keeper.CircuitClosed.String())
	require.Equal(t, "open", keeper.CircuitOpen.String())
	require.Equal(t, "half_open", keeper.CircuitHalfOpen.String())
	require.Equal(t, "unknown", keeper.CircuitBreakerState(99).String())
}

func TestMetrics_CircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := keeper.NewCircuitBreaker("test", 1_000_000, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				cb.RecordFailure()
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = cb.Allow()
				_ = cb.State()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, keeper.CircuitClosed, cb.State())
}

// =============================================================================
// Section 6: Audit Records & Hash Chaining
// =============================================================================

func TestAudit_NewLogger(t *testing.T) {
	al := keeper.NewAuditLogger(100)
	require.Zero(t, al.Sequence())
	require.Zero(t, al.TotalEmitted())
	require.Equal(t, "genesis", al.LastHash())
	require.Empty(t, al.GetRecords())
}

func TestAudit_RecordFields(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	rec := al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "listing_created", issuerAddr, map[string]string{
		"listing_id": "listing-1",
	})
	require.Equal(t, uint64(1), rec.Sequence)
	require.Equal(t, "genesis", rec.PreviousHash)
	require.Len(t, rec.RecordHash, 64)
	require.Equal(t, keeper.AuditCategoryListing, rec.Category)
	require.Equal(t, keeper.AuditSeverityInfo, rec.Severity)
	require.Equal(t, int64(1), rec.BlockHeight)
	require.Equal(t, testBlockTime.Format(time.RFC3339), rec.Timestamp)
	require.Equal(t, issuerAddr, rec.Actor)
	require.Equal(t, "listing-1", rec.Details["listing_id"])
	require.Equal(t, rec.RecordHash, al.LastHash())
}

func TestAudit_HashChaining(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	first := al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "a", "actor", nil)
	second := al.Record(env.ctx, keeper.AuditCategoryCapital, keeper.AuditSeverityInfo, "b", "actor", nil)
	third := al.Record(env.ctx, keeper.AuditCategoryYield, keeper.AuditSeverityInfo, "c", "actor", nil)

	require.Equal(t, first.RecordHash, second.PreviousHash)
	require.Equal(t, second.RecordHash, third.PreviousHash)
	require.Equal(t, third.RecordHash, al.LastHash())
	require.NotEqual(t, first.RecordHash, second.RecordHash)
	require.NoError(t, al.VerifyChain())
}

func TestAudit_DeterministicHashing(t *testing.T) {
	env := newTestEnv(t)

	// Detail map insertion order must not change the hash.
	a := keeper.NewAuditLogger(10).Record(env.ctx, keeper.AuditCategoryPass, keeper.AuditSeverityInfo, "pass_transferred", backerAddr,
		map[string]string{"pass_id": "pass-1", "to": buyerAddr})
	b := keeper.NewAuditLogger(10).Record(env.ctx, keeper.AuditCategoryPass, keeper.AuditSeverityInfo, "pass_transferred", backerAddr,
		map[string]string{"to": buyerAddr, "pass_id": "pass-1"})
	require.Equal(t, a.RecordHash, b.RecordHash)

	c := keeper.NewAuditLogger(10).Record(env.ctx, keeper.AuditCategoryPass, keeper.AuditSeverityInfo, "pass_transferred", strangerAddr,
		map[string]string{"pass_id": "pass-1", "to": buyerAddr})
	require.NotEqual(t, a.RecordHash, c.RecordHash)
}

func TestAudit_RingBufferDisplacement(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(3)

	for i := 0; i < 5; i++ {
		al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "tick", "system", nil)
	}

	require.Equal(t, uint64(5), al.TotalEmitted())
	require.Equal(t, uint64(5), al.Sequence())
	require.Len(t, al.GetRecords(), 3)
}

func TestAudit_ExportJSON(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)
	al.AuditListingCreated(env.ctx, "listing-1", issuerAddr, beneficiaryAddr, testDenom, 100)
	al.AuditListingActivated(env.ctx, "listing-1", issuerAddr)

	raw, err := al.ExportJSON()
	require.NoError(t, err)

	var records []keeper.AuditRecord
	require.NoError(t, json.Unmarshal(raw, &records))
	require.Len(t, records, 2)
	require.Equal(t, "listing_created", records[0].Action)
	require.Equal(t, uint64(2), records[1].Sequence)
	require.Equal(t, records[0].RecordHash, records[1].PreviousHash)
}

func TestAudit_SeverityEscalation(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	al.AuditFeeCollected(env.ctx, "listing-1", "100", "100", false)
	al.AuditFeeCollected(env.ctx, "listing-1", "100", "40", true)
	al.AuditTrancheReleased(env.ctx, "listing-1", 2, "5000", "5000", "0")
	al.AuditTrancheReleased(env.ctx, "listing-1", 3, "5000", "1000", "4000")
	al.AuditYieldHarvested(env.ctx, "listing-1", "lot-1", "900", "0", "100")
	al.AuditSecurityAlert(env.ctx, "invariant_broken", "share conservation failed", nil)

	require.Len(t, al.GetRecordsBySeverity(keeper.AuditSeverityCritical), 4)

	records := al.GetRecords()
	require.Equal(t, keeper.AuditSeverityInfo, records[0].Severity)
	require.Equal(t, keeper.AuditSeverityCritical, records[1].Severity)
	require.Equal(t, keeper.AuditSeverityInfo, records[2].Severity)
	require.Equal(t, keeper.AuditSeverityCritical, records[3].Severity)

	alerts := al.GetRecordsByCategory(keeper.AuditCategorySecurity)
	require.Len(t, alerts, 1)
	require.Equal(t, "security_alert", alerts[0].Action)
	require.Equal(t, "invariant_broken", alerts[0].Details["alert_type"])
	require.Equal(t, keeper.AuditSeverityCritical, alerts[0].Severity)
}

func TestAudit_ConvenienceHelpers(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	al.AuditDepositAccepted(env.ctx, "listing-1", backerAddr, "5000", "5000", "pass-1")
	al.AuditListingPaused(env.ctx, "listing-1", testAuthority)
	al.AuditPassTransferred(env.ctx, "listing-1", "pass-1", backerAddr, buyerAddr)
	al.AuditYieldStaked(env.ctx, "listing-1", issuerAddr, "lot-1", "2500")

	records := al.GetRecords()
	require.Len(t, records, 4)

	require.Equal(t, keeper.AuditCategoryCapital, records[0].Category)
	require.Equal(t, "deposit_accepted", records[0].Action)
	require.Equal(t, backerAddr, records[0].Actor)
	require.Equal(t, "pass-1", records[0].Details["pass_id"])

	require.Equal(t, keeper.AuditSeverityWarning, records[1].Severity)

	require.Equal(t, keeper.AuditCategoryPass, records[2].Category)
	require.Equal(t, buyerAddr, records[2].Details["to"])

	require.Equal(t, keeper.AuditCategoryYield, records[3].Category)
	require.Equal(t, "lot-1", records[3].Details["handle"])

	require.NoError(t, al.VerifyChain())
}

// =============================================================================
// Section 7: Audit Queries
// =============================================================================

func TestAudit_GetRecordsSince(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "early", "system", nil)
	al.Record(env.ctx.WithBlockHeight(5), keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "late", "system", nil)

	require.Len(t, al.GetRecordsSince(1), 2)

	since := al.GetRecordsSince(5)
	require.Len(t, since, 1)
	require.Equal(t, "late", since[0].Action)

	require.Empty(t, al.GetRecordsSince(6))
}

func TestAudit_GetRecordsByCategory(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "a", "system", nil)
	al.Record(env.ctx, keeper.AuditCategoryCapital, keeper.AuditSeverityInfo, "b", "system", nil)
	al.Record(env.ctx, keeper.AuditCategoryCapital, keeper.AuditSeverityInfo, "c", "system", nil)

	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryCapital), 2)
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryListing), 1)
	require.Empty(t, al.GetRecordsByCategory(keeper.AuditCategoryRewards))
}

func TestAudit_GetRecordsBySeverity(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)

	al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "a", "system", nil)
	al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityWarning, "b", "system", nil)
	al.Record(env.ctx, keeper.AuditCategorySecurity, keeper.AuditSeverityCritical, "c", "system", nil)

	require.Len(t, al.GetRecordsBySeverity(keeper.AuditSeverityInfo), 3)
	require.Len(t, al.GetRecordsBySeverity(keeper.AuditSeverityWarning), 2)

	critical := al.GetRecordsBySeverity(keeper.AuditSeverityCritical)
	require.Len(t, critical, 1)
	require.Equal(t, "c", critical[0].Action)
}

func TestAudit_GetRecordsReturnsCopy(t *testing.T) {
	env := newTestEnv(t)
	al := keeper.NewAuditLogger(100)
	al.Record(env.ctx, keeper.AuditCategoryListing, keeper.AuditSeverityInfo, "original", "system", nil)

	out := al.GetRecords()
	out[0].Action = "tampered"

	require.Equal(t, "original", al.GetRecords()[0].Action)
	require.NoError(t, al.VerifyChain())
}

// =============================================================================
// Section 8: Keeper Integration
// =============================================================================

func TestObservability_KeeperWiresSubsystems(t *testing.T) {
	env := newTestEnv(t)

	m := env.keeper.Metrics()
	require.NotNil(t, m)
	require.Same(t, m, env.keeper.Metrics())

	al := env.keeper.AuditLog()
	require.NotNil(t, al)
	require.Zero(t, al.TotalEmitted())
	require.Equal(t, "genesis", al.LastHash())

	cb := env.keeper.YieldBreaker()
	require.NotNil(t, cb)
	require.Equal(t, "yield_source", cb.Name())
	require.Equal(t, keeper.CircuitClosed, cb.State())
	require.Zero(t, cb.TotalTrips())
}

func TestObservability_OpsFeedMetricsAndAudit(t *testing.T) {
	env := newTestEnv(t)

	listing, adminCap, routeCap := env.activeListing(t, defaultConfig())
	passA := env.deposit(t, listing.ID, backerAddr, 10_000)
	passB := env.deposit(t, listing.ID, secondBacker, 5_000)
	env.depositRewards(t, routeCap, listing.ID, issuerAddr, 300)

	claimed, err := env.keeper.ClaimRewards(env.ctx, types.MsgClaimRewards{
		ListingID: listing.ID, PassID: passA.ID, Holder: backerAddr,
	})
	require.NoError(t, err)
	require.Equal(t, int64(200), claimed.Int64())

	_, err = env.keeper.TransferPass(env.ctx, types.MsgTransferPass{
		PassID: passB.ID, From: secondBacker, To: buyerAddr,
	})
	require.NoError(t, err)

	require.NoError(t, env.keeper.EnableYield(env.ctx, adminCap, listing.ID, issuerAddr, testValidator))
	env.finalize(t, adminCap, listing.ID, defaultConfig())
	_, err = env.keeper.CollectRaiseFee(env.ctx, listing.ID)
	require.NoError(t, err)

	env.advance(24 * time.Hour)
	released, _, err := env.keeper.ReleaseAllReady(env.ctx, listing.ID)
	require.NoError(t, err)
	require.Equal(t, 2, released)

	lot, err := env.keeper.StakeIdleCapital(env.ctx, adminCap, listing.ID, issuerAddr, sdkmath.NewInt(1_000))
	require.NoError(t, err)
	env.yield.setPayout(lot.Handle, 1_100)
	_, err = env.keeper.Harvest(env.ctx, listing.ID, lot.Handle)
	require.NoError(t, err)

	snap := env.keeper.Metrics().Snapshot(env.ctx.BlockHeight(), env.ctx.BlockTime())
	require.Equal(t, int64(1), snap.ListingsCreated)
	require.Equal(t, int64(1), snap.ListingsActivated)
	require.Equal(t, int64(1), snap.ListingsFinalized)
	require.Equal(t, int64(2), snap.DepositsAccepted)
	require.Equal(t, int64(2), snap.PassesMinted)
	require.Equal(t, int64(1), snap.PassesTransferred)
	require.Equal(t, int64(1), snap.FeesCollected)
	require.Equal(t, int64(2), snap.TranchesReleased)
	require.Zero(t, snap.TrancheShortfalls)
	require.Zero(t, snap.RefundsIssued)
	// One route deposit plus the harvested backer cut.
	require.Equal(t, int64(2), snap.RewardDeposits)
	require.Equal(t, int64(1), snap.RewardsClaimed)
	require.Equal(t, int64(1), snap.YieldStakes)
	require.Equal(t, int64(1), snap.YieldHarvests)
	require.Zero(t, snap.YieldFailures)
	require.NotNil(t, snap.ReleaseSweepMs)
	require.Equal(t, int64(1), snap.ReleaseSweepMs.Count)
	require.NotNil(t, snap.HarvestMs)
	require.Equal(t, int64(1), snap.HarvestMs.Count)

	al := env.keeper.AuditLog()
	require.NoError(t, al.VerifyChain())
	require.Equal(t, uint64(14), al.TotalEmitted())
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryListing), 2)
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryCapital), 6)
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryRewards), 2)
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryPass), 1)
	require.Len(t, al.GetRecordsByCategory(keeper.AuditCategoryYield), 3)

	actions := make([]string, 0, 14)
	for _, r := range al.GetRecords() {
		actions = append(actions, r.Action)
	}
	require.Contains(t, actions, "deposit_accepted")
	require.Contains(t, actions, "schedule_finalized")
	require.Contains(t, actions, "yield_harvested")

	raw, err := al.ExportJSON()
	require.NoError(t, err)
	var exported []keeper.AuditRecord
	require.NoError(t, json.Unmarshal(raw, &exported))
	require.Len(t, exported, 14)
}

func TestObservability_BreakerTripsSurfaceInMetrics(t *testing.T) {
	env := newTestEnv(t)

	listing, adminCap, _ := env.activeListing(t, defaultConfig())
	env.deposit(t, listing.ID, backerAddr, 10_000)
	require.NoError(t, env.keeper.EnableYield(env.ctx, adminCap, listing.ID, issuerAddr, testValidator))

	env.yield.stakeErr = errors.New("connection reset")
	for i := 0; i < 3; i++ {
		_, err := env.keeper.StakeIdleCapital(env.ctx, adminCap, listing.ID, issuerAddr, sdkmath.NewInt(100))
		require.ErrorContains(t, err, "yield stake failed")
	}

	cb := env.keeper.YieldBreaker()
	require.Equal(t, keeper.CircuitOpen, cb.State())
	require.Equal(t, int64(1), cb.TotalTrips())
	require.Equal(t, int64(3), env.keeper.Metrics().YieldFailures.Get())

	// Rejections while open do not count as new source failures.
	env.yield.stakeErr = nil
	_, err := env.keeper.StakeIdleCapital(env.ctx, adminCap, listing.ID, issuerAddr, sdkmath.NewInt(100))
	require.ErrorContains(t, err, "circuit open")
	require.Equal(t, int64(3), env.keeper.Metrics().YieldFailures.Get())
}

func TestObservability_ShortfallSurfacesEverywhere(t *testing.T) {
	env := newTestEnv(t)

	config := defaultConfig()
	config.RaiseFeeBps = 0
	config.InitialReleaseBps = 0
	config.TrancheCount = 1
	listing, adminCap, _ := env.activeListing(t, config)
	env.deposit(t, listing.ID, backerAddr, 10_000)
	require.NoError(t, env.keeper.EnableYield(env.ctx, adminCap, listing.ID, issuerAddr, testValidator))

	env.finalize(t, adminCap, listing.ID, config)
	_, err := env.keeper.CollectRaiseFee(env.ctx, listing.ID)
	require.NoError(t, err)
	_, err = env.keeper.StakeIdleCapital(env.ctx, adminCap, listing.ID, issuerAddr, sdkmath.NewInt(8_000))
	require.NoError(t, err)

	env.advance(24 * time.Hour)
	tranche, err := env.keeper.ReleaseTrancheAt(env.ctx, listing.ID, 1)
	require.NoError(t, err)
	require.Equal(t, int64(8_000), tranche.ShortfallAmount.Int64())

	require.Equal(t, int64(1), env.keeper.Metrics().TrancheShortfalls.Get())

	critical := env.keeper.AuditLog().GetRecordsBySeverity(keeper.AuditSeverityCritical)
	require.Len(t, critical, 1)
	require.Equal(t, "tranche_released", critical[0].Action)
	require.Equal(t, "8000", critical[0].Details["shortfall"])

	health := env.keeper.Metrics().CheckHealth(env.ctx)
	require.False(t, health.Healthy)
}

// =============================================================================
// Section 9: Health Checks
// =============================================================================

func TestHealth_AllHealthyWhenFresh(t *testing.T) {
	env := newTestEnv(t)
	m := keeper.NewModuleMetrics()

	health := m.CheckHealth(env.ctx)
	require.True(t, health.Healthy)
	require.Equal(t, env.ctx.BlockHeight(), health.BlockHeight)
	require.Equal(t, testBlockTime.Format(time.RFC3339), health.Timestamp)
	require.Len(t, health.Checks, 3)
	for _, check := range health.Checks {
		require.True(t, check.Healthy, check.Name)
	}
}

func TestHealth_FlagsTrancheShortfalls(t *testing.T) {
	env := newTestEnv(t)
	m := keeper.NewModuleMetrics()
	m.TrancheShortfalls.Add(2)

	health := m.CheckHealth(env.ctx)
	require.False(t, health.Healthy)

	item := findHealthCheck(t, health, "tranche_shortfalls")
	require.False(t, item.Healthy)
	require.Contains(t, item.Message, "2 tranche releases")
}

func TestHealth_YieldFailureRate(t *testing.T) {
	env := newTestEnv(t)

	m := keeper.NewModuleMetrics()
	m.YieldStakes.Add(20)
	m.YieldFailures.Add(10) // 10 failures over 30 attempts
	health := m.CheckHealth(env.ctx)
	require.False(t, health.Healthy)
	require.False(t, findHealthCheck(t, health, "yield_failure_rate").Healthy)

	m = keeper.NewModuleMetrics()
	m.YieldStakes.Add(50)
	m.YieldFailures.Add(2)
	health = m.CheckHealth(env.ctx)
	require.True(t, health.Healthy)
	require.True(t, findHealthCheck(t, health, "yield_failure_rate").Healthy)
}

func TestHealth_FlagsStalledBlocks(t *testing.T) {
	env := newTestEnv(t)
	m := keeper.NewModuleMetrics()
	m.LastBlockHeight.Set(5)

	health := m.CheckHealth(env.ctx.WithBlockHeight(50))
	require.False(t, health.Healthy)
	require.Contains(t, findHealthCheck(t, health, "block_progress").Message, "last processed block 5")

	health = m.CheckHealth(env.ctx.WithBlockHeight(6))
	require.True(t, health.Healthy)
}

func TestHealth_FlagsCancellationWave(t *testing.T) {
	env := newTestEnv(t)
	m := keeper.NewModuleMetrics()
	m.ListingsCreated.Add(20)
	m.ListingsCancelled.Add(15)

	health := m.CheckHealth(env.ctx)
	require.False(t, health.Healthy)
	require.Contains(t, findHealthCheck(t, health, "cancellation_rate").Message, "exceed 50%")

	m.ListingsCancelled.Reset()
	m.ListingsCancelled.Add(5)
	require.True(t, m.CheckHealth(env.ctx).Healthy)
}

// =============================================================================
// Section 10: Prometheus Exporter
// =============================================================================

func TestPrometheus_RenderModuleMetrics(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.ListingsCreated.Add(3)
	m.OpenPasses.Set(4)

	out := keeper.NewPrometheusExporter(m).Render()
	require.Contains(t, out, "# HELP tide_launch_listings_created_total Total number of listings created")
	require.Contains(t, out, "# TYPE tide_launch_listings_created_total counter")
	require.Contains(t, out, `tide_launch_listings_created_total{chain_id="tidechain-1"} 3`)
	require.Contains(t, out, "# TYPE tide_launch_passes_open gauge")
	require.Contains(t, out, `tide_launch_passes_open{chain_id="tidechain-1"} 4`)
	require.Contains(t, out, `tide_launch_yield_failures_total{chain_id="tidechain-1"} 0`)
}

func TestPrometheus_HistogramSummaryLines(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.HarvestDuration.Record(10 * time.Millisecond)
	m.HarvestDuration.Record(10 * time.Millisecond)

	out := keeper.NewPrometheusExporter(m).Render()
	require.Contains(t, out, "# TYPE tide_launch_harvest_seconds summary")
	require.Contains(t, out, `tide_launch_harvest_seconds{chain_id="tidechain-1",quantile="0.5"} 0.010000`)
	require.Contains(t, out, `tide_launch_harvest_seconds{chain_id="tidechain-1",quantile="0.99"} 0.010000`)
	require.Contains(t, out, `tide_launch_harvest_seconds_sum{chain_id="tidechain-1"} 0.020000`)
	require.Contains(t, out, `tide_launch_harvest_seconds_count{chain_id="tidechain-1"} 2`)
}

func TestPrometheus_DefaultLabels(t *testing.T) {
	pe := keeper.NewPrometheusExporter(keeper.NewModuleMetrics())
	pe.SetDefaultLabel("network", "tide-testnet")

	out := pe.Render()
	require.Contains(t, out, `{chain_id="tidechain-1",network="tide-testnet"}`)

	pe.SetDefaultLabel("chain_id", "tidechain-2")
	out = pe.Render()
	require.Contains(t, out, `{chain_id="tidechain-2",network="tide-testnet"}`)
	require.NotContains(t, out, "tidechain-1")
}

func TestPrometheus_CustomMetrics(t *testing.T) {
	pe := keeper.NewPrometheusExporter(keeper.NewModuleMetrics())

	rejected := pe.RegisterCounter("deposits_rejected_total")
	rejected.Add(9)
	pe.RegisterGauge("refund_queue_depth").Set(3)
	pe.RegisterHistogram("sweep_wait_seconds", 16).Record(5 * time.Millisecond)

	out := pe.Render()
	require.Contains(t, out, `tide_launch_deposits_rejected_total{chain_id="tidechain-1"} 9`)
	require.Contains(t, out, `tide_launch_refund_queue_depth{chain_id="tidechain-1"} 3`)
	require.Contains(t, out, `tide_launch_sweep_wait_seconds_count{chain_id="tidechain-1"} 1`)
	require.NotContains(t, out, "# HELP tide_launch_deposits_rejected_total")

	// Registering the same name again returns the existing metric.
	pe.RegisterCounter("deposits_rejected_total").Inc()
	require.Equal(t, int64(10), rejected.Get())
}

func TestPrometheus_ServeHTTP(t *testing.T) {
	m := keeper.NewModuleMetrics()
	m.DepositsAccepted.Add(7)
	pe := keeper.NewPrometheusExporter(m)

	rec := httptest.NewRecorder()
	pe.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	require.Equal(t, "text/plain; version=0.0.4; charset=utf-8", rec.Header().Get("Content-Type"))
	require.Equal(t, pe.Render(), rec.Body.String())

	handler := keeper.PrometheusHandler(m)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), `tide_launch_deposits_accepted_total{chain_id="tidechain-1"} 7`)
}

func TestPrometheus_ScrapesKeeperMetrics(t *testing.T) {
	env := newTestEnv(t)
	listing, _, _ := env.activeListing(t, defaultConfig())
	env.deposit(t, listing.ID, backerAddr, 2_000)

	out := keeper.NewPrometheusExporter(env.keeper.Metrics()).Render()
	require.Contains(t, out, `tide_launch_listings_created_total{chain_id="tidechain-1"} 1`)
	require.Contains(t, out, `tide_launch_deposits_accepted_total{chain_id="tidechain-1"} 1`)
	require.Contains(t, out, `tide_launch_passes_minted_total{chain_id="tidechain-1"} 1`)
}

// =============================================================================
// Section 11: Benchmark Baselines
// =============================================================================

func BenchmarkMetrics_CounterInc(b *testing.B) {
	var c keeper.AtomicCounter
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Inc()
	}
}

func BenchmarkMetrics_HistogramRecord(b *testing.B) {
	h := keeper.NewTimingHistogram(1000)
	d := 5 * time.Millisecond
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		h.Record(d)
	}
}

func BenchmarkMetrics_Snapshot(b *testing.B) {
	m := keeper.NewModuleMetrics()
	m.ReleaseSweepDuration.Record(time.Millisecond)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m.Snapshot(1, testBlockTime)
	}
}

func BenchmarkPrometheus_Render(b *testing.B) {
	pe := keeper.NewPrometheusExporter(keeper.NewModuleMetrics())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = pe.Render()
	}
}

// =============================================================================
// Test helpers
// =============================================================================

func findEventAttr(t *testing.T, events sdk.Events, eventType, key string) string {
	t.Helper()
	for _, ev := range events {
		if ev.Type != eventType {
			continue
		}
		for _, attr := range ev.Attributes {
			if attr.Key == key {
				return attr.Value
			}
		}
	}
	t.Fatalf("event %s attribute %s not found", eventType, key)
	return ""
}

func findHealthCheck(t *testing.T, health keeper.HealthStatus, name string) keeper.HealthCheckItem {
	t.Helper()
	for _, check := range health.Checks {
		if check.Name == name {
			return check
		}
	}
	t.Fatalf("health check %s not found", name)
	return keeper.HealthCheckItem{}
}

package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cosmossdk.io/log"

	launchkeeper "github.com/tide-protocol/tidechain/x/launch/keeper"
)

// ShutdownManager coordinates graceful shutdown of all Tide components.
// This ensures that in-flight operations complete, state is persisted,
// and resources are released in the correct order.
type ShutdownManager struct {
	logger log.Logger

	// Shutdown coordination
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	shutdownWg   sync.WaitGroup

	// Component registration
	components   []ShutdownComponent
	componentsMu sync.RWMutex

	// Configuration
	config ShutdownConfig

	// State
	isShuttingDown bool
	shutdownMu     sync.RWMutex
}

// ShutdownComponent represents a component that needs graceful shutdown
type ShutdownComponent interface {
	// Name returns the component name for logging
	Name() string

	// Shutdown gracefully shuts down the component
	// The context will be cancelled after the timeout
	Shutdown(ctx context.Context) error
}

// ShutdownConfig contains configuration for graceful shutdown
type ShutdownConfig struct {
	// GracePeriod is the total time allowed for graceful shutdown
	GracePeriod time.Duration

	// ComponentTimeout is the max time for each component to shutdown
	ComponentTimeout time.Duration

	// DrainTimeout is the time to wait for in-flight requests to complete
	DrainTimeout time.Duration

	// ForceShutdownDelay is the delay before forcefully terminating
	ForceShutdownDelay time.Duration
}

// DefaultShutdownConfig returns production-ready shutdown configuration
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{
		GracePeriod:        30 * time.Second,
		ComponentTimeout:   10 * time.Second,
		DrainTimeout:       5 * time.Second,
		ForceShutdownDelay: 5 * time.Second,
	}
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger log.Logger, config ShutdownConfig) *ShutdownManager {
	return &ShutdownManager{
		logger:     logger,
		shutdownCh: make(chan struct{}),
		config:     config,
		components: make([]ShutdownComponent, 0),
	}
}

// RegisterComponent registers a component for graceful shutdown.
// Components are shut down in reverse order of registration (LIFO).
func (sm *ShutdownManager) RegisterComponent(component ShutdownComponent) {
	sm.componentsMu.Lock()
	defer sm.componentsMu.Unlock()

	sm.components = append(sm.components, component)
	sm.logger.Info("Registered shutdown component",
		"name", component.Name(),
		"total_components", len(sm.components),
	)
}

// IsShuttingDown returns true if shutdown has been initiated
func (sm *ShutdownManager) IsShuttingDown() bool {
	sm.shutdownMu.RLock()
	defer sm.shutdownMu.RUnlock()
	return sm.isShuttingDown
}

// ShutdownCh returns a channel that's closed when shutdown is initiated
func (sm *ShutdownManager) ShutdownCh() <-chan struct{} {
	return sm.shutdownCh
}

// Shutdown initiates graceful shutdown of all components.
// This method is idempotent - calling it multiple times is safe.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	var firstCall bool

	sm.shutdownOnce.Do(func() {
		firstCall = true
		sm.shutdownMu.Lock()
		sm.isShuttingDown = true
		sm.shutdownMu.Unlock()
		close(sm.shutdownCh)
	})

	if !firstCall {
		sm.logger.Info("Shutdown already in progress, waiting...")
		sm.shutdownWg.Wait()
		return nil
	}

	sm.logger.Info("Initiating graceful shutdown",
		"grace_period", sm.config.GracePeriod,
		"component_count", len(sm.components),
	)

	// Create timeout context for entire shutdown process
	shutdownCtx, cancel := context.WithTimeout(ctx, sm.config.GracePeriod)
	defer cancel()

	// Phase 1: Drain in-flight requests
	sm.logger.Info("Phase 1: Draining in-flight requests",
		"timeout", sm.config.DrainTimeout,
	)
	sm.drainRequests(shutdownCtx)

	// Phase 2: Shutdown components in reverse order (LIFO)
	sm.logger.Info("Phase 2: Shutting down components")
	sm.componentsMu.RLock()
	components := make([]ShutdownComponent, len(sm.components))
	copy(components, sm.components)
	sm.componentsMu.RUnlock()

	var shutdownErrors []error

	// Shutdown in reverse order
	for i := len(components) - 1; i >= 0; i-- {
		component := components[i]
		sm.logger.Info("Shutting down component",
			"name", component.Name(),
			"remaining", i,
		)

		componentCtx, componentCancel := context.WithTimeout(shutdownCtx, sm.config.ComponentTimeout)

		sm.shutdownWg.Add(1)
		err := func() error {
			defer sm.shutdownWg.Done()
			defer componentCancel()

			if err := component.Shutdown(componentCtx); err != nil {
				sm.logger.Error("Component shutdown failed",
					"name", component.Name(),
					"error", err,
				)
				return err
			}

			sm.logger.Info("Component shutdown complete",
				"name", component.Name(),
			)
			return nil
		}()

		if err != nil {
			shutdownErrors = append(shutdownErrors, err)
		}
	}

	// Phase 3: Final cleanup
	sm.logger.Info("Phase 3: Final cleanup")
	sm.shutdownWg.Wait()

	if len(shutdownErrors) > 0 {
		sm.logger.Error("Shutdown completed with errors",
			"error_count", len(shutdownErrors),
		)
	} else {
		sm.logger.Info("Graceful shutdown completed successfully")
	}

	return nil
}

// drainRequests waits for in-flight requests to complete
func (sm *ShutdownManager) drainRequests(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, sm.config.DrainTimeout)
	defer cancel()

	// In a real implementation, this would wait for:
	// - Active gRPC streams to complete
	// - Pending transactions in mempool to be processed
	// - In-flight metric scrapes to finish

	select {
	case <-drainCtx.Done():
		sm.logger.Warn("Drain timeout reached, proceeding with shutdown")
	case <-time.After(sm.config.DrainTimeout):
		sm.logger.Info("Drain period completed")
	}
}

// =============================================================================
// Component Adapters
// =============================================================================

// AuditLogShutdownAdapter verifies the audit log hash chain one final time
// before the process exits, so a corrupted chain is caught in the logs.
type AuditLogShutdownAdapter struct {
	logger log.Logger
	audit  *launchkeeper.AuditLogger
}

func (a *AuditLogShutdownAdapter) Name() string { return "AuditLog" }

func (a *AuditLogShutdownAdapter) Shutdown(ctx context.Context) error {
	if a.audit == nil {
		return nil
	}
	if err := a.audit.VerifyChain(); err != nil {
		return fmt.Errorf("audit log hash chain verification failed at shutdown: %w", err)
	}
	a.logger.Info("Audit log chain verified at shutdown",
		"sequence", a.audit.Sequence(),
		"total_emitted", a.audit.TotalEmitted(),
	)
	return nil
}

// YieldBridgeShutdownAdapter reports any staking lots still open when the
// node stops. Lots survive restarts only through module state, so open lots
// at shutdown are worth a warning.
type YieldBridgeShutdownAdapter struct {
	logger log.Logger
	source *StakingYieldSource
}

func (y *YieldBridgeShutdownAdapter) Name() string { return "StakingYieldBridge" }

func (y *YieldBridgeShutdownAdapter) Shutdown(ctx context.Context) error {
	if y.source == nil {
		return nil
	}
	stats := y.source.Stats()
	if stats.OpenLots > 0 {
		y.logger.Warn("Yield bridge has open staking lots at shutdown",
			"open_lots", stats.OpenLots,
		)
	}
	return nil
}

// MetricsShutdownAdapter logs a final metrics snapshot for post-mortem use.
type MetricsShutdownAdapter struct {
	logger  log.Logger
	metrics *launchkeeper.ModuleMetrics
}

func (m *MetricsShutdownAdapter) Name() string { return "Metrics" }

func (m *MetricsShutdownAdapter) Shutdown(ctx context.Context) error {
	if m.metrics == nil {
		return nil
	}
	m.logger.Info("Final metrics snapshot",
		"blocks_processed", m.metrics.BlocksProcessed.Get(),
		"deposits_accepted", m.metrics.DepositsAccepted.Get(),
		"rewards_claimed", m.metrics.RewardsClaimed.Get(),
	)
	return nil
}

// =============================================================================
// Integration with TideApp
// =============================================================================

// InitShutdownManager initializes the shutdown manager for the application.
// This should be called during app initialization.
func (app *TideApp) InitShutdownManager() {
	config := DefaultShutdownConfig()
	app.shutdownManager = NewShutdownManager(app.Logger(), config)

	// Recommended registration order (LIFO shutdown):
	// 1. Audit log (verified last)
	// 2. Metrics snapshot
	// 3. Yield bridge (reported first during shutdown)
	//
	// Note: Actual registration happens in app.go after components are created.
	app.Logger().Info("Shutdown manager initialized",
		"grace_period", config.GracePeriod,
	)
}

// RegisterShutdownComponents registers all app components for graceful shutdown.
// This should be called after all components are initialized.
func (app *TideApp) RegisterShutdownComponents() {
	if app.shutdownManager == nil {
		app.Logger().Warn("Shutdown manager not initialized, skipping component registration")
		return
	}

	if audit := app.LaunchKeeper.AuditLog(); audit != nil {
		app.shutdownManager.RegisterComponent(&AuditLogShutdownAdapter{
			logger: app.Logger(),
			audit:  audit,
		})
	}

	if metrics := app.LaunchKeeper.Metrics(); metrics != nil {
		app.shutdownManager.RegisterComponent(&MetricsShutdownAdapter{
			logger:  app.Logger(),
			metrics: metrics,
		})
	}

	if app.yieldSource != nil {
		app.shutdownManager.RegisterComponent(&YieldBridgeShutdownAdapter{
			logger: app.Logger(),
			source: app.yieldSource,
		})
	}

	app.Logger().Info("Shutdown components registered")
}

// GracefulShutdown performs graceful shutdown of the application.
// This should be called when SIGTERM or SIGINT is received.
func (app *TideApp) GracefulShutdown(ctx context.Context) error {
	if app.shutdownManager == nil {
		app.Logger().Warn("Shutdown manager not initialized, performing immediate shutdown")
		return nil
	}

	return app.shutdownManager.Shutdown(ctx)
}

// Package app provides graceful initialization with fallback mechanisms,
// replacing panics with graceful degradation where possible.
package app

import (
	"fmt"
	"os"
	"path/filepath"

	"cosmossdk.io/log"
	servertypes "github.com/cosmos/cosmos-sdk/server/types"
	"github.com/spf13/cast"
)

// =============================================================================
// Initialization Error Handling
// =============================================================================

// InitializationError represents a non-fatal initialization error that allows
// the application to continue with degraded functionality.
type InitializationError struct {
	Component   string
	Err         error
	IsCritical  bool
	Fallback    string
	Remediation string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("[%s] %s (fallback: %s)", e.Component, e.Err.Error(), e.Fallback)
}

// InitializationResult captures the result of component initialization
type InitializationResult struct {
	Success    bool
	Errors     []InitializationError
	Warnings   []string
	Components map[string]ComponentStatus
}

// ComponentStatus represents the status of an initialized component
type ComponentStatus struct {
	Name    string
	Healthy bool
	Mode    string // "full", "degraded", "disabled"
	Message string
}

// NewInitializationResult creates a new initialization result
func NewInitializationResult() *InitializationResult {
	return &InitializationResult{
		Success:    true,
		Errors:     make([]InitializationError, 0),
		Warnings:   make([]string, 0),
		Components: make(map[string]ComponentStatus),
	}
}

// AddError adds an initialization error
func (r *InitializationResult) AddError(err InitializationError) {
	r.Errors = append(r.Errors, err)
	if err.IsCritical {
		r.Success = false
	}
}

// AddWarning adds a warning
func (r *InitializationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// SetComponentStatus sets the status of a component
func (r *InitializationResult) SetComponentStatus(name string, status ComponentStatus) {
	r.Components[name] = status
}

// =============================================================================
// Safe Initialization Functions
// =============================================================================

// SafeGetDefaultNodeHome returns the default node home directory with fallback.
// Instead of panicking on error, it returns a fallback path.
func SafeGetDefaultNodeHome() (string, error) {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback 1: Try environment variable
		homeEnv := os.Getenv("HOME")
		if homeEnv != "" {
			return filepath.Join(homeEnv, ".tide"), nil
		}

		// Fallback 2: Use current directory
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			// Fallback 3: Use /tmp
			return "/tmp/.tide", fmt.Errorf("could not determine home directory: %w", err)
		}
		return filepath.Join(cwd, ".tide"), fmt.Errorf("using current directory as home: %w", err)
	}
	return filepath.Join(userHomeDir, ".tide"), nil
}

// SafeInitYieldBridge checks the staking yield bridge after construction.
// A missing bridge is non-critical: listings simply cannot route idle capital
// into staking until a node restart fixes the wiring.
func SafeInitYieldBridge(app *TideApp, logger log.Logger) *InitializationError {
	if app.yieldSource != nil {
		return nil
	}

	return &InitializationError{
		Component:   "yield_bridge",
		Err:         fmt.Errorf("staking yield source is nil"),
		IsCritical:  false,
		Fallback:    "no_yield",
		Remediation: "Idle capital staking is disabled; restart the node to re-wire the bridge",
	}
}

// SafeInitMetricsCache checks the metrics scrape cache and reports its
// configuration. A missing cache only costs render time per scrape.
func SafeInitMetricsCache(app *TideApp, logger log.Logger, appOpts servertypes.AppOptions) *InitializationError {
	if app.metricsCache != nil {
		size := DefaultMetricsCacheSize
		if appOpts != nil {
			if v := appOpts.Get("launch.metrics-cache-size"); v != nil {
				if n := cast.ToInt(v); n > 0 {
					size = n
				}
			}
		}
		logger.Debug("Metrics scrape cache ready", "size", size)
		return nil
	}

	return &InitializationError{
		Component:   "metrics_cache",
		Err:         fmt.Errorf("metrics scrape cache is nil"),
		IsCritical:  false,
		Fallback:    "render_per_scrape",
		Remediation: "Each metrics scrape re-renders the exposition; check launch.metrics-cache-size",
	}
}

// SafeLoadLatestVersion loads the latest version with recovery options.
func SafeLoadLatestVersion(app *TideApp, logger log.Logger) error {
	err := app.LoadLatestVersion()
	if err != nil {
		logger.Error("Failed to load latest version",
			"error", err,
		)

		// Check if this is a fresh start or corruption
		if isEmptyStore(app) {
			logger.Info("Empty store detected, starting fresh")
			return nil
		}

		// Attempt recovery from backup
		if backupErr := attemptRecoveryFromBackup(app, logger); backupErr != nil {
			logger.Error("Recovery from backup failed",
				"error", backupErr,
			)
			return fmt.Errorf("failed to load state and recovery failed: %w", err)
		}

		logger.Warn("Recovered from backup after load failure")
		return nil
	}

	return nil
}

// isEmptyStore checks if the store is empty (fresh start)
func isEmptyStore(app *TideApp) bool {
	// Check if we're at height 0
	return app.LastBlockHeight() == 0
}

// attemptRecoveryFromBackup attempts to recover state from a backup
func attemptRecoveryFromBackup(app *TideApp, logger log.Logger) error {
	// This is a placeholder for backup recovery logic
	// In production, this would:
	// 1. Check for available backups
	// 2. Validate backup integrity
	// 3. Restore from most recent valid backup
	logger.Debug("Checking for available backups...")
	return fmt.Errorf("no backups available")
}

// =============================================================================
// Composite Safe Initialization
// =============================================================================

// SafeInitializeApp performs safe initialization of all app components.
// Returns an InitializationResult with details on each component's status.
func SafeInitializeApp(
	app *TideApp,
	logger log.Logger,
	appOpts servertypes.AppOptions,
	loadLatest bool,
) *InitializationResult {
	result := NewInitializationResult()

	// 1. Check the staking yield bridge (non-critical)
	if initErr := SafeInitYieldBridge(app, logger); initErr != nil {
		result.AddError(*initErr)
		result.SetComponentStatus("yield_bridge", ComponentStatus{
			Name:    "Staking Yield Bridge",
			Healthy: false,
			Mode:    initErr.Fallback,
			Message: initErr.Err.Error(),
		})
	} else {
		result.SetComponentStatus("yield_bridge", ComponentStatus{
			Name:    "Staking Yield Bridge",
			Healthy: true,
			Mode:    "full",
		})
	}

	// 2. Check the metrics scrape cache (non-critical)
	if initErr := SafeInitMetricsCache(app, logger, appOpts); initErr != nil {
		result.AddWarning(initErr.Error())
		result.SetComponentStatus("metrics_cache", ComponentStatus{
			Name:    "Metrics Scrape Cache",
			Healthy: false,
			Mode:    initErr.Fallback,
			Message: initErr.Err.Error(),
		})
	} else {
		result.SetComponentStatus("metrics_cache", ComponentStatus{
			Name:    "Metrics Scrape Cache",
			Healthy: true,
			Mode:    "full",
		})
	}

	// 3. Load latest version (critical)
	if loadLatest {
		if err := SafeLoadLatestVersion(app, logger); err != nil {
			result.AddError(InitializationError{
				Component:   "state_loading",
				Err:         err,
				IsCritical:  true,
				Remediation: "Check database integrity or restore from backup",
			})
			result.SetComponentStatus("state", ComponentStatus{
				Name:    "State Loading",
				Healthy: false,
				Mode:    "failed",
				Message: err.Error(),
			})
		} else {
			result.SetComponentStatus("state", ComponentStatus{
				Name:    "State Loading",
				Healthy: true,
				Mode:    "full",
			})
		}
	}

	// Log summary
	logInitializationSummary(logger, result)

	return result
}

// logInitializationSummary logs a summary of the initialization result
func logInitializationSummary(logger log.Logger, result *InitializationResult) {
	logger.Info("=== Initialization Summary ===")

	for name, status := range result.Components {
		if status.Healthy {
			logger.Info("Component initialized",
				"name", name,
				"mode", status.Mode,
			)
		} else {
			logger.Warn("Component degraded or disabled",
				"name", name,
				"mode", status.Mode,
				"message", status.Message,
			)
		}
	}

	if len(result.Errors) > 0 {
		for _, err := range result.Errors {
			if err.IsCritical {
				logger.Error("CRITICAL initialization error",
					"component", err.Component,
					"error", err.Err,
					"remediation", err.Remediation,
				)
			}
		}
	}

	if result.Success {
		logger.Info("Initialization completed successfully")
	} else {
		logger.Error("Initialization completed with CRITICAL errors")
	}
}

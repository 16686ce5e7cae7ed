package app

import (
	"encoding/json"
	"net/http"
	"time"

	launchkeeper "github.com/tide-protocol/tidechain/x/launch/keeper"
)

// HealthHandler returns an HTTP handler for component-level health.
func (app *TideApp) HealthHandler() http.Handler {
	return &TideHealthHandler{app: app}
}

// TideHealthHandler serves component-level health status.
type TideHealthHandler struct {
	app *TideApp
}

type healthReport struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	ChainID    string            `json:"chain_id,omitempty"`
	Height     int64             `json:"height,omitempty"`
	Components []componentStatus `json:"components"`
}

type componentStatus struct {
	Name    string      `json:"name"`
	Healthy bool        `json:"healthy"`
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

type breakerStatus struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	TotalTrips int64  `json:"total_trips"`
}

func (h *TideHealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if h.app == nil {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(healthReport{
			Status:    "unhealthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Components: []componentStatus{
				{
					Name:    "app",
					Healthy: false,
					Status:  "unhealthy",
					Message: "app not initialized",
				},
			},
		})
		return
	}

	ctx := h.app.NewContext(true)

	components := make([]componentStatus, 0, 5)

	// Launch module health
	if metrics := h.app.LaunchKeeper.Metrics(); metrics != nil {
		health := metrics.CheckHealth(ctx)
		components = append(components, componentStatus{
			Name:    "launch_module",
			Healthy: health.Healthy,
			Status:  boolStatus(health.Healthy),
			Details: health,
		})
	} else {
		components = append(components, componentStatus{
			Name:    "launch_module",
			Healthy: false,
			Status:  "unhealthy",
			Message: "module metrics unavailable",
		})
	}

	// Protocol pause state. A paused protocol is operational but degraded:
	// deposits and activations are refused until the council resumes it.
	if h.app.TideKeeper.IsPaused(ctx) {
		components = append(components, componentStatus{
			Name:    "protocol_pause",
			Healthy: true,
			Status:  "paused",
			Message: "protocol is paused by council action",
		})
	} else {
		components = append(components, componentStatus{
			Name:    "protocol_pause",
			Healthy: true,
			Status:  "healthy",
		})
	}

	// Yield bridge health
	if h.app.yieldSource != nil {
		components = append(components, componentStatus{
			Name:    "yield_bridge",
			Healthy: true,
			Status:  "healthy",
			Message: "staking yield source initialized",
			Details: h.app.yieldSource.Stats(),
		})
	} else {
		components = append(components, componentStatus{
			Name:    "yield_bridge",
			Healthy: false,
			Status:  "unhealthy",
			Message: "yield source not initialized",
		})
	}

	// Audit log chain integrity
	if audit := h.app.LaunchKeeper.AuditLog(); audit != nil {
		chainErr := audit.VerifyChain()
		status := componentStatus{
			Name:    "audit_log",
			Healthy: chainErr == nil,
			Status:  boolStatus(chainErr == nil),
			Details: map[string]interface{}{
				"sequence":      audit.Sequence(),
				"total_emitted": audit.TotalEmitted(),
			},
		}
		if chainErr != nil {
			status.Message = chainErr.Error()
		}
		components = append(components, status)
	}

	// Circuit breaker health
	breakers := collectBreakers(h.app)
	breakerDetails, breakerHealthy := summarizeBreakers(breakers)
	bs := boolStatus(breakerHealthy)
	if len(breakers) == 0 {
		bs = "disabled"
		breakerHealthy = true
	} else if !breakerHealthy {
		bs = "degraded"
	}
	components = append(components, componentStatus{
		Name:    "circuit_breakers",
		Healthy: breakerHealthy,
		Status:  bs,
		Details: breakerDetails,
	})

	report := healthReport{
		Status:     overallStatus(components),
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		ChainID:    chainID(h.app),
		Height:     h.app.LastBlockHeight(),
		Components: components,
	}

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}

func boolStatus(healthy bool) string {
	if healthy {
		return "healthy"
	}
	return "unhealthy"
}

func overallStatus(components []componentStatus) string {
	for _, c := range components {
		if !c.Healthy {
			return "unhealthy"
		}
	}
	return "healthy"
}

func chainID(app *TideApp) string {
	if app == nil || app.BaseApp == nil {
		return ""
	}
	return app.BaseApp.ChainID()
}

func collectBreakers(app *TideApp) []*launchkeeper.CircuitBreaker {
	if app == nil {
		return nil
	}
	var breakers []*launchkeeper.CircuitBreaker
	if b := app.LaunchKeeper.YieldBreaker(); b != nil {
		breakers = append(breakers, b)
	}
	return breakers
}

func summarizeBreakers(breakers []*launchkeeper.CircuitBreaker) ([]breakerStatus, bool) {
	if len(breakers) == 0 {
		return nil, true
	}
	statuses := make([]breakerStatus, 0, len(breakers))
	healthy := true
	for _, b := range breakers {
		state := b.State()
		if state != launchkeeper.CircuitClosed {
			healthy = false
		}
		statuses = append(statuses, breakerStatus{
			Name:       b.Name(),
			State:      state.String(),
			TotalTrips: b.TotalTrips(),
		})
	}
	return statuses, healthy
}

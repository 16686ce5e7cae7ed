package launchpad

import (
	"fmt"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	launchtypes "github.com/tide-protocol/tidechain/x/launch/types"
)

// passPosition is one holder's slice of the simulated vault: their share
// count and the index cursor their next claim settles against.
type passPosition struct {
	shares     sdkmath.Int
	claimIndex sdkmath.Int
}

// vaultState mirrors the on-chain capital and reward vaults for one listing,
// driven entirely by the launch accounting math.
type vaultState struct {
	totalShares    sdkmath.Int
	totalPrincipal sdkmath.Int
	globalIndex    sdkmath.Int
	holders        map[string]*passPosition
}

func newVaultState() *vaultState {
	return &vaultState{
		totalShares:    sdkmath.ZeroInt(),
		totalPrincipal: sdkmath.ZeroInt(),
		globalIndex:    sdkmath.ZeroInt(),
		holders:        make(map[string]*passPosition),
	}
}

// StepResult records what one step produced against what it was expected to.
type StepResult struct {
	Index    int         `json:"index"`
	Kind     StepKind    `json:"kind"`
	Backer   string      `json:"backer,omitempty"`
	Got      sdkmath.Int `json:"got"`
	Expected sdkmath.Int `json:"expected"`
	Passed   bool        `json:"passed"`
	Detail   string      `json:"detail,omitempty"`
}

// ScenarioResult is the outcome of replaying one scenario.
type ScenarioResult struct {
	Scenario *DemoScenario `json:"scenario"`
	Steps    []StepResult  `json:"steps"`
	Passed   bool          `json:"passed"`
	Failures []string      `json:"failures,omitempty"`

	// Final vault state, for display
	TotalShares    sdkmath.Int `json:"total_shares"`
	TotalPrincipal sdkmath.Int `json:"total_principal"`
	GlobalIndex    sdkmath.Int `json:"global_index"`

	// Schedule computed at the end, when the scenario pins one down
	Schedule *launchtypes.ScheduleBreakdown `json:"schedule,omitempty"`
}

// Runner replays demo scenarios against a fresh simulated vault each time.
type Runner struct {
	logger log.Logger
}

// NewRunner creates a scenario runner.
func NewRunner(logger log.Logger) *Runner {
	return &Runner{logger: logger}
}

// RunScenario replays one scenario from an empty vault and checks every
// scripted expectation. A non-nil error means the scenario itself is broken
// (bad script, math error); expectation mismatches are reported through the
// result instead.
func (r *Runner) RunScenario(scenario *DemoScenario) (*ScenarioResult, error) {
	if scenario == nil {
		return nil, fmt.Errorf("scenario is nil")
	}
	if err := scenario.Config.Validate(); err != nil {
		return nil, fmt.Errorf("scenario %s has invalid config: %w", scenario.ID, err)
	}

	vault := newVaultState()
	result := &ScenarioResult{
		Scenario: scenario,
		Passed:   true,
	}

	for i, step := range scenario.Steps {
		sr, err := r.runStep(vault, i, step)
		if err != nil {
			return nil, fmt.Errorf("scenario %s step %d (%s): %w", scenario.ID, i, step.Kind, err)
		}
		result.Steps = append(result.Steps, sr)
		if !sr.Passed {
			result.Passed = false
			result.Failures = append(result.Failures,
				fmt.Sprintf("step %d (%s): got %s, expected %s", i, sr.Kind, sr.Got, sr.Expected))
		}
	}

	if !scenario.ExpectedTotalShares.IsNil() && !vault.totalShares.Equal(scenario.ExpectedTotalShares) {
		result.Passed = false
		result.Failures = append(result.Failures,
			fmt.Sprintf("total shares: got %s, expected %s", vault.totalShares, scenario.ExpectedTotalShares))
	}

	if scenario.Schedule != nil {
		breakdown, err := launchtypes.ComputeSchedule(vault.totalPrincipal, scenario.Config, 0)
		if err != nil {
			return nil, fmt.Errorf("scenario %s schedule: %w", scenario.ID, err)
		}
		result.Schedule = &breakdown
		r.checkSchedule(result, scenario.Schedule, breakdown)
	}

	result.TotalShares = vault.totalShares
	result.TotalPrincipal = vault.totalPrincipal
	result.GlobalIndex = vault.globalIndex

	r.logger.Debug("scenario replayed",
		"id", scenario.ID,
		"passed", result.Passed,
		"steps", len(result.Steps),
	)

	return result, nil
}

func (r *Runner) runStep(vault *vaultState, idx int, step ScenarioStep) (StepResult, error) {
	sr := StepResult{
		Index:  idx,
		Kind:   step.Kind,
		Backer: step.Backer,
		Passed: true,
	}

	switch step.Kind {
	case StepDeposit:
		shares, err := launchtypes.SharesForDeposit(step.Amount, vault.totalShares, vault.totalPrincipal)
		if err != nil {
			return sr, err
		}
		pos, ok := vault.holders[step.Backer]
		if !ok {
			// a fresh pass starts with its cursor at the current index
			pos = &passPosition{shares: sdkmath.ZeroInt(), claimIndex: vault.globalIndex}
			vault.holders[step.Backer] = pos
		}
		pos.shares = pos.shares.Add(shares)
		vault.totalShares = vault.totalShares.Add(shares)
		vault.totalPrincipal = vault.totalPrincipal.Add(step.Amount)
		sr.Got = shares
		sr.Expected = step.ExpectedShares
		sr.Passed = step.ExpectedShares.IsNil() || shares.Equal(step.ExpectedShares)
		sr.Detail = fmt.Sprintf("deposited %s", step.Amount)

	case StepReward:
		next, err := launchtypes.NextIndex(vault.globalIndex, step.Amount, vault.totalShares)
		if err != nil {
			return sr, err
		}
		vault.globalIndex = next
		sr.Got = next
		sr.Expected = step.ExpectedIndex
		sr.Passed = step.ExpectedIndex.IsNil() || next.Equal(step.ExpectedIndex)
		sr.Detail = fmt.Sprintf("distributed %s", step.Amount)

	case StepClaim:
		pos, ok := vault.holders[step.Backer]
		if !ok {
			return sr, fmt.Errorf("claim by unknown backer %q", step.Backer)
		}
		claim, err := launchtypes.Claimable(pos.shares, vault.globalIndex, pos.claimIndex)
		if err != nil {
			return sr, err
		}
		pos.claimIndex = vault.globalIndex
		sr.Got = claim
		sr.Expected = step.ExpectedClaim
		sr.Passed = step.ExpectedClaim.IsNil() || claim.Equal(step.ExpectedClaim)

	case StepTransfer:
		pos, ok := vault.holders[step.Backer]
		if !ok {
			return sr, fmt.Errorf("transfer by unknown backer %q", step.Backer)
		}
		if step.Amount.GT(pos.shares) {
			return sr, fmt.Errorf("transfer of %s exceeds %s held by %q", step.Amount, pos.shares, step.Backer)
		}
		recipient, ok := vault.holders[step.Recipient]
		if !ok {
			// the split pass inherits the sender's cursor so already-earned
			// rewards stay with whoever settles them, never double-pay
			recipient = &passPosition{shares: sdkmath.ZeroInt(), claimIndex: pos.claimIndex}
			vault.holders[step.Recipient] = recipient
		}
		pos.shares = pos.shares.Sub(step.Amount)
		recipient.shares = recipient.shares.Add(step.Amount)
		sr.Got = step.Amount
		sr.Expected = step.Amount
		sr.Detail = fmt.Sprintf("moved %s shares to %s", step.Amount, step.Recipient)

	default:
		return sr, fmt.Errorf("unknown step kind %q", step.Kind)
	}

	return sr, nil
}

func (r *Runner) checkSchedule(result *ScenarioResult, want *ScheduleExpectation, got launchtypes.ScheduleBreakdown) {
	check := func(name string, gotV, wantV sdkmath.Int) {
		if wantV.IsNil() || gotV.Equal(wantV) {
			return
		}
		result.Passed = false
		result.Failures = append(result.Failures,
			fmt.Sprintf("schedule %s: got %s, expected %s", name, gotV, wantV))
	}

	check("fee", got.Fee, want.ExpectedFee)
	check("net", got.Net, want.ExpectedNet)
	check("initial release", got.InitialRelease, want.ExpectedInitial)
	check("per tranche", got.PerTranche, want.ExpectedPerTranche)
	if n := len(got.Tranches); n > 0 {
		check("final tranche", got.Tranches[n-1].Amount, want.ExpectedFinalTranche)
	}

	// tranches must always sum back to net, regardless of the expectations
	sum := sdkmath.ZeroInt()
	for _, t := range got.Tranches {
		sum = sum.Add(t.Amount)
	}
	if !sum.Equal(got.Net) {
		result.Passed = false
		result.Failures = append(result.Failures,
			fmt.Sprintf("schedule conservation: tranches sum to %s, net is %s", sum, got.Net))
	}
}

// RunAll replays every scenario and returns the per-scenario results.
func (r *Runner) RunAll() ([]*ScenarioResult, error) {
	scenarios := GetDemoScenarios()
	results := make([]*ScenarioResult, 0, len(scenarios))
	for _, s := range scenarios {
		res, err := r.RunScenario(s)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

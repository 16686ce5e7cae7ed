package launchpad_test

import (
	"testing"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	"github.com/tide-protocol/tidechain/x/demo/launchpad"
)

// TestAllScenariosPass replays every scripted scenario and requires every
// expectation to hold.
func TestAllScenariosPass(t *testing.T) {
	runner := launchpad.NewRunner(log.NewNopLogger())

	results, err := runner.RunAll()
	if err != nil {
		t.Fatalf("RunAll failed: %v", err)
	}

	if len(results) == 0 {
		t.Fatal("expected at least one scenario")
	}

	for _, result := range results {
		if !result.Passed {
			t.Errorf("scenario %s failed: %v", result.Scenario.ID, result.Failures)
		}
	}
}

// TestFirstDepositScenario checks the bootstrap scenario in isolation.
func TestFirstDepositScenario(t *testing.T) {
	scenario := launchpad.GetScenarioByID("first-deposit-bootstrap")
	if scenario == nil {
		t.Fatal("bootstrap scenario should exist")
	}

	runner := launchpad.NewRunner(log.NewNopLogger())
	result, err := runner.RunScenario(scenario)
	if err != nil {
		t.Fatalf("RunScenario failed: %v", err)
	}

	if !result.Passed {
		t.Fatalf("bootstrap scenario failed: %v", result.Failures)
	}

	if !result.TotalShares.Equal(sdkmath.NewInt(1_000_000)) {
		t.Errorf("total shares: got %s, want 1000000", result.TotalShares)
	}
	if !result.TotalPrincipal.Equal(sdkmath.NewInt(1_000_000)) {
		t.Errorf("total principal: got %s, want 1000000", result.TotalPrincipal)
	}
}

// TestScheduleScenarioConservation checks the standard schedule scenario and
// that its tranches sum back to the net raise.
func TestScheduleScenarioConservation(t *testing.T) {
	scenario := launchpad.GetScenarioByID("release-schedule-standard")
	if scenario == nil {
		t.Fatal("schedule scenario should exist")
	}

	runner := launchpad.NewRunner(log.NewNopLogger())
	result, err := runner.RunScenario(scenario)
	if err != nil {
		t.Fatalf("RunScenario failed: %v", err)
	}

	if !result.Passed {
		t.Fatalf("schedule scenario failed: %v", result.Failures)
	}

	if result.Schedule == nil {
		t.Fatal("schedule should be computed")
	}

	sum := sdkmath.ZeroInt()
	for _, tr := range result.Schedule.Tranches {
		sum = sum.Add(tr.Amount)
	}
	if !sum.Equal(result.Schedule.Net) {
		t.Errorf("tranches sum to %s, net is %s", sum, result.Schedule.Net)
	}

	if !result.Schedule.Fee.Equal(sdkmath.NewInt(10_000)) {
		t.Errorf("fee: got %s, want 10000", result.Schedule.Fee)
	}
	if !result.Schedule.InitialRelease.Equal(sdkmath.NewInt(198_000)) {
		t.Errorf("initial release: got %s, want 198000", result.Schedule.InitialRelease)
	}
}

// TestScenarioLookups checks the lookup helpers.
func TestScenarioLookups(t *testing.T) {
	if launchpad.GetScenarioByID("no-such-scenario") != nil {
		t.Error("unknown ID should return nil")
	}

	rewards := launchpad.GetScenariosByCategory("rewards")
	if len(rewards) == 0 {
		t.Error("rewards category should not be empty")
	}
	for _, s := range rewards {
		if s.Category != "rewards" {
			t.Errorf("scenario %s has category %s", s.ID, s.Category)
		}
	}

	tagged := launchpad.GetScenariosByTag("claim")
	if len(tagged) == 0 {
		t.Error("claim tag should match scenarios")
	}
}

// TestRunScenarioRejectsNil checks runner input validation.
func TestRunScenarioRejectsNil(t *testing.T) {
	runner := launchpad.NewRunner(log.NewNopLogger())
	if _, err := runner.RunScenario(nil); err == nil {
		t.Error("nil scenario should be rejected")
	}
}

// TestDemoCommandRunsAll drives the cobra command end to end.
func TestDemoCommandRunsAll(t *testing.T) {
	cmd := launchpad.DemoCommand()
	cmd.SetArgs([]string{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("demo command failed: %v", err)
	}
}

// TestDemoCommandRunSingle runs one scenario through the CLI.
func TestDemoCommandRunSingle(t *testing.T) {
	cmd := launchpad.DemoCommand()
	cmd.SetArgs([]string{"run", "proportional-claims"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command failed: %v", err)
	}

	cmd = launchpad.DemoCommand()
	cmd.SetArgs([]string{"run", "no-such-scenario"})
	if err := cmd.Execute(); err == nil {
		t.Error("unknown scenario should error")
	}
}

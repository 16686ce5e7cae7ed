package launchpad

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
)

const (
	flagCategory = "category"
	flagJSON     = "json"
)

// DemoCommand returns the launchpad demo command tree. The demo replays the
// raise accounting scenarios offline, against the same math used on-chain,
// so operators can see the integer behavior without running a node.
func DemoCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launchpad-demo",
		Short: "Replay capital raise accounting scenarios offline",
		Long: `Replay scripted capital raise scenarios (deposits, reward
distributions, claims, pass splits, release schedules) against the launch
module's accounting math and report the exact integer outcomes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAllScenarios(cmd)
		},
	}

	cmd.AddCommand(
		listScenariosCommand(),
		runScenarioCommand(),
	)

	return cmd
}

func listScenariosCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List available demo scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString(flagCategory)

			scenarios := GetDemoScenarios()
			if category != "" {
				scenarios = GetScenariosByCategory(category)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "\nAvailable Launchpad Demo Scenarios:")
			fmt.Fprintln(out, strings.Repeat("-", 90))

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "ID\tName\tCategory\tSteps\n")
			for _, s := range scenarios {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Category, len(s.Steps))
			}
			return w.Flush()
		},
	}

	cmd.Flags().String(flagCategory, "", "only list scenarios in this category")
	return cmd
}

func runScenarioCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario-id>",
		Short: "Run a single demo scenario by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario := GetScenarioByID(args[0])
			if scenario == nil {
				return fmt.Errorf("scenario not found: %s", args[0])
			}

			runner := NewRunner(log.NewNopLogger())
			result, err := runner.RunScenario(scenario)
			if err != nil {
				return err
			}

			asJSON, _ := cmd.Flags().GetBool(flagJSON)
			if asJSON {
				data, err := json.MarshalIndent(result, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				printScenarioResult(cmd.OutOrStdout(), result)
			}

			if !result.Passed {
				return fmt.Errorf("scenario %s failed: %s", scenario.ID, strings.Join(result.Failures, "; "))
			}
			return nil
		},
	}

	cmd.Flags().Bool(flagJSON, false, "emit the full result as JSON")
	return cmd
}

func runAllScenarios(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintln(out, "              TIDE LAUNCHPAD ACCOUNTING DEMO")
	fmt.Fprintln(out, strings.Repeat("=", 70))

	runner := NewRunner(log.NewNopLogger())
	results, err := runner.RunAll()
	if err != nil {
		return err
	}

	failed := 0
	for i, result := range results {
		fmt.Fprintf(out, "\n%s Scenario %d: %s %s\n",
			strings.Repeat("-", 15), i+1, result.Scenario.Name, strings.Repeat("-", 15))
		printScenarioResult(out, result)
		if !result.Passed {
			failed++
		}
	}

	fmt.Fprintln(out, "\n"+strings.Repeat("=", 70))
	fmt.Fprintf(out, "Scenarios: %d | Passed: %d | Failed: %d\n", len(results), len(results)-failed, failed)
	fmt.Fprintln(out, strings.Repeat("=", 70))

	if failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", failed, len(results))
	}
	return nil
}

func printScenarioResult(out io.Writer, result *ScenarioResult) {
	s := result.Scenario
	fmt.Fprintf(out, "Category: %s | ID: %s\n", s.Category, s.ID)
	fmt.Fprintf(out, "%s\n\n", s.Description)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Step\tAction\tBacker\tResult\tExpected\tStatus\n")
	for _, sr := range result.Steps {
		status := "ok"
		if !sr.Passed {
			status = "FAIL"
		}
		backer := sr.Backer
		if backer == "" {
			backer = "-"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			sr.Index+1, sr.Kind, backer, sr.Got, sr.Expected, status)
	}
	w.Flush()

	fmt.Fprintf(out, "\nVault: %s shares | %s principal | index %s\n",
		result.TotalShares, result.TotalPrincipal, result.GlobalIndex)

	if result.Schedule != nil {
		b := result.Schedule
		fmt.Fprintf(out, "Schedule: fee %s | net %s | initial %s | %d tranches of %s (+%s remainder)\n",
			b.Fee, b.Net, b.InitialRelease, len(b.Tranches)-1, b.PerTranche, b.Remainder)
	}

	if result.Passed {
		fmt.Fprintf(out, "Outcome: %s\n", s.ExpectedOutcome)
	} else {
		fmt.Fprintln(out, "Outcome: FAILED")
		for _, f := range result.Failures {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
}

package launchpad

import (
	sdkmath "cosmossdk.io/math"

	launchtypes "github.com/tide-protocol/tidechain/x/launch/types"
)

// StepKind identifies one action in a scenario script.
type StepKind string

const (
	StepDeposit  StepKind = "deposit"
	StepReward   StepKind = "reward"
	StepClaim    StepKind = "claim"
	StepTransfer StepKind = "transfer"
)

// ScenarioStep is one scripted action against the simulated vault, with the
// exact integer outcome the accounting math must produce.
type ScenarioStep struct {
	// Kind of action
	Kind StepKind `json:"kind"`

	// Backer performing the action
	Backer string `json:"backer"`

	// Recipient for transfer steps
	Recipient string `json:"recipient,omitempty"`

	// Amount deposited or distributed; for transfers, the share count moved
	Amount sdkmath.Int `json:"amount"`

	// ExpectedShares minted by a deposit
	ExpectedShares sdkmath.Int `json:"expected_shares,omitempty"`

	// ExpectedClaim paid out by a claim
	ExpectedClaim sdkmath.Int `json:"expected_claim,omitempty"`

	// ExpectedIndex the vault's global reward index must equal after the step
	ExpectedIndex sdkmath.Int `json:"expected_index,omitempty"`
}

// ScheduleExpectation pins down the release schedule computed at
// finalization: fee off the top, initial unlock, equal tranches, and the
// division remainder folded into the last one.
type ScheduleExpectation struct {
	ExpectedFee          sdkmath.Int `json:"expected_fee"`
	ExpectedNet          sdkmath.Int `json:"expected_net"`
	ExpectedInitial      sdkmath.Int `json:"expected_initial"`
	ExpectedPerTranche   sdkmath.Int `json:"expected_per_tranche"`
	ExpectedFinalTranche sdkmath.Int `json:"expected_final_tranche"`
}

// DemoScenario represents a pre-defined demo scenario
type DemoScenario struct {
	// ID unique identifier
	ID string `json:"id"`

	// Name of the scenario
	Name string `json:"name"`

	// Description of the scenario
	Description string `json:"description"`

	// ExpectedOutcome what should happen
	ExpectedOutcome string `json:"expected_outcome"`

	// Config of the simulated listing
	Config launchtypes.ListingConfig `json:"config"`

	// Steps executed in order against a fresh vault
	Steps []ScenarioStep `json:"steps"`

	// Schedule checked after all steps, against the pooled principal
	Schedule *ScheduleExpectation `json:"schedule,omitempty"`

	// ExpectedTotalShares outstanding once all steps have run
	ExpectedTotalShares sdkmath.Int `json:"expected_total_shares"`

	// Category of the scenario
	Category string `json:"category"`

	// Tags for filtering
	Tags []string `json:"tags"`
}

func demoConfig(feeBps, initialBps int64, tranches uint32) launchtypes.ListingConfig {
	return launchtypes.ListingConfig{
		Denom:               "utide",
		MinDeposit:          sdkmath.NewInt(1000),
		RaiseFeeBps:         feeBps,
		InitialReleaseBps:   initialBps,
		TrancheCount:        tranches,
		TrancheIntervalSecs: 30 * 86400,
		YieldBackerBps:      5000,
	}
}

// index units: 1 token spread over 10 shares is 1e17 at the 1e-18 scale.
func indexUnits(tokensPerTenShares int64) sdkmath.Int {
	return sdkmath.NewInt(tokensPerTenShares).Mul(sdkmath.NewIntWithDecimal(1, 17))
}

// GetDemoScenarios returns all pre-defined demo scenarios
func GetDemoScenarios() []*DemoScenario {
	return []*DemoScenario{
		// Share issuance scenarios
		{
			ID:              "first-deposit-bootstrap",
			Name:            "First Deposit - Empty Vault Bootstrap",
			Description:     "First backer into an empty vault mints shares one-to-one with principal",
			ExpectedOutcome: "1,000,000 utide deposit mints exactly 1,000,000 shares",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(1_000_000),
					ExpectedShares: sdkmath.NewInt(1_000_000),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1_000_000),
			Category:            "shares",
			Tags:                []string{"deposit", "bootstrap"},
		},

		{
			ID:              "pro-rata-follow-on",
			Name:            "Follow-On Deposit - Pro Rata Issuance",
			Description:     "Second backer mints shares in proportion to principal already pooled",
			ExpectedOutcome: "Both backers hold shares matching their exact deposit proportion",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(600_000),
					ExpectedShares: sdkmath.NewInt(600_000),
				},
				{
					Kind:           StepDeposit,
					Backer:         "bob",
					Amount:         sdkmath.NewInt(400_000),
					ExpectedShares: sdkmath.NewInt(400_000),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1_000_000),
			Category:            "shares",
			Tags:                []string{"deposit", "pro-rata", "multi-backer"},
		},

		// Reward index scenarios
		{
			ID:              "reward-index-accrual",
			Name:            "Reward Distribution - Index Accrual",
			Description:     "100 utide distributed over 1,000 shares advances the index and pays a minority holder their tenth",
			ExpectedOutcome: "Index advances by 0.1 token per share; a 100-share holder claims exactly 10",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(900),
					ExpectedShares: sdkmath.NewInt(900),
				},
				{
					Kind:           StepDeposit,
					Backer:         "bob",
					Amount:         sdkmath.NewInt(100),
					ExpectedShares: sdkmath.NewInt(100),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: indexUnits(1),
				},
				{
					Kind:          StepClaim,
					Backer:        "bob",
					ExpectedClaim: sdkmath.NewInt(10),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(90),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1000),
			Category:            "rewards",
			Tags:                []string{"reward", "index", "claim"},
		},

		{
			ID:              "proportional-claims",
			Name:            "Proportional Claims - 75/25 Split",
			Description:     "Two backers holding 75% and 25% of shares claim rewards in the same proportion",
			ExpectedOutcome: "A 100 utide reward pays out 75 and 25",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(750),
					ExpectedShares: sdkmath.NewInt(750),
				},
				{
					Kind:           StepDeposit,
					Backer:         "bob",
					Amount:         sdkmath.NewInt(250),
					ExpectedShares: sdkmath.NewInt(250),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: indexUnits(1),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(75),
				},
				{
					Kind:          StepClaim,
					Backer:        "bob",
					ExpectedClaim: sdkmath.NewInt(25),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1000),
			Category:            "rewards",
			Tags:                []string{"reward", "claim", "multi-backer"},
		},

		{
			ID:              "double-claim-idempotent",
			Name:            "Double Claim - Cursor Catches Up",
			Description:     "Claiming twice in a row pays once; the second claim finds the cursor already at the global index",
			ExpectedOutcome: "First claim pays 50, second claim pays 0",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(500),
					ExpectedShares: sdkmath.NewInt(500),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(50),
					ExpectedIndex: indexUnits(1),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(50),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.ZeroInt(),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(500),
			Category:            "rewards",
			Tags:                []string{"claim", "idempotent"},
		},

		// Pass transfer scenarios
		{
			ID:              "pass-split-transfer",
			Name:            "Pass Split - Transferred Shares Carry the Cursor",
			Description:     "A holder claims, splits off part of their pass, and both sides accrue only rewards distributed after the split",
			ExpectedOutcome: "After the split a second reward pays 60/40, matching the new share proportions",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(1000),
					ExpectedShares: sdkmath.NewInt(1000),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: indexUnits(1),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(100),
				},
				{
					Kind:      StepTransfer,
					Backer:    "alice",
					Recipient: "bob",
					Amount:    sdkmath.NewInt(400),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: indexUnits(2),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(60),
				},
				{
					Kind:          StepClaim,
					Backer:        "bob",
					ExpectedClaim: sdkmath.NewInt(40),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1000),
			Category:            "passes",
			Tags:                []string{"transfer", "split", "claim"},
		},

		// Release schedule scenarios
		{
			ID:              "release-schedule-standard",
			Name:            "Release Schedule - 1% Fee, 20% Initial, 12 Tranches",
			Description:     "A 1,000,000 utide raise finalizes with the standard fee and vesting split",
			ExpectedOutcome: "Fee 10,000; net 990,000; initial 198,000; twelve tranches of 66,000 each",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(1_000_000),
					ExpectedShares: sdkmath.NewInt(1_000_000),
				},
			},
			Schedule: &ScheduleExpectation{
				ExpectedFee:          sdkmath.NewInt(10_000),
				ExpectedNet:          sdkmath.NewInt(990_000),
				ExpectedInitial:      sdkmath.NewInt(198_000),
				ExpectedPerTranche:   sdkmath.NewInt(66_000),
				ExpectedFinalTranche: sdkmath.NewInt(66_000),
			},
			ExpectedTotalShares: sdkmath.NewInt(1_000_000),
			Category:            "schedule",
			Tags:                []string{"schedule", "fee", "tranches"},
		},

		{
			ID:              "release-schedule-remainder",
			Name:            "Release Schedule - Remainder Folds Into Final Tranche",
			Description:     "An awkward principal that does not divide evenly leaves its dust in the last tranche",
			ExpectedOutcome: "1,000,003 over 7 tranches: six of 142,857 and a final of 142,861",
			Config:          demoConfig(0, 0, 7),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(1_000_003),
					ExpectedShares: sdkmath.NewInt(1_000_003),
				},
			},
			Schedule: &ScheduleExpectation{
				ExpectedFee:          sdkmath.ZeroInt(),
				ExpectedNet:          sdkmath.NewInt(1_000_003),
				ExpectedInitial:      sdkmath.ZeroInt(),
				ExpectedPerTranche:   sdkmath.NewInt(142_857),
				ExpectedFinalTranche: sdkmath.NewInt(142_861),
			},
			ExpectedTotalShares: sdkmath.NewInt(1_000_003),
			Category:            "schedule",
			Tags:                []string{"schedule", "remainder", "rounding"},
		},

		// Edge cases
		{
			ID:              "reward-before-any-shares",
			Name:            "Reward Into Empty Vault",
			Description:     "A reward distributed before any shares exist leaves the index untouched",
			ExpectedOutcome: "Index stays at zero; a later depositor cannot claim the stranded reward",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: sdkmath.ZeroInt(),
				},
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(1000),
					ExpectedShares: sdkmath.NewInt(1000),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.ZeroInt(),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1000),
			Category:            "edge",
			Tags:                []string{"reward", "empty-vault"},
		},

		{
			ID:              "late-depositor-no-backpay",
			Name:            "Late Depositor - No Back-Pay",
			Description:     "A backer who deposits after a distribution starts with their cursor at the current index",
			ExpectedOutcome: "The late backer claims zero from the earlier reward and full proportion from the next",
			Config:          demoConfig(100, 2000, 12),
			Steps: []ScenarioStep{
				{
					Kind:           StepDeposit,
					Backer:         "alice",
					Amount:         sdkmath.NewInt(500),
					ExpectedShares: sdkmath.NewInt(500),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(50),
					ExpectedIndex: indexUnits(1),
				},
				{
					Kind:           StepDeposit,
					Backer:         "bob",
					Amount:         sdkmath.NewInt(500),
					ExpectedShares: sdkmath.NewInt(500),
				},
				{
					Kind:          StepClaim,
					Backer:        "bob",
					ExpectedClaim: sdkmath.ZeroInt(),
				},
				{
					Kind:          StepReward,
					Amount:        sdkmath.NewInt(100),
					ExpectedIndex: indexUnits(2),
				},
				{
					Kind:          StepClaim,
					Backer:        "bob",
					ExpectedClaim: sdkmath.NewInt(50),
				},
				{
					Kind:          StepClaim,
					Backer:        "alice",
					ExpectedClaim: sdkmath.NewInt(100),
				},
			},
			ExpectedTotalShares: sdkmath.NewInt(1000),
			Category:            "edge",
			Tags:                []string{"reward", "late-deposit", "claim"},
		},
	}
}

// GetScenarioByID returns a scenario by ID
func GetScenarioByID(id string) *DemoScenario {
	scenarios := GetDemoScenarios()
	for _, s := range scenarios {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// GetScenariosByCategory returns scenarios by category
func GetScenariosByCategory(category string) []*DemoScenario {
	scenarios := GetDemoScenarios()
	filtered := make([]*DemoScenario, 0)
	for _, s := range scenarios {
		if s.Category == category {
			filtered = append(filtered, s)
		}
	}
	return filtered
}

// GetScenariosByTag returns scenarios by tag
func GetScenariosByTag(tag string) []*DemoScenario {
	scenarios := GetDemoScenarios()
	filtered := make([]*DemoScenario, 0)
	for _, s := range scenarios {
		for _, t := range s.Tags {
			if t == tag {
				filtered = append(filtered, s)
				break
			}
		}
	}
	return filtered
}

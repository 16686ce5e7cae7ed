package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
)

type ListingStatus string

const (
	ListingStatusDraft     ListingStatus = "draft"
	ListingStatusActive    ListingStatus = "active"
	ListingStatusFinalized ListingStatus = "finalized"
	ListingStatusCompleted ListingStatus = "completed"
	ListingStatusCancelled ListingStatus = "cancelled"
)

// CanTransitionTo reports whether the lifecycle permits moving from s to
// next. The machine only moves forward: Draft -> Active -> Finalized ->
// Completed, with Cancelled reachable from Draft or Active. Terminal states
// admit nothing.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	switch s {
	case ListingStatusDraft:
		return next == ListingStatusActive || next == ListingStatusCancelled
	case ListingStatusActive:
		return next == ListingStatusFinalized || next == ListingStatusCancelled
	case ListingStatusFinalized:
		return next == ListingStatusCompleted
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible.
func (s ListingStatus) IsTerminal() bool {
	return s == ListingStatusCompleted || s == ListingStatusCancelled
}

// ListingConfig carries the economic parameters fixed at listing creation.
// The config is hashed into the listing record and every later presentation
// of it must match that hash, so none of these values can drift after
// backers have committed funds.
type ListingConfig struct {
	Denom               string      `json:"denom"`
	MinDeposit          sdkmath.Int `json:"min_deposit"`
	RaiseFeeBps         int64       `json:"raise_fee_bps"`
	InitialReleaseBps   int64       `json:"initial_release_bps"`
	TrancheCount        uint32      `json:"tranche_count"`
	TrancheIntervalSecs int64       `json:"tranche_interval_secs"`
	YieldBackerBps      int64       `json:"yield_backer_bps"`
}

// Hash returns the canonical sha256 fingerprint of the config. Fields are
// serialized in a fixed order so the digest is deterministic across nodes.
func (c ListingConfig) Hash() string {
	canonical := fmt.Sprintf(
		"denom=%s|min_deposit=%s|raise_fee_bps=%d|initial_release_bps=%d|tranche_count=%d|tranche_interval_secs=%d|yield_backer_bps=%d",
		c.Denom,
		c.MinDeposit.String(),
		c.RaiseFeeBps,
		c.InitialReleaseBps,
		c.TrancheCount,
		c.TrancheIntervalSecs,
		c.YieldBackerBps,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Validate checks structural soundness. Params impose tighter protocol
// bounds on top of these at the keeper level.
func (c ListingConfig) Validate() error {
	if strings.TrimSpace(c.Denom) == "" {
		return fmt.Errorf("denom cannot be empty")
	}
	if c.MinDeposit.IsNil() || c.MinDeposit.IsNegative() {
		return fmt.Errorf("min deposit must be non-negative")
	}
	if c.RaiseFeeBps < 0 || c.RaiseFeeBps > BpsBase {
		return fmt.Errorf("raise fee bps must be between 0 and %d, got %d", BpsBase, c.RaiseFeeBps)
	}
	if c.InitialReleaseBps < 0 || c.InitialReleaseBps > BpsBase {
		return fmt.Errorf("initial release bps must be between 0 and %d, got %d", BpsBase, c.InitialReleaseBps)
	}
	if c.TrancheCount == 0 {
		return fmt.Errorf("tranche count must be positive")
	}
	if c.TrancheIntervalSecs <= 0 {
		return fmt.Errorf("tranche interval must be positive, got %d", c.TrancheIntervalSecs)
	}
	if c.YieldBackerBps < 0 || c.YieldBackerBps > BpsBase {
		return fmt.Errorf("yield backer bps must be between 0 and %d, got %d", BpsBase, c.YieldBackerBps)
	}
	return nil
}

// Listing is the root record of one capital raise.
type Listing struct {
	ID              string        `json:"id"`
	ListingNumber   uint64        `json:"listing_number"`
	Issuer          string        `json:"issuer"`
	Beneficiary     string        `json:"beneficiary"`
	Status          ListingStatus `json:"status"`
	Config          ListingConfig `json:"config"`
	ConfigHash      string        `json:"config_hash"`
	Paused          bool          `json:"paused"`
	BackerCount     uint64        `json:"backer_count"`
	CreatedAtUnix   int64         `json:"created_at_unix"`
	ActivatedAtUnix int64         `json:"activated_at_unix,omitempty"`
	FinalizedAtUnix int64         `json:"finalized_at_unix,omitempty"`
	ClosedAtUnix    int64         `json:"closed_at_unix,omitempty"`
}

// Tranche is one scheduled principal release. Amount is fixed when the
// schedule is computed; ReleasedAmount and ShortfallAmount record what
// actually happened at release time.
type Tranche struct {
	Amount          sdkmath.Int `json:"amount"`
	ReleaseAtUnix   int64       `json:"release_at_unix"`
	Released        bool        `json:"released"`
	ReleasedAmount  sdkmath.Int `json:"released_amount"`
	ShortfallAmount sdkmath.Int `json:"shortfall_amount"`
	ReleasedAtUnix  int64       `json:"released_at_unix,omitempty"`
}

// CapitalVault pools deposited principal for one listing and, once
// finalized, carries the immutable release schedule.
type CapitalVault struct {
	ListingID         string      `json:"listing_id"`
	Balance           sdkmath.Int `json:"balance"`
	TotalPrincipal    sdkmath.Int `json:"total_principal"`
	TotalShares       sdkmath.Int `json:"total_shares"`
	RaiseFeeBps       int64       `json:"raise_fee_bps"`
	Tranches          []Tranche   `json:"tranches,omitempty"`
	TranchesReleased  uint32      `json:"tranches_released"`
	ScheduleFinalized bool        `json:"schedule_finalized"`
	FeeCollected      bool        `json:"fee_collected"`
	FeeAmount         sdkmath.Int `json:"fee_amount"`
	RefundedShares    sdkmath.Int `json:"refunded_shares"`
	RefundedAmount    sdkmath.Int `json:"refunded_amount"`
}

// NewCapitalVault returns an empty vault with every amount at zero.
func NewCapitalVault(listingID string, raiseFeeBps int64) CapitalVault {
	return CapitalVault{
		ListingID:      listingID,
		Balance:        sdkmath.ZeroInt(),
		TotalPrincipal: sdkmath.ZeroInt(),
		TotalShares:    sdkmath.ZeroInt(),
		RaiseFeeBps:    raiseFeeBps,
		FeeAmount:      sdkmath.ZeroInt(),
		RefundedShares: sdkmath.ZeroInt(),
		RefundedAmount: sdkmath.ZeroInt(),
	}
}

// RewardVault accumulates routed revenue for one listing and tracks the
// cumulative reward-per-share index supporters claim against. GlobalIndex
// only ever grows, and only DepositRewards moves it.
type RewardVault struct {
	ListingID            string      `json:"listing_id"`
	Balance              sdkmath.Int `json:"balance"`
	GlobalIndex          sdkmath.Int `json:"global_index"`
	TotalShares          sdkmath.Int `json:"total_shares"`
	TotalDeposited       sdkmath.Int `json:"total_deposited"`
	TotalDistributed     sdkmath.Int `json:"total_distributed"`
	PendingUndistributed sdkmath.Int `json:"pending_undistributed"`
}

// NewRewardVault returns an empty reward vault with the index at zero.
func NewRewardVault(listingID string) RewardVault {
	return RewardVault{
		ListingID:            listingID,
		Balance:              sdkmath.ZeroInt(),
		GlobalIndex:          sdkmath.ZeroInt(),
		TotalShares:          sdkmath.ZeroInt(),
		TotalDeposited:       sdkmath.ZeroInt(),
		TotalDistributed:     sdkmath.ZeroInt(),
		PendingUndistributed: sdkmath.ZeroInt(),
	}
}

// SupporterPass entitles its owner to a listing's reward stream in
// proportion to Shares. Shares never change after mint; ClaimIndex starts
// at the mint-time global index so a pass only earns from rewards that
// arrive after it exists.
type SupporterPass struct {
	ID             string      `json:"id"`
	ListingID      string      `json:"listing_id"`
	Owner          string      `json:"owner"`
	Shares         sdkmath.Int `json:"shares"`
	ClaimIndex     sdkmath.Int `json:"claim_index"`
	TotalClaimed   sdkmath.Int `json:"total_claimed"`
	PassNumber     uint64      `json:"pass_number"`
	OriginalMinter string      `json:"original_minter"`
	MintedAtUnix   int64       `json:"minted_at_unix"`
	Redeemed       bool        `json:"redeemed"`
}

// StakeLot is one tracked parcel of principal placed with the yield source.
type StakeLot struct {
	Handle       string      `json:"handle"`
	Principal    sdkmath.Int `json:"principal"`
	StakedAtUnix int64       `json:"staked_at_unix"`
}

// YieldPosition tracks a listing's participation in the external yield
// source: what is currently staked and the lifetime harvest accounting.
type YieldPosition struct {
	ListingID           string      `json:"listing_id"`
	Enabled             bool        `json:"enabled"`
	Validator           string      `json:"validator"`
	StakedPrincipal     sdkmath.Int `json:"staked_principal"`
	Stakes              []StakeLot  `json:"stakes,omitempty"`
	HarvestCount        uint64      `json:"harvest_count"`
	LifetimeRewards     sdkmath.Int `json:"lifetime_rewards"`
	LifetimeTreasuryCut sdkmath.Int `json:"lifetime_treasury_cut"`
	RecordedLoss        sdkmath.Int `json:"recorded_loss"`
}

// NewYieldPosition returns a disabled position with zeroed accounting.
func NewYieldPosition(listingID string) YieldPosition {
	return YieldPosition{
		ListingID:           listingID,
		StakedPrincipal:     sdkmath.ZeroInt(),
		LifetimeRewards:     sdkmath.ZeroInt(),
		LifetimeTreasuryCut: sdkmath.ZeroInt(),
		RecordedLoss:        sdkmath.ZeroInt(),
	}
}

// HarvestReceipt reports what one harvest actually moved: how much came
// back from the yield source, how the reward portion split, and any
// principal loss.
type HarvestReceipt struct {
	ListingID         string      `json:"listing_id"`
	Handle            string      `json:"handle"`
	Principal         sdkmath.Int `json:"principal"`
	Withdrawn         sdkmath.Int `json:"withdrawn"`
	PrincipalReturned sdkmath.Int `json:"principal_returned"`
	Reward            sdkmath.Int `json:"reward"`
	BackerCut         sdkmath.Int `json:"backer_cut"`
	TreasuryCut       sdkmath.Int `json:"treasury_cut"`
	Loss              sdkmath.Int `json:"loss"`
}

// AdminCap authorizes lifecycle operations on exactly one listing. It is
// handed to the issuer at creation and checked by id equality.
type AdminCap struct {
	ListingID string `json:"listing_id"`
}

// RouteCap authorizes routing revenue into exactly one listing's reward
// vault. Checked by id equality; the presenting address must also hold a
// route grant.
type RouteCap struct {
	ListingID string `json:"listing_id"`
}

// MsgCreateListing registers a new raise in Draft state.
type MsgCreateListing struct {
	Issuer      string        `json:"issuer"`
	Beneficiary string        `json:"beneficiary"`
	Config      ListingConfig `json:"config"`
}

func (m MsgCreateListing) ValidateBasic() error {
	if strings.TrimSpace(m.Issuer) == "" {
		return fmt.Errorf("issuer cannot be empty")
	}
	if strings.TrimSpace(m.Beneficiary) == "" {
		return fmt.Errorf("beneficiary cannot be empty")
	}
	if strings.TrimSpace(m.Issuer) == strings.TrimSpace(m.Beneficiary) {
		return fmt.Errorf("issuer and beneficiary must differ")
	}
	return m.Config.Validate()
}

// MsgDeposit commits backer funds to an active listing.
type MsgDeposit struct {
	ListingID string      `json:"listing_id"`
	Backer    string      `json:"backer"`
	Amount    sdkmath.Int `json:"amount"`
}

func (m MsgDeposit) ValidateBasic() error {
	if strings.TrimSpace(m.ListingID) == "" {
		return fmt.Errorf("listing id cannot be empty")
	}
	if strings.TrimSpace(m.Backer) == "" {
		return fmt.Errorf("backer cannot be empty")
	}
	if m.Amount.IsNil() || !m.Amount.IsPositive() {
		return fmt.Errorf("deposit amount must be positive")
	}
	return nil
}

// Getters so transaction-screening decorators can match deposits by shape
// without importing this package's concrete types.

func (m MsgDeposit) GetListingID() string   { return m.ListingID }
func (m MsgDeposit) GetBacker() string      { return m.Backer }
func (m MsgDeposit) GetAmount() sdkmath.Int { return m.Amount }

// MsgFinalizeListing closes the raise and computes the release schedule.
// The config is presented again and must match the hash recorded at
// creation.
type MsgFinalizeListing struct {
	ListingID string        `json:"listing_id"`
	Requester string        `json:"requester"`
	Config    ListingConfig `json:"config"`
}

func (m MsgFinalizeListing) ValidateBasic() error {
	if strings.TrimSpace(m.ListingID) == "" {
		return fmt.Errorf("listing id cannot be empty")
	}
	if strings.TrimSpace(m.Requester) == "" {
		return fmt.Errorf("requester cannot be empty")
	}
	return m.Config.Validate()
}

// MsgDepositRewards routes revenue into a listing's reward vault.
type MsgDepositRewards struct {
	ListingID string      `json:"listing_id"`
	Source    string      `json:"source"`
	Amount    sdkmath.Int `json:"amount"`
}

func (m MsgDepositRewards) ValidateBasic() error {
	if strings.TrimSpace(m.ListingID) == "" {
		return fmt.Errorf("listing id cannot be empty")
	}
	if strings.TrimSpace(m.Source) == "" {
		return fmt.Errorf("source cannot be empty")
	}
	if m.Amount.IsNil() || !m.Amount.IsPositive() {
		return fmt.Errorf("reward amount must be positive")
	}
	return nil
}

// MsgClaimRewards withdraws a pass holder's accrued rewards.
type MsgClaimRewards struct {
	ListingID string `json:"listing_id"`
	PassID    string `json:"pass_id"`
	Holder    string `json:"holder"`
}

func (m MsgClaimRewards) ValidateBasic() error {
	if strings.TrimSpace(m.ListingID) == "" {
		return fmt.Errorf("listing id cannot be empty")
	}
	if strings.TrimSpace(m.PassID) == "" {
		return fmt.Errorf("pass id cannot be empty")
	}
	if strings.TrimSpace(m.Holder) == "" {
		return fmt.Errorf("holder cannot be empty")
	}
	return nil
}

// MsgTransferPass moves a pass and its claim rights to a new owner.
type MsgTransferPass struct {
	PassID string `json:"pass_id"`
	From   string `json:"from"`
	To     string `json:"to"`
}

func (m MsgTransferPass) ValidateBasic() error {
	if strings.TrimSpace(m.PassID) == "" {
		return fmt.Errorf("pass id cannot be empty")
	}
	if strings.TrimSpace(m.From) == "" {
		return fmt.Errorf("from address cannot be empty")
	}
	if strings.TrimSpace(m.To) == "" {
		return fmt.Errorf("to address cannot be empty")
	}
	if strings.TrimSpace(m.From) == strings.TrimSpace(m.To) {
		return fmt.Errorf("from and to addresses must differ")
	}
	return nil
}

// MsgRefundDeposit returns a backer's pro-rata principal after
// cancellation and retires the pass.
type MsgRefundDeposit struct {
	ListingID string `json:"listing_id"`
	PassID    string `json:"pass_id"`
	Holder    string `json:"holder"`
}

func (m MsgRefundDeposit) ValidateBasic() error {
	if strings.TrimSpace(m.ListingID) == "" {
		return fmt.Errorf("listing id cannot be empty")
	}
	if strings.TrimSpace(m.PassID) == "" {
		return fmt.Errorf("pass id cannot be empty")
	}
	if strings.TrimSpace(m.Holder) == "" {
		return fmt.Errorf("holder cannot be empty")
	}
	return nil
}

package app

import (
	"context"
	"fmt"
	"sync"

	"cosmossdk.io/log"
	sdkmath "cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"
	distrkeeper "github.com/cosmos/cosmos-sdk/x/distribution/keeper"
	stakingkeeper "github.com/cosmos/cosmos-sdk/x/staking/keeper"
	stakingtypes "github.com/cosmos/cosmos-sdk/x/staking/types"

	launchtypes "github.com/tide-protocol/tidechain/x/launch/types"
)

// StakingYieldSource puts idle listing capital to work by delegating it from
// the launch module account to validators. Each Stake call becomes one
// delegation lot identified by an opaque handle; Unstake withdraws the lot's
// accrued rewards, unbonds the shares, and lands principal plus yield back in
// the launch module account.
type StakingYieldSource struct {
	stakingKeeper *stakingkeeper.Keeper
	distrKeeper   distrkeeper.Keeper
	bankKeeper    bankSendKeeper
	delegator     sdk.AccAddress
	logger        log.Logger

	mu   sync.Mutex
	seq  uint64
	lots map[string]stakeLot

	totalStakes   int64
	totalUnstakes int64
}

// bankSendKeeper is the slice of the bank keeper the bridge needs to move
// unbonded tokens back out of the staking pools.
type bankSendKeeper interface {
	SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error
}

type stakeLot struct {
	validator string
	shares    sdkmath.LegacyDec
	amount    sdk.Coin
}

// YieldSourceStats summarizes bridge activity for health and metrics surfaces.
type YieldSourceStats struct {
	OpenLots      int   `json:"open_lots"`
	TotalStakes   int64 `json:"total_stakes"`
	TotalUnstakes int64 `json:"total_unstakes"`
}

// NewStakingYieldSource creates a yield source delegating from the given
// module account.
func NewStakingYieldSource(
	stakingKeeper *stakingkeeper.Keeper,
	distrKeeper distrkeeper.Keeper,
	bankKeeper bankSendKeeper,
	delegator sdk.AccAddress,
	logger log.Logger,
) *StakingYieldSource {
	return &StakingYieldSource{
		stakingKeeper: stakingKeeper,
		distrKeeper:   distrKeeper,
		bankKeeper:    bankKeeper,
		delegator:     delegator,
		logger:        logger.With("component", "staking_yield_source"),
		lots:          make(map[string]stakeLot),
	}
}

// Stake delegates amount from the launch module account to the named
// validator and returns the handle for the resulting lot.
func (s *StakingYieldSource) Stake(ctx context.Context, validator string, amount sdk.Coin) (string, error) {
	if !amount.IsValid() || amount.IsZero() {
		return "", fmt.Errorf("stake amount must be positive, got %s", amount)
	}

	valAddr, err := s.stakingKeeper.ValidatorAddressCodec().StringToBytes(validator)
	if err != nil {
		return "", fmt.Errorf("invalid validator address %q: %w", validator, err)
	}

	val, err := s.stakingKeeper.GetValidator(ctx, valAddr)
	if err != nil {
		return "", fmt.Errorf("validator %s not found: %w", validator, err)
	}

	shares, err := s.stakingKeeper.Delegate(ctx, s.delegator, amount.Amount, stakingtypes.Unbonded, val, true)
	if err != nil {
		return "", fmt.Errorf("delegate to %s: %w", validator, err)
	}

	s.mu.Lock()
	s.seq++
	handle := fmt.Sprintf("stake-%d", s.seq)
	s.lots[handle] = stakeLot{
		validator: validator,
		shares:    shares,
		amount:    amount,
	}
	s.totalStakes++
	s.mu.Unlock()

	s.logger.Info("Staked listing capital",
		"handle", handle,
		"validator", validator,
		"amount", amount.String(),
		"shares", shares.String(),
	)

	return handle, nil
}

// Unstake redeems a lot: withdraws the delegation's accrued rewards, unbonds
// the shares, and moves everything back to the launch module account. The
// returned coin is principal plus reward, which may be less than principal
// after a slashing loss.
func (s *StakingYieldSource) Unstake(ctx context.Context, handle string) (sdk.Coin, error) {
	s.mu.Lock()
	lot, ok := s.lots[handle]
	s.mu.Unlock()
	if !ok {
		return sdk.Coin{}, fmt.Errorf("unknown stake handle %q", handle)
	}

	valAddr, err := s.stakingKeeper.ValidatorAddressCodec().StringToBytes(lot.validator)
	if err != nil {
		return sdk.Coin{}, fmt.Errorf("invalid validator address %q: %w", lot.validator, err)
	}

	// Rewards land directly on the launch module account.
	rewards, err := s.distrKeeper.WithdrawDelegationRewards(ctx, s.delegator, valAddr)
	if err != nil {
		return sdk.Coin{}, fmt.Errorf("withdraw rewards from %s: %w", lot.validator, err)
	}

	val, err := s.stakingKeeper.GetValidator(ctx, valAddr)
	if err != nil {
		return sdk.Coin{}, fmt.Errorf("validator %s not found: %w", lot.validator, err)
	}

	returned, err := s.stakingKeeper.Unbond(ctx, s.delegator, valAddr, lot.shares)
	if err != nil {
		return sdk.Coin{}, fmt.Errorf("unbond from %s: %w", lot.validator, err)
	}

	// Unbond leaves the tokens in the staking pool that held them; move them
	// back to the launch module account immediately instead of waiting out an
	// unbonding period.
	poolName := stakingtypes.NotBondedPoolName
	if val.IsBonded() {
		poolName = stakingtypes.BondedPoolName
	}
	principal := sdk.NewCoin(lot.amount.Denom, returned)
	if err := s.bankKeeper.SendCoinsFromModuleToModule(
		ctx, poolName, launchtypes.ModuleName, sdk.NewCoins(principal),
	); err != nil {
		return sdk.Coin{}, fmt.Errorf("return unbonded tokens: %w", err)
	}

	s.mu.Lock()
	delete(s.lots, handle)
	s.totalUnstakes++
	s.mu.Unlock()

	total := principal
	if reward := rewards.AmountOf(lot.amount.Denom); reward.IsPositive() {
		total = total.Add(sdk.NewCoin(lot.amount.Denom, reward))
	}

	s.logger.Info("Unstaked listing capital",
		"handle", handle,
		"validator", lot.validator,
		"principal", principal.String(),
		"total_returned", total.String(),
	)

	return total, nil
}

// Stats reports bridge activity.
func (s *StakingYieldSource) Stats() YieldSourceStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return YieldSourceStats{
		OpenLots:      len(s.lots),
		TotalStakes:   s.totalStakes,
		TotalUnstakes: s.totalUnstakes,
	}
}

package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	sdkmath "cosmossdk.io/math"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"
	authtypes "github.com/cosmos/cosmos-sdk/x/auth/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// BankKeeper is the subset of the bank module the launch module needs to
// custody principal and pay out rewards, fees, tranches, and refunds.
type BankKeeper interface {
	SendCoinsFromModuleToAccount(ctx context.Context, senderModule string, recipientAddr sdk.AccAddress, amt sdk.Coins) error
	SendCoinsFromAccountToModule(ctx context.Context, senderAddr sdk.AccAddress, recipientModule string, amt sdk.Coins) error
	SendCoinsFromModuleToModule(ctx context.Context, senderModule, recipientModule string, amt sdk.Coins) error
	SpendableCoins(ctx context.Context, addr sdk.AccAddress) sdk.Coins
}

// ProtocolKeeper exposes the tide module's protocol-wide state: the global
// pause switch and the treasury destination.
type ProtocolKeeper interface {
	IsPaused(ctx context.Context) bool
	TreasuryAddress(ctx context.Context) string
}

// YieldSource places idle principal with an external earner. Stake moves
// coins out of the launch module account and returns an opaque handle;
// Unstake redeems a handle and lands whatever came back (principal plus
// yield, or less after a loss) back in the launch module account.
type YieldSource interface {
	Stake(ctx context.Context, validator string, amount sdk.Coin) (string, error)
	Unstake(ctx context.Context, handle string) (sdk.Coin, error)
}

// Keeper manages capital-raise listings: lifecycle, principal custody with
// tranche release schedules, the supporter reward index, and yield routing.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService
	authority    string

	bankKeeper     BankKeeper
	protocolKeeper ProtocolKeeper
	yieldSource    YieldSource

	// moduleAddress is the launch module account in bech32 form. It holds a
	// revenue route grant on every listing so harvests can feed the reward
	// index through the same gate external routers use.
	moduleAddress string

	metrics      *ModuleMetrics
	auditLogger  *AuditLogger
	yieldBreaker *CircuitBreaker

	Listings       collections.Map[string, string]
	CapitalVaults  collections.Map[string, string]
	RewardVaults   collections.Map[string, string]
	Passes         collections.Map[string, string]
	YieldPositions collections.Map[string, string]
	RouteGrants    collections.KeySet[string]
	Backers        collections.KeySet[string]
	ListingCount   collections.Item[uint64]
	PassCount      collections.Item[uint64]
	Params         collections.Item[string]
}

// NewKeeper creates a new launch keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
	authority string,
	bankKeeper BankKeeper,
	protocolKeeper ProtocolKeeper,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:            cdc,
		storeService:   storeService,
		authority:      authority,
		bankKeeper:     bankKeeper,
		protocolKeeper: protocolKeeper,
		moduleAddress:  authtypes.NewModuleAddress(types.ModuleName).String(),
		metrics:        NewModuleMetrics(),
		auditLogger:    NewAuditLogger(DefaultAuditBufferSize),
		yieldBreaker:   NewCircuitBreaker("yield_source", 3, 10*time.Minute),
		Listings: collections.NewMap(
			sb,
			collections.NewPrefix(types.ListingKeyPrefix),
			"listings",
			collections.StringKey,
			collections.StringValue,
		),
		CapitalVaults: collections.NewMap(
			sb,
			collections.NewPrefix(types.CapitalVaultKeyPrefix),
			"capital_vaults",
			collections.StringKey,
			collections.StringValue,
		),
		RewardVaults: collections.NewMap(
			sb,
			collections.NewPrefix(types.RewardVaultKeyPrefix),
			"reward_vaults",
			collections.StringKey,
			collections.StringValue,
		),
		Passes: collections.NewMap(
			sb,
			collections.NewPrefix(types.PassKeyPrefix),
			"passes",
			collections.StringKey,
			collections.StringValue,
		),
		YieldPositions: collections.NewMap(
			sb,
			collections.NewPrefix(types.YieldPositionKeyPrefix),
			"yield_positions",
			collections.StringKey,
			collections.StringValue,
		),
		RouteGrants: collections.NewKeySet(
			sb,
			collections.NewPrefix(types.RouteGrantKeyPrefix),
			"route_grants",
			collections.StringKey,
		),
		Backers: collections.NewKeySet(
			sb,
			collections.NewPrefix(types.BackerKeyPrefix),
			"backers",
			collections.StringKey,
		),
		ListingCount: collections.NewItem(
			sb,
			collections.NewPrefix(types.ListingCountKey),
			"listing_count",
			collections.Uint64Value,
		),
		PassCount: collections.NewItem(
			sb,
			collections.NewPrefix(types.PassCountKey),
			"pass_count",
			collections.Uint64Value,
		),
		Params: collections.NewItem(
			sb,
			collections.NewPrefix(types.ParamsKey),
			"params",
			collections.StringValue,
		),
	}
}

func (k Keeper) GetAuthority() string {
	return k.authority
}

// ModuleAddress returns the launch module account address.
func (k Keeper) ModuleAddress() string {
	return k.moduleAddress
}

// SetYieldSource wires the external yield source. The app calls this after
// the staking keeper exists; until then yield operations report the source
// as unavailable.
func (k *Keeper) SetYieldSource(source YieldSource) {
	k.yieldSource = source
}

// Metrics exposes the in-process metrics registry.
func (k Keeper) Metrics() *ModuleMetrics {
	return k.metrics
}

// AuditLog exposes the hash-chained audit logger.
func (k Keeper) AuditLog() *AuditLogger {
	return k.auditLogger
}

// YieldBreaker exposes the yield-source circuit breaker.
func (k Keeper) YieldBreaker() *CircuitBreaker {
	return k.yieldBreaker
}

// GetParams returns module params, falling back to defaults when unset.
func (k Keeper) GetParams(ctx context.Context) types.Params {
	raw, err := k.Params.Get(ctx)
	if err != nil {
		return types.DefaultParams()
	}
	var params types.Params
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return types.DefaultParams()
	}
	return params
}

// SetParams replaces module params. Only the governance authority may call
// this.
func (k Keeper) SetParams(ctx context.Context, requester string, params types.Params) error {
	if requester != k.authority {
		return fmt.Errorf("unauthorized params update")
	}
	if err := params.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	return k.Params.Set(ctx, string(raw))
}

// ---------------------------------------------------------------------------
// Record codecs
// ---------------------------------------------------------------------------

func (k Keeper) setListing(ctx context.Context, listing types.Listing) error {
	raw, err := json.Marshal(listing)
	if err != nil {
		return err
	}
	return k.Listings.Set(ctx, listing.ID, string(raw))
}

// GetListing fetches a listing by id.
func (k Keeper) GetListing(ctx context.Context, id string) (types.Listing, error) {
	raw, err := k.Listings.Get(ctx, id)
	if err != nil {
		return types.Listing{}, types.ErrNotFound.Wrapf("listing %s", id)
	}
	return decodeListing(raw)
}

func decodeListing(raw string) (types.Listing, error) {
	var listing types.Listing
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		return types.Listing{}, fmt.Errorf("decode listing: %w", err)
	}
	return listing, nil
}

func (k Keeper) setCapitalVault(ctx context.Context, vault types.CapitalVault) error {
	raw, err := json.Marshal(vault)
	if err != nil {
		return err
	}
	return k.CapitalVaults.Set(ctx, vault.ListingID, string(raw))
}

// GetCapitalVault fetches a listing's principal vault.
func (k Keeper) GetCapitalVault(ctx context.Context, listingID string) (types.CapitalVault, error) {
	raw, err := k.CapitalVaults.Get(ctx, listingID)
	if err != nil {
		return types.CapitalVault{}, types.ErrNotFound.Wrapf("capital vault for %s", listingID)
	}
	return decodeCapitalVault(raw)
}

func decodeCapitalVault(raw string) (types.CapitalVault, error) {
	var vault types.CapitalVault
	if err := json.Unmarshal([]byte(raw), &vault); err != nil {
		return types.CapitalVault{}, fmt.Errorf("decode capital vault: %w", err)
	}
	return vault, nil
}

func (k Keeper) setRewardVault(ctx context.Context, vault types.RewardVault) error {
	raw, err := json.Marshal(vault)
	if err != nil {
		return err
	}
	return k.RewardVaults.Set(ctx, vault.ListingID, string(raw))
}

// GetRewardVault fetches a listing's reward vault.
func (k Keeper) GetRewardVault(ctx context.Context, listingID string) (types.RewardVault, error) {
	raw, err := k.RewardVaults.Get(ctx, listingID)
	if err != nil {
		return types.RewardVault{}, types.ErrNotFound.Wrapf("reward vault for %s", listingID)
	}
	return decodeRewardVault(raw)
}

func decodeRewardVault(raw string) (types.RewardVault, error) {
	var vault types.RewardVault
	if err := json.Unmarshal([]byte(raw), &vault); err != nil {
		return types.RewardVault{}, fmt.Errorf("decode reward vault: %w", err)
	}
	return vault, nil
}

func (k Keeper) setPass(ctx context.Context, pass types.SupporterPass) error {
	raw, err := json.Marshal(pass)
	if err != nil {
		return err
	}
	return k.Passes.Set(ctx, pass.ID, string(raw))
}

// GetPass fetches a supporter pass by id.
func (k Keeper) GetPass(ctx context.Context, id string) (types.SupporterPass, error) {
	raw, err := k.Passes.Get(ctx, id)
	if err != nil {
		return types.SupporterPass{}, types.ErrNotFound.Wrapf("pass %s", id)
	}
	return decodePass(raw)
}

func decodePass(raw string) (types.SupporterPass, error) {
	var pass types.SupporterPass
	if err := json.Unmarshal([]byte(raw), &pass); err != nil {
		return types.SupporterPass{}, fmt.Errorf("decode pass: %w", err)
	}
	return pass, nil
}

func (k Keeper) setYieldPosition(ctx context.Context, position types.YieldPosition) error {
	raw, err := json.Marshal(position)
	if err != nil {
		return err
	}
	return k.YieldPositions.Set(ctx, position.ListingID, string(raw))
}

// GetYieldPosition fetches a listing's yield position.
func (k Keeper) GetYieldPosition(ctx context.Context, listingID string) (types.YieldPosition, error) {
	raw, err := k.YieldPositions.Get(ctx, listingID)
	if err != nil {
		return types.YieldPosition{}, types.ErrNotFound.Wrapf("yield position for %s", listingID)
	}
	return decodeYieldPosition(raw)
}

func decodeYieldPosition(raw string) (types.YieldPosition, error) {
	var position types.YieldPosition
	if err := json.Unmarshal([]byte(raw), &position); err != nil {
		return types.YieldPosition{}, fmt.Errorf("decode yield position: %w", err)
	}
	return position, nil
}

// ---------------------------------------------------------------------------
// Sequences
// ---------------------------------------------------------------------------

func (k Keeper) nextListingID(ctx context.Context) (string, uint64, error) {
	count, err := k.ListingCount.Get(ctx)
	if err != nil {
		count = 0
	}
	count++
	if err := k.ListingCount.Set(ctx, count); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("listing-%d", count), count, nil
}

func (k Keeper) nextPassID(ctx context.Context) (string, uint64, error) {
	count, err := k.PassCount.Get(ctx)
	if err != nil {
		count = 0
	}
	count++
	if err := k.PassCount.Set(ctx, count); err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("pass-%d", count), count, nil
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// ListListings returns every listing, in key order.
func (k Keeper) ListListings(ctx context.Context) ([]types.Listing, error) {
	out := []types.Listing{}
	err := k.Listings.Walk(ctx, nil, func(_ string, raw string) (bool, error) {
		listing, err := decodeListing(raw)
		if err != nil {
			return true, err
		}
		out = append(out, listing)
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PassesByOwner returns every pass held by owner.
func (k Keeper) PassesByOwner(ctx context.Context, owner string) ([]types.SupporterPass, error) {
	out := []types.SupporterPass{}
	err := k.Passes.Walk(ctx, nil, func(_ string, raw string) (bool, error) {
		pass, err := decodePass(raw)
		if err != nil {
			return true, err
		}
		if pass.Owner == owner {
			out = append(out, pass)
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ClaimableAmount reports what a pass could claim right now without
// mutating anything.
func (k Keeper) ClaimableAmount(ctx context.Context, listingID, passID string) (sdkmath.Int, error) {
	pass, err := k.GetPass(ctx, passID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if pass.ListingID != listingID {
		return sdkmath.ZeroInt(), types.ErrWrongListing.Wrapf("pass %s belongs to %s", passID, pass.ListingID)
	}
	if pass.Redeemed {
		return sdkmath.ZeroInt(), nil
	}
	vault, err := k.GetRewardVault(ctx, listingID)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return types.Claimable(pass.Shares, vault.GlobalIndex, pass.ClaimIndex)
}

// HasRouteGrant reports whether grantee may route revenue into listingID.
func (k Keeper) HasRouteGrant(ctx context.Context, listingID, grantee string) bool {
	ok, err := k.RouteGrants.Has(ctx, types.PairKey(listingID, grantee))
	return err == nil && ok
}

// CountListings returns active and finalized listing counts.
func (k Keeper) CountListings(ctx context.Context) (active int, finalized int) {
	_ = k.Listings.Walk(ctx, nil, func(_ string, raw string) (bool, error) {
		listing, err := decodeListing(raw)
		if err != nil {
			return false, nil
		}
		switch listing.Status {
		case types.ListingStatusActive:
			active++
		case types.ListingStatusFinalized:
			finalized++
		}
		return false, nil
	})
	return active, finalized
}

// CountOpenPasses returns the number of passes not yet redeemed.
func (k Keeper) CountOpenPasses(ctx context.Context) (open int) {
	_ = k.Passes.Walk(ctx, nil, func(_ string, raw string) (bool, error) {
		pass, err := decodePass(raw)
		if err != nil {
			return false, nil
		}
		if !pass.Redeemed {
			open++
		}
		return false, nil
	})
	return open
}

// ---------------------------------------------------------------------------
// Context helpers
// ---------------------------------------------------------------------------

func unwrapSDKContext(ctx context.Context) (sdk.Context, bool) {
	if ctx == nil {
		return sdk.Context{}, false
	}
	if sdkCtx, ok := ctx.(sdk.Context); ok {
		return sdkCtx, true
	}
	if val := ctx.Value(sdk.SdkContextKey); val != nil {
		if sdkCtx, ok := val.(sdk.Context); ok {
			return sdkCtx, true
		}
	}
	return sdk.Context{}, false
}

func contextNow(ctx context.Context) (sdk.Context, time.Time) {
	if sdkCtx, ok := unwrapSDKContext(ctx); ok {
		return sdkCtx, sdkCtx.BlockTime()
	}
	return sdk.Context{}, time.Now().UTC()
}

func emitEventIfPossible(ctx sdk.Context, event sdk.Event) {
	if em := ctx.EventManager(); em != nil {
		em.EmitEvent(event)
	}
}

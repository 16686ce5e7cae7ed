package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"cosmossdk.io/collections"
	"cosmossdk.io/core/store"
	"github.com/cosmos/cosmos-sdk/codec"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/tide/types"
)

// Keeper manages protocol-wide configuration: the global pause switch and
// the treasury destination for raise fees and yield cuts.
type Keeper struct {
	cdc          codec.Codec
	storeService store.KVStoreService
	authority    string

	// defaultTreasury receives protocol revenue until governance points the
	// config somewhere else.
	defaultTreasury string

	ProtocolConfig collections.Item[string]
	CouncilConfig  collections.Item[string]
}

// NewKeeper creates a new tide protocol-config keeper.
func NewKeeper(
	cdc codec.Codec,
	storeService store.KVStoreService,
	authority string,
	defaultTreasury string,
) Keeper {
	sb := collections.NewSchemaBuilder(storeService)

	return Keeper{
		cdc:             cdc,
		storeService:    storeService,
		authority:       authority,
		defaultTreasury: defaultTreasury,
		ProtocolConfig: collections.NewItem(
			sb,
			collections.NewPrefix(types.ProtocolConfigKey),
			"protocol_config",
			collections.StringValue,
		),
		CouncilConfig: collections.NewItem(
			sb,
			collections.NewPrefix(types.CouncilConfigKey),
			"pause_council_config",
			collections.StringValue,
		),
	}
}

func (k Keeper) GetAuthority() string {
	return k.authority
}

// SetCouncilConfig stores the pause council structure.
func (k Keeper) SetCouncilConfig(
	ctx context.Context,
	requester string,
	config types.PauseCouncilConfig,
) error {
	if strings.TrimSpace(requester) != strings.TrimSpace(k.authority) {
		return fmt.Errorf("unauthorized council config update")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return k.CouncilConfig.Set(ctx, string(raw))
}

// GetCouncilConfig returns the configured pause council.
func (k Keeper) GetCouncilConfig(ctx context.Context) (*types.PauseCouncilConfig, error) {
	raw, err := k.CouncilConfig.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("pause council is not configured")
	}
	var config types.PauseCouncilConfig
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return nil, fmt.Errorf("decode council config: %w", err)
	}
	return &config, nil
}

// MsgPauseProtocol freezes deposits and activation everywhere if the signer
// quorum satisfies the council threshold.
func (k Keeper) MsgPauseProtocol(ctx context.Context, msg types.MsgPauseProtocol) error {
	if err := msg.ValidateBasic(); err != nil {
		return err
	}
	config, err := k.GetCouncilConfig(ctx)
	if err != nil {
		return err
	}
	if err := verifyCouncilSigners(config, msg.Signers); err != nil {
		return err
	}
	if !containsSigner(msg.Signers, msg.Requester) {
		return fmt.Errorf("requester must be part of signer set")
	}

	sdkCtx, now := contextNow(ctx)
	current, err := k.GetProtocolConfig(ctx)
	if err != nil {
		return err
	}
	current.Paused = true
	current.PausedReason = strings.TrimSpace(msg.Reason)
	current.PausedBy = normalizeSigners(msg.Signers)
	current.PausedByRequester = strings.TrimSpace(msg.Requester)
	current.PausedAtHeight = sdkCtx.BlockHeight()
	current.PausedAtUnix = now.Unix()
	if err := k.setProtocolConfig(ctx, current); err != nil {
		return err
	}

	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"tide_protocol_paused",
		sdk.NewAttribute("reason", current.PausedReason),
		sdk.NewAttribute("requester", current.PausedByRequester),
		sdk.NewAttribute("signers", strings.Join(current.PausedBy, ",")),
	))

	return nil
}

// ResumeProtocol clears the global pause after remediation.
func (k Keeper) ResumeProtocol(ctx context.Context, requester string) error {
	if strings.TrimSpace(requester) != strings.TrimSpace(k.authority) {
		return fmt.Errorf("unauthorized protocol resume request")
	}
	config, err := k.GetProtocolConfig(ctx)
	if err != nil {
		return err
	}
	config.Paused = false
	config.PausedReason = ""
	config.PausedBy = nil
	config.PausedByRequester = ""
	config.PausedAtHeight = 0
	config.PausedAtUnix = 0
	if err := k.setProtocolConfig(ctx, config); err != nil {
		return err
	}

	if sdkCtx, ok := unwrapSDKContext(ctx); ok {
		emitEventIfPossible(sdkCtx, sdk.NewEvent("tide_protocol_resumed"))
	}
	return nil
}

// SetTreasuryAddress redirects protocol revenue.
func (k Keeper) SetTreasuryAddress(ctx context.Context, requester, treasury string) error {
	if strings.TrimSpace(requester) != strings.TrimSpace(k.authority) {
		return fmt.Errorf("unauthorized treasury update")
	}
	treasury = strings.TrimSpace(treasury)
	if treasury == "" {
		return fmt.Errorf("treasury address cannot be empty")
	}
	config, err := k.GetProtocolConfig(ctx)
	if err != nil {
		return err
	}
	previous := config.TreasuryAddress
	config.TreasuryAddress = treasury
	if err := k.setProtocolConfig(ctx, config); err != nil {
		return err
	}

	if sdkCtx, ok := unwrapSDKContext(ctx); ok {
		emitEventIfPossible(sdkCtx, sdk.NewEvent(
			"tide_treasury_updated",
			sdk.NewAttribute("previous", previous),
			sdk.NewAttribute("treasury", treasury),
		))
	}
	return nil
}

// GetProtocolConfig returns the stored config, or a safe default pointing
// at the module treasury when nothing has been stored yet.
func (k Keeper) GetProtocolConfig(ctx context.Context) (types.ProtocolConfig, error) {
	raw, err := k.ProtocolConfig.Get(ctx)
	if err != nil {
		return types.ProtocolConfig{
			TreasuryAddress: k.defaultTreasury,
			Paused:          false,
		}, nil
	}
	var config types.ProtocolConfig
	if err := json.Unmarshal([]byte(raw), &config); err != nil {
		return types.ProtocolConfig{}, fmt.Errorf("decode protocol config: %w", err)
	}
	if strings.TrimSpace(config.TreasuryAddress) == "" {
		config.TreasuryAddress = k.defaultTreasury
	}
	return config, nil
}

// IsPaused reports the global pause flag. The launch module checks this on
// every deposit and activation.
func (k Keeper) IsPaused(ctx context.Context) bool {
	config, err := k.GetProtocolConfig(ctx)
	if err != nil {
		return false
	}
	return config.Paused
}

// TreasuryAddress reports where protocol revenue goes.
func (k Keeper) TreasuryAddress(ctx context.Context) string {
	config, err := k.GetProtocolConfig(ctx)
	if err != nil {
		return k.defaultTreasury
	}
	return config.TreasuryAddress
}

func (k Keeper) setProtocolConfig(ctx context.Context, config types.ProtocolConfig) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return err
	}
	return k.ProtocolConfig.Set(ctx, string(raw))
}

func verifyCouncilSigners(config *types.PauseCouncilConfig, signers []string) error {
	if config == nil {
		return fmt.Errorf("pause council config is nil")
	}

	memberSet := make(map[string]struct{}, len(config.Members))
	for _, member := range config.Members {
		memberSet[strings.TrimSpace(member.Address)] = struct{}{}
	}

	normalized := normalizeSigners(signers)
	if len(normalized) < config.Threshold {
		return fmt.Errorf("insufficient signatures: got %d, need %d", len(normalized), config.Threshold)
	}
	for _, signer := range normalized {
		if _, ok := memberSet[signer]; !ok {
			return fmt.Errorf("signer %s is not a pause council member", signer)
		}
	}
	return nil
}

func normalizeSigners(signers []string) []string {
	seen := make(map[string]struct{}, len(signers))
	out := make([]string, 0, len(signers))
	for _, signer := range signers {
		signer = strings.TrimSpace(signer)
		if signer == "" {
			continue
		}
		if _, ok := seen[signer]; ok {
			continue
		}
		seen[signer] = struct{}{}
		out = append(out, signer)
	}
	sort.Strings(out)
	return out
}

func containsSigner(signers []string, target string) bool {
	target = strings.TrimSpace(target)
	for _, signer := range signers {
		if strings.TrimSpace(signer) == target {
			return true
		}
	}
	return false
}

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

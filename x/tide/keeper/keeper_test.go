package keeper_test

import (
	"testing"
	"time"

	"cosmossdk.io/log"
	storemetrics "cosmossdk.io/store/metrics"
	"cosmossdk.io/store/rootmulti"
	storetypes "cosmossdk.io/store/types"
	tmproto "github.com/cometbft/cometbft/proto/tendermint/types"
	dbm "github.com/cosmos/cosmos-db"
	"github.com/cosmos/cosmos-sdk/codec"
	codectypes "github.com/cosmos/cosmos-sdk/codec/types"
	"github.com/cosmos/cosmos-sdk/runtime"
	"github.com/cosmos/cosmos-sdk/std"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/require"

	"github.com/tide-protocol/tidechain/x/tide/keeper"
	"github.com/tide-protocol/tidechain/x/tide/types"
)

const (
	testAuthority = "tide1gov"
	testTreasury  = "tide1treasurymoduleaddr"
)

func setupKeeper(t *testing.T) (keeper.Keeper, sdk.Context) {
	t.Helper()

	storeKey := storetypes.NewKVStoreKey(types.StoreKey)
	db := dbm.NewMemDB()
	cms := rootmulti.NewStore(db, log.NewNopLogger(), storemetrics.NoOpMetrics{})
	cms.MountStoreWithDB(storeKey, storetypes.StoreTypeIAVL, nil)
	require.NoError(t, cms.LoadLatestVersion())

	header := tmproto.Header{
		ChainID: "tidechain-test-1",
		Height:  1,
		Time:    time.Unix(1_770_000_000, 0).UTC(),
	}
	ctx := sdk.NewContext(cms, header, false, log.NewNopLogger())

	reg := codectypes.NewInterfaceRegistry()
	std.RegisterInterfaces(reg)
	cdc := codec.NewProtoCodec(reg)

	k := keeper.NewKeeper(
		cdc,
		runtime.NewKVStoreService(storeKey),
		testAuthority,
		testTreasury,
	)

	return k, ctx
}

func testCouncil() types.PauseCouncilConfig {
	return types.PauseCouncilConfig{
		Threshold: 3,
		Members: []types.PauseCouncilMember{
			{Address: "council-1", Role: types.RoleGuardian},
			{Address: "council-2", Role: types.RoleGuardian},
			{Address: "council-3", Role: types.RoleFoundation},
			{Address: "council-4", Role: types.RoleAuditor},
		},
	}
}

func TestProtocolConfigDefaultsToModuleTreasury(t *testing.T) {
	k, ctx := setupKeeper(t)

	require.False(t, k.IsPaused(ctx))
	require.Equal(t, testTreasury, k.TreasuryAddress(ctx))
}

func TestCouncilQuorumPausesProtocol(t *testing.T) {
	k, ctx := setupKeeper(t)
	require.NoError(t, k.SetCouncilConfig(ctx, testAuthority, testCouncil()))

	err := k.MsgPauseProtocol(ctx, types.MsgPauseProtocol{
		Requester: "council-1",
		Reason:    "reward routing anomaly under investigation",
		Signers:   []string{"council-1", "council-2", "council-4"},
	})
	require.NoError(t, err)
	require.True(t, k.IsPaused(ctx))

	config, err := k.GetProtocolConfig(ctx)
	require.NoError(t, err)
	require.Equal(t, "council-1", config.PausedByRequester)
	require.Equal(t, int64(1), config.PausedAtHeight)
}

func TestPauseRejectedBelowQuorum(t *testing.T) {
	k, ctx := setupKeeper(t)
	require.NoError(t, k.SetCouncilConfig(ctx, testAuthority, testCouncil()))

	err := k.MsgPauseProtocol(ctx, types.MsgPauseProtocol{
		Requester: "council-1",
		Reason:    "anomaly",
		Signers:   []string{"council-1", "council-2"},
	})
	require.Error(t, err)
	require.False(t, k.IsPaused(ctx))
}

func TestPauseRejectsNonCouncilSigner(t *testing.T) {
	k, ctx := setupKeeper(t)
	require.NoError(t, k.SetCouncilConfig(ctx, testAuthority, testCouncil()))

	err := k.MsgPauseProtocol(ctx, types.MsgPauseProtocol{
		Requester: "council-1",
		Reason:    "anomaly",
		Signers:   []string{"council-1", "council-2", "intruder"},
	})
	require.Error(t, err)
	require.False(t, k.IsPaused(ctx))
}

func TestOnlyAuthorityResumesProtocol(t *testing.T) {
	k, ctx := setupKeeper(t)
	require.NoError(t, k.SetCouncilConfig(ctx, testAuthority, testCouncil()))
	require.NoError(t, k.MsgPauseProtocol(ctx, types.MsgPauseProtocol{
		Requester: "council-1",
		Reason:    "anomaly",
		Signers:   []string{"council-1", "council-2", "council-3"},
	}))

	require.Error(t, k.ResumeProtocol(ctx, "council-1"))
	require.True(t, k.IsPaused(ctx))

	require.NoError(t, k.ResumeProtocol(ctx, testAuthority))
	require.False(t, k.IsPaused(ctx))
}

func TestTreasuryUpdateSurvivesPauseCycle(t *testing.T) {
	k, ctx := setupKeeper(t)
	require.NoError(t, k.SetCouncilConfig(ctx, testAuthority, testCouncil()))

	require.Error(t, k.SetTreasuryAddress(ctx, "council-1", "tide1other"))
	require.NoError(t, k.SetTreasuryAddress(ctx, testAuthority, "tide1other"))
	require.Equal(t, "tide1other", k.TreasuryAddress(ctx))

	require.NoError(t, k.MsgPauseProtocol(ctx, types.MsgPauseProtocol{
		Requester: "council-2",
		Reason:    "anomaly",
		Signers:   []string{"council-1", "council-2", "council-3"},
	}))
	require.NoError(t, k.ResumeProtocol(ctx, testAuthority))
	require.Equal(t, "tide1other", k.TreasuryAddress(ctx))
}

func TestCouncilConfigValidation(t *testing.T) {
	k, ctx := setupKeeper(t)

	bad := testCouncil()
	bad.Threshold = 2 // not a majority of 4
	require.Error(t, k.SetCouncilConfig(ctx, testAuthority, bad))

	bad = testCouncil()
	bad.Members[1].Address = bad.Members[0].Address
	require.Error(t, k.SetCouncilConfig(ctx, testAuthority, bad))

	require.Error(t, k.SetCouncilConfig(ctx, "tide1random", testCouncil()))
}

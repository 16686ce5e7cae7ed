package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/cosmos/cosmos-sdk/client"
	genutilcli "github.com/cosmos/cosmos-sdk/x/genutil/client/cli"
	genutiltypes "github.com/cosmos/cosmos-sdk/x/genutil/types"

	launchtypes "github.com/tide-protocol/tidechain/x/launch/types"
)

func genesisMigrationMap() genutiltypes.MigrationMap {
	migrations := genutiltypes.MigrationMap{}
	for k, v := range genutilcli.MigrationMap {
		migrations[k] = v
	}

	// App-level genesis migration for v0.2.0. The launch module uses plain
	// JSON genesis records, so the migration marshals without the codec.
	migrations["v0.2.0"] = func(state genutiltypes.AppMap, clientCtx client.Context) (genutiltypes.AppMap, error) {
		bz, ok := state[launchtypes.ModuleName]
		if !ok || len(bz) == 0 {
			out, err := json.Marshal(launchtypes.DefaultGenesis())
			if err != nil {
				return nil, err
			}
			state[launchtypes.ModuleName] = out
			return state, nil
		}

		var gs launchtypes.GenesisState
		if err := json.Unmarshal(bz, &gs); err != nil {
			return nil, fmt.Errorf("launch genesis unmarshal: %w", err)
		}

		updated := false
		defaults := launchtypes.DefaultParams()
		if gs.Params.MaxRaiseFeeBps == 0 {
			gs.Params.MaxRaiseFeeBps = defaults.MaxRaiseFeeBps
			updated = true
		}
		if gs.Params.MaxInitialReleaseBps == 0 {
			gs.Params.MaxInitialReleaseBps = defaults.MaxInitialReleaseBps
			updated = true
		}
		if gs.Params.MaxTrancheCount == 0 {
			gs.Params.MaxTrancheCount = defaults.MaxTrancheCount
			updated = true
		}
		if gs.Params.MinTrancheIntervalSecs == 0 {
			gs.Params.MinTrancheIntervalSecs = defaults.MinTrancheIntervalSecs
			updated = true
		}
		if gs.Params.DefaultDenom == "" {
			gs.Params.DefaultDenom = defaults.DefaultDenom
			updated = true
		}
		if gs.Params.MinDepositFloor.IsNil() {
			gs.Params.MinDepositFloor = defaults.MinDepositFloor
			updated = true
		}

		if updated {
			out, err := json.Marshal(&gs)
			if err != nil {
				return nil, fmt.Errorf("launch genesis marshal: %w", err)
			}
			state[launchtypes.ModuleName] = out
		}

		return state, nil
	}

	return migrations
}

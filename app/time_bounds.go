package app

import (
	"encoding/binary"
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"

	launchtypes "github.com/tide-protocol/tidechain/x/launch/types"
)

func (app *TideApp) persistLastBlockTime(ctx sdk.Context) {
	if ctx.BlockTime().IsZero() {
		return
	}

	store := ctx.KVStore(app.keys[launchtypes.StoreKey])
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(ctx.BlockTime().UnixNano()))
	store.Set(launchtypes.LastBlockTimeKey, buf)
}

func (app *TideApp) lastBlockTime(ctx sdk.Context) (time.Time, bool) {
	store := ctx.KVStore(app.keys[launchtypes.StoreKey])
	bz := store.Get(launchtypes.LastBlockTimeKey)
	if len(bz) != 8 {
		return time.Time{}, false
	}

	nanos := int64(binary.BigEndian.Uint64(bz))
	if nanos <= 0 {
		return time.Time{}, false
	}

	return time.Unix(0, nanos).UTC(), true
}

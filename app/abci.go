package app

import (
	"time"

	sdk "github.com/cosmos/cosmos-sdk/types"
)

// slowBlockThreshold is how far apart consecutive block times can be before
// the gap is logged. Gaps like this usually mean the node was down or the
// chain halted.
const slowBlockThreshold = 5 * time.Minute

// refreshLaunchGauges recomputes the launch module's state-derived gauges at
// the start of each block. Counters track events as they happen; gauges are
// rebuilt from state so restarts and genesis imports report correctly.
func (app *TideApp) refreshLaunchGauges(ctx sdk.Context) {
	metrics := app.LaunchKeeper.Metrics()
	if metrics == nil {
		return
	}

	active, finalized := app.LaunchKeeper.CountListings(ctx)
	metrics.ActiveListings.Set(int64(active))
	metrics.FinalizedListings.Set(int64(finalized))
	metrics.OpenPasses.Set(int64(app.LaunchKeeper.CountOpenPasses(ctx)))

	if prev, ok := app.lastBlockTime(ctx); ok {
		if gap := ctx.BlockTime().Sub(prev); gap > slowBlockThreshold {
			app.Logger().Warn("Large gap between blocks",
				"gap", gap.String(),
				"height", ctx.BlockHeight(),
			)
		}
	}
}

// emitLaunchMetricsEvent publishes a metrics snapshot event so off-chain
// indexers can follow module activity without scraping the HTTP endpoint.
func (app *TideApp) emitLaunchMetricsEvent(ctx sdk.Context) {
	metrics := app.LaunchKeeper.Metrics()
	if metrics == nil {
		return
	}
	metrics.EmitMetricsEvent(ctx)
}

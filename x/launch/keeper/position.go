package keeper

import (
	"context"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// TransferPass moves a supporter pass to a new owner. The claim cursor
// travels with the pass, so anything accrued but unclaimed transfers too.
// Redeemed passes cannot move.
func (k Keeper) TransferPass(ctx context.Context, msg types.MsgTransferPass) (types.SupporterPass, error) {
	if err := msg.ValidateBasic(); err != nil {
		return types.SupporterPass{}, err
	}
	pass, err := k.GetPass(ctx, msg.PassID)
	if err != nil {
		return types.SupporterPass{}, err
	}
	if pass.Owner != msg.From {
		return types.SupporterPass{}, types.ErrNotAuthorized.Wrapf("pass %s is not held by %s", msg.PassID, msg.From)
	}
	if pass.Redeemed {
		return types.SupporterPass{}, types.ErrInvalidState.Wrapf("pass %s already redeemed", msg.PassID)
	}

	pass.Owner = msg.To
	if err := k.setPass(ctx, pass); err != nil {
		return types.SupporterPass{}, err
	}

	sdkCtx, _ := contextNow(ctx)
	k.metrics.PassesTransferred.Inc()
	k.auditLogger.AuditPassTransferred(sdkCtx, pass.ListingID, msg.PassID, msg.From, msg.To)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_pass_transferred",
		sdk.NewAttribute("listing_id", pass.ListingID),
		sdk.NewAttribute("pass_id", msg.PassID),
		sdk.NewAttribute("from", msg.From),
		sdk.NewAttribute("to", msg.To),
	))
	return pass, nil
}

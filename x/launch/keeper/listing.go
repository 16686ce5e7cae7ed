package keeper

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/tide-protocol/tidechain/x/launch/types"
)

// CreateListing registers a new raise in Draft state and provisions its
// capital vault, reward vault, and yield position. The caller receives the
// admin and route capabilities for the listing; the config hash recorded
// here pins every later config presentation.
func (k Keeper) CreateListing(ctx context.Context, msg types.MsgCreateListing) (types.Listing, types.AdminCap, types.RouteCap, error) {
	if err := msg.ValidateBasic(); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}
	params := k.GetParams(ctx)
	if err := params.CheckConfig(msg.Config); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}

	sdkCtx, now := contextNow(ctx)

	id, number, err := k.nextListingID(ctx)
	if err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}

	listing := types.Listing{
		ID:            id,
		ListingNumber: number,
		Issuer:        msg.Issuer,
		Beneficiary:   msg.Beneficiary,
		Status:        types.ListingStatusDraft,
		Config:        msg.Config,
		ConfigHash:    msg.Config.Hash(),
		CreatedAtUnix: now.Unix(),
	}
	if err := k.setListing(ctx, listing); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}
	if err := k.setCapitalVault(ctx, types.NewCapitalVault(id, msg.Config.RaiseFeeBps)); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}
	if err := k.setRewardVault(ctx, types.NewRewardVault(id)); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}
	if err := k.setYieldPosition(ctx, types.NewYieldPosition(id)); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}

	// The issuer and the module account start route-granted: the issuer so
	// it can push protocol revenue, the module so harvests can reach the
	// reward index through the same gate.
	if err := k.RouteGrants.Set(ctx, types.PairKey(id, msg.Issuer)); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}
	if err := k.RouteGrants.Set(ctx, types.PairKey(id, k.moduleAddress)); err != nil {
		return types.Listing{}, types.AdminCap{}, types.RouteCap{}, err
	}

	k.metrics.ListingsCreated.Inc()
	k.auditLogger.AuditListingCreated(sdkCtx, id, msg.Issuer, msg.Beneficiary, msg.Config.Denom, msg.Config.RaiseFeeBps)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_created",
		sdk.NewAttribute("listing_id", id),
		sdk.NewAttribute("issuer", msg.Issuer),
		sdk.NewAttribute("beneficiary", msg.Beneficiary),
		sdk.NewAttribute("denom", msg.Config.Denom),
		sdk.NewAttribute("config_hash", listing.ConfigHash),
	))

	return listing, types.AdminCap{ListingID: id}, types.RouteCap{ListingID: id}, nil
}

// ActivateListing opens a Draft listing for deposits. Blocked while the
// listing or the protocol is paused.
func (k Keeper) ActivateListing(ctx context.Context, cap types.AdminCap, listingID, requester string) (types.Listing, error) {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return types.Listing{}, err
	}
	if listing.Status != types.ListingStatusDraft {
		return types.Listing{}, types.ErrInvalidState.Wrapf("listing %s is %s, expected %s", listingID, listing.Status, types.ListingStatusDraft)
	}
	if listing.Paused {
		return types.Listing{}, types.ErrPaused.Wrapf("listing %s is paused", listingID)
	}
	if k.protocolKeeper != nil && k.protocolKeeper.IsPaused(ctx) {
		return types.Listing{}, types.ErrPaused.Wrap("protocol is paused")
	}

	sdkCtx, now := contextNow(ctx)
	listing.Status = types.ListingStatusActive
	listing.ActivatedAtUnix = now.Unix()
	if err := k.setListing(ctx, listing); err != nil {
		return types.Listing{}, err
	}

	k.metrics.ListingsActivated.Inc()
	k.auditLogger.AuditListingActivated(sdkCtx, listingID, requester)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_activated",
		sdk.NewAttribute("listing_id", listingID),
	))
	return listing, nil
}

// PauseListing halts deposits and activation for one listing. Claims and
// tranche releases keep working while paused.
func (k Keeper) PauseListing(ctx context.Context, cap types.AdminCap, listingID, requester string) error {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return err
	}
	if listing.Status.IsTerminal() {
		return types.ErrInvalidState.Wrapf("listing %s is %s", listingID, listing.Status)
	}
	if listing.Paused {
		return nil
	}
	listing.Paused = true
	if err := k.setListing(ctx, listing); err != nil {
		return err
	}

	sdkCtx, _ := contextNow(ctx)
	k.auditLogger.AuditListingPaused(sdkCtx, listingID, requester)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_paused",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("requester", requester),
	))
	return nil
}

// ResumeListing clears a listing-level pause.
func (k Keeper) ResumeListing(ctx context.Context, cap types.AdminCap, listingID, requester string) error {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return err
	}
	if !listing.Paused {
		return nil
	}
	listing.Paused = false
	if err := k.setListing(ctx, listing); err != nil {
		return err
	}

	sdkCtx, _ := contextNow(ctx)
	k.auditLogger.AuditListingResumed(sdkCtx, listingID, requester)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_resumed",
		sdk.NewAttribute("listing_id", listingID),
	))
	return nil
}

// CancelListing moves a Draft or Active listing to the terminal Cancelled
// state. Backers recover principal afterwards through RefundDeposit.
func (k Keeper) CancelListing(ctx context.Context, cap types.AdminCap, listingID, requester, reason string) (types.Listing, error) {
	listing, err := k.authorizeAdmin(ctx, cap, listingID, requester)
	if err != nil {
		return types.Listing{}, err
	}
	if !listing.Status.CanTransitionTo(types.ListingStatusCancelled) {
		return types.Listing{}, types.ErrInvalidState.Wrapf("cannot cancel listing in state %s", listing.Status)
	}

	sdkCtx, now := contextNow(ctx)
	listing.Status = types.ListingStatusCancelled
	listing.ClosedAtUnix = now.Unix()
	if err := k.setListing(ctx, listing); err != nil {
		return types.Listing{}, err
	}

	k.metrics.ListingsCancelled.Inc()
	k.auditLogger.AuditListingCancelled(sdkCtx, listingID, requester, reason)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_cancelled",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("reason", reason),
	))
	return listing, nil
}

// CompleteListing moves a fully released listing to the terminal Completed
// state. Anyone may call it once every tranche has been released; reward
// claims stay open afterwards.
func (k Keeper) CompleteListing(ctx context.Context, listingID string) (types.Listing, error) {
	listing, err := k.GetListing(ctx, listingID)
	if err != nil {
		return types.Listing{}, err
	}
	if listing.Status != types.ListingStatusFinalized {
		return types.Listing{}, types.ErrInvalidState.Wrapf("listing %s is %s, expected %s", listingID, listing.Status, types.ListingStatusFinalized)
	}
	vault, err := k.GetCapitalVault(ctx, listingID)
	if err != nil {
		return types.Listing{}, err
	}
	if int(vault.TranchesReleased) != len(vault.Tranches) {
		return types.Listing{}, types.ErrInvalidState.Wrapf("%d of %d tranches released", vault.TranchesReleased, len(vault.Tranches))
	}

	sdkCtx, now := contextNow(ctx)
	listing.Status = types.ListingStatusCompleted
	listing.ClosedAtUnix = now.Unix()
	if err := k.setListing(ctx, listing); err != nil {
		return types.Listing{}, err
	}

	k.metrics.ListingsCompleted.Inc()
	k.auditLogger.AuditListingCompleted(sdkCtx, listingID)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_listing_completed",
		sdk.NewAttribute("listing_id", listingID),
	))
	return listing, nil
}

// GrantRevenueRoute authorizes grantee to deposit revenue into the
// listing's reward vault. Only the listing issuer, holding the admin
// capability, may extend the grant set.
func (k Keeper) GrantRevenueRoute(ctx context.Context, cap types.AdminCap, listingID, requester, grantee string) error {
	if _, err := k.authorizeAdmin(ctx, cap, listingID, requester); err != nil {
		return err
	}
	if strings.TrimSpace(grantee) == "" {
		return fmt.Errorf("grantee cannot be empty")
	}
	if err := k.RouteGrants.Set(ctx, types.PairKey(listingID, grantee)); err != nil {
		return err
	}

	sdkCtx, _ := contextNow(ctx)
	k.auditLogger.AuditRouteGranted(sdkCtx, listingID, requester, grantee)
	emitEventIfPossible(sdkCtx, sdk.NewEvent(
		"launch_route_granted",
		sdk.NewAttribute("listing_id", listingID),
		sdk.NewAttribute("grantee", grantee),
	))
	return nil
}

// authorizeAdmin verifies the capability scope and that the requester is
// the listing issuer, then returns the listing.
func (k Keeper) authorizeAdmin(ctx context.Context, cap types.AdminCap, listingID, requester string) (types.Listing, error) {
	if cap.ListingID != listingID {
		return types.Listing{}, types.ErrWrongListing.Wrapf("capability is scoped to %s", cap.ListingID)
	}
	listing, err := k.GetListing(ctx, listingID)
	if err != nil {
		return types.Listing{}, err
	}
	if strings.TrimSpace(requester) != strings.TrimSpace(listing.Issuer) {
		return types.Listing{}, types.ErrNotAuthorized.Wrapf("requester is not the issuer of %s", listingID)
	}
	return listing, nil
}

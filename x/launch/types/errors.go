package types

import (
	errorsmod "cosmossdk.io/errors"
)

// Launch module sentinel errors. Callers branch on these with errors.Is, so
// every distinct failure the module can report has its own registration.
var (
	// ErrInvalidState rejects an operation the listing's current lifecycle
	// state does not permit.
	ErrInvalidState = errorsmod.Register(ModuleName, 2, "invalid listing state")

	// ErrPaused rejects deposits and activation while the listing or the
	// whole protocol is paused.
	ErrPaused = errorsmod.Register(ModuleName, 3, "listing paused")

	// ErrInvalidAmount rejects zero, negative, or below-minimum amounts.
	ErrInvalidAmount = errorsmod.Register(ModuleName, 4, "invalid amount")

	// ErrNothingToClaim reports a claim that would pay zero. This is a
	// normal outcome for an up-to-date pass, not a fault.
	ErrNothingToClaim = errorsmod.Register(ModuleName, 5, "nothing to claim")

	// ErrNotAuthorized rejects callers without the required capability or
	// ownership.
	ErrNotAuthorized = errorsmod.Register(ModuleName, 6, "not authorized")

	// ErrTrancheNotReady rejects a release before its scheduled time, or a
	// sweep that found no eligible tranche.
	ErrTrancheNotReady = errorsmod.Register(ModuleName, 7, "tranche not ready")

	// ErrAlreadyReleased rejects a second release of the same tranche.
	ErrAlreadyReleased = errorsmod.Register(ModuleName, 8, "tranche already released")

	// ErrAlreadyCollected rejects a second raise-fee collection.
	ErrAlreadyCollected = errorsmod.Register(ModuleName, 9, "raise fee already collected")

	// ErrInsufficientBalance rejects withdrawals exceeding vault holdings.
	ErrInsufficientBalance = errorsmod.Register(ModuleName, 10, "insufficient vault balance")

	// ErrOverflow reports checked arithmetic exceeding the working width.
	ErrOverflow = errorsmod.Register(ModuleName, 11, "arithmetic overflow")

	// ErrDivisionByZero reports a zero divisor in checked arithmetic.
	ErrDivisionByZero = errorsmod.Register(ModuleName, 12, "division by zero")

	// ErrWrongListing rejects a capability presented against a listing it
	// was not issued for.
	ErrWrongListing = errorsmod.Register(ModuleName, 13, "capability scoped to a different listing")

	// ErrNotFound reports a missing listing, vault, or pass record.
	ErrNotFound = errorsmod.Register(ModuleName, 14, "record not found")

	// ErrAlreadyFinalized rejects a second schedule finalization.
	ErrAlreadyFinalized = errorsmod.Register(ModuleName, 15, "schedule already finalized")

	// ErrConfigMismatch rejects a presented config whose hash does not match
	// the one recorded at creation.
	ErrConfigMismatch = errorsmod.Register(ModuleName, 16, "config hash mismatch")
)

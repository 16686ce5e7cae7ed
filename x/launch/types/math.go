package types

import (
	"math/big"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"
)

// ---------------------------------------------------------------------------
// Accounting math
// ---------------------------------------------------------------------------
// Pure integer arithmetic for the launch module: pro-rata share issuance,
// the cumulative reward-per-share index, basis-point splits, and tranche
// schedule computation. No floating point is ever used. Percentages are
// expressed in basis points (bps) where 10000 bps == 100%.
//
// Intermediate products are computed at double width, so a*b may exceed 256
// bits as long as the quotient fits back into a 256-bit Int. Anything wider
// is reported as ErrOverflow rather than panicking; a zero divisor is
// reported as ErrDivisionByZero. Both always indicate a bug or a hostile
// input and abort the surrounding operation.
// ---------------------------------------------------------------------------

// BpsBase is the total basis points representing 100%.
const BpsBase int64 = 10000

// IndexPrecision is the fixed-point scale of reward indexes. One index unit
// is 10^-18 reward per share, so whole-token rewards survive division by
// large share counts without truncating to zero.
var IndexPrecision = sdkmath.NewIntWithDecimal(1, 18)

// MulDiv computes floor(a * b / divisor) with a double-width intermediate.
func MulDiv(a, b, divisor sdkmath.Int) (sdkmath.Int, error) {
	if divisor.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	if a.IsNegative() || b.IsNegative() || divisor.IsNegative() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrInvalidAmount, "mul-div operands must be non-negative")
	}
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	quotient := product.Quo(product, divisor.BigInt())
	if quotient.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrOverflow, "mul-div quotient exceeds %d bits", sdkmath.MaxBitLen)
	}
	return sdkmath.NewIntFromBigInt(quotient), nil
}

// MulDivUp computes ceil(a * b / divisor) with a double-width intermediate.
func MulDivUp(a, b, divisor sdkmath.Int) (sdkmath.Int, error) {
	if divisor.IsZero() {
		return sdkmath.ZeroInt(), ErrDivisionByZero
	}
	if a.IsNegative() || b.IsNegative() || divisor.IsNegative() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrInvalidAmount, "mul-div operands must be non-negative")
	}
	d := divisor.BigInt()
	product := new(big.Int).Mul(a.BigInt(), b.BigInt())
	product.Add(product, new(big.Int).Sub(d, big.NewInt(1)))
	quotient := product.Quo(product, d)
	if quotient.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrOverflow, "mul-div quotient exceeds %d bits", sdkmath.MaxBitLen)
	}
	return sdkmath.NewIntFromBigInt(quotient), nil
}

// checkedAdd returns a + b, reporting ErrOverflow instead of panicking when
// the sum leaves the 256-bit working width.
func checkedAdd(a, b sdkmath.Int) (sdkmath.Int, error) {
	sum := new(big.Int).Add(a.BigInt(), b.BigInt())
	if sum.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.ZeroInt(), errorsmod.Wrapf(ErrOverflow, "sum exceeds %d bits", sdkmath.MaxBitLen)
	}
	return sdkmath.NewIntFromBigInt(sum), nil
}

// SharesForDeposit converts a deposit amount into vault shares. The first
// deposit into an empty vault mints 1:1; later deposits mint pro rata
// against the principal already pooled, rounding down so a depositor can
// never mint more than their exact proportion.
func SharesForDeposit(amount, totalShares, totalPrincipal sdkmath.Int) (sdkmath.Int, error) {
	if !amount.IsPositive() {
		return sdkmath.ZeroInt(), errorsmod.Wrap(ErrInvalidAmount, "deposit amount must be positive")
	}
	if totalPrincipal.IsZero() || totalShares.IsZero() {
		return amount, nil
	}
	return MulDiv(amount, totalShares, totalPrincipal)
}

// Claimable computes the reward entitlement of a pass holding the given
// shares whose cursor sits at claimIndex against the vault's globalIndex.
// A cursor at or past the global index claims zero.
func Claimable(shares, globalIndex, claimIndex sdkmath.Int) (sdkmath.Int, error) {
	if globalIndex.LTE(claimIndex) {
		return sdkmath.ZeroInt(), nil
	}
	return MulDiv(shares, globalIndex.Sub(claimIndex), IndexPrecision)
}

// NextIndex advances a reward index by amount distributed over totalShares.
// With zero shares outstanding the index is returned unchanged; the caller
// decides what happens to the undistributable amount.
func NextIndex(globalIndex, amount, totalShares sdkmath.Int) (sdkmath.Int, error) {
	if totalShares.IsZero() {
		return globalIndex, nil
	}
	delta, err := MulDiv(amount, IndexPrecision, totalShares)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return checkedAdd(globalIndex, delta)
}

// SplitByBps splits total into (part, rest) where part is floor(total * bps
// / 10000) and rest is the exact remainder. part + rest == total always.
func SplitByBps(total sdkmath.Int, bps int64) (sdkmath.Int, sdkmath.Int, error) {
	if bps < 0 || bps > BpsBase {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), errorsmod.Wrapf(ErrInvalidAmount, "bps must be between 0 and %d, got %d", BpsBase, bps)
	}
	part, err := MulDiv(total, sdkmath.NewInt(bps), sdkmath.NewInt(BpsBase))
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}
	return part, total.Sub(part), nil
}

// RewardFromWithdrawal isolates the reward component of an unstake: whatever
// came back beyond the recorded principal. A shortfall yields zero reward,
// never a negative one.
func RewardFromWithdrawal(withdrawn, principal sdkmath.Int) sdkmath.Int {
	if withdrawn.LTE(principal) {
		return sdkmath.ZeroInt()
	}
	return withdrawn.Sub(principal)
}

// ScheduleBreakdown is the result of computing a release schedule. It is
// produced once at finalization and also serves queries and simulations.
type ScheduleBreakdown struct {
	Fee            sdkmath.Int // protocol raise fee, taken off the top
	Net            sdkmath.Int // total principal minus fee
	InitialRelease sdkmath.Int // unlocked at finalization time
	PerTranche     sdkmath.Int // each interval tranche before remainder
	Remainder      sdkmath.Int // integer-division dust, folded into the final tranche
	Tranches       []Tranche
}

// ComputeSchedule derives the full release schedule for a finalized raise.
//
// Integer math rules:
//   - fee     = totalPrincipal * RaiseFeeBps / 10000
//   - net     = totalPrincipal - fee
//   - initial = net * InitialReleaseBps / 10000, released at finalization
//   - the rest splits into TrancheCount equal tranches (floor division),
//     spaced TrancheIntervalSecs apart starting one interval after
//     finalization, with the division remainder folded into the final
//     tranche so the tranche amounts sum exactly to net
func ComputeSchedule(totalPrincipal sdkmath.Int, config ListingConfig, finalizedAtUnix int64) (ScheduleBreakdown, error) {
	if totalPrincipal.IsNegative() {
		return ScheduleBreakdown{}, errorsmod.Wrap(ErrInvalidAmount, "total principal must be non-negative")
	}
	if config.TrancheCount == 0 {
		return ScheduleBreakdown{}, errorsmod.Wrap(ErrInvalidAmount, "tranche count must be positive")
	}

	fee, net, err := SplitByBps(totalPrincipal, config.RaiseFeeBps)
	if err != nil {
		return ScheduleBreakdown{}, err
	}
	initial, vested, err := SplitByBps(net, config.InitialReleaseBps)
	if err != nil {
		return ScheduleBreakdown{}, err
	}

	count := int64(config.TrancheCount)
	per := vested.Quo(sdkmath.NewInt(count))
	remainder := vested.Sub(per.Mul(sdkmath.NewInt(count)))

	tranches := make([]Tranche, 0, count+1)
	tranches = append(tranches, Tranche{
		Amount:          initial,
		ReleaseAtUnix:   finalizedAtUnix,
		ReleasedAmount:  sdkmath.ZeroInt(),
		ShortfallAmount: sdkmath.ZeroInt(),
	})
	for i := int64(1); i <= count; i++ {
		amount := per
		if i == count {
			amount = per.Add(remainder)
		}
		tranches = append(tranches, Tranche{
			Amount:          amount,
			ReleaseAtUnix:   finalizedAtUnix + i*config.TrancheIntervalSecs,
			ReleasedAmount:  sdkmath.ZeroInt(),
			ShortfallAmount: sdkmath.ZeroInt(),
		})
	}

	return ScheduleBreakdown{
		Fee:            fee,
		Net:            net,
		InitialRelease: initial,
		PerTranche:     per,
		Remainder:      remainder,
		Tranches:       tranches,
	}, nil
}

package amm

import (
	"liquidityEngine/internal/fixedpoint"
	"liquidityEngine/internal/model"
)

// MaxFeeBps is the exclusive upper bound on a pool fee.
const MaxFeeBps uint16 = 10_000

// QuoteDeposit returns the X and Y a depositor must pay to mint lpAmount
// shares. An empty pool is bootstrapped 1:1:1; otherwise amounts are
// proportional to the reserves and rounded up.
func QuoteDeposit(r model.ReserveLedger, lpAmount uint64) (uint64, uint64, error) {
	if lpAmount == 0 {
		return 0, 0, ErrInvalidAmount
	}
	if r.Empty() {
		return lpAmount, lpAmount, nil
	}
	x, err := fixedpoint.MulDivCeil(lpAmount, r.ReserveX, r.LPSupply)
	if err != nil {
		return 0, 0, err
	}
	y, err := fixedpoint.MulDivCeil(lpAmount, r.ReserveY, r.LPSupply)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// QuoteBootstrap returns the shares minted for a first deposit of independent
// amounts: the floor of their geometric mean.
func QuoteBootstrap(amountX, amountY uint64) (uint64, error) {
	if amountX == 0 || amountY == 0 {
		return 0, ErrInvalidAmount
	}
	lp := fixedpoint.SqrtProduct(amountX, amountY)
	if lp == 0 {
		return 0, ErrInvalidAmount
	}
	return lp, nil
}

// QuoteWithdraw returns the X and Y paid out for burning lpAmount shares,
// rounded down.
func QuoteWithdraw(r model.ReserveLedger, lpAmount uint64) (uint64, uint64, error) {
	if lpAmount == 0 {
		return 0, 0, ErrInvalidAmount
	}
	if lpAmount > r.LPSupply {
		return 0, 0, ErrInsufficientShares
	}
	if lpAmount == r.LPSupply {
		return r.ReserveX, r.ReserveY, nil
	}
	x, err := fixedpoint.MulDivFloor(lpAmount, r.ReserveX, r.LPSupply)
	if err != nil {
		return 0, 0, err
	}
	y, err := fixedpoint.MulDivFloor(lpAmount, r.ReserveY, r.LPSupply)
	if err != nil {
		return 0, 0, err
	}
	return x, y, nil
}

// SwapQuote is the result of pricing a swap.
type SwapQuote struct {
	AmountIn   uint64 `json:"amount_in"`
	InAfterFee uint64 `json:"in_after_fee"`
	Fee        uint64 `json:"fee"`
	AmountOut  uint64 `json:"amount_out"`
}

// QuoteSwap prices a constant-product swap. The fee is deducted from the input
// before pricing and stays in the input reserve; the output is rounded down and
// can never drain the output reserve.
func QuoteSwap(r model.ReserveLedger, feeBps uint16, dir model.Direction, amountIn uint64) (SwapQuote, error) {
	if amountIn == 0 {
		return SwapQuote{}, ErrInvalidAmount
	}
	if feeBps >= MaxFeeBps {
		return SwapQuote{}, ErrInvalidFee
	}
	reserveIn, reserveOut, err := sides(r, dir)
	if err != nil {
		return SwapQuote{}, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return SwapQuote{}, ErrEmptyReserves
	}

	inAfterFee, err := fixedpoint.ApplyBps(amountIn, feeBps)
	if err != nil {
		return SwapQuote{}, err
	}
	// The full input must still fit in the reserve afterwards.
	if _, err := fixedpoint.Add(reserveIn, amountIn); err != nil {
		return SwapQuote{}, err
	}
	denominator, err := fixedpoint.Add(reserveIn, inAfterFee)
	if err != nil {
		return SwapQuote{}, err
	}
	// reserveOut - ceil(reserveIn*reserveOut/denominator) == floor(reserveOut*inAfterFee/denominator)
	amountOut, err := fixedpoint.MulDivFloor(reserveOut, inAfterFee, denominator)
	if err != nil {
		return SwapQuote{}, err
	}
	if amountOut == 0 {
		return SwapQuote{}, ErrInvalidAmount
	}
	if amountOut >= reserveOut {
		return SwapQuote{}, ErrArithmeticOverflow
	}

	return SwapQuote{
		AmountIn:   amountIn,
		InAfterFee: inAfterFee,
		Fee:        amountIn - inAfterFee,
		AmountOut:  amountOut,
	}, nil
}

func sides(r model.ReserveLedger, dir model.Direction) (uint64, uint64, error) {
	switch dir {
	case model.XToY:
		return r.ReserveX, r.ReserveY, nil
	case model.YToX:
		return r.ReserveY, r.ReserveX, nil
	default:
		return 0, 0, ErrInvalidAmount
	}
}

func applyDeposit(r model.ReserveLedger, x, y, lp uint64) (model.ReserveLedger, error) {
	var err error
	if r.ReserveX, err = fixedpoint.Add(r.ReserveX, x); err != nil {
		return r, err
	}
	if r.ReserveY, err = fixedpoint.Add(r.ReserveY, y); err != nil {
		return r, err
	}
	if r.LPSupply, err = fixedpoint.Add(r.LPSupply, lp); err != nil {
		return r, err
	}
	return r, nil
}

func applyWithdraw(r model.ReserveLedger, x, y, lp uint64) (model.ReserveLedger, error) {
	var err error
	if r.ReserveX, err = fixedpoint.Sub(r.ReserveX, x); err != nil {
		return r, err
	}
	if r.ReserveY, err = fixedpoint.Sub(r.ReserveY, y); err != nil {
		return r, err
	}
	if r.LPSupply, err = fixedpoint.Sub(r.LPSupply, lp); err != nil {
		return r, err
	}
	return r, nil
}

func applySwap(r model.ReserveLedger, dir model.Direction, amountIn, amountOut uint64) (model.ReserveLedger, error) {
	var err error
	switch dir {
	case model.XToY:
		if r.ReserveX, err = fixedpoint.Add(r.ReserveX, amountIn); err != nil {
			return r, err
		}
		r.ReserveY, err = fixedpoint.Sub(r.ReserveY, amountOut)
	case model.YToX:
		if r.ReserveY, err = fixedpoint.Add(r.ReserveY, amountIn); err != nil {
			return r, err
		}
		r.ReserveX, err = fixedpoint.Sub(r.ReserveX, amountOut)
	default:
		err = ErrInvalidAmount
	}
	return r, err
}

package amm

import (
	"errors"
	"fmt"

	"liquidityEngine/internal/fixedpoint"
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidFee         = errors.New("invalid fee")
	ErrInvalidAssetPair   = errors.New("invalid asset pair")
	ErrPoolAlreadyExists  = errors.New("pool already exists")
	ErrPoolNotFound       = errors.New("pool not found")
	ErrPoolLocked         = errors.New("pool locked")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrSlippageExceeded   = errors.New("slippage exceeded")
	ErrArithmeticOverflow = fixedpoint.ErrArithmeticOverflow
	ErrEmptyReserves      = errors.New("pool reserves are empty")
	ErrPoolNotEmpty       = errors.New("pool already has liquidity")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidOwner       = errors.New("invalid owner")
	ErrLedgerMismatch     = errors.New("custody does not match reserves")
)

// SlippageError reports the computed amount against the caller's bound.
// Side is "x", "y", "lp" or "out".
type SlippageError struct {
	Side   string
	Limit  uint64
	Actual uint64
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("%s: %s amount %d against bound %d", ErrSlippageExceeded, e.Side, e.Actual, e.Limit)
}

func (e *SlippageError) Is(target error) bool {
	return target == ErrSlippageExceeded
}

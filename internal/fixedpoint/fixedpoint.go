// Package fixedpoint implements overflow-checked uint64 arithmetic for pool
// amounts. Products are carried in 256-bit intermediates and every result that
// does not fit back into uint64 is reported as ErrArithmeticOverflow.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

// BpsDenominator is the basis point scale (100%).
const BpsDenominator uint64 = 10_000

// ErrArithmeticOverflow is returned when a result is not representable as uint64,
// when a subtraction would underflow, or when dividing by zero.
var ErrArithmeticOverflow = errors.New("arithmetic overflow")

// Add returns a + b.
func Add(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrArithmeticOverflow
	}
	return sum, nil
}

// Sub returns a - b.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// Mul returns a * b.
func Mul(a, b uint64) (uint64, error) {
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return toUint64(prod)
}

// MulDivFloor returns floor(a * b / d).
func MulDivFloor(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow
	}
	q, overflow := new(uint256.Int).MulDivOverflow(uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d))
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	return toUint64(q)
}

// MulDivCeil returns ceil(a * b / d).
func MulDivCeil(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrArithmeticOverflow
	}
	x, y, m := uint256.NewInt(a), uint256.NewInt(b), uint256.NewInt(d)
	q, overflow := new(uint256.Int).MulDivOverflow(x, y, m)
	if overflow {
		return 0, ErrArithmeticOverflow
	}
	if !new(uint256.Int).MulMod(x, y, m).IsZero() {
		q.AddUint64(q, 1)
	}
	return toUint64(q)
}

// ApplyBps returns floor(amount * (10000 - bps) / 10000), the part of amount
// left after deducting a fee of bps basis points.
func ApplyBps(amount uint64, bps uint16) (uint64, error) {
	if uint64(bps) > BpsDenominator {
		return 0, ErrArithmeticOverflow
	}
	return MulDivFloor(amount, BpsDenominator-uint64(bps), BpsDenominator)
}

// Sqrt returns floor(sqrt(x)).
func Sqrt(x uint64) uint64 {
	r := new(uint256.Int).Sqrt(uint256.NewInt(x))
	return r.Uint64()
}

// SqrtProduct returns floor(sqrt(a * b)). The result always fits in uint64.
func SqrtProduct(a, b uint64) uint64 {
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	return new(uint256.Int).Sqrt(prod).Uint64()
}

// Product returns a * b as a 256-bit integer, for invariant comparisons.
func Product(a, b uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return v.Uint64(), nil
}

package aggregate

import (
	"fmt"
	"math/big"

	"liquidityEngine/internal/model"
)

// Accumulator holds aggregate values for a pool window.
type Accumulator struct {
	PoolID        string
	WindowStart   uint64
	WindowEnd     uint64
	SwapCount     uint64
	DepositCount  uint64
	WithdrawCount uint64
	VolumeX       *big.Int
	VolumeY       *big.Int
	FeeX          *big.Int
	FeeY          *big.Int
	Reserves      model.ReserveLedger
	Locked        bool
	LastSequence  uint64
	LastTS        uint64
}

func NewAccumulator(ev model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		PoolID:      ev.Pool.Hex(),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		VolumeX:     big.NewInt(0),
		VolumeY:     big.NewInt(0),
		FeeX:        big.NewInt(0),
		FeeY:        big.NewInt(0),
		LastTS:      ev.Timestamp,
	}
}

// AddEvent folds one decoded pool event into the window.
func (a *Accumulator) AddEvent(ev model.PoolEvent) error {
	if ev.Sequence >= a.LastSequence {
		a.LastSequence = ev.Sequence
		a.LastTS = ev.Timestamp
		if ev.Kind != model.EventInitialized {
			a.Reserves = ev.Reserves
		}
	}

	switch ev.Kind {
	case model.EventSwap:
		return a.applySwap(ev)
	case model.EventDeposit:
		a.DepositCount++
	case model.EventWithdraw:
		a.WithdrawCount++
	case model.EventLockChanged:
		a.Locked = ev.Locked
	case model.EventInitialized:
	default:
		return fmt.Errorf("unsupported event kind: %s", ev.Kind)
	}
	return nil
}

// applySwap adds both legs to volume and credits the fee to the input side,
// where it stays in the reserve.
func (a *Accumulator) applySwap(ev model.PoolEvent) error {
	in := new(big.Int).SetUint64(ev.AmountIn)
	out := new(big.Int).SetUint64(ev.AmountOut)
	fee := new(big.Int).SetUint64(ev.Fee)

	switch ev.Direction {
	case model.XToY:
		a.VolumeX.Add(a.VolumeX, in)
		a.VolumeY.Add(a.VolumeY, out)
		a.FeeX.Add(a.FeeX, fee)
	case model.YToX:
		a.VolumeY.Add(a.VolumeY, in)
		a.VolumeX.Add(a.VolumeX, out)
		a.FeeY.Add(a.FeeY, fee)
	default:
		return fmt.Errorf("swap without direction")
	}

	a.SwapCount++
	return nil
}

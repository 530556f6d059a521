// Package custody moves asset and LP-share balances between holders. It is the
// capability the pool engine calls through to pay into and out of a pool
// account; every Apply is all-or-nothing.
package custody

import (
	"context"
	"errors"
	"fmt"

	"liquidityEngine/internal/model"
)

var (
	// ErrInsufficientBalance is returned when a movement would overdraw a holder.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidMovement is returned for a movement without source and destination.
	ErrInvalidMovement = errors.New("invalid movement")
)

// Movement transfers Amount of Asset from one holder to another. A zero From
// mints, a zero To burns.
type Movement struct {
	Asset  model.AssetID
	From   model.AssetID
	To     model.AssetID
	Amount uint64
}

// IsMint reports whether the movement creates new supply.
func (m Movement) IsMint() bool {
	return m.From == model.ZeroAsset
}

// IsBurn reports whether the movement destroys supply.
func (m Movement) IsBurn() bool {
	return m.To == model.ZeroAsset
}

func (m Movement) String() string {
	return fmt.Sprintf("%d of %s %s->%s", m.Amount, m.Asset.Hex(), m.From.Hex(), m.To.Hex())
}

// Ledger is the custody capability used by the engine.
type Ledger interface {
	Apply(ctx context.Context, moves []Movement) error
	Balance(ctx context.Context, asset, holder model.AssetID) (uint64, error)
	Supply(ctx context.Context, asset model.AssetID) (uint64, error)
}

// Invert returns the movements that undo moves, in reverse order.
func Invert(moves []Movement) []Movement {
	out := make([]Movement, 0, len(moves))
	for i := len(moves) - 1; i >= 0; i-- {
		m := moves[i]
		out = append(out, Movement{Asset: m.Asset, From: m.To, To: m.From, Amount: m.Amount})
	}
	return out
}

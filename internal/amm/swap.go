package amm

import (
	"context"

	"go.uber.org/zap"

	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
)

// SwapRequest sells AmountIn of the Direction's input asset.
type SwapRequest struct {
	Key          model.PoolKey
	Owner        model.AssetID
	Direction    model.Direction
	AmountIn     uint64
	MinAmountOut uint64
}

// SwapResult holds the realized amounts of a swap.
type SwapResult struct {
	Direction model.Direction     `json:"direction"`
	AmountIn  uint64              `json:"amount_in"`
	AmountOut uint64              `json:"amount_out"`
	Fee       uint64              `json:"fee"`
	Reserves  model.ReserveLedger `json:"reserves"`
}

// Swap executes a constant-product swap. The whole input, fee included, is
// added to the input reserve.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (SwapResult, error) {
	unlock := e.locks.lock(req.Key)
	defer unlock()

	rec, err := e.loadUnlocked(ctx, req.Key, req.Owner)
	if err != nil {
		return SwapResult{}, err
	}
	quote, err := QuoteSwap(rec.Reserves, rec.State.FeeBps, req.Direction, req.AmountIn)
	if err != nil {
		return SwapResult{}, err
	}
	if quote.AmountOut < req.MinAmountOut {
		return SwapResult{}, &SlippageError{Side: "out", Limit: req.MinAmountOut, Actual: quote.AmountOut}
	}

	reserves, err := applySwap(rec.Reserves, req.Direction, quote.AmountIn, quote.AmountOut)
	if err != nil {
		return SwapResult{}, err
	}

	state := rec.State
	assetIn, assetOut := state.AssetX, state.AssetY
	if req.Direction == model.YToX {
		assetIn, assetOut = assetOut, assetIn
	}
	moves := []custody.Movement{
		{Asset: assetIn, From: req.Owner, To: state.PoolID, Amount: quote.AmountIn},
		{Asset: assetOut, From: state.PoolID, To: req.Owner, Amount: quote.AmountOut},
	}

	next := e.advance(rec, reserves)
	if err := e.commit(ctx, next, moves); err != nil {
		return SwapResult{}, err
	}

	e.logger.Debug("swap",
		zap.String("pool", state.PoolID.Hex()),
		zap.String("owner", req.Owner.Hex()),
		zap.Stringer("direction", req.Direction),
		zap.Uint64("amount_in", quote.AmountIn),
		zap.Uint64("amount_out", quote.AmountOut),
		zap.Uint64("fee", quote.Fee),
	)
	e.publish(ctx, next, model.PoolEvent{
		Kind:      model.EventSwap,
		Owner:     req.Owner,
		Direction: req.Direction,
		AmountIn:  quote.AmountIn,
		AmountOut: quote.AmountOut,
		Fee:       quote.Fee,
	})
	return SwapResult{
		Direction: req.Direction,
		AmountIn:  quote.AmountIn,
		AmountOut: quote.AmountOut,
		Fee:       quote.Fee,
		Reserves:  reserves,
	}, nil
}

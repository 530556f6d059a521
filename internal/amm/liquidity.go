package amm

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
)

// DepositRequest mints LPAmount shares for at most MaxX and MaxY.
type DepositRequest struct {
	Key      model.PoolKey
	Owner    model.AssetID
	LPAmount uint64
	MaxX     uint64
	MaxY     uint64
}

// BootstrapRequest seeds an empty pool with independently chosen amounts.
type BootstrapRequest struct {
	Key     model.PoolKey
	Owner   model.AssetID
	AmountX uint64
	AmountY uint64
	MinLP   uint64
}

// WithdrawRequest burns LPAmount shares for at least MinX and MinY.
type WithdrawRequest struct {
	Key      model.PoolKey
	Owner    model.AssetID
	LPAmount uint64
	MinX     uint64
	MinY     uint64
}

// LiquidityResult holds the realized amounts of a deposit or withdrawal.
type LiquidityResult struct {
	AmountX  uint64              `json:"amount_x"`
	AmountY  uint64              `json:"amount_y"`
	LPAmount uint64              `json:"lp_amount"`
	Reserves model.ReserveLedger `json:"reserves"`
}

// Deposit adds liquidity in proportion to the reserves. The first deposit into
// an empty pool sets both reserves to LPAmount.
func (e *Engine) Deposit(ctx context.Context, req DepositRequest) (LiquidityResult, error) {
	unlock := e.locks.lock(req.Key)
	defer unlock()

	rec, err := e.loadUnlocked(ctx, req.Key, req.Owner)
	if err != nil {
		return LiquidityResult{}, err
	}
	amountX, amountY, err := QuoteDeposit(rec.Reserves, req.LPAmount)
	if err != nil {
		return LiquidityResult{}, err
	}
	if amountX > req.MaxX {
		return LiquidityResult{}, &SlippageError{Side: "x", Limit: req.MaxX, Actual: amountX}
	}
	if amountY > req.MaxY {
		return LiquidityResult{}, &SlippageError{Side: "y", Limit: req.MaxY, Actual: amountY}
	}

	return e.addLiquidity(ctx, rec, req.Owner, amountX, amountY, req.LPAmount)
}

// Bootstrap seeds an empty pool and mints floor(sqrt(AmountX*AmountY)) shares.
func (e *Engine) Bootstrap(ctx context.Context, req BootstrapRequest) (LiquidityResult, error) {
	unlock := e.locks.lock(req.Key)
	defer unlock()

	rec, err := e.loadUnlocked(ctx, req.Key, req.Owner)
	if err != nil {
		return LiquidityResult{}, err
	}
	if !rec.Reserves.Empty() {
		return LiquidityResult{}, fmt.Errorf("%w: %s supply %d", ErrPoolNotEmpty, req.Key, rec.Reserves.LPSupply)
	}
	lp, err := QuoteBootstrap(req.AmountX, req.AmountY)
	if err != nil {
		return LiquidityResult{}, err
	}
	if lp < req.MinLP {
		return LiquidityResult{}, &SlippageError{Side: "lp", Limit: req.MinLP, Actual: lp}
	}

	return e.addLiquidity(ctx, rec, req.Owner, req.AmountX, req.AmountY, lp)
}

func (e *Engine) addLiquidity(ctx context.Context, rec model.PoolRecord, owner model.AssetID, amountX, amountY, lp uint64) (LiquidityResult, error) {
	reserves, err := applyDeposit(rec.Reserves, amountX, amountY, lp)
	if err != nil {
		return LiquidityResult{}, err
	}
	state := rec.State
	moves := []custody.Movement{
		{Asset: state.AssetX, From: owner, To: state.PoolID, Amount: amountX},
		{Asset: state.AssetY, From: owner, To: state.PoolID, Amount: amountY},
		{Asset: state.LPShareID, From: model.ZeroAsset, To: owner, Amount: lp},
	}

	next := e.advance(rec, reserves)
	if err := e.commit(ctx, next, moves); err != nil {
		return LiquidityResult{}, err
	}

	e.logger.Debug("deposit",
		zap.String("pool", state.PoolID.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Uint64("amount_x", amountX),
		zap.Uint64("amount_y", amountY),
		zap.Uint64("lp_amount", lp),
	)
	e.publish(ctx, next, model.PoolEvent{
		Kind:     model.EventDeposit,
		Owner:    owner,
		AmountX:  amountX,
		AmountY:  amountY,
		LPAmount: lp,
	})
	return LiquidityResult{AmountX: amountX, AmountY: amountY, LPAmount: lp, Reserves: reserves}, nil
}

// Withdraw burns shares and pays out the proportional reserves, rounded down.
func (e *Engine) Withdraw(ctx context.Context, req WithdrawRequest) (LiquidityResult, error) {
	unlock := e.locks.lock(req.Key)
	defer unlock()

	rec, err := e.loadUnlocked(ctx, req.Key, req.Owner)
	if err != nil {
		return LiquidityResult{}, err
	}
	if req.LPAmount == 0 {
		return LiquidityResult{}, ErrInvalidAmount
	}
	state := rec.State

	shares, err := e.ledger.Balance(ctx, state.LPShareID, req.Owner)
	if err != nil {
		return LiquidityResult{}, fmt.Errorf("share balance: %w", err)
	}
	if shares < req.LPAmount {
		return LiquidityResult{}, fmt.Errorf("%w: holds %d, burning %d", ErrInsufficientShares, shares, req.LPAmount)
	}

	amountX, amountY, err := QuoteWithdraw(rec.Reserves, req.LPAmount)
	if err != nil {
		return LiquidityResult{}, err
	}
	if amountX < req.MinX {
		return LiquidityResult{}, &SlippageError{Side: "x", Limit: req.MinX, Actual: amountX}
	}
	if amountY < req.MinY {
		return LiquidityResult{}, &SlippageError{Side: "y", Limit: req.MinY, Actual: amountY}
	}

	reserves, err := applyWithdraw(rec.Reserves, amountX, amountY, req.LPAmount)
	if err != nil {
		return LiquidityResult{}, err
	}
	if reserves.LPSupply == 0 && (reserves.ReserveX != 0 || reserves.ReserveY != 0) {
		return LiquidityResult{}, errors.New("withdraw: reserves left without supply")
	}

	moves := []custody.Movement{
		{Asset: state.LPShareID, From: req.Owner, To: model.ZeroAsset, Amount: req.LPAmount},
		{Asset: state.AssetX, From: state.PoolID, To: req.Owner, Amount: amountX},
		{Asset: state.AssetY, From: state.PoolID, To: req.Owner, Amount: amountY},
	}

	next := e.advance(rec, reserves)
	if err := e.commit(ctx, next, moves); err != nil {
		return LiquidityResult{}, err
	}

	e.logger.Debug("withdraw",
		zap.String("pool", state.PoolID.Hex()),
		zap.String("owner", req.Owner.Hex()),
		zap.Uint64("amount_x", amountX),
		zap.Uint64("amount_y", amountY),
		zap.Uint64("lp_amount", req.LPAmount),
	)
	e.publish(ctx, next, model.PoolEvent{
		Kind:     model.EventWithdraw,
		Owner:    req.Owner,
		AmountX:  amountX,
		AmountY:  amountY,
		LPAmount: req.LPAmount,
	})
	return LiquidityResult{AmountX: amountX, AmountY: amountY, LPAmount: req.LPAmount, Reserves: reserves}, nil
}

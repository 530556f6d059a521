package replay

import (
	"context"
	"fmt"

	"liquidityEngine/internal/amm"
	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
)

// Apply executes a single script operation and reports its outcome. Rejected
// operations yield a result with OK false rather than an error.
func Apply(ctx context.Context, engine *amm.Engine, ledger custody.Ledger, op model.Operation) model.OperationResult {
	result := model.OperationResult{Seq: op.Seq, Op: op.Op}
	if err := apply(ctx, engine, ledger, op, &result); err != nil {
		result.Error = err.Error()
		return result
	}
	result.OK = true
	return result
}

func apply(ctx context.Context, engine *amm.Engine, ledger custody.Ledger, op model.Operation, result *model.OperationResult) error {
	caller, err := ParseOptionalAssetID(op.Caller)
	if err != nil {
		return fmt.Errorf("caller: %w", err)
	}
	owner := model.ZeroAsset
	if caller != nil {
		owner = *caller
	}

	if op.Op == OpFund {
		asset, err := model.ParseAssetID(op.Asset)
		if err != nil {
			return fmt.Errorf("asset: %w", err)
		}
		if owner == model.ZeroAsset || op.Amount == 0 {
			return amm.ErrInvalidAmount
		}
		result.AmountIn = op.Amount
		return ledger.Apply(ctx, []custody.Movement{{Asset: asset, To: owner, Amount: op.Amount}})
	}

	key, err := ParsePoolKey(op)
	if err != nil {
		return err
	}
	result.Pool = key.PoolID().Hex()

	setLiquidity := func(res amm.LiquidityResult) {
		result.AmountX = res.AmountX
		result.AmountY = res.AmountY
		result.LPAmount = res.LPAmount
		reserves := res.Reserves
		result.Reserves = &reserves
	}

	switch op.Op {
	case OpInit:
		authority, err := ParseOptionalAssetID(op.Authority)
		if err != nil {
			return fmt.Errorf("authority: %w", err)
		}
		_, err = engine.Initialize(ctx, amm.InitializeRequest{Key: key, FeeBps: op.FeeBps, Authority: authority})
		return err
	case OpDeposit:
		res, err := engine.Deposit(ctx, amm.DepositRequest{Key: key, Owner: owner, LPAmount: op.Amount, MaxX: op.MaxX, MaxY: op.MaxY})
		if err != nil {
			return err
		}
		setLiquidity(res)
	case OpBootstrap:
		res, err := engine.Bootstrap(ctx, amm.BootstrapRequest{Key: key, Owner: owner, AmountX: op.AmountX, AmountY: op.AmountY, MinLP: op.MinLP})
		if err != nil {
			return err
		}
		setLiquidity(res)
	case OpWithdraw:
		res, err := engine.Withdraw(ctx, amm.WithdrawRequest{Key: key, Owner: owner, LPAmount: op.Amount, MinX: op.MinX, MinY: op.MinY})
		if err != nil {
			return err
		}
		setLiquidity(res)
	case OpSwap:
		res, err := engine.Swap(ctx, amm.SwapRequest{Key: key, Owner: owner, Direction: op.Direction, AmountIn: op.Amount, MinAmountOut: op.MinOut})
		if err != nil {
			return err
		}
		result.AmountIn = res.AmountIn
		result.AmountOut = res.AmountOut
		result.Fee = res.Fee
		reserves := res.Reserves
		result.Reserves = &reserves
	case OpLock, OpUnlock:
		_, err := engine.SetLocked(ctx, key, owner, op.Op == OpLock)
		return err
	default:
		return fmt.Errorf("unknown operation %q", op.Op)
	}
	return nil
}

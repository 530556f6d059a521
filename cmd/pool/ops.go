package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"liquidityEngine/internal/amm"
	"liquidityEngine/internal/config"
	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
)

func newOpCommands() []*cobra.Command {
	initCmd := opCommand("init", "Create a pool for an asset pair", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, err := poolKeyFromFlags(cmd.Flags())
			if err != nil {
				return nil, err
			}
			fee, _ := cmd.Flags().GetUint16("fee-bps")
			authority, err := optionalAsset(cmd.Flags(), "authority")
			if err != nil {
				return nil, err
			}
			rec, err := rt.engine.Initialize(ctx, amm.InitializeRequest{Key: key, FeeBps: fee, Authority: authority})
			if err != nil {
				return nil, err
			}
			return rec.Snapshot(), nil
		}
	})
	initCmd.Flags().Uint16("fee-bps", 30, "swap fee in basis points")
	initCmd.Flags().String("authority", "", "account allowed to lock the pool")

	fundCmd := opCommand("fund", "Mint an asset balance to an account", false, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			asset, err := requiredAsset(cmd.Flags(), "asset")
			if err != nil {
				return nil, err
			}
			to, err := requiredAsset(cmd.Flags(), "caller")
			if err != nil {
				return nil, err
			}
			amount, _ := cmd.Flags().GetUint64("amount")
			if amount == 0 {
				return nil, amm.ErrInvalidAmount
			}
			if err := rt.ledger.Apply(ctx, []custody.Movement{{Asset: asset, To: to, Amount: amount}}); err != nil {
				return nil, err
			}
			return balanceOf(ctx, rt, asset, to)
		}
	})
	fundCmd.Flags().String("asset", "", "asset to mint")
	fundCmd.Flags().Uint64("amount", 0, "amount to mint")

	balanceCmd := opCommand("balance", "Show an account balance", false, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			asset, err := requiredAsset(cmd.Flags(), "asset")
			if err != nil {
				return nil, err
			}
			holder, err := requiredAsset(cmd.Flags(), "caller")
			if err != nil {
				return nil, err
			}
			return balanceOf(ctx, rt, asset, holder)
		}
	})
	balanceCmd.Flags().String("asset", "", "asset or LP share id")

	depositCmd := opCommand("deposit", "Deposit liquidity for an exact LP amount", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, owner, err := keyAndCaller(cmd.Flags())
			if err != nil {
				return nil, err
			}
			lp, _ := cmd.Flags().GetUint64("lp")
			maxX, _ := cmd.Flags().GetUint64("max-x")
			maxY, _ := cmd.Flags().GetUint64("max-y")
			return rt.engine.Deposit(ctx, amm.DepositRequest{Key: key, Owner: owner, LPAmount: lp, MaxX: maxX, MaxY: maxY})
		}
	})
	depositCmd.Flags().Uint64("lp", 0, "LP shares to mint")
	depositCmd.Flags().Uint64("max-x", 0, "maximum asset X to pay")
	depositCmd.Flags().Uint64("max-y", 0, "maximum asset Y to pay")

	bootstrapCmd := opCommand("bootstrap", "Seed an empty pool with arbitrary amounts", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, owner, err := keyAndCaller(cmd.Flags())
			if err != nil {
				return nil, err
			}
			x, _ := cmd.Flags().GetUint64("amount-x")
			y, _ := cmd.Flags().GetUint64("amount-y")
			minLP, _ := cmd.Flags().GetUint64("min-lp")
			return rt.engine.Bootstrap(ctx, amm.BootstrapRequest{Key: key, Owner: owner, AmountX: x, AmountY: y, MinLP: minLP})
		}
	})
	bootstrapCmd.Flags().Uint64("amount-x", 0, "asset X to deposit")
	bootstrapCmd.Flags().Uint64("amount-y", 0, "asset Y to deposit")
	bootstrapCmd.Flags().Uint64("min-lp", 0, "minimum LP shares to receive")

	withdrawCmd := opCommand("withdraw", "Burn LP shares for a share of the reserves", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, owner, err := keyAndCaller(cmd.Flags())
			if err != nil {
				return nil, err
			}
			lp, _ := cmd.Flags().GetUint64("lp")
			minX, _ := cmd.Flags().GetUint64("min-x")
			minY, _ := cmd.Flags().GetUint64("min-y")
			return rt.engine.Withdraw(ctx, amm.WithdrawRequest{Key: key, Owner: owner, LPAmount: lp, MinX: minX, MinY: minY})
		}
	})
	withdrawCmd.Flags().Uint64("lp", 0, "LP shares to burn")
	withdrawCmd.Flags().Uint64("min-x", 0, "minimum asset X to receive")
	withdrawCmd.Flags().Uint64("min-y", 0, "minimum asset Y to receive")

	swapCmd := opCommand("swap", "Swap an exact input amount", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, owner, err := keyAndCaller(cmd.Flags())
			if err != nil {
				return nil, err
			}
			dir, err := directionFlag(cmd.Flags())
			if err != nil {
				return nil, err
			}
			in, _ := cmd.Flags().GetUint64("amount")
			minOut, _ := cmd.Flags().GetUint64("min-out")
			return rt.engine.Swap(ctx, amm.SwapRequest{Key: key, Owner: owner, Direction: dir, AmountIn: in, MinAmountOut: minOut})
		}
	})
	swapCmd.Flags().String("direction", "x_to_y", "swap direction (x_to_y, y_to_x)")
	swapCmd.Flags().Uint64("amount", 0, "input amount")
	swapCmd.Flags().Uint64("min-out", 0, "minimum output amount")

	lockCmd := opCommand("lock", "Lock a pool against trading", true, setLockedAction(true))
	unlockCmd := opCommand("unlock", "Unlock a pool", true, setLockedAction(false))

	quoteCmd := opCommand("quote", "Quote a deposit, withdrawal or swap without executing it", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, err := poolKeyFromFlags(cmd.Flags())
			if err != nil {
				return nil, err
			}
			kind, _ := cmd.Flags().GetString("kind")
			amount, _ := cmd.Flags().GetUint64("amount")
			switch strings.ToLower(kind) {
			case "deposit":
				x, y, err := rt.engine.QuoteDeposit(ctx, key, amount)
				return amm.LiquidityResult{AmountX: x, AmountY: y, LPAmount: amount}, err
			case "withdraw":
				x, y, err := rt.engine.QuoteWithdraw(ctx, key, amount)
				return amm.LiquidityResult{AmountX: x, AmountY: y, LPAmount: amount}, err
			case "swap":
				dir, err := directionFlag(cmd.Flags())
				if err != nil {
					return nil, err
				}
				return rt.engine.QuoteSwap(ctx, key, dir, amount)
			default:
				return nil, fmt.Errorf("unknown quote kind: %s", kind)
			}
		}
	})
	quoteCmd.Flags().String("kind", "swap", "quote kind (deposit, withdraw, swap)")
	quoteCmd.Flags().Uint64("amount", 0, "LP amount for deposit/withdraw, input amount for swap")
	quoteCmd.Flags().String("direction", "x_to_y", "swap direction (x_to_y, y_to_x)")

	showCmd := opCommand("show", "Show a pool and check it against custody", true, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, err := poolKeyFromFlags(cmd.Flags())
			if err != nil {
				return nil, err
			}
			rec, err := rt.engine.Get(ctx, key)
			if err != nil {
				return nil, err
			}
			if err := rt.engine.Reconcile(ctx, key); err != nil {
				rt.logger.Warn("custody mismatch", zap.String("pool", key.String()), zap.Error(err))
			}
			return rec.Snapshot(), nil
		}
	})

	listCmd := opCommand("list", "List all pools", false, func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			recs, err := rt.engine.List(ctx)
			if err != nil {
				return nil, err
			}
			pools := make([]model.Pool, 0, len(recs))
			for _, rec := range recs {
				pools = append(pools, rec.Snapshot())
			}
			return pools, nil
		}
	})

	return []*cobra.Command{
		initCmd, fundCmd, balanceCmd, depositCmd, bootstrapCmd, withdrawCmd,
		swapCmd, lockCmd, unlockCmd, quoteCmd, showCmd, listCmd,
	}
}

// opCommand builds a command that opens the pool state, runs one action and
// prints the result as JSON on stdout.
func opCommand(use, short string, withPool bool, build func(cmd *cobra.Command) poolAction) *cobra.Command {
	cmd := &cobra.Command{Use: use, Short: short}
	stateFlags(cmd.Flags())
	cmd.Flags().String("caller", "", "acting account")
	if withPool {
		cmd.Flags().String("asset-x", "", "pool asset X")
		cmd.Flags().String("asset-y", "", "pool asset Y")
		cmd.Flags().Uint64("seed", 0, "pool seed")
	}
	action := build(cmd)
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		return runAction(cmd, action)
	}
	return cmd
}

func runAction(cmd *cobra.Command, action poolAction) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	result, err := action(ctx, rt)
	if err != nil {
		logger.Debug("operation rejected", zap.String("op", cmd.Name()), zap.Error(err))
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func setLockedAction(locked bool) func(cmd *cobra.Command) poolAction {
	return func(cmd *cobra.Command) poolAction {
		return func(ctx context.Context, rt *runtime) (interface{}, error) {
			key, caller, err := keyAndCaller(cmd.Flags())
			if err != nil {
				return nil, err
			}
			rec, err := rt.engine.SetLocked(ctx, key, caller, locked)
			if err != nil {
				return nil, err
			}
			return rec.Snapshot(), nil
		}
	}
}

type balanceView struct {
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Balance uint64 `json:"balance"`
}

func balanceOf(ctx context.Context, rt *runtime, asset, holder model.AssetID) (balanceView, error) {
	bal, err := rt.ledger.Balance(ctx, asset, holder)
	if err != nil {
		return balanceView{}, err
	}
	return balanceView{Asset: asset.Hex(), Holder: holder.Hex(), Balance: bal}, nil
}

func poolKeyFromFlags(flags *pflag.FlagSet) (model.PoolKey, error) {
	x, err := requiredAsset(flags, "asset-x")
	if err != nil {
		return model.PoolKey{}, err
	}
	y, err := requiredAsset(flags, "asset-y")
	if err != nil {
		return model.PoolKey{}, err
	}
	seed, _ := flags.GetUint64("seed")
	return model.PoolKey{AssetX: x, AssetY: y, Seed: seed}, nil
}

func keyAndCaller(flags *pflag.FlagSet) (model.PoolKey, model.AssetID, error) {
	key, err := poolKeyFromFlags(flags)
	if err != nil {
		return model.PoolKey{}, model.AssetID{}, err
	}
	caller, err := requiredAsset(flags, "caller")
	if err != nil {
		return model.PoolKey{}, model.AssetID{}, err
	}
	return key, caller, nil
}

func requiredAsset(flags *pflag.FlagSet, name string) (model.AssetID, error) {
	value, _ := flags.GetString(name)
	if strings.TrimSpace(value) == "" {
		return model.AssetID{}, fmt.Errorf("--%s is required", name)
	}
	id, err := model.ParseAssetID(value)
	if err != nil {
		return model.AssetID{}, fmt.Errorf("--%s: %w", name, err)
	}
	return id, nil
}

func optionalAsset(flags *pflag.FlagSet, name string) (*model.AssetID, error) {
	value, _ := flags.GetString(name)
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := model.ParseAssetID(value)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &id, nil
}

func directionFlag(flags *pflag.FlagSet) (model.Direction, error) {
	value, _ := flags.GetString("direction")
	return model.ParseDirection(value)
}

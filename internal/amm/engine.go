// Package amm implements two-asset constant-product pools: LP share minting
// and burning, fee-bearing swaps and the administrative lock.
package amm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// EventSink receives an event after each committed operation.
type EventSink interface {
	Publish(ctx context.Context, ev model.PoolEvent) error
}

// Options configures an Engine. Zero values are usable.
type Options struct {
	Sink   EventSink
	Logger *zap.Logger
	Now    func() time.Time
}

// Engine executes pool operations against a pool store and a custody ledger.
// Operations on one pool are serialized; different pools run in parallel.
type Engine struct {
	store  storage.PoolStore
	ledger custody.Ledger
	sink   EventSink
	logger *zap.Logger
	now    func() time.Time
	locks  *poolLocks
}

// NewEngine builds an Engine with its dependencies.
func NewEngine(store storage.PoolStore, ledger custody.Ledger, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:  store,
		ledger: ledger,
		sink:   opts.Sink,
		logger: logger,
		now:    now,
		locks:  newPoolLocks(),
	}
}

// InitializeRequest describes a new pool.
type InitializeRequest struct {
	Key       model.PoolKey
	FeeBps    uint16
	Authority *model.AssetID
}

// Initialize creates a pool with empty reserves and no LP supply.
func (e *Engine) Initialize(ctx context.Context, req InitializeRequest) (model.PoolRecord, error) {
	if req.FeeBps >= MaxFeeBps {
		return model.PoolRecord{}, fmt.Errorf("%w: %d bps", ErrInvalidFee, req.FeeBps)
	}
	key := req.Key
	if key.AssetX == key.AssetY || key.AssetX == model.ZeroAsset || key.AssetY == model.ZeroAsset {
		return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrInvalidAssetPair, key)
	}

	unlock := e.locks.lock(key)
	defer unlock()

	ts := e.now().UTC()
	poolID := key.PoolID()
	state := model.PoolState{
		Seed:      key.Seed,
		AssetX:    key.AssetX,
		AssetY:    key.AssetY,
		FeeBps:    req.FeeBps,
		PoolID:    poolID,
		LPShareID: model.LPShareID(poolID),
		CreatedAt: ts.Format(time.RFC3339Nano),
		UpdatedAt: ts.Format(time.RFC3339Nano),
	}
	if req.Authority != nil {
		authority := *req.Authority
		state.Authority = &authority
	}
	rec := model.PoolRecord{State: state, Version: 1}

	if err := e.store.Create(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrPoolExists) {
			return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrPoolAlreadyExists, key)
		}
		return model.PoolRecord{}, fmt.Errorf("create pool: %w", err)
	}

	e.logger.Info("pool initialized",
		zap.String("pool", poolID.Hex()),
		zap.String("key", key.String()),
		zap.Uint16("fee_bps", req.FeeBps),
	)

	owner := model.ZeroAsset
	if state.Authority != nil {
		owner = *state.Authority
	}
	e.publish(ctx, rec, model.PoolEvent{
		Kind:      model.EventInitialized,
		Owner:     owner,
		AssetX:    state.AssetX,
		AssetY:    state.AssetY,
		Seed:      state.Seed,
		FeeBps:    state.FeeBps,
		LPShareID: state.LPShareID,
	})
	return rec, nil
}

// Get returns the current record of a pool.
func (e *Engine) Get(ctx context.Context, key model.PoolKey) (model.PoolRecord, error) {
	rec, ok, err := e.store.Get(ctx, key)
	if err != nil {
		return model.PoolRecord{}, fmt.Errorf("load pool: %w", err)
	}
	if !ok {
		return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrPoolNotFound, key)
	}
	return rec, nil
}

// List returns all pools known to the store.
func (e *Engine) List(ctx context.Context) ([]model.PoolRecord, error) {
	return e.store.List(ctx)
}

// SetLocked flips the lock flag. Only the pool authority may call it, and
// pools created without an authority can never be locked.
func (e *Engine) SetLocked(ctx context.Context, key model.PoolKey, caller model.AssetID, locked bool) (model.PoolRecord, error) {
	unlock := e.locks.lock(key)
	defer unlock()

	rec, err := e.Get(ctx, key)
	if err != nil {
		return model.PoolRecord{}, err
	}
	if rec.State.Authority == nil || *rec.State.Authority != caller {
		return model.PoolRecord{}, fmt.Errorf("%w: %s is not the authority of %s", ErrUnauthorized, caller.Hex(), key)
	}
	if rec.State.Locked == locked {
		return rec, nil
	}

	next := e.advance(rec, rec.Reserves)
	next.State.Locked = locked
	if err := e.store.Put(ctx, next); err != nil {
		return model.PoolRecord{}, fmt.Errorf("store pool: %w", err)
	}

	e.logger.Info("pool lock changed", zap.String("pool", next.State.PoolID.Hex()), zap.Bool("locked", locked))
	e.publish(ctx, next, model.PoolEvent{
		Kind:   model.EventLockChanged,
		Owner:  caller,
		Locked: locked,
	})
	return next, nil
}

// Reconcile verifies that custody balances of the pool account and the LP
// share supply agree with the recorded reserves.
func (e *Engine) Reconcile(ctx context.Context, key model.PoolKey) error {
	unlock := e.locks.lock(key)
	defer unlock()

	rec, err := e.Get(ctx, key)
	if err != nil {
		return err
	}
	state := rec.State

	balanceX, err := e.ledger.Balance(ctx, state.AssetX, state.PoolID)
	if err != nil {
		return fmt.Errorf("balance x: %w", err)
	}
	balanceY, err := e.ledger.Balance(ctx, state.AssetY, state.PoolID)
	if err != nil {
		return fmt.Errorf("balance y: %w", err)
	}
	supply, err := e.ledger.Supply(ctx, state.LPShareID)
	if err != nil {
		return fmt.Errorf("lp supply: %w", err)
	}

	r := rec.Reserves
	if balanceX != r.ReserveX || balanceY != r.ReserveY || supply != r.LPSupply {
		return fmt.Errorf("%w: pool %s custody (%d, %d, %d) reserves (%d, %d, %d)",
			ErrLedgerMismatch, key, balanceX, balanceY, supply, r.ReserveX, r.ReserveY, r.LPSupply)
	}
	return nil
}

// QuoteDeposit prices a deposit against the current reserves without mutating.
func (e *Engine) QuoteDeposit(ctx context.Context, key model.PoolKey, lpAmount uint64) (uint64, uint64, error) {
	rec, err := e.Get(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return QuoteDeposit(rec.Reserves, lpAmount)
}

// QuoteWithdraw prices a withdrawal against the current reserves without mutating.
func (e *Engine) QuoteWithdraw(ctx context.Context, key model.PoolKey, lpAmount uint64) (uint64, uint64, error) {
	rec, err := e.Get(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	return QuoteWithdraw(rec.Reserves, lpAmount)
}

// QuoteSwap prices a swap against the current reserves without mutating.
func (e *Engine) QuoteSwap(ctx context.Context, key model.PoolKey, dir model.Direction, amountIn uint64) (SwapQuote, error) {
	rec, err := e.Get(ctx, key)
	if err != nil {
		return SwapQuote{}, err
	}
	return QuoteSwap(rec.Reserves, rec.State.FeeBps, dir, amountIn)
}

// loadUnlocked reads a pool for a mutating operation.
func (e *Engine) loadUnlocked(ctx context.Context, key model.PoolKey, owner model.AssetID) (model.PoolRecord, error) {
	rec, err := e.Get(ctx, key)
	if err != nil {
		return model.PoolRecord{}, err
	}
	if rec.State.Locked {
		return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrPoolLocked, key)
	}
	if owner == model.ZeroAsset || owner == rec.State.PoolID {
		return model.PoolRecord{}, fmt.Errorf("%w: %s", ErrInvalidOwner, owner.Hex())
	}
	return rec, nil
}

func (e *Engine) advance(rec model.PoolRecord, reserves model.ReserveLedger) model.PoolRecord {
	rec.Reserves = reserves
	rec.Version++
	rec.State.UpdatedAt = e.now().UTC().Format(time.RFC3339Nano)
	return rec
}

// commit applies the custody movements and then persists the record. When the
// record cannot be written the movements are reversed.
func (e *Engine) commit(ctx context.Context, rec model.PoolRecord, moves []custody.Movement) error {
	if err := e.ledger.Apply(ctx, moves); err != nil {
		return fmt.Errorf("apply custody: %w", err)
	}
	if err := e.store.Put(ctx, rec); err != nil {
		storeErr := fmt.Errorf("store pool: %w", err)
		if undoErr := e.ledger.Apply(context.WithoutCancel(ctx), custody.Invert(moves)); undoErr != nil {
			e.logger.Error("custody compensation failed",
				zap.String("pool", rec.State.PoolID.Hex()),
				zap.Error(undoErr),
			)
			return errors.Join(storeErr, fmt.Errorf("revert custody: %w", undoErr))
		}
		return storeErr
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, rec model.PoolRecord, ev model.PoolEvent) {
	if e.sink == nil {
		return
	}
	ev.Pool = rec.State.PoolID
	ev.Sequence = rec.Version
	ev.Timestamp = uint64(e.now().Unix())
	ev.Reserves = rec.Reserves
	if err := e.sink.Publish(ctx, ev); err != nil {
		e.logger.Warn("publish event failed",
			zap.String("pool", rec.State.PoolID.Hex()),
			zap.String("kind", string(ev.Kind)),
			zap.Uint64("sequence", ev.Sequence),
			zap.Error(err),
		)
	}
}

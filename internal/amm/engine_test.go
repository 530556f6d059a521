package amm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/kv"
)

var (
	assetX    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	assetY    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	alice     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob       = common.HexToAddress("0x2222222222222222222222222222222222222222")
	authority = common.HexToAddress("0x9999999999999999999999999999999999999999")

	testKey = model.PoolKey{AssetX: assetX, AssetY: assetY, Seed: 7}
)

type recordingSink struct {
	mu     sync.Mutex
	events []model.PoolEvent
}

func (s *recordingSink) Publish(ctx context.Context, ev model.PoolEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) kinds() []model.EventKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EventKind, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	engine *Engine
	store  storage.PoolStore
	ledger *custody.KVLedger
	sink   *recordingSink
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mem := kv.NewMemory()
	store, err := storage.NewKVPoolStore(mem, 16)
	require.NoError(t, err)
	return newHarnessWithStore(t, store, custody.NewKVLedger(mem))
}

func newHarnessWithStore(t *testing.T, store storage.PoolStore, ledger *custody.KVLedger) *harness {
	t.Helper()
	sink := &recordingSink{}
	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	engine := NewEngine(store, ledger, Options{
		Sink: sink,
		Now:  func() time.Time { return clock },
	})
	return &harness{engine: engine, store: store, ledger: ledger, sink: sink}
}

func (h *harness) fund(t *testing.T, owner common.Address, amount uint64) {
	t.Helper()
	require.NoError(t, h.ledger.Apply(context.Background(), []custody.Movement{
		{Asset: assetX, To: owner, Amount: amount},
		{Asset: assetY, To: owner, Amount: amount},
	}))
}

func (h *harness) balance(t *testing.T, asset, owner common.Address) uint64 {
	t.Helper()
	bal, err := h.ledger.Balance(context.Background(), asset, owner)
	require.NoError(t, err)
	return bal
}

func (h *harness) init(t *testing.T, fee uint16, auth *common.Address) model.PoolRecord {
	t.Helper()
	rec, err := h.engine.Initialize(context.Background(), InitializeRequest{Key: testKey, FeeBps: fee, Authority: auth})
	require.NoError(t, err)
	return rec
}

func (h *harness) reserves(t *testing.T) model.ReserveLedger {
	t.Helper()
	rec, err := h.engine.Get(context.Background(), testKey)
	require.NoError(t, err)
	return rec.Reserves
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	rec := h.init(t, 25, nil)
	require.False(t, rec.State.Locked)
	require.Equal(t, uint16(25), rec.State.FeeBps)
	require.Equal(t, testKey.PoolID(), rec.State.PoolID)
	require.Equal(t, model.LPShareID(rec.State.PoolID), rec.State.LPShareID)
	require.True(t, rec.Reserves.Empty())

	supply, err := h.ledger.Supply(ctx, rec.State.LPShareID)
	require.NoError(t, err)
	require.Zero(t, supply)

	_, err = h.engine.Initialize(ctx, InitializeRequest{Key: testKey, FeeBps: 30})
	require.ErrorIs(t, err, ErrPoolAlreadyExists)

	other := testKey
	other.Seed = 8
	_, err = h.engine.Initialize(ctx, InitializeRequest{Key: other, FeeBps: 10000})
	require.ErrorIs(t, err, ErrInvalidFee)

	_, err = h.engine.Initialize(ctx, InitializeRequest{Key: model.PoolKey{AssetX: assetX, AssetY: assetX}, FeeBps: 25})
	require.ErrorIs(t, err, ErrInvalidAssetPair)

	rec, err = h.engine.Initialize(ctx, InitializeRequest{Key: other, FeeBps: 9999})
	require.NoError(t, err)
	require.NotEqual(t, testKey.PoolID(), rec.State.PoolID)

	require.Equal(t, []model.EventKind{model.EventInitialized, model.EventInitialized}, h.sink.kinds())
}

func TestUnknownPool(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Deposit(context.Background(), DepositRequest{Key: testKey, Owner: alice, LPAmount: 1, MaxX: 1, MaxY: 1})
	require.ErrorIs(t, err, ErrPoolNotFound)
}

// Bootstrap 150000, swap both ways at 25 bps, withdraw half.
func TestPoolLifecycle(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := h.init(t, 25, nil)
	h.fund(t, alice, 1_000_000)

	dep, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 150000, MaxX: 150000, MaxY: 150000})
	require.NoError(t, err)
	require.Equal(t, uint64(150000), dep.AmountX)
	require.Equal(t, uint64(150000), dep.AmountY)
	require.Equal(t, model.ReserveLedger{ReserveX: 150000, ReserveY: 150000, LPSupply: 150000}, dep.Reserves)
	require.Equal(t, uint64(150000), h.balance(t, rec.State.LPShareID, alice))

	sw, err := h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 1000, MinAmountOut: 990})
	require.NoError(t, err)
	require.Equal(t, uint64(990), sw.AmountOut)
	require.Equal(t, uint64(3), sw.Fee)
	require.Equal(t, model.ReserveLedger{ReserveX: 151000, ReserveY: 149010, LPSupply: 150000}, sw.Reserves)

	sw, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.YToX, AmountIn: 500})
	require.NoError(t, err)
	require.Equal(t, uint64(502), sw.AmountOut)
	require.Equal(t, model.ReserveLedger{ReserveX: 150498, ReserveY: 149510, LPSupply: 150000}, sw.Reserves)

	wd, err := h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice, LPAmount: 75000})
	require.NoError(t, err)
	require.Equal(t, uint64(75249), wd.AmountX)
	require.Equal(t, uint64(74755), wd.AmountY)
	require.Equal(t, model.ReserveLedger{ReserveX: 75249, ReserveY: 74755, LPSupply: 75000}, wd.Reserves)

	// 1_000_000 - 150000 - 1000 + 502 + 75249
	require.Equal(t, uint64(924751), h.balance(t, assetX, alice))
	// 1_000_000 - 150000 + 990 - 500 + 74755
	require.Equal(t, uint64(925245), h.balance(t, assetY, alice))
	require.Equal(t, uint64(75000), h.balance(t, rec.State.LPShareID, alice))
	require.NoError(t, h.engine.Reconcile(ctx, testKey))

	require.Equal(t, []model.EventKind{
		model.EventInitialized,
		model.EventDeposit,
		model.EventSwap,
		model.EventSwap,
		model.EventWithdraw,
	}, h.sink.kinds())

	last := h.sink.events[len(h.sink.events)-1]
	require.Equal(t, rec.State.PoolID, last.Pool)
	require.Equal(t, uint64(5), last.Sequence)
	require.Equal(t, wd.Reserves, last.Reserves)
}

func TestDepositSlippageLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 1_000_000)

	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)
	before := h.reserves(t)
	balX := h.balance(t, assetX, alice)

	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 500, MaxX: 1, MaxY: 1000})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	var slip *SlippageError
	require.True(t, errors.As(err, &slip))
	require.Equal(t, "x", slip.Side)
	require.Equal(t, uint64(1), slip.Limit)
	require.Equal(t, uint64(500), slip.Actual)

	require.Equal(t, before, h.reserves(t))
	require.Equal(t, balX, h.balance(t, assetX, alice))
}

func TestZeroAmountsRejected(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	rec := h.init(t, 25, nil)
	h.fund(t, alice, 10_000)
	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)

	before := h.reserves(t)
	balX := h.balance(t, assetX, alice)
	balY := h.balance(t, assetY, alice)
	balLP := h.balance(t, rec.State.LPShareID, alice)
	events := len(h.sink.kinds())

	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, MaxX: 10, MaxY: 10})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountY: 10})
	require.ErrorIs(t, err, ErrPoolNotEmpty)

	require.Equal(t, before, h.reserves(t))
	require.Equal(t, balX, h.balance(t, assetX, alice))
	require.Equal(t, balY, h.balance(t, assetY, alice))
	require.Equal(t, balLP, h.balance(t, rec.State.LPShareID, alice))
	require.Len(t, h.sink.kinds(), events)
}

func TestSwapSlippage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 1_000_000)
	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 150000, MaxX: 150000, MaxY: 150000})
	require.NoError(t, err)

	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 1000, MinAmountOut: 991})
	var slip *SlippageError
	require.ErrorAs(t, err, &slip)
	require.Equal(t, uint64(990), slip.Actual)
	require.Equal(t, model.ReserveLedger{ReserveX: 150000, ReserveY: 150000, LPSupply: 150000}, h.reserves(t))
}

func TestSwapOnEmptyPool(t *testing.T) {
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 1000)

	_, err := h.engine.Swap(context.Background(), SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 100})
	require.ErrorIs(t, err, ErrEmptyReserves)
}

func TestLockGatesMutations(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	auth := authority
	h.init(t, 25, &auth)
	h.fund(t, alice, 10_000)
	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)

	_, err = h.engine.SetLocked(ctx, testKey, alice, true)
	require.ErrorIs(t, err, ErrUnauthorized)

	rec, err := h.engine.SetLocked(ctx, testKey, authority, true)
	require.NoError(t, err)
	require.True(t, rec.State.Locked)

	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 10, MaxX: 100, MaxY: 100})
	require.ErrorIs(t, err, ErrPoolLocked)
	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice, LPAmount: 10})
	require.ErrorIs(t, err, ErrPoolLocked)
	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 100})
	require.ErrorIs(t, err, ErrPoolLocked)

	// Quotes stay available while locked.
	_, err = h.engine.QuoteSwap(ctx, testKey, model.XToY, 100)
	require.NoError(t, err)

	rec, err = h.engine.SetLocked(ctx, testKey, authority, false)
	require.NoError(t, err)
	require.False(t, rec.State.Locked)
	require.Equal(t, model.ReserveLedger{ReserveX: 1000, ReserveY: 1000, LPSupply: 1000}, rec.Reserves)

	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 100})
	require.NoError(t, err)
}

func TestLockWithoutAuthority(t *testing.T) {
	h := newHarness(t)
	h.init(t, 25, nil)

	_, err := h.engine.SetLocked(context.Background(), testKey, alice, true)
	require.ErrorIs(t, err, ErrUnauthorized)
	_, err = h.engine.SetLocked(context.Background(), testKey, model.ZeroAsset, true)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestWithdrawInsufficientShares(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 10_000)
	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)

	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: bob, LPAmount: 1})
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice, LPAmount: 1001})
	require.ErrorIs(t, err, ErrInsufficientShares)

	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice, LPAmount: 500, MinX: 501})
	require.ErrorIs(t, err, ErrSlippageExceeded)
}

func TestFullWithdrawalEmptiesPool(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 30, nil)
	h.fund(t, alice, 1_000_000)
	h.fund(t, bob, 1_000_000)

	_, err := h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountX: 40_000, AmountY: 90_000, MinLP: 60_000})
	require.NoError(t, err)
	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: bob, Direction: model.YToX, AmountIn: 7_777})
	require.NoError(t, err)
	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: bob, LPAmount: 1_234, MaxX: 1_000_000, MaxY: 1_000_000})
	require.NoError(t, err)

	_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: alice, LPAmount: 60_000})
	require.NoError(t, err)
	wd, err := h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: bob, LPAmount: 1_234})
	require.NoError(t, err)
	require.Equal(t, model.ReserveLedger{}, wd.Reserves)

	rec, err := h.engine.Get(ctx, testKey)
	require.NoError(t, err)
	require.Zero(t, h.balance(t, assetX, rec.State.PoolID))
	require.Zero(t, h.balance(t, assetY, rec.State.PoolID))
	require.NoError(t, h.engine.Reconcile(ctx, testKey))

	// Conservation across both holders.
	require.Equal(t, uint64(2_000_000), h.balance(t, assetX, alice)+h.balance(t, assetX, bob))
	require.Equal(t, uint64(2_000_000), h.balance(t, assetY, alice)+h.balance(t, assetY, bob))
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 10_000)

	_, err := h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountX: 400, AmountY: 900, MinLP: 601})
	require.ErrorIs(t, err, ErrSlippageExceeded)

	res, err := h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountX: 400, AmountY: 900, MinLP: 600})
	require.NoError(t, err)
	require.Equal(t, uint64(600), res.LPAmount)
	require.Equal(t, model.ReserveLedger{ReserveX: 400, ReserveY: 900, LPSupply: 600}, res.Reserves)

	_, err = h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountX: 1, AmountY: 1})
	require.ErrorIs(t, err, ErrPoolNotEmpty)
}

func TestDepositWithdrawRoundTrip(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)
	h.fund(t, alice, 10_000_000)
	h.fund(t, bob, 10_000_000)

	_, err := h.engine.Bootstrap(ctx, BootstrapRequest{Key: testKey, Owner: alice, AmountX: 1_000_003, AmountY: 2_999_999})
	require.NoError(t, err)
	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 12_345})
	require.NoError(t, err)

	for _, n := range []uint64{1, 3, 997, 12_345, 400_000} {
		beforeX := h.balance(t, assetX, bob)
		beforeY := h.balance(t, assetY, bob)

		_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: bob, LPAmount: n, MaxX: beforeX, MaxY: beforeY})
		require.NoError(t, err)
		_, err = h.engine.Withdraw(ctx, WithdrawRequest{Key: testKey, Owner: bob, LPAmount: n})
		require.NoError(t, err)

		afterX := h.balance(t, assetX, bob)
		afterY := h.balance(t, assetY, bob)
		require.LessOrEqual(t, afterX, beforeX)
		require.LessOrEqual(t, afterY, beforeY)
		require.LessOrEqual(t, beforeX-afterX, uint64(1), "lp %d", n)
		require.LessOrEqual(t, beforeY-afterY, uint64(1), "lp %d", n)
	}
	require.NoError(t, h.engine.Reconcile(ctx, testKey))
}

func TestDepositWithoutFunds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)

	_, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: bob, LPAmount: 10, MaxX: 10, MaxY: 10})
	require.ErrorIs(t, err, custody.ErrInsufficientBalance)
	require.True(t, h.reserves(t).Empty())

	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: model.ZeroAsset, LPAmount: 10, MaxX: 10, MaxY: 10})
	require.ErrorIs(t, err, ErrInvalidOwner)
}

type failingPutStore struct {
	storage.PoolStore
	fail bool
}

func (s *failingPutStore) Put(ctx context.Context, rec model.PoolRecord) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.PoolStore.Put(ctx, rec)
}

func TestCommitFailureRevertsCustody(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	inner, err := storage.NewKVPoolStore(mem, 16)
	require.NoError(t, err)
	store := &failingPutStore{PoolStore: inner}
	h := newHarnessWithStore(t, store, custody.NewKVLedger(mem))

	rec := h.init(t, 25, nil)
	h.fund(t, alice, 10_000)
	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1000, MaxX: 1000, MaxY: 1000})
	require.NoError(t, err)

	store.fail = true
	_, err = h.engine.Swap(ctx, SwapRequest{Key: testKey, Owner: alice, Direction: model.XToY, AmountIn: 100})
	require.ErrorContains(t, err, "disk full")

	require.Equal(t, uint64(9000), h.balance(t, assetX, alice))
	require.Equal(t, uint64(9000), h.balance(t, assetY, alice))
	require.Equal(t, uint64(1000), h.balance(t, assetX, rec.State.PoolID))
	require.NoError(t, h.engine.Reconcile(ctx, testKey))
	require.Equal(t, []model.EventKind{model.EventInitialized, model.EventDeposit}, h.sink.kinds())
}

func TestConcurrentDeposits(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.init(t, 25, nil)

	other := testKey
	other.Seed = 99
	_, err := h.engine.Initialize(ctx, InitializeRequest{Key: other, FeeBps: 5})
	require.NoError(t, err)

	h.fund(t, alice, 1_000)
	_, err = h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: alice, LPAmount: 1_000, MaxX: 1_000, MaxY: 1_000})
	require.NoError(t, err)

	const workers = 16
	owners := make([]common.Address, workers)
	for i := range owners {
		owners[i] = common.BigToAddress(common.Big1)
		owners[i][0] = byte(i + 1)
		h.fund(t, owners[i], 100_000)
	}

	var g errgroup.Group
	for i := range owners {
		owner := owners[i]
		g.Go(func() error {
			for j := 0; j < 10; j++ {
				if _, err := h.engine.Deposit(ctx, DepositRequest{Key: testKey, Owner: owner, LPAmount: 100, MaxX: 100, MaxY: 100}); err != nil {
					return err
				}
			}
			return nil
		})
		g.Go(func() error {
			_, err := h.engine.Deposit(ctx, DepositRequest{Key: other, Owner: owner, LPAmount: 50, MaxX: 50, MaxY: 50})
			return err
		})
	}
	require.NoError(t, g.Wait())

	require.Equal(t, model.ReserveLedger{ReserveX: 17_000, ReserveY: 17_000, LPSupply: 17_000}, h.reserves(t))
	require.NoError(t, h.engine.Reconcile(ctx, testKey))

	rec, err := h.engine.Get(ctx, other)
	require.NoError(t, err)
	// The first deposit bootstraps at 50; every later one is proportional at 1:1.
	require.Equal(t, uint64(50*workers), rec.Reserves.LPSupply)
	require.NoError(t, h.engine.Reconcile(ctx, other))
}

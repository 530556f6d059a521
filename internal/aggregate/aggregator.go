package aggregate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"liquidityEngine/internal/events"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// Config controls aggregation behavior.
type Config struct {
	WindowSeconds uint64
	BatchSize     int
	RecomputeFrom uint64
	// Progress stores the timestamp of the last event folded into a closed
	// window. Nil disables resume.
	Progress storage.ProgressStore
}

// MetricsStore receives pool snapshots and window metrics.
type MetricsStore interface {
	UpsertPools(ctx context.Context, pools []model.Pool) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// Aggregator aggregates journal events into pool window metrics.
type Aggregator struct {
	cfg          Config
	store        MetricsStore
	codec        *events.Codec
	logger       *zap.Logger
	accumulators map[string]*Accumulator
	poolMeta     map[string]model.PoolEvent
	source       string
}

func NewAggregator(cfg Config, store MetricsStore, logger *zap.Logger) (*Aggregator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	codec, err := events.NewCodec()
	if err != nil {
		return nil, err
	}

	return &Aggregator{
		cfg:          cfg,
		store:        store,
		codec:        codec,
		logger:       logger,
		accumulators: make(map[string]*Accumulator),
		poolMeta:     make(map[string]model.PoolEvent),
	}, nil
}

// Run executes aggregation over a journal JSONL file.
func (a *Aggregator) Run(ctx context.Context, inputPath string) error {
	if a.store == nil {
		return fmt.Errorf("store is nil")
	}
	if a.cfg.WindowSeconds == 0 {
		return fmt.Errorf("window seconds must be > 0")
	}
	if a.cfg.BatchSize <= 0 {
		a.cfg.BatchSize = 1000
	}
	a.source = inputPath

	startTs, err := a.loadStartTimestamp(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.PoolWindowMetrics, 0, a.cfg.BatchSize)
	pools := make([]model.Pool, 0, 256)
	maxTs := startTs
	var total, decoded, skipped, failed int

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		total++

		var record model.LogRecord
		if err := json.Unmarshal(line, &record); err != nil {
			failed++
			a.logger.Warn("decode journal record", zap.Error(err))
			continue
		}
		ev, err := a.codec.Decode(record)
		if err != nil {
			failed++
			a.logger.Warn("decode pool event", zap.Error(err), zap.String("pool", record.Address), zap.Uint64("sequence", record.Sequence))
			continue
		}

		accKey := poolKey(record.Address)
		if ev.Kind == model.EventInitialized {
			a.poolMeta[accKey] = ev
		}

		if ev.Timestamp <= startTs {
			skipped++
			continue
		}

		windowStart := windowStart(ev.Timestamp, a.cfg.WindowSeconds)
		windowEnd := windowStart + a.cfg.WindowSeconds

		acc := a.accumulators[accKey]
		if acc == nil {
			acc = NewAccumulator(ev, windowStart, windowEnd)
			a.accumulators[accKey] = acc
		} else if acc.WindowStart != windowStart {
			metrics, pool := a.flushAccumulator(acc)
			batch = append(batch, metrics)
			decoded++
			if pool != nil {
				pools = append(pools, *pool)
			}
			next := NewAccumulator(ev, windowStart, windowEnd)
			next.Reserves = acc.Reserves
			next.Locked = acc.Locked
			next.LastSequence = acc.LastSequence
			acc = next
			a.accumulators[accKey] = acc
		}

		if err := acc.AddEvent(ev); err != nil {
			failed++
			a.logger.Warn("aggregate event", zap.Error(err), zap.String("pool", record.Address), zap.String("event", string(ev.Kind)))
			continue
		}

		if ev.Timestamp > maxTs {
			maxTs = ev.Timestamp
		}

		if len(batch) >= a.cfg.BatchSize {
			if err := a.flushBatches(ctx, batch, pools); err != nil {
				return err
			}
			batch = batch[:0]
			pools = pools[:0]

			if err := a.saveState(ctx); err != nil {
				return err
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan input: %w", err)
	}

	for _, acc := range a.accumulators {
		metrics, pool := a.flushAccumulator(acc)
		batch = append(batch, metrics)
		decoded++
		if pool != nil {
			pools = append(pools, *pool)
		}
	}
	a.accumulators = make(map[string]*Accumulator)

	if len(batch) > 0 || len(pools) > 0 {
		if err := a.flushBatches(ctx, batch, pools); err != nil {
			return err
		}
	}

	a.cfg.RecomputeFrom = maxTs
	if err := a.saveState(ctx); err != nil {
		return err
	}

	a.logger.Info("aggregate complete",
		zap.Int("total", total),
		zap.Int("windows", decoded),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func (a *Aggregator) loadStartTimestamp(ctx context.Context) (uint64, error) {
	if a.cfg.RecomputeFrom > 0 {
		return a.cfg.RecomputeFrom - 1, nil
	}
	if a.cfg.Progress == nil {
		return 0, nil
	}
	progress, ok, err := a.cfg.Progress.LoadProgress(ctx)
	if err != nil {
		return 0, fmt.Errorf("load progress: %w", err)
	}
	if !ok {
		return 0, nil
	}
	if progress.Source != "" && progress.Source != a.source {
		a.logger.Warn("progress recorded for another journal",
			zap.String("recorded", progress.Source),
			zap.String("input", a.source),
		)
	}
	return progress.Position, nil
}

func (a *Aggregator) saveState(ctx context.Context) error {
	if a.cfg.Progress == nil {
		return nil
	}

	if len(a.accumulators) == 0 {
		return a.cfg.Progress.SaveProgress(ctx, storage.Progress{Source: a.source, Position: a.cfg.RecomputeFrom})
	}

	safeTs := minOpenWindowStart(a.accumulators)
	if safeTs > 0 {
		safeTs = safeTs - 1
	}
	if safeTs == 0 {
		safeTs = a.cfg.RecomputeFrom
	}
	return a.cfg.Progress.SaveProgress(ctx, storage.Progress{Source: a.source, Position: safeTs})
}

func (a *Aggregator) flushBatches(ctx context.Context, batch []model.PoolWindowMetrics, pools []model.Pool) error {
	if len(pools) > 0 {
		if err := a.store.UpsertPools(ctx, pools); err != nil {
			return fmt.Errorf("upsert pools: %w", err)
		}
	}
	if len(batch) > 0 {
		if err := a.store.UpsertWindowMetrics(ctx, batch); err != nil {
			return fmt.Errorf("upsert window metrics: %w", err)
		}
	}
	return nil
}

// flushAccumulator closes a window. TVL is the reserve pair after the last
// event of the window.
func (a *Aggregator) flushAccumulator(acc *Accumulator) (model.PoolWindowMetrics, *model.Pool) {
	tvlX := new(big.Int).SetUint64(acc.Reserves.ReserveX)
	tvlY := new(big.Int).SetUint64(acc.Reserves.ReserveY)
	feeRateX, feeRateY := computeFeeRates(acc.FeeX, acc.FeeY, tvlX, tvlY)
	apr := computeAPR(feeRateX, feeRateY, a.cfg.WindowSeconds)

	metrics := model.PoolWindowMetrics{
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(a.cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		DepositCount:   acc.DepositCount,
		WithdrawCount:  acc.WithdrawCount,
		VolumeX:        acc.VolumeX.String(),
		VolumeY:        acc.VolumeY.String(),
		FeeX:           acc.FeeX.String(),
		FeeY:           acc.FeeY.String(),
		FeeRateX:       feeRateX,
		FeeRateY:       feeRateY,
		TVLX:           uintString(acc.Reserves.ReserveX),
		TVLY:           uintString(acc.Reserves.ReserveY),
		APR:            apr,
		LastSequence:   acc.LastSequence,
	}

	meta, ok := a.poolMeta[poolKey(acc.PoolID)]
	if !ok {
		a.logger.Warn("missing pool meta", zap.String("pool", acc.PoolID))
		return metrics, nil
	}
	pool := model.Pool{
		PoolID:    acc.PoolID,
		AssetX:    meta.AssetX.Hex(),
		AssetY:    meta.AssetY.Hex(),
		Seed:      meta.Seed,
		FeeBps:    meta.FeeBps,
		LPShareID: meta.LPShareID.Hex(),
		Locked:    acc.Locked,
		ReserveX:  acc.Reserves.ReserveX,
		ReserveY:  acc.Reserves.ReserveY,
		LPSupply:  acc.Reserves.LPSupply,
		Sequence:  acc.LastSequence,
	}
	return metrics, &pool
}

func windowStart(ts uint64, windowSec uint64) uint64 {
	return ts - (ts % windowSec)
}

func poolKey(address string) string {
	return strings.ToLower(address)
}

func minOpenWindowStart(acc map[string]*Accumulator) uint64 {
	var min uint64
	for _, entry := range acc {
		if entry == nil {
			continue
		}
		if min == 0 || entry.WindowStart < min {
			min = entry.WindowStart
		}
	}
	return min
}

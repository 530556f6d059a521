// Package replay applies JSONL operation scripts to a pool engine in
// checkpointed batches.
package replay

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityEngine/internal/amm"
	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// RunConfig holds runtime settings for a replay.
type RunConfig struct {
	FromSeq           uint64
	ToSeq             uint64
	BatchSize         uint64
	Workers           int
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
}

// ResultWriter receives every operation result in sequence order.
type ResultWriter interface {
	Write(value interface{}) error
	Flush() error
}

// SnapshotSink receives operation results and pool snapshots after each batch.
type SnapshotSink interface {
	InsertOperationResults(ctx context.Context, script string, results []model.OperationResult) error
	UpsertPools(ctx context.Context, pools []model.Pool) error
}

// Summary counts what a run did.
type Summary struct {
	Applied  int
	Rejected int
	LastSeq  uint64
}

// Runner replays operation scripts against an engine.
type Runner struct {
	cfg        RunConfig
	engine     *amm.Engine
	ledger     custody.Ledger
	results    ResultWriter
	snapshots  SnapshotSink
	logger     *zap.Logger
	checkpoint storage.ProgressStore
}

// NewRunner builds a Runner with its dependencies. results and snapshots may
// be nil.
func NewRunner(cfg RunConfig, engine *amm.Engine, ledger custody.Ledger, results ResultWriter, snapshots SnapshotSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	var checkpoint storage.ProgressStore
	if cfg.CheckpointEnabled && cfg.CheckpointPath != "" {
		checkpoint = &storage.FileProgress{Path: cfg.CheckpointPath}
	}
	return &Runner{
		cfg:        cfg,
		engine:     engine,
		ledger:     ledger,
		results:    results,
		snapshots:  snapshots,
		logger:     logger,
		checkpoint: checkpoint,
	}
}

// Run replays the script at path.
func (r *Runner) Run(ctx context.Context, path string) (Summary, error) {
	var summary Summary
	if r.engine == nil {
		return summary, fmt.Errorf("engine is nil")
	}
	if r.ledger == nil {
		return summary, fmt.Errorf("ledger is nil")
	}
	if r.cfg.BatchSize == 0 {
		return summary, fmt.Errorf("batch size must be greater than zero")
	}

	ops, err := ReadOperations(path)
	if err != nil {
		return summary, err
	}
	if len(ops) == 0 {
		r.logger.Info("empty script", zap.String("script", path))
		return summary, nil
	}

	from := r.cfg.FromSeq
	to := r.cfg.ToSeq
	if to == 0 {
		to = ops[len(ops)-1].Seq
	}

	if r.checkpoint != nil {
		cp, ok, err := r.checkpoint.LoadProgress(ctx)
		if err != nil {
			return summary, fmt.Errorf("load checkpoint: %w", err)
		}
		if ok && cp.Source == path && cp.Position >= from {
			if cp.Position == math.MaxUint64 {
				return summary, nil
			}
			from = cp.Position + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_applied", cp.Position), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to replay", zap.Uint64("from", from), zap.Uint64("to", to))
		return summary, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	next := 0
	for _, seqRange := range ranges {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		for next < len(ops) && ops[next].Seq < seqRange.From {
			next++
		}
		start := next
		for next < len(ops) && seqRange.Contains(ops[next].Seq) {
			next++
		}
		batch := ops[start:next]

		results, err := r.applyBatch(ctx, batch)
		if err != nil {
			return summary, err
		}
		if err := r.emit(ctx, path, results); err != nil {
			return summary, err
		}
		if r.checkpoint != nil {
			if err := r.checkpoint.SaveProgress(ctx, storage.Progress{Source: path, Position: seqRange.To}); err != nil {
				return summary, fmt.Errorf("save checkpoint: %w", err)
			}
		}

		applied := 0
		for _, res := range results {
			if res.OK {
				applied++
			}
		}
		summary.Applied += applied
		summary.Rejected += len(results) - applied
		summary.LastSeq = seqRange.To

		r.logger.Info("batch complete",
			zap.Int("ops", len(results)),
			zap.Int("rejected", len(results)-applied),
			zap.Uint64("from", seqRange.From),
			zap.Uint64("to", seqRange.To),
		)
	}

	return summary, nil
}

// applyBatch runs a batch in order. Operations are split into groups that
// share no pool and no caller; each group runs sequentially in script order
// and the groups run in parallel. Fund operations can credit any account, so
// they split the batch into separate rounds.
func (r *Runner) applyBatch(ctx context.Context, batch []model.Operation) ([]model.OperationResult, error) {
	results := make([]model.OperationResult, len(batch))

	roundStart := 0
	for i := 0; i <= len(batch); i++ {
		if i < len(batch) && batch[i].Op != OpFund {
			continue
		}
		if err := r.applyRound(ctx, batch[roundStart:i], results[roundStart:i]); err != nil {
			return nil, err
		}
		if i < len(batch) {
			results[i] = Apply(ctx, r.engine, r.ledger, batch[i])
		}
		roundStart = i + 1
	}
	return results, nil
}

func (r *Runner) applyRound(ctx context.Context, ops []model.Operation, results []model.OperationResult) error {
	if len(ops) == 0 {
		return nil
	}

	groups := groupOperations(ops)

	g, gctx := errgroup.WithContext(ctx)
	if r.cfg.Workers > 0 {
		g.SetLimit(r.cfg.Workers)
	}
	for _, indexes := range groups {
		indexes := indexes
		g.Go(func() error {
			for _, i := range indexes {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = Apply(gctx, r.engine, r.ledger, ops[i])
			}
			return nil
		})
	}
	return g.Wait()
}

// groupOperations partitions ops so that any two operations on the same pool
// or by the same caller end up in one group. Indexes inside a group keep
// script order.
func groupOperations(ops []model.Operation) [][]int {
	parent := make([]int, len(ops))
	for i := range parent {
		parent[i] = i
	}
	find := func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	byPool := make(map[model.PoolKey]int)
	byCaller := make(map[model.AssetID]int)
	for i, op := range ops {
		if key, err := ParsePoolKey(op); err == nil {
			if first, ok := byPool[key]; ok {
				union(first, i)
			} else {
				byPool[key] = i
			}
		}
		caller, err := ParseOptionalAssetID(op.Caller)
		if err != nil || caller == nil {
			continue
		}
		if first, ok := byCaller[*caller]; ok {
			union(first, i)
		} else {
			byCaller[*caller] = i
		}
	}

	index := make(map[int]int)
	groups := make([][]int, 0)
	for i := range ops {
		root := find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (r *Runner) emit(ctx context.Context, script string, results []model.OperationResult) error {
	if r.results != nil {
		for _, res := range results {
			if err := r.results.Write(res); err != nil {
				return fmt.Errorf("write result: %w", err)
			}
		}
		if err := r.results.Flush(); err != nil {
			return fmt.Errorf("flush results: %w", err)
		}
	}

	if r.snapshots == nil || len(results) == 0 {
		return nil
	}

	pools, err := r.touchedPools(ctx, results)
	if err != nil {
		return err
	}
	err = withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		if err := r.snapshots.InsertOperationResults(ctx, script, results); err != nil {
			r.logger.Warn("store operation results failed", zap.Error(err))
			return err
		}
		if err := r.snapshots.UpsertPools(ctx, pools); err != nil {
			r.logger.Warn("store pool snapshots failed", zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	return nil
}

func (r *Runner) touchedPools(ctx context.Context, results []model.OperationResult) ([]model.Pool, error) {
	seen := make(map[string]struct{})
	records, err := r.engine.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pools: %w", err)
	}
	for _, res := range results {
		if res.OK && res.Pool != "" {
			seen[res.Pool] = struct{}{}
		}
	}

	pools := make([]model.Pool, 0, len(seen))
	for _, rec := range records {
		snapshot := rec.Snapshot()
		if _, ok := seen[snapshot.PoolID]; ok {
			pools = append(pools, snapshot)
		}
	}
	return pools, nil
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS pools (
	pool_id      TEXT PRIMARY KEY,
	asset_x      TEXT NOT NULL,
	asset_y      TEXT NOT NULL,
	seed         NUMERIC(20,0) NOT NULL,
	fee_bps      INTEGER NOT NULL,
	lp_share_id  TEXT NOT NULL,
	locked       BOOLEAN NOT NULL DEFAULT false,
	reserve_x    NUMERIC(20,0) NOT NULL,
	reserve_y    NUMERIC(20,0) NOT NULL,
	lp_supply    NUMERIC(20,0) NOT NULL,
	sequence     NUMERIC(20,0) NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_id             TEXT NOT NULL,
	window_size_seconds BIGINT NOT NULL,
	window_start_ts     TIMESTAMPTZ NOT NULL,
	window_end_ts       TIMESTAMPTZ NOT NULL,
	swap_count          BIGINT NOT NULL,
	deposit_count       BIGINT NOT NULL,
	withdraw_count      BIGINT NOT NULL,
	volume_x            NUMERIC NOT NULL,
	volume_y            NUMERIC NOT NULL,
	fee_x               NUMERIC NOT NULL,
	fee_y               NUMERIC NOT NULL,
	fee_rate_x          NUMERIC,
	fee_rate_y          NUMERIC,
	tvl_x               NUMERIC,
	tvl_y               NUMERIC,
	apr                 NUMERIC,
	last_sequence       NUMERIC(20,0) NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS pool_operations (
	script      TEXT NOT NULL,
	seq         NUMERIC(20,0) NOT NULL,
	op          TEXT NOT NULL,
	pool_id     TEXT,
	ok          BOOLEAN NOT NULL,
	error       TEXT,
	amount_x    NUMERIC(20,0),
	amount_y    NUMERIC(20,0),
	lp_amount   NUMERIC(20,0),
	amount_in   NUMERIC(20,0),
	amount_out  NUMERIC(20,0),
	fee         NUMERIC(20,0),
	created_at  TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (script, seq)
);

CREATE TABLE IF NOT EXISTS engine_state (
	name               TEXT PRIMARY KEY,
	source             TEXT NOT NULL DEFAULT '',
	last_processed     NUMERIC(20,0) NOT NULL,
	updated_at         TIMESTAMPTZ NOT NULL
);
`

// Store provides Postgres persistence for pool snapshots, replay results and
// window metrics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertPools inserts or updates pool snapshots. A snapshot never replaces a
// newer one.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				pool_id, asset_x, asset_y, seed, fee_bps, lp_share_id, locked,
				reserve_x, reserve_y, lp_supply, sequence, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now(), now())
			ON CONFLICT (pool_id)
			DO UPDATE SET
				locked = EXCLUDED.locked,
				reserve_x = EXCLUDED.reserve_x,
				reserve_y = EXCLUDED.reserve_y,
				lp_supply = EXCLUDED.lp_supply,
				sequence = EXCLUDED.sequence,
				updated_at = now()
			WHERE pools.sequence <= EXCLUDED.sequence
		`,
			pool.PoolID,
			pool.AssetX,
			pool.AssetY,
			numeric(pool.Seed),
			int32(pool.FeeBps),
			pool.LPShareID,
			pool.Locked,
			numeric(pool.ReserveX),
			numeric(pool.ReserveY),
			numeric(pool.LPSupply),
			numeric(pool.Sequence),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertOperationResults records replay outcomes of one script. Re-running a
// sequence of the same script overwrites its row.
func (s *Store) InsertOperationResults(ctx context.Context, script string, results []model.OperationResult) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		var errText *string
		if r.Error != "" {
			errText = &r.Error
		}
		var poolID *string
		if r.Pool != "" {
			poolID = &r.Pool
		}
		batch.Queue(`
			INSERT INTO pool_operations (
				script, seq, op, pool_id, ok, error, amount_x, amount_y, lp_amount, amount_in, amount_out, fee, created_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (script, seq)
			DO UPDATE SET
				op = EXCLUDED.op,
				pool_id = EXCLUDED.pool_id,
				ok = EXCLUDED.ok,
				error = EXCLUDED.error,
				amount_x = EXCLUDED.amount_x,
				amount_y = EXCLUDED.amount_y,
				lp_amount = EXCLUDED.lp_amount,
				amount_in = EXCLUDED.amount_in,
				amount_out = EXCLUDED.amount_out,
				fee = EXCLUDED.fee
		`,
			script,
			numeric(r.Seq),
			r.Op,
			poolID,
			r.OK,
			errText,
			numeric(r.AmountX),
			numeric(r.AmountY),
			numeric(r.LPAmount),
			numeric(r.AmountIn),
			numeric(r.AmountOut),
			numeric(r.Fee),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, deposit_count, withdraw_count, volume_x, volume_y, fee_x, fee_y,
				fee_rate_x, fee_rate_y, tvl_x, tvl_y, apr, last_sequence, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now(),now())
			ON CONFLICT (pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				deposit_count = EXCLUDED.deposit_count,
				withdraw_count = EXCLUDED.withdraw_count,
				volume_x = EXCLUDED.volume_x,
				volume_y = EXCLUDED.volume_y,
				fee_x = EXCLUDED.fee_x,
				fee_y = EXCLUDED.fee_y,
				fee_rate_x = EXCLUDED.fee_rate_x,
				fee_rate_y = EXCLUDED.fee_rate_y,
				tvl_x = EXCLUDED.tvl_x,
				tvl_y = EXCLUDED.tvl_y,
				apr = EXCLUDED.apr,
				last_sequence = EXCLUDED.last_sequence,
				updated_at = now()
		`,
			m.PoolID,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.DepositCount),
			int64(m.WithdrawCount),
			m.VolumeX,
			m.VolumeY,
			m.FeeX,
			m.FeeY,
			m.FeeRateX,
			m.FeeRateY,
			m.TVLX,
			m.TVLY,
			m.APR,
			numeric(m.LastSequence),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Progress returns the resume marker stored under name in engine_state.
func (s *Store) Progress(name string) *Progress {
	return &Progress{store: s, name: name}
}

// Progress is a storage.ProgressStore backed by one engine_state row.
type Progress struct {
	store *Store
	name  string
}

func (p *Progress) LoadProgress(ctx context.Context) (storage.Progress, bool, error) {
	if p.name == "" {
		return storage.Progress{}, false, fmt.Errorf("progress name required")
	}
	var (
		source    string
		position  string
		updatedAt time.Time
	)
	row := p.store.pool.QueryRow(ctx, `
		SELECT source, last_processed::text, updated_at
		FROM engine_state WHERE name=$1
	`, p.name)
	if err := row.Scan(&source, &position, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Progress{}, false, nil
		}
		return storage.Progress{}, false, fmt.Errorf("load progress %s: %w", p.name, err)
	}
	value, err := strconv.ParseUint(position, 10, 64)
	if err != nil {
		return storage.Progress{}, false, fmt.Errorf("parse progress %s: %w", p.name, err)
	}
	return storage.Progress{
		Source:    source,
		Position:  value,
		UpdatedAt: updatedAt.UTC().Format(time.RFC3339Nano),
	}, true, nil
}

func (p *Progress) SaveProgress(ctx context.Context, progress storage.Progress) error {
	if p.name == "" {
		return fmt.Errorf("progress name required")
	}
	_, err := p.store.pool.Exec(ctx, `
		INSERT INTO engine_state (name, source, last_processed, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (name) DO UPDATE
		SET source = EXCLUDED.source, last_processed = EXCLUDED.last_processed, updated_at = now()
	`, p.name, progress.Source, numeric(progress.Position))
	if err != nil {
		return fmt.Errorf("save progress %s: %w", p.name, err)
	}
	return nil
}

// numeric renders a uint64 for a NUMERIC column.
func numeric(v uint64) string {
	return strconv.FormatUint(v, 10)
}

package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/amm"
	"liquidityEngine/internal/custody"
	"liquidityEngine/internal/model"
	"liquidityEngine/internal/storage"
	"liquidityEngine/internal/storage/kv"
)

const (
	tokenX = "0x00000000000000000000000000000000000000a1"
	tokenY = "0x00000000000000000000000000000000000000b2"
	tokenZ = "0x00000000000000000000000000000000000000c3"
	alice  = "0x1111111111111111111111111111111111111111"
	bob    = "0x2222222222222222222222222222222222222222"
)

const script = `{"seq":1,"op":"init","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"fee_bps":25}
{"seq":2,"op":"init","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":2,"fee_bps":30}
# balances
{"seq":3,"op":"fund","asset":"` + tokenX + `","caller":"` + alice + `","amount":1000000}
{"seq":4,"op":"fund","asset":"` + tokenY + `","caller":"` + alice + `","amount":1000000}
{"seq":5,"op":"deposit","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"caller":"` + alice + `","amount":150000,"max_x":150000,"max_y":150000}
{"seq":6,"op":"deposit","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":2,"caller":"` + alice + `","amount":1000,"max_x":1000,"max_y":1000}
{"seq":7,"op":"swap","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"caller":"` + alice + `","direction":"x_to_y","amount":1000,"min_out":990}
{"seq":8,"op":"swap","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":2,"caller":"` + alice + `","direction":"y","amount":10,"min_out":100}

{"seq":10,"op":"withdraw","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"caller":"` + alice + `","amount":75000}
{"seq":9,"op":"swap","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"caller":"` + alice + `","direction":"y_to_x","amount":500}
`

type recordingSnapshots struct {
	mu      sync.Mutex
	scripts map[string]int
	results []model.OperationResult
	pools   map[string]model.Pool
}

func (s *recordingSnapshots) InsertOperationResults(ctx context.Context, script string, results []model.OperationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scripts == nil {
		s.scripts = make(map[string]int)
	}
	s.scripts[script] += len(results)
	s.results = append(s.results, results...)
	return nil
}

func (s *recordingSnapshots) UpsertPools(ctx context.Context, pools []model.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pools == nil {
		s.pools = make(map[string]model.Pool)
	}
	for _, p := range pools {
		s.pools[p.PoolID] = p
	}
	return nil
}

func newEngine(t *testing.T) (*amm.Engine, *custody.KVLedger) {
	t.Helper()
	mem := kv.NewMemory()
	store, err := storage.NewKVPoolStore(mem, 0)
	require.NoError(t, err)
	ledger := custody.NewKVLedger(mem)
	return amm.NewEngine(store, ledger, amm.Options{}), ledger
}

func readResults(t *testing.T, path string) []model.OperationResult {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var out []model.OperationResult
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var res model.OperationResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &res))
		out = append(out, res)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRunnerReplaysScript(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "ops.jsonl")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o644))

	resultsPath := filepath.Join(dir, "results.jsonl")
	writer, err := storage.NewJSONLWriter(resultsPath, false)
	require.NoError(t, err)

	engine, ledger := newEngine(t)
	snapshots := &recordingSnapshots{}
	cfg := RunConfig{
		BatchSize:         3,
		Workers:           4,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
	}

	runner := NewRunner(cfg, engine, ledger, writer, snapshots, nil)
	summary, err := runner.Run(ctx, scriptPath)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.Equal(t, Summary{Applied: 9, Rejected: 1, LastSeq: 10}, summary)

	results := readResults(t, resultsPath)
	require.Len(t, results, 10)
	for i, res := range results {
		require.Equal(t, uint64(i+1), res.Seq)
	}
	require.False(t, results[7].OK)
	require.Contains(t, results[7].Error, amm.ErrSlippageExceeded.Error())
	require.Equal(t, uint64(990), results[6].AmountOut)
	require.Equal(t, uint64(502), results[8].AmountOut)
	require.Equal(t, uint64(75249), results[9].AmountX)
	require.Equal(t, uint64(74755), results[9].AmountY)

	keyA := model.PoolKey{AssetX: mustAsset(t, tokenX), AssetY: mustAsset(t, tokenY), Seed: 1}
	rec, err := engine.Get(ctx, keyA)
	require.NoError(t, err)
	require.Equal(t, model.ReserveLedger{ReserveX: 75249, ReserveY: 74755, LPSupply: 75000}, rec.Reserves)
	require.NoError(t, engine.Reconcile(ctx, keyA))

	require.Len(t, snapshots.results, 10)
	require.Equal(t, map[string]int{scriptPath: 10}, snapshots.scripts)
	snapshot, ok := snapshots.pools[keyA.PoolID().Hex()]
	require.True(t, ok)
	require.Equal(t, uint64(75000), snapshot.LPSupply)

	// The checkpoint covers the whole script, so a second run is a no-op.
	again, err := NewRunner(cfg, engine, ledger, nil, nil, nil).Run(ctx, scriptPath)
	require.NoError(t, err)
	require.Equal(t, Summary{}, again)
}

func TestRunnerResumesAfterCheckpoint(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "ops.jsonl")
	require.NoError(t, os.WriteFile(scriptPath, []byte(script), 0o644))

	engine, ledger := newEngine(t)
	cfg := RunConfig{BatchSize: 100, ToSeq: 6, CheckpointPath: filepath.Join(dir, "cp.json"), CheckpointEnabled: true}
	summary, err := NewRunner(cfg, engine, ledger, nil, nil, nil).Run(ctx, scriptPath)
	require.NoError(t, err)
	require.Equal(t, 6, summary.Applied)

	cfg.ToSeq = 0
	summary, err = NewRunner(cfg, engine, ledger, nil, nil, nil).Run(ctx, scriptPath)
	require.NoError(t, err)
	require.Equal(t, Summary{Applied: 3, Rejected: 1, LastSeq: 10}, summary)
}

// Alice can pay for one deposit only. The earlier deposit must win no matter
// how the two pools are scheduled.
const sharedCallerScript = `{"seq":1,"op":"fund","asset":"` + tokenX + `","caller":"` + alice + `","amount":1000}
{"seq":2,"op":"fund","asset":"` + tokenY + `","caller":"` + alice + `","amount":1000}
{"seq":3,"op":"fund","asset":"` + tokenZ + `","caller":"` + alice + `","amount":1000}
{"seq":4,"op":"init","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"fee_bps":30}
{"seq":5,"op":"init","asset_x":"` + tokenX + `","asset_y":"` + tokenZ + `","seed":1,"fee_bps":30}
{"seq":6,"op":"deposit","asset_x":"` + tokenX + `","asset_y":"` + tokenZ + `","seed":1,"caller":"` + alice + `","amount":1000,"max_x":1000,"max_y":1000}
{"seq":7,"op":"deposit","asset_x":"` + tokenX + `","asset_y":"` + tokenY + `","seed":1,"caller":"` + alice + `","amount":1000,"max_x":1000,"max_y":1000}
`

func TestRunnerKeepsScriptOrderForSharedCaller(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "ops.jsonl")
	require.NoError(t, os.WriteFile(scriptPath, []byte(sharedCallerScript), 0o644))

	for _, workers := range []int{1, 2, 8} {
		for run := 0; run < 5; run++ {
			resultsPath := filepath.Join(dir, "results.jsonl")
			writer, err := storage.NewJSONLWriter(resultsPath, false)
			require.NoError(t, err)

			engine, ledger := newEngine(t)
			summary, err := NewRunner(RunConfig{BatchSize: 100, Workers: workers}, engine, ledger, writer, nil, nil).Run(ctx, scriptPath)
			require.NoError(t, err)
			require.NoError(t, writer.Close())
			require.Equal(t, Summary{Applied: 6, Rejected: 1, LastSeq: 7}, summary)

			results := readResults(t, resultsPath)
			require.Len(t, results, 7)
			require.True(t, results[5].OK, "workers %d: %s", workers, results[5].Error)
			require.Equal(t, uint64(1000), results[5].LPAmount)
			require.False(t, results[6].OK, "workers %d", workers)
			require.Contains(t, results[6].Error, custody.ErrInsufficientBalance.Error())
		}
	}
}

func TestGroupOperations(t *testing.T) {
	op := func(seq uint64, y string, seed uint64, caller string) model.Operation {
		return model.Operation{Seq: seq, Op: OpDeposit, AssetX: tokenX, AssetY: y, Seed: seed, Caller: caller}
	}
	ops := []model.Operation{
		op(1, tokenY, 1, alice),
		op(2, tokenZ, 1, bob),
		op(3, tokenY, 2, bob),
		op(4, tokenZ, 2, alice),
		op(5, tokenY, 3, ""),
		op(6, tokenY, 3, strings.ToUpper(alice[2:])),
	}
	// alice links pools Y/1 and Z/2, bob links Z/1 and Y/2. Pool Y/3 joins
	// alice through op 6.
	require.Equal(t, [][]int{{0, 3, 4, 5}, {1, 2}}, groupOperations(ops))

	ops = []model.Operation{op(1, tokenY, 1, alice), op(2, tokenZ, 1, bob), op(3, tokenY, 1, bob)}
	require.Equal(t, [][]int{{0, 1, 2}}, groupOperations(ops))
}

func TestReadOperationsRejectsDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.jsonl")
	body := strings.Join([]string{`{"seq":1,"op":"fund"}`, `{"seq":1,"op":"fund"}`}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	_, err := ReadOperations(path)
	require.ErrorContains(t, err, "duplicate sequence 1")
}

func TestApplyRejectsUnknownOperation(t *testing.T) {
	engine, ledger := newEngine(t)
	res := Apply(context.Background(), engine, ledger, model.Operation{Seq: 1, Op: "close", AssetX: tokenX, AssetY: tokenY})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "unknown operation")
}

func mustAsset(t *testing.T, input string) model.AssetID {
	t.Helper()
	id, err := model.ParseAssetID(input)
	require.NoError(t, err)
	return id
}

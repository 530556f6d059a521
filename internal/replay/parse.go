package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"liquidityEngine/internal/model"
)

// Operation names accepted in a script.
const (
	OpInit      = "init"
	OpFund      = "fund"
	OpDeposit   = "deposit"
	OpBootstrap = "bootstrap"
	OpWithdraw  = "withdraw"
	OpSwap      = "swap"
	OpLock      = "lock"
	OpUnlock    = "unlock"
)

// ReadOperations loads a JSONL operation script sorted by sequence. Sequence
// numbers must be unique.
func ReadOperations(path string) ([]model.Operation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var ops []model.Operation
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 || raw[0] == '#' {
			continue
		}
		var op model.Operation
		if err := json.Unmarshal(raw, &op); err != nil {
			return nil, fmt.Errorf("script line %d: %w", line, err)
		}
		op.Op = strings.ToLower(strings.TrimSpace(op.Op))
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan script: %w", err)
	}

	sort.SliceStable(ops, func(i, j int) bool { return ops[i].Seq < ops[j].Seq })
	for i := 1; i < len(ops); i++ {
		if ops[i].Seq == ops[i-1].Seq {
			return nil, fmt.Errorf("duplicate sequence %d", ops[i].Seq)
		}
	}
	return ops, nil
}

// ParsePoolKey builds the pool key addressed by an operation.
func ParsePoolKey(op model.Operation) (model.PoolKey, error) {
	x, err := model.ParseAssetID(op.AssetX)
	if err != nil {
		return model.PoolKey{}, fmt.Errorf("asset_x: %w", err)
	}
	y, err := model.ParseAssetID(op.AssetY)
	if err != nil {
		return model.PoolKey{}, fmt.Errorf("asset_y: %w", err)
	}
	return model.PoolKey{AssetX: x, AssetY: y, Seed: op.Seed}, nil
}

// ParseOptionalAssetID parses an id that may be left empty.
func ParseOptionalAssetID(input string) (*model.AssetID, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	id, err := model.ParseAssetID(input)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

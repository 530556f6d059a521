package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"liquidityEngine/internal/model"
)

func TestJsonlStorageAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "events.jsonl")
	sink := NewJsonlStorage(path)

	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{Sequence: 1, Address: "0x01"}}))
	require.NoError(t, sink.PutLogBatch(nil))
	require.NoError(t, sink.PutLogBatch([]model.LogRecord{{Sequence: 2, Address: "0x01"}}))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var seqs []uint64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec model.LogRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		seqs = append(seqs, rec.Sequence)
	}
	require.NoError(t, scanner.Err())
	require.Equal(t, []uint64{1, 2}, seqs)
}

func TestJSONLWriterTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")

	w, err := NewJSONLWriter(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]int{"a": 1}))
	require.NoError(t, w.Close())

	w, err = NewJSONLWriter(path, false)
	require.NoError(t, err)
	require.NoError(t, w.Write(map[string]int{"b": 2}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "{\"b\":2}\n", string(data))
}

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileProgressRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := &FileProgress{Path: filepath.Join(t.TempDir(), "nested", "progress.json")}

	_, ok, err := p.LoadProgress(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, p.SaveProgress(ctx, Progress{Source: "ops.jsonl", Position: 42}))
	got, ok, err := p.LoadProgress(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "ops.jsonl", got.Source)
	require.Equal(t, uint64(42), got.Position)
	require.NotEmpty(t, got.UpdatedAt)

	require.NoError(t, p.SaveProgress(ctx, Progress{Source: "ops.jsonl", Position: 43}))
	got, _, err = p.LoadProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(43), got.Position)
}

func TestFileProgressDisabled(t *testing.T) {
	ctx := context.Background()
	var p *FileProgress
	require.NoError(t, p.SaveProgress(ctx, Progress{Position: 1}))
	_, ok, err := (&FileProgress{}).LoadProgress(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileProgressRejectsDirectory(t *testing.T) {
	_, _, err := (&FileProgress{Path: t.TempDir()}).LoadProgress(context.Background())
	require.ErrorContains(t, err, "is a directory")
}

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"gigchain/core"
	"gigchain/storage"
	"gigchain/storage/eventstore"
)

const genesisJSON = `{
  "genesisTime": "2024-01-01T00:00:00Z",
  "admin": "0xadadadadadadadadadadadadadadadadadadadad",
  "escrow": {"feePercent": 5, "feeRecipient": "0xfefefefefefefefefefefefefefefefefefefefe"},
  "tokens": [{"symbol": "USDC", "name": "USD Coin", "decimals": 6}],
  "alloc": {"0x0101010101010101010101010101010101010101": {"USDC": "1000"}},
  "principals": [
    {"address": "0x0101010101010101010101010101010101010101", "name": "alice", "roles": ["client"]}
  ]
}`

func TestResolveGenesisPath(t *testing.T) {
	env := func(v string) func(string) (string, bool) {
		return func(string) (string, bool) { return v, v != "" }
	}
	require.Equal(t, "flag.json", resolveGenesisPath(" flag.json ", "cfg.json", env("env.json")))
	require.Equal(t, "env.json", resolveGenesisPath("", "cfg.json", env("env.json")))
	require.Equal(t, "cfg.json", resolveGenesisPath("", "cfg.json", env("")))
	require.Equal(t, "", resolveGenesisPath("", "", env("")))
}

func TestEnsureGenesisAndBackfill(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()
	path := filepath.Join(dir, "genesis.json")
	require.NoError(t, os.WriteFile(path, []byte(genesisJSON), 0o600))

	node, err := core.NewNode(storage.NewMemDB())
	require.NoError(t, err)
	require.Error(t, ensureGenesis(ctx, node, "", logger))
	require.NoError(t, ensureGenesis(ctx, node, path, logger))
	require.NoError(t, ensureGenesis(ctx, node, filepath.Join(dir, "missing.json"), logger), "initialised ledgers skip genesis")

	index, err := eventstore.Open(":memory:")
	require.NoError(t, err)
	defer index.Close()
	require.NoError(t, backfill(ctx, node, index))

	committed, err := node.Events(ctx, 1, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, committed)
	last, err := index.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, committed[len(committed)-1].Sequence, last)

	require.NoError(t, backfill(ctx, node, index))
	again, err := index.LastSequence(ctx)
	require.NoError(t, err)
	require.Equal(t, last, again)
}

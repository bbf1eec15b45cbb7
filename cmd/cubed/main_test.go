package main

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/bitcoinrpc"
	"cube/params"
	"cube/storage"
)

func TestStorePathPerChain(t *testing.T) {
	require.Equal(t, filepath.Join("data", "signet"), storePath("data", params.ChainSignet))
	require.Equal(t, filepath.Join("data", "mainnet"), storePath("data", params.ChainMainnet))
	require.NotEqual(t,
		storePath("data", params.ChainSignet),
		storePath("data", params.ChainTestbed))
}

type stubEstimator struct {
	rate uint64
	err  error
}

func (s stubEstimator) EstimateFeeRate(context.Context, uint64) (uint64, error) {
	return s.rate, s.err
}

func TestRefreshFeeRateStoresEstimate(t *testing.T) {
	store := params.NewStore(storage.NewMemDB(), slog.Default())
	refreshFeeRate(context.Background(), stubEstimator{rate: 21}, store, slog.Default())

	rate, err := store.FeeRate(1)
	require.NoError(t, err)
	require.Equal(t, uint64(21), rate)
}

func TestRefreshFeeRateKeepsStoredOnFailure(t *testing.T) {
	store := params.NewStore(storage.NewMemDB(), slog.Default())
	require.NoError(t, store.SetFeeRate(7))

	refreshFeeRate(context.Background(),
		stubEstimator{err: bitcoinrpc.ErrNoFeeEstimate}, store, slog.Default())
	refreshFeeRate(context.Background(),
		stubEstimator{err: errors.New("connection refused")}, store, slog.Default())

	rate, err := store.FeeRate(1)
	require.NoError(t, err)
	require.Equal(t, uint64(7), rate)
}

package params

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/storage"
)

func TestParseChain(t *testing.T) {
	chain, err := ParseChain(" Signet ")
	require.NoError(t, err)
	require.Equal(t, ChainSignet, chain)

	chain, err = ParseChain("mainnet")
	require.NoError(t, err)
	require.Equal(t, "main", chain.BitcoinNetworkName())

	chain, err = ParseChain("testbed")
	require.NoError(t, err)
	require.Equal(t, "signet", chain.BitcoinNetworkName())

	_, err = ParseChain("regtest")
	require.ErrorIs(t, err, ErrUnknownChain)
}

func TestFeeRateFallback(t *testing.T) {
	store := NewStore(storage.NewMemDB(), slog.Default())

	rate, err := store.FeeRate(7)
	require.NoError(t, err)
	require.Equal(t, uint64(7), rate)
}

func TestFeeRatePersists(t *testing.T) {
	db := storage.NewMemDB()
	store := NewStore(db, slog.Default())

	require.NoError(t, store.SetFeeRate(21))
	rate, err := store.FeeRate(7)
	require.NoError(t, err)
	require.Equal(t, uint64(21), rate)

	// A fresh store over the same database sees the stored rate.
	rate, err = NewStore(db, slog.Default()).FeeRate(7)
	require.NoError(t, err)
	require.Equal(t, uint64(21), rate)
}

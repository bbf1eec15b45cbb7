package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyspaceIsolation(t *testing.T) {
	db := NewMemDB()
	coins := NewKeyspace(db, "coin")
	graves := NewKeyspace(db, "graveyard")

	require.NoError(t, coins.Put([]byte("a"), []byte("k1")))
	require.NoError(t, graves.Put([]byte("b"), []byte("k1")))

	got, err := coins.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("a"), got)

	got, err = graves.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("b"), got)

	require.NoError(t, coins.Delete([]byte("k1")))
	ok, err := coins.Has([]byte("k1"))
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = graves.Has([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestKeyspaceIterateStripsPrefix(t *testing.T) {
	db := NewMemDB()
	ks := NewKeyspace(db, "state")

	require.NoError(t, ks.Put([]byte("1"), []byte("c1"), []byte("x")))
	require.NoError(t, ks.Put([]byte("2"), []byte("c1"), []byte("y")))
	require.NoError(t, ks.Put([]byte("3"), []byte("c2"), []byte("z")))

	seen := map[string]string{}
	err := ks.Iterate(func(key, value []byte) error {
		seen[string(key)] = string(value)
		return nil
	}, []byte("c1"))
	require.NoError(t, err)
	require.Equal(t, map[string]string{"c1x": "1", "c1y": "2"}, seen)
}

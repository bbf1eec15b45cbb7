package entity

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/ape"
)

type fakeRegistry struct {
	accounts  map[uint64]Account
	contracts map[uint64]Contract
	keys      map[Key]bool
	ids       map[Key]bool
}

func (f *fakeRegistry) AccountByRank(rank uint64) (Account, bool) {
	a, ok := f.accounts[rank]
	return a, ok
}

func (f *fakeRegistry) ContractByRank(rank uint64) (Contract, bool) {
	c, ok := f.contracts[rank]
	return c, ok
}

func (f *fakeRegistry) IsAccountRegistered(key Key) bool { return f.keys[key] }
func (f *fakeRegistry) IsContractRegistered(id Key) bool { return f.ids[id] }

// The x coordinate of the secp256k1 generator point; always on curve.
var curveKey = func() Key {
	raw, err := hex.DecodeString("79be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798")
	if err != nil {
		panic(err)
	}
	var k Key
	copy(k[:], raw)
	return k
}()

func TestAccountRankRoundTrip(t *testing.T) {
	var key Key
	for i := range key {
		key[i] = 0x01
	}
	account := NewRegisteredAccount(key, 1)
	reg := &fakeRegistry{accounts: map[uint64]Account{1: account}}

	w := ape.NewWriter()
	account.Encode(w, RankShort)
	// Rank 1 as a ShortVal: 2 tier bits plus 8 value bits.
	require.Equal(t, 10, w.BitLen())
	require.Equal(t, []byte{0x00, 0x40}, w.Bytes())

	r := ape.NewReader(w.Bytes())
	got, err := DecodeAccount(r, reg, RankShort)
	require.NoError(t, err)
	require.Equal(t, account, got)
}

func TestAccountLiteralKeyBranch(t *testing.T) {
	account := NewUnregisteredAccount(curveKey)
	reg := &fakeRegistry{keys: map[Key]bool{}}

	w := ape.NewWriter()
	account.Encode(w, RankShort)
	// Zero rank plus 256 literal key bits.
	require.Equal(t, 10+256, w.BitLen())

	r := ape.NewReader(w.Bytes())
	got, err := DecodeAccount(r, reg, RankShort)
	require.NoError(t, err)
	require.Equal(t, account, got)
	require.False(t, got.Registered())
}

func TestAccountLiteralKeyAlreadyRegistered(t *testing.T) {
	account := NewUnregisteredAccount(curveKey)
	reg := &fakeRegistry{keys: map[Key]bool{curveKey: true}}

	w := ape.NewWriter()
	account.Encode(w, RankShort)
	r := ape.NewReader(w.Bytes())
	_, err := DecodeAccount(r, reg, RankShort)
	require.ErrorIs(t, err, ErrKeyAlreadyRegistered)
}

func TestAccountLiteralKeyNotOnCurve(t *testing.T) {
	// The field prime minus one is not the x coordinate of any curve point.
	raw, err := hex.DecodeString("fffffffffffffffffffffffffffffffffffffffffffffffffffffffefffffc2e")
	require.NoError(t, err)
	var key Key
	copy(key[:], raw)

	w := ape.NewWriter()
	NewUnregisteredAccount(key).Encode(w, RankShort)
	r := ape.NewReader(w.Bytes())
	_, err = DecodeAccount(r, &fakeRegistry{keys: map[Key]bool{}}, RankShort)
	require.ErrorIs(t, err, ErrKeyNotOnCurve)
}

func TestContractRankRoundTripLongForm(t *testing.T) {
	var id Key
	id[0] = 0xCA
	contract := NewRegisteredContract(id, 300, 4)
	reg := &fakeRegistry{contracts: map[uint64]Contract{300: contract}}

	w := ape.NewWriter()
	contract.Encode(w, RankLong)

	r := ape.NewReader(w.Bytes())
	got, err := DecodeContract(r, reg, RankLong)
	require.NoError(t, err)
	require.Equal(t, contract, got)
}

func TestRankNotFound(t *testing.T) {
	w := ape.NewWriter()
	NewRegisteredAccount(Key{}, 7).Encode(w, RankShort)
	r := ape.NewReader(w.Bytes())
	_, err := DecodeAccount(r, &fakeRegistry{accounts: map[uint64]Account{}}, RankShort)
	require.ErrorIs(t, err, ErrRankNotFound)
}

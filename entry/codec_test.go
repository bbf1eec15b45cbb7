package entry

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/ape"
	"cube/calldata"
	"cube/entity"
)

type fakeRegistry struct {
	accounts  map[uint64]entity.Account
	contracts map[uint64]entity.Contract
}

func (f *fakeRegistry) AccountByRank(rank uint64) (entity.Account, bool) {
	a, ok := f.accounts[rank]
	return a, ok
}

func (f *fakeRegistry) ContractByRank(rank uint64) (entity.Contract, bool) {
	c, ok := f.contracts[rank]
	return c, ok
}

func (f *fakeRegistry) IsAccountRegistered(key entity.Key) bool {
	for _, a := range f.accounts {
		if a.Key == key {
			return true
		}
	}
	return false
}

func (f *fakeRegistry) IsContractRegistered(id entity.Key) bool {
	for _, c := range f.contracts {
		if c.ID == id {
			return true
		}
	}
	return false
}

type fakeResolver map[uint8][]calldata.ElementType

func (f fakeResolver) MethodSignature(_ entity.Key, methodIndex uint8) ([]calldata.ElementType, error) {
	sig, ok := f[methodIndex]
	if !ok {
		return nil, fmt.Errorf("no method %d", methodIndex)
	}
	return sig, nil
}

func testOptions() (DecodeOptions, *Call) {
	var accountKey, contractID entity.Key
	accountKey[0] = 0x01
	contractID[0] = 0x02
	account := entity.NewRegisteredAccount(accountKey, 1)
	contract := entity.NewRegisteredContract(contractID, 1, 4)

	opts := DecodeOptions{
		Registry: &fakeRegistry{
			accounts:  map[uint64]entity.Account{1: account},
			contracts: map[uint64]entity.Contract{1: contract},
		},
		Methods: fakeResolver{
			2: {
				{Kind: calldata.KindAccount},
				{Kind: calldata.KindPayable},
				{Kind: calldata.KindVarbytes},
			},
		},
	}
	budget := uint32(500)
	call := &Call{
		Account:     account,
		Contract:    contract,
		MethodIndex: 2,
		Calldata: []calldata.Element{
			calldata.NewAccount(account),
			calldata.NewPayable(1000),
			calldata.NewVarbytes([]byte{0xAA, 0xBB, 0xCC}),
		},
		OpsBudget: &budget,
	}
	return opts, call
}

func TestCallRoundTrip(t *testing.T) {
	opts, call := testOptions()

	w := ape.NewWriter()
	require.NoError(t, NewCallEntry(call).Encode(w, opts))

	decoded, err := Decode(ape.NewReader(w.Bytes()), opts)
	require.NoError(t, err)
	require.NotNil(t, decoded.Call)
	require.Equal(t, call, decoded.Call)
}

func TestCallDiscriminatorBits(t *testing.T) {
	opts, call := testOptions()

	w := ape.NewWriter()
	require.NoError(t, NewCallEntry(call).Encode(w, opts))

	r := ape.NewReader(w.Bytes())
	common, err := r.ReadBool()
	require.NoError(t, err)
	require.True(t, common)
	move, err := r.ReadBool()
	require.NoError(t, err)
	require.False(t, move)
}

func TestDecodeReservedBranches(t *testing.T) {
	opts, _ := testOptions()

	// Uncommon branch: leading zero bit.
	_, err := Decode(ape.NewReader([]byte{0x00}), opts)
	require.ErrorIs(t, err, ErrUncommonBranchNotImplemented)

	// Move entry: common bit set, move bit set.
	w := ape.NewWriter()
	w.WriteBool(true)
	w.WriteBool(true)
	_, err = Decode(ape.NewReader(w.Bytes()), opts)
	require.ErrorIs(t, err, ErrMoveNotImplemented)
}

func TestEncodeRejectsSignatureMismatch(t *testing.T) {
	opts, call := testOptions()
	call.Calldata = call.Calldata[:2]

	w := ape.NewWriter()
	require.ErrorIs(t, NewCallEntry(call).Encode(w, opts), ErrSignatureMismatch)

	call.Calldata = []calldata.Element{
		calldata.NewU8(1),
		calldata.NewPayable(1000),
		calldata.NewVarbytes(nil),
	}
	require.ErrorIs(t, NewCallEntry(call).Encode(ape.NewWriter(), opts), ErrSignatureMismatch)
}

func TestEncodeRejectsMethodIndexOutOfRange(t *testing.T) {
	opts, call := testOptions()
	call.MethodIndex = 4

	require.ErrorIs(t, NewCallEntry(call).Encode(ape.NewWriter(), opts), ErrMethodIndexOutOfRange)
}

func TestOptionalFieldsAbsent(t *testing.T) {
	opts, call := testOptions()
	call.OpsBudget = nil
	call.OpsPriceOverhead = nil

	w := ape.NewWriter()
	require.NoError(t, NewCallEntry(call).Encode(w, opts))

	decoded, err := Decode(ape.NewReader(w.Bytes()), opts)
	require.NoError(t, err)
	require.Nil(t, decoded.Call.OpsBudget)
	require.Nil(t, decoded.Call.OpsPriceOverhead)
}

package state

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/entity"
	"cube/storage"
)

func testContract(b byte) entity.Key {
	var id entity.Key
	for i := range id {
		id[i] = b
	}
	return id
}

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	m, err := NewManager(db, slog.Default())
	require.NoError(t, err)
	return m, db
}

func TestRegisterContract(t *testing.T) {
	m, _ := newTestManager(t)
	escrow := testContract(0xee)

	require.False(t, m.IsContractRegistered(escrow))
	require.NoError(t, m.RegisterContract(escrow))
	require.True(t, m.IsContractRegistered(escrow))
	require.ErrorIs(t, m.RegisterContract(escrow), ErrContractAlreadyRegistered)
}

func TestInsertUpdateAndRemove(t *testing.T) {
	m, _ := newTestManager(t)
	escrow := testContract(0xee)
	require.NoError(t, m.RegisterContract(escrow))

	previous, err := m.InsertUpdateState(escrow, []byte("owner"), []byte("alice"), true)
	require.NoError(t, err)
	require.Nil(t, previous)

	value, ok := m.StateValue(escrow, []byte("owner"))
	require.True(t, ok)
	require.Equal(t, []byte("alice"), value)

	previous, err = m.InsertUpdateState(escrow, []byte("owner"), []byte("bob"), true)
	require.NoError(t, err)
	require.Equal(t, []byte("alice"), previous)

	_, err = m.InsertUpdateState(escrow, []byte("owner"), []byte("carol"), false)
	require.ErrorIs(t, err, ErrStateExists)

	require.NoError(t, m.RemoveState(escrow, []byte("owner")))
	_, ok = m.StateValue(escrow, []byte("owner"))
	require.False(t, ok)
	require.ErrorIs(t, m.RemoveState(escrow, []byte("owner")), ErrStateNotFound)
}

func TestInsertAfterRemoveRetractsRemoval(t *testing.T) {
	m, _ := newTestManager(t)
	escrow := testContract(0xee)
	require.NoError(t, m.RegisterContract(escrow))

	_, err := m.InsertUpdateState(escrow, []byte("k"), []byte("v1"), true)
	require.NoError(t, err)
	require.NoError(t, m.RemoveState(escrow, []byte("k")))

	_, err = m.InsertUpdateState(escrow, []byte("k"), []byte("v2"), true)
	require.NoError(t, err)

	value, ok := m.StateValue(escrow, []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v2"), value)
}

func TestBoundsChecks(t *testing.T) {
	m, _ := newTestManager(t)
	escrow := testContract(0xee)
	require.NoError(t, m.RegisterContract(escrow))

	_, err := m.InsertUpdateState(escrow, nil, []byte("v"), true)
	require.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = m.InsertUpdateState(escrow, bytes.Repeat([]byte{0x01}, MaxKeyLength+1), []byte("v"), true)
	require.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = m.InsertUpdateState(escrow, []byte("k"), nil, true)
	require.ErrorIs(t, err, ErrInvalidValueLength)

	_, err = m.InsertUpdateState(escrow, []byte("k"), bytes.Repeat([]byte{0x01}, MaxValueLength+1), true)
	require.ErrorIs(t, err, ErrInvalidValueLength)

	_, err = m.InsertUpdateState(escrow, bytes.Repeat([]byte{0x01}, MaxKeyLength),
		bytes.Repeat([]byte{0x02}, MaxValueLength), true)
	require.NoError(t, err)
}

func TestUnregisteredContractRejected(t *testing.T) {
	m, _ := newTestManager(t)
	unknown := testContract(0x99)

	_, err := m.InsertUpdateState(unknown, []byte("k"), []byte("v"), true)
	require.ErrorIs(t, err, ErrContractNotRegistered)
	require.ErrorIs(t, m.RemoveState(unknown, []byte("k")), ErrContractNotRegistered)
}

func TestRollbackRestoresDelta(t *testing.T) {
	m, _ := newTestManager(t)
	escrow := testContract(0xee)
	require.NoError(t, m.RegisterContract(escrow))
	_, err := m.InsertUpdateState(escrow, []byte("k"), []byte("v1"), true)
	require.NoError(t, err)
	require.NoError(t, m.ApplyChanges())

	m.PreExecution()
	_, err = m.InsertUpdateState(escrow, []byte("k"), []byte("v2"), true)
	require.NoError(t, err)
	require.NoError(t, m.RemoveState(escrow, []byte("k")))
	m.RollbackLast()

	value, ok := m.StateValue(escrow, []byte("k"))
	require.True(t, ok)
	require.Equal(t, []byte("v1"), value)
}

func TestApplyChangesPersistsAndReloads(t *testing.T) {
	m, db := newTestManager(t)
	escrow := testContract(0xee)
	vault := testContract(0xab)

	require.NoError(t, m.RegisterContract(escrow))
	require.NoError(t, m.RegisterContract(vault))
	_, err := m.InsertUpdateState(escrow, []byte("owner"), []byte("alice"), true)
	require.NoError(t, err)
	_, err = m.InsertUpdateState(escrow, []byte("limit"), []byte{0x64}, true)
	require.NoError(t, err)
	require.NoError(t, m.ApplyChanges())

	// Second batch: update one key, remove the other.
	_, err = m.InsertUpdateState(escrow, []byte("owner"), []byte("bob"), true)
	require.NoError(t, err)
	require.NoError(t, m.RemoveState(escrow, []byte("limit")))
	require.NoError(t, m.ApplyChanges())

	reloaded, err := NewManager(db, slog.Default())
	require.NoError(t, err)

	require.True(t, reloaded.IsContractRegistered(escrow))
	require.True(t, reloaded.IsContractRegistered(vault))

	value, ok := reloaded.StateValue(escrow, []byte("owner"))
	require.True(t, ok)
	require.Equal(t, []byte("bob"), value)

	_, ok = reloaded.StateValue(escrow, []byte("limit"))
	require.False(t, ok)

	_, ok = reloaded.StateValue(vault, []byte("owner"))
	require.False(t, ok)
}

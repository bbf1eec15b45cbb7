package engine

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/coin"
	"cube/entity"
	"cube/flame"
	"cube/graveyard"
	"cube/registry"
	"cube/state"
	"cube/storage"
)

func testKey(b byte) entity.Key {
	var key entity.Key
	for i := range key {
		key[i] = b
	}
	return key
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db := storage.NewMemDB()
	log := slog.Default()

	rm, err := registry.NewManager(db, log)
	require.NoError(t, err)
	holder, err := coin.NewHolder(db, log)
	require.NoError(t, err)
	cm := coin.NewManager(holder, log)
	sm, err := state.NewManager(db, log)
	require.NoError(t, err)
	fm, err := flame.NewManager(db, log)
	require.NoError(t, err)
	gy, err := graveyard.NewManager(db, log)
	require.NoError(t, err)

	return New(Managers{
		Registry:  rm,
		Coin:      cm,
		State:     sm,
		Flames:    fm,
		Graveyard: gy,
	}, log)
}

func TestExecuteBatchAppliesAllManagers(t *testing.T) {
	e := newTestEngine(t)
	alice := testKey(0x0a)
	escrow := testKey(0xee)
	cfg := &flame.Config{TierAny: []byte{0x51}}

	template, err := e.ExecuteBatch(Heights{NewProjector: 5}, func(m Managers) error {
		if _, err := m.Registry.RegisterAccount(alice, nil, nil, cfg); err != nil {
			return err
		}
		if err := m.Coin.RegisterAccount(alice, 0); err != nil {
			return err
		}
		if err := m.Flames.RegisterAccount(alice, cfg); err != nil {
			return err
		}
		if err := m.Coin.RegisterContract(escrow); err != nil {
			return err
		}
		if err := m.State.RegisterContract(escrow); err != nil {
			return err
		}
		if err := m.Coin.ContractBalanceUp(escrow, 1_000); err != nil {
			return err
		}
		if err := m.Coin.ShadowAllocAccount(escrow, alice); err != nil {
			return err
		}
		return m.Coin.ShadowUp(escrow, alice, 400)
	})
	require.NoError(t, err)

	// Alice's 400 sat shadow sum is projected as a single any-amount flame.
	require.Len(t, template, 1)
	require.Equal(t, alice, template[0].Account)
	require.Len(t, template[0].Flames, 1)
	require.Equal(t, uint64(400), template[0].Flames[0].Flame.Tier.Amount())

	balance, err := e.mgrs.Coin.ContractBalance(escrow)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), balance)
	require.True(t, e.mgrs.Registry.IsAccountRegistered(alice))
	require.True(t, e.mgrs.State.IsContractRegistered(escrow))
}

func TestExecuteBatchRollsBackOnError(t *testing.T) {
	e := newTestEngine(t)
	alice := testKey(0x0a)
	boom := errors.New("boom")

	_, err := e.ExecuteBatch(Heights{NewProjector: 1}, func(m Managers) error {
		if err := m.Coin.RegisterAccount(alice, 500); err != nil {
			return err
		}
		if err := m.Graveyard.BuryAccount(alice, 1_000); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.False(t, e.mgrs.Coin.AccountExists(alice))
	require.False(t, e.mgrs.Graveyard.IsAccountBuried(alice))

	// The next batch starts clean.
	_, err = e.ExecuteBatch(Heights{NewProjector: 2}, func(m Managers) error {
		return m.Coin.RegisterAccount(alice, 500)
	})
	require.NoError(t, err)
	require.True(t, e.mgrs.Coin.AccountExists(alice))
}

package flame

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"cube/entity"
	"cube/storage"
)

type fakeFunding struct {
	affected []entity.Key
	targets  map[entity.Key]uint64
}

func (f *fakeFunding) AffectedAccounts() []entity.Key {
	return f.affected
}

func (f *fakeFunding) TargetFlameValue(key entity.Key) (uint64, bool) {
	target, ok := f.targets[key]
	return target, ok
}

func testAccount(b byte) entity.Key {
	var key entity.Key
	for i := range key {
		key[i] = b
	}
	return key
}

func tieredConfig() *Config {
	return &Config{
		Tier100: []byte{0x51, 0x01},
		Tier1K:  []byte{0x51, 0x02},
		Tier10K: []byte{0x51, 0x03},
	}
}

func newTestManager(t *testing.T) (*Manager, storage.Database) {
	t.Helper()
	db := storage.NewMemDB()
	m, err := NewManager(db, slog.Default())
	require.NoError(t, err)
	return m, db
}

func TestFlamesToFundAnyAmount(t *testing.T) {
	cfg := &Config{TierAny: []byte{0x51}}
	flames := FlamesToFund(cfg, 12_345, 2_345)
	require.Len(t, flames, 1)
	require.Equal(t, uint64(10_000), flames[0].Tier.Amount())
	require.Equal(t, []byte{0x51}, flames[0].ScriptPubKey)
}

func TestFlamesToFundGreedyDecomposition(t *testing.T) {
	// Gap of 12,400: one 10k, two 1k, four 100.
	flames := FlamesToFund(tieredConfig(), 12_400, 0)
	var total uint64
	counts := make(map[uint64]int)
	for _, f := range flames {
		total += f.Tier.Amount()
		counts[f.Tier.Amount()]++
	}
	require.Equal(t, uint64(12_400), total)
	require.Equal(t, 1, counts[10_000])
	require.Equal(t, 2, counts[1_000])
	require.Equal(t, 4, counts[100])
}

func TestFlamesToFundRoundsUpRemainder(t *testing.T) {
	// Gap of 250 over a 100-only config: two full tiers plus one extra.
	cfg := &Config{Tier100: []byte{0x51}}
	flames := FlamesToFund(cfg, 250, 0)
	require.Len(t, flames, 3)
	for _, f := range flames {
		require.Equal(t, uint64(100), f.Tier.Amount())
	}
}

func TestFlamesToFundNoGap(t *testing.T) {
	require.Nil(t, FlamesToFund(tieredConfig(), 100, 100))
	require.Nil(t, FlamesToFund(tieredConfig(), 100, 200))
	require.Nil(t, FlamesToFund(&Config{}, 1_000, 0))
	require.Nil(t, FlamesToFund(nil, 1_000, 0))
}

func TestSortFlamesOrdering(t *testing.T) {
	alice := testAccount(0x0a)
	bob := testAccount(0x0b)

	byAccount := map[entity.Key][]Flame{
		bob: {
			{Tier: NewTier(100), ScriptPubKey: []byte{0x01}},
			{Tier: NewTier(10_000), ScriptPubKey: []byte{0x02}},
		},
		alice: {
			{Tier: NewTier(1_000), ScriptPubKey: []byte{0x03}},
		},
	}

	template := SortFlames(byAccount)
	require.Len(t, template, 2)

	// Alice fills first, then Bob with descending amounts.
	require.Equal(t, alice, template[0].Account)
	require.Equal(t, uint32(0), template[0].Flames[0].Index)
	require.Equal(t, uint64(1_000), template[0].Flames[0].Flame.Tier.Amount())

	require.Equal(t, bob, template[1].Account)
	require.Equal(t, uint32(1), template[1].Flames[0].Index)
	require.Equal(t, uint64(10_000), template[1].Flames[0].Flame.Tier.Amount())
	require.Equal(t, uint32(2), template[1].Flames[1].Index)
	require.Equal(t, uint64(100), template[1].Flames[1].Flame.Tier.Amount())
}

func TestRegisterAccountAndConfig(t *testing.T) {
	m, _ := newTestManager(t)
	alice := testAccount(0x0a)

	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	require.ErrorIs(t, m.RegisterAccount(alice, nil), ErrAccountAlreadyRegistered)

	cfg, ok := m.ConfigByKey(alice)
	require.True(t, ok)
	require.True(t, cfg.Configured())

	// Updates require a permanently registered account.
	_, err := m.UpdateConfig(alice, &Config{TierAny: []byte{0x51}})
	require.ErrorIs(t, err, ErrAccountNotRegistered)
}

func TestUpdateConfigOncePerBatch(t *testing.T) {
	m, _ := newTestManager(t)
	alice := testAccount(0x0a)
	funding := &fakeFunding{targets: map[entity.Key]uint64{alice: 0}}

	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	_, err := m.ApplyChanges(funding, 1, 0)
	require.NoError(t, err)

	previous, err := m.UpdateConfig(alice, &Config{TierAny: []byte{0x51}})
	require.NoError(t, err)
	require.True(t, previous.Configured())

	_, err = m.UpdateConfig(alice, &Config{TierAny: []byte{0x52}})
	require.ErrorIs(t, err, ErrConfigAlreadyUpdated)
}

func TestApplyChangesFundsAffectedAccounts(t *testing.T) {
	m, _ := newTestManager(t)
	alice := testAccount(0x0a)
	bob := testAccount(0x0b)
	funding := &fakeFunding{
		affected: []entity.Key{alice, bob},
		targets:  map[entity.Key]uint64{alice: 10_000, bob: 1_000},
	}

	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	require.NoError(t, m.RegisterAccount(bob, tieredConfig()))

	template, err := m.ApplyChanges(funding, 5, 0)
	require.NoError(t, err)
	require.Len(t, template, 2)
	require.Equal(t, alice, template[0].Account)
	require.Len(t, template[0].Flames, 1)
	require.Equal(t, uint64(10_000), template[0].Flames[0].Flame.Tier.Amount())
	require.Equal(t, bob, template[1].Account)
	require.Equal(t, uint32(1), template[1].Flames[0].Index)

	set, ok := m.FlameSet(alice)
	require.True(t, ok)
	require.Len(t, set[5], 1)
}

func TestApplyChangesPrunesExpiredFlames(t *testing.T) {
	m, _ := newTestManager(t)
	alice := testAccount(0x0a)
	funding := &fakeFunding{
		affected: []entity.Key{alice},
		targets:  map[entity.Key]uint64{alice: 10_000},
	}

	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	_, err := m.ApplyChanges(funding, 5, 0)
	require.NoError(t, err)

	// Height 5 expires; the gap reopens and is refunded at height 9.
	funding.affected = nil
	template, err := m.ApplyChanges(funding, 9, 5)
	require.NoError(t, err)
	require.Len(t, template, 1)

	set, ok := m.FlameSet(alice)
	require.True(t, ok)
	require.Empty(t, set[5])
	require.Len(t, set[9], 1)
}

func TestApplyChangesPersistsAndReloads(t *testing.T) {
	m, db := newTestManager(t)
	alice := testAccount(0x0a)
	funding := &fakeFunding{
		affected: []entity.Key{alice},
		targets:  map[entity.Key]uint64{alice: 11_100},
	}

	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	_, err := m.ApplyChanges(funding, 5, 0)
	require.NoError(t, err)

	reloaded, err := NewManager(db, slog.Default())
	require.NoError(t, err)

	require.True(t, reloaded.IsAccountRegistered(alice))
	cfg, ok := reloaded.ConfigByKey(alice)
	require.True(t, ok)
	wantEncoded, err := EncodeConfig(tieredConfig())
	require.NoError(t, err)
	gotEncoded, err := EncodeConfig(cfg)
	require.NoError(t, err)
	require.Equal(t, wantEncoded, gotEncoded)

	set, ok := reloaded.FlameSet(alice)
	require.True(t, ok)
	require.Len(t, set[5], 3)
	var total uint64
	for _, f := range set[5] {
		total += f.Flame.Tier.Amount()
	}
	require.Equal(t, uint64(11_100), total)
}

func TestRollbackRestoresDelta(t *testing.T) {
	m, _ := newTestManager(t)
	alice := testAccount(0x0a)

	m.PreExecution()
	require.NoError(t, m.RegisterAccount(alice, tieredConfig()))
	m.RollbackLast()

	require.False(t, m.IsAccountRegistered(alice))
	require.NoError(t, m.RegisterAccount(alice, nil))
}

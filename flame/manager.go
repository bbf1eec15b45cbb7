package flame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"cube/entity"
	"cube/storage"
)

var (
	ErrAccountAlreadyRegistered = errors.New("flame: account already registered")
	ErrAccountNotRegistered     = errors.New("flame: account not registered")
	ErrConfigAlreadyUpdated     = errors.New("flame: config already updated in this batch")
	ErrTargetValueUnavailable   = errors.New("flame: target flame value unavailable")
	ErrCorruptFlameRecord       = errors.New("flame: corrupt record")
)

// configSubkey marks the per-account config record; flame records use a
// 12-byte subkey of projector height and global index instead.
var configSubkey = []byte{0x00}

// FundingSource tells ApplyChanges which accounts need their projected
// outputs rebuilt and how many satoshi each account's flame set should
// cover. The coin manager implements it.
type FundingSource interface {
	AffectedAccounts() []entity.Key
	TargetFlameValue(key entity.Key) (uint64, bool)
}

// Manager owns the per-account flame sets and configs. Registrations and
// config updates stage into a delta; ApplyChanges prunes expired flames,
// funds the gap for every affected account and assigns the global
// projection ordering for the new height.
type Manager struct {
	mu       sync.Mutex
	log      *slog.Logger
	accounts storage.Keyspace

	memConfigs map[entity.Key]*Config
	memSets    map[entity.Key]map[uint64][]IndexedFlame

	delta  *delta
	backup *delta
}

// NewManager loads every account's config and flame set from db.
func NewManager(db storage.Database, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		log:        log.With("component", "flame_manager"),
		accounts:   storage.NewKeyspace(db, "flame/accounts"),
		memConfigs: make(map[entity.Key]*Config),
		memSets:    make(map[entity.Key]map[uint64][]IndexedFlame),
		delta:      newDelta(),
		backup:     newDelta(),
	}

	err := m.accounts.Iterate(func(key, value []byte) error {
		if len(key) < entity.KeyLength+1 {
			return fmt.Errorf("%w: key %x", ErrCorruptFlameRecord, key)
		}
		account := entity.Key(key[:entity.KeyLength])
		subkey := key[entity.KeyLength:]

		switch len(subkey) {
		case 1:
			if subkey[0] != configSubkey[0] {
				return fmt.Errorf("%w: account %x subkey %x", ErrCorruptFlameRecord, account, subkey)
			}
			cfg := &Config{}
			if len(value) > 0 {
				decoded, err := DecodeConfig(value)
				if err != nil {
					return fmt.Errorf("%w: account %x config: %v", ErrCorruptFlameRecord, account, err)
				}
				cfg = decoded
			}
			m.memConfigs[account] = cfg
			if _, ok := m.memSets[account]; !ok {
				m.memSets[account] = make(map[uint64][]IndexedFlame)
			}
			return nil
		case 12:
			height := binary.LittleEndian.Uint64(subkey[:8])
			index := binary.LittleEndian.Uint32(subkey[8:])
			f, err := DecodeFlame(value)
			if err != nil {
				return fmt.Errorf("%w: account %x flame: %v", ErrCorruptFlameRecord, account, err)
			}
			set, ok := m.memSets[account]
			if !ok {
				set = make(map[uint64][]IndexedFlame)
				m.memSets[account] = set
			}
			set[height] = append(set[height], IndexedFlame{Index: index, Flame: f})
			return nil
		default:
			return fmt.Errorf("%w: account %x subkey %x", ErrCorruptFlameRecord, account, subkey)
		}
	})
	if err != nil {
		return nil, err
	}

	// Records come back in key order, but heights interleave; restore
	// the index order within each height.
	for _, set := range m.memSets {
		for _, flames := range set {
			sort.Slice(flames, func(i, j int) bool {
				return flames[i].Index < flames[j].Index
			})
		}
	}

	m.log.Debug("flame sets loaded", "accounts", len(m.memConfigs))
	return m, nil
}

// PreExecution snapshots the delta for RollbackLast.
func (m *Manager) PreExecution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backup = m.delta.clone()
}

// RollbackLast restores the delta captured by the last PreExecution.
func (m *Manager) RollbackLast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delta = m.backup.clone()
}

// FlushDelta discards all ephemeral changes.
func (m *Manager) FlushDelta() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushDelta()
}

func (m *Manager) flushDelta() {
	m.delta = newDelta()
	m.backup = newDelta()
}

// IsAccountRegistered observes the permanent and ephemeral union.
func (m *Manager) IsAccountRegistered(key entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRegistered(key)
}

func (m *Manager) isRegistered(key entity.Key) bool {
	if m.delta.hasAccount(key) {
		return true
	}
	_, ok := m.memConfigs[key]
	return ok
}

// RegisterAccount stages a new account, optionally with its config.
func (m *Manager) RegisterAccount(key entity.Key, cfg *Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRegistered(key) {
		return fmt.Errorf("%w: %x", ErrAccountAlreadyRegistered, key)
	}
	m.delta.newAccounts = append(m.delta.newAccounts, newAccount{key: key, config: cfg})
	return nil
}

// UpdateConfig stages a config replacement for a permanently registered
// account. At most one update per account per batch.
func (m *Manager) UpdateConfig(key entity.Key, cfg *Config) (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	previous, ok := m.memConfigs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	if _, updated := m.delta.updatedConfigs[key]; updated {
		return nil, fmt.Errorf("%w: %x", ErrConfigAlreadyUpdated, key)
	}
	m.delta.updatedConfigs[key] = cfg
	return previous, nil
}

// ConfigByKey returns the account's config, observing ephemeral updates
// and registrations before the permanent state.
func (m *Manager) ConfigByKey(key entity.Key) (*Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.delta.updatedConfigs[key]; ok {
		return cfg, true
	}
	for _, na := range m.delta.newAccounts {
		if na.key == key && na.config != nil {
			return na.config, true
		}
	}
	cfg, ok := m.memConfigs[key]
	return cfg, ok
}

// FlameSet returns a copy of the account's flames grouped by projector
// height.
func (m *Manager) FlameSet(key entity.Key) (map[uint64][]IndexedFlame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.memSets[key]
	if !ok {
		return nil, false
	}
	c := make(map[uint64][]IndexedFlame, len(set))
	for height, flames := range set {
		c[height] = append([]IndexedFlame(nil), flames...)
	}
	return c, true
}

// ApplyChanges durably applies registrations and config updates, prunes
// flames projected at or below expiryHeight, funds the value gap of
// every affected account and records the new projection at newHeight.
// The returned template lists the funded flames in global index order.
func (m *Manager) ApplyChanges(funding FundingSource, newHeight, expiryHeight uint64) ([]AccountFlames, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, na := range m.delta.newAccounts {
		if err := m.persistConfig(na.key, na.config); err != nil {
			return nil, err
		}
		cfg := na.config
		if cfg == nil {
			cfg = &Config{}
		}
		m.memConfigs[na.key] = cfg
		if _, ok := m.memSets[na.key]; !ok {
			m.memSets[na.key] = make(map[uint64][]IndexedFlame)
		}
	}

	for key, cfg := range m.delta.updatedConfigs {
		if _, ok := m.memConfigs[key]; !ok {
			return nil, fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
		}
		if err := m.persistConfig(key, cfg); err != nil {
			return nil, err
		}
		m.memConfigs[key] = cfg
	}

	affected := make(map[entity.Key]struct{})
	for _, key := range funding.AffectedAccounts() {
		affected[key] = struct{}{}
	}
	for key, set := range m.memSets {
		for height := range set {
			if height <= expiryHeight {
				affected[key] = struct{}{}
				break
			}
		}
	}

	toFund := make(map[entity.Key][]Flame)
	for key := range affected {
		cfg, ok := m.memConfigs[key]
		if !ok || !cfg.Configured() {
			continue
		}
		set := m.memSets[key]
		if set == nil {
			set = make(map[uint64][]IndexedFlame)
			m.memSets[key] = set
		}

		for height, flames := range set {
			if height > expiryHeight {
				continue
			}
			for _, f := range flames {
				if err := m.accounts.Delete(key[:], flameSubkey(height, f.Index)); err != nil {
					return nil, err
				}
			}
			delete(set, height)
		}

		target, ok := funding.TargetFlameValue(key)
		if !ok {
			return nil, fmt.Errorf("%w: %x", ErrTargetValueUnavailable, key)
		}
		var current uint64
		for _, flames := range set {
			for _, f := range flames {
				current += f.Flame.Tier.Amount()
			}
		}
		toFund[key] = FlamesToFund(cfg, target, current)
	}

	template := SortFlames(toFund)
	for _, af := range template {
		set := m.memSets[af.Account]
		set[newHeight] = append([]IndexedFlame(nil), af.Flames...)
		for _, f := range af.Flames {
			encoded, err := f.Flame.Encode()
			if err != nil {
				return nil, err
			}
			if err := m.accounts.Put(encoded, af.Account[:], flameSubkey(newHeight, f.Index)); err != nil {
				return nil, err
			}
		}
	}

	m.log.Debug("flame projection applied",
		"new_accounts", len(m.delta.newAccounts),
		"updated_configs", len(m.delta.updatedConfigs),
		"funded_accounts", len(template),
		"projector_height", newHeight)
	m.flushDelta()
	return template, nil
}

func (m *Manager) persistConfig(key entity.Key, cfg *Config) error {
	value := []byte{}
	if cfg != nil {
		encoded, err := EncodeConfig(cfg)
		if err != nil {
			return err
		}
		value = encoded
	}
	return m.accounts.Put(value, key[:], configSubkey)
}

func flameSubkey(height uint64, index uint32) []byte {
	subkey := make([]byte, 12)
	binary.LittleEndian.PutUint64(subkey[:8], height)
	binary.LittleEndian.PutUint32(subkey[8:], index)
	return subkey
}

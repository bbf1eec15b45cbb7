// Package graveyard stores destroyed accounts together with the satoshi
// amount their owner may still redeem on the base chain. Burial is
// permanent; redemption zeroes the amount but keeps the grave so the
// account key can never be buried twice.
package graveyard

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cube/entity"
	"cube/observability"
	"cube/params"
	"cube/storage"
)

// MinRedemptionAmount is the dust floor for redemptions in satoshi.
const MinRedemptionAmount = uint64(params.MinRedemptionAmount)

var (
	ErrAlreadyBuried      = errors.New("graveyard: account already buried")
	ErrNotBuried          = errors.New("graveyard: account not buried")
	ErrAlreadyRedeemed    = errors.New("graveyard: coins already redeemed in this batch")
	ErrJustBuried         = errors.New("graveyard: account buried in this batch")
	ErrBelowMinRedemption = errors.New("graveyard: redemption amount below minimum")
	ErrCorruptGraveRecord = errors.New("graveyard: corrupt record")
)

type delta struct {
	toBury      map[entity.Key]uint64
	redemptions map[entity.Key]struct{}
}

func newDelta() *delta {
	return &delta{
		toBury:      make(map[entity.Key]uint64),
		redemptions: make(map[entity.Key]struct{}),
	}
}

func (d *delta) clone() *delta {
	c := newDelta()
	for key, amount := range d.toBury {
		c.toBury[key] = amount
	}
	for key := range d.redemptions {
		c.redemptions[key] = struct{}{}
	}
	return c
}

// Manager owns the buried account records. A single guard covers both
// the permanent records and the delta.
type Manager struct {
	mu       sync.Mutex
	log      *slog.Logger
	accounts storage.Keyspace

	memBuried map[entity.Key]uint64

	delta  *delta
	backup *delta
}

// NewManager loads every grave from db into memory.
func NewManager(db storage.Database, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		log:       log.With("component", "graveyard"),
		accounts:  storage.NewKeyspace(db, "graveyard/accounts"),
		memBuried: make(map[entity.Key]uint64),
		delta:     newDelta(),
		backup:    newDelta(),
	}

	err := m.accounts.Iterate(func(key, value []byte) error {
		if len(key) != entity.KeyLength || len(value) != 8 {
			return fmt.Errorf("%w: key %x", ErrCorruptGraveRecord, key)
		}
		m.memBuried[entity.Key(key)] = binary.LittleEndian.Uint64(value)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Debug("graveyard loaded", "buried", len(m.memBuried))
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

// IsAccountBuried observes the permanent and ephemeral union.
func (m *Manager) IsAccountBuried(key entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isBuried(key)
}

func (m *Manager) isBuried(key entity.Key) bool {
	if _, ok := m.delta.toBury[key]; ok {
		return true
	}
	_, ok := m.memBuried[key]
	return ok
}

// RedemptionAmount returns the satoshi amount still redeemable for a
// buried account.
func (m *Manager) RedemptionAmount(key entity.Key) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, redeemed := m.delta.redemptions[key]; redeemed {
		return 0, true
	}
	if amount, ok := m.delta.toBury[key]; ok {
		return amount, true
	}
	amount, ok := m.memBuried[key]
	return amount, ok
}

// BuryAccount stages a burial. An account can only ever be buried once.
func (m *Manager) BuryAccount(key entity.Key, redemptionSat uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isBuried(key) {
		return fmt.Errorf("%w: %x", ErrAlreadyBuried, key)
	}
	m.delta.toBury[key] = redemptionSat
	return nil
}

// RedeemAccountCoins stages a redemption and returns the amount paid
// out. Redemption of an account buried in the same batch is rejected;
// the burial has to be durable first.
func (m *Manager) RedeemAccountCoins(key entity.Key) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, redeemed := m.delta.redemptions[key]; redeemed {
		return 0, fmt.Errorf("%w: %x", ErrAlreadyRedeemed, key)
	}
	if _, buried := m.delta.toBury[key]; buried {
		return 0, fmt.Errorf("%w: %x", ErrJustBuried, key)
	}
	amount, ok := m.memBuried[key]
	if !ok {
		return 0, fmt.Errorf("%w: %x", ErrNotBuried, key)
	}
	if amount < MinRedemptionAmount {
		return 0, fmt.Errorf("%w: account %x has %d, minimum %d",
			ErrBelowMinRedemption, key, amount, MinRedemptionAmount)
	}
	m.delta.redemptions[key] = struct{}{}
	return amount, nil
}

// ApplyChanges durably applies redemptions and burials, then flushes
// the delta.
func (m *Manager) ApplyChanges() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.delta.redemptions {
		if err := m.putGrave(key, 0); err != nil {
			return err
		}
		observability.Events().RecordRedemption()
	}
	for key, amount := range m.delta.toBury {
		if err := m.putGrave(key, amount); err != nil {
			return err
		}
		observability.Events().RecordBurial()
	}

	m.log.Debug("graveyard delta applied",
		"buried", len(m.delta.toBury),
		"redeemed", len(m.delta.redemptions))
	m.flushDelta()
	return nil
}

func (m *Manager) putGrave(key entity.Key, amount uint64) error {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, amount)
	if err := m.accounts.Put(value, key[:]); err != nil {
		return err
	}
	m.memBuried[key] = amount
	return nil
}

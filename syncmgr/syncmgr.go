// Package syncmgr tracks how far the node has caught up with the
// Bitcoin chain and with the rollup itself. Both cursors only move
// forward and are persisted on every update; the synced flag is a purely
// in-memory signal set by the orchestrator.
package syncmgr

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cube/storage"
)

var ErrHeightRegression = errors.New("syncmgr: sync height may not decrease")

var (
	bitcoinHeightKey = []byte("bitcoin_sync_height")
	rollupHeightKey  = []byte("rollup_sync_height")
)

// Manager holds the two sync cursors and the ephemeral synced flag.
type Manager struct {
	mu      sync.Mutex
	log     *slog.Logger
	heights storage.Keyspace

	synced        bool
	bitcoinHeight uint64
	rollupHeight  uint64
}

// NewManager loads the persisted cursors from db; absent cursors start
// at zero.
func NewManager(db storage.Database, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		log:     log.With("component", "sync_manager"),
		heights: storage.NewKeyspace(db, "sync/heights"),
	}

	var err error
	if m.bitcoinHeight, err = m.loadHeight(bitcoinHeightKey); err != nil {
		return nil, err
	}
	if m.rollupHeight, err = m.loadHeight(rollupHeightKey); err != nil {
		return nil, err
	}

	m.log.Debug("sync cursors loaded",
		"bitcoin_height", m.bitcoinHeight,
		"rollup_height", m.rollupHeight)
	return m, nil
}

func (m *Manager) loadHeight(key []byte) (uint64, error) {
	has, err := m.heights.Has(key)
	if err != nil {
		return 0, err
	}
	if !has {
		return 0, nil
	}
	value, err := m.heights.Get(key)
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return 0, fmt.Errorf("syncmgr: corrupt cursor %s: %x", key, value)
	}
	return binary.BigEndian.Uint64(value), nil
}

// SetSynced flips the ephemeral caught-up flag.
func (m *Manager) SetSynced(synced bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.synced = synced
}

// Synced reports whether the orchestrator considers the node caught up.
func (m *Manager) Synced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.synced
}

// BitcoinSyncHeight returns the Bitcoin chain cursor.
func (m *Manager) BitcoinSyncHeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bitcoinHeight
}

// RollupSyncHeight returns the rollup cursor.
func (m *Manager) RollupSyncHeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rollupHeight
}

// SetBitcoinSyncHeight advances and persists the Bitcoin chain cursor.
func (m *Manager) SetBitcoinSyncHeight(height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height < m.bitcoinHeight {
		return fmt.Errorf("%w: bitcoin %d -> %d", ErrHeightRegression, m.bitcoinHeight, height)
	}
	if err := m.putHeight(bitcoinHeightKey, height); err != nil {
		return err
	}
	m.bitcoinHeight = height
	return nil
}

// SetRollupSyncHeight advances and persists the rollup cursor.
func (m *Manager) SetRollupSyncHeight(height uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if height < m.rollupHeight {
		return fmt.Errorf("%w: rollup %d -> %d", ErrHeightRegression, m.rollupHeight, height)
	}
	if err := m.putHeight(rollupHeightKey, height); err != nil {
		return err
	}
	m.rollupHeight = height
	return nil
}

func (m *Manager) putHeight(key []byte, height uint64) error {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, height)
	return m.heights.Put(value, key)
}

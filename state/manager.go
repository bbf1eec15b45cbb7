// Package state keeps the per-contract key value stores. Each registered
// contract owns an isolated map of variable length keys to values, held
// fully in memory and mirrored to disk on ApplyChanges.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cube/entity"
	"cube/storage"
)

// Bounds on state keys and values.
const (
	MinKeyLength   = 1
	MaxKeyLength   = 256
	MinValueLength = 1
	MaxValueLength = 4095
)

var (
	ErrContractAlreadyRegistered = errors.New("state: contract already registered")
	ErrContractNotRegistered     = errors.New("state: contract not registered")
	ErrInvalidKeyLength          = errors.New("state: invalid key length")
	ErrInvalidValueLength        = errors.New("state: invalid value length")
	ErrStateExists               = errors.New("state: key already holds a value")
	ErrStateNotFound             = errors.New("state: key holds no value")
)

// Manager owns the contract state stores. Reads observe the union of the
// ephemeral delta and the permanent states; mutators stage into the delta
// until ApplyChanges.
type Manager struct {
	mu        sync.Mutex
	log       *slog.Logger
	contracts storage.Keyspace
	values    storage.Keyspace

	memStates map[entity.Key]map[string][]byte

	delta  *delta
	backup *delta
}

// NewManager loads every contract state store from db into memory.
func NewManager(db storage.Database, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		log:       log.With("component", "state_manager"),
		contracts: storage.NewKeyspace(db, "state/contracts"),
		values:    storage.NewKeyspace(db, "state/values"),
		memStates: make(map[entity.Key]map[string][]byte),
		delta:     newDelta(),
		backup:    newDelta(),
	}

	err := m.contracts.Iterate(func(key, _ []byte) error {
		if len(key) != entity.KeyLength {
			return fmt.Errorf("state: malformed contract marker key %x", key)
		}
		m.memStates[entity.Key(key)] = make(map[string][]byte)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = m.values.Iterate(func(key, value []byte) error {
		if len(key) <= entity.KeyLength {
			return fmt.Errorf("state: malformed state key %x", key)
		}
		id := entity.Key(key[:entity.KeyLength])
		states, ok := m.memStates[id]
		if !ok {
			return fmt.Errorf("state: value for unregistered contract %x", id)
		}
		states[string(key[entity.KeyLength:])] = append([]byte(nil), value...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Debug("state stores loaded", "contracts", len(m.memStates))
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

// IsContractRegistered observes the permanent and ephemeral union.
func (m *Manager) IsContractRegistered(id entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRegistered(id)
}

func (m *Manager) isRegistered(id entity.Key) bool {
	if m.delta.hasContract(id) {
		return true
	}
	_, ok := m.memStates[id]
	return ok
}

// RegisterContract creates an empty state store for the contract.
func (m *Manager) RegisterContract(id entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.isRegistered(id) {
		return fmt.Errorf("%w: %x", ErrContractAlreadyRegistered, id)
	}
	m.delta.registerContract(id)
	return nil
}

// StateValue returns the value held under key, observing ephemeral
// writes and removals before the permanent states.
func (m *Manager) StateValue(id entity.Key, key []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateValue(id, key)
}

func (m *Manager) stateValue(id entity.Key, key []byte) ([]byte, bool) {
	if value, decided := m.delta.stateValue(id, string(key)); decided {
		if value == nil {
			return nil, false
		}
		return append([]byte(nil), value...), true
	}
	states, ok := m.memStates[id]
	if !ok {
		return nil, false
	}
	value, ok := states[string(key)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), value...), true
}

// InsertUpdateState stages a value under key. When the key already holds
// a value it is overwritten and the previous value returned, unless
// allowOverwrite is false.
func (m *Manager) InsertUpdateState(id entity.Key, key, value []byte, allowOverwrite bool) ([]byte, error) {
	if err := checkBounds(key, value); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isRegistered(id) {
		return nil, fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}

	previous, exists := m.stateValue(id, key)
	if exists {
		if !allowOverwrite {
			return nil, fmt.Errorf("%w: contract %x key %x", ErrStateExists, id, key)
		}
		m.delta.updateState(id, string(key), value)
		return previous, nil
	}
	m.delta.insertState(id, string(key), value)
	return nil, nil
}

// RemoveState stages the removal of key. Removing an absent key fails.
func (m *Manager) RemoveState(id entity.Key, key []byte) error {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, len(key))
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isRegistered(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	if _, exists := m.stateValue(id, key); !exists {
		return fmt.Errorf("%w: contract %x key %x", ErrStateNotFound, id, key)
	}
	m.delta.removeState(id, string(key))
	return nil
}

// ApplyChanges durably applies the delta. Per contract the order is new
// states, then updates, then removals, so a removal staged after a write
// wins on disk the same way it does in reads.
func (m *Manager) ApplyChanges() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.delta.newContracts {
		if err := m.contracts.Put([]byte{0x01}, id[:]); err != nil {
			return err
		}
		if _, ok := m.memStates[id]; !ok {
			m.memStates[id] = make(map[string][]byte)
		}
	}

	for id, states := range m.delta.newStates {
		for key, value := range states {
			if err := m.putState(id, key, value); err != nil {
				return err
			}
		}
	}
	for id, states := range m.delta.updatedStates {
		for key, value := range states {
			if err := m.putState(id, key, value); err != nil {
				return err
			}
		}
	}
	for id, removed := range m.delta.removedStates {
		for key := range removed {
			if err := m.values.Delete(id[:], []byte(key)); err != nil {
				return err
			}
			if states, ok := m.memStates[id]; ok {
				delete(states, key)
			}
		}
	}

	m.log.Debug("state delta applied",
		"new_contracts", len(m.delta.newContracts),
		"inserted", len(m.delta.newStates),
		"updated", len(m.delta.updatedStates),
		"removed", len(m.delta.removedStates))
	m.flushDelta()
	return nil
}

func (m *Manager) putState(id entity.Key, key string, value []byte) error {
	if err := m.values.Put(value, id[:], []byte(key)); err != nil {
		return err
	}
	states, ok := m.memStates[id]
	if !ok {
		states = make(map[string][]byte)
		m.memStates[id] = states
	}
	states[key] = append([]byte(nil), value...)
	return nil
}

func checkBounds(key, value []byte) error {
	if len(key) < MinKeyLength || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %d bytes", ErrInvalidKeyLength, len(key))
	}
	if len(value) < MinValueLength || len(value) > MaxValueLength {
		return fmt.Errorf("%w: %d bytes", ErrInvalidValueLength, len(value))
	}
	return nil
}

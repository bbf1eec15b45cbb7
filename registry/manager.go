package registry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"cube/calldata"
	"cube/entity"
	"cube/executable"
	"cube/flame"
	"cube/storage"
)

// Per-entity field discriminators. Each entity's record is a sub-tree of
// keys formed as 32-byte id followed by one of these bytes.
var (
	fieldRegistryIndex = []byte{0x00}
	fieldCallCounter   = []byte{0x01}
	fieldProgramBytes  = []byte{0x02}
	fieldBLSKey        = []byte{0x03}
	fieldSecondaryKey  = []byte{0x04}
	fieldFlameConfig   = []byte{0x05}
)

var (
	ErrAccountAlreadyRegistered  = errors.New("registry: account already registered")
	ErrContractAlreadyRegistered = errors.New("registry: contract already registered")
	ErrAccountNotRegistered      = errors.New("registry: account not registered")
	ErrContractNotRegistered     = errors.New("registry: contract not registered")
	ErrBLSKeyConflict            = errors.New("registry: bls key already in use")
	ErrBLSKeyAlreadySet          = errors.New("registry: bls key already set")
	ErrSecondaryKeyAlreadySet    = errors.New("registry: secondary key already updated this batch")
	ErrMethodNotFound            = errors.New("registry: method not found")
	ErrCorruptRecord             = errors.New("registry: corrupt on-disk record")
)

// Manager is the registry of accounts and contracts. Mutations accumulate
// in an in-memory delta until ApplyChanges persists them; reads observe
// the union of permanent records and the delta.
type Manager struct {
	mu  sync.Mutex
	log *slog.Logger

	accounts  storage.Keyspace
	contracts storage.Keyspace

	memAccounts  map[entity.Key]*AccountRecord
	memContracts map[entity.Key]*ContractRecord

	accountRanks  map[uint64]entity.Key
	contractRanks map[uint64]entity.Key

	delta  *delta
	backup *delta
}

// NewManager loads every registry record from db into memory.
func NewManager(db storage.Database, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		log:           log.With("component", "registry"),
		accounts:      storage.NewKeyspace(db, "registry/accounts"),
		contracts:     storage.NewKeyspace(db, "registry/contracts"),
		memAccounts:   make(map[entity.Key]*AccountRecord),
		memContracts:  make(map[entity.Key]*ContractRecord),
		accountRanks:  make(map[uint64]entity.Key),
		contractRanks: make(map[uint64]entity.Key),
		delta:         newDelta(),
		backup:        newDelta(),
	}
	if err := m.loadAccounts(); err != nil {
		return nil, err
	}
	if err := m.loadContracts(); err != nil {
		return nil, err
	}
	for key, rec := range m.memAccounts {
		m.accountRanks[uint64(rec.RegistryIndex)] = key
	}
	for id, rec := range m.memContracts {
		m.contractRanks[uint64(rec.RegistryIndex)] = id
	}
	m.log.Info("registry loaded",
		"accounts", len(m.memAccounts),
		"contracts", len(m.memContracts))
	return m, nil
}

func (m *Manager) loadAccounts() error {
	return m.accounts.Iterate(func(key, value []byte) error {
		if len(key) != 33 {
			return fmt.Errorf("%w: account key length %d", ErrCorruptRecord, len(key))
		}
		var accountKey entity.Key
		copy(accountKey[:], key[:32])
		rec, ok := m.memAccounts[accountKey]
		if !ok {
			rec = &AccountRecord{}
			m.memAccounts[accountKey] = rec
		}
		switch key[32] {
		case fieldRegistryIndex[0]:
			if len(value) != 4 {
				return fmt.Errorf("%w: account %x registry index", ErrCorruptRecord, accountKey)
			}
			rec.RegistryIndex = binary.LittleEndian.Uint32(value)
		case fieldCallCounter[0]:
			if len(value) != 8 {
				return fmt.Errorf("%w: account %x call counter", ErrCorruptRecord, accountKey)
			}
			rec.CallCounter = binary.LittleEndian.Uint64(value)
		case fieldBLSKey[0]:
			if len(value) > 0 {
				if len(value) != len(BLSKey{}) {
					return fmt.Errorf("%w: account %x bls key", ErrCorruptRecord, accountKey)
				}
				var bls BLSKey
				copy(bls[:], value)
				rec.BLSKey = &bls
			}
		case fieldSecondaryKey[0]:
			if len(value) > 0 {
				rec.SecondaryKey = append([]byte(nil), value...)
			}
		case fieldFlameConfig[0]:
			if len(value) > 0 {
				cfg, err := flame.DecodeConfig(value)
				if err != nil {
					return fmt.Errorf("%w: account %x flame config: %v", ErrCorruptRecord, accountKey, err)
				}
				rec.FlameConfig = cfg
			}
		default:
			return fmt.Errorf("%w: account %x field 0x%02x", ErrCorruptRecord, accountKey, key[32])
		}
		return nil
	})
}

func (m *Manager) loadContracts() error {
	return m.contracts.Iterate(func(key, value []byte) error {
		if len(key) != 33 {
			return fmt.Errorf("%w: contract key length %d", ErrCorruptRecord, len(key))
		}
		var contractID entity.Key
		copy(contractID[:], key[:32])
		rec, ok := m.memContracts[contractID]
		if !ok {
			rec = &ContractRecord{}
			m.memContracts[contractID] = rec
		}
		switch key[32] {
		case fieldRegistryIndex[0]:
			if len(value) != 4 {
				return fmt.Errorf("%w: contract %x registry index", ErrCorruptRecord, contractID)
			}
			rec.RegistryIndex = binary.LittleEndian.Uint32(value)
		case fieldCallCounter[0]:
			if len(value) != 8 {
				return fmt.Errorf("%w: contract %x call counter", ErrCorruptRecord, contractID)
			}
			rec.CallCounter = binary.LittleEndian.Uint64(value)
		case fieldProgramBytes[0]:
			exe, err := executable.Decompile(value)
			if err != nil {
				return fmt.Errorf("%w: contract %x program: %v", ErrCorruptRecord, contractID, err)
			}
			rec.Executable = exe
		default:
			return fmt.Errorf("%w: contract %x field 0x%02x", ErrCorruptRecord, contractID, key[32])
		}
		return nil
	})
}

// PreExecution snapshots the delta so RollbackLast can restore it.
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

// RegisterAccount ephemerally registers an account and returns its rank.
// The rank is final once ApplyChanges succeeds.
func (m *Manager) RegisterAccount(key entity.Key, blsKey *BLSKey, secondaryKey []byte, cfg *flame.Config) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delta.hasAccount(key) || m.isAccountPermanent(key) {
		return 0, fmt.Errorf("%w: %x", ErrAccountAlreadyRegistered, key)
	}
	if blsKey != nil && m.blsKeyConflicting(*blsKey) {
		return 0, fmt.Errorf("%w: account %x", ErrBLSKeyConflict, key)
	}
	m.delta.newAccounts = append(m.delta.newAccounts, newAccount{
		key:          key,
		blsKey:       blsKey,
		secondaryKey: secondaryKey,
		flameConfig:  cfg,
	})
	return uint64(len(m.memAccounts) + len(m.delta.newAccounts)), nil
}

// RegisterContract ephemerally registers a contract and returns its rank.
func (m *Manager) RegisterContract(id entity.Key, exe *executable.Executable) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delta.hasContract(id) || m.isContractPermanent(id) {
		return 0, fmt.Errorf("%w: %x", ErrContractAlreadyRegistered, id)
	}
	m.delta.newContracts = append(m.delta.newContracts, newContract{id: id, exe: exe})
	return uint64(len(m.memContracts) + len(m.delta.newContracts)), nil
}

func (m *Manager) isAccountPermanent(key entity.Key) bool {
	_, ok := m.memAccounts[key]
	return ok
}

func (m *Manager) isContractPermanent(id entity.Key) bool {
	_, ok := m.memContracts[id]
	return ok
}

// IsAccountRegistered observes the permanent and ephemeral union.
func (m *Manager) IsAccountRegistered(key entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isAccountPermanent(key) || m.delta.hasAccount(key)
}

// IsContractRegistered observes the permanent and ephemeral union.
func (m *Manager) IsContractRegistered(id entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isContractPermanent(id) || m.delta.hasContract(id)
}

// AccountCount returns the number of durably registered accounts.
func (m *Manager) AccountCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.memAccounts))
}

// ContractCount returns the number of durably registered contracts.
func (m *Manager) ContractCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.memContracts))
}

// RankByAccountKey returns the account's rank, ephemeral ranks included.
func (m *Manager) RankByAccountKey(key entity.Key) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.memAccounts[key]; ok {
		return uint64(rec.RegistryIndex), true
	}
	for i, a := range m.delta.newAccounts {
		if a.key == key {
			return uint64(len(m.memAccounts) + i + 1), true
		}
	}
	return 0, false
}

// RankByContractID returns the contract's rank, ephemeral ranks included.
func (m *Manager) RankByContractID(id entity.Key) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.memContracts[id]; ok {
		return uint64(rec.RegistryIndex), true
	}
	for i, c := range m.delta.newContracts {
		if c.id == id {
			return uint64(len(m.memContracts) + i + 1), true
		}
	}
	return 0, false
}

// AccountByRank resolves a wire rank to an account.
func (m *Manager) AccountByRank(rank uint64) (entity.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if key, ok := m.accountRanks[rank]; ok {
		return entity.NewRegisteredAccount(key, rank), true
	}
	idx := int(rank) - len(m.memAccounts) - 1
	if idx >= 0 && idx < len(m.delta.newAccounts) {
		return entity.NewRegisteredAccount(m.delta.newAccounts[idx].key, rank), true
	}
	return entity.Account{}, false
}

// ContractByRank resolves a wire rank to a contract.
func (m *Manager) ContractByRank(rank uint64) (entity.Contract, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.contractRanks[rank]; ok {
		rec := m.memContracts[id]
		return entity.NewRegisteredContract(id, rank, methodCount(rec.Executable)), true
	}
	idx := int(rank) - len(m.memContracts) - 1
	if idx >= 0 && idx < len(m.delta.newContracts) {
		nc := m.delta.newContracts[idx]
		return entity.NewRegisteredContract(nc.id, rank, methodCount(nc.exe)), true
	}
	return entity.Contract{}, false
}

func methodCount(exe *executable.Executable) uint8 {
	if exe == nil {
		return 0
	}
	return uint8(len(exe.Methods))
}

// AccountRecordByKey returns the permanent record of an account.
func (m *Manager) AccountRecordByKey(key entity.Key) (*AccountRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.memAccounts[key]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// ContractRecordByID returns the permanent record of a contract.
func (m *Manager) ContractRecordByID(id entity.Key) (*ContractRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.memContracts[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// ExecutableByID returns the program of a contract, ephemeral contracts
// included.
func (m *Manager) ExecutableByID(id entity.Key) (*executable.Executable, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executableByID(id)
}

func (m *Manager) executableByID(id entity.Key) (*executable.Executable, bool) {
	if rec, ok := m.memContracts[id]; ok && rec.Executable != nil {
		return rec.Executable, true
	}
	for _, c := range m.delta.newContracts {
		if c.id == id {
			return c.exe, true
		}
	}
	return nil, false
}

// MethodSignature resolves the calldata signature of a contract method so
// call entries can be decoded.
func (m *Manager) MethodSignature(contractID entity.Key, methodIndex uint8) ([]calldata.ElementType, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exe, ok := m.executableByID(contractID)
	if !ok {
		return nil, fmt.Errorf("%w: %x", ErrContractNotRegistered, contractID)
	}
	method, ok := exe.MethodByIndex(methodIndex)
	if !ok {
		return nil, fmt.Errorf("%w: contract %x method %d", ErrMethodNotFound, contractID, methodIndex)
	}
	return method.Signature, nil
}

// BLSKeyIsConflicting reports whether the key is already claimed anywhere
// in the registry, ephemeral claims included.
func (m *Manager) BLSKeyIsConflicting(key BLSKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blsKeyConflicting(key)
}

func (m *Manager) blsKeyConflicting(key BLSKey) bool {
	for _, rec := range m.memAccounts {
		if rec.BLSKey != nil && *rec.BLSKey == key {
			return true
		}
	}
	for _, a := range m.delta.newAccounts {
		if a.blsKey != nil && *a.blsKey == key {
			return true
		}
	}
	for _, k := range m.delta.updatedBLSKeys {
		if k == key {
			return true
		}
	}
	return false
}

// IncrementAccountCallCounter records one call against the account.
func (m *Manager) IncrementAccountCallCounter(key entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAccountPermanent(key) && !m.delta.hasAccount(key) {
		return fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	m.delta.accountCounterBumps[key]++
	return nil
}

// IncrementContractCallCounter records one call against the contract.
func (m *Manager) IncrementContractCallCounter(id entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isContractPermanent(id) && !m.delta.hasContract(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	m.delta.contractCounterBumps[id]++
	return nil
}

// SetAccountBLSKey sets the aggregation key of a registered account. The
// key may be set exactly once over the account's lifetime.
func (m *Manager) SetAccountBLSKey(key entity.Key, blsKey BLSKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.memAccounts[key]
	if !ok {
		return fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	if rec.BLSKey != nil {
		return fmt.Errorf("%w: account %x", ErrBLSKeyAlreadySet, key)
	}
	if _, pending := m.delta.updatedBLSKeys[key]; pending {
		return fmt.Errorf("%w: account %x", ErrBLSKeyAlreadySet, key)
	}
	if m.blsKeyConflicting(blsKey) {
		return fmt.Errorf("%w: account %x", ErrBLSKeyConflict, key)
	}
	m.delta.updatedBLSKeys[key] = blsKey
	return nil
}

// UpdateAccountSecondaryKey replaces the secondary aggregation key of a
// registered account. At most one update per account per batch.
func (m *Manager) UpdateAccountSecondaryKey(key entity.Key, secondary []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAccountPermanent(key) {
		return fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	if _, pending := m.delta.updatedSecondaryKeys[key]; pending {
		return fmt.Errorf("%w: account %x", ErrSecondaryKeyAlreadySet, key)
	}
	m.delta.updatedSecondaryKeys[key] = append([]byte(nil), secondary...)
	return nil
}

// UpdateAccountFlameConfig replaces the flame config of a registered
// account. Repeated updates within a batch are allowed; the last wins.
func (m *Manager) UpdateAccountFlameConfig(key entity.Key, cfg *flame.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.isAccountPermanent(key) {
		return fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	c := *cfg
	m.delta.updatedFlameConfigs[key] = &c
	return nil
}

// FlameConfigByKey returns the account's flame config, the pending
// ephemeral update taking precedence.
func (m *Manager) FlameConfigByKey(key entity.Key) (*flame.Config, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg, ok := m.delta.updatedFlameConfigs[key]; ok {
		c := *cfg
		return &c, true
	}
	if rec, ok := m.memAccounts[key]; ok && rec.FlameConfig != nil {
		c := *rec.FlameConfig
		return &c, true
	}
	for _, a := range m.delta.newAccounts {
		if a.key == key && a.flameConfig != nil {
			c := *a.flameConfig
			return &c, true
		}
	}
	return nil, false
}

// ApplyChanges validates the whole delta, persists it, merges it into the
// permanent records and flushes it.
func (m *Manager) ApplyChanges() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.validateDelta(); err != nil {
		return err
	}

	for i, a := range m.delta.newAccounts {
		registryIndex := uint32(len(m.memAccounts) + i + 1)
		if err := m.persistNewAccount(a, registryIndex); err != nil {
			return fmt.Errorf("account %x: %w", a.key, err)
		}
	}
	contractBase := len(m.memContracts)
	for i, c := range m.delta.newContracts {
		registryIndex := uint32(contractBase + i + 1)
		if err := m.persistNewContract(c, registryIndex); err != nil {
			return fmt.Errorf("contract %x: %w", c.id, err)
		}
	}

	// Merge new entities into memory before counter updates so that
	// same-batch registrations can absorb their bumps.
	accountBase := len(m.memAccounts)
	for i, a := range m.delta.newAccounts {
		rec := &AccountRecord{
			RegistryIndex: uint32(accountBase + i + 1),
			BLSKey:        a.blsKey,
			SecondaryKey:  a.secondaryKey,
			FlameConfig:   a.flameConfig,
		}
		m.memAccounts[a.key] = rec
		m.accountRanks[uint64(rec.RegistryIndex)] = a.key
	}
	for i, c := range m.delta.newContracts {
		rec := &ContractRecord{
			RegistryIndex: uint32(contractBase + i + 1),
			Executable:    c.exe,
		}
		m.memContracts[c.id] = rec
		m.contractRanks[uint64(rec.RegistryIndex)] = c.id
	}

	for key, bump := range m.delta.accountCounterBumps {
		rec := m.memAccounts[key]
		newCounter := rec.CallCounter + bump
		if err := m.putAccountCounter(key, newCounter); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		rec.CallCounter = newCounter
	}
	for id, bump := range m.delta.contractCounterBumps {
		rec := m.memContracts[id]
		newCounter := rec.CallCounter + bump
		if err := m.putContractCounter(id, newCounter); err != nil {
			return fmt.Errorf("contract %x: %w", id, err)
		}
		rec.CallCounter = newCounter
	}

	for key, blsKey := range m.delta.updatedBLSKeys {
		if err := m.accounts.Put(blsKey[:], key[:], fieldBLSKey); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		k := blsKey
		m.memAccounts[key].BLSKey = &k
	}
	for key, secondary := range m.delta.updatedSecondaryKeys {
		if err := m.accounts.Put(secondary, key[:], fieldSecondaryKey); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		m.memAccounts[key].SecondaryKey = append([]byte(nil), secondary...)
	}
	for key, cfg := range m.delta.updatedFlameConfigs {
		encoded, err := flame.EncodeConfig(cfg)
		if err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		if err := m.accounts.Put(encoded, key[:], fieldFlameConfig); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		m.memAccounts[key].FlameConfig = cfg
	}

	m.log.Debug("registry changes applied",
		"new_accounts", len(m.delta.newAccounts),
		"new_contracts", len(m.delta.newContracts))
	m.flushDelta()
	return nil
}

// validateDelta checks every delta entry against the post-merge state so
// a failing apply can never leave a partial write behind.
func (m *Manager) validateDelta() error {
	willHaveAccount := func(key entity.Key) bool {
		return m.isAccountPermanent(key) || m.delta.hasAccount(key)
	}
	willHaveContract := func(id entity.Key) bool {
		return m.isContractPermanent(id) || m.delta.hasContract(id)
	}
	for key := range m.delta.accountCounterBumps {
		if !willHaveAccount(key) {
			return fmt.Errorf("%w: counter bump for %x", ErrAccountNotRegistered, key)
		}
	}
	for id := range m.delta.contractCounterBumps {
		if !willHaveContract(id) {
			return fmt.Errorf("%w: counter bump for %x", ErrContractNotRegistered, id)
		}
	}
	for key := range m.delta.updatedBLSKeys {
		if !willHaveAccount(key) {
			return fmt.Errorf("%w: bls key for %x", ErrAccountNotRegistered, key)
		}
	}
	for key := range m.delta.updatedSecondaryKeys {
		if !willHaveAccount(key) {
			return fmt.Errorf("%w: secondary key for %x", ErrAccountNotRegistered, key)
		}
	}
	for key := range m.delta.updatedFlameConfigs {
		if !willHaveAccount(key) {
			return fmt.Errorf("%w: flame config for %x", ErrAccountNotRegistered, key)
		}
	}
	for _, c := range m.delta.newContracts {
		if _, err := c.exe.Compile(); err != nil {
			return fmt.Errorf("contract %x: %w", c.id, err)
		}
	}
	return nil
}

func (m *Manager) persistNewAccount(a newAccount, registryIndex uint32) error {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], registryIndex)
	if err := m.accounts.Put(idx[:], a.key[:], fieldRegistryIndex); err != nil {
		return err
	}
	if err := m.putAccountCounter(a.key, 0); err != nil {
		return err
	}
	if a.blsKey != nil {
		if err := m.accounts.Put(a.blsKey[:], a.key[:], fieldBLSKey); err != nil {
			return err
		}
	}
	if len(a.secondaryKey) > 0 {
		if err := m.accounts.Put(a.secondaryKey, a.key[:], fieldSecondaryKey); err != nil {
			return err
		}
	}
	if a.flameConfig != nil {
		encoded, err := flame.EncodeConfig(a.flameConfig)
		if err != nil {
			return err
		}
		if err := m.accounts.Put(encoded, a.key[:], fieldFlameConfig); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) persistNewContract(c newContract, registryIndex uint32) error {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], registryIndex)
	if err := m.contracts.Put(idx[:], c.id[:], fieldRegistryIndex); err != nil {
		return err
	}
	if err := m.putContractCounter(c.id, 0); err != nil {
		return err
	}
	compiled, err := c.exe.Compile()
	if err != nil {
		return err
	}
	return m.contracts.Put(compiled, c.id[:], fieldProgramBytes)
}

func (m *Manager) putAccountCounter(key entity.Key, counter uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], counter)
	return m.accounts.Put(buf[:], key[:], fieldCallCounter)
}

func (m *Manager) putContractCounter(id entity.Key, counter uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], counter)
	return m.contracts.Put(buf[:], id[:], fieldCallCounter)
}

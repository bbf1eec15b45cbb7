package coin

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"cube/entity"
)

var (
	ErrAccountNotRegistered  = errors.New("coin: account not registered")
	ErrContractNotRegistered = errors.New("coin: contract not registered")
	ErrAccountAlreadyExists  = errors.New("coin: account already registered")
	ErrContractAlreadyExists = errors.New("coin: contract already registered")
	ErrBalanceOverflow       = errors.New("coin: balance overflow")
	ErrInsufficientBalance   = errors.New("coin: insufficient balance")
	ErrBalanceBelowAllocs    = errors.New("coin: contract balance would drop below allocs sum")
	ErrAllocsSumWouldExceed  = errors.New("coin: allocs sum would exceed contract balance")
	ErrAlreadyAllocated      = errors.New("coin: account already allocated in contract")
	ErrNotAllocated          = errors.New("coin: account not allocated in contract")
	ErrAllocNotZero          = errors.New("coin: allocation must be zero to deallocate")
	ErrAllocWouldGoBelowZero = errors.New("coin: shadow alloc value would go below zero")
	ErrNoAllocations         = errors.New("coin: contract has no allocations")
)

// Manager is the coin mutator. It accumulates typed deltas and keeps an
// in-memory projection so reads within a batch observe earlier writes;
// ApplyChanges hands the deltas to the holder.
type Manager struct {
	mu     sync.Mutex
	log    *slog.Logger
	holder *Holder

	accountDelta  *AccountDelta
	contractDelta *ContractDelta

	accountBackup  *AccountDelta
	contractBackup *ContractDelta

	// Accounts whose shadow sums changed in the last applied batch;
	// the flame manager rebuilds their projected outputs.
	lastAffected []entity.Key
}

// NewManager wraps a holder.
func NewManager(holder *Holder, log *slog.Logger) *Manager {
	return &Manager{
		log:            log.With("component", "coin_manager"),
		holder:         holder,
		accountDelta:   NewAccountDelta(),
		contractDelta:  NewContractDelta(),
		accountBackup:  NewAccountDelta(),
		contractBackup: NewContractDelta(),
	}
}

// PreExecution snapshots both deltas for RollbackLast.
func (m *Manager) PreExecution() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountBackup = m.accountDelta.Clone()
	m.contractBackup = m.contractDelta.Clone()
}

// RollbackLast restores the deltas captured by the last PreExecution.
func (m *Manager) RollbackLast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accountDelta = m.accountBackup.Clone()
	m.contractDelta = m.contractBackup.Clone()
}

// FlushDelta discards all ephemeral changes.
func (m *Manager) FlushDelta() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushDelta()
}

func (m *Manager) flushDelta() {
	m.accountDelta = NewAccountDelta()
	m.contractDelta = NewContractDelta()
	m.accountBackup = NewAccountDelta()
	m.contractBackup = NewContractDelta()
}

// ApplyChanges durably applies the accumulated deltas and flushes them.
func (m *Manager) ApplyChanges() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.holder.ApplyDelta(m.accountDelta, m.contractDelta); err != nil {
		return err
	}
	m.lastAffected = m.lastAffected[:0]
	for account := range m.accountDelta.UpdatedShadowSums {
		m.lastAffected = append(m.lastAffected, account)
	}
	sort.Slice(m.lastAffected, func(i, j int) bool {
		return bytes.Compare(m.lastAffected[i][:], m.lastAffected[j][:]) < 0
	})
	m.flushDelta()
	return nil
}

// AffectedAccounts lists the accounts whose shadow sums changed in the
// last applied batch, in key order.
func (m *Manager) AffectedAccounts() []entity.Key {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.Key(nil), m.lastAffected...)
}

// TargetFlameValue returns the account's durable shadow sum rounded down
// to whole satoshi. It is the value the account's projected outputs
// should cover.
func (m *Manager) TargetFlameValue(key entity.Key) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sum, ok := m.holder.AccountShadowSum(key)
	if !ok {
		return 0, false
	}
	sat := new(uint256.Int).Div(sum, uint256.NewInt(SatiPerSat))
	if !sat.IsUint64() {
		return 0, false
	}
	return sat.Uint64(), true
}

// AccountExists observes the permanent and ephemeral union.
func (m *Manager) AccountExists(key entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountExists(key)
}

func (m *Manager) accountExists(key entity.Key) bool {
	if _, ok := m.accountDelta.NewAccounts[key]; ok {
		return true
	}
	return m.holder.AccountExists(key)
}

// ContractExists observes the permanent and ephemeral union.
func (m *Manager) ContractExists(id entity.Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contractExists(id)
}

func (m *Manager) contractExists(id entity.Key) bool {
	for _, nc := range m.contractDelta.NewContracts {
		if nc == id {
			return true
		}
	}
	return m.holder.ContractExists(id)
}

// RegisterAccount creates an account with an initial balance.
func (m *Manager) RegisterAccount(key entity.Key, initialBalance uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accountExists(key) {
		return fmt.Errorf("%w: %x", ErrAccountAlreadyExists, key)
	}
	m.accountDelta.NewAccounts[key] = initialBalance
	return nil
}

// RegisterContract creates a contract with a zero balance and an empty
// shadow space.
func (m *Manager) RegisterContract(id entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractAlreadyExists, id)
	}
	m.contractDelta.NewContracts = append(m.contractDelta.NewContracts, id)
	return nil
}

// AccountBalance returns the projected balance of an account.
func (m *Manager) AccountBalance(key entity.Key) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.accountBalance(key)
}

func (m *Manager) accountBalance(key entity.Key) (uint64, error) {
	if balance, ok := m.accountDelta.UpdatedBalances[key]; ok {
		return balance, nil
	}
	if balance, ok := m.accountDelta.NewAccounts[key]; ok {
		return balance, nil
	}
	if balance, ok := m.holder.AccountBalance(key); ok {
		return balance, nil
	}
	return 0, fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
}

// AccountShadowSum returns the projected shadow allocations sum of an
// account in sati-satoshi.
func (m *Manager) AccountShadowSum(key entity.Key) (*uint256.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.accountExists(key) {
		return nil, fmt.Errorf("%w: %x", ErrAccountNotRegistered, key)
	}
	return m.projectedShadowSum(key), nil
}

func (m *Manager) projectedShadowSum(key entity.Key) *uint256.Int {
	if sum, ok := m.accountDelta.UpdatedShadowSums[key]; ok {
		return new(uint256.Int).Set(sum)
	}
	if _, ok := m.accountDelta.NewAccounts[key]; ok {
		return new(uint256.Int)
	}
	if sum, ok := m.holder.AccountShadowSum(key); ok {
		return sum
	}
	return new(uint256.Int)
}

// ContractBalance returns the projected balance of a contract.
func (m *Manager) ContractBalance(id entity.Key) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contractBalance(id)
}

func (m *Manager) contractBalance(id entity.Key) (uint64, error) {
	if balance, ok := m.contractDelta.UpdatedBalances[id]; ok {
		return balance, nil
	}
	for _, nc := range m.contractDelta.NewContracts {
		if nc == id {
			return 0, nil
		}
	}
	if balance, ok := m.holder.ContractBalance(id); ok {
		return balance, nil
	}
	return 0, fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
}

// ContractShadow returns a copy of the projected shadow space.
func (m *Manager) ContractShadow(id entity.Key) (*ShadowSpace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.contractShadow(id)
}

func (m *Manager) contractShadow(id entity.Key) (*ShadowSpace, error) {
	if !m.contractExists(id) {
		return nil, fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	if shadow, ok := m.contractDelta.UpdatedShadows[id]; ok {
		return shadow.Clone(), nil
	}
	if shadow, ok := m.holder.ContractShadow(id); ok {
		return shadow, nil
	}
	return NewShadowSpace(), nil
}

// workingShadow returns the delta-resident mutable shadow space of the
// contract, seeding it from the holder on first touch.
func (m *Manager) workingShadow(id entity.Key) *ShadowSpace {
	if shadow, ok := m.contractDelta.UpdatedShadows[id]; ok {
		return shadow
	}
	var shadow *ShadowSpace
	if held, ok := m.holder.ContractShadow(id); ok {
		shadow = held
	} else {
		shadow = NewShadowSpace()
	}
	m.contractDelta.UpdatedShadows[id] = shadow
	return shadow
}

// AccountBalanceUp raises an account balance with checked arithmetic.
func (m *Manager) AccountBalanceUp(key entity.Key, delta uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.accountBalance(key)
	if err != nil {
		return err
	}
	if delta > math.MaxUint64-balance {
		return fmt.Errorf("%w: account %x", ErrBalanceOverflow, key)
	}
	m.accountDelta.UpdatedBalances[key] = balance + delta
	return nil
}

// AccountBalanceDown lowers an account balance, failing on underflow.
func (m *Manager) AccountBalanceDown(key entity.Key, delta uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.accountBalance(key)
	if err != nil {
		return err
	}
	if delta > balance {
		return fmt.Errorf("%w: account %x has %d, needs %d", ErrInsufficientBalance, key, balance, delta)
	}
	m.accountDelta.UpdatedBalances[key] = balance - delta
	return nil
}

// ContractBalanceUp raises a contract balance with checked arithmetic.
func (m *Manager) ContractBalanceUp(id entity.Key, delta uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.contractBalance(id)
	if err != nil {
		return err
	}
	if delta > math.MaxUint64-balance {
		return fmt.Errorf("%w: contract %x", ErrBalanceOverflow, id)
	}
	m.contractDelta.UpdatedBalances[id] = balance + delta
	return nil
}

// ContractBalanceDown lowers a contract balance. The balance may not drop
// below the contract's committed allocs sum.
func (m *Manager) ContractBalanceDown(id entity.Key, delta uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	balance, err := m.contractBalance(id)
	if err != nil {
		return err
	}
	if delta > balance {
		return fmt.Errorf("%w: contract %x has %d, needs %d", ErrInsufficientBalance, id, balance, delta)
	}
	shadow, err := m.contractShadow(id)
	if err != nil {
		return err
	}
	if balance-delta < shadow.AllocsSum {
		return fmt.Errorf("%w: contract %x balance %d allocs sum %d",
			ErrBalanceBelowAllocs, id, balance-delta, shadow.AllocsSum)
	}
	m.contractDelta.UpdatedBalances[id] = balance - delta
	return nil
}

// ShadowAllocAccount creates a zero-valued allocation entry for the
// account in the contract's shadow space.
func (m *Manager) ShadowAllocAccount(id entity.Key, account entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	if !m.accountExists(account) {
		return fmt.Errorf("%w: %x", ErrAccountNotRegistered, account)
	}
	shadow := m.workingShadow(id)
	if _, ok := shadow.Allocs[account]; ok {
		return fmt.Errorf("%w: contract %x account %x", ErrAlreadyAllocated, id, account)
	}
	shadow.Allocs[account] = new(uint256.Int)
	m.contractDelta.Allocs[id] = append(m.contractDelta.Allocs[id], account)
	return nil
}

// ShadowDeallocAccount removes a zero-valued allocation entry.
func (m *Manager) ShadowDeallocAccount(id entity.Key, account entity.Key) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	shadow := m.workingShadow(id)
	alloc, ok := shadow.Allocs[account]
	if !ok {
		return fmt.Errorf("%w: contract %x account %x", ErrNotAllocated, id, account)
	}
	if !alloc.IsZero() {
		return fmt.Errorf("%w: contract %x account %x", ErrAllocNotZero, id, account)
	}
	delete(shadow.Allocs, account)
	m.contractDelta.Deallocs[id] = append(m.contractDelta.Deallocs[id], account)
	return nil
}

// ShadowUp commits deltaSat more of the contract's coins toward the
// account.
func (m *Manager) ShadowUp(id entity.Key, account entity.Key, deltaSat uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	balance, err := m.contractBalance(id)
	if err != nil {
		return err
	}
	shadow := m.workingShadow(id)
	alloc, ok := shadow.Allocs[account]
	if !ok {
		return fmt.Errorf("%w: contract %x account %x", ErrNotAllocated, id, account)
	}
	if deltaSat > math.MaxUint64-shadow.AllocsSum || shadow.AllocsSum+deltaSat > balance {
		return fmt.Errorf("%w: contract %x", ErrAllocsSumWouldExceed, id)
	}
	deltaSati := SatToSati(deltaSat)
	alloc.Add(alloc, deltaSati)
	shadow.AllocsSum += deltaSat
	m.bumpAccountShadowSum(account, deltaSati, true)
	return nil
}

// ShadowDown releases deltaSat of the contract's committed coins from the
// account.
func (m *Manager) ShadowDown(id entity.Key, account entity.Key, deltaSat uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	shadow := m.workingShadow(id)
	alloc, ok := shadow.Allocs[account]
	if !ok {
		return fmt.Errorf("%w: contract %x account %x", ErrNotAllocated, id, account)
	}
	deltaSati := SatToSati(deltaSat)
	if alloc.Cmp(deltaSati) < 0 {
		return fmt.Errorf("%w: contract %x account %x", ErrAllocWouldGoBelowZero, id, account)
	}
	alloc.Sub(alloc, deltaSati)
	shadow.AllocsSum -= deltaSat
	m.bumpAccountShadowSum(account, deltaSati, false)
	return nil
}

// ShadowUpAll raises every allocation pro-rata so the per-account
// increments sum to exactly deltaSat in sati-satoshi. The rounding
// residual goes to the lexicographically smallest allocated key.
func (m *Manager) ShadowUpAll(id entity.Key, deltaSat uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	balance, err := m.contractBalance(id)
	if err != nil {
		return err
	}
	shadow := m.workingShadow(id)
	if shadow.AllocsSum == 0 || len(shadow.Allocs) == 0 {
		return fmt.Errorf("%w: %x", ErrNoAllocations, id)
	}
	if deltaSat > math.MaxUint64-shadow.AllocsSum || shadow.AllocsSum+deltaSat > balance {
		return fmt.Errorf("%w: contract %x", ErrAllocsSumWouldExceed, id)
	}

	increments := m.proRataSplit(shadow, deltaSat)
	for account, inc := range increments {
		alloc := shadow.Allocs[account]
		alloc.Add(alloc, inc)
		m.bumpAccountShadowSum(account, inc, true)
	}
	shadow.AllocsSum += deltaSat
	return nil
}

// ShadowDownAll lowers every allocation pro-rata; the rounding residual
// is debited from the lexicographically smallest allocated key. No
// allocation may go below zero.
func (m *Manager) ShadowDownAll(id entity.Key, deltaSat uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.contractExists(id) {
		return fmt.Errorf("%w: %x", ErrContractNotRegistered, id)
	}
	shadow := m.workingShadow(id)
	if shadow.AllocsSum == 0 || len(shadow.Allocs) == 0 {
		return fmt.Errorf("%w: %x", ErrNoAllocations, id)
	}
	if deltaSat > shadow.AllocsSum {
		return fmt.Errorf("%w: contract %x", ErrAllocWouldGoBelowZero, id)
	}

	decrements := m.proRataSplit(shadow, deltaSat)
	for account, dec := range decrements {
		if shadow.Allocs[account].Cmp(dec) < 0 {
			return fmt.Errorf("%w: contract %x account %x", ErrAllocWouldGoBelowZero, id, account)
		}
	}
	for account, dec := range decrements {
		alloc := shadow.Allocs[account]
		alloc.Sub(alloc, dec)
		m.bumpAccountShadowSum(account, dec, false)
	}
	shadow.AllocsSum -= deltaSat
	return nil
}

// proRataSplit divides deltaSat (converted to sati-satoshi) across the
// allocated accounts in proportion to their current allocations. Floors
// are used per account; the residual lands on the lexicographically
// smallest key so the parts always sum to the whole.
func (m *Manager) proRataSplit(shadow *ShadowSpace, deltaSat uint64) map[entity.Key]*uint256.Int {
	deltaSati := SatToSati(deltaSat)
	total := shadow.AllocsTotal()
	keys := shadow.SortedKeys()

	parts := make(map[entity.Key]*uint256.Int, len(keys))
	distributed := new(uint256.Int)
	for _, account := range keys {
		part := new(uint256.Int).Mul(deltaSati, shadow.Allocs[account])
		part.Div(part, total)
		parts[account] = part
		distributed.Add(distributed, part)
	}
	residual := new(uint256.Int).Sub(deltaSati, distributed)
	if !residual.IsZero() {
		smallest := parts[keys[0]]
		smallest.Add(smallest, residual)
	}
	return parts
}

func (m *Manager) bumpAccountShadowSum(account entity.Key, deltaSati *uint256.Int, up bool) {
	sum := m.projectedShadowSum(account)
	if up {
		sum.Add(sum, deltaSati)
	} else {
		sum.Sub(sum, deltaSati)
	}
	m.accountDelta.UpdatedShadowSums[account] = sum
}

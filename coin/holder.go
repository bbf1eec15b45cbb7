package coin

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/holiman/uint256"

	"cube/entity"
	"cube/storage"
)

// Account-side field discriminators.
var (
	accountFieldBalance   = []byte{0x00}
	accountFieldShadowSum = []byte{0x01}
)

// Contract-side 32-byte subkeys. Everything that is not one of these two
// sentinels is an account key carrying that account's allocation.
var (
	contractSubkeyBalance   = sentinelSubkey(0x00)
	contractSubkeyAllocsSum = sentinelSubkey(0x01)
)

func sentinelSubkey(b byte) []byte {
	out := make([]byte, 32)
	for i := range out {
		out[i] = b
	}
	return out
}

var (
	ErrAccountExists       = errors.New("coin: account already held")
	ErrContractExists      = errors.New("coin: contract already held")
	ErrAccountNotHeld      = errors.New("coin: account not held")
	ErrContractNotHeld     = errors.New("coin: contract not held")
	ErrAllocsSumExceeds    = errors.New("coin: allocs sum exceeds contract balance")
	ErrShadowSumMismatch   = errors.New("coin: account shadow sum does not match contract allocations")
	ErrAllocsSplitMismatch = errors.New("coin: per-account allocations do not sum to allocs sum")
	ErrAllocNotRegistered  = errors.New("coin: allocation references unknown account")
	ErrCorruptCoinRecord   = errors.New("coin: corrupt on-disk record")
	ErrSatiOverflow        = errors.New("coin: sati-satoshi value exceeds 128 bits")
)

// accountState is the holder-side view of one account.
type accountState struct {
	balance   uint64
	shadowSum *uint256.Int
}

// contractState is the holder-side view of one contract.
type contractState struct {
	balance uint64
	shadow  *ShadowSpace
}

// Holder is the durable coin substrate. The full data set lives in memory;
// ApplyDelta pre-validates every invariant before writing anything so a
// failed apply never leaves a partial state.
type Holder struct {
	log *slog.Logger

	accountsKS  storage.Keyspace
	contractsKS storage.Keyspace

	accounts  map[entity.Key]*accountState
	contracts map[entity.Key]*contractState
}

// NewHolder loads every account and contract record from db.
func NewHolder(db storage.Database, log *slog.Logger) (*Holder, error) {
	h := &Holder{
		log:         log.With("component", "coin_holder"),
		accountsKS:  storage.NewKeyspace(db, "coin/accounts"),
		contractsKS: storage.NewKeyspace(db, "coin/contracts"),
		accounts:    make(map[entity.Key]*accountState),
		contracts:   make(map[entity.Key]*contractState),
	}
	if err := h.loadAccounts(); err != nil {
		return nil, err
	}
	if err := h.loadContracts(); err != nil {
		return nil, err
	}
	h.log.Info("coin holder loaded",
		"accounts", len(h.accounts),
		"contracts", len(h.contracts))
	return h, nil
}

func (h *Holder) loadAccounts() error {
	return h.accountsKS.Iterate(func(key, value []byte) error {
		if len(key) != 33 {
			return fmt.Errorf("%w: account key length %d", ErrCorruptCoinRecord, len(key))
		}
		var accountKey entity.Key
		copy(accountKey[:], key[:32])
		st := h.accounts[accountKey]
		if st == nil {
			st = &accountState{shadowSum: new(uint256.Int)}
			h.accounts[accountKey] = st
		}
		switch key[32] {
		case accountFieldBalance[0]:
			if len(value) != 8 {
				return fmt.Errorf("%w: account %x balance", ErrCorruptCoinRecord, accountKey)
			}
			st.balance = binary.LittleEndian.Uint64(value)
		case accountFieldShadowSum[0]:
			sum, err := satiFromBytes(value)
			if err != nil {
				return fmt.Errorf("account %x shadow sum: %w", accountKey, err)
			}
			st.shadowSum = sum
		default:
			return fmt.Errorf("%w: account %x field 0x%02x", ErrCorruptCoinRecord, accountKey, key[32])
		}
		return nil
	})
}

func (h *Holder) loadContracts() error {
	return h.contractsKS.Iterate(func(key, value []byte) error {
		if len(key) != 64 {
			return fmt.Errorf("%w: contract key length %d", ErrCorruptCoinRecord, len(key))
		}
		var contractID entity.Key
		copy(contractID[:], key[:32])
		st := h.contracts[contractID]
		if st == nil {
			st = &contractState{shadow: NewShadowSpace()}
			h.contracts[contractID] = st
		}
		subkey := key[32:]
		switch {
		case bytes.Equal(subkey, contractSubkeyBalance):
			if len(value) != 8 {
				return fmt.Errorf("%w: contract %x balance", ErrCorruptCoinRecord, contractID)
			}
			st.balance = binary.LittleEndian.Uint64(value)
		case bytes.Equal(subkey, contractSubkeyAllocsSum):
			if len(value) != 8 {
				return fmt.Errorf("%w: contract %x allocs sum", ErrCorruptCoinRecord, contractID)
			}
			st.shadow.AllocsSum = binary.LittleEndian.Uint64(value)
		default:
			var accountKey entity.Key
			copy(accountKey[:], subkey)
			alloc, err := satiFromBytes(value)
			if err != nil {
				return fmt.Errorf("contract %x alloc %x: %w", contractID, accountKey, err)
			}
			st.shadow.Allocs[accountKey] = alloc
		}
		return nil
	})
}

// AccountExists reports whether the holder knows the account.
func (h *Holder) AccountExists(key entity.Key) bool {
	_, ok := h.accounts[key]
	return ok
}

// ContractExists reports whether the holder knows the contract.
func (h *Holder) ContractExists(id entity.Key) bool {
	_, ok := h.contracts[id]
	return ok
}

// AccountBalance returns the durable balance of an account.
func (h *Holder) AccountBalance(key entity.Key) (uint64, bool) {
	st, ok := h.accounts[key]
	if !ok {
		return 0, false
	}
	return st.balance, true
}

// AccountShadowSum returns the durable shadow allocations sum of an
// account in sati-satoshi.
func (h *Holder) AccountShadowSum(key entity.Key) (*uint256.Int, bool) {
	st, ok := h.accounts[key]
	if !ok {
		return nil, false
	}
	return new(uint256.Int).Set(st.shadowSum), true
}

// ContractBalance returns the durable balance of a contract.
func (h *Holder) ContractBalance(id entity.Key) (uint64, bool) {
	st, ok := h.contracts[id]
	if !ok {
		return 0, false
	}
	return st.balance, true
}

// ContractShadow returns a copy of the durable shadow space of a contract.
func (h *Holder) ContractShadow(id entity.Key) (*ShadowSpace, bool) {
	st, ok := h.contracts[id]
	if !ok {
		return nil, false
	}
	return st.shadow.Clone(), true
}

// ApplyDelta validates both deltas against every substrate invariant and
// then persists and merges them. On error nothing has been written.
func (h *Holder) ApplyDelta(ad *AccountDelta, cd *ContractDelta) error {
	if err := h.validateDelta(ad, cd); err != nil {
		return err
	}

	for key, balance := range ad.NewAccounts {
		if err := h.putAccountBalance(key, balance); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		if err := h.putAccountShadowSum(key, new(uint256.Int)); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		h.accounts[key] = &accountState{balance: balance, shadowSum: new(uint256.Int)}
	}
	for _, id := range cd.NewContracts {
		if err := h.putContractBalance(id, 0); err != nil {
			return fmt.Errorf("contract %x: %w", id, err)
		}
		if err := h.putContractAllocsSum(id, 0); err != nil {
			return fmt.Errorf("contract %x: %w", id, err)
		}
		h.contracts[id] = &contractState{shadow: NewShadowSpace()}
	}

	for key, balance := range ad.UpdatedBalances {
		if err := h.putAccountBalance(key, balance); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		h.accounts[key].balance = balance
	}
	for key, sum := range ad.UpdatedShadowSums {
		if err := h.putAccountShadowSum(key, sum); err != nil {
			return fmt.Errorf("account %x: %w", key, err)
		}
		h.accounts[key].shadowSum = new(uint256.Int).Set(sum)
	}

	for id, balance := range cd.UpdatedBalances {
		if err := h.putContractBalance(id, balance); err != nil {
			return fmt.Errorf("contract %x: %w", id, err)
		}
		h.contracts[id].balance = balance
	}

	for id, accounts := range cd.Deallocs {
		st := h.contracts[id]
		for _, accountKey := range accounts {
			if err := h.contractsKS.Delete(id[:], accountKey[:]); err != nil {
				return fmt.Errorf("contract %x dealloc %x: %w", id, accountKey, err)
			}
			delete(st.shadow.Allocs, accountKey)
		}
	}
	for id, shadow := range cd.UpdatedShadows {
		st := h.contracts[id]
		if err := h.putContractAllocsSum(id, shadow.AllocsSum); err != nil {
			return fmt.Errorf("contract %x: %w", id, err)
		}
		st.shadow.AllocsSum = shadow.AllocsSum
		for accountKey, alloc := range shadow.Allocs {
			encoded, err := satiToBytes(alloc)
			if err != nil {
				return fmt.Errorf("contract %x alloc %x: %w", id, accountKey, err)
			}
			if err := h.contractsKS.Put(encoded, id[:], accountKey[:]); err != nil {
				return fmt.Errorf("contract %x alloc %x: %w", id, accountKey, err)
			}
			st.shadow.Allocs[accountKey] = new(uint256.Int).Set(alloc)
		}
	}

	h.log.Debug("coin delta applied",
		"new_accounts", len(ad.NewAccounts),
		"new_contracts", len(cd.NewContracts),
		"shadow_updates", len(cd.UpdatedShadows))
	return nil
}

func (h *Holder) validateDelta(ad *AccountDelta, cd *ContractDelta) error {
	for key := range ad.NewAccounts {
		if h.AccountExists(key) {
			return fmt.Errorf("%w: %x", ErrAccountExists, key)
		}
	}
	for _, id := range cd.NewContracts {
		if h.ContractExists(id) {
			return fmt.Errorf("%w: %x", ErrContractExists, id)
		}
	}
	accountWillExist := func(key entity.Key) bool {
		if h.AccountExists(key) {
			return true
		}
		_, ok := ad.NewAccounts[key]
		return ok
	}
	contractWillExist := func(id entity.Key) bool {
		if h.ContractExists(id) {
			return true
		}
		for _, nc := range cd.NewContracts {
			if nc == id {
				return true
			}
		}
		return false
	}
	for key := range ad.UpdatedBalances {
		if !accountWillExist(key) {
			return fmt.Errorf("%w: balance for %x", ErrAccountNotHeld, key)
		}
	}
	for key := range ad.UpdatedShadowSums {
		if !accountWillExist(key) {
			return fmt.Errorf("%w: shadow sum for %x", ErrAccountNotHeld, key)
		}
	}
	for id := range cd.UpdatedBalances {
		if !contractWillExist(id) {
			return fmt.Errorf("%w: balance for %x", ErrContractNotHeld, id)
		}
	}
	for id := range cd.UpdatedShadows {
		if !contractWillExist(id) {
			return fmt.Errorf("%w: shadow for %x", ErrContractNotHeld, id)
		}
	}
	for id, accounts := range cd.Allocs {
		if !contractWillExist(id) {
			return fmt.Errorf("%w: allocs for %x", ErrContractNotHeld, id)
		}
		for _, accountKey := range accounts {
			if !accountWillExist(accountKey) {
				return fmt.Errorf("%w: contract %x account %x", ErrAllocNotRegistered, id, accountKey)
			}
		}
	}
	for id := range cd.Deallocs {
		if !contractWillExist(id) {
			return fmt.Errorf("%w: deallocs for %x", ErrContractNotHeld, id)
		}
	}

	// Post-apply contract invariants: allocs sum within balance, and the
	// per-account split summing to exactly allocs_sum in sati-satoshi.
	for id, shadow := range cd.UpdatedShadows {
		balance, hasBalance := cd.UpdatedBalances[id]
		if !hasBalance {
			if st, ok := h.contracts[id]; ok {
				balance = st.balance
			}
		}
		if shadow.AllocsSum > balance {
			return fmt.Errorf("%w: contract %x sum %d balance %d",
				ErrAllocsSumExceeds, id, shadow.AllocsSum, balance)
		}
		if shadow.AllocsTotal().Cmp(SatToSati(shadow.AllocsSum)) != 0 {
			return fmt.Errorf("%w: contract %x", ErrAllocsSplitMismatch, id)
		}
		for accountKey, alloc := range shadow.Allocs {
			if !accountWillExist(accountKey) {
				return fmt.Errorf("%w: contract %x account %x", ErrAllocNotRegistered, id, accountKey)
			}
			if err := checkSatiWidth(alloc); err != nil {
				return fmt.Errorf("contract %x account %x: %w", id, accountKey, err)
			}
		}
	}
	for id, balance := range cd.UpdatedBalances {
		shadow, hasShadow := cd.UpdatedShadows[id]
		if !hasShadow {
			if st, ok := h.contracts[id]; ok {
				shadow = st.shadow
			} else {
				continue
			}
		}
		if shadow.AllocsSum > balance {
			return fmt.Errorf("%w: contract %x sum %d balance %d",
				ErrAllocsSumExceeds, id, shadow.AllocsSum, balance)
		}
	}

	// Cross-check: for every account whose shadow sum changes, the new sum
	// must equal the post-apply total of contract allocations toward it.
	for key, claimed := range ad.UpdatedShadowSums {
		total := new(uint256.Int)
		for id, st := range h.contracts {
			shadow, updated := cd.UpdatedShadows[id]
			if !updated {
				shadow = st.shadow
			}
			if alloc, ok := shadow.Allocs[key]; ok {
				total.Add(total, alloc)
			}
		}
		for id, shadow := range cd.UpdatedShadows {
			if _, exists := h.contracts[id]; exists {
				continue
			}
			if alloc, ok := shadow.Allocs[key]; ok {
				total.Add(total, alloc)
			}
		}
		if total.Cmp(claimed) != 0 {
			return fmt.Errorf("%w: account %x", ErrShadowSumMismatch, key)
		}
	}
	return nil
}

func (h *Holder) putAccountBalance(key entity.Key, balance uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], balance)
	return h.accountsKS.Put(buf[:], key[:], accountFieldBalance)
}

func (h *Holder) putAccountShadowSum(key entity.Key, sum *uint256.Int) error {
	encoded, err := satiToBytes(sum)
	if err != nil {
		return err
	}
	return h.accountsKS.Put(encoded, key[:], accountFieldShadowSum)
}

func (h *Holder) putContractBalance(id entity.Key, balance uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], balance)
	return h.contractsKS.Put(buf[:], id[:], contractSubkeyBalance)
}

func (h *Holder) putContractAllocsSum(id entity.Key, sum uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], sum)
	return h.contractsKS.Put(buf[:], id[:], contractSubkeyAllocsSum)
}

// satiToBytes encodes a sati-satoshi value as 16 little-endian bytes.
func satiToBytes(v *uint256.Int) ([]byte, error) {
	if err := checkSatiWidth(v); err != nil {
		return nil, err
	}
	out := make([]byte, 16)
	binary.LittleEndian.PutUint64(out[:8], v[0])
	binary.LittleEndian.PutUint64(out[8:], v[1])
	return out, nil
}

func satiFromBytes(data []byte) (*uint256.Int, error) {
	if len(data) != 16 {
		return nil, fmt.Errorf("%w: sati value length %d", ErrCorruptCoinRecord, len(data))
	}
	out := new(uint256.Int)
	out[0] = binary.LittleEndian.Uint64(data[:8])
	out[1] = binary.LittleEndian.Uint64(data[8:])
	return out, nil
}

func checkSatiWidth(v *uint256.Int) error {
	if v[2] != 0 || v[3] != 0 {
		return ErrSatiOverflow
	}
	return nil
}

package coin

import (
	"github.com/holiman/uint256"

	"cube/entity"
)

// AccountDelta is the typed batch of account-side changes the manager
// hands to the holder.
type AccountDelta struct {
	NewAccounts       map[entity.Key]uint64
	UpdatedBalances   map[entity.Key]uint64
	UpdatedShadowSums map[entity.Key]*uint256.Int
}

// NewAccountDelta returns an empty account delta.
func NewAccountDelta() *AccountDelta {
	return &AccountDelta{
		NewAccounts:       make(map[entity.Key]uint64),
		UpdatedBalances:   make(map[entity.Key]uint64),
		UpdatedShadowSums: make(map[entity.Key]*uint256.Int),
	}
}

// Clone deep-copies the delta.
func (d *AccountDelta) Clone() *AccountDelta {
	out := NewAccountDelta()
	for k, v := range d.NewAccounts {
		out.NewAccounts[k] = v
	}
	for k, v := range d.UpdatedBalances {
		out.UpdatedBalances[k] = v
	}
	for k, v := range d.UpdatedShadowSums {
		out.UpdatedShadowSums[k] = new(uint256.Int).Set(v)
	}
	return out
}

// Empty reports whether the delta carries no changes.
func (d *AccountDelta) Empty() bool {
	return len(d.NewAccounts) == 0 && len(d.UpdatedBalances) == 0 && len(d.UpdatedShadowSums) == 0
}

// ContractDelta is the typed batch of contract-side changes.
type ContractDelta struct {
	NewContracts    []entity.Key
	Allocs          map[entity.Key][]entity.Key
	Deallocs        map[entity.Key][]entity.Key
	UpdatedBalances map[entity.Key]uint64
	UpdatedShadows  map[entity.Key]*ShadowSpace
}

// NewContractDelta returns an empty contract delta.
func NewContractDelta() *ContractDelta {
	return &ContractDelta{
		Allocs:          make(map[entity.Key][]entity.Key),
		Deallocs:        make(map[entity.Key][]entity.Key),
		UpdatedBalances: make(map[entity.Key]uint64),
		UpdatedShadows:  make(map[entity.Key]*ShadowSpace),
	}
}

// Clone deep-copies the delta.
func (d *ContractDelta) Clone() *ContractDelta {
	out := NewContractDelta()
	out.NewContracts = append([]entity.Key(nil), d.NewContracts...)
	for k, v := range d.Allocs {
		out.Allocs[k] = append([]entity.Key(nil), v...)
	}
	for k, v := range d.Deallocs {
		out.Deallocs[k] = append([]entity.Key(nil), v...)
	}
	for k, v := range d.UpdatedBalances {
		out.UpdatedBalances[k] = v
	}
	for k, v := range d.UpdatedShadows {
		out.UpdatedShadows[k] = v.Clone()
	}
	return out
}

// Empty reports whether the delta carries no changes.
func (d *ContractDelta) Empty() bool {
	return len(d.NewContracts) == 0 && len(d.Allocs) == 0 && len(d.Deallocs) == 0 &&
		len(d.UpdatedBalances) == 0 && len(d.UpdatedShadows) == 0
}

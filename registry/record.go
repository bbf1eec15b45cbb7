// Package registry assigns compact ranks to accounts and contracts and
// keeps their registry records: call counters, aggregation keys, compiled
// programs and flame configs.
package registry

import (
	"cube/entity"
	"cube/executable"
	"cube/flame"
)

// BLSKey is an account's 48-byte aggregation key.
type BLSKey = [48]byte

// AccountRecord is the registry body of one account. RegistryIndex is the
// account's rank; indices are dense, 1-based and never reused.
type AccountRecord struct {
	RegistryIndex uint32
	CallCounter   uint64
	BLSKey        *BLSKey
	SecondaryKey  []byte
	FlameConfig   *flame.Config
}

// ContractRecord is the registry body of one contract.
type ContractRecord struct {
	RegistryIndex uint32
	CallCounter   uint64
	Executable    *executable.Executable
}

func (r *AccountRecord) clone() *AccountRecord {
	out := &AccountRecord{
		RegistryIndex: r.RegistryIndex,
		CallCounter:   r.CallCounter,
	}
	if r.BLSKey != nil {
		k := *r.BLSKey
		out.BLSKey = &k
	}
	if r.SecondaryKey != nil {
		out.SecondaryKey = append([]byte(nil), r.SecondaryKey...)
	}
	if r.FlameConfig != nil {
		c := *r.FlameConfig
		out.FlameConfig = &c
	}
	return out
}

func (r *ContractRecord) clone() *ContractRecord {
	return &ContractRecord{
		RegistryIndex: r.RegistryIndex,
		CallCounter:   r.CallCounter,
		Executable:    r.Executable,
	}
}

func cloneAccountMap(in map[entity.Key]*AccountRecord) map[entity.Key]*AccountRecord {
	out := make(map[entity.Key]*AccountRecord, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

func cloneContractMap(in map[entity.Key]*ContractRecord) map[entity.Key]*ContractRecord {
	out := make(map[entity.Key]*ContractRecord, len(in))
	for k, v := range in {
		out[k] = v.clone()
	}
	return out
}

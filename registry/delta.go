package registry

import (
	"cube/entity"
	"cube/executable"
	"cube/flame"
)

type newAccount struct {
	key          entity.Key
	blsKey       *BLSKey
	secondaryKey []byte
	flameConfig  *flame.Config
}

type newContract struct {
	id  entity.Key
	exe *executable.Executable
}

// delta holds the ephemeral changes of the current batch. Registration
// order matters for rank assignment, so new entities are kept as slices.
type delta struct {
	newAccounts  []newAccount
	newContracts []newContract

	accountCounterBumps  map[entity.Key]uint64
	contractCounterBumps map[entity.Key]uint64

	updatedBLSKeys       map[entity.Key]BLSKey
	updatedSecondaryKeys map[entity.Key][]byte
	updatedFlameConfigs  map[entity.Key]*flame.Config
}

func newDelta() *delta {
	return &delta{
		accountCounterBumps:  make(map[entity.Key]uint64),
		contractCounterBumps: make(map[entity.Key]uint64),
		updatedBLSKeys:       make(map[entity.Key]BLSKey),
		updatedSecondaryKeys: make(map[entity.Key][]byte),
		updatedFlameConfigs:  make(map[entity.Key]*flame.Config),
	}
}

func (d *delta) clone() *delta {
	out := newDelta()
	out.newAccounts = append([]newAccount(nil), d.newAccounts...)
	out.newContracts = append([]newContract(nil), d.newContracts...)
	for k, v := range d.accountCounterBumps {
		out.accountCounterBumps[k] = v
	}
	for k, v := range d.contractCounterBumps {
		out.contractCounterBumps[k] = v
	}
	for k, v := range d.updatedBLSKeys {
		out.updatedBLSKeys[k] = v
	}
	for k, v := range d.updatedSecondaryKeys {
		out.updatedSecondaryKeys[k] = append([]byte(nil), v...)
	}
	for k, v := range d.updatedFlameConfigs {
		c := *v
		out.updatedFlameConfigs[k] = &c
	}
	return out
}

func (d *delta) hasAccount(key entity.Key) bool {
	for _, a := range d.newAccounts {
		if a.key == key {
			return true
		}
	}
	return false
}

func (d *delta) hasContract(id entity.Key) bool {
	for _, c := range d.newContracts {
		if c.id == id {
			return true
		}
	}
	return false
}

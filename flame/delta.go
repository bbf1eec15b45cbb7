package flame

import "cube/entity"

type newAccount struct {
	key    entity.Key
	config *Config
}

// delta holds ephemeral registrations and config updates until
// ApplyChanges. Configs are treated as immutable once handed to the
// manager, so clones copy pointers only.
type delta struct {
	newAccounts    []newAccount
	updatedConfigs map[entity.Key]*Config
}

func newDelta() *delta {
	return &delta{
		updatedConfigs: make(map[entity.Key]*Config),
	}
}

func (d *delta) clone() *delta {
	c := newDelta()
	c.newAccounts = append([]newAccount(nil), d.newAccounts...)
	for key, cfg := range d.updatedConfigs {
		c.updatedConfigs[key] = cfg
	}
	return c
}

func (d *delta) hasAccount(key entity.Key) bool {
	for _, na := range d.newAccounts {
		if na.key == key {
			return true
		}
	}
	return false
}

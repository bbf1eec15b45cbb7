package state

import "cube/entity"

// delta holds ephemeral contract state changes until ApplyChanges. A
// removed key shadows earlier writes; inserting it again retracts the
// removal.
type delta struct {
	newContracts  []entity.Key
	newStates     map[entity.Key]map[string][]byte
	updatedStates map[entity.Key]map[string][]byte
	removedStates map[entity.Key]map[string]struct{}
}

func newDelta() *delta {
	return &delta{
		newContracts:  nil,
		newStates:     make(map[entity.Key]map[string][]byte),
		updatedStates: make(map[entity.Key]map[string][]byte),
		removedStates: make(map[entity.Key]map[string]struct{}),
	}
}

func (d *delta) clone() *delta {
	c := newDelta()
	c.newContracts = append([]entity.Key(nil), d.newContracts...)
	for id, states := range d.newStates {
		c.newStates[id] = cloneStateMap(states)
	}
	for id, states := range d.updatedStates {
		c.updatedStates[id] = cloneStateMap(states)
	}
	for id, removed := range d.removedStates {
		set := make(map[string]struct{}, len(removed))
		for key := range removed {
			set[key] = struct{}{}
		}
		c.removedStates[id] = set
	}
	return c
}

func cloneStateMap(states map[string][]byte) map[string][]byte {
	c := make(map[string][]byte, len(states))
	for key, value := range states {
		c[key] = append([]byte(nil), value...)
	}
	return c
}

func (d *delta) hasContract(id entity.Key) bool {
	for _, nc := range d.newContracts {
		if nc == id {
			return true
		}
	}
	return false
}

// stateValue resolves a key against the delta. The second return reports
// whether the delta has an opinion at all: a removed key yields (nil,
// true) so callers do not fall through to the permanent states.
func (d *delta) stateValue(id entity.Key, key string) ([]byte, bool) {
	if removed, ok := d.removedStates[id]; ok {
		if _, gone := removed[key]; gone {
			return nil, true
		}
	}
	if updated, ok := d.updatedStates[id]; ok {
		if value, ok := updated[key]; ok {
			return value, true
		}
	}
	if inserted, ok := d.newStates[id]; ok {
		if value, ok := inserted[key]; ok {
			return value, true
		}
	}
	return nil, false
}

func (d *delta) registerContract(id entity.Key) {
	d.newContracts = append(d.newContracts, id)
}

func (d *delta) insertState(id entity.Key, key string, value []byte) {
	if removed, ok := d.removedStates[id]; ok {
		delete(removed, key)
	}
	states, ok := d.newStates[id]
	if !ok {
		states = make(map[string][]byte)
		d.newStates[id] = states
	}
	states[key] = append([]byte(nil), value...)
}

func (d *delta) updateState(id entity.Key, key string, value []byte) {
	states, ok := d.updatedStates[id]
	if !ok {
		states = make(map[string][]byte)
		d.updatedStates[id] = states
	}
	states[key] = append([]byte(nil), value...)
}

func (d *delta) removeState(id entity.Key, key string) {
	removed, ok := d.removedStates[id]
	if !ok {
		removed = make(map[string]struct{})
		d.removedStates[id] = removed
	}
	removed[key] = struct{}{}
}

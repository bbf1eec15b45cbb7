package flame

import (
	"bytes"
	"sort"

	"cube/entity"
)

// IndexedFlame pairs a flame with its global projection index.
type IndexedFlame struct {
	Index uint32
	Flame Flame
}

// AccountFlames is one account's slice of a projection template.
type AccountFlames struct {
	Account entity.Key
	Flames  []IndexedFlame
}

// SortFlames produces the deterministic projection ordering: accounts
// ascend lexicographically by key, flames within an account follow
// Flame.Less, and global indices run sequentially from zero filling one
// account before the next.
func SortFlames(byAccount map[entity.Key][]Flame) []AccountFlames {
	if len(byAccount) == 0 {
		return nil
	}

	keys := make([]entity.Key, 0, len(byAccount))
	for key := range byAccount {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	template := make([]AccountFlames, 0, len(keys))
	var index uint32
	for _, key := range keys {
		flames := append([]Flame(nil), byAccount[key]...)
		sort.Slice(flames, func(i, j int) bool {
			return flames[i].Less(flames[j])
		})
		indexed := make([]IndexedFlame, 0, len(flames))
		for _, f := range flames {
			indexed = append(indexed, IndexedFlame{Index: index, Flame: f})
			index++
		}
		template = append(template, AccountFlames{Account: key, Flames: indexed})
	}
	return template
}

// Package coin tracks account and contract balances and the shadow
// spaces that commit contract coins toward individual accounts. Contract
// level sums are whole satoshi; per-account allocations are tracked in
// sati-satoshi (1e-8 satoshi) so pro-rata operations stay lossless.
package coin

import (
	"sort"

	"github.com/holiman/uint256"

	"cube/entity"
)

// SatiPerSat is the number of sati-satoshi in one satoshi.
const SatiPerSat = 100_000_000

// SatToSati converts a whole-satoshi amount to sati-satoshi.
func SatToSati(sat uint64) *uint256.Int {
	out := uint256.NewInt(sat)
	return out.Mul(out, uint256.NewInt(SatiPerSat))
}

// ShadowSpace is a contract's committed allocations. AllocsSum is the
// whole-satoshi total the chain sees; Allocs carries the per-account
// split in sati-satoshi.
type ShadowSpace struct {
	AllocsSum uint64
	Allocs    map[entity.Key]*uint256.Int
}

// NewShadowSpace returns an empty shadow space.
func NewShadowSpace() *ShadowSpace {
	return &ShadowSpace{Allocs: make(map[entity.Key]*uint256.Int)}
}

// Clone deep-copies the shadow space.
func (s *ShadowSpace) Clone() *ShadowSpace {
	out := &ShadowSpace{
		AllocsSum: s.AllocsSum,
		Allocs:    make(map[entity.Key]*uint256.Int, len(s.Allocs)),
	}
	for k, v := range s.Allocs {
		out.Allocs[k] = new(uint256.Int).Set(v)
	}
	return out
}

// SortedKeys returns the allocated account keys in lexicographic order.
// Every *_all operation walks allocations in this order so residual
// handling is deterministic.
func (s *ShadowSpace) SortedKeys() []entity.Key {
	keys := make([]entity.Key, 0, len(s.Allocs))
	for k := range s.Allocs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return compareKeys(keys[i], keys[j]) < 0
	})
	return keys
}

// AllocsTotal sums the per-account allocations in sati-satoshi.
func (s *ShadowSpace) AllocsTotal() *uint256.Int {
	total := new(uint256.Int)
	for _, v := range s.Allocs {
		total.Add(total, v)
	}
	return total
}

func compareKeys(a, b entity.Key) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

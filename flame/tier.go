// Package flame tracks projected future outputs ("flames") per account
// and their deterministic global ordering by projector height.
package flame

// Tier is a flame value class. Seven round-amount tiers cover the common
// cases; anything else is an any-amount flame carrying its own value.
type Tier struct {
	amount uint64
}

// Canonical tier amounts in satoshi.
var tierAmounts = []uint64{
	100,
	1_000,
	10_000,
	100_000,
	1_000_000,
	10_000_000,
	100_000_000,
}

// NewTier classifies a satoshi amount into its tier.
func NewTier(amount uint64) Tier {
	return Tier{amount: amount}
}

// Amount returns the satoshi value of the tier.
func (t Tier) Amount() uint64 {
	return t.amount
}

// Canonical reports whether the tier is one of the seven round amounts.
func (t Tier) Canonical() bool {
	for _, a := range tierAmounts {
		if t.amount == a {
			return true
		}
	}
	return false
}

// TierIndex returns the 1-based index of a canonical tier, or 0 for
// any-amount tiers. The on-disk form uses it as a compact tag.
func (t Tier) TierIndex() uint8 {
	for i, a := range tierAmounts {
		if t.amount == a {
			return uint8(i + 1)
		}
	}
	return 0
}

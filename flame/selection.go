package flame

// FlamesToFund returns the flames needed to raise an account's projected
// output value from currentSat up to targetSat. With an any-amount
// program configured a single flame covers the whole gap; otherwise the
// gap is decomposed greedily over the configured tiers, largest first,
// rounding any remainder up with one extra flame of the smallest
// configured tier.
func FlamesToFund(c *Config, targetSat, currentSat uint64) []Flame {
	if c == nil || !c.Configured() || targetSat <= currentSat {
		return nil
	}
	gap := targetSat - currentSat

	if len(c.TierAny) > 0 {
		return []Flame{{Tier: NewTier(gap), ScriptPubKey: c.TierAny}}
	}

	// Configured canonical tiers, largest first.
	type tierScript struct {
		amount uint64
		script []byte
	}
	scripts := [...][]byte{
		c.Tier100M, c.Tier10M, c.Tier1M, c.Tier100K,
		c.Tier10K, c.Tier1K, c.Tier100,
	}
	amounts := [...]uint64{
		100_000_000, 10_000_000, 1_000_000, 100_000,
		10_000, 1_000, 100,
	}
	var available []tierScript
	for i, script := range scripts {
		if len(script) > 0 {
			available = append(available, tierScript{amount: amounts[i], script: script})
		}
	}
	if len(available) == 0 {
		return nil
	}

	var flames []Flame
	remaining := gap
	for _, ts := range available {
		count := remaining / ts.amount
		for i := uint64(0); i < count; i++ {
			flames = append(flames, Flame{Tier: NewTier(ts.amount), ScriptPubKey: ts.script})
		}
		remaining -= count * ts.amount
		if remaining == 0 {
			break
		}
	}

	// Round the leftover up with one more of the smallest tier.
	if remaining > 0 {
		smallest := available[len(available)-1]
		flames = append(flames, Flame{Tier: NewTier(smallest.amount), ScriptPubKey: smallest.script})
	}
	return flames
}

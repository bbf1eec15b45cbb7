package flame

import (
	"github.com/ethereum/go-ethereum/rlp"
)

// Config holds an account's per-tier witness programs for its projected
// outputs. An empty slice means the tier is not configured.
type Config struct {
	Tier100  []byte
	Tier1K   []byte
	Tier10K  []byte
	Tier100K []byte
	Tier1M   []byte
	Tier10M  []byte
	Tier100M []byte
	TierAny  []byte
}

// ScriptForTier returns the configured witness program for the tier, or
// the any-amount program when the tier has none.
func (c *Config) ScriptForTier(t Tier) []byte {
	scripts := [...][]byte{
		c.Tier100, c.Tier1K, c.Tier10K, c.Tier100K,
		c.Tier1M, c.Tier10M, c.Tier100M,
	}
	if idx := t.TierIndex(); idx != 0 && len(scripts[idx-1]) > 0 {
		return scripts[idx-1]
	}
	return c.TierAny
}

// Configured reports whether any tier carries a witness program.
func (c *Config) Configured() bool {
	return len(c.Tier100) > 0 || len(c.Tier1K) > 0 || len(c.Tier10K) > 0 ||
		len(c.Tier100K) > 0 || len(c.Tier1M) > 0 || len(c.Tier10M) > 0 ||
		len(c.Tier100M) > 0 || len(c.TierAny) > 0
}

// EncodeConfig serializes the config for the on-disk record.
func EncodeConfig(c *Config) ([]byte, error) {
	return rlp.EncodeToBytes(c)
}

// DecodeConfig parses an on-disk config record.
func DecodeConfig(data []byte) (*Config, error) {
	c := new(Config)
	if err := rlp.DecodeBytes(data, c); err != nil {
		return nil, err
	}
	return c, nil
}

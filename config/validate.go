package config

import (
	"fmt"
	"strings"

	"cube/params"
)

// Validate rejects configurations the node cannot start with.
func Validate(cfg *Config) error {
	if _, err := params.ParseChain(cfg.Chain); err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if strings.TrimSpace(cfg.Bitcoind.URL) == "" {
		return fmt.Errorf("bitcoind: URL must not be empty")
	}
	return nil
}

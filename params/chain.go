// Package params carries the chain identifiers, the baked protocol
// limits and the durable operational parameters.
package params

import (
	"errors"
	"fmt"
	"strings"
)

// Chain selects which Bitcoin network the rollup anchors to.
type Chain string

const (
	ChainTestbed Chain = "testbed"
	ChainSignet  Chain = "signet"
	ChainMainnet Chain = "mainnet"
)

var ErrUnknownChain = errors.New("params: unknown chain")

// ParseChain parses a chain name as found in config files and flags.
func ParseChain(s string) (Chain, error) {
	switch Chain(strings.ToLower(strings.TrimSpace(s))) {
	case ChainTestbed:
		return ChainTestbed, nil
	case ChainSignet:
		return ChainSignet, nil
	case ChainMainnet:
		return ChainMainnet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownChain, s)
	}
}

func (c Chain) String() string {
	return string(c)
}

// BitcoinNetworkName maps the chain to the network name reported by
// bitcoind's getblockchaininfo. The testbed runs against signet.
func (c Chain) BitcoinNetworkName() string {
	switch c {
	case ChainMainnet:
		return "main"
	default:
		return "signet"
	}
}

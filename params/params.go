package params

import (
	"encoding/binary"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil"

	"cube/storage"
)

// Baked protocol limits.
const (
	// MaxStateKeyLength bounds contract state keys in bytes.
	MaxStateKeyLength = 256

	// MaxStackItemLength bounds contract state values and script stack
	// items in bytes.
	MaxStackItemLength = 4095

	// MaxVarbytesLength is the ceiling of the 12-bit varbytes length
	// prefix on the wire.
	MaxVarbytesLength = 4095
)

// Policy amounts in satoshi.
const (
	// DustThreshold is the smallest output amount worth creating.
	DustThreshold btcutil.Amount = 546

	// MinRedemptionAmount is the graveyard redemption floor.
	MinRedemptionAmount btcutil.Amount = 500
)

// Store persists operational parameters that arrive as inputs rather
// than being derived, such as the fee rate the projector budgets with.
type Store struct {
	log    *slog.Logger
	values storage.Keyspace
}

var feeRateKey = []byte("fee_rate_sat_per_vb")

// NewStore opens the parameter store within db.
func NewStore(db storage.Database, log *slog.Logger) *Store {
	return &Store{
		log:    log.With("component", "params"),
		values: storage.NewKeyspace(db, "params/values"),
	}
}

// FeeRate returns the stored fee rate in satoshi per vbyte, or the
// fallback when none has been stored yet.
func (s *Store) FeeRate(fallback uint64) (uint64, error) {
	has, err := s.values.Has(feeRateKey)
	if err != nil {
		return 0, err
	}
	if !has {
		return fallback, nil
	}
	value, err := s.values.Get(feeRateKey)
	if err != nil {
		return 0, err
	}
	if len(value) != 8 {
		return fallback, nil
	}
	return binary.LittleEndian.Uint64(value), nil
}

// SetFeeRate persists the fee rate in satoshi per vbyte.
func (s *Store) SetFeeRate(satPerVB uint64) error {
	value := make([]byte, 8)
	binary.LittleEndian.PutUint64(value, satPerVB)
	return s.values.Put(value, feeRateKey)
}

package entity

import (
	"errors"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"cube/ape"
)

var (
	// ErrRankNotFound is returned when a wire rank has no registry entry.
	ErrRankNotFound = errors.New("entity: rank not found in registry")
	// ErrKeyNotOnCurve is returned when a literal account key is not a valid
	// x-only secp256k1 point.
	ErrKeyNotOnCurve = errors.New("entity: public key not on curve")
	// ErrKeyAlreadyRegistered is returned when a literal key belongs to an
	// entity that is already registered; such entities must be rank-encoded.
	ErrKeyAlreadyRegistered = errors.New("entity: literal key is already registered")
)

// RankFormat selects the wire width of rank values. Encoder and decoder must
// agree on it out of band.
type RankFormat bool

const (
	RankShort RankFormat = false
	RankLong  RankFormat = true
)

func encodeRank(w *ape.Writer, rank uint64, format RankFormat) {
	if format == RankLong {
		ape.LongVal(rank).Encode(w)
		return
	}
	ape.ShortVal(rank).Encode(w)
}

func decodeRank(r *ape.Reader, format RankFormat) (uint64, error) {
	if format == RankLong {
		v, err := ape.DecodeLongVal(r)
		return uint64(v), err
	}
	v, err := ape.DecodeShortVal(r)
	return uint64(v), err
}

// Encode writes the account in rank form, or as a zero rank followed by the
// literal 32-byte key when unregistered.
func (a Account) Encode(w *ape.Writer, format RankFormat) {
	encodeRank(w, a.Rank, format)
	if a.Rank == 0 {
		w.WriteBytes(a.Key[:])
	}
}

// DecodeAccount reads an account reference. Literal keys must be valid
// x-only points and must not already be registered.
func DecodeAccount(r *ape.Reader, reg Registry, format RankFormat) (Account, error) {
	rank, err := decodeRank(r, format)
	if err != nil {
		return Account{}, err
	}
	if rank == 0 {
		raw, err := r.ReadBytes(32)
		if err != nil {
			return Account{}, err
		}
		var key Key
		copy(key[:], raw)
		if err := validateXOnlyKey(key); err != nil {
			return Account{}, err
		}
		if reg.IsAccountRegistered(key) {
			return Account{}, ErrKeyAlreadyRegistered
		}
		return NewUnregisteredAccount(key), nil
	}
	account, ok := reg.AccountByRank(rank)
	if !ok {
		return Account{}, ErrRankNotFound
	}
	return account, nil
}

// Encode writes the contract in rank form, or as a zero rank followed by the
// literal 32-byte contract id when undeployed.
func (c Contract) Encode(w *ape.Writer, format RankFormat) {
	encodeRank(w, c.Rank, format)
	if c.Rank == 0 {
		w.WriteBytes(c.ID[:])
	}
}

// DecodeContract reads a contract reference.
func DecodeContract(r *ape.Reader, reg Registry, format RankFormat) (Contract, error) {
	rank, err := decodeRank(r, format)
	if err != nil {
		return Contract{}, err
	}
	if rank == 0 {
		raw, err := r.ReadBytes(32)
		if err != nil {
			return Contract{}, err
		}
		var id Key
		copy(id[:], raw)
		if reg.IsContractRegistered(id) {
			return Contract{}, ErrKeyAlreadyRegistered
		}
		return NewUndeployedContract(id), nil
	}
	contract, ok := reg.ContractByRank(rank)
	if !ok {
		return Contract{}, ErrRankNotFound
	}
	return contract, nil
}

// validateXOnlyKey checks that key is the x coordinate of a point on the
// secp256k1 curve, lifting it with even parity the way BIP-340 does.
func validateXOnlyKey(key Key) error {
	compressed := make([]byte, 33)
	compressed[0] = secp256k1.PubKeyFormatCompressedEven
	copy(compressed[1:], key[:])
	if _, err := secp256k1.ParsePubKey(compressed); err != nil {
		return ErrKeyNotOnCurve
	}
	return nil
}

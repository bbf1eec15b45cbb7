package flame

import (
	"bytes"

	"github.com/ethereum/go-ethereum/rlp"
)

// Flame is one projected future output: a value tier plus the witness
// program it pays to. NestingHeight records the rollup height the flame
// nests at, zero meaning not yet nested.
type Flame struct {
	Tier          Tier
	ScriptPubKey  []byte
	NestingHeight uint64
}

// flameWire is the RLP on-disk form.
type flameWire struct {
	Amount        uint64
	ScriptPubKey  []byte
	NestingHeight uint64
}

// Encode serializes the flame for the on-disk record.
func (f Flame) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(flameWire{
		Amount:        f.Tier.Amount(),
		ScriptPubKey:  f.ScriptPubKey,
		NestingHeight: f.NestingHeight,
	})
}

// DecodeFlame parses an on-disk flame record.
func DecodeFlame(data []byte) (Flame, error) {
	var w flameWire
	if err := rlp.DecodeBytes(data, &w); err != nil {
		return Flame{}, err
	}
	return Flame{
		Tier:          NewTier(w.Amount),
		ScriptPubKey:  w.ScriptPubKey,
		NestingHeight: w.NestingHeight,
	}, nil
}

// Less orders flames within one account: descending satoshi amount,
// ties broken by ascending byte serialization.
func (f Flame) Less(other Flame) bool {
	if f.Tier.Amount() != other.Tier.Amount() {
		return f.Tier.Amount() > other.Tier.Amount()
	}
	fb, ferr := f.Encode()
	ob, oerr := other.Encode()
	if ferr != nil || oerr != nil {
		return false
	}
	return bytes.Compare(fb, ob) < 0
}

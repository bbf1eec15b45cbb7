package calldata

import (
	"errors"

	"cube/ape"
	"cube/entity"
)

var (
	// ErrBytesLengthMismatch is returned when a fixed-length bytes element
	// does not match its declared length.
	ErrBytesLengthMismatch = errors.New("calldata: bytes element length mismatch")
	// ErrTypeMismatch is returned when an element is encoded under the
	// wrong type tag.
	ErrTypeMismatch = errors.New("calldata: element type mismatch")
)

// Element is a single decoded calldata value. Exactly one field besides
// Type is meaningful, selected by Type.Kind.
type Element struct {
	Type     ElementType
	Uint     uint64
	Bool     bool
	Account  entity.Account
	Contract entity.Contract
	Data     []byte
}

func NewU8(v uint8) Element   { return Element{Type: ElementType{Kind: KindU8}, Uint: uint64(v)} }
func NewU16(v uint16) Element { return Element{Type: ElementType{Kind: KindU16}, Uint: uint64(v)} }
func NewU32(v uint32) Element { return Element{Type: ElementType{Kind: KindU32}, Uint: uint64(v)} }
func NewU64(v uint64) Element { return Element{Type: ElementType{Kind: KindU64}, Uint: v} }
func NewBool(v bool) Element  { return Element{Type: ElementType{Kind: KindBool}, Bool: v} }

func NewAccount(a entity.Account) Element {
	return Element{Type: ElementType{Kind: KindAccount}, Account: a}
}

func NewContract(c entity.Contract) Element {
	return Element{Type: ElementType{Kind: KindContract}, Contract: c}
}

// NewBytes wraps a fixed-length byte string of 1..256 bytes.
func NewBytes(data []byte) (Element, error) {
	if len(data) < 1 || len(data) > 256 {
		return Element{}, ErrBytesLengthMismatch
	}
	return Element{
		Type: ElementType{Kind: KindBytes, ByteIndex: uint8(len(data) - 1)},
		Data: data,
	}, nil
}

func NewVarbytes(data []byte) Element {
	return Element{Type: ElementType{Kind: KindVarbytes}, Data: data}
}

func NewPayable(v uint32) Element {
	return Element{Type: ElementType{Kind: KindPayable}, Uint: uint64(v)}
}

// Encode writes the element value; the type tag itself is never on the wire,
// it comes from the method signature.
func (e Element) Encode(w *ape.Writer, format entity.RankFormat) error {
	switch e.Type.Kind {
	case KindU8:
		ape.EncodeU8(w, uint8(e.Uint))
	case KindU16:
		ape.EncodeU16(w, uint16(e.Uint))
	case KindU32, KindPayable:
		ape.EncodeMaybeCommonShort(w, ape.ShortVal(e.Uint))
	case KindU64:
		ape.EncodeMaybeCommonLong(w, ape.LongVal(e.Uint))
	case KindBool:
		w.WriteBool(e.Bool)
	case KindAccount:
		e.Account.Encode(w, format)
	case KindContract:
		e.Contract.Encode(w, format)
	case KindBytes:
		if len(e.Data) != e.Type.FixedByteLen() {
			return ErrBytesLengthMismatch
		}
		w.WriteBytes(e.Data)
	case KindVarbytes:
		return ape.EncodeVarbytes(w, e.Data)
	default:
		return ErrTypeMismatch
	}
	return nil
}

// DecodeElement reads one element of the given type. Account and contract
// references are resolved through reg.
func DecodeElement(r *ape.Reader, typ ElementType, reg entity.Registry, format entity.RankFormat) (Element, error) {
	switch typ.Kind {
	case KindU8:
		v, err := ape.DecodeU8(r)
		if err != nil {
			return Element{}, err
		}
		return NewU8(v), nil
	case KindU16:
		v, err := ape.DecodeU16(r)
		if err != nil {
			return Element{}, err
		}
		return NewU16(v), nil
	case KindU32:
		v, err := ape.DecodeMaybeCommonShort(r)
		if err != nil {
			return Element{}, err
		}
		return NewU32(uint32(v)), nil
	case KindU64:
		v, err := ape.DecodeMaybeCommonLong(r)
		if err != nil {
			return Element{}, err
		}
		return NewU64(uint64(v)), nil
	case KindBool:
		v, err := r.ReadBool()
		if err != nil {
			return Element{}, err
		}
		return NewBool(v), nil
	case KindAccount:
		account, err := entity.DecodeAccount(r, reg, format)
		if err != nil {
			return Element{}, err
		}
		return NewAccount(account), nil
	case KindContract:
		contract, err := entity.DecodeContract(r, reg, format)
		if err != nil {
			return Element{}, err
		}
		return NewContract(contract), nil
	case KindBytes:
		data, err := r.ReadBytes(typ.FixedByteLen())
		if err != nil {
			return Element{}, err
		}
		return NewBytes(data)
	case KindVarbytes:
		data, err := ape.DecodeVarbytes(r)
		if err != nil {
			return Element{}, err
		}
		return NewVarbytes(data), nil
	case KindPayable:
		v, err := ape.DecodeMaybeCommonShort(r)
		if err != nil {
			return Element{}, err
		}
		return NewPayable(uint32(v)), nil
	default:
		return Element{}, ErrUnknownElementType
	}
}

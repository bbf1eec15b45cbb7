// Package calldata defines the typed elements a call entry carries and
// their bit-level wire forms.
package calldata

import (
	"errors"
	"fmt"
)

// Kind enumerates the ten element variants.
type Kind uint8

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindU64
	KindBool
	KindAccount
	KindContract
	KindBytes
	KindVarbytes
	KindPayable
)

// ErrUnknownElementType is returned for an unrecognised bytecode tag.
var ErrUnknownElementType = errors.New("calldata: unknown element type")

// ElementType tags a single calldata element. For KindBytes, ByteIndex
// carries the fixed byte length minus one (supported range 1..256).
type ElementType struct {
	Kind      Kind
	ByteIndex uint8
}

// FixedByteLen returns the byte length of a KindBytes element.
func (t ElementType) FixedByteLen() int {
	return int(t.ByteIndex) + 1
}

// Bytecode returns the one- or two-byte tag of the element type.
func (t ElementType) Bytecode() []byte {
	if t.Kind == KindBytes {
		return []byte{byte(KindBytes), t.ByteIndex}
	}
	return []byte{byte(t.Kind)}
}

// ElementTypeFromBytecode consumes a tag from data and returns the decoded
// type together with the number of bytes read.
func ElementTypeFromBytecode(data []byte) (ElementType, int, error) {
	if len(data) == 0 {
		return ElementType{}, 0, ErrUnknownElementType
	}
	kind := Kind(data[0])
	switch kind {
	case KindU8, KindU16, KindU32, KindU64, KindBool, KindAccount, KindContract, KindVarbytes, KindPayable:
		return ElementType{Kind: kind}, 1, nil
	case KindBytes:
		if len(data) < 2 {
			return ElementType{}, 0, ErrUnknownElementType
		}
		return ElementType{Kind: KindBytes, ByteIndex: data[1]}, 2, nil
	default:
		return ElementType{}, 0, ErrUnknownElementType
	}
}

func (t ElementType) String() string {
	switch t.Kind {
	case KindU8:
		return "U8"
	case KindU16:
		return "U16"
	case KindU32:
		return "U32"
	case KindU64:
		return "U64"
	case KindBool:
		return "Bool"
	case KindAccount:
		return "Account"
	case KindContract:
		return "Contract"
	case KindBytes:
		return fmt.Sprintf("Bytes%d", t.FixedByteLen())
	case KindVarbytes:
		return "Varbytes"
	case KindPayable:
		return "Payable"
	default:
		return fmt.Sprintf("Unknown(%d)", t.Kind)
	}
}
